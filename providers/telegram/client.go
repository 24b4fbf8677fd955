package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultAPIBaseURL      = "https://api.telegram.org"
	defaultRequestTimeout  = 15 * time.Second
	maxAPIResponseBytes    = 1 << 20
	webhookSecretTokenName = "secret_token"
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// botAPI is a minimal Bot API client covering webhook management and text
// delivery. The bot token travels in the URL path, so it never appears in
// request bodies or logs.
type botAPI struct {
	baseURL        string
	httpClient     HTTPDoer
	requestTimeout time.Duration
}

func newBotAPI(baseURL string, client HTTPDoer, timeout time.Duration) *botAPI {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &botAPI{baseURL: baseURL, httpClient: client, requestTimeout: timeout}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
	Result      json.RawMessage `json:"result"`
}

func (c *botAPI) call(ctx context.Context, token, method string, payload map[string]any) (json.RawMessage, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("telegram: bot token is required")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("telegram: encode %s payload: %w", method, err)
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	endpoint := c.baseURL + "/bot" + token + "/" + method
	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram: %s request failed: %w", method, err)
	}
	defer res.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(res.Body, maxAPIResponseBytes+1))
	if readErr != nil {
		return nil, fmt.Errorf("telegram: read %s response: %w", method, readErr)
	}
	if int64(len(raw)) > maxAPIResponseBytes {
		return nil, fmt.Errorf("telegram: %s response exceeds %d bytes", method, maxAPIResponseBytes)
	}

	var decoded apiResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("telegram: decode %s response (status %d): %w", method, res.StatusCode, err)
	}
	if !decoded.OK {
		description := strings.TrimSpace(decoded.Description)
		if description == "" {
			description = fmt.Sprintf("status %d", res.StatusCode)
		}
		return nil, fmt.Errorf("telegram: %s rejected: %s", method, description)
	}
	return decoded.Result, nil
}

func (c *botAPI) setWebhook(ctx context.Context, token, url, secretToken string) error {
	payload := map[string]any{
		"url":                  url,
		"drop_pending_updates": true,
		"allowed_updates":      []string{"message"},
	}
	if strings.TrimSpace(secretToken) != "" {
		payload[webhookSecretTokenName] = secretToken
	}
	_, err := c.call(ctx, token, "setWebhook", payload)
	return err
}

func (c *botAPI) deleteWebhook(ctx context.Context, token string) error {
	_, err := c.call(ctx, token, "deleteWebhook", map[string]any{
		"drop_pending_updates": true,
	})
	return err
}

func (c *botAPI) sendMessage(ctx context.Context, token, chatID, text string) error {
	_, err := c.call(ctx, token, "sendMessage", map[string]any{
		"chat_id": chatID,
		"text":    text,
	})
	return err
}
