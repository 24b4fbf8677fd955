package whatsappcloud

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
	defaultGraphBaseURL   = "https://graph.facebook.com/v19.0"
	defaultRequestTimeout = 15 * time.Second
	maxAPIResponseBytes   = 1 << 20
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// graphClient posts message payloads to the Cloud API. Authentication is
// the per-channel access token as a bearer header.
type graphClient struct {
	baseURL        string
	httpClient     HTTPDoer
	requestTimeout time.Duration
}

func newGraphClient(baseURL string, client HTTPDoer, timeout time.Duration) *graphClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultGraphBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &graphClient{baseURL: baseURL, httpClient: client, requestTimeout: timeout}
}

type graphError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (c *graphClient) sendPayload(ctx context.Context, accessToken, phoneNumberID string, payload map[string]any) error {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return fmt.Errorf("whatsappcloud: access token is required")
	}
	phoneNumberID = strings.TrimSpace(phoneNumberID)
	if phoneNumberID == "" {
		return fmt.Errorf("whatsappcloud: phone number id is required")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("whatsappcloud: encode message payload: %w", err)
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	endpoint := c.baseURL + "/" + phoneNumberID + "/messages"
	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("whatsappcloud: message request failed: %w", err)
	}
	defer res.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(res.Body, maxAPIResponseBytes+1))
	if readErr != nil {
		return fmt.Errorf("whatsappcloud: read message response: %w", readErr)
	}
	if res.StatusCode >= http.StatusOK && res.StatusCode < http.StatusMultipleChoices {
		return nil
	}

	var decoded graphError
	if err := json.Unmarshal(raw, &decoded); err == nil && strings.TrimSpace(decoded.Error.Message) != "" {
		return fmt.Errorf("whatsappcloud: graph api rejected message (status %d, code %d): %s",
			res.StatusCode, decoded.Error.Code, decoded.Error.Message)
	}
	return fmt.Errorf("whatsappcloud: graph api returned status %d", res.StatusCode)
}
