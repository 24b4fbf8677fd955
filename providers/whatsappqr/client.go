package whatsappqr

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
	defaultRequestTimeout = 20 * time.Second
	maxAPIResponseBytes   = 4 << 20
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to an Evolution API deployment. Every request authenticates
// with the deployment API key header.
type Client struct {
	baseURL        string
	apiKey         string
	httpClient     HTTPDoer
	requestTimeout time.Duration
}

func NewClient(baseURL, apiKey string, httpClient HTTPDoer, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("whatsappqr: gateway base url is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Client{
		baseURL:        baseURL,
		apiKey:         strings.TrimSpace(apiKey),
		httpClient:     httpClient,
		requestTimeout: timeout,
	}, nil
}

type CreateInstanceInput struct {
	InstanceName string
	Token        string
	WebhookURL   string
}

type CreateInstanceResult struct {
	InstanceID string
	QRCode     string
}

type createInstanceResponse struct {
	Instance struct {
		InstanceName string `json:"instanceName"`
		InstanceID   string `json:"instanceId"`
	} `json:"instance"`
	QRCode struct {
		Base64 string `json:"base64"`
		Code   string `json:"code"`
	} `json:"qrcode"`
}

// CreateInstance provisions a fresh session. The returned QR code is what
// the merchant scans from the WhatsApp mobile app.
func (c *Client) CreateInstance(ctx context.Context, in CreateInstanceInput) (CreateInstanceResult, error) {
	name := strings.TrimSpace(in.InstanceName)
	if name == "" {
		return CreateInstanceResult{}, fmt.Errorf("whatsappqr: instance name is required")
	}
	payload := map[string]any{
		"instanceName": name,
		"qrcode":       true,
		"integration":  "WHATSAPP-BAILEYS",
	}
	if token := strings.TrimSpace(in.Token); token != "" {
		payload["token"] = token
	}
	if hook := strings.TrimSpace(in.WebhookURL); hook != "" {
		payload["webhook"] = map[string]any{
			"url":      hook,
			"headers":  map[string]string{"Content-Type": "application/json"},
			"events":   []string{"MESSAGES_UPSERT", "CONNECTION_UPDATE"},
			"byEvents": false,
		}
	}

	var decoded createInstanceResponse
	if err := c.do(ctx, http.MethodPost, "/instance/create", payload, &decoded); err != nil {
		return CreateInstanceResult{}, err
	}
	qr := strings.TrimSpace(decoded.QRCode.Base64)
	if qr == "" {
		qr = strings.TrimSpace(decoded.QRCode.Code)
	}
	instanceID := strings.TrimSpace(decoded.Instance.InstanceID)
	if instanceID == "" {
		instanceID = name
	}
	return CreateInstanceResult{InstanceID: instanceID, QRCode: qr}, nil
}

// DeleteInstance removes a session by name. A 404 from the gateway counts
// as success.
func (c *Client) DeleteInstance(ctx context.Context, instanceName string) error {
	name := strings.TrimSpace(instanceName)
	if name == "" {
		return fmt.Errorf("whatsappqr: instance name is required")
	}
	err := c.do(ctx, http.MethodDelete, "/instance/delete/"+name, nil, nil)
	if err != nil && strings.Contains(err.Error(), "status 404") {
		return nil
	}
	return err
}

type connectionStateResponse struct {
	Instance struct {
		InstanceName string `json:"instanceName"`
		State        string `json:"state"`
	} `json:"instance"`
	State string `json:"state"`
}

// ConnectionState returns the gateway's view of the session: open,
// connecting, or close.
func (c *Client) ConnectionState(ctx context.Context, instanceName string) (string, error) {
	name := strings.TrimSpace(instanceName)
	if name == "" {
		return "", fmt.Errorf("whatsappqr: instance name is required")
	}
	var decoded connectionStateResponse
	if err := c.do(ctx, http.MethodGet, "/instance/connectionState/"+name, nil, &decoded); err != nil {
		return "", err
	}
	state := strings.TrimSpace(decoded.Instance.State)
	if state == "" {
		state = strings.TrimSpace(decoded.State)
	}
	return strings.ToLower(state), nil
}

// SendText delivers a plain text message through a connected session.
func (c *Client) SendText(ctx context.Context, instanceName, number, text string) error {
	name := strings.TrimSpace(instanceName)
	if name == "" {
		return fmt.Errorf("whatsappqr: instance name is required")
	}
	number = strings.TrimSpace(number)
	if number == "" {
		return fmt.Errorf("whatsappqr: recipient number is required")
	}
	return c.do(ctx, http.MethodPost, "/message/sendText/"+name, map[string]any{
		"number": number,
		"text":   text,
	}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, payload map[string]any, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("whatsappqr: encode %s payload: %w", path, err)
		}
		body = bytes.NewReader(encoded)
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("whatsappqr: %s request failed: %w", path, err)
	}
	defer res.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(res.Body, maxAPIResponseBytes+1))
	if readErr != nil {
		return fmt.Errorf("whatsappqr: read %s response: %w", path, readErr)
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("whatsappqr: gateway returned status %d for %s", res.StatusCode, path)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("whatsappqr: decode %s response: %w", path, err)
	}
	return nil
}
