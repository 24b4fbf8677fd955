package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/goliatone/go-channels/core"
)

type Verifier interface {
	Verify(ctx context.Context, req core.InboundRequest) error
}

// HeaderHMACVerifier checks an HMAC-SHA256 body signature carried in a
// request header, optionally prefixed (Meta uses "sha256=").
type HeaderHMACVerifier struct {
	Header   string
	Prefix   string
	Secret   string
	Encoding string // hex | base64
}

func (v HeaderHMACVerifier) Verify(_ context.Context, req core.InboundRequest) error {
	if len(req.Body) == 0 {
		return fmt.Errorf("webhooks: %s: raw request body is required", core.ReasonSignatureFailed)
	}
	header := strings.TrimSpace(headerValue(req.Headers, v.Header))
	if header == "" {
		return fmt.Errorf("webhooks: %s: %s header is required", core.ReasonSignatureFailed, strings.TrimSpace(v.Header))
	}
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return fmt.Errorf("webhooks: %s: signing secret is required", core.ReasonSignatureFailed)
	}
	signature := strings.TrimPrefix(header, strings.TrimSpace(v.Prefix))
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return fmt.Errorf("webhooks: %s: signature value is required", core.ReasonSignatureFailed)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(req.Body)
	expected := mac.Sum(nil)

	var decoded []byte
	var err error
	switch strings.ToLower(strings.TrimSpace(v.Encoding)) {
	case "base64":
		decoded, err = base64.StdEncoding.DecodeString(signature)
	default:
		decoded, err = hex.DecodeString(signature)
	}
	if err != nil {
		return fmt.Errorf("webhooks: %s: malformed signature", core.ReasonSignatureFailed)
	}
	if subtle.ConstantTimeCompare(decoded, expected) != 1 {
		return fmt.Errorf("webhooks: %s", core.ReasonSignatureFailed)
	}
	return nil
}

// HeaderTokenVerifier checks a shared secret carried verbatim in a header.
// Telegram's secret token and the Evolution gateway API key work this way.
type HeaderTokenVerifier struct {
	Header string
	Token  string
	// AltHeaders are checked when the primary header is absent.
	AltHeaders []string
}

func (v HeaderTokenVerifier) Verify(_ context.Context, req core.InboundRequest) error {
	expected := strings.TrimSpace(v.Token)
	if expected == "" {
		return fmt.Errorf("webhooks: %s: verification token is required", core.ReasonSignatureFailed)
	}
	actual := strings.TrimSpace(headerValue(req.Headers, v.Header))
	if actual == "" {
		for _, alt := range v.AltHeaders {
			if actual = strings.TrimSpace(headerValue(req.Headers, alt)); actual != "" {
				break
			}
		}
	}
	if actual == "" {
		return fmt.Errorf("webhooks: %s: %s header is required", core.ReasonSignatureFailed, strings.TrimSpace(v.Header))
	}
	if subtle.ConstantTimeCompare([]byte(actual), []byte(expected)) != 1 {
		return fmt.Errorf("webhooks: %s", core.ReasonSignatureFailed)
	}
	return nil
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
