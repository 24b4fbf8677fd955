package webhooks

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-channels/core"
)

// SubscriptionChallenge resolves Meta's GET verification handshake for a
// WhatsApp Cloud channel. The caller echoes the returned challenge verbatim
// with a 200 status.
func SubscriptionChallenge(vault core.SecretVault, channel core.Channel, query map[string]string) (string, error) {
	if vault == nil {
		return "", fmt.Errorf("webhooks: %s: vault is not configured", core.ReasonSignatureFailed)
	}
	mode := strings.TrimSpace(queryValue(query, "hub.mode"))
	if !strings.EqualFold(mode, "subscribe") {
		return "", fmt.Errorf("webhooks: %s: unsupported hub.mode %q", core.ReasonSignatureFailed, mode)
	}
	token := strings.TrimSpace(queryValue(query, "hub.verify_token"))
	if token == "" {
		return "", fmt.Errorf("webhooks: %s: hub.verify_token is required", core.ReasonSignatureFailed)
	}
	if strings.TrimSpace(channel.VerifyTokenHash) == "" {
		return "", fmt.Errorf("webhooks: %s: channel has no verify token", core.ReasonSignatureFailed)
	}
	if vault.Hash(token) != channel.VerifyTokenHash {
		return "", fmt.Errorf("webhooks: %s", core.ReasonSignatureFailed)
	}
	challenge := strings.TrimSpace(queryValue(query, "hub.challenge"))
	if challenge == "" {
		return "", fmt.Errorf("webhooks: %s: hub.challenge is required", core.ReasonSignatureFailed)
	}
	return challenge, nil
}

// IsSubscriptionRequest reports whether the request is Meta's GET
// verification handshake rather than an event delivery.
func IsSubscriptionRequest(req core.InboundRequest) bool {
	if !strings.EqualFold(strings.TrimSpace(req.Method), "GET") {
		return false
	}
	return strings.TrimSpace(queryValue(req.Query, "hub.mode")) != ""
}

func queryValue(query map[string]string, key string) string {
	if len(query) == 0 {
		return ""
	}
	if value, ok := query[key]; ok {
		return value
	}
	for existing, value := range query {
		if strings.EqualFold(existing, key) {
			return value
		}
	}
	return ""
}
