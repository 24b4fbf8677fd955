package core

import (
	"fmt"
	"strings"
)

// WebhookURL builds the public callback URL a provider should deliver to.
// The base may or may not include the /webhooks segment already; the result
// always has exactly one.
func WebhookURL(publicBaseURL string, provider ChannelProvider, channelID string) (string, error) {
	base := strings.TrimSpace(publicBaseURL)
	if base == "" {
		return "", fmt.Errorf("core: public base url is required")
	}
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return "", fmt.Errorf("core: channel id is required")
	}
	if !provider.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidProvider, provider)
	}
	base = strings.TrimRight(base, "/")
	if !strings.HasSuffix(base, "/webhooks") {
		base += "/webhooks"
	}
	return fmt.Sprintf("%s/%s/%s", base, provider, channelID), nil
}
