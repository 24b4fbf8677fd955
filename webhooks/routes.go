package webhooks

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-channels/core"
)

// Route identifies the channel a webhook delivery targets.
type Route struct {
	Provider  core.ChannelProvider
	ChannelID string
}

// DetectRoute parses a callback path of the form
// .../webhooks/{provider}/{channelID}. Anything else is an unknown route.
func DetectRoute(path string) (Route, error) {
	trimmed := strings.Trim(strings.TrimSpace(path), "/")
	if trimmed == "" {
		return Route{}, unknownRouteError(path)
	}
	segments := strings.Split(trimmed, "/")
	anchor := -1
	for i, segment := range segments {
		if strings.EqualFold(segment, "webhooks") {
			anchor = i
		}
	}
	if anchor < 0 || anchor+2 >= len(segments) {
		return Route{}, unknownRouteError(path)
	}

	provider, err := core.ParseProvider(segments[anchor+1])
	if err != nil {
		return Route{}, unknownRouteError(path)
	}
	channelID := strings.TrimSpace(segments[anchor+2])
	if channelID == "" {
		return Route{}, unknownRouteError(path)
	}
	return Route{Provider: provider, ChannelID: channelID}, nil
}

func unknownRouteError(path string) error {
	return fmt.Errorf("webhooks: %s: %s", core.ReasonUnknownRoute, strings.TrimSpace(path))
}
