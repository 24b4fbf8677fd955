// Package webchat serves the merchant's embedded site widget. There is no
// remote transport to handshake with: connect flips local state and
// outbound delivery goes through the realtime gateway.
package webchat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-channels/core"
)

type Config struct {
	Gateway core.RealtimeGateway
}

type Adapter struct {
	gateway core.RealtimeGateway
	now     func() time.Time
}

var _ core.ChannelAdapter = (*Adapter)(nil)

func New(cfg Config) (*Adapter, error) {
	return &Adapter{
		gateway: cfg.Gateway,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (a *Adapter) Provider() core.ChannelProvider {
	return core.ProviderWebchat
}

func (a *Adapter) Connect(_ context.Context, channel core.Channel, in core.ConnectInput) (core.ConnectResult, error) {
	if a == nil {
		return core.ConnectResult{}, fmt.Errorf("webchat: adapter is not configured")
	}
	if label := strings.TrimSpace(in.AccountLabel); label != "" {
		channel.AccountLabel = label
	}
	if len(in.Metadata) > 0 {
		if channel.WidgetSettings == nil {
			channel.WidgetSettings = map[string]any{}
		}
		for key, value := range in.Metadata {
			channel.WidgetSettings[key] = value
		}
	}
	channel.Enabled = true
	if err := channel.TransitionTo(core.ChannelStatusConnected, "", a.now()); err != nil {
		return core.ConnectResult{}, err
	}
	return core.ConnectResult{Channel: channel}, nil
}

func (a *Adapter) Disconnect(_ context.Context, channel core.Channel, _ core.DisconnectMode) (core.Channel, error) {
	return channel, nil
}

func (a *Adapter) Refresh(_ context.Context, channel core.Channel) (core.Channel, error) {
	return channel, nil
}

func (a *Adapter) Status(_ context.Context, channel core.Channel) (core.Channel, error) {
	return channel, nil
}

func (a *Adapter) SendMessage(ctx context.Context, channel core.Channel, to, text string) error {
	if a == nil || a.gateway == nil {
		return fmt.Errorf("webchat: realtime gateway is not configured")
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return fmt.Errorf("webchat: session id is required")
	}
	return a.gateway.PushToSession(ctx, channel.MerchantID, to, text, map[string]any{
		"channel_id": channel.ID,
	})
}

type widgetMessage struct {
	SessionID string `json:"session_id"`
	From      string `json:"from"`
	MessageID string `json:"message_id"`
	Text      string `json:"text"`
	VisitorID string `json:"visitor_id"`
}

// HandleWebhook accepts the widget's message post. The widget speaks our
// own schema, so normalization is a field mapping.
func (a *Adapter) HandleWebhook(_ context.Context, channel core.Channel, req core.InboundRequest) ([]core.IncomingMessage, error) {
	var payload widgetMessage
	if err := json.Unmarshal(req.Body, &payload); err != nil {
		return nil, fmt.Errorf("webchat: decode widget message: %w", err)
	}
	sessionID := strings.TrimSpace(payload.SessionID)
	if sessionID == "" {
		sessionID = strings.TrimSpace(payload.From)
	}
	text := strings.TrimSpace(payload.Text)
	if sessionID == "" || text == "" {
		return nil, fmt.Errorf("webchat: session id and text are required")
	}

	metadata := map[string]any{}
	if visitor := strings.TrimSpace(payload.VisitorID); visitor != "" {
		metadata["visitor_id"] = visitor
	}
	message := core.IncomingMessage{
		Provider:   core.ProviderWebchat,
		ChannelID:  channel.ID,
		MerchantID: channel.MerchantID,
		From:       sessionID,
		Text:       text,
		Metadata:   metadata,
	}
	if messageID := strings.TrimSpace(payload.MessageID); messageID != "" {
		message.SourceID = &messageID
	}
	return []core.IncomingMessage{message}, nil
}
