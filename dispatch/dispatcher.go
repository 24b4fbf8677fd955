// Package dispatch routes outbound replies onto whichever transport the
// merchant has connected for a logical channel.
package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-channels/core"
)

// DashboardTestChannel lets the merchant dashboard exercise the reply path
// without a provider transport; deliveries go straight to the realtime
// gateway.
const DashboardTestChannel = "dashboard-test"

type Dispatcher struct {
	Channels core.ChannelDefaultsReader
	Registry *core.AdapterRegistry
	Gateway  core.RealtimeGateway
	Logger   core.Logger
	Now      func() time.Time
}

func NewDispatcher(channels core.ChannelDefaultsReader, registry *core.AdapterRegistry, gateway core.RealtimeGateway, logger core.Logger) *Dispatcher {
	return &Dispatcher{
		Channels: channels,
		Registry: registry,
		Gateway:  gateway,
		Logger:   glog.Ensure(logger),
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Send delivers one reply. The logical channel picks the transport:
// webchat and dashboard-test push through the realtime gateway, telegram
// goes to the merchant's default bot, and whatsapp tries the Cloud API
// channel first with a one-shot fallback to the QR gateway session.
func (d *Dispatcher) Send(ctx context.Context, merchantID, channel, sessionID, text string) error {
	if d == nil {
		return transportNotConfigured("dispatcher is not configured")
	}
	merchantID = strings.TrimSpace(merchantID)
	sessionID = strings.TrimSpace(sessionID)
	if merchantID == "" || sessionID == "" {
		return goerrors.New("dispatch: merchant id and session id are required", goerrors.CategoryBadInput).
			WithCode(http.StatusBadRequest).
			WithTextCode(core.ChannelsErrorBadInput)
	}

	switch strings.TrimSpace(strings.ToLower(channel)) {
	case string(core.ProviderWebchat), DashboardTestChannel:
		return d.sendRealtime(ctx, merchantID, sessionID, text)
	case string(core.ProviderTelegram):
		return d.sendVia(ctx, merchantID, core.ProviderTelegram, sessionID, text)
	case "whatsapp":
		return d.sendWhatsApp(ctx, merchantID, sessionID, text)
	default:
		return transportNotConfigured(fmt.Sprintf("no transport for channel %q", channel))
	}
}

func (d *Dispatcher) sendRealtime(ctx context.Context, merchantID, sessionID, text string) error {
	if d.Gateway == nil {
		return transportNotConfigured("realtime gateway is not wired")
	}
	return d.Gateway.PushToSession(ctx, merchantID, sessionID, text, nil)
}

func (d *Dispatcher) sendVia(ctx context.Context, merchantID string, provider core.ChannelProvider, sessionID, text string) error {
	channel, err := d.resolveDefault(ctx, merchantID, provider)
	if err != nil {
		return err
	}
	adapter, err := d.Registry.Get(provider)
	if err != nil {
		return transportNotConfigured(fmt.Sprintf("no %s adapter registered", provider))
	}
	return adapter.SendMessage(ctx, channel, sessionID, text)
}

// sendWhatsApp prefers the Cloud API transport and falls back to the QR
// gateway session on any cloud failure. The fallback is one-shot and
// synchronous; a queued retry would reorder the conversation.
func (d *Dispatcher) sendWhatsApp(ctx context.Context, merchantID, sessionID, text string) error {
	cloudErr := d.sendVia(ctx, merchantID, core.ProviderWhatsAppCloud, sessionID, text)
	if cloudErr == nil {
		return nil
	}
	d.logWarn(ctx, "cloud delivery failed, trying qr gateway", map[string]any{
		"merchant_id": merchantID,
		"session_id":  sessionID,
		"error":       cloudErr.Error(),
	})

	qrErr := d.sendVia(ctx, merchantID, core.ProviderWhatsAppQR, sessionID, text)
	if qrErr == nil {
		return nil
	}
	if isTransportNotConfigured(cloudErr) && isTransportNotConfigured(qrErr) {
		return transportNotConfigured("no whatsapp transport is connected")
	}
	return fmt.Errorf("dispatch: whatsapp delivery failed on both transports: cloud: %v; qr: %w", cloudErr, qrErr)
}

func (d *Dispatcher) resolveDefault(ctx context.Context, merchantID string, provider core.ChannelProvider) (core.Channel, error) {
	if d.Channels == nil || d.Registry == nil {
		return core.Channel{}, transportNotConfigured("dispatcher is not configured")
	}
	channel, err := d.Channels.FindDefault(ctx, merchantID, provider)
	if err != nil {
		if core.IsNotFound(err) {
			return core.Channel{}, transportNotConfigured(fmt.Sprintf("no default %s channel", provider))
		}
		return core.Channel{}, err
	}
	if !channel.Available() || channel.Status != core.ChannelStatusConnected {
		return core.Channel{}, transportNotConfigured(fmt.Sprintf("%s channel is not connected", provider))
	}
	return channel, nil
}

func transportNotConfigured(detail string) error {
	return goerrors.New(
		fmt.Sprintf("dispatch: %s: %s", core.ReasonTransportNotConfigured, detail),
		goerrors.CategoryOperation,
	).
		WithCode(http.StatusServiceUnavailable).
		WithTextCode(core.ChannelsErrorTransportNotConfigured)
}

func isTransportNotConfigured(err error) bool {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == core.ChannelsErrorTransportNotConfigured
	}
	return false
}

func (d *Dispatcher) logWarn(ctx context.Context, message string, fields map[string]any) {
	if d == nil || d.Logger == nil {
		return
	}
	logger := d.Logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(core.FieldsLogger); ok {
		logger = fieldsLogger.WithFields(core.RedactSensitiveMap(fields))
	}
	logger.Warn("dispatch: " + message)
}
