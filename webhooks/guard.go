package webhooks

import (
	"context"
	"fmt"
	"strings"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-channels/core"
)

// Resolved is a webhook request that passed the security boundary.
type Resolved struct {
	Channel    core.Channel
	MerchantID string
}

// SignatureGuard resolves the target channel for a delivery and verifies
// the provider's authentication scheme against it. It fails closed: any
// doubt rejects the request.
type SignatureGuard struct {
	Channels core.ChannelStore
	Vault    core.SecretVault
	// TelegramSecret is the deployment-wide secret token handed to
	// setWebhook. When unset every Telegram delivery is rejected.
	TelegramSecret string
	// EvolutionAPIKey authenticates deliveries from the WhatsApp QR
	// gateway. When unset every QR delivery is rejected.
	EvolutionAPIKey string
	Logger          core.Logger
}

func NewSignatureGuard(channels core.ChannelStore, vault core.SecretVault, cfg core.Config, logger core.Logger) *SignatureGuard {
	return &SignatureGuard{
		Channels:        channels,
		Vault:           vault,
		TelegramSecret:  strings.TrimSpace(cfg.Telegram.WebhookSecret),
		EvolutionAPIKey: strings.TrimSpace(cfg.Evolution.APIKey),
		Logger:          glog.Ensure(logger),
	}
}

// Authorize loads the routed channel and runs the provider's verification.
func (g *SignatureGuard) Authorize(ctx context.Context, route Route, req core.InboundRequest) (Resolved, error) {
	resolved, err := g.Resolve(ctx, route)
	if err != nil {
		return Resolved{}, err
	}
	if err := g.verify(ctx, resolved.Channel, req); err != nil {
		g.logRejection(ctx, route, "verification failed", err)
		return Resolved{}, err
	}
	return resolved, nil
}

// Resolve runs the route checks without signature verification. The Meta
// subscription handshake needs the channel record before any signature
// exists to verify.
func (g *SignatureGuard) Resolve(ctx context.Context, route Route) (Resolved, error) {
	if g == nil || g.Channels == nil {
		return Resolved{}, fmt.Errorf("webhooks: signature guard requires a channel store")
	}

	channel, err := g.Channels.GetWithSecrets(ctx, route.ChannelID)
	if err != nil {
		g.logRejection(ctx, route, "channel lookup failed", err)
		return Resolved{}, fmt.Errorf("webhooks: %s", core.ReasonChannelNotAvailable)
	}
	if !channel.Available() {
		g.logRejection(ctx, route, "channel disabled or deleted", nil)
		return Resolved{}, fmt.Errorf("webhooks: %s", core.ReasonChannelNotAvailable)
	}
	if channel.Provider != route.Provider {
		g.logRejection(ctx, route, "provider mismatch", nil)
		return Resolved{}, fmt.Errorf("webhooks: %s", core.ReasonProviderMismatch)
	}
	return Resolved{Channel: channel, MerchantID: channel.MerchantID}, nil
}

func (g *SignatureGuard) verify(ctx context.Context, channel core.Channel, req core.InboundRequest) error {
	switch channel.Provider {
	case core.ProviderTelegram:
		return HeaderTokenVerifier{
			Header: "x-telegram-bot-api-secret-token",
			Token:  g.TelegramSecret,
		}.Verify(ctx, req)
	case core.ProviderWhatsAppCloud:
		if g.Vault == nil {
			return fmt.Errorf("webhooks: %s: vault is not configured", core.ReasonSignatureFailed)
		}
		if strings.TrimSpace(channel.AppSecretEnc) == "" {
			return fmt.Errorf("webhooks: %s: channel has no app secret", core.ReasonSignatureFailed)
		}
		appSecret, err := g.Vault.Decrypt(ctx, channel.AppSecretEnc)
		if err != nil {
			return fmt.Errorf("webhooks: %s: app secret decrypt failed", core.ReasonSignatureFailed)
		}
		return HeaderHMACVerifier{
			Header:   "x-hub-signature-256",
			Prefix:   "sha256=",
			Secret:   string(appSecret),
			Encoding: "hex",
		}.Verify(ctx, req)
	case core.ProviderWhatsAppQR:
		return HeaderTokenVerifier{
			Header:     "x-evolution-apikey",
			AltHeaders: []string{"apikey"},
			Token:      g.EvolutionAPIKey,
		}.Verify(ctx, req)
	case core.ProviderWebchat:
		return nil
	default:
		return fmt.Errorf("webhooks: %s: no verification scheme for provider %s", core.ReasonSignatureFailed, channel.Provider)
	}
}

func (g *SignatureGuard) logRejection(ctx context.Context, route Route, message string, err error) {
	if g == nil || g.Logger == nil {
		return
	}
	fields := map[string]any{
		"provider":   route.Provider,
		"channel_id": route.ChannelID,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	logger := g.Logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(core.FieldsLogger); ok {
		logger = fieldsLogger.WithFields(core.RedactSensitiveMap(fields))
	}
	logger.Warn("webhook rejected: " + message)
}
