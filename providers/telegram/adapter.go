// Package telegram connects merchant bots to the Telegram Bot API. Webhook
// registration happens on connect; the bot token is stored encrypted and
// only decrypted for the duration of a remote call.
package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-channels/core"
)

type Config struct {
	APIBaseURL string
	// WebhookSecret is handed to setWebhook as the secret_token Telegram
	// echoes back on every delivery.
	WebhookSecret  string
	Vault          core.SecretVault
	HTTPClient     HTTPDoer
	RequestTimeout time.Duration
	Logger         core.Logger
}

type Adapter struct {
	api           *botAPI
	vault         core.SecretVault
	webhookSecret string
	logger        core.Logger
	now           func() time.Time
}

var _ core.ChannelAdapter = (*Adapter)(nil)

func New(cfg Config) (*Adapter, error) {
	if cfg.Vault == nil {
		return nil, fmt.Errorf("telegram: secret vault is required")
	}
	return &Adapter{
		api:           newBotAPI(cfg.APIBaseURL, cfg.HTTPClient, cfg.RequestTimeout),
		vault:         cfg.Vault,
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		logger:        glog.Ensure(cfg.Logger),
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (a *Adapter) Provider() core.ChannelProvider {
	return core.ProviderTelegram
}

// Connect registers the channel's webhook with Telegram and transitions the
// channel to connected. A token must be supplied on first connect; later
// reconnects reuse the stored one.
func (a *Adapter) Connect(ctx context.Context, channel core.Channel, in core.ConnectInput) (core.ConnectResult, error) {
	if a == nil {
		return core.ConnectResult{}, fmt.Errorf("telegram: adapter is not configured")
	}

	token := strings.TrimSpace(in.BotToken)
	if token == "" {
		stored, err := a.storedToken(ctx, channel)
		if err != nil {
			return core.ConnectResult{}, err
		}
		token = stored
	}
	if token == "" {
		return core.ConnectResult{}, fmt.Errorf("telegram: bot token is required")
	}
	if strings.TrimSpace(channel.WebhookURL) == "" {
		return core.ConnectResult{}, fmt.Errorf("telegram: webhook url is not configured")
	}

	if err := a.api.setWebhook(ctx, token, channel.WebhookURL, a.webhookSecret); err != nil {
		return core.ConnectResult{}, err
	}

	encrypted, err := a.vault.Encrypt(ctx, []byte(token))
	if err != nil {
		return core.ConnectResult{}, fmt.Errorf("telegram: encrypt bot token: %w", err)
	}
	channel.BotTokenEnc = encrypted
	if label := strings.TrimSpace(in.AccountLabel); label != "" {
		channel.AccountLabel = label
	}
	if err := channel.TransitionTo(core.ChannelStatusConnected, "", a.now()); err != nil {
		return core.ConnectResult{}, err
	}
	return core.ConnectResult{Channel: channel}, nil
}

// Disconnect removes the remote webhook on a best-effort basis. Remote
// failure never blocks local teardown.
func (a *Adapter) Disconnect(ctx context.Context, channel core.Channel, mode core.DisconnectMode) (core.Channel, error) {
	if a == nil {
		return channel, nil
	}
	token, err := a.storedToken(ctx, channel)
	if err != nil || token == "" {
		if err != nil {
			a.logWarn(ctx, "webhook removal skipped", channel, err)
		}
		return channel, nil
	}
	if err := a.api.deleteWebhook(ctx, token); err != nil {
		a.logWarn(ctx, "webhook removal failed", channel, err)
	}
	return channel, nil
}

// Refresh re-registers the webhook with the stored token.
func (a *Adapter) Refresh(ctx context.Context, channel core.Channel) (core.Channel, error) {
	token, err := a.storedToken(ctx, channel)
	if err != nil {
		return channel, err
	}
	if token == "" {
		return channel, fmt.Errorf("telegram: channel has no stored bot token")
	}
	if strings.TrimSpace(channel.WebhookURL) == "" {
		return channel, fmt.Errorf("telegram: webhook url is not configured")
	}
	if err := a.api.setWebhook(ctx, token, channel.WebhookURL, a.webhookSecret); err != nil {
		return channel, err
	}
	if err := channel.TransitionTo(core.ChannelStatusConnected, "", a.now()); err != nil {
		return channel, err
	}
	return channel, nil
}

// Status reports the locally tracked state. Telegram webhooks have no
// asynchronous handshake to poll.
func (a *Adapter) Status(_ context.Context, channel core.Channel) (core.Channel, error) {
	return channel, nil
}

func (a *Adapter) SendMessage(ctx context.Context, channel core.Channel, to, text string) error {
	token, err := a.storedToken(ctx, channel)
	if err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("telegram: channel has no stored bot token")
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return fmt.Errorf("telegram: recipient chat id is required")
	}
	return a.api.sendMessage(ctx, token, to, text)
}

func (a *Adapter) storedToken(ctx context.Context, channel core.Channel) (string, error) {
	if strings.TrimSpace(channel.BotTokenEnc) == "" {
		return "", nil
	}
	token, err := a.vault.Decrypt(ctx, channel.BotTokenEnc)
	if err != nil {
		return "", fmt.Errorf("telegram: decrypt bot token: %w", err)
	}
	return strings.TrimSpace(string(token)), nil
}

func (a *Adapter) logWarn(ctx context.Context, message string, channel core.Channel, err error) {
	if a == nil || a.logger == nil {
		return
	}
	logger := a.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(core.FieldsLogger); ok {
		logger = fieldsLogger.WithFields(core.RedactSensitiveMap(map[string]any{
			"provider":   core.ProviderTelegram,
			"channel_id": channel.ID,
			"error":      err.Error(),
		}))
	}
	logger.Warn("telegram: " + message)
}
