// Package whatsappqr connects WhatsApp through an Evolution API gateway
// session. The merchant pairs by scanning a QR code, so connect leaves the
// channel pending until the gateway reports the session open.
package whatsappqr

import (
	"context"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"

	"github.com/goliatone/go-channels/core"
	"github.com/goliatone/go-channels/providers/whatsapp"
)

const (
	stateOpen       = "open"
	stateConnecting = "connecting"
	stateClosed     = "close"
)

type Config struct {
	BaseURL        string
	APIKey         string
	Vault          core.SecretVault
	HTTPClient     HTTPDoer
	RequestTimeout time.Duration
	Logger         core.Logger
}

type Adapter struct {
	client *Client
	vault  core.SecretVault
	logger core.Logger
	now    func() time.Time
	// newToken is injectable for tests.
	newToken func() string
}

var _ core.ChannelAdapter = (*Adapter)(nil)

func New(cfg Config) (*Adapter, error) {
	if cfg.Vault == nil {
		return nil, fmt.Errorf("whatsappqr: secret vault is required")
	}
	client, err := NewClient(cfg.BaseURL, cfg.APIKey, cfg.HTTPClient, cfg.RequestTimeout)
	if err != nil {
		return nil, err
	}
	return &Adapter{
		client: client,
		vault:  cfg.Vault,
		logger: glog.Ensure(cfg.Logger),
		now: func() time.Time {
			return time.Now().UTC()
		},
		newToken: uuid.NewString,
	}, nil
}

func (a *Adapter) Provider() core.ChannelProvider {
	return core.ProviderWhatsAppQR
}

// Connect provisions a fresh gateway session named after the channel id. A
// stale session with the same name is deleted first so the QR code always
// belongs to the new pairing attempt. One synchronous state poll self-heals
// the case where the gateway connects before we return.
func (a *Adapter) Connect(ctx context.Context, channel core.Channel, in core.ConnectInput) (core.ConnectResult, error) {
	if a == nil {
		return core.ConnectResult{}, fmt.Errorf("whatsappqr: adapter is not configured")
	}
	instanceName := strings.TrimSpace(channel.ID)
	if instanceName == "" {
		return core.ConnectResult{}, fmt.Errorf("whatsappqr: channel id is required")
	}

	if err := a.client.DeleteInstance(ctx, instanceName); err != nil {
		a.logWarn(ctx, "stale session cleanup failed", channel, err)
	}

	token := a.newToken()
	created, err := a.client.CreateInstance(ctx, CreateInstanceInput{
		InstanceName: instanceName,
		Token:        token,
		WebhookURL:   channel.WebhookURL,
	})
	if err != nil {
		return core.ConnectResult{}, err
	}

	encrypted, err := a.vault.Encrypt(ctx, []byte(token))
	if err != nil {
		return core.ConnectResult{}, fmt.Errorf("whatsappqr: encrypt session token: %w", err)
	}
	channel.AccessTokenEnc = encrypted
	channel.SessionID = instanceName
	channel.InstanceID = created.InstanceID
	channel.QR = created.QRCode
	if label := strings.TrimSpace(in.AccountLabel); label != "" {
		channel.AccountLabel = label
	}
	if err := channel.TransitionTo(core.ChannelStatusPending, "", a.now()); err != nil {
		return core.ConnectResult{}, err
	}

	if state, stateErr := a.client.ConnectionState(ctx, instanceName); stateErr == nil && state == stateOpen {
		if err := channel.TransitionTo(core.ChannelStatusConnected, "", a.now()); err == nil {
			channel.QR = ""
		}
	}

	return core.ConnectResult{Channel: channel, QR: channel.QR}, nil
}

// Disconnect tears down the gateway session on a best-effort basis.
func (a *Adapter) Disconnect(ctx context.Context, channel core.Channel, mode core.DisconnectMode) (core.Channel, error) {
	if a == nil {
		return channel, nil
	}
	instanceName := strings.TrimSpace(channel.SessionID)
	if instanceName == "" {
		instanceName = strings.TrimSpace(channel.ID)
	}
	if instanceName != "" {
		if err := a.client.DeleteInstance(ctx, instanceName); err != nil {
			a.logWarn(ctx, "session delete failed", channel, err)
		}
	}
	channel.QR = ""
	return channel, nil
}

// Refresh re-provisions the session, which issues a new QR code.
func (a *Adapter) Refresh(ctx context.Context, channel core.Channel) (core.Channel, error) {
	result, err := a.Connect(ctx, channel, core.ConnectInput{})
	if err != nil {
		return channel, err
	}
	return result.Channel, nil
}

// Status polls the gateway and reconciles the stored state. An open session
// clears the QR code; a closed one degrades the channel to error.
func (a *Adapter) Status(ctx context.Context, channel core.Channel) (core.Channel, error) {
	instanceName := strings.TrimSpace(channel.SessionID)
	if instanceName == "" {
		instanceName = strings.TrimSpace(channel.ID)
	}
	state, err := a.client.ConnectionState(ctx, instanceName)
	if err != nil {
		return channel, err
	}

	switch state {
	case stateOpen:
		if channel.Status != core.ChannelStatusConnected {
			if err := channel.TransitionTo(core.ChannelStatusConnected, "", a.now()); err != nil {
				return channel, err
			}
		}
		channel.QR = ""
	case stateConnecting:
		if channel.Status != core.ChannelStatusPending && channel.Status != core.ChannelStatusConnected {
			if err := channel.TransitionTo(core.ChannelStatusPending, "", a.now()); err != nil {
				return channel, err
			}
		}
	case stateClosed:
		if channel.Status != core.ChannelStatusError {
			if err := channel.TransitionTo(core.ChannelStatusError, "gateway session closed", a.now()); err != nil {
				return channel, err
			}
		}
	}
	return channel, nil
}

func (a *Adapter) SendMessage(ctx context.Context, channel core.Channel, to, text string) error {
	instanceName := strings.TrimSpace(channel.SessionID)
	if instanceName == "" {
		instanceName = strings.TrimSpace(channel.ID)
	}
	if instanceName == "" {
		return fmt.Errorf("whatsappqr: channel has no gateway session")
	}
	number := whatsapp.CleanJID(to)
	if number == "" {
		return fmt.Errorf("whatsappqr: recipient number is required")
	}
	return a.client.SendText(ctx, instanceName, number, text)
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
			"provider":   core.ProviderWhatsAppQR,
			"channel_id": channel.ID,
			"error":      err.Error(),
		}))
	}
	logger.Warn("whatsappqr: " + message)
}
