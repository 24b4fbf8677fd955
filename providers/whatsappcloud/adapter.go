// Package whatsappcloud connects merchant numbers through Meta's WhatsApp
// Cloud API. Connect stores credentials and trusts Meta's webhook
// subscription handshake instead of a remote registration call, so the
// channel is optimistically connected.
package whatsappcloud

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-channels/core"
	"github.com/goliatone/go-channels/providers/whatsapp"
)

type Config struct {
	GraphBaseURL   string
	Vault          core.SecretVault
	HTTPClient     HTTPDoer
	RequestTimeout time.Duration
}

type Adapter struct {
	graph *graphClient
	vault core.SecretVault
	now   func() time.Time
}

var _ core.ChannelAdapter = (*Adapter)(nil)

func New(cfg Config) (*Adapter, error) {
	if cfg.Vault == nil {
		return nil, fmt.Errorf("whatsappcloud: secret vault is required")
	}
	return &Adapter{
		graph: newGraphClient(cfg.GraphBaseURL, cfg.HTTPClient, cfg.RequestTimeout),
		vault: cfg.Vault,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (a *Adapter) Provider() core.ChannelProvider {
	return core.ProviderWhatsAppCloud
}

// Connect validates and stores the Cloud API credentials. The access token
// and app secret are encrypted; the verify token is kept only as a hash for
// the subscription handshake.
func (a *Adapter) Connect(ctx context.Context, channel core.Channel, in core.ConnectInput) (core.ConnectResult, error) {
	if a == nil {
		return core.ConnectResult{}, fmt.Errorf("whatsappcloud: adapter is not configured")
	}

	accessToken := strings.TrimSpace(in.AccessToken)
	phoneNumberID := strings.TrimSpace(in.PhoneNumberID)
	if accessToken == "" && strings.TrimSpace(channel.AccessTokenEnc) == "" {
		return core.ConnectResult{}, fmt.Errorf("whatsappcloud: access token is required")
	}
	if phoneNumberID == "" && strings.TrimSpace(channel.PhoneNumberID) == "" {
		return core.ConnectResult{}, fmt.Errorf("whatsappcloud: phone number id is required")
	}

	if accessToken != "" {
		encrypted, err := a.vault.Encrypt(ctx, []byte(accessToken))
		if err != nil {
			return core.ConnectResult{}, fmt.Errorf("whatsappcloud: encrypt access token: %w", err)
		}
		channel.AccessTokenEnc = encrypted
	}
	if appSecret := strings.TrimSpace(in.AppSecret); appSecret != "" {
		encrypted, err := a.vault.Encrypt(ctx, []byte(appSecret))
		if err != nil {
			return core.ConnectResult{}, fmt.Errorf("whatsappcloud: encrypt app secret: %w", err)
		}
		channel.AppSecretEnc = encrypted
	}
	if verifyToken := strings.TrimSpace(in.VerifyToken); verifyToken != "" {
		channel.VerifyTokenHash = a.vault.Hash(verifyToken)
	}
	if phoneNumberID != "" {
		channel.PhoneNumberID = phoneNumberID
	}
	if wabaID := strings.TrimSpace(in.WabaID); wabaID != "" {
		channel.WabaID = wabaID
	}
	if label := strings.TrimSpace(in.AccountLabel); label != "" {
		channel.AccountLabel = label
	}

	if err := channel.TransitionTo(core.ChannelStatusConnected, "", a.now()); err != nil {
		return core.ConnectResult{}, err
	}
	return core.ConnectResult{Channel: channel}, nil
}

// Disconnect has no remote teardown; Meta stops delivering once the
// subscription is removed on their side.
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
	accessToken, err := a.storedAccessToken(ctx, channel)
	if err != nil {
		return err
	}
	return a.graph.sendPayload(ctx, accessToken, channel.PhoneNumberID, map[string]any{
		"messaging_product": "whatsapp",
		"to":                whatsapp.CleanJID(to),
		"type":              "text",
		"text":              map[string]any{"body": text},
	})
}

// SendTemplate delivers a pre-approved template message, the only outbound
// form Meta allows outside the 24 hour session window.
func (a *Adapter) SendTemplate(ctx context.Context, channel core.Channel, to, templateName, languageCode string, components []map[string]any) error {
	templateName = strings.TrimSpace(templateName)
	if templateName == "" {
		return fmt.Errorf("whatsappcloud: template name is required")
	}
	if strings.TrimSpace(languageCode) == "" {
		languageCode = "en"
	}
	accessToken, err := a.storedAccessToken(ctx, channel)
	if err != nil {
		return err
	}
	template := map[string]any{
		"name":     templateName,
		"language": map[string]any{"code": languageCode},
	}
	if len(components) > 0 {
		template["components"] = components
	}
	return a.graph.sendPayload(ctx, accessToken, channel.PhoneNumberID, map[string]any{
		"messaging_product": "whatsapp",
		"to":                whatsapp.CleanJID(to),
		"type":              "template",
		"template":          template,
	})
}

// SendMediaURL delivers a media message by public link. mediaType is one of
// image, document, audio, or video.
func (a *Adapter) SendMediaURL(ctx context.Context, channel core.Channel, to, mediaType, url, caption string) error {
	mediaType = strings.TrimSpace(strings.ToLower(mediaType))
	switch mediaType {
	case "image", "document", "audio", "video":
	default:
		return fmt.Errorf("whatsappcloud: unsupported media type %q", mediaType)
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return fmt.Errorf("whatsappcloud: media url is required")
	}
	accessToken, err := a.storedAccessToken(ctx, channel)
	if err != nil {
		return err
	}
	media := map[string]any{"link": url}
	if caption = strings.TrimSpace(caption); caption != "" && mediaType != "audio" {
		media["caption"] = caption
	}
	return a.graph.sendPayload(ctx, accessToken, channel.PhoneNumberID, map[string]any{
		"messaging_product": "whatsapp",
		"to":                whatsapp.CleanJID(to),
		"type":              mediaType,
		mediaType:           media,
	})
}

func (a *Adapter) storedAccessToken(ctx context.Context, channel core.Channel) (string, error) {
	if strings.TrimSpace(channel.AccessTokenEnc) == "" {
		return "", fmt.Errorf("whatsappcloud: channel has no stored access token")
	}
	token, err := a.vault.Decrypt(ctx, channel.AccessTokenEnc)
	if err != nil {
		return "", fmt.Errorf("whatsappcloud: decrypt access token: %w", err)
	}
	return strings.TrimSpace(string(token)), nil
}
