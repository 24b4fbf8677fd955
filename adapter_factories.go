package channels

import (
	"time"

	"github.com/goliatone/go-channels/core"
	"github.com/goliatone/go-channels/providers/telegram"
	"github.com/goliatone/go-channels/providers/webchat"
	"github.com/goliatone/go-channels/providers/whatsappcloud"
	"github.com/goliatone/go-channels/providers/whatsappqr"
)

func TelegramAdapter(cfg telegram.Config) (core.ChannelAdapter, error) {
	return telegram.New(cfg)
}

func WhatsAppCloudAdapter(cfg whatsappcloud.Config) (core.ChannelAdapter, error) {
	return whatsappcloud.New(cfg)
}

func WhatsAppQRAdapter(cfg whatsappqr.Config) (core.ChannelAdapter, error) {
	return whatsappqr.New(cfg)
}

func WebchatAdapter(cfg webchat.Config) (core.ChannelAdapter, error) {
	return webchat.New(cfg)
}

// BuiltinAdapters constructs the stock transport adapters from service
// configuration. The webchat adapter is only included when a realtime
// gateway is present; the whatsapp gateway adapter only when an Evolution
// endpoint is configured.
func BuiltinAdapters(cfg core.Config, vault core.SecretVault, gateway core.RealtimeGateway, logger core.Logger) ([]core.ChannelAdapter, error) {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second

	adapters := []core.ChannelAdapter{}

	tg, err := TelegramAdapter(telegram.Config{
		APIBaseURL:     cfg.Telegram.APIBaseURL,
		WebhookSecret:  cfg.Telegram.WebhookSecret,
		Vault:          vault,
		RequestTimeout: timeout,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}
	adapters = append(adapters, tg)

	cloud, err := WhatsAppCloudAdapter(whatsappcloud.Config{
		GraphBaseURL:   cfg.WhatsAppCloud.GraphBaseURL,
		Vault:          vault,
		RequestTimeout: timeout,
	})
	if err != nil {
		return nil, err
	}
	adapters = append(adapters, cloud)

	if cfg.Evolution.BaseURL != "" {
		qr, err := WhatsAppQRAdapter(whatsappqr.Config{
			BaseURL:        cfg.Evolution.BaseURL,
			APIKey:         cfg.Evolution.APIKey,
			Vault:          vault,
			RequestTimeout: timeout,
			Logger:         logger,
		})
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, qr)
	}

	if gateway != nil {
		web, err := WebchatAdapter(webchat.Config{Gateway: gateway})
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, web)
	}

	return adapters, nil
}
