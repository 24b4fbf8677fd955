package core

import (
	"fmt"
	"strings"
)

type EncryptionConfig struct {
	// KeyFile points at a raw key file. Checked first.
	KeyFile string `koanf:"key_file" mapstructure:"key_file"`
	// Key is base64 or hex encoded key material. Checked second.
	Key string `koanf:"key" mapstructure:"key"`
	// Passphrase derives a key when no explicit key resolves.
	Passphrase string `koanf:"passphrase" mapstructure:"passphrase"`
}

type TelegramConfig struct {
	APIBaseURL    string `koanf:"api_base_url" mapstructure:"api_base_url"`
	WebhookSecret string `koanf:"webhook_secret" mapstructure:"webhook_secret"`
}

type WhatsAppCloudConfig struct {
	GraphBaseURL string `koanf:"graph_base_url" mapstructure:"graph_base_url"`
}

type EvolutionConfig struct {
	BaseURL string `koanf:"base_url" mapstructure:"base_url"`
	APIKey  string `koanf:"api_key" mapstructure:"api_key"`
}

type OutboxConfig struct {
	Exchange string `koanf:"exchange" mapstructure:"exchange"`
}

type Config struct {
	ServiceName string `koanf:"service_name" mapstructure:"service_name"`
	// Environment gates the insecure development fallbacks. The encryption
	// key resolution fails hard in "production" when no key source resolves.
	Environment string `koanf:"environment" mapstructure:"environment"`
	// PublicBaseURL is the externally reachable origin webhook URLs are
	// derived from.
	PublicBaseURL  string              `koanf:"public_base_url" mapstructure:"public_base_url"`
	RequestTimeout int                 `koanf:"request_timeout_seconds" mapstructure:"request_timeout_seconds"`
	ReplayTTL      int                 `koanf:"replay_ttl_seconds" mapstructure:"replay_ttl_seconds"`
	Encryption     EncryptionConfig    `koanf:"encryption" mapstructure:"encryption"`
	Telegram       TelegramConfig      `koanf:"telegram" mapstructure:"telegram"`
	WhatsAppCloud  WhatsAppCloudConfig `koanf:"whatsapp_cloud" mapstructure:"whatsapp_cloud"`
	Evolution      EvolutionConfig     `koanf:"evolution" mapstructure:"evolution"`
	Outbox         OutboxConfig        `koanf:"outbox" mapstructure:"outbox"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:    "channels",
		Environment:    "development",
		RequestTimeout: 15,
		ReplayTTL:      300,
		Telegram: TelegramConfig{
			APIBaseURL: "https://api.telegram.org",
		},
		WhatsAppCloud: WhatsAppCloudConfig{
			GraphBaseURL: "https://graph.facebook.com/v19.0",
		},
		Outbox: OutboxConfig{
			Exchange: "chat",
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("core: request_timeout_seconds must not be negative")
	}
	if c.ReplayTTL < 0 {
		return fmt.Errorf("core: replay_ttl_seconds must not be negative")
	}
	return nil
}

func (c Config) Production() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}
