package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

func DefaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return channelsErrorMapper(err)
}

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}
	if includeZero || strings.TrimSpace(cfg.Environment) != "" {
		layer["environment"] = cfg.Environment
	}
	if includeZero || strings.TrimSpace(cfg.PublicBaseURL) != "" {
		layer["public_base_url"] = cfg.PublicBaseURL
	}
	if includeZero || cfg.RequestTimeout > 0 {
		layer["request_timeout_seconds"] = cfg.RequestTimeout
	}
	if includeZero || cfg.ReplayTTL > 0 {
		layer["replay_ttl_seconds"] = cfg.ReplayTTL
	}
	if includeZero ||
		strings.TrimSpace(cfg.Encryption.KeyFile) != "" ||
		strings.TrimSpace(cfg.Encryption.Key) != "" ||
		strings.TrimSpace(cfg.Encryption.Passphrase) != "" {
		layer["encryption"] = map[string]any{
			"key_file":   cfg.Encryption.KeyFile,
			"key":        cfg.Encryption.Key,
			"passphrase": cfg.Encryption.Passphrase,
		}
	}
	if includeZero ||
		strings.TrimSpace(cfg.Telegram.APIBaseURL) != "" ||
		strings.TrimSpace(cfg.Telegram.WebhookSecret) != "" {
		layer["telegram"] = map[string]any{
			"api_base_url":   cfg.Telegram.APIBaseURL,
			"webhook_secret": cfg.Telegram.WebhookSecret,
		}
	}
	if includeZero || strings.TrimSpace(cfg.WhatsAppCloud.GraphBaseURL) != "" {
		layer["whatsapp_cloud"] = map[string]any{
			"graph_base_url": cfg.WhatsAppCloud.GraphBaseURL,
		}
	}
	if includeZero ||
		strings.TrimSpace(cfg.Evolution.BaseURL) != "" ||
		strings.TrimSpace(cfg.Evolution.APIKey) != "" {
		layer["evolution"] = map[string]any{
			"base_url": cfg.Evolution.BaseURL,
			"api_key":  cfg.Evolution.APIKey,
		}
	}
	if includeZero || strings.TrimSpace(cfg.Outbox.Exchange) != "" {
		layer["outbox"] = map[string]any{
			"exchange": cfg.Outbox.Exchange,
		}
	}
	return layer
}
