package core

import "testing"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ServiceName != "channels" {
		t.Fatalf("unexpected service name: %s", cfg.ServiceName)
	}
	if cfg.Telegram.APIBaseURL != "https://api.telegram.org" {
		t.Fatalf("unexpected telegram base url: %s", cfg.Telegram.APIBaseURL)
	}
	if cfg.WhatsAppCloud.GraphBaseURL != "https://graph.facebook.com/v19.0" {
		t.Fatalf("unexpected graph base url: %s", cfg.WhatsAppCloud.GraphBaseURL)
	}
	if cfg.Outbox.Exchange != "chat" {
		t.Fatalf("unexpected exchange: %s", cfg.Outbox.Exchange)
	}
	if cfg.ReplayTTL != 300 {
		t.Fatalf("unexpected replay ttl: %d", cfg.ReplayTTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ServiceName = "  "
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected empty service name to fail")
	}

	cfg = DefaultConfig()
	cfg.ReplayTTL = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected negative replay ttl to fail")
	}
}

func TestConfigProduction(t *testing.T) {
	cfg := Config{Environment: " Production "}
	if !cfg.Production() {
		t.Fatal("expected production detection")
	}
	if (Config{Environment: "development"}).Production() {
		t.Fatal("expected development to not be production")
	}
}
