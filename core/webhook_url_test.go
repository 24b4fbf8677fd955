package core

import "testing"

func TestWebhookURL(t *testing.T) {
	cases := []struct {
		name    string
		base    string
		want    string
		wantErr bool
	}{
		{"plain base", "https://api.example.com", "https://api.example.com/webhooks/telegram/ch-1", false},
		{"trailing slash", "https://api.example.com/", "https://api.example.com/webhooks/telegram/ch-1", false},
		{"many trailing slashes", "https://api.example.com///", "https://api.example.com/webhooks/telegram/ch-1", false},
		{"base already has segment", "https://api.example.com/webhooks", "https://api.example.com/webhooks/telegram/ch-1", false},
		{"empty base", "", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := WebhookURL(tc.base, ProviderTelegram, "ch-1")
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("expected url, got %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestWebhookURLRejectsInvalidInput(t *testing.T) {
	if _, err := WebhookURL("https://api.example.com", ChannelProvider("fax"), "ch-1"); err == nil {
		t.Fatal("expected error for invalid provider")
	}
	if _, err := WebhookURL("https://api.example.com", ProviderTelegram, "  "); err == nil {
		t.Fatal("expected error for empty channel id")
	}
}
