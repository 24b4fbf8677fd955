package webchat

import (
	"context"
	"strings"
	"testing"

	"github.com/goliatone/go-channels/core"
)

type recordedPush struct {
	MerchantID string
	SessionID  string
	Text       string
	Metadata   map[string]any
}

type stubGateway struct {
	pushes []recordedPush
	err    error
}

func (g *stubGateway) PushToSession(_ context.Context, merchantID, sessionID, text string, metadata map[string]any) error {
	g.pushes = append(g.pushes, recordedPush{
		MerchantID: merchantID,
		SessionID:  sessionID,
		Text:       text,
		Metadata:   metadata,
	})
	return g.err
}

func TestConnectFlipsChannelState(t *testing.T) {
	adapter, err := New(Config{Gateway: &stubGateway{}})
	if err != nil {
		t.Fatalf("adapter setup failed: %v", err)
	}
	channel := core.Channel{
		ID:         "ch-1",
		MerchantID: "m-1",
		Provider:   core.ProviderWebchat,
		Status:     core.ChannelStatusDisconnected,
	}

	result, err := adapter.Connect(context.Background(), channel, core.ConnectInput{
		AccountLabel: "Site widget",
		Metadata:     map[string]any{"theme": "dark"},
	})
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if result.Channel.Status != core.ChannelStatusConnected {
		t.Fatalf("expected connected, got %s", result.Channel.Status)
	}
	if !result.Channel.Enabled {
		t.Fatal("expected enabled channel")
	}
	if result.Channel.WidgetSettings["theme"] != "dark" {
		t.Fatalf("expected widget settings stored, got %v", result.Channel.WidgetSettings)
	}
}

func TestSendMessagePushesThroughGateway(t *testing.T) {
	gateway := &stubGateway{}
	adapter, _ := New(Config{Gateway: gateway})
	channel := core.Channel{ID: "ch-1", MerchantID: "m-1"}

	if err := adapter.SendMessage(context.Background(), channel, "visitor-7", "hola"); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if len(gateway.pushes) != 1 {
		t.Fatalf("expected 1 push, got %d", len(gateway.pushes))
	}
	push := gateway.pushes[0]
	if push.MerchantID != "m-1" || push.SessionID != "visitor-7" || push.Text != "hola" {
		t.Fatalf("unexpected push: %+v", push)
	}
}

func TestSendMessageRequiresGateway(t *testing.T) {
	adapter, _ := New(Config{})
	err := adapter.SendMessage(context.Background(), core.Channel{}, "visitor-7", "hola")
	if err == nil || !strings.Contains(err.Error(), "gateway is not configured") {
		t.Fatalf("expected gateway error, got %v", err)
	}
}

func TestHandleWebhookMapsWidgetMessage(t *testing.T) {
	adapter, _ := New(Config{Gateway: &stubGateway{}})
	channel := core.Channel{ID: "ch-1", MerchantID: "m-1"}
	body := []byte(`{"session_id":"visitor-7","message_id":"msg-1","text":"hola","visitor_id":"v-9"}`)

	messages, err := adapter.HandleWebhook(context.Background(), channel, core.InboundRequest{Body: body})
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	message := messages[0]
	if message.From != "visitor-7" || message.Text != "hola" {
		t.Fatalf("unexpected message: %+v", message)
	}
	if message.SourceID == nil || *message.SourceID != "msg-1" {
		t.Fatalf("expected source id, got %v", message.SourceID)
	}
	if message.Metadata["visitor_id"] != "v-9" {
		t.Fatalf("expected visitor metadata, got %v", message.Metadata)
	}
}

func TestHandleWebhookRequiresSessionAndText(t *testing.T) {
	adapter, _ := New(Config{Gateway: &stubGateway{}})
	_, err := adapter.HandleWebhook(context.Background(), core.Channel{}, core.InboundRequest{
		Body: []byte(`{"text":""}`),
	})
	if err == nil || !strings.Contains(err.Error(), "required") {
		t.Fatalf("expected validation error, got %v", err)
	}
}
