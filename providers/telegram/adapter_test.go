package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/goliatone/go-channels/core"
	"github.com/goliatone/go-channels/security"
)

type recordedRequest struct {
	URL     string
	Payload map[string]any
}

type stubDoer struct {
	requests []recordedRequest
	respond  func(req *http.Request) (*http.Response, error)
}

func (d *stubDoer) Do(req *http.Request) (*http.Response, error) {
	recorded := recordedRequest{URL: req.URL.String()}
	if req.Body != nil {
		body, _ := io.ReadAll(req.Body)
		_ = json.Unmarshal(body, &recorded.Payload)
	}
	d.requests = append(d.requests, recorded)
	if d.respond != nil {
		return d.respond(req)
	}
	return jsonResponse(http.StatusOK, `{"ok":true,"result":true}`), nil
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func newTestAdapter(t *testing.T, doer *stubDoer) (*Adapter, *security.AppKeyVault) {
	t.Helper()
	vault, err := security.NewAppKeyVaultFromString("telegram-test-key")
	if err != nil {
		t.Fatalf("vault setup failed: %v", err)
	}
	adapter, err := New(Config{
		APIBaseURL:    "https://tg.test",
		WebhookSecret: "hook-secret",
		Vault:         vault,
		HTTPClient:    doer,
	})
	if err != nil {
		t.Fatalf("adapter setup failed: %v", err)
	}
	return adapter, vault
}

func TestConnectRegistersWebhook(t *testing.T) {
	doer := &stubDoer{}
	adapter, vault := newTestAdapter(t, doer)
	channel := core.Channel{
		ID:         "ch-1",
		MerchantID: "m-1",
		Provider:   core.ProviderTelegram,
		Status:     core.ChannelStatusDisconnected,
		WebhookURL: "https://api.example.com/webhooks/telegram/ch-1",
	}

	result, err := adapter.Connect(context.Background(), channel, core.ConnectInput{BotToken: "123:abc"})
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if result.Channel.Status != core.ChannelStatusConnected {
		t.Fatalf("expected connected, got %s", result.Channel.Status)
	}

	if len(doer.requests) != 1 {
		t.Fatalf("expected 1 api call, got %d", len(doer.requests))
	}
	call := doer.requests[0]
	if !strings.Contains(call.URL, "/bot123:abc/setWebhook") {
		t.Fatalf("expected setWebhook call, got %s", call.URL)
	}
	if call.Payload["url"] != channel.WebhookURL {
		t.Fatalf("expected webhook url in payload, got %v", call.Payload["url"])
	}
	if call.Payload["secret_token"] != "hook-secret" {
		t.Fatalf("expected secret token in payload, got %v", call.Payload["secret_token"])
	}
	if call.Payload["drop_pending_updates"] != true {
		t.Fatalf("expected drop_pending_updates, got %v", call.Payload["drop_pending_updates"])
	}

	token, err := vault.Decrypt(context.Background(), result.Channel.BotTokenEnc)
	if err != nil {
		t.Fatalf("stored token decrypt failed: %v", err)
	}
	if string(token) != "123:abc" {
		t.Fatalf("expected stored token, got %q", token)
	}
}

func TestConnectRequiresToken(t *testing.T) {
	doer := &stubDoer{}
	adapter, _ := newTestAdapter(t, doer)
	channel := core.Channel{ID: "ch-1", WebhookURL: "https://api.example.com/webhooks/telegram/ch-1"}

	_, err := adapter.Connect(context.Background(), channel, core.ConnectInput{})
	if err == nil || !strings.Contains(err.Error(), "bot token is required") {
		t.Fatalf("expected token error, got %v", err)
	}
	if len(doer.requests) != 0 {
		t.Fatalf("expected no remote call, got %d", len(doer.requests))
	}
}

func TestConnectReusesStoredToken(t *testing.T) {
	doer := &stubDoer{}
	adapter, vault := newTestAdapter(t, doer)
	encrypted, err := vault.Encrypt(context.Background(), []byte("123:abc"))
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	channel := core.Channel{
		ID:          "ch-1",
		Status:      core.ChannelStatusDisconnected,
		BotTokenEnc: encrypted,
		WebhookURL:  "https://api.example.com/webhooks/telegram/ch-1",
	}

	result, err := adapter.Connect(context.Background(), channel, core.ConnectInput{})
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if result.Channel.Status != core.ChannelStatusConnected {
		t.Fatalf("expected connected, got %s", result.Channel.Status)
	}
	if !strings.Contains(doer.requests[0].URL, "/bot123:abc/") {
		t.Fatalf("expected stored token reuse, got %s", doer.requests[0].URL)
	}
}

func TestConnectSurfacesAPIError(t *testing.T) {
	doer := &stubDoer{respond: func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusUnauthorized, `{"ok":false,"description":"Unauthorized"}`), nil
	}}
	adapter, _ := newTestAdapter(t, doer)
	channel := core.Channel{ID: "ch-1", WebhookURL: "https://api.example.com/webhooks/telegram/ch-1"}

	_, err := adapter.Connect(context.Background(), channel, core.ConnectInput{BotToken: "bad"})
	if err == nil || !strings.Contains(err.Error(), "Unauthorized") {
		t.Fatalf("expected api rejection, got %v", err)
	}
}

func TestDisconnectSwallowsRemoteFailure(t *testing.T) {
	doer := &stubDoer{respond: func(*http.Request) (*http.Response, error) {
		return nil, errors.New("network down")
	}}
	adapter, vault := newTestAdapter(t, doer)
	encrypted, _ := vault.Encrypt(context.Background(), []byte("123:abc"))
	channel := core.Channel{ID: "ch-1", BotTokenEnc: encrypted}

	got, err := adapter.Disconnect(context.Background(), channel, core.DisconnectModeDisconnect)
	if err != nil {
		t.Fatalf("disconnect should be best effort, got %v", err)
	}
	if got.ID != "ch-1" {
		t.Fatalf("expected channel pass-through, got %+v", got)
	}
}

func TestSendMessagePostsToChat(t *testing.T) {
	doer := &stubDoer{}
	adapter, vault := newTestAdapter(t, doer)
	encrypted, _ := vault.Encrypt(context.Background(), []byte("123:abc"))
	channel := core.Channel{ID: "ch-1", BotTokenEnc: encrypted}

	if err := adapter.SendMessage(context.Background(), channel, "42", "hola"); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	call := doer.requests[0]
	if !strings.Contains(call.URL, "/sendMessage") {
		t.Fatalf("expected sendMessage call, got %s", call.URL)
	}
	if call.Payload["chat_id"] != "42" || call.Payload["text"] != "hola" {
		t.Fatalf("unexpected payload: %v", call.Payload)
	}
}

func TestSendMessageRequiresStoredToken(t *testing.T) {
	adapter, _ := newTestAdapter(t, &stubDoer{})
	err := adapter.SendMessage(context.Background(), core.Channel{ID: "ch-1"}, "42", "hola")
	if err == nil || !strings.Contains(err.Error(), "no stored bot token") {
		t.Fatalf("expected token error, got %v", err)
	}
}

func TestHandleWebhookNormalizesUpdate(t *testing.T) {
	adapter, _ := newTestAdapter(t, &stubDoer{})
	channel := core.Channel{ID: "ch-1", MerchantID: "m-1"}
	body := []byte(`{
		"update_id": 9001,
		"message": {
			"message_id": 7,
			"from": {"id": 55, "username": "ana"},
			"chat": {"id": 42},
			"date": 1700000000,
			"text": "hola"
		}
	}`)

	messages, err := adapter.HandleWebhook(context.Background(), channel, core.InboundRequest{Body: body})
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	message := messages[0]
	if message.From != "42" {
		t.Fatalf("expected chat id 42, got %s", message.From)
	}
	if message.SourceID == nil || *message.SourceID != "9001" {
		t.Fatalf("expected source id 9001, got %v", message.SourceID)
	}
	if message.Text != "hola" {
		t.Fatalf("expected text, got %q", message.Text)
	}
	if message.Timestamp.Unix() != 1700000000 {
		t.Fatalf("unexpected timestamp %v", message.Timestamp)
	}
}

func TestHandleWebhookIgnoresNonTextUpdates(t *testing.T) {
	adapter, _ := newTestAdapter(t, &stubDoer{})
	messages, err := adapter.HandleWebhook(context.Background(), core.Channel{}, core.InboundRequest{
		Body: []byte(`{"update_id":1,"message":{"message_id":2,"chat":{"id":42}}}`),
	})
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("expected no messages, got %d", len(messages))
	}
}

func TestHandleWebhookRejectsMalformedBody(t *testing.T) {
	adapter, _ := newTestAdapter(t, &stubDoer{})
	_, err := adapter.HandleWebhook(context.Background(), core.Channel{}, core.InboundRequest{Body: []byte("not json")})
	if err == nil {
		t.Fatal("expected decode error")
	}
}
