package whatsappcloud

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/goliatone/go-channels/core"
	"github.com/goliatone/go-channels/security"
)

type recordedRequest struct {
	URL     string
	Auth    string
	Payload map[string]any
}

type stubDoer struct {
	requests []recordedRequest
	respond  func(req *http.Request) (*http.Response, error)
}

func (d *stubDoer) Do(req *http.Request) (*http.Response, error) {
	recorded := recordedRequest{URL: req.URL.String(), Auth: req.Header.Get("Authorization")}
	if req.Body != nil {
		body, _ := io.ReadAll(req.Body)
		_ = json.Unmarshal(body, &recorded.Payload)
	}
	d.requests = append(d.requests, recorded)
	if d.respond != nil {
		return d.respond(req)
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader([]byte(`{"messages":[{"id":"wamid.1"}]}`))),
	}, nil
}

func newTestAdapter(t *testing.T, doer *stubDoer) (*Adapter, *security.AppKeyVault) {
	t.Helper()
	vault, err := security.NewAppKeyVaultFromString("wacloud-test-key")
	if err != nil {
		t.Fatalf("vault setup failed: %v", err)
	}
	adapter, err := New(Config{
		GraphBaseURL: "https://graph.test/v19.0",
		Vault:        vault,
		HTTPClient:   doer,
	})
	if err != nil {
		t.Fatalf("adapter setup failed: %v", err)
	}
	return adapter, vault
}

func connectedChannel(t *testing.T, adapter *Adapter) core.Channel {
	t.Helper()
	result, err := adapter.Connect(context.Background(), core.Channel{
		ID:         "ch-1",
		MerchantID: "m-1",
		Provider:   core.ProviderWhatsAppCloud,
		Status:     core.ChannelStatusDisconnected,
	}, core.ConnectInput{
		AccessToken:   "EAAG-token",
		AppSecret:     "app-secret",
		VerifyToken:   "verify-me",
		PhoneNumberID: "1555000",
		WabaID:        "waba-9",
	})
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	return result.Channel
}

func TestConnectStoresEncryptedCredentials(t *testing.T) {
	adapter, vault := newTestAdapter(t, &stubDoer{})
	channel := connectedChannel(t, adapter)

	if channel.Status != core.ChannelStatusConnected {
		t.Fatalf("expected connected, got %s", channel.Status)
	}
	token, err := vault.Decrypt(context.Background(), channel.AccessTokenEnc)
	if err != nil || string(token) != "EAAG-token" {
		t.Fatalf("expected stored access token, got %q err %v", token, err)
	}
	secret, err := vault.Decrypt(context.Background(), channel.AppSecretEnc)
	if err != nil || string(secret) != "app-secret" {
		t.Fatalf("expected stored app secret, got %q err %v", secret, err)
	}
	if channel.VerifyTokenHash != vault.Hash("verify-me") {
		t.Fatal("expected hashed verify token")
	}
	if channel.PhoneNumberID != "1555000" || channel.WabaID != "waba-9" {
		t.Fatalf("expected identifiers stored, got %+v", channel)
	}
}

func TestConnectRequiresAccessToken(t *testing.T) {
	adapter, _ := newTestAdapter(t, &stubDoer{})
	_, err := adapter.Connect(context.Background(), core.Channel{ID: "ch-1"}, core.ConnectInput{
		PhoneNumberID: "1555000",
	})
	if err == nil || !strings.Contains(err.Error(), "access token is required") {
		t.Fatalf("expected access token error, got %v", err)
	}
}

func TestConnectRequiresPhoneNumberID(t *testing.T) {
	adapter, _ := newTestAdapter(t, &stubDoer{})
	_, err := adapter.Connect(context.Background(), core.Channel{ID: "ch-1"}, core.ConnectInput{
		AccessToken: "EAAG-token",
	})
	if err == nil || !strings.Contains(err.Error(), "phone number id is required") {
		t.Fatalf("expected phone number id error, got %v", err)
	}
}

func TestSendMessagePostsGraphPayload(t *testing.T) {
	doer := &stubDoer{}
	adapter, _ := newTestAdapter(t, doer)
	channel := connectedChannel(t, adapter)

	if err := adapter.SendMessage(context.Background(), channel, "5215512345678@s.whatsapp.net", "hola"); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	call := doer.requests[0]
	if !strings.HasSuffix(call.URL, "/1555000/messages") {
		t.Fatalf("expected messages endpoint, got %s", call.URL)
	}
	if call.Auth != "Bearer EAAG-token" {
		t.Fatalf("expected bearer auth, got %q", call.Auth)
	}
	if call.Payload["to"] != "5215512345678" {
		t.Fatalf("expected cleaned jid, got %v", call.Payload["to"])
	}
	text, _ := call.Payload["text"].(map[string]any)
	if text["body"] != "hola" {
		t.Fatalf("expected text body, got %v", call.Payload["text"])
	}
}

func TestSendMessageSurfacesGraphError(t *testing.T) {
	doer := &stubDoer{respond: func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusUnauthorized,
			Body:       io.NopCloser(bytes.NewReader([]byte(`{"error":{"message":"Invalid OAuth access token","code":190}}`))),
		}, nil
	}}
	adapter, _ := newTestAdapter(t, doer)
	channel := connectedChannel(t, adapter)

	err := adapter.SendMessage(context.Background(), channel, "5215512345678", "hola")
	if err == nil || !strings.Contains(err.Error(), "Invalid OAuth access token") {
		t.Fatalf("expected graph rejection, got %v", err)
	}
}

func TestSendTemplateBuildsTemplatePayload(t *testing.T) {
	doer := &stubDoer{}
	adapter, _ := newTestAdapter(t, doer)
	channel := connectedChannel(t, adapter)

	err := adapter.SendTemplate(context.Background(), channel, "5215512345678", "order_update", "es_MX", nil)
	if err != nil {
		t.Fatalf("send template failed: %v", err)
	}
	payload := doer.requests[0].Payload
	if payload["type"] != "template" {
		t.Fatalf("expected template type, got %v", payload["type"])
	}
	template, _ := payload["template"].(map[string]any)
	if template["name"] != "order_update" {
		t.Fatalf("expected template name, got %v", template["name"])
	}
	language, _ := template["language"].(map[string]any)
	if language["code"] != "es_MX" {
		t.Fatalf("expected language code, got %v", template["language"])
	}
}

func TestSendMediaURLValidatesType(t *testing.T) {
	adapter, _ := newTestAdapter(t, &stubDoer{})
	channel := connectedChannel(t, adapter)
	err := adapter.SendMediaURL(context.Background(), channel, "5215512345678", "sticker", "https://cdn.example.com/a.webp", "")
	if err == nil || !strings.Contains(err.Error(), "unsupported media type") {
		t.Fatalf("expected media type error, got %v", err)
	}
}

func TestSendMediaURLBuildsMediaPayload(t *testing.T) {
	doer := &stubDoer{}
	adapter, _ := newTestAdapter(t, doer)
	channel := connectedChannel(t, adapter)

	err := adapter.SendMediaURL(context.Background(), channel, "5215512345678", "image", "https://cdn.example.com/a.png", "receipt")
	if err != nil {
		t.Fatalf("send media failed: %v", err)
	}
	payload := doer.requests[0].Payload
	image, _ := payload["image"].(map[string]any)
	if image["link"] != "https://cdn.example.com/a.png" || image["caption"] != "receipt" {
		t.Fatalf("unexpected media payload: %v", payload)
	}
}

func TestHandleWebhookFlattensEnvelope(t *testing.T) {
	adapter, _ := newTestAdapter(t, &stubDoer{})
	channel := core.Channel{ID: "ch-1", MerchantID: "m-1"}
	body := []byte(`{
		"entry": [{
			"changes": [{
				"field": "messages",
				"value": {
					"contacts": [{"wa_id": "5215512345678", "profile": {"name": "Ana"}}],
					"messages": [{
						"id": "wamid.abc",
						"from": "5215512345678",
						"timestamp": "1700000000",
						"type": "text",
						"text": {"body": "hola"}
					}]
				}
			}]
		}]
	}`)

	messages, err := adapter.HandleWebhook(context.Background(), channel, core.InboundRequest{Body: body})
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	message := messages[0]
	if message.SourceID == nil || *message.SourceID != "wamid.abc" {
		t.Fatalf("expected source id, got %v", message.SourceID)
	}
	if message.From != "5215512345678" {
		t.Fatalf("expected sender, got %s", message.From)
	}
	if message.Metadata["sender_name"] != "Ana" {
		t.Fatalf("expected contact name, got %v", message.Metadata)
	}
	if message.Timestamp.Unix() != 1700000000 {
		t.Fatalf("unexpected timestamp %v", message.Timestamp)
	}
}

func TestHandleWebhookKeepsPresentButEmptyMessageID(t *testing.T) {
	adapter, _ := newTestAdapter(t, &stubDoer{})
	channel := core.Channel{ID: "ch-1", MerchantID: "m-1"}
	body := []byte(`{
		"entry": [{
			"changes": [{
				"field": "messages",
				"value": {
					"messages": [
						{"id": "", "from": "5215512345678", "type": "text", "text": {"body": "con id vacio"}},
						{"from": "5215512345678", "type": "text", "text": {"body": "sin id"}}
					]
				}
			}]
		}]
	}`)

	messages, err := adapter.HandleWebhook(context.Background(), channel, core.InboundRequest{Body: body})
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].SourceID == nil || *messages[0].SourceID != "" {
		t.Fatalf("expected empty-but-present id to survive for dedupe, got %v", messages[0].SourceID)
	}
	if messages[1].SourceID != nil {
		t.Fatalf("expected absent id to stay nil, got %q", *messages[1].SourceID)
	}
}

func TestHandleWebhookIgnoresStatusCallbacks(t *testing.T) {
	adapter, _ := newTestAdapter(t, &stubDoer{})
	body := []byte(`{"entry":[{"changes":[{"field":"message_template_status_update","value":{}}]}]}`)
	messages, err := adapter.HandleWebhook(context.Background(), core.Channel{}, core.InboundRequest{Body: body})
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("expected no messages, got %d", len(messages))
	}
}
