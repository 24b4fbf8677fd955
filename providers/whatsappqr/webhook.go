package whatsappqr

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-channels/core"
	"github.com/goliatone/go-channels/providers/whatsapp"
)

type webhookEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type upsertData struct {
	Key struct {
		RemoteJID string `json:"remoteJid"`
		FromMe    bool   `json:"fromMe"`
		ID        string `json:"id"`
	} `json:"key"`
	PushName         string          `json:"pushName"`
	Message          *upsertMessage  `json:"message"`
	MessageTimestamp json.RawMessage `json:"messageTimestamp"`
}

type upsertMessage struct {
	Conversation        string `json:"conversation"`
	ExtendedTextMessage *struct {
		Text string `json:"text"`
	} `json:"extendedTextMessage"`
	ImageMessage *struct {
		Caption string `json:"caption"`
	} `json:"imageMessage"`
}

// HandleWebhook normalizes Evolution MESSAGES_UPSERT callbacks. Other event
// types, self-sent messages, and payloads without text are acknowledged
// with no messages.
func (a *Adapter) HandleWebhook(_ context.Context, channel core.Channel, req core.InboundRequest) ([]core.IncomingMessage, error) {
	var envelope webhookEnvelope
	if err := json.Unmarshal(req.Body, &envelope); err != nil {
		return nil, fmt.Errorf("whatsappqr: decode webhook envelope: %w", err)
	}
	event := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(envelope.Event), "_", "."))
	if event != "messages.upsert" {
		return nil, nil
	}

	// The gateway sends either one item or a batch under the same event.
	var batch []upsertData
	if err := json.Unmarshal(envelope.Data, &batch); err != nil {
		var single upsertData
		if err := json.Unmarshal(envelope.Data, &single); err != nil {
			return nil, fmt.Errorf("whatsappqr: decode messages.upsert data: %w", err)
		}
		batch = []upsertData{single}
	}

	var messages []core.IncomingMessage
	for _, item := range batch {
		normalized, ok := normalizeUpsert(channel, item)
		if !ok {
			continue
		}
		messages = append(messages, normalized)
	}
	return messages, nil
}

func normalizeUpsert(channel core.Channel, item upsertData) (core.IncomingMessage, bool) {
	if item.Key.FromMe || item.Message == nil {
		return core.IncomingMessage{}, false
	}
	text := strings.TrimSpace(item.Message.Conversation)
	if text == "" && item.Message.ExtendedTextMessage != nil {
		text = strings.TrimSpace(item.Message.ExtendedTextMessage.Text)
	}
	if text == "" && item.Message.ImageMessage != nil {
		text = strings.TrimSpace(item.Message.ImageMessage.Caption)
	}
	if text == "" {
		return core.IncomingMessage{}, false
	}
	from := whatsapp.CleanJID(item.Key.RemoteJID)
	if from == "" {
		return core.IncomingMessage{}, false
	}

	metadata := map[string]any{"remote_jid": item.Key.RemoteJID}
	if name := strings.TrimSpace(item.PushName); name != "" {
		metadata["sender_name"] = name
	}

	message := core.IncomingMessage{
		Provider:   core.ProviderWhatsAppQR,
		ChannelID:  channel.ID,
		MerchantID: channel.MerchantID,
		From:       from,
		Text:       text,
		Timestamp:  parseUpsertTimestamp(item.MessageTimestamp),
		Metadata:   metadata,
	}
	if sourceID := strings.TrimSpace(item.Key.ID); sourceID != "" {
		message.SourceID = &sourceID
	}
	return message, true
}

// parseUpsertTimestamp accepts the number and numeric-string forms the
// gateway emits for messageTimestamp.
func parseUpsertTimestamp(raw json.RawMessage) time.Time {
	if len(raw) == 0 {
		return time.Time{}
	}
	var seconds int64
	if err := json.Unmarshal(raw, &seconds); err != nil {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return time.Time{}
		}
		if _, scanErr := fmt.Sscanf(strings.TrimSpace(text), "%d", &seconds); scanErr != nil {
			return time.Time{}
		}
	}
	if seconds <= 0 {
		return time.Time{}
	}
	return time.Unix(seconds, 0).UTC()
}
