package whatsappcloud

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-channels/core"
	"github.com/goliatone/go-channels/providers/whatsapp"
)

type webhookEnvelope struct {
	Entry []struct {
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				Messages []cloudMessage `json:"messages"`
				Contacts []struct {
					WaID    string `json:"wa_id"`
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type cloudMessage struct {
	// ID stays a pointer so a present-but-empty id still reaches dedupe.
	ID        *string `json:"id"`
	From      string  `json:"from"`
	Timestamp string  `json:"timestamp"`
	Type      string  `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text"`
	Image    *cloudMedia `json:"image"`
	Document *cloudMedia `json:"document"`
	Audio    *cloudMedia `json:"audio"`
	Video    *cloudMedia `json:"video"`
}

type cloudMedia struct {
	ID       string `json:"id"`
	Caption  string `json:"caption"`
	MimeType string `json:"mime_type"`
}

// HandleWebhook flattens Meta's entry/changes envelope into one message per
// inbound item. Status callbacks and unsupported change fields produce no
// messages.
func (a *Adapter) HandleWebhook(_ context.Context, channel core.Channel, req core.InboundRequest) ([]core.IncomingMessage, error) {
	var envelope webhookEnvelope
	if err := json.Unmarshal(req.Body, &envelope); err != nil {
		return nil, fmt.Errorf("whatsappcloud: decode webhook envelope: %w", err)
	}

	var messages []core.IncomingMessage
	for _, entry := range envelope.Entry {
		for _, change := range entry.Changes {
			if change.Field != "" && change.Field != "messages" {
				continue
			}
			senderNames := map[string]string{}
			for _, contact := range change.Value.Contacts {
				if contact.WaID != "" && contact.Profile.Name != "" {
					senderNames[contact.WaID] = contact.Profile.Name
				}
			}
			for _, item := range change.Value.Messages {
				normalized, ok := normalizeCloudMessage(channel, item, senderNames)
				if !ok {
					continue
				}
				messages = append(messages, normalized)
			}
		}
	}
	return messages, nil
}

func normalizeCloudMessage(channel core.Channel, item cloudMessage, senderNames map[string]string) (core.IncomingMessage, bool) {
	text := ""
	metadata := map[string]any{"type": item.Type}
	switch {
	case item.Text != nil:
		text = strings.TrimSpace(item.Text.Body)
	case item.Image != nil:
		text = strings.TrimSpace(item.Image.Caption)
		metadata["media_id"] = item.Image.ID
	case item.Document != nil:
		text = strings.TrimSpace(item.Document.Caption)
		metadata["media_id"] = item.Document.ID
	case item.Video != nil:
		text = strings.TrimSpace(item.Video.Caption)
		metadata["media_id"] = item.Video.ID
	case item.Audio != nil:
		metadata["media_id"] = item.Audio.ID
	}
	if text == "" {
		return core.IncomingMessage{}, false
	}

	from := whatsapp.CleanJID(item.From)
	if from == "" {
		return core.IncomingMessage{}, false
	}
	if name, ok := senderNames[item.From]; ok {
		metadata["sender_name"] = name
	}

	var timestamp time.Time
	if seconds, err := strconv.ParseInt(strings.TrimSpace(item.Timestamp), 10, 64); err == nil && seconds > 0 {
		timestamp = time.Unix(seconds, 0).UTC()
	}

	message := core.IncomingMessage{
		Provider:   core.ProviderWhatsAppCloud,
		ChannelID:  channel.ID,
		MerchantID: channel.MerchantID,
		From:       from,
		Text:       text,
		Timestamp:  timestamp,
		Metadata:   metadata,
	}
	if item.ID != nil {
		sourceID := strings.TrimSpace(*item.ID)
		message.SourceID = &sourceID
	}
	return message, true
}
