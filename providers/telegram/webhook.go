package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-channels/core"
)

type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		MessageID int64 `json:"message_id"`
		From      *struct {
			ID        int64  `json:"id"`
			Username  string `json:"username"`
			FirstName string `json:"first_name"`
		} `json:"from"`
		Chat *struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Date    int64  `json:"date"`
		Text    string `json:"text"`
		Caption string `json:"caption"`
	} `json:"message"`
}

// HandleWebhook normalizes one Bot API update. Updates without a text or
// caption payload are acknowledged with no messages so Telegram stops
// redelivering them.
func (a *Adapter) HandleWebhook(_ context.Context, channel core.Channel, req core.InboundRequest) ([]core.IncomingMessage, error) {
	var u update
	if err := json.Unmarshal(req.Body, &u); err != nil {
		return nil, fmt.Errorf("telegram: decode update: %w", err)
	}
	if u.Message == nil || u.Message.Chat == nil {
		return nil, nil
	}
	text := strings.TrimSpace(u.Message.Text)
	if text == "" {
		text = strings.TrimSpace(u.Message.Caption)
	}
	if text == "" {
		return nil, nil
	}

	sourceID := strconv.FormatInt(u.UpdateID, 10)
	if u.UpdateID == 0 {
		sourceID = strconv.FormatInt(u.Message.MessageID, 10)
	}
	metadata := map[string]any{
		"message_id": u.Message.MessageID,
	}
	if u.Message.From != nil {
		metadata["sender_id"] = u.Message.From.ID
		if u.Message.From.Username != "" {
			metadata["sender_username"] = u.Message.From.Username
		}
		if u.Message.From.FirstName != "" {
			metadata["sender_name"] = u.Message.From.FirstName
		}
	}

	var timestamp time.Time
	if u.Message.Date > 0 {
		timestamp = time.Unix(u.Message.Date, 0).UTC()
	}

	return []core.IncomingMessage{{
		Provider:   core.ProviderTelegram,
		ChannelID:  channel.ID,
		MerchantID: channel.MerchantID,
		SourceID:   &sourceID,
		From:       strconv.FormatInt(u.Message.Chat.ID, 10),
		Text:       text,
		Timestamp:  timestamp,
		Metadata:   metadata,
	}}, nil
}
