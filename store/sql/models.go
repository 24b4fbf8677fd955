package sqlstore

import (
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-channels/core"
)

type channelRecord struct {
	bun.BaseModel `bun:"table:channels,alias:ch"`

	ID              string         `bun:"id,pk"`
	MerchantID      string         `bun:"merchant_id,notnull"`
	Provider        string         `bun:"provider,notnull"`
	Enabled         bool           `bun:"enabled,notnull"`
	Status          string         `bun:"status,notnull"`
	AccountLabel    string         `bun:"account_label"`
	BotTokenEnc     string         `bun:"bot_token_enc"`
	AccessTokenEnc  string         `bun:"access_token_enc"`
	AppSecretEnc    string         `bun:"app_secret_enc"`
	VerifyTokenHash string         `bun:"verify_token_hash"`
	PhoneNumberID   string         `bun:"phone_number_id"`
	WabaID          string         `bun:"waba_id"`
	SessionID       string         `bun:"session_id"`
	InstanceID      string         `bun:"instance_id"`
	QR              string         `bun:"qr"`
	WebhookURL      string         `bun:"webhook_url"`
	WidgetSettings  map[string]any `bun:"widget_settings,type:jsonb"`
	IsDefault       bool           `bun:"is_default,notnull"`
	LastError       string         `bun:"last_error"`
	CreatedAt       time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt       time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	DeletedAt       *time.Time     `bun:"deleted_at,soft_delete"`
}

func (r *channelRecord) toDomain() core.Channel {
	if r == nil {
		return core.Channel{}
	}
	return core.Channel{
		ID:              r.ID,
		MerchantID:      r.MerchantID,
		Provider:        core.ChannelProvider(r.Provider),
		Enabled:         r.Enabled,
		Status:          core.ChannelStatus(r.Status),
		AccountLabel:    r.AccountLabel,
		BotTokenEnc:     r.BotTokenEnc,
		AccessTokenEnc:  r.AccessTokenEnc,
		AppSecretEnc:    r.AppSecretEnc,
		VerifyTokenHash: r.VerifyTokenHash,
		PhoneNumberID:   r.PhoneNumberID,
		WabaID:          r.WabaID,
		SessionID:       r.SessionID,
		InstanceID:      r.InstanceID,
		QR:              r.QR,
		WebhookURL:      r.WebhookURL,
		WidgetSettings:  copyAnyMap(r.WidgetSettings),
		IsDefault:       r.IsDefault,
		LastError:       r.LastError,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		DeletedAt:       cloneTimePointer(r.DeletedAt),
	}
}

func channelRecordFromDomain(channel core.Channel) *channelRecord {
	return &channelRecord{
		ID:              strings.TrimSpace(channel.ID),
		MerchantID:      strings.TrimSpace(channel.MerchantID),
		Provider:        string(channel.Provider),
		Enabled:         channel.Enabled,
		Status:          string(channel.Status),
		AccountLabel:    channel.AccountLabel,
		BotTokenEnc:     channel.BotTokenEnc,
		AccessTokenEnc:  channel.AccessTokenEnc,
		AppSecretEnc:    channel.AppSecretEnc,
		VerifyTokenHash: channel.VerifyTokenHash,
		PhoneNumberID:   channel.PhoneNumberID,
		WabaID:          channel.WabaID,
		SessionID:       channel.SessionID,
		InstanceID:      channel.InstanceID,
		QR:              channel.QR,
		WebhookURL:      channel.WebhookURL,
		WidgetSettings:  copyAnyMap(channel.WidgetSettings),
		IsDefault:       channel.IsDefault,
		LastError:       channel.LastError,
		CreatedAt:       channel.CreatedAt,
		UpdatedAt:       channel.UpdatedAt,
		DeletedAt:       cloneTimePointer(channel.DeletedAt),
	}
}

type chatMessageRecord struct {
	ID        string         `json:"id"`
	Role      string         `json:"role"`
	Text      string         `json:"text"`
	Rating    int            `json:"rating,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type chatSessionRecord struct {
	bun.BaseModel `bun:"table:chat_sessions,alias:cs"`

	ID         string              `bun:"id,pk"`
	MerchantID string              `bun:"merchant_id,notnull"`
	SessionID  string              `bun:"session_id,notnull"`
	Channel    string              `bun:"channel,notnull"`
	Messages   []chatMessageRecord `bun:"messages,type:jsonb,notnull"`
	CreatedAt  time.Time           `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt  time.Time           `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *chatSessionRecord) toDomain() core.ChatSession {
	if r == nil {
		return core.ChatSession{}
	}
	messages := make([]core.ChatMessage, 0, len(r.Messages))
	for _, message := range r.Messages {
		messages = append(messages, core.ChatMessage{
			ID:        message.ID,
			Role:      core.MessageRole(message.Role),
			Text:      message.Text,
			Rating:    message.Rating,
			Metadata:  copyAnyMap(message.Metadata),
			CreatedAt: message.CreatedAt,
		})
	}
	return core.ChatSession{
		ID:         r.ID,
		MerchantID: r.MerchantID,
		SessionID:  r.SessionID,
		Channel:    r.Channel,
		Messages:   messages,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func messageRecordFromDomain(message core.ChatMessage) chatMessageRecord {
	return chatMessageRecord{
		ID:        message.ID,
		Role:      string(message.Role),
		Text:      message.Text,
		Rating:    message.Rating,
		Metadata:  copyAnyMap(message.Metadata),
		CreatedAt: message.CreatedAt,
	}
}

type chatOutboxRecord struct {
	bun.BaseModel `bun:"table:chat_outbox,alias:co"`

	ID            string         `bun:"id,pk"`
	AggregateType string         `bun:"aggregate_type,notnull"`
	AggregateID   string         `bun:"aggregate_id,notnull"`
	EventType     string         `bun:"event_type,notnull"`
	Payload       map[string]any `bun:"payload,type:jsonb,notnull"`
	Exchange      string         `bun:"exchange"`
	RoutingKey    string         `bun:"routing_key"`
	Status        string         `bun:"status,notnull"`
	Attempts      int            `bun:"attempts,notnull"`
	LastError     string         `bun:"last_error"`
	OccurredAt    time.Time      `bun:"occurred_at,nullzero,notnull"`
	NextAttemptAt *time.Time     `bun:"next_attempt_at,nullzero"`
	CreatedAt     time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r chatOutboxRecord) toDomain() core.OutboxEvent {
	return core.OutboxEvent{
		ID:            r.ID,
		AggregateType: r.AggregateType,
		AggregateID:   r.AggregateID,
		EventType:     r.EventType,
		Payload:       copyAnyMap(r.Payload),
		Exchange:      r.Exchange,
		RoutingKey:    r.RoutingKey,
		Status:        r.Status,
		Attempts:      r.Attempts,
		LastError:     r.LastError,
		OccurredAt:    r.OccurredAt,
		NextAttemptAt: cloneTimePointer(r.NextAttemptAt),
	}
}

// webhookClaimRecord is the durable variant of the in-memory replay
// ledger: the primary key turns dedupe into an insert race exactly one
// delivery wins.
type webhookClaimRecord struct {
	bun.BaseModel `bun:"table:webhook_claims,alias:wc"`

	Key       string    `bun:"key,pk"`
	ExpiresAt time.Time `bun:"expires_at,nullzero,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func copyAnyMap(input map[string]any) map[string]any {
	if input == nil {
		return nil
	}
	out := make(map[string]any, len(input))
	for key, value := range input {
		out[key] = value
	}
	return out
}

func cloneTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}
