package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidProvider                = errors.New("core: invalid channel provider")
	ErrInvalidChannelStatusTransition = errors.New("core: invalid channel status transition")
	ErrChannelNotFound                = errors.New("core: channel not found")
	ErrSessionNotFound                = errors.New("core: chat session not found")
)

type ChannelProvider string

const (
	ProviderTelegram      ChannelProvider = "telegram"
	ProviderWhatsAppCloud ChannelProvider = "whatsapp_cloud"
	ProviderWhatsAppQR    ChannelProvider = "whatsapp_qr"
	ProviderWebchat       ChannelProvider = "webchat"
	ProviderInstagram     ChannelProvider = "instagram"
	ProviderMessenger     ChannelProvider = "messenger"
	ProviderEmail         ChannelProvider = "email"
	ProviderSMS           ChannelProvider = "sms"
)

func ParseProvider(value string) (ChannelProvider, error) {
	provider := ChannelProvider(strings.TrimSpace(strings.ToLower(value)))
	switch provider {
	case ProviderTelegram,
		ProviderWhatsAppCloud,
		ProviderWhatsAppQR,
		ProviderWebchat,
		ProviderInstagram,
		ProviderMessenger,
		ProviderEmail,
		ProviderSMS:
		return provider, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidProvider, value)
	}
}

func (p ChannelProvider) Valid() bool {
	_, err := ParseProvider(string(p))
	return err == nil
}

// LogicalChannel maps a provider to the channel name downstream consumers
// address replies to. Both WhatsApp transports share the "whatsapp" name so
// the dispatcher can pick whichever transport is connected.
func (p ChannelProvider) LogicalChannel() string {
	switch p {
	case ProviderWhatsAppCloud, ProviderWhatsAppQR:
		return "whatsapp"
	default:
		return string(p)
	}
}

type ChannelStatus string

const (
	ChannelStatusDisconnected ChannelStatus = "disconnected"
	ChannelStatusPending      ChannelStatus = "pending"
	ChannelStatusConnected    ChannelStatus = "connected"
	ChannelStatusError        ChannelStatus = "error"
	ChannelStatusRevoked      ChannelStatus = "revoked"
	ChannelStatusThrottled    ChannelStatus = "throttled"
)

type Channel struct {
	ID              string
	MerchantID      string
	Provider        ChannelProvider
	Enabled         bool
	Status          ChannelStatus
	AccountLabel    string
	BotTokenEnc     string
	AccessTokenEnc  string
	AppSecretEnc    string
	VerifyTokenHash string
	PhoneNumberID   string
	WabaID          string
	SessionID       string
	InstanceID      string
	QR              string
	WebhookURL      string
	WidgetSettings  map[string]any
	IsDefault       bool
	LastError       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       *time.Time
}

func (c *Channel) TransitionTo(status ChannelStatus, reason string, now time.Time) error {
	if c == nil {
		return nil
	}
	if c.Status == status {
		c.UpdatedAt = now
		if strings.TrimSpace(reason) != "" {
			c.LastError = strings.TrimSpace(reason)
		}
		return nil
	}
	if !channelTransitionAllowed(c.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidChannelStatusTransition, c.Status, status)
	}
	c.Status = status
	c.UpdatedAt = now
	if strings.TrimSpace(reason) != "" {
		c.LastError = strings.TrimSpace(reason)
	}
	if status == ChannelStatusConnected {
		c.LastError = ""
	}
	return nil
}

func channelTransitionAllowed(current, next ChannelStatus) bool {
	if next == ChannelStatusDisconnected {
		return true
	}
	allowed := map[ChannelStatus]map[ChannelStatus]struct{}{
		ChannelStatusDisconnected: {
			ChannelStatusPending:   {},
			ChannelStatusConnected: {},
			ChannelStatusError:     {},
		},
		ChannelStatusPending: {
			ChannelStatusConnected: {},
			ChannelStatusError:     {},
		},
		ChannelStatusConnected: {
			ChannelStatusError:     {},
			ChannelStatusRevoked:   {},
			ChannelStatusThrottled: {},
		},
		ChannelStatusError: {
			ChannelStatusPending:   {},
			ChannelStatusConnected: {},
		},
		ChannelStatusRevoked: {
			ChannelStatusPending: {},
		},
		ChannelStatusThrottled: {
			ChannelStatusConnected: {},
			ChannelStatusError:     {},
		},
	}
	_, ok := allowed[current][next]
	return ok
}

// Available reports whether the channel may participate in webhook
// verification and outbound dispatch.
func (c Channel) Available() bool {
	return c.DeletedAt == nil && c.Enabled
}

// WipeCredentials clears every credential column. The record itself is
// retained so the merchant keeps the channel slot.
func (c *Channel) WipeCredentials() {
	if c == nil {
		return
	}
	c.BotTokenEnc = ""
	c.AccessTokenEnc = ""
	c.AppSecretEnc = ""
	c.VerifyTokenHash = ""
	c.QR = ""
}

// PublicChannel is the outward projection of a channel. Encrypted credential
// blobs and the verify-token hash never leave the process.
type PublicChannel struct {
	ID            string
	MerchantID    string
	Provider      ChannelProvider
	Enabled       bool
	Status        ChannelStatus
	AccountLabel  string
	PhoneNumberID string
	WabaID        string
	SessionID     string
	InstanceID    string
	QR            string
	WebhookURL    string
	IsDefault     bool
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (c Channel) Public() PublicChannel {
	return PublicChannel{
		ID:            c.ID,
		MerchantID:    c.MerchantID,
		Provider:      c.Provider,
		Enabled:       c.Enabled,
		Status:        c.Status,
		AccountLabel:  c.AccountLabel,
		PhoneNumberID: c.PhoneNumberID,
		WabaID:        c.WabaID,
		SessionID:     c.SessionID,
		InstanceID:    c.InstanceID,
		QR:            c.QR,
		WebhookURL:    c.WebhookURL,
		IsDefault:     c.IsDefault,
		LastError:     c.LastError,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

type MessageRole string

const (
	MessageRoleCustomer MessageRole = "customer"
	MessageRoleBot      MessageRole = "bot"
	MessageRoleAgent    MessageRole = "agent"
)

type ChatMessage struct {
	ID        string
	Role      MessageRole
	Text      string
	Rating    int
	Metadata  map[string]any
	CreatedAt time.Time
}

// ChatSession is an append-only sequence of messages keyed by
// (merchant, session, logical channel).
type ChatSession struct {
	ID         string
	MerchantID string
	SessionID  string
	Channel    string
	Messages   []ChatMessage
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

const (
	EventTypeChatIncoming = "chat.incoming"
	EventTypeChatReply    = "chat.reply"
)

const (
	OutboxStatusPending   = "pending"
	OutboxStatusClaimed   = "claimed"
	OutboxStatusDelivered = "delivered"
	OutboxStatusFailed    = "failed"
)

type OutboxEvent struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       map[string]any
	Exchange      string
	RoutingKey    string
	Status        string
	Attempts      int
	LastError     string
	OccurredAt    time.Time
	NextAttemptAt *time.Time
}

// IncomingMessage is the canonical form of one provider-delivered message.
// SourceID is nil when the provider payload carried no message id at all;
// an empty-but-present id still participates in dedupe.
type IncomingMessage struct {
	Provider   ChannelProvider
	ChannelID  string
	MerchantID string
	SourceID   *string
	From       string
	Text       string
	Timestamp  time.Time
	Metadata   map[string]any
}

// ReplayKey derives the idempotency key for one provider delivery.
func (m IncomingMessage) ReplayKey() string {
	sourceID := ""
	if m.SourceID != nil {
		sourceID = *m.SourceID
	}
	return fmt.Sprintf("idem:webhook:%s:%s:%s:%s", m.Provider, m.ChannelID, m.MerchantID, sourceID)
}
