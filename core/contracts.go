package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// SecretVault encrypts provider credentials at rest. Hash is a one-way
// digest for values that only need equality checks, never recovery.
type SecretVault interface {
	Encrypt(ctx context.Context, plaintext []byte) (string, error)
	Decrypt(ctx context.Context, blob string) ([]byte, error)
	Hash(value string) string
}

type CreateChannelInput struct {
	MerchantID   string
	Provider     ChannelProvider
	AccountLabel string
	IsDefault    bool
	Enabled      bool
}

type ChannelStore interface {
	// Create inserts a channel. When IsDefault is set the previous default
	// for the same (merchant, provider) pair is unset in the same
	// transaction.
	Create(ctx context.Context, in CreateChannelInput) (Channel, error)
	// Get returns a channel with credential columns stripped.
	Get(ctx context.Context, id string) (Channel, error)
	// GetWithSecrets returns a channel including encrypted credential blobs.
	GetWithSecrets(ctx context.Context, id string) (Channel, error)
	FindDefault(ctx context.Context, merchantID string, provider ChannelProvider) (Channel, error)
	ListByMerchant(ctx context.Context, merchantID string) ([]Channel, error)
	Update(ctx context.Context, channel Channel) (Channel, error)
	SetDefault(ctx context.Context, merchantID string, provider ChannelProvider, channelID string) error
	UpdateStatus(ctx context.Context, id string, status ChannelStatus, reason string) error
	SoftDelete(ctx context.Context, id string) error
	Wipe(ctx context.Context, id string) error
}

// ChannelDefaultsReader is the subset of ChannelStore the outbound
// dispatcher needs on its hot path.
type ChannelDefaultsReader interface {
	FindDefault(ctx context.Context, merchantID string, provider ChannelProvider) (Channel, error)
}

type AppendMessageInput struct {
	MerchantID string
	SessionID  string
	Channel    string
	Message    ChatMessage
}

type SessionStore interface {
	GetBySession(ctx context.Context, merchantID, sessionID, channel string) (ChatSession, error)
	ListByMerchant(ctx context.Context, merchantID string) ([]ChatSession, error)
	RateMessage(ctx context.Context, merchantID, sessionID, channel, messageID string, rating int) error
}

// TxWriter exposes the two writes the inbound pipeline must pair
// atomically. Implementations are bound to one storage transaction, or to
// the base connection when the engine cannot open one.
type TxWriter interface {
	AppendMessage(ctx context.Context, in AppendMessageInput) error
	EnqueueOutbox(ctx context.Context, event OutboxEvent) error
}

// UnitOfWork runs fn inside a single storage transaction. When the engine
// reports multi-statement transactions as unsupported the same writes run
// non-transactionally against the base connection; callers accept that
// weaker guarantee instead of failing the request.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx TxWriter) error) error
}

type OutboxStore interface {
	Enqueue(ctx context.Context, event OutboxEvent) error
	ClaimBatch(ctx context.Context, limit int) ([]OutboxEvent, error)
	Ack(ctx context.Context, eventID string) error
	Retry(ctx context.Context, eventID string, cause error, nextAttemptAt time.Time) error
}

// ReplayLedger provides the atomic set-if-absent primitive behind inbound
// dedupe. Claim returns true exactly once per key within the TTL window.
type ReplayLedger interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event OutboxEvent) error
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// RepositoryStoreFactory builds the SQL-backed stores from a persistence
// client. Implemented by the store/sql package; referenced through any so
// core stays free of driver imports.
type RepositoryStoreFactory interface {
	BuildStores(client any) (StoreProvider, error)
}

type StoreProvider interface {
	ChannelStore() ChannelStore
	SessionStore() SessionStore
	OutboxStore() OutboxStore
	UnitOfWork() UnitOfWork
	ReplayLedger() ReplayLedger
}

type DispatchStats struct {
	Claimed   int
	Delivered int
	Retried   int
	Failed    int
}

type OutboxRelay interface {
	DispatchPending(ctx context.Context, batchSize int) (DispatchStats, error)
}

type DisconnectMode string

const (
	// DisconnectModeDisable keeps credentials but disables the channel.
	DisconnectModeDisable DisconnectMode = "disable"
	// DisconnectModeDisconnect tears down the remote hook, keeps the record.
	DisconnectModeDisconnect DisconnectMode = "disconnect"
	// DisconnectModeWipe clears every stored credential.
	DisconnectModeWipe DisconnectMode = "wipe"
)

type ConnectInput struct {
	BotToken      string
	AccessToken   string
	AppSecret     string
	VerifyToken   string
	PhoneNumberID string
	WabaID        string
	AccountLabel  string
	Metadata      map[string]any
}

type ConnectResult struct {
	Channel  Channel
	QR       string
	Metadata map[string]any
}

type InboundRequest struct {
	Method   string
	Path     string
	Headers  map[string]string
	Query    map[string]string
	Body     []byte
	Metadata map[string]any
}

type InboundResult struct {
	Accepted   bool
	StatusCode int
	Reason     string
	Deduped    bool
	Messages   int
	Metadata   map[string]any
}

// ChannelAdapter is the per-provider transport. Connect and SendMessage
// propagate remote failures to the caller; best-effort cleanup during
// Disconnect is logged and swallowed so local state always converges.
type ChannelAdapter interface {
	Provider() ChannelProvider
	Connect(ctx context.Context, channel Channel, in ConnectInput) (ConnectResult, error)
	Disconnect(ctx context.Context, channel Channel, mode DisconnectMode) (Channel, error)
	Refresh(ctx context.Context, channel Channel) (Channel, error)
	Status(ctx context.Context, channel Channel) (Channel, error)
	SendMessage(ctx context.Context, channel Channel, to string, text string) error
	HandleWebhook(ctx context.Context, channel Channel, req InboundRequest) ([]IncomingMessage, error)
}

// RealtimeGateway pushes text to a live webchat or dashboard session.
type RealtimeGateway interface {
	PushToSession(ctx context.Context, merchantID, sessionID, text string, metadata map[string]any) error
}
