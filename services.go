package channels

import "github.com/goliatone/go-channels/core"

type Config = core.Config

type EncryptionConfig = core.EncryptionConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type ChannelStore = core.ChannelStore
type SessionStore = core.SessionStore
type OutboxStore = core.OutboxStore
type ReplayLedger = core.ReplayLedger
type UnitOfWork = core.UnitOfWork
type SecretVault = core.SecretVault
type ChannelAdapter = core.ChannelAdapter
type RealtimeGateway = core.RealtimeGateway
type EventPublisher = core.EventPublisher

type Channel = core.Channel
type PublicChannel = core.PublicChannel
type ChannelProvider = core.ChannelProvider
type ChatSession = core.ChatSession
type ChatMessage = core.ChatMessage

type ConnectInput = core.ConnectInput
type ConnectResult = core.ConnectResult
type DisconnectMode = core.DisconnectMode

type InboundRequest = core.InboundRequest
type InboundResult = core.InboundResult

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorFactory      = core.WithErrorFactory
	WithErrorMapper       = core.WithErrorMapper
	WithPersistenceClient = core.WithPersistenceClient
	WithRepositoryFactory = core.WithRepositoryFactory
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithVault             = core.WithVault
	WithAdapterRegistry   = core.WithAdapterRegistry
	WithAdapter           = core.WithAdapter
	WithChannelStore      = core.WithChannelStore
	WithSessionStore      = core.WithSessionStore
	WithOutboxStore       = core.WithOutboxStore
	WithReplayLedger      = core.WithReplayLedger
	WithUnitOfWork        = core.WithUnitOfWork
	WithRealtimeGateway   = core.WithRealtimeGateway
	WithEventPublisher    = core.WithEventPublisher
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
