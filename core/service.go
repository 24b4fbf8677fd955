package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Service owns the channel lifecycle: connecting provider accounts,
// disconnecting them, reconciling remote status, and reading transcripts.
// Inbound webhook processing and outbound dispatch build on top of it.
type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	vault             SecretVault
	registry          *AdapterRegistry
	channels          ChannelStore
	sessions          SessionStore
	outbox            OutboxStore
	replayLedger      ReplayLedger
	unitOfWork        UnitOfWork
	gateway           RealtimeGateway
	publisher         EventPublisher
	now               func() time.Time
}

// ServiceDependencies exposes the resolved wiring so downstream composition
// (commands, HTTP surfaces) can share the same instances.
type ServiceDependencies struct {
	Logger          Logger
	LoggerProvider  LoggerProvider
	MetricsRecorder MetricsRecorder
	ErrorFactory    ErrorFactory
	ErrorMapper     ErrorMapper
	ConfigProvider  ConfigProvider
	OptionsResolver OptionsResolver
	Vault           SecretVault
	Registry        *AdapterRegistry
	ChannelStore    ChannelStore
	SessionStore    SessionStore
	OutboxStore     OutboxStore
	ReplayLedger    ReplayLedger
	UnitOfWork      UnitOfWork
	Gateway         RealtimeGateway
	Publisher       EventPublisher
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("channels", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("channels"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = DefaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.registry == nil {
		builder.registry = NewAdapterRegistry()
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.repositoryFactory != nil {
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			storeProvider, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			if storeProvider != nil {
				if builder.channelStore == nil {
					builder.channelStore = storeProvider.ChannelStore()
				}
				if builder.sessionStore == nil {
					builder.sessionStore = storeProvider.SessionStore()
				}
				if builder.outboxStore == nil {
					builder.outboxStore = storeProvider.OutboxStore()
				}
				if builder.unitOfWork == nil {
					builder.unitOfWork = storeProvider.UnitOfWork()
				}
				if builder.replayLedger == nil {
					builder.replayLedger = storeProvider.ReplayLedger()
				}
			}
		}
	}
	if builder.channelStore == nil {
		builder.channelStore = NewMemoryChannelStore()
	}
	memorySessions, usingMemorySessions := builder.sessionStore.(*MemorySessionStore)
	if builder.sessionStore == nil {
		memorySessions = NewMemorySessionStore()
		builder.sessionStore = memorySessions
		usingMemorySessions = true
	}
	memoryOutbox, usingMemoryOutbox := builder.outboxStore.(*MemoryOutboxStore)
	if builder.outboxStore == nil {
		memoryOutbox = NewMemoryOutboxStore()
		builder.outboxStore = memoryOutbox
		usingMemoryOutbox = true
	}
	if builder.unitOfWork == nil && usingMemorySessions && usingMemoryOutbox {
		builder.unitOfWork = NewMemoryUnitOfWork(memorySessions, memoryOutbox)
	}
	if builder.unitOfWork == nil {
		return nil, mapBuildError(builder.errorMapper, fmt.Errorf("core: unit of work is required when mixing store backends"))
	}
	if builder.replayLedger == nil {
		builder.replayLedger = NewMemoryReplayLedger(time.Duration(finalConfig.ReplayTTL) * time.Second)
	}

	for _, adapter := range builder.adapters {
		if err := builder.registry.Register(adapter); err != nil {
			return nil, mapBuildError(builder.errorMapper, err)
		}
	}

	return &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		vault:             builder.vault,
		registry:          builder.registry,
		channels:          builder.channelStore,
		sessions:          builder.sessionStore,
		outbox:            builder.outboxStore,
		replayLedger:      builder.replayLedger,
		unitOfWork:        builder.unitOfWork,
		gateway:           builder.gateway,
		publisher:         builder.publisher,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:          s.logger,
		LoggerProvider:  s.loggerProvider,
		MetricsRecorder: s.metricsRecorder,
		ErrorFactory:    s.errorFactory,
		ErrorMapper:     s.errorMapper,
		ConfigProvider:  s.configProvider,
		OptionsResolver: s.optionsResolver,
		Vault:           s.vault,
		Registry:        s.registry,
		ChannelStore:    s.channels,
		SessionStore:    s.sessions,
		OutboxStore:     s.outbox,
		ReplayLedger:    s.replayLedger,
		UnitOfWork:      s.unitOfWork,
		Gateway:         s.gateway,
		Publisher:       s.publisher,
	}
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return channelsErrorMapper(err)
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) resolveAdapter(provider ChannelProvider) (ChannelAdapter, error) {
	if s == nil || s.registry == nil {
		return nil, fmt.Errorf("core: adapter registry is not configured")
	}
	adapter, err := s.registry.Get(provider)
	if err != nil {
		return nil, s.mapError(err)
	}
	return adapter, nil
}

// ConnectChannel provisions (or re-provisions) the merchant's channel for a
// provider. The default channel record is reused when one exists; otherwise
// a new record becomes the default for the pair.
func (s *Service) ConnectChannel(ctx context.Context, merchantID string, provider ChannelProvider, in ConnectInput) (result ConnectResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"merchant_id": merchantID,
		"provider":    provider,
	}
	defer func() {
		if result.Channel.ID != "" {
			fields["channel_id"] = result.Channel.ID
		}
		s.observeOperation(ctx, startedAt, "connect_channel", err, fields)
	}()

	merchantID = strings.TrimSpace(merchantID)
	if merchantID == "" {
		err = s.mapError(fmt.Errorf("core: merchant id is required"))
		return ConnectResult{}, err
	}
	if !provider.Valid() {
		err = s.mapError(fmt.Errorf("%w: %q", ErrInvalidProvider, provider))
		return ConnectResult{}, err
	}
	adapter, err := s.resolveAdapter(provider)
	if err != nil {
		return ConnectResult{}, err
	}

	channel, findErr := s.channels.FindDefault(ctx, merchantID, provider)
	if findErr != nil {
		if !IsNotFound(findErr) {
			err = s.mapError(findErr)
			return ConnectResult{}, err
		}
		channel, err = s.channels.Create(ctx, CreateChannelInput{
			MerchantID:   merchantID,
			Provider:     provider,
			AccountLabel: in.AccountLabel,
			IsDefault:    true,
			Enabled:      true,
		})
		if err != nil {
			err = s.mapError(err)
			return ConnectResult{}, err
		}
	}
	if base := strings.TrimSpace(s.config.PublicBaseURL); base != "" {
		if url, urlErr := WebhookURL(base, provider, channel.ID); urlErr == nil {
			channel.WebhookURL = url
		}
	}

	result, err = adapter.Connect(ctx, channel, in)
	if err != nil {
		reason := err.Error()
		if statusErr := s.channels.UpdateStatus(ctx, channel.ID, ChannelStatusError, reason); statusErr != nil {
			s.logError(ctx, "connect status update failed", map[string]any{
				"channel_id": channel.ID,
				"error":      statusErr.Error(),
			})
		}
		err = s.mapError(err)
		return ConnectResult{}, err
	}

	persisted, err := s.channels.Update(ctx, result.Channel)
	if err != nil {
		err = s.mapError(err)
		return ConnectResult{}, err
	}
	result.Channel = persisted
	return result, nil
}

// DisconnectChannel tears a channel down according to mode. Remote cleanup
// is best effort; the local record always converges to disconnected.
func (s *Service) DisconnectChannel(ctx context.Context, channelID string, mode DisconnectMode) (channel Channel, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"channel_id": channelID,
		"mode":       string(mode),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "disconnect_channel", err, fields)
	}()

	switch mode {
	case DisconnectModeDisable, DisconnectModeDisconnect, DisconnectModeWipe:
	case "":
		mode = DisconnectModeDisconnect
	default:
		err = s.mapError(fmt.Errorf("core: invalid disconnect mode: %q", mode))
		return Channel{}, err
	}

	channel, err = s.channels.GetWithSecrets(ctx, channelID)
	if err != nil {
		err = s.mapError(err)
		return Channel{}, err
	}
	fields["merchant_id"] = channel.MerchantID
	fields["provider"] = channel.Provider

	adapter, err := s.resolveAdapter(channel.Provider)
	if err != nil {
		return Channel{}, err
	}
	updated, adapterErr := adapter.Disconnect(ctx, channel, mode)
	if adapterErr != nil {
		s.logError(ctx, "remote disconnect failed", map[string]any{
			"channel_id": channel.ID,
			"provider":   channel.Provider,
			"error":      adapterErr.Error(),
		})
		updated = channel
	}

	now := s.now()
	if transitionErr := updated.TransitionTo(ChannelStatusDisconnected, "", now); transitionErr != nil {
		err = s.mapError(transitionErr)
		return Channel{}, err
	}
	switch mode {
	case DisconnectModeDisable:
		updated.Enabled = false
	case DisconnectModeWipe:
		updated.WipeCredentials()
	}

	channel, err = s.channels.Update(ctx, updated)
	if err != nil {
		err = s.mapError(err)
		return Channel{}, err
	}
	return channel, nil
}

// RefreshChannel re-runs the provider-side refresh, e.g. minting a fresh QR
// for a gateway-backed session.
func (s *Service) RefreshChannel(ctx context.Context, channelID string) (channel Channel, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"channel_id": channelID}
	defer func() {
		s.observeOperation(ctx, startedAt, "refresh_channel", err, fields)
	}()

	channel, err = s.channels.GetWithSecrets(ctx, channelID)
	if err != nil {
		err = s.mapError(err)
		return Channel{}, err
	}
	fields["merchant_id"] = channel.MerchantID
	fields["provider"] = channel.Provider

	adapter, err := s.resolveAdapter(channel.Provider)
	if err != nil {
		return Channel{}, err
	}
	refreshed, err := adapter.Refresh(ctx, channel)
	if err != nil {
		err = s.mapError(err)
		return Channel{}, err
	}
	channel, err = s.channels.Update(ctx, refreshed)
	if err != nil {
		err = s.mapError(err)
		return Channel{}, err
	}
	return channel, nil
}

// ChannelStatus reconciles stored state against the provider and persists
// any drift it finds.
func (s *Service) ChannelStatus(ctx context.Context, channelID string) (channel Channel, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"channel_id": channelID}
	defer func() {
		s.observeOperation(ctx, startedAt, "channel_status", err, fields)
	}()

	channel, err = s.channels.GetWithSecrets(ctx, channelID)
	if err != nil {
		err = s.mapError(err)
		return Channel{}, err
	}
	fields["merchant_id"] = channel.MerchantID
	fields["provider"] = channel.Provider

	adapter, err := s.resolveAdapter(channel.Provider)
	if err != nil {
		return Channel{}, err
	}
	reconciled, err := adapter.Status(ctx, channel)
	if err != nil {
		err = s.mapError(err)
		return Channel{}, err
	}
	if reconciled.Status != channel.Status || reconciled.QR != channel.QR {
		reconciled, err = s.channels.Update(ctx, reconciled)
		if err != nil {
			err = s.mapError(err)
			return Channel{}, err
		}
	}
	return reconciled, nil
}

func (s *Service) SetDefaultChannel(ctx context.Context, merchantID string, provider ChannelProvider, channelID string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"merchant_id": merchantID,
		"provider":    provider,
		"channel_id":  channelID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "set_default_channel", err, fields)
	}()

	if !provider.Valid() {
		err = s.mapError(fmt.Errorf("%w: %q", ErrInvalidProvider, provider))
		return err
	}
	if err = s.channels.SetDefault(ctx, strings.TrimSpace(merchantID), provider, strings.TrimSpace(channelID)); err != nil {
		err = s.mapError(err)
		return err
	}
	return nil
}

func (s *Service) GetChannel(ctx context.Context, channelID string) (PublicChannel, error) {
	if s == nil || s.channels == nil {
		return PublicChannel{}, fmt.Errorf("core: channel store is not configured")
	}
	channel, err := s.channels.Get(ctx, channelID)
	if err != nil {
		return PublicChannel{}, s.mapError(err)
	}
	return channel.Public(), nil
}

func (s *Service) ListChannels(ctx context.Context, merchantID string) ([]PublicChannel, error) {
	if s == nil || s.channels == nil {
		return nil, fmt.Errorf("core: channel store is not configured")
	}
	channels, err := s.channels.ListByMerchant(ctx, merchantID)
	if err != nil {
		return nil, s.mapError(err)
	}
	out := make([]PublicChannel, 0, len(channels))
	for _, channel := range channels {
		out = append(out, channel.Public())
	}
	return out, nil
}

func (s *Service) GetSession(ctx context.Context, merchantID, sessionID, channel string) (ChatSession, error) {
	if s == nil || s.sessions == nil {
		return ChatSession{}, fmt.Errorf("core: session store is not configured")
	}
	session, err := s.sessions.GetBySession(ctx, merchantID, sessionID, channel)
	if err != nil {
		return ChatSession{}, s.mapError(err)
	}
	return session, nil
}

func (s *Service) ListSessions(ctx context.Context, merchantID string) ([]ChatSession, error) {
	if s == nil || s.sessions == nil {
		return nil, fmt.Errorf("core: session store is not configured")
	}
	sessions, err := s.sessions.ListByMerchant(ctx, merchantID)
	if err != nil {
		return nil, s.mapError(err)
	}
	return sessions, nil
}

func (s *Service) RateMessage(ctx context.Context, merchantID, sessionID, channel, messageID string, rating int) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"merchant_id": merchantID,
		"session_id":  sessionID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "rate_message", err, fields)
	}()

	if s == nil || s.sessions == nil {
		err = fmt.Errorf("core: session store is not configured")
		return err
	}
	if err = s.sessions.RateMessage(ctx, merchantID, sessionID, channel, messageID, rating); err != nil {
		err = s.mapError(err)
		return err
	}
	return nil
}
