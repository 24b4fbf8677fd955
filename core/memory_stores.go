package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryChannelStore is the in-process ChannelStore used in tests and in
// deployments that have not wired a SQL backend yet.
type MemoryChannelStore struct {
	mu       sync.RWMutex
	channels map[string]Channel
	Now      func() time.Time
}

func NewMemoryChannelStore() *MemoryChannelStore {
	return &MemoryChannelStore{
		channels: map[string]Channel{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (s *MemoryChannelStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *MemoryChannelStore) Create(_ context.Context, in CreateChannelInput) (Channel, error) {
	if s == nil {
		return Channel{}, fmt.Errorf("core: channel store is not configured")
	}
	merchantID := strings.TrimSpace(in.MerchantID)
	if merchantID == "" {
		return Channel{}, fmt.Errorf("core: merchant id is required")
	}
	if !in.Provider.Valid() {
		return Channel{}, fmt.Errorf("%w: %q", ErrInvalidProvider, in.Provider)
	}
	now := s.now()
	channel := Channel{
		ID:           uuid.NewString(),
		MerchantID:   merchantID,
		Provider:     in.Provider,
		Enabled:      in.Enabled,
		Status:       ChannelStatusDisconnected,
		AccountLabel: strings.TrimSpace(in.AccountLabel),
		IsDefault:    in.IsDefault,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if channel.IsDefault {
		s.unsetDefaultLocked(merchantID, in.Provider)
	}
	s.channels[channel.ID] = channel
	return channel, nil
}

func (s *MemoryChannelStore) Get(ctx context.Context, id string) (Channel, error) {
	channel, err := s.GetWithSecrets(ctx, id)
	if err != nil {
		return Channel{}, err
	}
	channel.BotTokenEnc = ""
	channel.AccessTokenEnc = ""
	channel.AppSecretEnc = ""
	channel.VerifyTokenHash = ""
	return channel, nil
}

func (s *MemoryChannelStore) GetWithSecrets(_ context.Context, id string) (Channel, error) {
	if s == nil {
		return Channel{}, fmt.Errorf("core: channel store is not configured")
	}
	id = strings.TrimSpace(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	channel, ok := s.channels[id]
	if !ok || channel.DeletedAt != nil {
		return Channel{}, fmt.Errorf("%w: %s", ErrChannelNotFound, id)
	}
	return channel, nil
}

func (s *MemoryChannelStore) FindDefault(_ context.Context, merchantID string, provider ChannelProvider) (Channel, error) {
	if s == nil {
		return Channel{}, fmt.Errorf("core: channel store is not configured")
	}
	merchantID = strings.TrimSpace(merchantID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, channel := range s.channels {
		if channel.MerchantID == merchantID &&
			channel.Provider == provider &&
			channel.IsDefault &&
			channel.DeletedAt == nil {
			return channel, nil
		}
	}
	return Channel{}, fmt.Errorf("%w: default %s channel for merchant %s", ErrChannelNotFound, provider, merchantID)
}

func (s *MemoryChannelStore) ListByMerchant(_ context.Context, merchantID string) ([]Channel, error) {
	if s == nil {
		return nil, fmt.Errorf("core: channel store is not configured")
	}
	merchantID = strings.TrimSpace(merchantID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Channel{}
	for _, channel := range s.channels {
		if channel.MerchantID == merchantID && channel.DeletedAt == nil {
			out = append(out, channel)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryChannelStore) Update(_ context.Context, channel Channel) (Channel, error) {
	if s == nil {
		return Channel{}, fmt.Errorf("core: channel store is not configured")
	}
	id := strings.TrimSpace(channel.ID)
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.channels[id]
	if !ok || existing.DeletedAt != nil {
		return Channel{}, fmt.Errorf("%w: %s", ErrChannelNotFound, id)
	}
	channel.CreatedAt = existing.CreatedAt
	channel.UpdatedAt = s.now()
	if channel.IsDefault && !existing.IsDefault {
		s.unsetDefaultLocked(channel.MerchantID, channel.Provider)
	}
	s.channels[id] = channel
	return channel, nil
}

func (s *MemoryChannelStore) SetDefault(_ context.Context, merchantID string, provider ChannelProvider, channelID string) error {
	if s == nil {
		return fmt.Errorf("core: channel store is not configured")
	}
	merchantID = strings.TrimSpace(merchantID)
	channelID = strings.TrimSpace(channelID)
	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := s.channels[channelID]
	if !ok || target.DeletedAt != nil || target.MerchantID != merchantID || target.Provider != provider {
		return fmt.Errorf("%w: %s", ErrChannelNotFound, channelID)
	}
	s.unsetDefaultLocked(merchantID, provider)
	target.IsDefault = true
	target.UpdatedAt = s.now()
	s.channels[channelID] = target
	return nil
}

func (s *MemoryChannelStore) UpdateStatus(_ context.Context, id string, status ChannelStatus, reason string) error {
	if s == nil {
		return fmt.Errorf("core: channel store is not configured")
	}
	id = strings.TrimSpace(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	channel, ok := s.channels[id]
	if !ok || channel.DeletedAt != nil {
		return fmt.Errorf("%w: %s", ErrChannelNotFound, id)
	}
	if err := channel.TransitionTo(status, reason, s.now()); err != nil {
		return err
	}
	s.channels[id] = channel
	return nil
}

func (s *MemoryChannelStore) SoftDelete(_ context.Context, id string) error {
	if s == nil {
		return fmt.Errorf("core: channel store is not configured")
	}
	id = strings.TrimSpace(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	channel, ok := s.channels[id]
	if !ok || channel.DeletedAt != nil {
		return fmt.Errorf("%w: %s", ErrChannelNotFound, id)
	}
	now := s.now()
	channel.DeletedAt = &now
	channel.Enabled = false
	channel.UpdatedAt = now
	s.channels[id] = channel
	return nil
}

func (s *MemoryChannelStore) Wipe(_ context.Context, id string) error {
	if s == nil {
		return fmt.Errorf("core: channel store is not configured")
	}
	id = strings.TrimSpace(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	channel, ok := s.channels[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrChannelNotFound, id)
	}
	channel.WipeCredentials()
	channel.UpdatedAt = s.now()
	s.channels[id] = channel
	return nil
}

func (s *MemoryChannelStore) unsetDefaultLocked(merchantID string, provider ChannelProvider) {
	for id, channel := range s.channels {
		if channel.MerchantID == merchantID && channel.Provider == provider && channel.IsDefault {
			channel.IsDefault = false
			channel.UpdatedAt = s.now()
			s.channels[id] = channel
		}
	}
}

// MemorySessionStore keeps chat transcripts in process memory.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]ChatSession
	Now      func() time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: map[string]ChatSession{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func sessionKey(merchantID, sessionID, channel string) string {
	return strings.TrimSpace(merchantID) + "|" + strings.TrimSpace(sessionID) + "|" + strings.TrimSpace(channel)
}

func (s *MemorySessionStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *MemorySessionStore) AppendMessage(_ context.Context, in AppendMessageInput) error {
	if s == nil {
		return fmt.Errorf("core: session store is not configured")
	}
	if strings.TrimSpace(in.MerchantID) == "" || strings.TrimSpace(in.SessionID) == "" {
		return fmt.Errorf("core: merchant id and session id are required")
	}
	key := sessionKey(in.MerchantID, in.SessionID, in.Channel)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[key]
	if !ok {
		session = ChatSession{
			ID:         uuid.NewString(),
			MerchantID: strings.TrimSpace(in.MerchantID),
			SessionID:  strings.TrimSpace(in.SessionID),
			Channel:    strings.TrimSpace(in.Channel),
			CreatedAt:  now,
		}
	}
	message := in.Message
	if strings.TrimSpace(message.ID) == "" {
		message.ID = uuid.NewString()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = now
	}
	session.Messages = append(session.Messages, message)
	session.UpdatedAt = now
	s.sessions[key] = session
	return nil
}

func (s *MemorySessionStore) GetBySession(_ context.Context, merchantID, sessionID, channel string) (ChatSession, error) {
	if s == nil {
		return ChatSession{}, fmt.Errorf("core: session store is not configured")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionKey(merchantID, sessionID, channel)]
	if !ok {
		return ChatSession{}, fmt.Errorf("%w: %s/%s", ErrSessionNotFound, merchantID, sessionID)
	}
	return session, nil
}

func (s *MemorySessionStore) ListByMerchant(_ context.Context, merchantID string) ([]ChatSession, error) {
	if s == nil {
		return nil, fmt.Errorf("core: session store is not configured")
	}
	merchantID = strings.TrimSpace(merchantID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []ChatSession{}
	for _, session := range s.sessions {
		if session.MerchantID == merchantID {
			out = append(out, session)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *MemorySessionStore) RateMessage(_ context.Context, merchantID, sessionID, channel, messageID string, rating int) error {
	if s == nil {
		return fmt.Errorf("core: session store is not configured")
	}
	if rating < -1 || rating > 1 {
		return fmt.Errorf("core: rating must be -1, 0, or 1")
	}
	key := sessionKey(merchantID, sessionID, channel)
	messageID = strings.TrimSpace(messageID)

	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[key]
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrSessionNotFound, merchantID, sessionID)
	}
	for i := range session.Messages {
		if session.Messages[i].ID == messageID {
			session.Messages[i].Rating = rating
			session.UpdatedAt = s.now()
			s.sessions[key] = session
			return nil
		}
	}
	return fmt.Errorf("core: message not found: %s", messageID)
}

// MemoryOutboxStore keeps pending events in memory. Claimed events go back
// to pending on Retry with the attempt counter bumped.
type MemoryOutboxStore struct {
	mu     sync.Mutex
	events map[string]OutboxEvent
	order  []string
	Now    func() time.Time
}

func NewMemoryOutboxStore() *MemoryOutboxStore {
	return &MemoryOutboxStore{
		events: map[string]OutboxEvent{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (s *MemoryOutboxStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *MemoryOutboxStore) Enqueue(_ context.Context, event OutboxEvent) error {
	if s == nil {
		return fmt.Errorf("core: outbox store is not configured")
	}
	if strings.TrimSpace(event.ID) == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	event.Status = OutboxStatusPending

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.events[event.ID]; !exists {
		s.order = append(s.order, event.ID)
	}
	s.events[event.ID] = event
	return nil
}

func (s *MemoryOutboxStore) ClaimBatch(_ context.Context, limit int) ([]OutboxEvent, error) {
	if s == nil {
		return nil, fmt.Errorf("core: outbox store is not configured")
	}
	if limit <= 0 {
		limit = 50
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	claimed := []OutboxEvent{}
	for _, id := range s.order {
		if len(claimed) >= limit {
			break
		}
		event, ok := s.events[id]
		if !ok || event.Status != OutboxStatusPending {
			continue
		}
		if event.NextAttemptAt != nil && now.Before(*event.NextAttemptAt) {
			continue
		}
		event.Status = OutboxStatusClaimed
		s.events[id] = event
		claimed = append(claimed, event)
	}
	return claimed, nil
}

func (s *MemoryOutboxStore) Ack(_ context.Context, eventID string) error {
	if s == nil {
		return fmt.Errorf("core: outbox store is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[eventID]
	if !ok {
		return fmt.Errorf("core: outbox event not found: %s", eventID)
	}
	event.Status = OutboxStatusDelivered
	event.LastError = ""
	s.events[eventID] = event
	return nil
}

func (s *MemoryOutboxStore) Retry(_ context.Context, eventID string, cause error, nextAttemptAt time.Time) error {
	if s == nil {
		return fmt.Errorf("core: outbox store is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[eventID]
	if !ok {
		return fmt.Errorf("core: outbox event not found: %s", eventID)
	}
	event.Attempts++
	if cause != nil {
		event.LastError = cause.Error()
	}
	if nextAttemptAt.IsZero() {
		event.Status = OutboxStatusFailed
		event.NextAttemptAt = nil
	} else {
		event.Status = OutboxStatusPending
		at := nextAttemptAt
		event.NextAttemptAt = &at
	}
	s.events[eventID] = event
	return nil
}

// Pending returns a snapshot of events still awaiting delivery. Test helper.
func (s *MemoryOutboxStore) Pending() []OutboxEvent {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []OutboxEvent{}
	for _, id := range s.order {
		event, ok := s.events[id]
		if ok && event.Status == OutboxStatusPending {
			out = append(out, event)
		}
	}
	return out
}

// MemoryUnitOfWork pairs the in-memory session and outbox stores behind the
// transactional write surface. There is no rollback; it exists so the
// pipeline has one code path regardless of backend.
type MemoryUnitOfWork struct {
	Sessions *MemorySessionStore
	Outbox   *MemoryOutboxStore
}

func NewMemoryUnitOfWork(sessions *MemorySessionStore, outbox *MemoryOutboxStore) *MemoryUnitOfWork {
	return &MemoryUnitOfWork{Sessions: sessions, Outbox: outbox}
}

func (u *MemoryUnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, tx TxWriter) error) error {
	if u == nil || u.Sessions == nil || u.Outbox == nil {
		return fmt.Errorf("core: unit of work is not configured")
	}
	if fn == nil {
		return fmt.Errorf("core: transaction function is required")
	}
	return fn(ctx, memoryTxWriter{sessions: u.Sessions, outbox: u.Outbox})
}

type memoryTxWriter struct {
	sessions *MemorySessionStore
	outbox   *MemoryOutboxStore
}

func (w memoryTxWriter) AppendMessage(ctx context.Context, in AppendMessageInput) error {
	return w.sessions.AppendMessage(ctx, in)
}

func (w memoryTxWriter) EnqueueOutbox(ctx context.Context, event OutboxEvent) error {
	return w.outbox.Enqueue(ctx, event)
}

var _ ChannelStore = (*MemoryChannelStore)(nil)
var _ SessionStore = (*MemorySessionStore)(nil)
var _ OutboxStore = (*MemoryOutboxStore)(nil)
var _ UnitOfWork = (*MemoryUnitOfWork)(nil)
var _ TxWriter = (memoryTxWriter{})
