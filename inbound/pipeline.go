package inbound

import (
	"context"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"

	"github.com/goliatone/go-channels/core"
	"github.com/goliatone/go-channels/webhooks"
)

// Pipeline drives one webhook delivery through the full inbound flow:
// route, authorize, parse, dedupe, then append the message and the outbox
// event inside one storage transaction.
type Pipeline struct {
	Guard      *webhooks.SignatureGuard
	Registry   *core.AdapterRegistry
	Ledger     core.ReplayLedger
	UnitOfWork core.UnitOfWork
	Exchange   string
	ReplayTTL  time.Duration
	Logger     core.Logger
	Now        func() time.Time
}

func NewPipeline(
	guard *webhooks.SignatureGuard,
	registry *core.AdapterRegistry,
	ledger core.ReplayLedger,
	unitOfWork core.UnitOfWork,
	cfg core.Config,
	logger core.Logger,
) *Pipeline {
	return &Pipeline{
		Guard:      guard,
		Registry:   registry,
		Ledger:     ledger,
		UnitOfWork: unitOfWork,
		Exchange:   strings.TrimSpace(cfg.Outbox.Exchange),
		ReplayTTL:  time.Duration(cfg.ReplayTTL) * time.Second,
		Logger:     glog.Ensure(logger),
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Process handles one delivery. Duplicates are accepted with a 200 and zero
// writes; verification failures reject with a stable reason string.
func (p *Pipeline) Process(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	if p == nil || p.Guard == nil || p.Registry == nil || p.UnitOfWork == nil {
		return core.InboundResult{}, inboundInternal("inbound: pipeline is not configured", nil)
	}

	route, err := webhooks.DetectRoute(req.Path)
	if err != nil {
		return p.reject(err)
	}

	if route.Provider == core.ProviderWhatsAppCloud && webhooks.IsSubscriptionRequest(req) {
		return p.subscription(ctx, route, req)
	}

	resolved, err := p.Guard.Authorize(ctx, route, req)
	if err != nil {
		return p.reject(err)
	}

	adapter, err := p.Registry.Get(route.Provider)
	if err != nil {
		return p.reject(err)
	}
	messages, err := adapter.HandleWebhook(ctx, resolved.Channel, req)
	if err != nil {
		p.logWarn(ctx, "webhook payload rejected", map[string]any{
			"provider":   route.Provider,
			"channel_id": route.ChannelID,
			"error":      err.Error(),
		})
		return p.reject(inboundWrapError(
			err,
			goerrors.CategoryBadInput,
			"inbound: payload parse failed",
			http.StatusBadRequest,
			core.ChannelsErrorBadInput,
			map[string]any{"provider": string(route.Provider)},
		))
	}

	fresh := make([]core.IncomingMessage, 0, len(messages))
	deduped := 0
	for _, message := range messages {
		if message.SourceID == nil || p.Ledger == nil {
			fresh = append(fresh, message)
			continue
		}
		claimed, claimErr := p.Ledger.Claim(ctx, message.ReplayKey(), p.ReplayTTL)
		if claimErr != nil {
			return core.InboundResult{}, inboundWrapError(
				claimErr,
				goerrors.CategoryInternal,
				"inbound: idempotency claim failed",
				http.StatusInternalServerError,
				core.ChannelsErrorInternal,
				nil,
			)
		}
		if !claimed {
			deduped++
			continue
		}
		fresh = append(fresh, message)
	}

	if len(fresh) > 0 {
		txErr := p.UnitOfWork.WithinTx(ctx, func(ctx context.Context, tx core.TxWriter) error {
			for _, message := range fresh {
				if err := p.persistMessage(ctx, tx, message); err != nil {
					return err
				}
			}
			return nil
		})
		if txErr != nil {
			return core.InboundResult{}, inboundWrapError(
				txErr,
				goerrors.CategoryInternal,
				"inbound: message persistence failed",
				http.StatusInternalServerError,
				core.ChannelsErrorInternal,
				nil,
			)
		}
	}

	return core.InboundResult{
		Accepted:   true,
		StatusCode: http.StatusOK,
		Deduped:    deduped > 0 && len(fresh) == 0,
		Messages:   len(fresh),
		Metadata: map[string]any{
			"provider":      string(route.Provider),
			"channel_id":    route.ChannelID,
			"deduped_count": deduped,
		},
	}, nil
}

func (p *Pipeline) persistMessage(ctx context.Context, tx core.TxWriter, message core.IncomingMessage) error {
	now := p.now()
	timestamp := message.Timestamp
	if timestamp.IsZero() {
		timestamp = now
	}
	logical := message.Provider.LogicalChannel()
	sessionID := strings.TrimSpace(message.From)
	messageID := uuid.NewString()

	if err := tx.AppendMessage(ctx, core.AppendMessageInput{
		MerchantID: message.MerchantID,
		SessionID:  sessionID,
		Channel:    logical,
		Message: core.ChatMessage{
			ID:        messageID,
			Role:      core.MessageRoleCustomer,
			Text:      message.Text,
			Metadata:  message.Metadata,
			CreatedAt: timestamp,
		},
	}); err != nil {
		return err
	}

	payload := map[string]any{
		"merchant_id": message.MerchantID,
		"session_id":  sessionID,
		"channel":     logical,
		"channel_id":  message.ChannelID,
		"message_id":  messageID,
		"text":        message.Text,
		"timestamp":   timestamp.Format(time.RFC3339),
	}
	if message.SourceID != nil {
		payload["source_id"] = *message.SourceID
	}
	return tx.EnqueueOutbox(ctx, core.OutboxEvent{
		ID:            uuid.NewString(),
		AggregateType: "chat_session",
		AggregateID:   message.MerchantID + ":" + sessionID,
		EventType:     core.EventTypeChatIncoming,
		Payload:       payload,
		Exchange:      p.Exchange,
		RoutingKey:    logical,
		OccurredAt:    now,
	})
}

func (p *Pipeline) subscription(ctx context.Context, route webhooks.Route, req core.InboundRequest) (core.InboundResult, error) {
	resolved, err := p.Guard.Resolve(ctx, route)
	if err != nil {
		return p.reject(err)
	}
	challenge, err := webhooks.SubscriptionChallenge(p.Guard.Vault, resolved.Channel, req.Query)
	if err != nil {
		return p.reject(err)
	}
	return core.InboundResult{
		Accepted:   true,
		StatusCode: http.StatusOK,
		Metadata: map[string]any{
			"provider":  string(route.Provider),
			"challenge": challenge,
		},
	}, nil
}

// reject maps a boundary failure onto the coarse result the HTTP layer
// returns. Only the stable reason string leaves the process.
func (p *Pipeline) reject(err error) (core.InboundResult, error) {
	mapped := core.DefaultErrorMapper(err)
	status := http.StatusUnauthorized
	if mapped != nil && mapped.Code > 0 {
		status = mapped.Code
	}
	return core.InboundResult{
		Accepted:   false,
		StatusCode: status,
		Reason:     core.ReasonFor(err),
	}, mapped
}

func (p *Pipeline) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *Pipeline) logWarn(ctx context.Context, message string, fields map[string]any) {
	if p == nil || p.Logger == nil {
		return
	}
	logger := p.Logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(core.FieldsLogger); ok {
		logger = fieldsLogger.WithFields(core.RedactSensitiveMap(fields))
	}
	logger.Warn(message)
}
