package inbound

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"

	"github.com/goliatone/go-channels/core"
)

// ReplySender delivers a reply to the customer over the channel's
// transport. Implemented by the dispatch package.
type ReplySender interface {
	Send(ctx context.Context, merchantID, channel, sessionID, text string) error
}

type ReplyInput struct {
	MerchantID string
	SessionID  string
	Channel    string
	Text       string
	// Role defaults to bot; dashboards pass agent.
	Role     core.MessageRole
	Metadata map[string]any
}

// ReplyWriter appends outbound replies to the transcript and emits the
// matching outbox event in the same transaction, then optionally pushes the
// reply through the live transport.
type ReplyWriter struct {
	UnitOfWork core.UnitOfWork
	Sender     ReplySender
	Exchange   string
	Logger     core.Logger
	Now        func() time.Time
}

func NewReplyWriter(unitOfWork core.UnitOfWork, sender ReplySender, cfg core.Config, logger core.Logger) *ReplyWriter {
	return &ReplyWriter{
		UnitOfWork: unitOfWork,
		Sender:     sender,
		Exchange:   strings.TrimSpace(cfg.Outbox.Exchange),
		Logger:     glog.Ensure(logger),
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Append persists the reply and its outbox event. Transport delivery
// failures propagate after the write so the transcript never loses the
// reply that was attempted.
func (w *ReplyWriter) Append(ctx context.Context, in ReplyInput) (core.ChatMessage, error) {
	if w == nil || w.UnitOfWork == nil {
		return core.ChatMessage{}, inboundInternal("inbound: reply writer is not configured", nil)
	}
	in.MerchantID = strings.TrimSpace(in.MerchantID)
	in.SessionID = strings.TrimSpace(in.SessionID)
	in.Channel = strings.TrimSpace(in.Channel)
	if in.MerchantID == "" || in.SessionID == "" || in.Channel == "" {
		return core.ChatMessage{}, inboundBadInput("inbound: merchant id, session id, and channel are required", nil)
	}
	if strings.TrimSpace(in.Text) == "" {
		return core.ChatMessage{}, inboundBadInput("inbound: reply text is required", nil)
	}
	role := in.Role
	if role == "" {
		role = core.MessageRoleBot
	}

	now := w.now()
	message := core.ChatMessage{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      in.Text,
		Metadata:  in.Metadata,
		CreatedAt: now,
	}

	err := w.UnitOfWork.WithinTx(ctx, func(ctx context.Context, tx core.TxWriter) error {
		if err := tx.AppendMessage(ctx, core.AppendMessageInput{
			MerchantID: in.MerchantID,
			SessionID:  in.SessionID,
			Channel:    in.Channel,
			Message:    message,
		}); err != nil {
			return err
		}
		return tx.EnqueueOutbox(ctx, core.OutboxEvent{
			ID:            uuid.NewString(),
			AggregateType: "chat_session",
			AggregateID:   in.MerchantID + ":" + in.SessionID,
			EventType:     core.EventTypeChatReply,
			Payload: map[string]any{
				"merchant_id": in.MerchantID,
				"session_id":  in.SessionID,
				"channel":     in.Channel,
				"message_id":  message.ID,
				"role":        string(role),
				"text":        in.Text,
				"timestamp":   now.Format(time.RFC3339),
			},
			Exchange:   w.Exchange,
			RoutingKey: in.Channel,
			OccurredAt: now,
		})
	})
	if err != nil {
		return core.ChatMessage{}, inboundWrapError(
			err,
			mapReplyCategory(err),
			"inbound: reply persistence failed",
			0,
			"",
			nil,
		)
	}

	if w.Sender != nil {
		if sendErr := w.Sender.Send(ctx, in.MerchantID, in.Channel, in.SessionID, in.Text); sendErr != nil {
			return message, sendErr
		}
	}
	return message, nil
}

func mapReplyCategory(err error) goerrors.Category {
	if mapped := core.DefaultErrorMapper(err); mapped != nil {
		return mapped.Category
	}
	return goerrors.CategoryInternal
}

func (w *ReplyWriter) now() time.Time {
	if w != nil && w.Now != nil {
		return w.Now().UTC()
	}
	return time.Now().UTC()
}
