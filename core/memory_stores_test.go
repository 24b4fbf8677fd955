package core

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryChannelStoreCreateAndDefaultSwap(t *testing.T) {
	store := NewMemoryChannelStore()
	ctx := context.Background()

	first, err := store.Create(ctx, CreateChannelInput{
		MerchantID: "m-1",
		Provider:   ProviderTelegram,
		IsDefault:  true,
		Enabled:    true,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	second, err := store.Create(ctx, CreateChannelInput{
		MerchantID: "m-1",
		Provider:   ProviderTelegram,
		IsDefault:  true,
		Enabled:    true,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	current, err := store.FindDefault(ctx, "m-1", ProviderTelegram)
	if err != nil {
		t.Fatalf("find default failed: %v", err)
	}
	if current.ID != second.ID {
		t.Fatalf("expected second channel as default, got %s", current.ID)
	}

	if err := store.SetDefault(ctx, "m-1", ProviderTelegram, first.ID); err != nil {
		t.Fatalf("set default failed: %v", err)
	}
	current, err = store.FindDefault(ctx, "m-1", ProviderTelegram)
	if err != nil {
		t.Fatalf("find default failed: %v", err)
	}
	if current.ID != first.ID {
		t.Fatalf("expected first channel as default, got %s", current.ID)
	}
}

func TestMemoryChannelStoreGetStripsSecrets(t *testing.T) {
	store := NewMemoryChannelStore()
	ctx := context.Background()

	created, err := store.Create(ctx, CreateChannelInput{MerchantID: "m-1", Provider: ProviderTelegram, Enabled: true})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	created.BotTokenEnc = "enc"
	created.VerifyTokenHash = "hash"
	if _, err := store.Update(ctx, created); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	public, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if public.BotTokenEnc != "" || public.VerifyTokenHash != "" {
		t.Fatal("expected secrets stripped from Get")
	}

	withSecrets, err := store.GetWithSecrets(ctx, created.ID)
	if err != nil {
		t.Fatalf("get with secrets failed: %v", err)
	}
	if withSecrets.BotTokenEnc != "enc" {
		t.Fatal("expected secrets retained on GetWithSecrets")
	}
}

func TestMemoryChannelStoreUpdateStatusEnforcesTransitions(t *testing.T) {
	store := NewMemoryChannelStore()
	ctx := context.Background()

	created, err := store.Create(ctx, CreateChannelInput{MerchantID: "m-1", Provider: ProviderWhatsAppQR, Enabled: true})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := store.UpdateStatus(ctx, created.ID, ChannelStatusRevoked, ""); !errors.Is(err, ErrInvalidChannelStatusTransition) {
		t.Fatalf("expected transition rejection, got %v", err)
	}
	if err := store.UpdateStatus(ctx, created.ID, ChannelStatusPending, ""); err != nil {
		t.Fatalf("expected pending transition, got %v", err)
	}
	if err := store.UpdateStatus(ctx, created.ID, ChannelStatusConnected, ""); err != nil {
		t.Fatalf("expected connected transition, got %v", err)
	}
}

func TestMemoryChannelStoreSoftDeleteHidesChannel(t *testing.T) {
	store := NewMemoryChannelStore()
	ctx := context.Background()

	created, err := store.Create(ctx, CreateChannelInput{MerchantID: "m-1", Provider: ProviderWebchat, Enabled: true})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := store.SoftDelete(ctx, created.ID); err != nil {
		t.Fatalf("soft delete failed: %v", err)
	}
	if _, err := store.Get(ctx, created.ID); !IsNotFound(err) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	list, err := store.ListByMerchant(ctx, "m-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %d", len(list))
	}
}

func TestMemorySessionStoreAppendAndRate(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	input := AppendMessageInput{
		MerchantID: "m-1",
		SessionID:  "s-1",
		Channel:    "telegram",
		Message:    ChatMessage{ID: "msg-1", Role: MessageRoleCustomer, Text: "hola"},
	}
	if err := store.AppendMessage(ctx, input); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	input.Message = ChatMessage{ID: "msg-2", Role: MessageRoleBot, Text: "hello"}
	if err := store.AppendMessage(ctx, input); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	session, err := store.GetBySession(ctx, "m-1", "s-1", "telegram")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(session.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(session.Messages))
	}

	if err := store.RateMessage(ctx, "m-1", "s-1", "telegram", "msg-2", 1); err != nil {
		t.Fatalf("rate failed: %v", err)
	}
	session, _ = store.GetBySession(ctx, "m-1", "s-1", "telegram")
	if session.Messages[1].Rating != 1 {
		t.Fatalf("expected rating persisted, got %d", session.Messages[1].Rating)
	}

	if err := store.RateMessage(ctx, "m-1", "s-1", "telegram", "msg-2", 5); err == nil {
		t.Fatal("expected out-of-range rating to fail")
	}
}

func TestMemorySessionStoreSeparatesChannels(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	for _, channel := range []string{"telegram", "whatsapp"} {
		err := store.AppendMessage(ctx, AppendMessageInput{
			MerchantID: "m-1",
			SessionID:  "s-1",
			Channel:    channel,
			Message:    ChatMessage{Text: "hi"},
		})
		if err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	sessions, err := store.ListByMerchant(ctx, "m-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected one session per channel, got %d", len(sessions))
	}
}

func TestMemoryUnitOfWorkPairsWrites(t *testing.T) {
	sessions := NewMemorySessionStore()
	outbox := NewMemoryOutboxStore()
	uow := NewMemoryUnitOfWork(sessions, outbox)
	ctx := context.Background()

	err := uow.WithinTx(ctx, func(ctx context.Context, tx TxWriter) error {
		if err := tx.AppendMessage(ctx, AppendMessageInput{
			MerchantID: "m-1",
			SessionID:  "s-1",
			Channel:    "whatsapp",
			Message:    ChatMessage{Text: "hola"},
		}); err != nil {
			return err
		}
		return tx.EnqueueOutbox(ctx, OutboxEvent{EventType: EventTypeChatIncoming, RoutingKey: "whatsapp"})
	})
	if err != nil {
		t.Fatalf("expected tx to succeed, got %v", err)
	}

	if pending := outbox.Pending(); len(pending) != 1 {
		t.Fatalf("expected 1 pending event, got %d", len(pending))
	}
	if _, err := sessions.GetBySession(ctx, "m-1", "s-1", "whatsapp"); err != nil {
		t.Fatalf("expected session persisted, got %v", err)
	}
}
