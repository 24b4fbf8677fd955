package command

import (
	"context"
	"fmt"
	"testing"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-channels/core"
	"github.com/goliatone/go-channels/inbound"
)

func TestConnectChannelCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	expected := core.ConnectResult{
		Channel: core.Channel{ID: "ch-1", MerchantID: "m-1", Provider: core.ProviderTelegram},
		QR:      "",
	}
	called := false

	svc := stubMutatingService{
		connectChannelFn: func(_ context.Context, merchantID string, provider core.ChannelProvider, in core.ConnectInput) (core.ConnectResult, error) {
			called = true
			if merchantID != "m-1" {
				t.Fatalf("expected merchant m-1, got %q", merchantID)
			}
			if provider != core.ProviderTelegram {
				t.Fatalf("expected telegram provider, got %q", provider)
			}
			if in.BotToken != "123:abc" {
				t.Fatalf("expected bot token to pass through, got %q", in.BotToken)
			}
			return expected, nil
		},
	}

	cmd := NewConnectChannelCommand(svc)
	collector := gocmd.NewResult[core.ConnectResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := cmd.Execute(ctx, ConnectChannelMessage{
		MerchantID: "m-1",
		Provider:   core.ProviderTelegram,
		Input:      core.ConnectInput{BotToken: "123:abc"},
	})
	if err != nil {
		t.Fatalf("execute connect channel: %v", err)
	}
	if !called {
		t.Fatalf("expected connect channel invocation")
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if result.Channel.ID != expected.Channel.ID {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestChannelCommands_DelegateToService(t *testing.T) {
	t.Run("disconnect", func(t *testing.T) {
		called := false
		svc := stubMutatingService{
			disconnectChannelFn: func(_ context.Context, channelID string, mode core.DisconnectMode) (core.Channel, error) {
				called = true
				if channelID != "ch-1" || mode != core.DisconnectModeWipe {
					t.Fatalf("unexpected disconnect payload: %q %q", channelID, mode)
				}
				return core.Channel{ID: channelID, Status: core.ChannelStatusDisconnected}, nil
			},
		}
		cmd := NewDisconnectChannelCommand(svc)
		collector := gocmd.NewResult[core.Channel]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		if err := cmd.Execute(ctx, DisconnectChannelMessage{ChannelID: "ch-1", Mode: core.DisconnectModeWipe}); err != nil {
			t.Fatalf("execute disconnect: %v", err)
		}
		if !called {
			t.Fatalf("expected disconnect invocation")
		}
		stored, ok := collector.Load()
		if !ok {
			t.Fatalf("expected disconnect result")
		}
		if stored.Status != core.ChannelStatusDisconnected {
			t.Fatalf("unexpected channel result: %#v", stored)
		}
	})

	t.Run("refresh", func(t *testing.T) {
		called := false
		svc := stubMutatingService{
			refreshChannelFn: func(_ context.Context, channelID string) (core.Channel, error) {
				called = true
				if channelID != "ch-1" {
					t.Fatalf("unexpected refresh channel: %q", channelID)
				}
				return core.Channel{ID: channelID, Status: core.ChannelStatusConnected}, nil
			},
		}
		cmd := NewRefreshChannelCommand(svc)
		collector := gocmd.NewResult[core.Channel]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		if err := cmd.Execute(ctx, RefreshChannelMessage{ChannelID: "ch-1"}); err != nil {
			t.Fatalf("execute refresh: %v", err)
		}
		if !called {
			t.Fatalf("expected refresh invocation")
		}
		if _, ok := collector.Load(); !ok {
			t.Fatalf("expected refresh result")
		}
	})

	t.Run("set default", func(t *testing.T) {
		called := false
		svc := stubMutatingService{
			setDefaultChannelFn: func(_ context.Context, merchantID string, provider core.ChannelProvider, channelID string) error {
				called = true
				if merchantID != "m-1" || provider != core.ProviderWhatsAppCloud || channelID != "ch-2" {
					t.Fatalf("unexpected set default payload: %q %q %q", merchantID, provider, channelID)
				}
				return nil
			},
		}
		if err := NewSetDefaultChannelCommand(svc).Execute(context.Background(), SetDefaultChannelMessage{
			MerchantID: "m-1",
			Provider:   core.ProviderWhatsAppCloud,
			ChannelID:  "ch-2",
		}); err != nil {
			t.Fatalf("execute set default: %v", err)
		}
		if !called {
			t.Fatalf("expected set default invocation")
		}
	})

	t.Run("rate message", func(t *testing.T) {
		called := false
		svc := stubMutatingService{
			rateMessageFn: func(_ context.Context, merchantID, sessionID, channel, messageID string, rating int) error {
				called = true
				if merchantID != "m-1" || sessionID != "chat-1" || channel != "telegram" {
					t.Fatalf("unexpected rate target: %q %q %q", merchantID, sessionID, channel)
				}
				if messageID != "msg-1" || rating != -1 {
					t.Fatalf("unexpected rating payload: %q %d", messageID, rating)
				}
				return nil
			},
		}
		if err := NewRateMessageCommand(svc).Execute(context.Background(), RateMessageMessage{
			MerchantID: "m-1",
			SessionID:  "chat-1",
			Channel:    "telegram",
			MessageID:  "msg-1",
			Rating:     -1,
		}); err != nil {
			t.Fatalf("execute rate message: %v", err)
		}
		if !called {
			t.Fatalf("expected rate message invocation")
		}
	})
}

func TestSendReplyCommand_DelegatesAndStoresMessage(t *testing.T) {
	called := false
	replies := stubReplyService{
		appendFn: func(_ context.Context, in inbound.ReplyInput) (core.ChatMessage, error) {
			called = true
			if in.MerchantID != "m-1" || in.SessionID != "chat-1" || in.Channel != "webchat" {
				t.Fatalf("unexpected reply target: %#v", in)
			}
			if in.Text != "thanks for reaching out" {
				t.Fatalf("unexpected reply text: %q", in.Text)
			}
			return core.ChatMessage{ID: "msg-9", Role: core.MessageRoleAgent, Text: in.Text}, nil
		},
	}

	cmd := NewSendReplyCommand(replies)
	collector := gocmd.NewResult[core.ChatMessage]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	err := cmd.Execute(ctx, SendReplyMessage{Input: inbound.ReplyInput{
		MerchantID: "m-1",
		SessionID:  "chat-1",
		Channel:    "webchat",
		Text:       "thanks for reaching out",
		Role:       core.MessageRoleAgent,
	}})
	if err != nil {
		t.Fatalf("execute send reply: %v", err)
	}
	if !called {
		t.Fatalf("expected reply invocation")
	}
	stored, ok := collector.Load()
	if !ok {
		t.Fatalf("expected reply result")
	}
	if stored.ID != "msg-9" {
		t.Fatalf("unexpected reply result: %#v", stored)
	}
}

func TestCommands_PropagateServiceErrors(t *testing.T) {
	boom := fmt.Errorf("downstream failure")
	svc := stubMutatingService{
		connectChannelFn: func(_ context.Context, _ string, _ core.ChannelProvider, _ core.ConnectInput) (core.ConnectResult, error) {
			return core.ConnectResult{}, boom
		},
	}
	err := NewConnectChannelCommand(svc).Execute(context.Background(), ConnectChannelMessage{
		MerchantID: "m-1",
		Provider:   core.ProviderTelegram,
	})
	if err != boom {
		t.Fatalf("expected service error to pass through, got %v", err)
	}
}

func TestMessageValidation(t *testing.T) {
	tests := []struct {
		name    string
		msg     interface{ Validate() error }
		wantErr bool
	}{
		{
			name: "connect valid",
			msg: ConnectChannelMessage{
				MerchantID: "m-1",
				Provider:   core.ProviderTelegram,
				Input:      core.ConnectInput{BotToken: "123:abc"},
			},
			wantErr: false,
		},
		{
			name:    "connect missing merchant",
			msg:     ConnectChannelMessage{Provider: core.ProviderTelegram},
			wantErr: true,
		},
		{
			name:    "connect unknown provider",
			msg:     ConnectChannelMessage{MerchantID: "m-1", Provider: "pigeon"},
			wantErr: true,
		},
		{
			name:    "disconnect empty mode defaults",
			msg:     DisconnectChannelMessage{ChannelID: "ch-1"},
			wantErr: false,
		},
		{
			name:    "disconnect unknown mode",
			msg:     DisconnectChannelMessage{ChannelID: "ch-1", Mode: "shred"},
			wantErr: true,
		},
		{
			name:    "refresh missing channel",
			msg:     RefreshChannelMessage{},
			wantErr: true,
		},
		{
			name: "set default valid",
			msg: SetDefaultChannelMessage{
				MerchantID: "m-1",
				Provider:   core.ProviderWhatsAppQR,
				ChannelID:  "ch-1",
			},
			wantErr: false,
		},
		{
			name:    "set default missing channel",
			msg:     SetDefaultChannelMessage{MerchantID: "m-1", Provider: core.ProviderWebchat},
			wantErr: true,
		},
		{
			name: "send reply valid",
			msg: SendReplyMessage{Input: inbound.ReplyInput{
				MerchantID: "m-1",
				SessionID:  "chat-1",
				Channel:    "whatsapp",
				Text:       "on it",
			}},
			wantErr: false,
		},
		{
			name: "send reply missing text",
			msg: SendReplyMessage{Input: inbound.ReplyInput{
				MerchantID: "m-1",
				SessionID:  "chat-1",
				Channel:    "whatsapp",
			}},
			wantErr: true,
		},
		{
			name: "rate message valid",
			msg: RateMessageMessage{
				MerchantID: "m-1",
				SessionID:  "chat-1",
				Channel:    "telegram",
				MessageID:  "msg-1",
				Rating:     1,
			},
			wantErr: false,
		},
		{
			name: "rate message out of range",
			msg: RateMessageMessage{
				MerchantID: "m-1",
				SessionID:  "chat-1",
				Channel:    "telegram",
				MessageID:  "msg-1",
				Rating:     5,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

type stubMutatingService struct {
	connectChannelFn    func(ctx context.Context, merchantID string, provider core.ChannelProvider, in core.ConnectInput) (core.ConnectResult, error)
	disconnectChannelFn func(ctx context.Context, channelID string, mode core.DisconnectMode) (core.Channel, error)
	refreshChannelFn    func(ctx context.Context, channelID string) (core.Channel, error)
	setDefaultChannelFn func(ctx context.Context, merchantID string, provider core.ChannelProvider, channelID string) error
	rateMessageFn       func(ctx context.Context, merchantID, sessionID, channel, messageID string, rating int) error
}

func (s stubMutatingService) ConnectChannel(ctx context.Context, merchantID string, provider core.ChannelProvider, in core.ConnectInput) (core.ConnectResult, error) {
	if s.connectChannelFn == nil {
		return core.ConnectResult{}, fmt.Errorf("connect channel not configured")
	}
	return s.connectChannelFn(ctx, merchantID, provider, in)
}

func (s stubMutatingService) DisconnectChannel(ctx context.Context, channelID string, mode core.DisconnectMode) (core.Channel, error) {
	if s.disconnectChannelFn == nil {
		return core.Channel{}, fmt.Errorf("disconnect channel not configured")
	}
	return s.disconnectChannelFn(ctx, channelID, mode)
}

func (s stubMutatingService) RefreshChannel(ctx context.Context, channelID string) (core.Channel, error) {
	if s.refreshChannelFn == nil {
		return core.Channel{}, fmt.Errorf("refresh channel not configured")
	}
	return s.refreshChannelFn(ctx, channelID)
}

func (s stubMutatingService) SetDefaultChannel(ctx context.Context, merchantID string, provider core.ChannelProvider, channelID string) error {
	if s.setDefaultChannelFn == nil {
		return fmt.Errorf("set default channel not configured")
	}
	return s.setDefaultChannelFn(ctx, merchantID, provider, channelID)
}

func (s stubMutatingService) RateMessage(ctx context.Context, merchantID, sessionID, channel, messageID string, rating int) error {
	if s.rateMessageFn == nil {
		return fmt.Errorf("rate message not configured")
	}
	return s.rateMessageFn(ctx, merchantID, sessionID, channel, messageID, rating)
}

type stubReplyService struct {
	appendFn func(ctx context.Context, in inbound.ReplyInput) (core.ChatMessage, error)
}

func (s stubReplyService) Append(ctx context.Context, in inbound.ReplyInput) (core.ChatMessage, error) {
	if s.appendFn == nil {
		return core.ChatMessage{}, fmt.Errorf("append reply not configured")
	}
	return s.appendFn(ctx, in)
}

var (
	_ MutatingService = stubMutatingService{}
	_ ReplyService    = stubReplyService{}
)
