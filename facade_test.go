package channels

import (
	"context"
	"fmt"
	"testing"

	gocmd "github.com/goliatone/go-command"

	channelscommand "github.com/goliatone/go-channels/command"
	"github.com/goliatone/go-channels/core"
	"github.com/goliatone/go-channels/inbound"
	channelsquery "github.com/goliatone/go-channels/query"
)

func TestNewFacade_WiresCommandsAndQueries(t *testing.T) {
	svc := &stubFacadeService{}
	replies := &stubFacadeReplyService{}

	facade, err := NewFacade(svc, WithReplyService(replies))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	commands := facade.Commands()
	if commands.ConnectChannel == nil || commands.DisconnectChannel == nil || commands.SendReply == nil {
		t.Fatalf("expected command handlers to be wired")
	}
	queries := facade.Queries()
	if queries.GetChannel == nil || queries.ListSessions == nil || queries.ChannelStatus == nil {
		t.Fatalf("expected query handlers to be wired")
	}
}

func TestFacade_CommandAndQueryDelegation(t *testing.T) {
	svc := &stubFacadeService{}
	replies := &stubFacadeReplyService{}

	facade, err := NewFacade(svc, WithReplyService(replies))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	if err := facade.Commands().RateMessage.Execute(context.Background(), channelscommand.RateMessageMessage{
		MerchantID: "m-1",
		SessionID:  "chat-1",
		Channel:    "telegram",
		MessageID:  "msg-1",
		Rating:     1,
	}); err != nil {
		t.Fatalf("execute rate message command: %v", err)
	}
	if svc.lastRatedMessageID != "msg-1" || svc.lastRating != 1 {
		t.Fatalf("unexpected rate message delegation payload")
	}

	channel, err := facade.Queries().GetChannel.Query(context.Background(), channelsquery.GetChannelMessage{
		ChannelID: "ch-1",
	})
	if err != nil {
		t.Fatalf("query get channel: %v", err)
	}
	if channel.ID != "ch-1" || channel.Provider != core.ProviderTelegram {
		t.Fatalf("unexpected channel query result: %#v", channel)
	}

	collector := gocmd.NewResult[core.ChatMessage]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := facade.Commands().SendReply.Execute(ctx, channelscommand.SendReplyMessage{
		Input: inbound.ReplyInput{
			MerchantID: "m-1",
			SessionID:  "chat-1",
			Channel:    "telegram",
			Text:       "we ship tomorrow",
		},
	}); err != nil {
		t.Fatalf("execute send reply command: %v", err)
	}
	if replies.lastText != "we ship tomorrow" {
		t.Fatalf("unexpected reply delegation payload: %q", replies.lastText)
	}
	if _, ok := collector.Load(); !ok {
		t.Fatalf("expected reply result to be stored")
	}
}

func TestNewFacade_RequiresService(t *testing.T) {
	facade, err := NewFacade(nil)
	if err == nil {
		t.Fatalf("expected nil service error")
	}
	if facade != nil {
		t.Fatalf("expected nil facade on error")
	}
}

func TestNewFacade_SendReplyWithoutWriterFailsAtExecution(t *testing.T) {
	facade, err := NewFacade(&stubFacadeService{})
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	if facade.Commands().SendReply == nil {
		t.Fatalf("expected send reply command to be constructed")
	}
	err = facade.Commands().SendReply.Execute(context.Background(), channelscommand.SendReplyMessage{
		Input: inbound.ReplyInput{
			MerchantID: "m-1",
			SessionID:  "chat-1",
			Channel:    "telegram",
			Text:       "hello",
		},
	})
	if err == nil {
		t.Fatalf("expected dependency error without reply writer")
	}
}

type stubFacadeService struct {
	lastRatedMessageID string
	lastRating         int
}

func (s *stubFacadeService) ConnectChannel(context.Context, string, core.ChannelProvider, core.ConnectInput) (core.ConnectResult, error) {
	return core.ConnectResult{Channel: core.Channel{ID: "ch-1"}}, nil
}

func (s *stubFacadeService) DisconnectChannel(context.Context, string, core.DisconnectMode) (core.Channel, error) {
	return core.Channel{ID: "ch-1", Status: core.ChannelStatusDisconnected}, nil
}

func (s *stubFacadeService) RefreshChannel(context.Context, string) (core.Channel, error) {
	return core.Channel{ID: "ch-1", Status: core.ChannelStatusConnected}, nil
}

func (s *stubFacadeService) SetDefaultChannel(context.Context, string, core.ChannelProvider, string) error {
	return nil
}

func (s *stubFacadeService) RateMessage(_ context.Context, _, _, _, messageID string, rating int) error {
	s.lastRatedMessageID = messageID
	s.lastRating = rating
	return nil
}

func (s *stubFacadeService) GetChannel(_ context.Context, channelID string) (core.PublicChannel, error) {
	return core.PublicChannel{ID: channelID, Provider: core.ProviderTelegram}, nil
}

func (s *stubFacadeService) ListChannels(context.Context, string) ([]core.PublicChannel, error) {
	return []core.PublicChannel{{ID: "ch-1", Provider: core.ProviderTelegram}}, nil
}

func (s *stubFacadeService) ChannelStatus(context.Context, string) (core.Channel, error) {
	return core.Channel{ID: "ch-1", Status: core.ChannelStatusConnected}, nil
}

func (s *stubFacadeService) GetSession(context.Context, string, string, string) (core.ChatSession, error) {
	return core.ChatSession{ID: "s-1"}, nil
}

func (s *stubFacadeService) ListSessions(context.Context, string) ([]core.ChatSession, error) {
	return []core.ChatSession{{ID: "s-1"}}, nil
}

type stubFacadeReplyService struct {
	lastText string
}

func (s *stubFacadeReplyService) Append(_ context.Context, in inbound.ReplyInput) (core.ChatMessage, error) {
	if in.Text == "" {
		return core.ChatMessage{}, fmt.Errorf("reply text is required")
	}
	s.lastText = in.Text
	return core.ChatMessage{ID: "msg-out", Role: core.MessageRoleAgent, Text: in.Text}, nil
}

var _ CommandQueryService = (*stubFacadeService)(nil)
