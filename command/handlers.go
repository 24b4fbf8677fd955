package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-channels/core"
	"github.com/goliatone/go-channels/inbound"
)

// MutatingService is the slice of the channel service the command layer
// drives. Satisfied by *core.Service.
type MutatingService interface {
	ConnectChannel(ctx context.Context, merchantID string, provider core.ChannelProvider, in core.ConnectInput) (core.ConnectResult, error)
	DisconnectChannel(ctx context.Context, channelID string, mode core.DisconnectMode) (core.Channel, error)
	RefreshChannel(ctx context.Context, channelID string) (core.Channel, error)
	SetDefaultChannel(ctx context.Context, merchantID string, provider core.ChannelProvider, channelID string) error
	RateMessage(ctx context.Context, merchantID, sessionID, channel, messageID string, rating int) error
}

// ReplyService appends outbound replies to the transcript and delivers
// them. Satisfied by *inbound.ReplyWriter.
type ReplyService interface {
	Append(ctx context.Context, in inbound.ReplyInput) (core.ChatMessage, error)
}

type ConnectChannelCommand struct {
	service MutatingService
}

func NewConnectChannelCommand(service MutatingService) *ConnectChannelCommand {
	return &ConnectChannelCommand{service: service}
}

func (c *ConnectChannelCommand) Execute(ctx context.Context, msg ConnectChannelMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: connect channel service is required")
	}
	out, err := c.service.ConnectChannel(ctx, msg.MerchantID, msg.Provider, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DisconnectChannelCommand struct {
	service MutatingService
}

func NewDisconnectChannelCommand(service MutatingService) *DisconnectChannelCommand {
	return &DisconnectChannelCommand{service: service}
}

func (c *DisconnectChannelCommand) Execute(ctx context.Context, msg DisconnectChannelMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: disconnect channel service is required")
	}
	out, err := c.service.DisconnectChannel(ctx, msg.ChannelID, msg.Mode)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RefreshChannelCommand struct {
	service MutatingService
}

func NewRefreshChannelCommand(service MutatingService) *RefreshChannelCommand {
	return &RefreshChannelCommand{service: service}
}

func (c *RefreshChannelCommand) Execute(ctx context.Context, msg RefreshChannelMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: refresh channel service is required")
	}
	out, err := c.service.RefreshChannel(ctx, msg.ChannelID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SetDefaultChannelCommand struct {
	service MutatingService
}

func NewSetDefaultChannelCommand(service MutatingService) *SetDefaultChannelCommand {
	return &SetDefaultChannelCommand{service: service}
}

func (c *SetDefaultChannelCommand) Execute(ctx context.Context, msg SetDefaultChannelMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: set default channel service is required")
	}
	return c.service.SetDefaultChannel(ctx, msg.MerchantID, msg.Provider, msg.ChannelID)
}

type SendReplyCommand struct {
	replies ReplyService
}

func NewSendReplyCommand(replies ReplyService) *SendReplyCommand {
	return &SendReplyCommand{replies: replies}
}

func (c *SendReplyCommand) Execute(ctx context.Context, msg SendReplyMessage) error {
	if c == nil || c.replies == nil {
		return commandDependencyError("command: reply service is required")
	}
	out, err := c.replies.Append(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RateMessageCommand struct {
	service MutatingService
}

func NewRateMessageCommand(service MutatingService) *RateMessageCommand {
	return &RateMessageCommand{service: service}
}

func (c *RateMessageCommand) Execute(ctx context.Context, msg RateMessageMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: rate message service is required")
	}
	return c.service.RateMessage(ctx, msg.MerchantID, msg.SessionID, msg.Channel, msg.MessageID, msg.Rating)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
