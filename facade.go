package channels

import (
	"fmt"

	channelscommand "github.com/goliatone/go-channels/command"
	"github.com/goliatone/go-channels/core"
	"github.com/goliatone/go-channels/dispatch"
	"github.com/goliatone/go-channels/inbound"
	channelsquery "github.com/goliatone/go-channels/query"
)

type CommandQueryService interface {
	channelscommand.MutatingService
	channelsquery.ChannelReader
	channelsquery.SessionReader
}

type Commands struct {
	ConnectChannel    *channelscommand.ConnectChannelCommand
	DisconnectChannel *channelscommand.DisconnectChannelCommand
	RefreshChannel    *channelscommand.RefreshChannelCommand
	SetDefaultChannel *channelscommand.SetDefaultChannelCommand
	SendReply         *channelscommand.SendReplyCommand
	RateMessage       *channelscommand.RateMessageCommand
}

type Queries struct {
	GetChannel    *channelsquery.GetChannelQuery
	ListChannels  *channelsquery.ListChannelsQuery
	ChannelStatus *channelsquery.ChannelStatusQuery
	GetSession    *channelsquery.GetSessionQuery
	ListSessions  *channelsquery.ListSessionsQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	replies channelscommand.ReplyService
}

func WithReplyService(replies channelscommand.ReplyService) FacadeOption {
	return func(options *facadeOptions) {
		options.replies = replies
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("channels: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	replies := cfg.replies
	if replies == nil {
		replies = resolveReplyService(service)
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		ConnectChannel:    channelscommand.NewConnectChannelCommand(service),
		DisconnectChannel: channelscommand.NewDisconnectChannelCommand(service),
		RefreshChannel:    channelscommand.NewRefreshChannelCommand(service),
		SetDefaultChannel: channelscommand.NewSetDefaultChannelCommand(service),
		SendReply:         channelscommand.NewSendReplyCommand(replies),
		RateMessage:       channelscommand.NewRateMessageCommand(service),
	}
	facade.queries = Queries{
		GetChannel:    channelsquery.NewGetChannelQuery(service),
		ListChannels:  channelsquery.NewListChannelsQuery(service),
		ChannelStatus: channelsquery.NewChannelStatusQuery(service),
		GetSession:    channelsquery.NewGetSessionQuery(service),
		ListSessions:  channelsquery.NewListSessionsQuery(service),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

// resolveReplyService derives a reply writer from the service's own
// dependencies when the caller did not hand one in. The synthesized writer
// shares the service's unit of work so transcript and outbox writes stay in
// one transaction.
func resolveReplyService(service CommandQueryService) channelscommand.ReplyService {
	if service == nil {
		return nil
	}
	if replies, ok := service.(channelscommand.ReplyService); ok {
		return replies
	}
	provider, ok := service.(interface {
		Dependencies() core.ServiceDependencies
		Config() core.Config
	})
	if !ok {
		return nil
	}
	deps := provider.Dependencies()
	if deps.UnitOfWork == nil {
		return nil
	}

	var sender inbound.ReplySender
	if deps.ChannelStore != nil && deps.Registry != nil {
		sender = dispatch.NewDispatcher(deps.ChannelStore, deps.Registry, deps.Gateway, deps.Logger)
	}
	return inbound.NewReplyWriter(deps.UnitOfWork, sender, provider.Config(), deps.Logger)
}
