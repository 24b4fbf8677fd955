package query

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-channels/core"
)

var (
	_ gocmd.Querier[GetChannelMessage, core.PublicChannel]     = (*GetChannelQuery)(nil)
	_ gocmd.Querier[ListChannelsMessage, []core.PublicChannel] = (*ListChannelsQuery)(nil)
	_ gocmd.Querier[ChannelStatusMessage, core.PublicChannel]  = (*ChannelStatusQuery)(nil)
	_ gocmd.Querier[GetSessionMessage, core.ChatSession]       = (*GetSessionQuery)(nil)
	_ gocmd.Querier[ListSessionsMessage, []core.ChatSession]   = (*ListSessionsQuery)(nil)
)
