package query

import (
	"context"

	"github.com/goliatone/go-channels/core"
)

// ChannelReader is the read-only channel surface the query layer exposes.
// Satisfied by *core.Service.
type ChannelReader interface {
	GetChannel(ctx context.Context, channelID string) (core.PublicChannel, error)
	ListChannels(ctx context.Context, merchantID string) ([]core.PublicChannel, error)
	ChannelStatus(ctx context.Context, channelID string) (core.Channel, error)
}

type SessionReader interface {
	GetSession(ctx context.Context, merchantID, sessionID, channel string) (core.ChatSession, error)
	ListSessions(ctx context.Context, merchantID string) ([]core.ChatSession, error)
}

type GetChannelQuery struct {
	reader ChannelReader
}

func NewGetChannelQuery(reader ChannelReader) *GetChannelQuery {
	return &GetChannelQuery{reader: reader}
}

func (q *GetChannelQuery) Query(ctx context.Context, msg GetChannelMessage) (core.PublicChannel, error) {
	if q == nil || q.reader == nil {
		return core.PublicChannel{}, queryDependencyError("query: channel reader is required")
	}
	return q.reader.GetChannel(ctx, msg.ChannelID)
}

type ListChannelsQuery struct {
	reader ChannelReader
}

func NewListChannelsQuery(reader ChannelReader) *ListChannelsQuery {
	return &ListChannelsQuery{reader: reader}
}

func (q *ListChannelsQuery) Query(ctx context.Context, msg ListChannelsMessage) ([]core.PublicChannel, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: channel reader is required")
	}
	return q.reader.ListChannels(ctx, msg.MerchantID)
}

// ChannelStatusQuery refreshes and returns the live channel record, secrets
// stripped before it leaves the query layer.
type ChannelStatusQuery struct {
	reader ChannelReader
}

func NewChannelStatusQuery(reader ChannelReader) *ChannelStatusQuery {
	return &ChannelStatusQuery{reader: reader}
}

func (q *ChannelStatusQuery) Query(ctx context.Context, msg ChannelStatusMessage) (core.PublicChannel, error) {
	if q == nil || q.reader == nil {
		return core.PublicChannel{}, queryDependencyError("query: channel reader is required")
	}
	channel, err := q.reader.ChannelStatus(ctx, msg.ChannelID)
	if err != nil {
		return core.PublicChannel{}, err
	}
	return channel.Public(), nil
}

type GetSessionQuery struct {
	reader SessionReader
}

func NewGetSessionQuery(reader SessionReader) *GetSessionQuery {
	return &GetSessionQuery{reader: reader}
}

func (q *GetSessionQuery) Query(ctx context.Context, msg GetSessionMessage) (core.ChatSession, error) {
	if q == nil || q.reader == nil {
		return core.ChatSession{}, queryDependencyError("query: session reader is required")
	}
	return q.reader.GetSession(ctx, msg.MerchantID, msg.SessionID, msg.Channel)
}

type ListSessionsQuery struct {
	reader SessionReader
}

func NewListSessionsQuery(reader SessionReader) *ListSessionsQuery {
	return &ListSessionsQuery{reader: reader}
}

func (q *ListSessionsQuery) Query(ctx context.Context, msg ListSessionsMessage) ([]core.ChatSession, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: session reader is required")
	}
	return q.reader.ListSessions(ctx, msg.MerchantID)
}
