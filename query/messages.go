package query

import (
	"strings"
)

const (
	TypeGetChannel    = "channels.query.channel.get"
	TypeListChannels  = "channels.query.channel.list"
	TypeChannelStatus = "channels.query.channel.status"
	TypeGetSession    = "channels.query.session.get"
	TypeListSessions  = "channels.query.session.list"
)

type GetChannelMessage struct {
	ChannelID string
}

func (GetChannelMessage) Type() string { return TypeGetChannel }

func (m GetChannelMessage) Validate() error {
	if strings.TrimSpace(m.ChannelID) == "" {
		return queryValidationError("channel_id", "channel id is required")
	}
	return nil
}

type ListChannelsMessage struct {
	MerchantID string
}

func (ListChannelsMessage) Type() string { return TypeListChannels }

func (m ListChannelsMessage) Validate() error {
	if strings.TrimSpace(m.MerchantID) == "" {
		return queryValidationError("merchant_id", "merchant id is required")
	}
	return nil
}

type ChannelStatusMessage struct {
	ChannelID string
}

func (ChannelStatusMessage) Type() string { return TypeChannelStatus }

func (m ChannelStatusMessage) Validate() error {
	if strings.TrimSpace(m.ChannelID) == "" {
		return queryValidationError("channel_id", "channel id is required")
	}
	return nil
}

type GetSessionMessage struct {
	MerchantID string
	SessionID  string
	Channel    string
}

func (GetSessionMessage) Type() string { return TypeGetSession }

func (m GetSessionMessage) Validate() error {
	if strings.TrimSpace(m.MerchantID) == "" {
		return queryValidationError("merchant_id", "merchant id is required")
	}
	if strings.TrimSpace(m.SessionID) == "" {
		return queryValidationError("session_id", "session id is required")
	}
	if strings.TrimSpace(m.Channel) == "" {
		return queryValidationError("channel", "channel is required")
	}
	return nil
}

type ListSessionsMessage struct {
	MerchantID string
}

func (ListSessionsMessage) Type() string { return TypeListSessions }

func (m ListSessionsMessage) Validate() error {
	if strings.TrimSpace(m.MerchantID) == "" {
		return queryValidationError("merchant_id", "merchant id is required")
	}
	return nil
}
