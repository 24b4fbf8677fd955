package command

import (
	"strings"

	"github.com/goliatone/go-channels/core"
	"github.com/goliatone/go-channels/inbound"
)

const (
	TypeConnectChannel    = "channels.command.channel.connect"
	TypeDisconnectChannel = "channels.command.channel.disconnect"
	TypeRefreshChannel    = "channels.command.channel.refresh"
	TypeSetDefaultChannel = "channels.command.channel.set_default"
	TypeSendReply         = "channels.command.reply.send"
	TypeRateMessage       = "channels.command.message.rate"
)

type ConnectChannelMessage struct {
	MerchantID string
	Provider   core.ChannelProvider
	Input      core.ConnectInput
}

func (ConnectChannelMessage) Type() string { return TypeConnectChannel }

func (m ConnectChannelMessage) Validate() error {
	if strings.TrimSpace(m.MerchantID) == "" {
		return commandValidationError("merchant_id", "merchant id is required")
	}
	if !m.Provider.Valid() {
		return commandValidationError("provider", "unknown channel provider")
	}
	return nil
}

type DisconnectChannelMessage struct {
	ChannelID string
	// Mode defaults to disconnect when empty.
	Mode core.DisconnectMode
}

func (DisconnectChannelMessage) Type() string { return TypeDisconnectChannel }

func (m DisconnectChannelMessage) Validate() error {
	if strings.TrimSpace(m.ChannelID) == "" {
		return commandValidationError("channel_id", "channel id is required")
	}
	switch m.Mode {
	case "", core.DisconnectModeDisable, core.DisconnectModeDisconnect, core.DisconnectModeWipe:
		return nil
	default:
		return commandValidationError("mode", "unknown disconnect mode")
	}
}

type RefreshChannelMessage struct {
	ChannelID string
}

func (RefreshChannelMessage) Type() string { return TypeRefreshChannel }

func (m RefreshChannelMessage) Validate() error {
	if strings.TrimSpace(m.ChannelID) == "" {
		return commandValidationError("channel_id", "channel id is required")
	}
	return nil
}

type SetDefaultChannelMessage struct {
	MerchantID string
	Provider   core.ChannelProvider
	ChannelID  string
}

func (SetDefaultChannelMessage) Type() string { return TypeSetDefaultChannel }

func (m SetDefaultChannelMessage) Validate() error {
	if strings.TrimSpace(m.MerchantID) == "" {
		return commandValidationError("merchant_id", "merchant id is required")
	}
	if !m.Provider.Valid() {
		return commandValidationError("provider", "unknown channel provider")
	}
	if strings.TrimSpace(m.ChannelID) == "" {
		return commandValidationError("channel_id", "channel id is required")
	}
	return nil
}

type SendReplyMessage struct {
	Input inbound.ReplyInput
}

func (SendReplyMessage) Type() string { return TypeSendReply }

func (m SendReplyMessage) Validate() error {
	if strings.TrimSpace(m.Input.MerchantID) == "" {
		return commandValidationError("merchant_id", "merchant id is required")
	}
	if strings.TrimSpace(m.Input.SessionID) == "" {
		return commandValidationError("session_id", "session id is required")
	}
	if strings.TrimSpace(m.Input.Channel) == "" {
		return commandValidationError("channel", "channel is required")
	}
	if strings.TrimSpace(m.Input.Text) == "" {
		return commandValidationError("text", "reply text is required")
	}
	return nil
}

type RateMessageMessage struct {
	MerchantID string
	SessionID  string
	Channel    string
	MessageID  string
	Rating     int
}

func (RateMessageMessage) Type() string { return TypeRateMessage }

func (m RateMessageMessage) Validate() error {
	if strings.TrimSpace(m.MerchantID) == "" {
		return commandValidationError("merchant_id", "merchant id is required")
	}
	if strings.TrimSpace(m.SessionID) == "" {
		return commandValidationError("session_id", "session id is required")
	}
	if strings.TrimSpace(m.Channel) == "" {
		return commandValidationError("channel", "channel is required")
	}
	if strings.TrimSpace(m.MessageID) == "" {
		return commandValidationError("message_id", "message id is required")
	}
	if m.Rating < -1 || m.Rating > 1 {
		return commandValidationError("rating", "rating must be -1, 0, or 1")
	}
	return nil
}
