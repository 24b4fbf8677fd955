package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[ConnectChannelMessage]    = (*ConnectChannelCommand)(nil)
	_ gocmd.Commander[DisconnectChannelMessage] = (*DisconnectChannelCommand)(nil)
	_ gocmd.Commander[RefreshChannelMessage]    = (*RefreshChannelCommand)(nil)
	_ gocmd.Commander[SetDefaultChannelMessage] = (*SetDefaultChannelCommand)(nil)
	_ gocmd.Commander[SendReplyMessage]         = (*SendReplyCommand)(nil)
	_ gocmd.Commander[RateMessageMessage]       = (*RateMessageCommand)(nil)
)
