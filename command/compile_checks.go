package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[SendTextMessage] = (*SendTextCommand)(nil)
	_ gocmd.Commander[ReplyMessage]    = (*ReplyCommand)(nil)
	_ gocmd.Commander[ReactMessage]    = (*ReactCommand)(nil)
	_ gocmd.Commander[MarkReadMessage] = (*MarkReadCommand)(nil)
)
