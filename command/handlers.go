package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-whatsapp/core"
)

// OutboundService is the send surface commands delegate to. *outbound.Client
// implements it.
type OutboundService interface {
	SendText(ctx context.Context, endpointID string, to string, text string) (string, error)
	Reply(ctx context.Context, ev core.Event, text string) (string, error)
	ReplyButtons(ctx context.Context, ev core.Event, text string, buttons ...core.Button) (string, error)
	React(ctx context.Context, ev core.Event, emoji string) (string, error)
	MarkRead(ctx context.Context, endpointID string, messageID string) error
}

type SendTextCommand struct {
	service OutboundService
}

func NewSendTextCommand(service OutboundService) *SendTextCommand {
	return &SendTextCommand{service: service}
}

func (c *SendTextCommand) Execute(ctx context.Context, msg SendTextMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: send text service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	id, err := c.service.SendText(ctx, msg.EndpointID, msg.To, msg.Text)
	if err != nil {
		return err
	}
	storeResult(ctx, SendResult{MessageID: id})
	return nil
}

type ReplyCommand struct {
	service OutboundService
}

func NewReplyCommand(service OutboundService) *ReplyCommand {
	return &ReplyCommand{service: service}
}

func (c *ReplyCommand) Execute(ctx context.Context, msg ReplyMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: reply service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	var (
		id  string
		err error
	)
	if len(msg.Buttons) > 0 {
		id, err = c.service.ReplyButtons(ctx, msg.Event, msg.Text, msg.Buttons...)
	} else {
		id, err = c.service.Reply(ctx, msg.Event, msg.Text)
	}
	if err != nil {
		return err
	}
	storeResult(ctx, SendResult{MessageID: id})
	return nil
}

type ReactCommand struct {
	service OutboundService
}

func NewReactCommand(service OutboundService) *ReactCommand {
	return &ReactCommand{service: service}
}

func (c *ReactCommand) Execute(ctx context.Context, msg ReactMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: react service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	id, err := c.service.React(ctx, msg.Event, msg.Emoji)
	if err != nil {
		return err
	}
	storeResult(ctx, SendResult{MessageID: id})
	return nil
}

type MarkReadCommand struct {
	service OutboundService
}

func NewMarkReadCommand(service OutboundService) *MarkReadCommand {
	return &MarkReadCommand{service: service}
}

func (c *MarkReadCommand) Execute(ctx context.Context, msg MarkReadMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: mark read service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	return c.service.MarkRead(ctx, msg.EndpointID, msg.MessageID)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
