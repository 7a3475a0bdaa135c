package command

import (
	"strings"
	"unicode/utf8"

	"github.com/goliatone/go-whatsapp/core"
)

const (
	TypeSendText = "whatsapp.command.send_text"
	TypeReply    = "whatsapp.command.reply"
	TypeReact    = "whatsapp.command.react"
	TypeMarkRead = "whatsapp.command.mark_read"
)

// MaxReplyButtons mirrors the Graph API limit for reply button messages.
const MaxReplyButtons = 3

// SendResult is stored on the command result collector for every send.
type SendResult struct {
	MessageID string `json:"message_id"`
}

type SendTextMessage struct {
	EndpointID string
	To         string
	Text       string
}

func (SendTextMessage) Type() string { return TypeSendText }

func (m SendTextMessage) Validate() error {
	if strings.TrimSpace(m.EndpointID) == "" {
		return commandValidationError("endpoint_id", "endpoint id is required")
	}
	if strings.TrimSpace(m.To) == "" {
		return commandValidationError("to", "recipient is required")
	}
	if strings.TrimSpace(m.Text) == "" {
		return commandValidationError("text", "text is required")
	}
	return nil
}

// ReplyMessage answers the sender of Event, quoting it. Buttons turn the reply
// into an interactive message.
type ReplyMessage struct {
	Event   core.Event
	Text    string
	Buttons []core.Button
}

func (ReplyMessage) Type() string { return TypeReply }

func (m ReplyMessage) Validate() error {
	if err := validateEvent(m.Event); err != nil {
		return err
	}
	if strings.TrimSpace(m.Text) == "" {
		return commandValidationError("text", "text is required")
	}
	if len(m.Buttons) > MaxReplyButtons {
		return commandValidationError("buttons", "at most 3 buttons are allowed")
	}
	for _, button := range m.Buttons {
		if strings.TrimSpace(button.ID) == "" || strings.TrimSpace(button.Title) == "" {
			return commandValidationError("buttons", "button id and title are required")
		}
		if utf8.RuneCountInString(button.Title) > 20 {
			return commandValidationError("buttons", "button title exceeds 20 characters")
		}
	}
	return nil
}

type ReactMessage struct {
	Event core.Event
	Emoji string
}

func (ReactMessage) Type() string { return TypeReact }

func (m ReactMessage) Validate() error {
	if err := validateEvent(m.Event); err != nil {
		return err
	}
	if strings.TrimSpace(m.Emoji) == "" {
		return commandValidationError("emoji", "emoji is required")
	}
	return nil
}

type MarkReadMessage struct {
	EndpointID string
	MessageID  string
}

func (MarkReadMessage) Type() string { return TypeMarkRead }

func (m MarkReadMessage) Validate() error {
	if strings.TrimSpace(m.EndpointID) == "" {
		return commandValidationError("endpoint_id", "endpoint id is required")
	}
	if strings.TrimSpace(m.MessageID) == "" {
		return commandValidationError("message_id", "message id is required")
	}
	return nil
}

func validateEvent(ev core.Event) error {
	if ev == nil {
		return commandValidationError("event", "event is required")
	}
	header := core.EventHeader(ev)
	if strings.TrimSpace(header.To.EndpointID) == "" {
		return commandValidationError("event.to", "receiving endpoint is required")
	}
	if strings.TrimSpace(header.From.PhoneNumber) == "" {
		return commandValidationError("event.from", "sender number is required")
	}
	return nil
}
