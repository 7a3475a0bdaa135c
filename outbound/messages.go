package outbound

import (
	"context"
	"strings"

	"github.com/goliatone/go-whatsapp/core"
)

const (
	messagingProduct      = "whatsapp"
	recipientIndividual   = "individual"
	MaxReplyButtons       = 3
	maxButtonTitleLength  = 20
	interactiveTypeButton = "button"
)

// Message is the outbound message document accepted by /{number}/messages.
type Message struct {
	MessagingProduct string              `json:"messaging_product"`
	RecipientType    string              `json:"recipient_type,omitempty"`
	To               string              `json:"to"`
	Type             string              `json:"type"`
	PreviewURL       *bool               `json:"preview_url,omitempty"`
	Context          *MessageContext     `json:"context,omitempty"`
	Text             *TextBody           `json:"text,omitempty"`
	Reaction         *ReactionBody       `json:"reaction,omitempty"`
	Interactive      *InteractiveMessage `json:"interactive,omitempty"`
}

type MessageContext struct {
	MessageID string `json:"message_id"`
}

type TextBody struct {
	Body string `json:"body"`
}

type ReactionBody struct {
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

type InteractiveMessage struct {
	Type   string            `json:"type"`
	Body   TextPart          `json:"body"`
	Action InteractiveAction `json:"action"`
}

type TextPart struct {
	Text string `json:"text"`
}

type InteractiveAction struct {
	Buttons []ReplyButton `json:"buttons"`
}

type ReplyButton struct {
	Type  string      `json:"type"`
	Reply core.Button `json:"reply"`
}

type readReceipt struct {
	MessagingProduct string `json:"messaging_product"`
	Status           string `json:"status"`
	MessageID        string `json:"message_id"`
}

// MarkRead flags an inbound message as read, which also shows the blue ticks
// to the user.
func (c *Client) MarkRead(ctx context.Context, endpointID string, messageID string) error {
	if strings.TrimSpace(messageID) == "" {
		return outboundBadInput("outbound: message id is required", nil)
	}
	_, err := c.Send(ctx, endpointID, readReceipt{
		MessagingProduct: messagingProduct,
		Status:           "read",
		MessageID:        strings.TrimSpace(messageID),
	})
	return err
}

// React attaches emoji to the message that produced ev. An empty emoji removes
// a previous reaction.
func (c *Client) React(ctx context.Context, ev core.Event, emoji string) (string, error) {
	h := core.EventHeader(ev)
	if err := requireReplyTarget(h); err != nil {
		return "", err
	}
	return c.Send(ctx, h.To.EndpointID, Message{
		MessagingProduct: messagingProduct,
		RecipientType:    recipientIndividual,
		To:               core.NormalizeNumber(h.From.PhoneNumber),
		Type:             "reaction",
		Reaction:         &ReactionBody{MessageID: h.ID, Emoji: emoji},
	})
}

// Reply answers ev in-thread with a text message.
func (c *Client) Reply(ctx context.Context, ev core.Event, text string) (string, error) {
	h := core.EventHeader(ev)
	if err := requireReplyTarget(h); err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", outboundBadInput("outbound: reply text is required", nil)
	}
	message := textMessage(h.From.PhoneNumber, text)
	message.Context = &MessageContext{MessageID: replyContext(ev)}
	return c.Send(ctx, h.To.EndpointID, message)
}

// ReplyButtons answers ev in-thread with up to three quick reply buttons.
func (c *Client) ReplyButtons(ctx context.Context, ev core.Event, text string, buttons ...core.Button) (string, error) {
	h := core.EventHeader(ev)
	if err := requireReplyTarget(h); err != nil {
		return "", err
	}
	message, err := buttonsMessage(h.From.PhoneNumber, text, buttons)
	if err != nil {
		return "", err
	}
	message.Context = &MessageContext{MessageID: replyContext(ev)}
	return c.Send(ctx, h.To.EndpointID, message)
}

// SendText starts a message to a user outside of any thread.
func (c *Client) SendText(ctx context.Context, endpointID string, to string, text string) (string, error) {
	if strings.TrimSpace(to) == "" || strings.TrimSpace(text) == "" {
		return "", outboundBadInput("outbound: recipient and text are required", nil)
	}
	return c.Send(ctx, endpointID, textMessage(to, text))
}

func (c *Client) SendButtons(ctx context.Context, endpointID string, to string, text string, buttons ...core.Button) (string, error) {
	if strings.TrimSpace(to) == "" {
		return "", outboundBadInput("outbound: recipient is required", nil)
	}
	message, err := buttonsMessage(to, text, buttons)
	if err != nil {
		return "", err
	}
	return c.Send(ctx, endpointID, message)
}

func textMessage(to string, text string) Message {
	previewURL := false
	return Message{
		MessagingProduct: messagingProduct,
		RecipientType:    recipientIndividual,
		To:               core.NormalizeNumber(to),
		Type:             "text",
		PreviewURL:       &previewURL,
		Text:             &TextBody{Body: text},
	}
}

func buttonsMessage(to string, text string, buttons []core.Button) (Message, error) {
	if strings.TrimSpace(text) == "" {
		return Message{}, outboundBadInput("outbound: button body text is required", nil)
	}
	if len(buttons) == 0 || len(buttons) > MaxReplyButtons {
		return Message{}, outboundBadInput("outbound: between 1 and 3 buttons are required", map[string]any{
			"buttons": len(buttons),
		})
	}
	replies := make([]ReplyButton, 0, len(buttons))
	for _, button := range buttons {
		id := strings.TrimSpace(button.ID)
		title := strings.TrimSpace(button.Title)
		if id == "" || title == "" {
			return Message{}, outboundBadInput("outbound: button id and title are required", nil)
		}
		if len([]rune(title)) > maxButtonTitleLength {
			return Message{}, outboundBadInput("outbound: button title is too long", map[string]any{"title": title})
		}
		replies = append(replies, ReplyButton{Type: "reply", Reply: core.Button{ID: id, Title: title}})
	}
	return Message{
		MessagingProduct: messagingProduct,
		RecipientType:    recipientIndividual,
		To:               core.NormalizeNumber(to),
		Type:             "interactive",
		Interactive: &InteractiveMessage{
			Type:   interactiveTypeButton,
			Body:   TextPart{Text: text},
			Action: InteractiveAction{Buttons: replies},
		},
	}, nil
}

// replyContext threads replies to reactions under the reacted message, since
// a reaction itself cannot be quoted.
func replyContext(ev core.Event) string {
	h := core.EventHeader(ev)
	if _, ok := ev.(core.ReactionEvent); ok && strings.TrimSpace(h.Context) != "" {
		return h.Context
	}
	return h.ID
}

func requireReplyTarget(h core.Header) error {
	if strings.TrimSpace(h.ID) == "" || strings.TrimSpace(h.To.EndpointID) == "" || strings.TrimSpace(h.From.PhoneNumber) == "" {
		return outboundBadInput("outbound: event has no reply target", map[string]any{"event_id": h.ID})
	}
	return nil
}
