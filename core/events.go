package core

import "encoding/json"

type EventKind string

const (
	EventKindContent     EventKind = "content"
	EventKindInteractive EventKind = "interactive"
	EventKindReaction    EventKind = "reaction"
	EventKindStatus      EventKind = "status"
	EventKindError       EventKind = "error"
	EventKindUnsupported EventKind = "unsupported"
)

// Service is the business number that received a notification.
type Service struct {
	EndpointID  string `json:"id"`
	PhoneNumber string `json:"number"`
}

// User is the end user on the other side of the conversation.
type User struct {
	DisplayName string `json:"name"`
	PhoneNumber string `json:"number"`
}

// Header carries the fields shared by every event variant.
type Header struct {
	ID             string  `json:"id"`
	NotificationID string  `json:"notification,omitempty"`
	To             Service `json:"to"`
	From           User    `json:"from"`
	Timestamp      int64   `json:"timestamp"`
	Context        string  `json:"context,omitempty"`
}

func (h Header) header() Header { return h }

// Event is the closed set of normalized notifications. The unexported method
// keeps implementations inside this package.
type Event interface {
	Kind() EventKind
	header() Header
}

type ContentEvent struct {
	Header
	Content Content `json:"content"`
}

func (ContentEvent) Kind() EventKind { return EventKindContent }

type Button struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type InteractiveEvent struct {
	Header
	Button Button `json:"button"`
}

func (InteractiveEvent) Kind() EventKind { return EventKindInteractive }

type ReactionEvent struct {
	Header
	Emoji string `json:"emoji"`
}

func (ReactionEvent) Kind() EventKind { return EventKindReaction }

type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

func ParseStatus(value string) (Status, bool) {
	switch Status(value) {
	case StatusSent, StatusDelivered, StatusRead:
		return Status(value), true
	}
	return "", false
}

type StatusEvent struct {
	Header
	Status Status `json:"status"`
}

func (StatusEvent) Kind() EventKind { return EventKindStatus }

type EventError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type ErrorEvent struct {
	Header
	Error EventError `json:"error"`
}

func (ErrorEvent) Kind() EventKind { return EventKindError }

// UnsupportedEvent keeps the provider message verbatim when its type is not
// part of the taxonomy.
type UnsupportedEvent struct {
	Header
	Raw json.RawMessage `json:"raw"`
}

func (UnsupportedEvent) Kind() EventKind { return EventKindUnsupported }

// EventHeader returns the common fields of any variant.
func EventHeader(ev Event) Header {
	if ev == nil {
		return Header{}
	}
	return ev.header()
}

// MarshalEvent renders an event with its kind, for logs and CLI output.
func MarshalEvent(ev Event) ([]byte, error) {
	if ev == nil {
		return []byte("null"), nil
	}
	payload := map[string]any{
		"kind":  ev.Kind(),
		"event": ev,
	}
	if content, ok := ev.(ContentEvent); ok && content.Content != nil {
		payload["content_kind"] = content.Content.Kind()
	}
	return json.Marshal(payload)
}

var (
	_ Event = ContentEvent{}
	_ Event = InteractiveEvent{}
	_ Event = ReactionEvent{}
	_ Event = StatusEvent{}
	_ Event = ErrorEvent{}
	_ Event = UnsupportedEvent{}
)
