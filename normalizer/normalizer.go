package normalizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-whatsapp/core"
	"github.com/tidwall/gjson"
)

// Options configures a Normalizer. Zero values select GJSONTransformer and
// DefaultProgram.
type Options struct {
	Transformer Transformer
	Program     *Program
	Logger      core.Logger
}

type Normalizer struct {
	transformer Transformer
	program     Program
	logger      core.Logger
}

func New(opts Options) *Normalizer {
	transformer := opts.Transformer
	if transformer == nil {
		transformer = GJSONTransformer{}
	}
	program := DefaultProgram()
	if opts.Program != nil {
		program = *opts.Program
	}
	return &Normalizer{
		transformer: transformer,
		program:     program,
		logger:      glog.Ensure(opts.Logger),
	}
}

// Normalize maps one webhook document to at most one event. It returns
// (nil, nil) for empty or malformed input and for envelopes without an
// actionable change. An error means the transform output no longer matches
// the event model and must not be treated as a dropped notification.
func (n *Normalizer) Normalize(ctx context.Context, raw []byte) (core.Event, error) {
	if n == nil {
		return nil, fmt.Errorf("normalizer: normalizer is nil")
	}
	document := bytes.TrimSpace(raw)
	if len(document) == 0 || !gjson.ValidBytes(document) {
		return nil, nil
	}

	out, err := n.transformer.Transform(ctx, document, n.program)
	if err != nil {
		if core.IsCanceled(err) {
			return nil, err
		}
		return nil, normalizerDefect(err, "normalizer: transform failed", map[string]any{
			"program": n.program.Name,
		})
	}
	out = bytes.TrimSpace(out)
	if len(out) == 0 || bytes.Equal(out, []byte("null")) {
		n.logger.Debug("normalizer: no actionable change", "program", n.program.Name)
		return nil, nil
	}

	ev, err := Decode(out)
	if err != nil {
		return nil, normalizerDefect(err, "normalizer: transform output does not match event model", map[string]any{
			"program": n.program.Name,
			"output":  string(out),
		})
	}
	return ev, nil
}

type wireService struct {
	ID     string `json:"id"`
	Number string `json:"number"`
}

type wireUser struct {
	Name   string `json:"name"`
	Number string `json:"number"`
}

type wireButton struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type wireError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type wireLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type wireContent struct {
	Type     string          `json:"type"`
	Text     string          `json:"text"`
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Surname  string          `json:"surname"`
	Numbers  []string        `json:"numbers"`
	Mime     string          `json:"mime"`
	Sha256   string          `json:"sha256"`
	Location *wireLocation   `json:"location"`
	Address  string          `json:"address"`
	URL      string          `json:"url"`
	Raw      json.RawMessage `json:"raw"`
}

type wireEvent struct {
	Type         string          `json:"type"`
	Notification string          `json:"notification"`
	ID           string          `json:"id"`
	Context      string          `json:"context"`
	Timestamp    int64           `json:"timestamp"`
	To           *wireService    `json:"to"`
	From         *wireUser       `json:"from"`
	Content      *wireContent    `json:"content"`
	Button       *wireButton     `json:"button"`
	Emoji        string          `json:"emoji"`
	Status       string          `json:"status"`
	Error        *wireError      `json:"error"`
	Raw          json.RawMessage `json:"raw"`
}

// Decode strictly decodes the intermediate document produced by a Program.
func Decode(document []byte) (core.Event, error) {
	decoder := json.NewDecoder(bytes.NewReader(document))
	decoder.DisallowUnknownFields()
	var wire wireEvent
	if err := decoder.Decode(&wire); err != nil {
		return nil, fmt.Errorf("normalizer: decode intermediate event: %w", err)
	}
	if decoder.More() {
		return nil, fmt.Errorf("normalizer: trailing data after intermediate event")
	}

	header, err := wire.header()
	if err != nil {
		return nil, err
	}

	switch wire.Type {
	case wireTypeContent:
		content, err := wire.Content.content()
		if err != nil {
			return nil, err
		}
		return core.ContentEvent{Header: header, Content: content}, nil
	case wireTypeInteractive:
		if wire.Button == nil || strings.TrimSpace(wire.Button.ID) == "" {
			return nil, fmt.Errorf("normalizer: interactive event %q has no button", header.ID)
		}
		return core.InteractiveEvent{
			Header: header,
			Button: core.Button{ID: wire.Button.ID, Title: wire.Button.Title},
		}, nil
	case wireTypeReaction:
		return core.ReactionEvent{Header: header, Emoji: wire.Emoji}, nil
	case wireTypeStatus:
		status, ok := core.ParseStatus(wire.Status)
		if !ok {
			return nil, fmt.Errorf("normalizer: status %q is not supported", wire.Status)
		}
		return core.StatusEvent{Header: header, Status: status}, nil
	case wireTypeError:
		if wire.Error == nil {
			return nil, fmt.Errorf("normalizer: error event %q has no error payload", header.ID)
		}
		return core.ErrorEvent{
			Header: header,
			Error:  core.EventError{Code: wire.Error.Code, Message: wire.Error.Message},
		}, nil
	case wireTypeUnsupported:
		raw := append(json.RawMessage(nil), wire.Raw...)
		if len(raw) == 0 {
			raw = json.RawMessage(`null`)
		}
		return core.UnsupportedEvent{Header: header, Raw: raw}, nil
	default:
		return nil, fmt.Errorf("normalizer: unknown event type %q", wire.Type)
	}
}

func (w wireEvent) header() (core.Header, error) {
	if strings.TrimSpace(w.ID) == "" {
		return core.Header{}, fmt.Errorf("normalizer: event id is required")
	}
	if w.To == nil || strings.TrimSpace(w.To.ID) == "" {
		return core.Header{}, fmt.Errorf("normalizer: event %q has no receiving service", w.ID)
	}
	if w.From == nil || strings.TrimSpace(w.From.Number) == "" {
		return core.Header{}, fmt.Errorf("normalizer: event %q has no sender", w.ID)
	}
	return core.Header{
		ID:             strings.TrimSpace(w.ID),
		NotificationID: strings.TrimSpace(w.Notification),
		To: core.Service{
			EndpointID:  strings.TrimSpace(w.To.ID),
			PhoneNumber: core.NormalizeNumber(w.To.Number),
		},
		From: core.User{
			DisplayName: w.From.Name,
			PhoneNumber: core.NormalizeNumber(w.From.Number),
		},
		Timestamp: w.Timestamp,
		Context:   strings.TrimSpace(w.Context),
	}, nil
}

func (c *wireContent) content() (core.Content, error) {
	if c == nil {
		return nil, fmt.Errorf("normalizer: content event has no content")
	}
	media := core.MediaContent{ID: c.ID, Mime: c.Mime, Sha256: c.Sha256}
	switch core.ContentKind(c.Type) {
	case core.ContentKindText:
		return core.TextContent{Text: c.Text}, nil
	case core.ContentKindDocument:
		return core.DocumentContent{ID: c.ID, Name: c.Name, Mime: c.Mime, Sha256: c.Sha256}, nil
	case core.ContentKindContact:
		return core.ContactContent{
			Name:    c.Name,
			Surname: c.Surname,
			Numbers: core.NormalizeNumbers(c.Numbers),
		}, nil
	case core.ContentKindLocation:
		if c.Location == nil {
			return nil, fmt.Errorf("normalizer: location content has no coordinates")
		}
		return core.LocationContent{
			Location: core.Location{Latitude: c.Location.Latitude, Longitude: c.Location.Longitude},
			Address:  c.Address,
			Name:     c.Name,
			URL:      c.URL,
		}, nil
	case core.ContentKindImage:
		return core.ImageContent{MediaContent: media}, nil
	case core.ContentKindVideo:
		return core.VideoContent{MediaContent: media}, nil
	case core.ContentKindAudio:
		return core.AudioContent{MediaContent: media}, nil
	case core.ContentKindUnknown:
		return core.UnknownContent{Raw: append(json.RawMessage(nil), c.Raw...)}, nil
	default:
		return nil, fmt.Errorf("normalizer: unknown content type %q", c.Type)
	}
}
