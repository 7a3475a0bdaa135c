package pipeline

import (
	"context"
	"strings"

	"github.com/goliatone/go-whatsapp/core"
)

// Handler consumes one normalized event.
type Handler interface {
	Handle(ctx context.Context, ev core.Event) error
}

type HandlerFunc func(ctx context.Context, ev core.Event) error

func (f HandlerFunc) Handle(ctx context.Context, ev core.Event) error {
	return f(ctx, ev)
}

// Resolver gives factories access to shared services by name.
type Resolver interface {
	Resolve(name string) (any, bool)
}

// MapResolver resolves services from a fixed map.
type MapResolver map[string]any

func (m MapResolver) Resolve(name string) (any, bool) {
	if m == nil {
		return nil, false
	}
	value, ok := m[strings.TrimSpace(name)]
	return value, ok
}

// Factory wraps inner with one stage. Returning nil is a configuration error.
type Factory func(inner Handler, resolver Resolver) Handler

// Middleware is the function form of a stage.
type Middleware func(ctx context.Context, ev core.Event, next Handler) error

var noopHandler = HandlerFunc(func(context.Context, core.Event) error { return nil })

var _ Handler = HandlerFunc(nil)
