package pipeline

import (
	"context"
	"fmt"

	"github.com/goliatone/go-whatsapp/core"
)

type Builder struct {
	terminal  Handler
	resolver  Resolver
	factories []Factory
}

type BuilderOption func(*Builder)

func WithResolver(resolver Resolver) BuilderOption {
	return func(b *Builder) {
		if b == nil {
			return
		}
		b.resolver = resolver
	}
}

// NewBuilder starts a pipeline around terminal. A nil terminal does nothing.
func NewBuilder(terminal Handler, opts ...BuilderOption) *Builder {
	builder := &Builder{terminal: terminal, resolver: MapResolver{}}
	for _, opt := range opts {
		if opt != nil {
			opt(builder)
		}
	}
	if builder.resolver == nil {
		builder.resolver = MapResolver{}
	}
	return builder
}

// Use appends a stage. Stages registered first run outermost.
func (b *Builder) Use(factory Factory) *Builder {
	b.factories = append(b.factories, factory)
	return b
}

func (b *Builder) UseFunc(middleware Middleware) *Builder {
	if middleware == nil {
		return b.Use(nil)
	}
	return b.Use(func(inner Handler, _ Resolver) Handler {
		return HandlerFunc(func(ctx context.Context, ev core.Event) error {
			return middleware(ctx, ev, inner)
		})
	})
}

func (b *Builder) Len() int {
	if b == nil {
		return 0
	}
	return len(b.factories)
}

// Build composes the stages right to left around the terminal.
func (b *Builder) Build() (Handler, error) {
	if b == nil {
		return nil, fmt.Errorf("pipeline: builder is nil")
	}
	handler := b.terminal
	if handler == nil {
		handler = noopHandler
	}
	for index := len(b.factories) - 1; index >= 0; index-- {
		factory := b.factories[index]
		if factory == nil {
			return nil, pipelineInvalid("pipeline: factory is nil", index)
		}
		wrapped := factory(handler, b.resolver)
		if wrapped == nil {
			return nil, pipelineInvalid("pipeline: factory returned nil handler", index)
		}
		handler = wrapped
	}
	return handler, nil
}
