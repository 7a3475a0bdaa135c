package pipeline

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-whatsapp/core"
)

// Logging logs each event as it enters and leaves the inner handler.
func Logging(provider core.LoggerProvider, logger core.Logger) Factory {
	_, resolved := glog.Resolve("whatsapp.pipeline", provider, logger)
	return func(inner Handler, _ Resolver) Handler {
		if inner == nil {
			return nil
		}
		return &LoggingHandler{inner: inner, logger: resolved}
	}
}

type LoggingHandler struct {
	inner  Handler
	logger core.Logger
}

func (h *LoggingHandler) Handle(ctx context.Context, ev core.Event) error {
	startedAt := time.Now()
	fields := core.EventFields(ev)
	core.LogWithLevel(ctx, h.logger, "debug", "pipeline: event invoked", fields)

	err := h.inner.Handle(ctx, ev)
	fields["duration_ms"] = time.Since(startedAt).Milliseconds()
	switch {
	case err == nil:
		core.LogWithLevel(ctx, h.logger, "debug", "pipeline: event completed", fields)
	case core.IsCanceled(err):
		fields["error"] = err.Error()
		core.LogWithLevel(ctx, h.logger, "warn", "pipeline: event canceled", fields)
	default:
		fields["error"] = err.Error()
		core.LogWithLevel(ctx, h.logger, "error", "pipeline: event failed", fields)
	}
	return err
}

var _ Handler = (*LoggingHandler)(nil)
