package pipeline

import (
	"context"
	"time"

	"github.com/goliatone/go-whatsapp/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const TracerName = "github.com/goliatone/go-whatsapp/pipeline"

type TelemetryOptions struct {
	Tracer  trace.Tracer
	Metrics core.MetricsRecorder
	// EnableSensitiveData attaches the full event, message text included, to
	// the span.
	EnableSensitiveData bool
}

// Telemetry opens one consumer span per event and records handle counters.
func Telemetry(opts TelemetryOptions) Factory {
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(TracerName)
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = core.NopMetricsRecorder{}
	}
	return func(inner Handler, _ Resolver) Handler {
		if inner == nil {
			return nil
		}
		return &TelemetryHandler{
			inner:     inner,
			tracer:    tracer,
			observer:  core.Observer{Metrics: metrics},
			sensitive: opts.EnableSensitiveData,
		}
	}
}

type TelemetryHandler struct {
	inner     Handler
	tracer    trace.Tracer
	observer  core.Observer
	sensitive bool
}

func (h *TelemetryHandler) Handle(ctx context.Context, ev core.Event) (err error) {
	startedAt := time.Now()
	ctx, span := h.tracer.Start(ctx, spanName(ev),
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(eventAttributes(ev)...),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
		h.observer.Observe(ctx, startedAt, "pipeline.handle", err, core.EventFields(ev))
	}()

	if h.sensitive && ev != nil {
		if payload, marshalErr := core.MarshalEvent(ev); marshalErr == nil {
			span.SetAttributes(attribute.String("whatsapp.event", string(payload)))
		}
	}
	return h.inner.Handle(ctx, ev)
}

func spanName(ev core.Event) string {
	if ev == nil {
		return "whatsapp process"
	}
	return "whatsapp process " + string(ev.Kind())
}

func eventAttributes(ev core.Event) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("messaging.system", "whatsapp"),
		attribute.String("messaging.operation.type", "process"),
	}
	if ev == nil {
		return attrs
	}
	h := core.EventHeader(ev)
	attrs = append(attrs,
		attribute.String("messaging.message.id", h.ID),
		attribute.String("messaging.destination.name", h.To.EndpointID),
		attribute.String("whatsapp.event.kind", string(ev.Kind())),
		attribute.String("whatsapp.notification.id", h.NotificationID),
		attribute.Int64("whatsapp.event.timestamp", h.Timestamp),
	)
	if h.Context != "" {
		attrs = append(attrs, attribute.String("whatsapp.event.context", h.Context))
	}
	if content, ok := ev.(core.ContentEvent); ok && content.Content != nil {
		attrs = append(attrs, attribute.String("whatsapp.content.kind", string(content.Content.Kind())))
	}
	return attrs
}

var _ Handler = (*TelemetryHandler)(nil)
