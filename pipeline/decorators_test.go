package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/goliatone/go-whatsapp/core"
	"go.opentelemetry.io/otel/trace/noop"
)

type capturedLog struct {
	level string
	msg   string
}

type captureLogger struct {
	mu      sync.Mutex
	records []capturedLog
}

func (l *captureLogger) Trace(msg string, args ...any) { l.record("trace", msg) }
func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg) }
func (l *captureLogger) Fatal(msg string, args ...any) { l.record("fatal", msg) }

func (l *captureLogger) WithContext(context.Context) core.Logger { return l }

func (l *captureLogger) record(level string, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, capturedLog{level: level, msg: msg})
}

func (l *captureLogger) levels() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.records))
	for _, record := range l.records {
		out = append(out, record.level)
	}
	return out
}

type captureMetrics struct {
	mu       sync.Mutex
	counters map[string]map[string]string
}

func (m *captureMetrics) IncCounter(_ context.Context, name string, _ int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = map[string]map[string]string{}
	}
	m.counters[name] = tags
}

func (m *captureMetrics) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func TestLogging_LevelsFollowOutcome(t *testing.T) {
	logger := &captureLogger{}
	failing := errors.New("handler failed")
	results := []error{nil, failing, context.Canceled}

	for _, result := range results {
		handler, err := NewBuilder(HandlerFunc(func(context.Context, core.Event) error { return result })).
			Use(Logging(nil, logger)).
			Build()
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		if err := handler.Handle(context.Background(), testEvent()); !errors.Is(err, result) {
			t.Fatalf("expected %v to propagate, got %v", result, err)
		}
	}

	expected := []string{"debug", "debug", "debug", "error", "debug", "warn"}
	levels := logger.levels()
	if len(levels) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, levels)
	}
	for index := range expected {
		if levels[index] != expected[index] {
			t.Fatalf("expected %v, got %v", expected, levels)
		}
	}
}

func TestTelemetry_RecordsCountersAndPassesThrough(t *testing.T) {
	metrics := &captureMetrics{}
	invoked := false
	handler, err := NewBuilder(HandlerFunc(func(ctx context.Context, _ core.Event) error {
		invoked = true
		return nil
	})).
		Use(Telemetry(TelemetryOptions{
			Tracer:              noop.NewTracerProvider().Tracer("test"),
			Metrics:             metrics,
			EnableSensitiveData: true,
		})).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if err := handler.Handle(context.Background(), testEvent()); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !invoked {
		t.Fatalf("expected inner handler to run")
	}
	tags, ok := metrics.counters["whatsapp.pipeline.handle.total"]
	if !ok {
		t.Fatalf("expected handle counter, got %#v", metrics.counters)
	}
	if tags["status"] != "success" || tags["event_kind"] != "content" || tags["endpoint_id"] != "p1" {
		t.Fatalf("unexpected tags: %#v", tags)
	}
}

func TestTelemetry_FailureStatus(t *testing.T) {
	metrics := &captureMetrics{}
	handler, err := NewBuilder(HandlerFunc(func(context.Context, core.Event) error {
		return errors.New("boom")
	})).
		Use(Telemetry(TelemetryOptions{Metrics: metrics})).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := handler.Handle(context.Background(), testEvent()); err == nil {
		t.Fatalf("expected error")
	}
	if metrics.counters["whatsapp.pipeline.handle.total"]["status"] != "failure" {
		t.Fatalf("expected failure status, got %#v", metrics.counters)
	}
}
