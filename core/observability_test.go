package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type capturedCounter struct {
	name  string
	value int64
	tags  map[string]string
}

type captureMetricsRecorder struct {
	mu         sync.Mutex
	counters   []capturedCounter
	histograms []string
}

func (m *captureMetricsRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, capturedCounter{name: name, value: value, tags: cloneTags(tags)})
}

func (m *captureMetricsRecorder) ObserveHistogram(_ context.Context, name string, _ float64, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms = append(m.histograms, name)
}

type capturedLog struct {
	level  string
	msg    string
	fields map[string]any
}

type captureLogger struct {
	mu      sync.Mutex
	records []capturedLog
}

func (l *captureLogger) Trace(msg string, args ...any) { l.record("trace", msg, args...) }
func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args...) }
func (l *captureLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args...) }

func (l *captureLogger) WithContext(context.Context) Logger { return l }

func (l *captureLogger) record(level string, msg string, args ...any) {
	fields := map[string]any{}
	for index := 0; index+1 < len(args); index += 2 {
		if key, ok := args[index].(string); ok {
			fields[key] = args[index+1]
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, capturedLog{level: level, msg: msg, fields: fields})
}

func TestObserver_RecordsSuccessAndFailure(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	logger := &captureLogger{}
	observer := Observer{Logger: logger, Metrics: metrics}

	observer.Observe(context.Background(), time.Now(), "Process Event", nil, map[string]any{
		"event_kind": "content",
	})
	observer.Observe(context.Background(), time.Now(), "process-event", errors.New("boom"), nil)

	if len(metrics.counters) != 2 {
		t.Fatalf("expected 2 counters, got %d", len(metrics.counters))
	}
	first := metrics.counters[0]
	if first.name != "whatsapp.process_event.total" {
		t.Fatalf("unexpected counter name %q", first.name)
	}
	if first.tags["status"] != "success" || first.tags["event_kind"] != "content" {
		t.Fatalf("unexpected tags %v", first.tags)
	}
	if metrics.counters[1].tags["status"] != "failure" {
		t.Fatalf("expected failure status tag")
	}
	if len(metrics.histograms) != 2 {
		t.Fatalf("expected histogram per observation")
	}
	if len(logger.records) != 2 || logger.records[1].level != "error" {
		t.Fatalf("expected error log for failure, got %+v", logger.records)
	}
	if logger.records[1].fields["error"] != "boom" {
		t.Fatalf("expected error field, got %v", logger.records[1].fields)
	}
}

func TestNewObserver_FallsBackToNop(t *testing.T) {
	observer := NewObserver("whatsapp", nil, nil, nil)
	if observer.Logger == nil || observer.Metrics == nil {
		t.Fatalf("expected nop logger and metrics")
	}
	observer.Observe(context.Background(), time.Now(), "noop", nil, nil)
}

func TestLogWithLevelRedactsCredentials(t *testing.T) {
	logger := &captureLogger{}
	LogWithLevel(context.Background(), logger, "warn", "graph call", map[string]any{
		"access_token": "EAAG-secret",
		"endpoint_id":  "106540352242922",
	})

	if len(logger.records) != 1 {
		t.Fatalf("expected one record, got %d", len(logger.records))
	}
	fields := logger.records[0].fields
	if fields["access_token"] != RedactedValue {
		t.Fatalf("expected token to be redacted, got %v", fields["access_token"])
	}
	if fields["endpoint_id"] != "106540352242922" {
		t.Fatalf("expected endpoint id to stay visible, got %v", fields["endpoint_id"])
	}
}
