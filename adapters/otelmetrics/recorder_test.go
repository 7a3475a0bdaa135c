package otelmetrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-whatsapp/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type stubCounter struct {
	noop.Int64Counter
	total int64
	attrs attribute.Set
}

func (c *stubCounter) Add(_ context.Context, value int64, opts ...metric.AddOption) {
	c.total += value
	c.attrs = metric.NewAddConfig(opts).Attributes()
}

type stubHistogram struct {
	noop.Float64Histogram
	unit   string
	values []float64
}

func (h *stubHistogram) Record(_ context.Context, value float64, _ ...metric.RecordOption) {
	h.values = append(h.values, value)
}

type stubMeter struct {
	noop.Meter
	counters       map[string]*stubCounter
	histograms     map[string]*stubHistogram
	counterCreates int
	fail           error
}

func newStubMeter() *stubMeter {
	return &stubMeter{counters: map[string]*stubCounter{}, histograms: map[string]*stubHistogram{}}
}

func (m *stubMeter) Int64Counter(name string, _ ...metric.Int64CounterOption) (metric.Int64Counter, error) {
	if m.fail != nil {
		return nil, m.fail
	}
	m.counterCreates++
	counter := &stubCounter{}
	m.counters[name] = counter
	return counter, nil
}

func (m *stubMeter) Float64Histogram(name string, opts ...metric.Float64HistogramOption) (metric.Float64Histogram, error) {
	if m.fail != nil {
		return nil, m.fail
	}
	histogram := &stubHistogram{unit: metric.NewFloat64HistogramConfig(opts...).Unit()}
	m.histograms[name] = histogram
	return histogram, nil
}

func TestRecorder_CountersAreCachedAndTagged(t *testing.T) {
	meter := newStubMeter()
	recorder := New(meter)
	ctx := context.Background()

	recorder.IncCounter(ctx, "whatsapp.delivery.total", 1, map[string]string{"status": "ok", "kind": "content"})
	recorder.IncCounter(ctx, "whatsapp.delivery.total", 2, map[string]string{"status": "ok", "kind": "content"})

	if meter.counterCreates != 1 {
		t.Fatalf("expected counter to be created once, got %d", meter.counterCreates)
	}
	counter := meter.counters["whatsapp.delivery.total"]
	if counter.total != 3 {
		t.Fatalf("expected total 3, got %d", counter.total)
	}
	if value, ok := counter.attrs.Value(attribute.Key("status")); !ok || value.AsString() != "ok" {
		t.Fatalf("expected status attribute, got %v", counter.attrs)
	}
	if counter.attrs.Len() != 2 {
		t.Fatalf("expected two attributes, got %d", counter.attrs.Len())
	}
}

func TestRecorder_HistogramUnitsFromName(t *testing.T) {
	meter := newStubMeter()
	recorder := New(meter)

	recorder.ObserveHistogram(context.Background(), "whatsapp.delivery.duration_ms", 12, nil)
	recorder.ObserveHistogram(context.Background(), "whatsapp.payload.bytes", 512, nil)

	if got := meter.histograms["whatsapp.delivery.duration_ms"]; got.unit != "ms" || len(got.values) != 1 || got.values[0] != 12 {
		t.Fatalf("unexpected duration histogram: %#v", got)
	}
	if got := meter.histograms["whatsapp.payload.bytes"]; got.unit != "" {
		t.Fatalf("expected no unit, got %q", got.unit)
	}
}

func TestRecorder_ReportsInstrumentFailures(t *testing.T) {
	meter := newStubMeter()
	meter.fail = errors.New("bad instrument name")
	var reported []error
	recorder := New(meter, WithErrorHandler(func(err error) { reported = append(reported, err) }))

	recorder.IncCounter(context.Background(), "x", 1, nil)
	recorder.ObserveHistogram(context.Background(), "y", 1, nil)
	recorder.IncCounter(context.Background(), " ", 1, nil)

	if len(reported) != 2 {
		t.Fatalf("expected two reported failures, got %d", len(reported))
	}
}

func TestRecorder_DrivesObserver(t *testing.T) {
	meter := newStubMeter()
	observer := core.NewObserver("whatsapp.test", nil, nil, New(meter))

	observer.Observe(context.Background(), time.Now(), "outbound.send", nil, map[string]any{"endpoint_id": "1"})

	if len(meter.counters) == 0 || len(meter.histograms) == 0 {
		t.Fatalf("expected observer to record through otel, got %d counters %d histograms", len(meter.counters), len(meter.histograms))
	}
}

func TestNew_FallsBackToGlobalMeter(t *testing.T) {
	recorder := New(nil)
	recorder.IncCounter(context.Background(), "whatsapp.noop.total", 1, nil)
	if recorder.meter == nil {
		t.Fatalf("expected global meter fallback")
	}
}
