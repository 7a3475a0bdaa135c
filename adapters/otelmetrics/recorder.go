// Package otelmetrics records core metrics through an OpenTelemetry meter.
package otelmetrics

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-whatsapp/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const MeterName = "github.com/goliatone/go-whatsapp"

type Option func(*Recorder)

// WithErrorHandler receives instrument creation failures. They are dropped
// otherwise, matching the recorder's fire-and-forget contract.
func WithErrorHandler(fn func(error)) Option {
	return func(r *Recorder) {
		if r != nil {
			r.onError = fn
		}
	}
}

// Recorder implements core.MetricsRecorder. Instruments are created lazily
// and cached by name.
type Recorder struct {
	meter   metric.Meter
	onError func(error)

	mu         sync.Mutex
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
}

// New uses the global meter provider when meter is nil.
func New(meter metric.Meter, opts ...Option) *Recorder {
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(MeterName)
	}
	recorder := &Recorder{
		meter:      meter,
		counters:   map[string]metric.Int64Counter{},
		histograms: map[string]metric.Float64Histogram{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(recorder)
		}
	}
	return recorder
}

func (r *Recorder) IncCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	if r == nil || strings.TrimSpace(name) == "" {
		return
	}
	counter, ok := r.counter(name)
	if !ok {
		return
	}
	counter.Add(ctx, value, metric.WithAttributes(attributes(tags)...))
}

func (r *Recorder) ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	if r == nil || strings.TrimSpace(name) == "" {
		return
	}
	histogram, ok := r.histogram(name)
	if !ok {
		return
	}
	histogram.Record(ctx, value, metric.WithAttributes(attributes(tags)...))
}

func (r *Recorder) counter(name string) (metric.Int64Counter, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if counter, ok := r.counters[name]; ok {
		return counter, true
	}
	counter, err := r.meter.Int64Counter(name)
	if err != nil {
		r.report(err)
		return nil, false
	}
	r.counters[name] = counter
	return counter, true
}

func (r *Recorder) histogram(name string) (metric.Float64Histogram, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if histogram, ok := r.histograms[name]; ok {
		return histogram, true
	}
	opts := []metric.Float64HistogramOption{}
	if strings.HasSuffix(name, "_ms") {
		opts = append(opts, metric.WithUnit("ms"))
	}
	histogram, err := r.meter.Float64Histogram(name, opts...)
	if err != nil {
		r.report(err)
		return nil, false
	}
	r.histograms[name] = histogram
	return histogram, true
}

func (r *Recorder) report(err error) {
	if r.onError != nil {
		r.onError(err)
	}
}

func attributes(tags map[string]string) []attribute.KeyValue {
	if len(tags) == 0 {
		return nil
	}
	keys := make([]string, 0, len(tags))
	for key := range tags {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]attribute.KeyValue, 0, len(keys))
	for _, key := range keys {
		out = append(out, attribute.String(key, tags[key]))
	}
	return out
}

var _ core.MetricsRecorder = (*Recorder)(nil)
