package core

import (
	"context"
	"sort"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Observer logs and records metrics for one named component.
type Observer struct {
	Logger  Logger
	Metrics MetricsRecorder
	// Prefix is prepended to metric names, DefaultMetricPrefix when empty.
	Prefix string
}

func NewObserver(name string, provider LoggerProvider, logger Logger, metrics MetricsRecorder) Observer {
	_, resolved := glog.Resolve(name, provider, logger)
	if metrics == nil {
		metrics = NopMetricsRecorder{}
	}
	return Observer{Logger: resolved, Metrics: metrics}
}

// Observe records <prefix>.<operation>.total and .duration_ms and logs the outcome.
func (o Observer) Observe(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	err error,
	fields map[string]any,
) {
	operation = normalizeOperation(operation)
	if operation == "" {
		operation = "unknown"
	}
	status := "success"
	if err != nil {
		status = "failure"
	}

	contextFields := cloneFields(fields)
	contextFields["operation"] = operation
	contextFields["status"] = status
	contextFields["duration_ms"] = time.Since(startedAt).Milliseconds()
	if err != nil {
		contextFields["error"] = err.Error()
	}

	tags := metricTags(operation, status, contextFields)

	o.Count(ctx, operation+".total", 1, tags)
	o.Histogram(ctx, operation+".duration_ms", float64(time.Since(startedAt).Milliseconds()), tags)

	if err != nil {
		o.Log(ctx, "error", operation+" failed", contextFields)
		return
	}
	o.Log(ctx, "debug", operation+" succeeded", contextFields)
}

func (o Observer) Count(ctx context.Context, name string, value int64, tags map[string]string) {
	if o.Metrics == nil {
		return
	}
	o.Metrics.IncCounter(ctx, o.metricName(name), value, cloneTags(tags))
}

func (o Observer) Histogram(ctx context.Context, name string, value float64, tags map[string]string) {
	if o.Metrics == nil {
		return
	}
	o.Metrics.ObserveHistogram(ctx, o.metricName(name), value, cloneTags(tags))
}

func (o Observer) Log(ctx context.Context, level string, message string, fields map[string]any) {
	LogWithLevel(ctx, o.Logger, level, message, fields)
}

func (o Observer) metricName(name string) string {
	prefix := strings.TrimSpace(o.Prefix)
	if prefix == "" {
		prefix = DefaultMetricPrefix
	}
	return prefix + "." + strings.TrimSpace(name)
}

// LogWithLevel redacts fields, attaches them through FieldsLogger when
// available and always passes them as sorted key/value args.
func LogWithLevel(ctx context.Context, logger Logger, level string, message string, fields map[string]any) {
	if logger == nil {
		return
	}
	fields = RedactSensitiveMap(fields)
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	}
	args := flattenFields(fields)
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		logger.Error(message, args...)
	case "warn":
		logger.Warn(message, args...)
	case "debug":
		logger.Debug(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func cloneFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	copied := make(map[string]any, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}

func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}

func normalizeOperation(operation string) string {
	operation = strings.TrimSpace(strings.ToLower(operation))
	operation = strings.ReplaceAll(operation, " ", "_")
	operation = strings.ReplaceAll(operation, "-", "_")
	return operation
}

// EventFields returns the log fields identifying an event.
func EventFields(ev Event) map[string]any {
	if ev == nil {
		return map[string]any{}
	}
	h := EventHeader(ev)
	return map[string]any{
		"event_id":        h.ID,
		"event_kind":      string(ev.Kind()),
		"notification_id": h.NotificationID,
		"endpoint_id":     h.To.EndpointID,
	}
}
