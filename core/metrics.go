package core

import (
	"context"
	"fmt"
	"maps"
	"strings"
)

// DefaultMetricPrefix namespaces metrics recorded through an Observer.
const DefaultMetricPrefix = "whatsapp"

// metricTagKeys are the log fields promoted to metric tags. Message ids and
// phone numbers never become tags.
var metricTagKeys = []string{"event_kind", "endpoint_id", "outcome"}

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func metricTags(operation string, status string, fields map[string]any) map[string]string {
	tags := map[string]string{
		"operation": operation,
		"status":    status,
	}
	for _, key := range metricTagKeys {
		value, ok := fields[key]
		if !ok || value == nil {
			continue
		}
		if text := strings.TrimSpace(fmt.Sprint(value)); text != "" {
			tags[key] = text
		}
	}
	return tags
}

func cloneTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return map[string]string{}
	}
	return maps.Clone(tags)
}

var _ MetricsRecorder = NopMetricsRecorder{}
