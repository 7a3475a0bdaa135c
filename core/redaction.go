package core

import "strings"

const RedactedValue = "[REDACTED]"

var sensitiveKeyTokens = []string{
	"secret",
	"token",
	"authorization",
	"signature",
	"password",
	"body",
}

// RedactSensitiveMap masks credential-like keys and raw message bodies before
// fields reach a log sink. Identifier keys such as idempotency_key stay visible.
func RedactSensitiveMap(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	return redactSensitiveMap(fields)
}

func redactSensitiveMap(source map[string]any) map[string]any {
	target := make(map[string]any, len(source))
	for key, value := range source {
		if shouldRedactKey(key) {
			target[key] = RedactedValue
			continue
		}
		target[key] = redactSensitiveValue(value)
	}
	return target
}

func redactSensitiveValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return redactSensitiveMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i := range typed {
			out[i] = redactSensitiveValue(typed[i])
		}
		return out
	default:
		return value
	}
}

func shouldRedactKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" || isTraceabilityKey(key) {
		return false
	}
	for _, token := range sensitiveKeyTokens {
		if strings.Contains(key, token) {
			return true
		}
	}
	return false
}

func isTraceabilityKey(key string) bool {
	switch key {
	case "endpoint_id",
		"notification_id",
		"message_id",
		"event_id",
		"idempotency_key",
		"fbtrace_id",
		"trace_id",
		"request_id",
		"text_code":
		return true
	default:
		return false
	}
}
