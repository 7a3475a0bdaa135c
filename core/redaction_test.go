package core

import "testing"

func TestRedactSensitiveMapPreservesTraceabilityMetadata(t *testing.T) {
	redacted := RedactSensitiveMap(map[string]any{
		"fbtrace_id":      "AbC",
		"endpoint_id":     "106540352242922",
		"idempotency_key": "16505551234/102290129340398",
		"access_token":    "secret-token",
		"authorization":   "Bearer secret-token",
		"nested":          map[string]any{"app_secret": "s3cret", "message_id": "wamid.1"},
		"items":           []any{map[string]any{"body": "hello!"}, map[string]any{"event_id": "wamid.2"}},
	})

	if redacted["fbtrace_id"] != "AbC" || redacted["idempotency_key"] != "16505551234/102290129340398" {
		t.Fatalf("expected identifiers to remain visible, got %#v", redacted)
	}
	if redacted["access_token"] != RedactedValue || redacted["authorization"] != RedactedValue {
		t.Fatalf("expected credentials to be redacted, got %#v", redacted)
	}
	nested, ok := redacted["nested"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested redacted map")
	}
	if nested["app_secret"] != RedactedValue || nested["message_id"] != "wamid.1" {
		t.Fatalf("unexpected nested redaction %#v", nested)
	}
	items, ok := redacted["items"].([]any)
	if !ok || items[0].(map[string]any)["body"] != RedactedValue {
		t.Fatalf("expected message body in list to be redacted, got %#v", redacted["items"])
	}
}

func TestRedactSensitiveMapEmpty(t *testing.T) {
	if got := RedactSensitiveMap(nil); got == nil || len(got) != 0 {
		t.Fatalf("expected empty map, got %#v", got)
	}
}
