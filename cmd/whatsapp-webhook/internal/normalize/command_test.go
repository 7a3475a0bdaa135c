package normalize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const reactionEnvelope = `{"entry":[{"id":"n-1","changes":[{"value":{
	"metadata":{"display_phone_number":"15550783881","phone_number_id":"106540352242922"},
	"contacts":[{"profile":{"name":"Kerry"},"wa_id":"16505551234"}],
	"messages":[{"from":"16505551234","id":"wamid.R","timestamp":"1749416383","type":"reaction",
		"reaction":{"message_id":"wamid.ORIG","emoji":"👍"}}]}}]}]}`

func TestRun_PrintsNormalizedEvent(t *testing.T) {
	var out bytes.Buffer
	if err := Run(context.Background(), strings.NewReader(reactionEnvelope), &out, true); err != nil {
		t.Fatalf("run: %v", err)
	}
	decoded := map[string]any{}
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", out.String(), err)
	}
	if decoded["kind"] != "reaction" {
		t.Fatalf("expected reaction kind, got %v", decoded["kind"])
	}
	event, ok := decoded["event"].(map[string]any)
	if !ok || event["id"] != "wamid.R" {
		t.Fatalf("expected event id, got %v", decoded["event"])
	}
}

func TestRun_NoEventPrintsNullUnlessStrict(t *testing.T) {
	empty := `{"entry":[{"id":"n","changes":[{"value":{}}]}]}`

	var out bytes.Buffer
	if err := Run(context.Background(), strings.NewReader(empty), &out, false); err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.TrimSpace(out.String()) != "null" {
		t.Fatalf("expected null, got %q", out.String())
	}

	if err := Run(context.Background(), strings.NewReader(empty), &bytes.Buffer{}, true); !errors.Is(err, ErrNoEvent) {
		t.Fatalf("expected ErrNoEvent in strict mode, got %v", err)
	}
}

func TestNormalizeCommand_ReadsFileArgument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload.json")
	if err := os.WriteFile(path, []byte(reactionEnvelope), 0o600); err != nil {
		t.Fatalf("write payload: %v", err)
	}

	cmd := NewNormalizeCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out.String(), `"wamid.R"`) {
		t.Fatalf("expected event output, got %q", out.String())
	}
}

func TestNormalizeCommand_ReadsStdin(t *testing.T) {
	cmd := NewNormalizeCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader(reactionEnvelope))
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out.String(), `"wamid.R"`) {
		t.Fatalf("expected event output, got %q", out.String())
	}
}
