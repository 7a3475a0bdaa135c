package normalizer

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-whatsapp/core"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	payload, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read fixture %s: %v", name, err)
	}
	return payload
}

func normalizeFixture(t *testing.T, name string) core.Event {
	t.Helper()
	ev, err := New(Options{}).Normalize(context.Background(), loadFixture(t, name))
	if err != nil {
		t.Fatalf("normalize %s: %v", name, err)
	}
	if ev == nil {
		t.Fatalf("expected event for %s", name)
	}
	return ev
}

func TestNormalize_TextMessage(t *testing.T) {
	ev := normalizeFixture(t, "text.json")

	content, ok := ev.(core.ContentEvent)
	if !ok {
		t.Fatalf("expected content event, got %T", ev)
	}
	text, ok := content.Content.(core.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", content.Content)
	}
	if text.Text != "hello!" {
		t.Fatalf("expected text hello!, got %q", text.Text)
	}
	if content.NotificationID != "102290129340398" {
		t.Fatalf("expected notification id from entry, got %q", content.NotificationID)
	}
	if content.To.EndpointID != "106540352242922" || content.To.PhoneNumber != "15550783881" {
		t.Fatalf("unexpected service: %#v", content.To)
	}
	if content.From.DisplayName != "Kerry Fisher" {
		t.Fatalf("expected display name, got %q", content.From.DisplayName)
	}
	if content.From.PhoneNumber != "541144445555" {
		t.Fatalf("expected normalized sender number, got %q", content.From.PhoneNumber)
	}
	if content.Timestamp != 1749416383 {
		t.Fatalf("expected numeric timestamp, got %d", content.Timestamp)
	}
	if content.Context != "" {
		t.Fatalf("expected empty context, got %q", content.Context)
	}
}

func TestNormalize_StatusUsesOwnIDAsContext(t *testing.T) {
	ev := normalizeFixture(t, "status.json")

	status, ok := ev.(core.StatusEvent)
	if !ok {
		t.Fatalf("expected status event, got %T", ev)
	}
	if status.Status != core.StatusDelivered {
		t.Fatalf("expected delivered, got %q", status.Status)
	}
	if status.Context != status.ID || status.ID != "wamid.STATUS1" {
		t.Fatalf("expected context to equal id, got id=%q context=%q", status.ID, status.Context)
	}
	if status.From.PhoneNumber != "16505551234" || status.From.DisplayName != "16505551234" {
		t.Fatalf("expected recipient as sender, got %#v", status.From)
	}
}

func TestNormalize_ReactionContextIsReactedMessage(t *testing.T) {
	ev := normalizeFixture(t, "reaction.json")

	reaction, ok := ev.(core.ReactionEvent)
	if !ok {
		t.Fatalf("expected reaction event, got %T", ev)
	}
	if reaction.Context != "wamid.ABC" {
		t.Fatalf("expected context wamid.ABC, got %q", reaction.Context)
	}
	if reaction.Emoji != "👍" {
		t.Fatalf("expected emoji, got %q", reaction.Emoji)
	}
}

func TestNormalize_ErrorPrefersDetails(t *testing.T) {
	ev := normalizeFixture(t, "error.json")

	failed, ok := ev.(core.ErrorEvent)
	if !ok {
		t.Fatalf("expected error event, got %T", ev)
	}
	if failed.Error.Code != 470 {
		t.Fatalf("expected code 470, got %d", failed.Error.Code)
	}
	if !strings.HasPrefix(failed.Error.Message, "Message failed to send because more than 24 hours") {
		t.Fatalf("expected error_data.details message, got %q", failed.Error.Message)
	}
	if failed.Context != "" {
		t.Fatalf("expected empty context on error event, got %q", failed.Context)
	}
}

func TestNormalize_ErrorFallsBackToMessage(t *testing.T) {
	payload := []byte(`{"entry":[{"id":"n1","changes":[{"value":{
		"metadata":{"phone_number_id":"p1","display_phone_number":"1555"},
		"statuses":[{"id":"s1","status":"failed","recipient_id":"1650","timestamp":"10",
			"errors":[{"code":131026,"message":"Receiver is incapable of receiving this message"}]}]}}]}]}`)

	ev, err := New(Options{}).Normalize(context.Background(), payload)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	failed, ok := ev.(core.ErrorEvent)
	if !ok {
		t.Fatalf("expected error event, got %T", ev)
	}
	if failed.Error.Message != "Receiver is incapable of receiving this message" {
		t.Fatalf("expected message fallback, got %q", failed.Error.Message)
	}
}

func TestNormalize_ContactsAndLocation(t *testing.T) {
	contacts := normalizeFixture(t, "contacts.json").(core.ContentEvent)
	contact, ok := contacts.Content.(core.ContactContent)
	if !ok {
		t.Fatalf("expected contact content, got %T", contacts.Content)
	}
	if contact.Name != "Barbara" || contact.Surname != "Johnson" {
		t.Fatalf("unexpected contact name: %#v", contact)
	}
	if len(contact.Numbers) != 2 || contact.Numbers[0] != "14155550123" || contact.Numbers[1] != "541144445555" {
		t.Fatalf("unexpected contact numbers: %#v", contact.Numbers)
	}

	located := normalizeFixture(t, "location.json").(core.ContentEvent)
	location, ok := located.Content.(core.LocationContent)
	if !ok {
		t.Fatalf("expected location content, got %T", located.Content)
	}
	if location.Location.Latitude != 37.483307 || location.Location.Longitude != -122.148981 {
		t.Fatalf("unexpected coordinates: %#v", location.Location)
	}
	if location.Name != "Philz Coffee" || location.URL != "https://philzcoffee.com" {
		t.Fatalf("unexpected location details: %#v", location)
	}
}

func TestNormalize_ImageCarriesReplyContext(t *testing.T) {
	ev := normalizeFixture(t, "image.json").(core.ContentEvent)

	image, ok := ev.Content.(core.ImageContent)
	if !ok {
		t.Fatalf("expected image content, got %T", ev.Content)
	}
	if image.ID != "1003383421387256" || image.Mime != "image/jpeg" {
		t.Fatalf("unexpected image: %#v", image)
	}
	if ev.Context != "wamid.ORIGINAL" {
		t.Fatalf("expected reply context, got %q", ev.Context)
	}
	media, ok := core.Media(ev.Content)
	if !ok || media.ID != image.ID {
		t.Fatalf("expected media accessor to expose image id")
	}
}

func TestNormalize_InteractiveButtonWithoutContact(t *testing.T) {
	ev := normalizeFixture(t, "interactive.json")

	interactive, ok := ev.(core.InteractiveEvent)
	if !ok {
		t.Fatalf("expected interactive event, got %T", ev)
	}
	if interactive.Button.ID != "confirm" || interactive.Button.Title != "Confirm" {
		t.Fatalf("unexpected button: %#v", interactive.Button)
	}
	if interactive.From.DisplayName != UnknownUserName {
		t.Fatalf("expected default display name, got %q", interactive.From.DisplayName)
	}
	if interactive.Context != "wamid.PROMPT" {
		t.Fatalf("expected context, got %q", interactive.Context)
	}
}

func TestNormalize_UnknownMessageTypeIsUnsupported(t *testing.T) {
	ev := normalizeFixture(t, "unsupported.json")

	unsupported, ok := ev.(core.UnsupportedEvent)
	if !ok {
		t.Fatalf("expected unsupported event, got %T", ev)
	}
	var raw map[string]any
	if err := json.Unmarshal(unsupported.Raw, &raw); err != nil {
		t.Fatalf("expected raw message json: %v", err)
	}
	if raw["type"] != "order" {
		t.Fatalf("expected raw message to be preserved, got %#v", raw)
	}
}

func TestNormalize_MessagesWinAcrossEntries(t *testing.T) {
	ev := normalizeFixture(t, "multi_entry.json")

	content, ok := ev.(core.ContentEvent)
	if !ok {
		t.Fatalf("expected message from second entry to win over status, got %T", ev)
	}
	if content.NotificationID != "WABA-MESSAGE" {
		t.Fatalf("expected notification of the message entry, got %q", content.NotificationID)
	}
}

func TestNormalize_NoActionableChange(t *testing.T) {
	normalizer := New(Options{})
	cases := map[string][]byte{
		"empty change":      loadFixture(t, "empty_change.json"),
		"empty input":       nil,
		"whitespace":        []byte("   "),
		"malformed":         []byte(`{"entry": [`),
		"array root":        []byte(`[1,2,3]`),
		"empty statuses":    []byte(`{"entry":[{"id":"n","changes":[{"value":{"statuses":[]}}]}]}`),
		"missing metadata":  []byte(`{"entry":[{"id":"n","changes":[{"value":{"messages":[{"id":"m","from":"1","type":"text"}]}}]}]}`),
		"failed no errors":  []byte(`{"entry":[{"id":"n","changes":[{"value":{"metadata":{"phone_number_id":"p"},"statuses":[{"id":"s","status":"failed","recipient_id":"1","errors":[]}]}}]}]}`),
		"unknown status":    []byte(`{"entry":[{"id":"n","changes":[{"value":{"metadata":{"phone_number_id":"p"},"statuses":[{"id":"s","status":"deleted","recipient_id":"1"}]}}]}]}`),
		"non-whatsapp json": []byte(`{"hello":"world"}`),
	}
	for name, payload := range cases {
		ev, err := normalizer.Normalize(context.Background(), payload)
		if err != nil {
			t.Fatalf("%s: expected no error, got %v", name, err)
		}
		if ev != nil {
			t.Fatalf("%s: expected no event, got %#v", name, ev)
		}
	}
}

func TestNormalize_TransformDefectIsSurfaced(t *testing.T) {
	normalizer := New(Options{
		Transformer: TransformerFunc(func(context.Context, []byte, Program) ([]byte, error) {
			return []byte(`{"type":"content","id":"m1","to":{"id":"p"},"from":{"number":"1"},"content":{"type":"sticker"}}`), nil
		}),
	})

	ev, err := normalizer.Normalize(context.Background(), []byte(`{}`))
	if err == nil {
		t.Fatalf("expected defect error")
	}
	if ev != nil {
		t.Fatalf("expected no event with defect")
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != core.ErrorNormalizerDefect {
		t.Fatalf("expected normalizer defect text code, got %v", err)
	}
}

func TestNormalize_UnknownFieldIsDefect(t *testing.T) {
	normalizer := New(Options{
		Transformer: TransformerFunc(func(context.Context, []byte, Program) ([]byte, error) {
			return []byte(`{"type":"reaction","id":"m1","to":{"id":"p"},"from":{"number":"1"},"emoji":"x","extra":true}`), nil
		}),
	})

	if _, err := normalizer.Normalize(context.Background(), []byte(`{}`)); err == nil {
		t.Fatalf("expected unknown field to be reported as defect")
	}
}

func TestNormalize_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Options{}).Normalize(ctx, loadFixture(t, "text.json"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func TestDecode_MissingSenderIsDefect(t *testing.T) {
	if _, err := Decode([]byte(`{"type":"status","id":"s","to":{"id":"p"},"status":"read"}`)); err == nil {
		t.Fatalf("expected missing sender to fail")
	}
}
