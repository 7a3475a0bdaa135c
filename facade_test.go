package whatsapp

import (
	"context"
	"testing"

	"github.com/goliatone/go-command"
	"github.com/goliatone/go-whatsapp/adapters/gocommand"
	whatsappcommand "github.com/goliatone/go-whatsapp/command"
	"github.com/goliatone/go-whatsapp/core"
	"github.com/goliatone/go-whatsapp/delivery"
	"github.com/goliatone/go-whatsapp/outbound"
	whatsappquery "github.com/goliatone/go-whatsapp/query"
)

func TestNewFacade_WiresCommandsAndQueries(t *testing.T) {
	facade, err := NewFacade(&stubFacadeService{}, WithDedupeReader(delivery.NewInMemoryClaimStore()))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	commands := facade.Commands()
	if commands.SendText == nil || commands.Reply == nil || commands.React == nil || commands.MarkRead == nil {
		t.Fatalf("expected command handlers to be wired")
	}
	queries := facade.Queries()
	if queries.LookupDedupe == nil || queries.ResolveMedia == nil {
		t.Fatalf("expected query handlers to be wired")
	}
}

func TestFacade_CommandAndQueryDelegation(t *testing.T) {
	svc := &stubFacadeService{}
	store := delivery.NewInMemoryClaimStore()
	key := core.DedupeKey{PartitionKey: "16505551234", RowKey: "wamid.1"}
	if err := store.Upsert(context.Background(), key); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	facade, err := NewFacade(svc, WithDedupeReader(store))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	if err := facade.Commands().MarkRead.Execute(context.Background(), whatsappcommand.MarkReadMessage{
		EndpointID: "106540352242922",
		MessageID:  "wamid.1",
	}); err != nil {
		t.Fatalf("execute mark read command: %v", err)
	}
	if svc.lastMarkRead != "106540352242922/wamid.1" {
		t.Fatalf("unexpected mark read delegation payload %q", svc.lastMarkRead)
	}

	record, err := facade.Queries().LookupDedupe.Query(context.Background(), whatsappquery.LookupDedupeMessage{Key: key})
	if err != nil {
		t.Fatalf("query lookup dedupe: %v", err)
	}
	if record.Status != core.DedupeStatusCompleted {
		t.Fatalf("unexpected dedupe record: %#v", record)
	}
}

func TestFacade_RegisterExposesCommandsOnDispatcher(t *testing.T) {
	svc := &stubFacadeService{}
	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	adapter := gocommand.NewRegistryAdapter(command.NewRegistry())
	defer adapter.Close()
	if err := facade.Register(adapter); err != nil {
		t.Fatalf("register facade: %v", err)
	}

	result, ok, err := gocommand.DispatchWithResult[whatsappcommand.SendTextMessage, whatsappcommand.SendResult](
		context.Background(),
		whatsappcommand.SendTextMessage{EndpointID: "106540352242922", To: "16505551234", Text: "hi"},
	)
	if err != nil {
		t.Fatalf("dispatch send text: %v", err)
	}
	if !ok || result.MessageID != "wamid.SENT" {
		t.Fatalf("unexpected send result: %#v", result)
	}

	media, err := gocommand.Query[whatsappquery.ResolveMediaMessage, outbound.MediaReference](
		context.Background(),
		whatsappquery.ResolveMediaMessage{EndpointID: "106540352242922", MediaID: "m1"},
	)
	if err != nil {
		t.Fatalf("query media: %v", err)
	}
	if media.ID != "m1" {
		t.Fatalf("unexpected media reference: %#v", media)
	}
}

func TestNewFacade_RequiresService(t *testing.T) {
	facade, err := NewFacade(nil)
	if err == nil {
		t.Fatalf("expected nil service error")
	}
	if facade != nil {
		t.Fatalf("expected nil facade on error")
	}
}

type stubFacadeService struct {
	lastMarkRead string
}

func (s *stubFacadeService) SendText(context.Context, string, string, string) (string, error) {
	return "wamid.SENT", nil
}

func (s *stubFacadeService) Reply(context.Context, core.Event, string) (string, error) {
	return "wamid.REPLY", nil
}

func (s *stubFacadeService) ReplyButtons(context.Context, core.Event, string, ...core.Button) (string, error) {
	return "wamid.BUTTONS", nil
}

func (s *stubFacadeService) React(context.Context, core.Event, string) (string, error) {
	return "wamid.REACT", nil
}

func (s *stubFacadeService) MarkRead(_ context.Context, endpointID string, messageID string) error {
	s.lastMarkRead = endpointID + "/" + messageID
	return nil
}

func (s *stubFacadeService) ResolveMedia(_ context.Context, _ string, mediaID string) (outbound.MediaReference, error) {
	return outbound.MediaReference{ID: mediaID, URL: "https://lookaside.example/" + mediaID}, nil
}
