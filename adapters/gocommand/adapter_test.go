package gocommand

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-command"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

type okMessage struct{}

func (okMessage) Type() string { return "whatsapp.command.ok" }

type invalidMessage struct{}

func (invalidMessage) Type() string { return "" }

type failingMessage struct{}

func (failingMessage) Type() string { return "whatsapp.command.fail" }

func (failingMessage) Validate() error { return errors.New("invalid payload") }

type dispatchMessage struct {
	ID string
}

func (dispatchMessage) Type() string { return "whatsapp.command.test" }

type resultMessage struct {
	Text string
}

func (resultMessage) Type() string { return "whatsapp.command.result" }

type queueMessage struct{}

func (queueMessage) Type() string { return "whatsapp.command.queue" }

type echoQuery struct {
	Text string
}

func (echoQuery) Type() string { return "whatsapp.query.echo" }

func TestValidateMessageContract(t *testing.T) {
	if err := ValidateMessageContract(okMessage{}); err != nil {
		t.Fatalf("expected valid message, got %v", err)
	}
	if err := ValidateMessageContract(invalidMessage{}); err == nil {
		t.Fatalf("expected empty type to fail contract validation")
	}
	if err := ValidateMessageContract(failingMessage{}); err == nil {
		t.Fatalf("expected Validate() failure to bubble")
	}
}

func TestRegistryAndDispatchWiring(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	defer adapter.Close()
	executed := 0
	customResolverCalled := 0

	cmd := command.CommandFunc[dispatchMessage](func(context.Context, dispatchMessage) error {
		executed++
		return nil
	})

	if _, err := RegisterAndSubscribe(adapter, cmd); err != nil {
		t.Fatalf("register and subscribe: %v", err)
	}
	if err := adapter.AddResolver("custom", func(any, command.CommandMeta, *command.Registry) error {
		customResolverCalled++
		return nil
	}); err != nil {
		t.Fatalf("add resolver: %v", err)
	}
	if !adapter.HasResolver("custom") {
		t.Fatalf("expected custom resolver to be registered")
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}
	if customResolverCalled == 0 {
		t.Fatalf("expected resolver hook to run during initialization")
	}

	if err := Dispatch(context.Background(), dispatchMessage{ID: "m1"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if executed != 1 {
		t.Fatalf("expected command execution count=1, got %d", executed)
	}
}

func TestDispatchWithResult_ReturnsStoredValue(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	defer adapter.Close()

	cmd := command.CommandFunc[resultMessage](func(ctx context.Context, msg resultMessage) error {
		if collector := command.ResultFromContext[string](ctx); collector != nil {
			collector.Store("wamid." + msg.Text)
		}
		return nil
	})
	if _, err := RegisterAndSubscribe(adapter, cmd); err != nil {
		t.Fatalf("register and subscribe: %v", err)
	}

	id, ok, err := DispatchWithResult[resultMessage, string](context.Background(), resultMessage{Text: "OUT"})
	if err != nil {
		t.Fatalf("dispatch with result: %v", err)
	}
	if !ok || id != "wamid.OUT" {
		t.Fatalf("expected stored result, got %q (%v)", id, ok)
	}
}

func TestRegisterAndSubscribeQuery(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	defer adapter.Close()

	qry := command.QueryFunc[echoQuery, string](func(_ context.Context, msg echoQuery) (string, error) {
		return msg.Text, nil
	})
	if _, err := RegisterAndSubscribeQuery(adapter, qry); err != nil {
		t.Fatalf("register query: %v", err)
	}
	out, err := Query[echoQuery, string](context.Background(), echoQuery{Text: "ping"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if out != "ping" {
		t.Fatalf("expected echo, got %q", out)
	}
}

func TestQueueResolverHookWiring(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	queueRegistry := jobqueuecommand.NewRegistry()

	cmd := command.CommandFunc[queueMessage](func(context.Context, queueMessage) error { return nil })

	if err := adapter.AddQueueResolver("queue", queueRegistry); err != nil {
		t.Fatalf("add queue resolver: %v", err)
	}
	if err := adapter.RegisterCommand(cmd); err != nil {
		t.Fatalf("register command: %v", err)
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	if _, ok := queueRegistry.Get("whatsapp.command.queue"); !ok {
		t.Fatalf("expected command to be mirrored into queue registry")
	}
}

func TestRegistryAdapter_NilSafety(t *testing.T) {
	var adapter *RegistryAdapter
	if err := adapter.RegisterCommand(nil); err == nil {
		t.Fatalf("expected error for nil adapter")
	}
	if adapter.HasResolver("x") {
		t.Fatalf("expected nil adapter to report no resolvers")
	}
	adapter.Close()
}
