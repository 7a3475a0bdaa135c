package whatsapp

import (
	"fmt"

	"github.com/goliatone/go-whatsapp/adapters/gocommand"
	whatsappcommand "github.com/goliatone/go-whatsapp/command"
	"github.com/goliatone/go-whatsapp/core"
	whatsappquery "github.com/goliatone/go-whatsapp/query"
)

// CommandQueryService is the outbound surface the facade needs.
// *outbound.Client implements it.
type CommandQueryService interface {
	whatsappcommand.OutboundService
	whatsappquery.MediaResolver
}

type Commands struct {
	SendText *whatsappcommand.SendTextCommand
	Reply    *whatsappcommand.ReplyCommand
	React    *whatsappcommand.ReactCommand
	MarkRead *whatsappcommand.MarkReadCommand
}

type Queries struct {
	LookupDedupe *whatsappquery.LookupDedupeQuery
	ResolveMedia *whatsappquery.ResolveMediaQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
	// lookups is false when no dedupe reader was supplied.
	lookups bool
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	dedupeReader core.DedupeReader
}

func WithDedupeReader(reader core.DedupeReader) FacadeOption {
	return func(options *facadeOptions) {
		options.dedupeReader = reader
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("whatsapp: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	facade := &Facade{service: service, lookups: cfg.dedupeReader != nil}
	facade.commands = Commands{
		SendText: whatsappcommand.NewSendTextCommand(service),
		Reply:    whatsappcommand.NewReplyCommand(service),
		React:    whatsappcommand.NewReactCommand(service),
		MarkRead: whatsappcommand.NewMarkReadCommand(service),
	}
	facade.queries = Queries{
		LookupDedupe: whatsappquery.NewLookupDedupeQuery(cfg.dedupeReader),
		ResolveMedia: whatsappquery.NewResolveMediaQuery(service),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

// Register subscribes every command and query on the go-command dispatcher
// and records them in the adapter's registry. LookupDedupe is skipped when
// no dedupe reader was configured.
func (f *Facade) Register(adapter *gocommand.RegistryAdapter) error {
	if f == nil {
		return fmt.Errorf("whatsapp: facade is nil")
	}
	if adapter == nil {
		return fmt.Errorf("whatsapp: registry adapter is required")
	}
	if _, err := gocommand.RegisterAndSubscribe(adapter, f.commands.SendText); err != nil {
		return err
	}
	if _, err := gocommand.RegisterAndSubscribe(adapter, f.commands.Reply); err != nil {
		return err
	}
	if _, err := gocommand.RegisterAndSubscribe(adapter, f.commands.React); err != nil {
		return err
	}
	if _, err := gocommand.RegisterAndSubscribe(adapter, f.commands.MarkRead); err != nil {
		return err
	}
	if _, err := gocommand.RegisterAndSubscribeQuery(adapter, f.queries.ResolveMedia); err != nil {
		return err
	}
	if f.lookups {
		if _, err := gocommand.RegisterAndSubscribeQuery(adapter, f.queries.LookupDedupe); err != nil {
			return err
		}
	}
	return nil
}
