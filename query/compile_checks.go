package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-whatsapp/core"
	"github.com/goliatone/go-whatsapp/outbound"
)

var (
	_ gocmd.Querier[LookupDedupeMessage, core.DedupeRecord]       = (*LookupDedupeQuery)(nil)
	_ gocmd.Querier[ResolveMediaMessage, outbound.MediaReference] = (*ResolveMediaQuery)(nil)
	_ MediaResolver                                               = (*outbound.Client)(nil)
)
