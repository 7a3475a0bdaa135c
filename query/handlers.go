package query

import (
	"context"

	"github.com/goliatone/go-whatsapp/core"
	"github.com/goliatone/go-whatsapp/outbound"
)

// MediaResolver looks up download metadata for a media id. *outbound.Client
// implements it.
type MediaResolver interface {
	ResolveMedia(ctx context.Context, endpointID string, mediaID string) (outbound.MediaReference, error)
}

type LookupDedupeQuery struct {
	reader core.DedupeReader
}

func NewLookupDedupeQuery(reader core.DedupeReader) *LookupDedupeQuery {
	return &LookupDedupeQuery{reader: reader}
}

func (q *LookupDedupeQuery) Query(ctx context.Context, msg LookupDedupeMessage) (core.DedupeRecord, error) {
	if q == nil || q.reader == nil {
		return core.DedupeRecord{}, queryDependencyError("query: dedupe reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.DedupeRecord{}, err
	}
	return q.reader.Get(ctx, msg.Key)
}

type ResolveMediaQuery struct {
	resolver MediaResolver
}

func NewResolveMediaQuery(resolver MediaResolver) *ResolveMediaQuery {
	return &ResolveMediaQuery{resolver: resolver}
}

func (q *ResolveMediaQuery) Query(ctx context.Context, msg ResolveMediaMessage) (outbound.MediaReference, error) {
	if q == nil || q.resolver == nil {
		return outbound.MediaReference{}, queryDependencyError("query: media resolver is required")
	}
	if err := msg.Validate(); err != nil {
		return outbound.MediaReference{}, err
	}
	return q.resolver.ResolveMedia(ctx, msg.EndpointID, msg.MediaID)
}
