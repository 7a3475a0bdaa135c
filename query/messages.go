package query

import (
	"strings"

	"github.com/goliatone/go-whatsapp/core"
)

const (
	TypeLookupDedupe = "whatsapp.query.dedupe.lookup"
	TypeResolveMedia = "whatsapp.query.media.resolve"
)

type LookupDedupeMessage struct {
	Key core.DedupeKey
}

func (LookupDedupeMessage) Type() string { return TypeLookupDedupe }

func (m LookupDedupeMessage) Validate() error {
	if strings.TrimSpace(m.Key.PartitionKey) == "" {
		return queryValidationError("partition_key", "partition key is required")
	}
	if strings.TrimSpace(m.Key.RowKey) == "" {
		return queryValidationError("row_key", "row key is required")
	}
	return nil
}

type ResolveMediaMessage struct {
	EndpointID string
	MediaID    string
}

func (ResolveMediaMessage) Type() string { return TypeResolveMedia }

func (m ResolveMediaMessage) Validate() error {
	if strings.TrimSpace(m.EndpointID) == "" {
		return queryValidationError("endpoint_id", "endpoint id is required")
	}
	if strings.TrimSpace(m.MediaID) == "" {
		return queryValidationError("media_id", "media id is required")
	}
	return nil
}
