package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

func dedupeHandlers() repository.ModelHandlers[*dedupeRecord] {
	return repository.ModelHandlers[*dedupeRecord]{
		NewRecord: func() *dedupeRecord {
			return &dedupeRecord{}
		},
		GetID: func(record *dedupeRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *dedupeRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *dedupeRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func queueMessageHandlers() repository.ModelHandlers[*queueMessageRecord] {
	return repository.ModelHandlers[*queueMessageRecord]{
		NewRecord: func() *queueMessageRecord {
			return &queueMessageRecord{}
		},
		GetID: func(record *queueMessageRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *queueMessageRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *queueMessageRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
