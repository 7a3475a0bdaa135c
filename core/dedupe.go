package core

import (
	"strings"
	"time"
)

// DedupeKey addresses one row of the dedupe table.
type DedupeKey struct {
	PartitionKey string
	RowKey       string
}

func (k DedupeKey) String() string {
	return k.PartitionKey + "/" + k.RowKey
}

func (k DedupeKey) Valid() bool {
	return strings.TrimSpace(k.PartitionKey) != "" && strings.TrimSpace(k.RowKey) != ""
}

// EventKey identifies one logical event: sender number plus provider event id.
func EventKey(ev Event) DedupeKey {
	h := EventHeader(ev)
	return DedupeKey{
		PartitionKey: NormalizeNumber(h.From.PhoneNumber),
		RowKey:       strings.TrimSpace(h.ID),
	}
}

// NotificationKey identifies the outer envelope an event arrived in. The
// provider fills the envelope id with the business account id, so it labels
// queue messages but cannot tell two deliveries apart.
func NotificationKey(ev Event) DedupeKey {
	h := EventHeader(ev)
	return DedupeKey{
		PartitionKey: NormalizeNumber(h.From.PhoneNumber),
		RowKey:       strings.TrimSpace(h.NotificationID),
	}
}

type DedupeRecord struct {
	Key         DedupeKey
	Status      string
	Attempts    int
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const (
	DedupeStatusProcessing = "processing"
	DedupeStatusRetryReady = "retry_ready"
	DedupeStatusCompleted  = "completed"
)
