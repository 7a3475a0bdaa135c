package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type dedupeRecord struct {
	bun.BaseModel `bun:"table:whatsapp_dedupe,alias:wd"`

	ID             string     `bun:"id,pk"`
	PartitionKey   string     `bun:"partition_key,notnull"`
	RowKey         string     `bun:"row_key,notnull"`
	Status         string     `bun:"status,notnull"`
	ClaimID        *string    `bun:"claim_id"`
	Attempts       int        `bun:"attempts,notnull"`
	LeaseExpiresAt *time.Time `bun:"lease_expires_at,nullzero"`
	LastError      string     `bun:"last_error,notnull"`
	CompletedAt    *time.Time `bun:"completed_at,nullzero"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type queueMessageRecord struct {
	bun.BaseModel `bun:"table:whatsapp_queue_messages,alias:wq"`

	ID             string         `bun:"id,pk"`
	QueueName      string         `bun:"queue_name,notnull"`
	JobID          string         `bun:"job_id,notnull"`
	ScriptPath     string         `bun:"script_path,notnull"`
	Parameters     map[string]any `bun:"parameters,type:jsonb,notnull"`
	IdempotencyKey string         `bun:"idempotency_key,notnull"`
	DedupPolicy    string         `bun:"dedup_policy,notnull"`
	Status         string         `bun:"status,notnull"`
	DequeueCount   int            `bun:"dequeue_count,notnull"`
	VisibleAt      time.Time      `bun:"visible_at,notnull"`
	LeaseID        *string        `bun:"lease_id"`
	LastError      string         `bun:"last_error,notnull"`
	CreatedAt      time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
