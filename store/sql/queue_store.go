package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-whatsapp/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	queueStatusPending = "pending"
	queueStatusLeased  = "leased"
	queueStatusDead    = "dead"
)

// QueueStore is a table-backed at-least-once queue. A leased message that is
// not settled becomes visible again after VisibilityTimeout, and a message
// handed out MaxDeliveries times moves to the poison queue on the next pass.
type QueueStore struct {
	db     *bun.DB
	repo   repository.Repository[*queueMessageRecord]
	config core.QueueConfig
	Now    func() time.Time
}

func NewQueueStore(db *bun.DB, config core.QueueConfig) (*QueueStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	config.Name = strings.TrimSpace(config.Name)
	if config.Name == "" {
		config.Name = core.DefaultQueueName
	}
	if config.MaxDeliveries <= 0 {
		config.MaxDeliveries = core.DefaultMaxDeliveries
	}
	if config.VisibilityTimeout <= 0 {
		config.VisibilityTimeout = core.DefaultVisibilityTimeout
	}
	repo := repository.NewRepository[*queueMessageRecord](db, queueMessageHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid queue repository wiring: %w", err)
		}
	}
	return &QueueStore{db: db, repo: repo, config: config}, nil
}

func (s *QueueStore) Name() string {
	return s.config.Name
}

func (s *QueueStore) PoisonName() string {
	return s.config.PoisonName()
}

func (s *QueueStore) Enqueue(ctx context.Context, msg *job.ExecutionMessage) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: queue store is not configured")
	}
	if msg == nil {
		return fmt.Errorf("sqlstore: execution message is required")
	}
	now := s.now()
	record := &queueMessageRecord{
		ID:             uuid.NewString(),
		QueueName:      s.config.Name,
		JobID:          strings.TrimSpace(msg.JobID),
		ScriptPath:     strings.TrimSpace(msg.ScriptPath),
		Parameters:     copyAnyMap(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    strings.TrimSpace(string(msg.DedupPolicy)),
		Status:         queueStatusPending,
		VisibleAt:      now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	_, err := s.repo.Create(ctx, record)
	return err
}

// Dequeue leases the oldest visible message. It returns core.ErrJobQueueEmpty
// when nothing is visible.
func (s *QueueStore) Dequeue(ctx context.Context) (queue.Delivery, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: queue store is not configured")
	}
	now := s.now()
	leaseID := uuid.NewString()
	var records []queueMessageRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewUpdate().
			Model((*queueMessageRecord)(nil)).
			Set("queue_name = ?", s.config.PoisonName()).
			Set("status = ?", queueStatusDead).
			Set("lease_id = NULL").
			Set("last_error = ?", "max deliveries reached").
			Set("updated_at = ?", now).
			Where("queue_name = ?", s.config.Name).
			Where("status IN (?, ?)", queueStatusPending, queueStatusLeased).
			Where("visible_at <= ?", now).
			Where("dequeue_count >= ?", s.config.MaxDeliveries).
			Exec(ctx); err != nil {
			return err
		}

		query := `
WITH next AS (
	SELECT id
	FROM whatsapp_queue_messages
	WHERE queue_name = ?
	  AND status IN (?, ?)
	  AND visible_at <= ?
	ORDER BY visible_at ASC, created_at ASC
	LIMIT 1
)
UPDATE whatsapp_queue_messages
SET status = ?, lease_id = ?, dequeue_count = dequeue_count + 1, visible_at = ?, updated_at = ?
WHERE id IN (SELECT id FROM next)
RETURNING
	id,
	queue_name,
	job_id,
	script_path,
	parameters,
	idempotency_key,
	dedup_policy,
	status,
	dequeue_count,
	visible_at,
	lease_id,
	last_error,
	created_at,
	updated_at
`
		return tx.NewRaw(
			query,
			s.config.Name,
			queueStatusPending,
			queueStatusLeased,
			now,
			queueStatusLeased,
			leaseID,
			now.Add(s.config.VisibilityTimeout),
			now,
		).Scan(ctx, &records)
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, core.ErrJobQueueEmpty
	}
	record := records[0]
	return &storeDelivery{
		store:   s,
		id:      record.ID,
		leaseID: leaseID,
		attempt: record.DequeueCount,
		message: record.toMessage(),
	}, nil
}

// Len counts live messages, leased ones included.
func (s *QueueStore) Len(ctx context.Context) (int, error) {
	return s.countIn(ctx, s.config.Name)
}

func (s *QueueStore) DeadLetterCount(ctx context.Context) (int, error) {
	return s.countIn(ctx, s.config.PoisonName())
}

func (s *QueueStore) DeadLetters(ctx context.Context, limit int) ([]*job.ExecutionMessage, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: queue store is not configured")
	}
	if limit <= 0 {
		limit = 100
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("queue_name", "=", s.config.PoisonName()),
		repository.OrderBy("updated_at ASC"),
		repository.SelectPaginate(limit, 0),
	)
	if err != nil {
		return nil, err
	}
	out := make([]*job.ExecutionMessage, 0, len(records))
	for _, record := range records {
		out = append(out, record.toMessage())
	}
	return out, nil
}

func (s *QueueStore) countIn(ctx context.Context, name string) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: queue store is not configured")
	}
	return s.db.NewSelect().
		Model((*queueMessageRecord)(nil)).
		Where("?TableAlias.queue_name = ?", name).
		Count(ctx)
}

func (s *QueueStore) settle(ctx context.Context, d *storeDelivery, apply func(q *bun.UpdateQuery) *bun.UpdateQuery) error {
	res, err := apply(s.db.NewUpdate().Model((*queueMessageRecord)(nil))).
		Set("lease_id = NULL").
		Set("updated_at = ?", s.now()).
		Where("id = ?", d.id).
		Where("lease_id = ?", d.leaseID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected(res) == 0 {
		return fmt.Errorf("sqlstore: lease for message %s has expired", d.id)
	}
	return nil
}

func (s *QueueStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

type storeDelivery struct {
	store   *QueueStore
	id      string
	leaseID string
	attempt int
	message *job.ExecutionMessage
}

func (d *storeDelivery) Message() *job.ExecutionMessage {
	return d.message
}

func (d *storeDelivery) Attempt() int {
	return d.attempt
}

func (d *storeDelivery) Ack(ctx context.Context) error {
	res, err := d.store.db.NewDelete().
		Model((*queueMessageRecord)(nil)).
		Where("id = ?", d.id).
		Where("lease_id = ?", d.leaseID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected(res) == 0 {
		return fmt.Errorf("sqlstore: lease for message %s has expired", d.id)
	}
	return nil
}

func (d *storeDelivery) Nack(ctx context.Context, opts queue.NackOptions) error {
	reason := strings.TrimSpace(opts.Reason)
	if opts.DeadLetter {
		return d.store.settle(ctx, d, func(q *bun.UpdateQuery) *bun.UpdateQuery {
			return q.
				Set("queue_name = ?", d.store.config.PoisonName()).
				Set("status = ?", queueStatusDead).
				Set("last_error = ?", reason)
		})
	}
	delay := opts.Delay
	if delay < 0 {
		delay = 0
	}
	return d.store.settle(ctx, d, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.
			Set("status = ?", queueStatusPending).
			Set("visible_at = ?", d.store.now().Add(delay)).
			Set("last_error = ?", reason)
	})
}

func (r queueMessageRecord) toMessage() *job.ExecutionMessage {
	return &job.ExecutionMessage{
		JobID:          r.JobID,
		ScriptPath:     r.ScriptPath,
		Parameters:     copyAnyMap(r.Parameters),
		IdempotencyKey: r.IdempotencyKey,
		DedupPolicy:    job.DeduplicationPolicy(r.DedupPolicy),
	}
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
