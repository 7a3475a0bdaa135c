package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-whatsapp/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DedupeStore persists the dedupe table. Claims are atomic: the insert is
// conflict-free and takeover of an expired or released claim is a single
// conditional update.
type DedupeStore struct {
	db   *bun.DB
	repo repository.Repository[*dedupeRecord]
	Now  func() time.Time
}

func NewDedupeStore(db *bun.DB) (*DedupeStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*dedupeRecord](db, dedupeHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid dedupe repository wiring: %w", err)
		}
	}
	return &DedupeStore{db: db, repo: repo}, nil
}

func (s *DedupeStore) Exists(ctx context.Context, key core.DedupeKey) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: dedupe store is not configured")
	}
	key = normalizeKey(key)
	if !key.Valid() {
		return false, invalidKey(key)
	}
	return s.db.NewSelect().
		Model((*dedupeRecord)(nil)).
		Where("?TableAlias.partition_key = ?", key.PartitionKey).
		Where("?TableAlias.row_key = ?", key.RowKey).
		Where("?TableAlias.status = ?", core.DedupeStatusCompleted).
		Exists(ctx)
}

// Upsert marks key completed whether or not a row exists yet.
func (s *DedupeStore) Upsert(ctx context.Context, key core.DedupeKey) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: dedupe store is not configured")
	}
	key = normalizeKey(key)
	if !key.Valid() {
		return invalidKey(key)
	}
	now := s.now()
	record := &dedupeRecord{
		ID:           uuid.NewString(),
		PartitionKey: key.PartitionKey,
		RowKey:       key.RowKey,
		Status:       core.DedupeStatusCompleted,
		Attempts:     1,
		CompletedAt:  &now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (partition_key, row_key) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("claim_id = NULL").
		Set("lease_expires_at = NULL").
		Set("completed_at = EXCLUDED.completed_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *DedupeStore) Get(ctx context.Context, key core.DedupeKey) (core.DedupeRecord, error) {
	if s == nil || s.repo == nil {
		return core.DedupeRecord{}, fmt.Errorf("sqlstore: dedupe store is not configured")
	}
	key = normalizeKey(key)
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("partition_key", "=", key.PartitionKey),
		repository.SelectBy("row_key", "=", key.RowKey),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.DedupeRecord{}, err
	}
	if len(records) == 0 {
		return core.DedupeRecord{}, dedupeNotFound(key)
	}
	return records[0].toDomain(), nil
}

func (s *DedupeStore) Claim(ctx context.Context, key core.DedupeKey, lease time.Duration) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, fmt.Errorf("sqlstore: dedupe store is not configured")
	}
	key = normalizeKey(key)
	if !key.Valid() {
		return "", false, invalidKey(key)
	}
	if lease <= 0 {
		lease = core.DefaultClaimLease
	}
	now := s.now()
	expiresAt := now.Add(lease)
	claimID := uuid.NewString()

	record := &dedupeRecord{
		ID:             uuid.NewString(),
		PartitionKey:   key.PartitionKey,
		RowKey:         key.RowKey,
		Status:         core.DedupeStatusProcessing,
		ClaimID:        &claimID,
		Attempts:       1,
		LeaseExpiresAt: &expiresAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	res, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (partition_key, row_key) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return "", false, err
	}
	if affected(res) == 1 {
		return claimID, true, nil
	}

	res, err = s.db.NewUpdate().
		Model((*dedupeRecord)(nil)).
		Set("status = ?", core.DedupeStatusProcessing).
		Set("claim_id = ?", claimID).
		Set("attempts = attempts + 1").
		Set("lease_expires_at = ?", expiresAt).
		Set("updated_at = ?", now).
		Where("partition_key = ?", key.PartitionKey).
		Where("row_key = ?", key.RowKey).
		Where("status <> ?", core.DedupeStatusCompleted).
		WhereGroup(" AND ", func(q *bun.UpdateQuery) *bun.UpdateQuery {
			return q.
				Where("status = ?", core.DedupeStatusRetryReady).
				WhereOr("lease_expires_at IS NULL").
				WhereOr("lease_expires_at <= ?", now)
		}).
		Exec(ctx)
	if err != nil {
		return "", false, err
	}
	if affected(res) == 1 {
		return claimID, true, nil
	}
	return "", false, nil
}

func (s *DedupeStore) Complete(ctx context.Context, claimID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: dedupe store is not configured")
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return fmt.Errorf("sqlstore: claim id is required")
	}
	now := s.now()
	_, err := s.db.NewUpdate().
		Model((*dedupeRecord)(nil)).
		Set("status = ?", core.DedupeStatusCompleted).
		Set("claim_id = NULL").
		Set("lease_expires_at = NULL").
		Set("last_error = ?", "").
		Set("completed_at = ?", now).
		Set("updated_at = ?", now).
		Where("claim_id = ?", claimID).
		Where("status = ?", core.DedupeStatusProcessing).
		Exec(ctx)
	return err
}

// Fail releases a claim so the next delivery can take it over immediately.
func (s *DedupeStore) Fail(ctx context.Context, claimID string, cause error) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: dedupe store is not configured")
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return fmt.Errorf("sqlstore: claim id is required")
	}
	lastError := ""
	if cause != nil {
		lastError = strings.TrimSpace(cause.Error())
	}
	_, err := s.db.NewUpdate().
		Model((*dedupeRecord)(nil)).
		Set("status = ?", core.DedupeStatusRetryReady).
		Set("claim_id = NULL").
		Set("lease_expires_at = NULL").
		Set("last_error = ?", lastError).
		Set("updated_at = ?", s.now()).
		Where("claim_id = ?", claimID).
		Where("status = ?", core.DedupeStatusProcessing).
		Exec(ctx)
	return err
}

func (s *DedupeStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (r *dedupeRecord) toDomain() core.DedupeRecord {
	if r == nil {
		return core.DedupeRecord{}
	}
	record := core.DedupeRecord{
		Key:       core.DedupeKey{PartitionKey: r.PartitionKey, RowKey: r.RowKey},
		Status:    r.Status,
		Attempts:  r.Attempts,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.CompletedAt != nil {
		completedAt := r.CompletedAt.UTC()
		record.CompletedAt = &completedAt
	}
	return record
}

func normalizeKey(key core.DedupeKey) core.DedupeKey {
	return core.DedupeKey{
		PartitionKey: strings.TrimSpace(key.PartitionKey),
		RowKey:       strings.TrimSpace(key.RowKey),
	}
}

func affected(res interface{ RowsAffected() (int64, error) }) int64 {
	if res == nil {
		return 0
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return rows
}
