package delivery

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-whatsapp/core"
)

const defaultClaimLease = 5 * time.Minute

type claimEntry struct {
	Key            core.DedupeKey
	Status         string
	ClaimID        string
	Attempts       int
	LeaseExpiresAt time.Time
	CompletedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// InMemoryClaimStore is a process-local dedupe table. Completed records never
// expire; processing claims do once their lease runs out.
type InMemoryClaimStore struct {
	mu      sync.Mutex
	entries map[string]claimEntry
	claims  map[string]string
	Now     func() time.Time
}

func NewInMemoryClaimStore() *InMemoryClaimStore {
	return &InMemoryClaimStore{
		entries: map[string]claimEntry{},
		claims:  map[string]string{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (s *InMemoryClaimStore) Exists(_ context.Context, key core.DedupeKey) (bool, error) {
	if s == nil {
		return false, deliveryInternal("delivery: dedupe store is nil", nil)
	}
	if !key.Valid() {
		return false, deliveryBadInput("delivery: dedupe key is required", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key.String()]
	return ok && entry.Status == core.DedupeStatusCompleted, nil
}

func (s *InMemoryClaimStore) Upsert(_ context.Context, key core.DedupeKey) error {
	if s == nil {
		return deliveryInternal("delivery: dedupe store is nil", nil)
	}
	if !key.Valid() {
		return deliveryBadInput("delivery: dedupe key is required", nil)
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key.String()]
	if !ok {
		entry = claimEntry{Key: key, CreatedAt: now}
	}
	if entry.ClaimID != "" {
		delete(s.claims, entry.ClaimID)
		entry.ClaimID = ""
	}
	entry.complete(now)
	s.entries[key.String()] = entry
	return nil
}

func (s *InMemoryClaimStore) Get(_ context.Context, key core.DedupeKey) (core.DedupeRecord, error) {
	if s == nil {
		return core.DedupeRecord{}, deliveryInternal("delivery: dedupe store is nil", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key.String()]
	if !ok {
		return core.DedupeRecord{}, dedupeNotFound(key)
	}
	return entry.record(), nil
}

func (s *InMemoryClaimStore) Claim(
	_ context.Context,
	key core.DedupeKey,
	lease time.Duration,
) (string, bool, error) {
	if s == nil {
		return "", false, deliveryInternal("delivery: dedupe store is nil", nil)
	}
	if !key.Valid() {
		return "", false, deliveryBadInput("delivery: dedupe key is required", nil)
	}
	if lease <= 0 {
		lease = defaultClaimLease
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, exists := s.entries[key.String()]
	if exists {
		switch entry.Status {
		case core.DedupeStatusCompleted:
			return "", false, nil
		case core.DedupeStatusProcessing:
			if now.Before(entry.LeaseExpiresAt) {
				return "", false, nil
			}
		}
		if entry.ClaimID != "" {
			delete(s.claims, entry.ClaimID)
		}
	} else {
		entry = claimEntry{Key: key, CreatedAt: now}
	}

	claimID := uuid.NewString()
	entry.Status = core.DedupeStatusProcessing
	entry.ClaimID = claimID
	entry.Attempts++
	entry.LeaseExpiresAt = now.Add(lease)
	entry.UpdatedAt = now
	s.entries[key.String()] = entry
	s.claims[claimID] = key.String()
	return claimID, true, nil
}

func (s *InMemoryClaimStore) Complete(_ context.Context, claimID string) error {
	return s.release(claimID, func(entry *claimEntry, now time.Time) {
		entry.complete(now)
	})
}

func (s *InMemoryClaimStore) Fail(_ context.Context, claimID string, _ error) error {
	return s.release(claimID, func(entry *claimEntry, now time.Time) {
		entry.Status = core.DedupeStatusRetryReady
		entry.LeaseExpiresAt = time.Time{}
		entry.UpdatedAt = now
	})
}

func (s *InMemoryClaimStore) release(claimID string, apply func(*claimEntry, time.Time)) error {
	if s == nil {
		return deliveryInternal("delivery: dedupe store is nil", nil)
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return deliveryBadInput("delivery: claim id is required", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.claims[claimID]
	if !ok {
		return nil
	}
	delete(s.claims, claimID)
	entry, exists := s.entries[key]
	if !exists || entry.ClaimID != claimID || entry.Status != core.DedupeStatusProcessing {
		return nil
	}
	entry.ClaimID = ""
	apply(&entry, s.now())
	s.entries[key] = entry
	return nil
}

func (s *InMemoryClaimStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (e *claimEntry) complete(now time.Time) {
	completedAt := now
	e.Status = core.DedupeStatusCompleted
	e.LeaseExpiresAt = time.Time{}
	e.CompletedAt = &completedAt
	e.UpdatedAt = now
}

func (e claimEntry) record() core.DedupeRecord {
	record := core.DedupeRecord{
		Key:       e.Key,
		Status:    e.Status,
		Attempts:  e.Attempts,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
	if e.CompletedAt != nil {
		completedAt := *e.CompletedAt
		record.CompletedAt = &completedAt
	}
	return record
}

var (
	_ core.DedupeStore   = (*InMemoryClaimStore)(nil)
	_ core.DedupeClaimer = (*InMemoryClaimStore)(nil)
	_ core.DedupeReader  = (*InMemoryClaimStore)(nil)
)
