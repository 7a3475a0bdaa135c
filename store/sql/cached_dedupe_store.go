package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-whatsapp/core"
)

const dedupeCacheKeyPrefix = "go-whatsapp::dedupe::v1"

// ClaimingDedupeStore is the full dedupe contract a cache can sit in front of.
type ClaimingDedupeStore interface {
	core.DedupeStore
	core.DedupeClaimer
	core.DedupeReader
}

// CachedDedupeStore answers Exists from cache for completed keys. Only
// positive answers are cached: a completed record never reverts, so a hit can
// not go stale.
type CachedDedupeStore struct {
	base  ClaimingDedupeStore
	cache repositorycache.CacheService
}

var errNotCompleted = errors.New("sqlstore: dedupe key not completed")

func NewCachedDedupeStore(base ClaimingDedupeStore, cacheService repositorycache.CacheService) (*CachedDedupeStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base dedupe store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: dedupe cache service is required")
	}
	return &CachedDedupeStore{base: base, cache: cacheService}, nil
}

// DedupeCacheKey returns go-whatsapp::dedupe::v1::<partition>::<row> with each
// segment URL-path escaped.
func DedupeCacheKey(key core.DedupeKey) (string, error) {
	key = normalizeKey(key)
	if !key.Valid() {
		return "", invalidKey(key)
	}
	return strings.Join([]string{
		dedupeCacheKeyPrefix,
		url.PathEscape(key.PartitionKey),
		url.PathEscape(key.RowKey),
	}, "::"), nil
}

func (s *CachedDedupeStore) Exists(ctx context.Context, key core.DedupeKey) (bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return false, fmt.Errorf("sqlstore: cached dedupe store is not configured")
	}
	cacheKey, err := DedupeCacheKey(key)
	if err != nil {
		return false, err
	}
	completed, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (bool, error) {
		exists, fetchErr := s.base.Exists(ctx, key)
		if fetchErr != nil {
			return false, fetchErr
		}
		if !exists {
			return false, errNotCompleted
		}
		return true, nil
	})
	if errors.Is(err, errNotCompleted) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return completed, nil
}

func (s *CachedDedupeStore) Upsert(ctx context.Context, key core.DedupeKey) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached dedupe store is not configured")
	}
	if err := s.base.Upsert(ctx, key); err != nil {
		return err
	}
	cacheKey, err := DedupeCacheKey(key)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

func (s *CachedDedupeStore) Get(ctx context.Context, key core.DedupeKey) (core.DedupeRecord, error) {
	return s.base.Get(ctx, key)
}

func (s *CachedDedupeStore) Claim(ctx context.Context, key core.DedupeKey, lease time.Duration) (string, bool, error) {
	return s.base.Claim(ctx, key, lease)
}

func (s *CachedDedupeStore) Complete(ctx context.Context, claimID string) error {
	return s.base.Complete(ctx, claimID)
}

func (s *CachedDedupeStore) Fail(ctx context.Context, claimID string, cause error) error {
	return s.base.Fail(ctx, claimID, cause)
}
