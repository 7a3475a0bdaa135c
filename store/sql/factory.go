package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-whatsapp/core"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db *bun.DB

	queueConfig core.QueueConfig
	cache       repositorycache.CacheService

	dedupeStore *DedupeStore
	queueStore  *QueueStore
}

type FactoryOption func(*RepositoryFactory)

func WithQueueConfig(config core.QueueConfig) FactoryOption {
	return func(f *RepositoryFactory) {
		f.queueConfig = config
	}
}

// WithDedupeCache puts a read-through cache in front of Exists.
func WithDedupeCache(cacheService repositorycache.CacheService) FactoryOption {
	return func(f *RepositoryFactory) {
		f.cache = cacheService
	}
}

func NewRepositoryFactory(opts ...FactoryOption) *RepositoryFactory {
	factory := &RepositoryFactory{}
	for _, opt := range opts {
		if opt != nil {
			opt(factory)
		}
	}
	return factory
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) error {
	if f == nil {
		return fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return err
		}
		f.db = db
	}
	if f.dedupeStore != nil && f.queueStore != nil {
		return nil
	}
	return f.initStores()
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) DedupeStore() *DedupeStore {
	if f == nil {
		return nil
	}
	return f.dedupeStore
}

// Dedupe returns the store the delivery coordinator should use, cached when
// a cache service was configured.
func (f *RepositoryFactory) Dedupe() (ClaimingDedupeStore, error) {
	if f == nil || f.dedupeStore == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is not built")
	}
	if f.cache == nil {
		return f.dedupeStore, nil
	}
	return NewCachedDedupeStore(f.dedupeStore, f.cache)
}

func (f *RepositoryFactory) QueueStore() *QueueStore {
	if f == nil {
		return nil
	}
	return f.queueStore
}

func (f *RepositoryFactory) initStores() error {
	dedupeStore, err := NewDedupeStore(f.db)
	if err != nil {
		return err
	}
	f.dedupeStore = dedupeStore
	queueStore, err := NewQueueStore(f.db, f.queueConfig)
	if err != nil {
		return err
	}
	f.queueStore = queueStore
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
