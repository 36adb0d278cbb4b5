package journal

import (
	"context"
	"fmt"
	"sync"

	"github.com/trebuchet-org/treb-plan/internal/domain"
	"github.com/trebuchet-org/treb-plan/internal/domain/config"
	"github.com/trebuchet-org/treb-plan/internal/usecase"
)

// Opener creates the backing store of a LazyStore
type Opener func(ctx context.Context) (usecase.JournalStore, func() error, error)

// LazyStore opens its backing store on first use, so commands that never touch
// a journal do not need the database to be reachable.
type LazyStore struct {
	open Opener

	mu    sync.Mutex
	store usecase.JournalStore
	close func() error
}

// NewLazyStore creates a store that calls open on first use
func NewLazyStore(open Opener) *LazyStore {
	return &LazyStore{open: open}
}

// NewStore selects the journal backend configured in treb.toml
func NewStore(cfg *config.RuntimeConfig) (*LazyStore, error) {
	switch cfg.Journal.Backend {
	case config.JournalBackendFile, "":
		return NewLazyStore(func(context.Context) (usecase.JournalStore, func() error, error) {
			return NewFileStore(cfg), nil, nil
		}), nil
	case config.JournalBackendPostgres:
		dsn := cfg.Journal.DSN
		return NewLazyStore(func(ctx context.Context) (usecase.JournalStore, func() error, error) {
			store, err := OpenPostgresStore(ctx, dsn)
			if err != nil {
				return nil, nil, err
			}
			return store, store.Close, nil
		}), nil
	default:
		return nil, fmt.Errorf("unknown journal backend %q", cfg.Journal.Backend)
	}
}

func (s *LazyStore) backend(ctx context.Context) (usecase.JournalStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store != nil {
		return s.store, nil
	}
	store, closeFn, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	s.store, s.close = store, closeFn
	return store, nil
}

// Lock implements usecase.JournalStore
func (s *LazyStore) Lock(ctx context.Context, network string) (usecase.JournalLock, error) {
	store, err := s.backend(ctx)
	if err != nil {
		return nil, err
	}
	return store.Lock(ctx, network)
}

// Load implements usecase.JournalStore
func (s *LazyStore) Load(ctx context.Context, network string) (*domain.Journal, error) {
	store, err := s.backend(ctx)
	if err != nil {
		return nil, err
	}
	return store.Load(ctx, network)
}

// Persist implements usecase.JournalStore
func (s *LazyStore) Persist(ctx context.Context, j *domain.Journal) error {
	store, err := s.backend(ctx)
	if err != nil {
		return err
	}
	return store.Persist(ctx, j)
}

// Close releases the backing store if it was opened
func (s *LazyStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.close == nil {
		return nil
	}
	err := s.close()
	s.store, s.close = nil, nil
	return err
}

var _ usecase.JournalStore = (*LazyStore)(nil)
