package ledger

import (
	"context"
	"sync"

	"keeptrack/internal/core"
	"keeptrack/internal/log"
)

// Sessions keeps one Store per owner, created on first use.
type Sessions struct {
	mu             sync.Mutex
	stores         map[string]*Store
	newStore       func(owner string) *Store
	purgeOnSignOut bool
	logger         *log.Logger
}

// NewSessions returns a registry building stores with newStore. When
// purgeOnSignOut is set, signing out also deletes the owner's persisted
// transactions.
func NewSessions(newStore func(owner string) *Store, purgeOnSignOut bool, logger *log.Logger) *Sessions {
	return &Sessions{
		stores:         make(map[string]*Store),
		newStore:       newStore,
		purgeOnSignOut: purgeOnSignOut,
		logger:         log.Or(logger).WithComponent(log.ComponentLedger),
	}
}

// Get returns the loaded store of owner. An empty owner means offline.
func (s *Sessions) Get(ctx context.Context, owner string) (*Store, error) {
	if owner == "" {
		owner = core.Offline
	}
	s.mu.Lock()
	store, ok := s.stores[owner]
	if !ok {
		store = s.newStore(owner)
		s.stores[owner] = store
	}
	s.mu.Unlock()

	if err := store.EnsureLoaded(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// Owners lists the owners with an open store.
func (s *Sessions) Owners() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	owners := make([]string, 0, len(s.stores))
	for o := range s.stores {
		owners = append(owners, o)
	}
	return owners
}

// SignedIn opens the owner's store, reloading it when it was already open so
// the remote copy is pulled in.
func (s *Sessions) SignedIn(ctx context.Context, owner string) error {
	s.mu.Lock()
	store, open := s.stores[owner]
	s.mu.Unlock()
	if !open {
		_, err := s.Get(ctx, owner)
		return err
	}
	return store.Load(ctx)
}

// SignedOut clears the owner's in-memory state and closes the session.
func (s *Sessions) SignedOut(ctx context.Context, owner string) {
	s.mu.Lock()
	store, ok := s.stores[owner]
	delete(s.stores, owner)
	s.mu.Unlock()
	if !ok {
		return
	}

	store.Reset()
	if s.purgeOnSignOut {
		if err := store.Purge(ctx); err != nil {
			s.logger.ErrorOp(ctx, "Purge on sign-out failed", log.OpSignOut, err, log.FieldOwner, owner)
			return
		}
	}
	s.logger.InfoContext(ctx, "Session closed",
		log.FieldOperation, log.OpSignOut,
		log.FieldOwner, owner,
		"purged", s.purgeOnSignOut)
}
