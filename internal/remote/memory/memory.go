package memory

import (
	"context"
	"slices"
	"sync"

	"keeptrack/internal/core"
	"keeptrack/internal/remote"
)

var _ remote.Store = (*Store)(nil)

// Store keeps mirrored transactions in memory, grouped by owner.
type Store struct {
	mu      sync.Mutex
	byOwner map[string][]core.Transaction
	ids     map[string]struct{}
}

func New(seed ...core.Transaction) *Store {
	s := &Store{
		byOwner: make(map[string][]core.Transaction),
		ids:     make(map[string]struct{}),
	}
	for _, tx := range seed {
		s.insert(tx)
	}
	return s
}

func (s *Store) ListByOwner(_ context.Context, owner string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.byOwner[owner]), nil
}

func (s *Store) Insert(_ context.Context, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insert(tx)
	return nil
}

func (s *Store) insert(tx core.Transaction) {
	if _, ok := s.ids[tx.ID]; ok {
		return
	}
	s.ids[tx.ID] = struct{}{}
	s.byOwner[tx.OwnerID] = append(s.byOwner[tx.OwnerID], tx)
}

// Len returns the number of stored transactions across owners.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}
