// Package remote defines the document store that mirrors transactions off the
// device. The local key-value store stays the source of truth for a session;
// the remote copy is queried by owner at load time and appended to after adds.
package remote

import (
	"context"
	"errors"

	"keeptrack/internal/core"
)

// ErrNotConfigured is returned by collaborators that need a remote store when none is set.
var ErrNotConfigured = errors.New("remote store not configured")

// Ports for outbound adapters.
type (
	// Reader returns every transaction stored for one owner.
	Reader interface {
		ListByOwner(ctx context.Context, owner string) ([]core.Transaction, error)
	}

	// Writer stores a single transaction. Inserting an ID that is already
	// present must succeed without creating a duplicate.
	Writer interface {
		Insert(ctx context.Context, tx core.Transaction) error
	}

	Store interface {
		Reader
		Writer
	}
)
