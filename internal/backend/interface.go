package backend

import (
	"context"
	"errors"

	"keeptrack/internal/ledger"
	"keeptrack/internal/remote"
	"keeptrack/internal/storage"
)

// CleanupFunc releases a resource opened by the factory.
type CleanupFunc func() error

// Backend is the set of collaborators the ledger is wired to.
type Backend struct {
	// KV is the root local store. Owners get a namespace of it.
	KV storage.KV
	// Remote is nil when no remote store is configured.
	Remote remote.Store
	// Mirror is nil when new transactions are not forwarded.
	Mirror ledger.Mirror

	cleanups []CleanupFunc
}

func (b *Backend) addCleanup(fn CleanupFunc) {
	b.cleanups = append(b.cleanups, fn)
}

// Close runs the cleanups in reverse order of opening.
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.cleanups) - 1; i >= 0; i-- {
		if err := b.cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.cleanups = nil
	return errors.Join(errs...)
}

// RemoteReader returns Remote as a reader, or nil.
func (b *Backend) RemoteReader() remote.Reader {
	if b.Remote == nil {
		return nil
	}
	return b.Remote
}

type pinger interface {
	Ping(ctx context.Context) error
}

// ReadyChecks returns a probe for every collaborator that can be pinged.
func (b *Backend) ReadyChecks() map[string]func(context.Context) error {
	checks := make(map[string]func(context.Context) error)
	if p, ok := b.KV.(pinger); ok {
		checks["storage"] = p.Ping
	}
	if p, ok := b.Remote.(pinger); ok {
		checks["remote"] = p.Ping
	}
	return checks
}
