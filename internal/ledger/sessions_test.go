package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keeptrack/internal/core"
	"keeptrack/internal/log"
	"keeptrack/internal/storage"
)

func newTestSessions(kv storage.KV, purge bool) *Sessions {
	return NewSessions(func(owner string) *Store {
		return NewStore(Options{Owner: owner, KV: storage.Namespace(kv, owner), Logger: log.Nop()})
	}, purge, log.Nop())
}

func TestSessions_GetIsolatesOwners(t *testing.T) {
	ctx := context.Background()
	sessions := newTestSessions(storage.NewMemory(), false)

	a, err := sessions.Get(ctx, "alice")
	require.NoError(t, err)
	_, err = a.Add(ctx, lunch())
	require.NoError(t, err)

	b, err := sessions.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, b.Transactions())

	again, err := sessions.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Same(t, a, again)

	off, err := sessions.Get(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, core.Offline, off.Owner())
	assert.ElementsMatch(t, []string{"alice", "bob", core.Offline}, sessions.Owners())
}

func TestSessions_SignOutKeepsDataByDefault(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	sessions := newTestSessions(kv, false)

	s, err := sessions.Get(ctx, "alice")
	require.NoError(t, err)
	_, err = s.Add(ctx, lunch())
	require.NoError(t, err)

	sessions.SignedOut(ctx, "alice")
	assert.Empty(t, s.Transactions())

	require.NoError(t, sessions.SignedIn(ctx, "alice"))
	fresh, err := sessions.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, fresh.Transactions(), 1)
}

func TestSessions_ReopenedStoreGetsNewVersions(t *testing.T) {
	ctx := context.Background()
	sessions := newTestSessions(storage.NewMemory(), false)

	s, err := sessions.Get(ctx, "alice")
	require.NoError(t, err)
	seen := map[uint64]bool{s.Version(): true}
	_, err = s.Add(ctx, lunch())
	require.NoError(t, err)
	seen[s.Version()] = true

	sessions.SignedOut(ctx, "alice")
	require.NoError(t, sessions.SignedIn(ctx, "alice"))
	fresh, err := sessions.Get(ctx, "alice")
	require.NoError(t, err)
	assert.NotSame(t, s, fresh)
	assert.False(t, seen[fresh.Version()], "version %d reused after sign-in", fresh.Version())

	require.NoError(t, fresh.Load(ctx))
	assert.False(t, seen[fresh.Version()])
}

func TestSessions_SignOutPurges(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	sessions := newTestSessions(kv, true)

	s, err := sessions.Get(ctx, "alice")
	require.NoError(t, err)
	_, err = s.Add(ctx, lunch())
	require.NoError(t, err)

	sessions.SignedOut(ctx, "alice")
	fresh, err := sessions.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, fresh.Transactions())

	// unknown owner is ignored
	sessions.SignedOut(ctx, "nobody")
}
