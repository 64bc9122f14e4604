package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keeptrack/internal/core"
	"keeptrack/internal/ledger"
	"keeptrack/internal/log"
	"keeptrack/internal/remote"
	remotemem "keeptrack/internal/remote/memory"
	"keeptrack/internal/storage"
)

func sampleTx() core.Transaction {
	return core.Transaction{
		ID: "tx-1", OwnerID: "u1", Type: core.Expense, Amount: decimal.NewFromInt(12),
		Category: "Food", Date: core.NewDate(2024, 1, 10),
	}
}

type slowWriter struct{}

func (slowWriter) Insert(ctx context.Context, _ core.Transaction) error {
	<-ctx.Done()
	return ctx.Err()
}

type fakePublisher struct {
	published []core.Transaction
	err       error
}

func (f *fakePublisher) PublishTransaction(_ context.Context, tx core.Transaction) error {
	f.published = append(f.published, tx)
	return f.err
}

func TestDirectMirror(t *testing.T) {
	ctx := context.Background()
	rs := remotemem.New()
	m := NewDirectMirror(rs, 0)

	require.NoError(t, m.Mirror(ctx, sampleTx()))
	require.NoError(t, m.Mirror(ctx, sampleTx()))
	assert.Equal(t, 1, rs.Len())

	assert.ErrorIs(t, NewDirectMirror(nil, 0).Mirror(ctx, sampleTx()), remote.ErrNotConfigured)
}

func TestDirectMirror_Timeout(t *testing.T) {
	m := NewDirectMirror(slowWriter{}, 10*time.Millisecond)
	err := m.Mirror(context.Background(), sampleTx())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueueMirror(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	require.NoError(t, NewQueueMirror(pub).Mirror(ctx, sampleTx()))
	assert.Len(t, pub.published, 1)

	pub.err = errors.New("channel closed")
	assert.Error(t, NewQueueMirror(pub).Mirror(ctx, sampleTx()))
	assert.ErrorIs(t, NewQueueMirror(nil).Mirror(ctx, sampleTx()), remote.ErrNotConfigured)
}

func newProcessorFixture(t *testing.T) (*RecurringProcessor, *ledger.Sessions, storage.KV) {
	t.Helper()
	kv := storage.NewMemory()
	sessions := ledger.NewSessions(func(owner string) *ledger.Store {
		return ledger.NewStore(ledger.Options{
			Owner:  owner,
			KV:     storage.Namespace(kv, owner),
			Logger: log.Nop(),
		})
	}, false, log.Nop())
	return NewRecurringProcessor(sessions, kv, log.Nop()), sessions, kv
}

func TestRecurringProcessor_PostsDueCopies(t *testing.T) {
	ctx := context.Background()
	p, sessions, _ := newProcessorFixture(t)

	store, err := sessions.Get(ctx, "u1")
	require.NoError(t, err)
	rent, err := store.Add(ctx, core.NewTransaction{
		Type: core.Expense, Amount: decimal.NewFromInt(500), Category: "Rent",
		Date: core.NewDate(2024, 1, 5), Recurrence: core.Monthly,
	})
	require.NoError(t, err)
	_, err = store.Add(ctx, core.NewTransaction{
		Type: core.Expense, Amount: decimal.NewFromInt(5), Category: "Food",
		Date: core.NewDate(2024, 1, 5),
	})
	require.NoError(t, err)

	// same month as the original: nothing to post
	n, err := p.ProcessDue(ctx, []string{"u1"}, time.Date(2024, 1, 20, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	feb := time.Date(2024, 2, 6, 8, 0, 0, 0, time.UTC)
	n, err = p.ProcessDue(ctx, []string{"u1"}, feb)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	txs := store.Transactions()
	require.Len(t, txs, 3)
	posted := txs[2]
	assert.Equal(t, "Rent", posted.Category)
	assert.Equal(t, core.None, posted.Recurrence)
	assert.Equal(t, core.NewDate(2024, 2, 6), posted.Date)
	assert.NotEqual(t, rent.ID, posted.ID)

	// running again the same day posts nothing
	n, err = p.ProcessDue(ctx, []string{"u1"}, feb.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, store.Transactions(), 3)
}

func TestRecurringProcessor_KeepsRunsPerOwner(t *testing.T) {
	ctx := context.Background()
	p, sessions, kv := newProcessorFixture(t)

	for _, owner := range []string{"u1", "u2"} {
		s, err := sessions.Get(ctx, owner)
		require.NoError(t, err)
		_, err = s.Add(ctx, core.NewTransaction{
			Type: core.Income, Amount: decimal.NewFromInt(10), Category: "Interest",
			Date: core.NewDate(2024, 3, 1), Recurrence: core.Daily,
		})
		require.NoError(t, err)
	}

	n, err := p.ProcessDue(ctx, []string{"u1", "u2"}, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = storage.Namespace(kv, "u1").Get(ctx, storage.KeyRecurringRuns)
	assert.NoError(t, err)
	_, err = storage.Namespace(kv, "u2").Get(ctx, storage.KeyRecurringRuns)
	assert.NoError(t, err)
}

func TestRecurringProcessor_NotInitialized(t *testing.T) {
	_, err := NewRecurringProcessor(nil, nil, nil).ProcessDue(context.Background(), nil, time.Now())
	assert.Error(t, err)
}

func TestRecurringProcessor_RunStopsWithContext(t *testing.T) {
	p, _, _ := newProcessorFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := p.Run(ctx, time.Hour, func(context.Context) ([]string, error) {
		calls++
		cancel()
		return []string{core.Offline}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	assert.Error(t, p.Run(context.Background(), 0, nil))
}
