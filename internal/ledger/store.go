// Package ledger owns the transaction and budget lists of one identity and
// keeps them mirrored to local key-value storage. Each mutation rewrites the
// whole persisted list for the key it touches.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"keeptrack/internal/core"
	"keeptrack/internal/log"
	"keeptrack/internal/remote"
	"keeptrack/internal/storage"
)

// ErrInvalidCurrency is returned for an empty or oversized currency symbol.
var ErrInvalidCurrency = errors.New("invalid currency symbol")

const maxCurrencyLen = 8

// versions is shared by all stores so a version number is never reused,
// not even by a store reopened for the same owner.
var versions atomic.Uint64

// Mirror forwards a newly added transaction to the remote store.
type Mirror interface {
	Mirror(ctx context.Context, tx core.Transaction) error
}

// Options wires a Store to its collaborators. KV is required; Remote and
// Mirror are optional.
type Options struct {
	Owner           string
	KV              storage.KV
	Remote          remote.Reader
	Mirror          Mirror
	DefaultCurrency string
	Logger          *log.Logger
	Now             func() time.Time
}

// Store is the record store of one owner. All methods are safe for
// concurrent use; operations are serialised.
type Store struct {
	mu       sync.Mutex
	owner    string
	kv       storage.KV
	remote   remote.Reader
	mirror   Mirror
	logger   *log.Logger
	now      func() time.Time
	fallback string

	loaded   bool
	txs      []core.Transaction
	budgets  []core.Budget
	currency string
	version  uint64
}

func NewStore(opts Options) *Store {
	owner := opts.Owner
	if owner == "" {
		owner = core.Offline
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	currency := opts.DefaultCurrency
	if currency == "" {
		currency = core.DefaultCurrency
	}
	return &Store{
		owner:    owner,
		kv:       opts.KV,
		remote:   opts.Remote,
		mirror:   opts.Mirror,
		logger:   log.Or(opts.Logger).WithComponent(log.ComponentLedger).WithOwner(owner),
		now:      now,
		fallback: currency,
		currency: currency,
	}
}

func (s *Store) Owner() string { return s.owner }

// Load reads the persisted lists and, for a signed-in owner with a remote
// store, replaces the local transactions with the remote copy. Absent or
// malformed local values start empty. A failing remote query is logged and
// the local list stands. Only local read failures are returned.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// EnsureLoaded loads the store unless it already has been.
func (s *Store) EnsureLoaded(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return nil
	}
	return s.load(ctx)
}

func (s *Store) load(ctx context.Context) error {
	var txs []core.Transaction
	if err := s.readJSON(ctx, storage.KeyTransactions, &txs); err != nil {
		return err
	}
	var budgets []core.Budget
	if err := s.readJSON(ctx, storage.KeyBudgets, &budgets); err != nil {
		return err
	}
	var currency string
	if err := s.readJSON(ctx, storage.KeyCurrency, &currency); err != nil {
		return err
	}
	if strings.TrimSpace(currency) == "" {
		currency = s.fallback
	}

	s.txs, s.budgets, s.currency = txs, budgets, currency
	s.loaded = true

	if s.remote != nil && s.owner != core.Offline {
		s.reconcile(ctx)
	}
	s.bump()

	s.logger.InfoContext(ctx, "Ledger loaded",
		log.FieldOperation, log.OpLoad,
		log.FieldCount, len(s.txs),
		"budgets", len(s.budgets))
	return nil
}

func (s *Store) reconcile(ctx context.Context) {
	remoteTxs, err := s.remote.ListByOwner(ctx, s.owner)
	if err != nil {
		s.logger.ErrorOp(ctx, "Remote load failed, keeping local transactions", log.OpLoad, err)
		return
	}
	if remoteTxs == nil {
		remoteTxs = []core.Transaction{}
	}
	if err := s.writeJSON(ctx, storage.KeyTransactions, remoteTxs); err != nil {
		s.logger.ErrorOp(ctx, "Persisting remote transactions failed", log.OpPersist, err)
		return
	}
	s.txs = remoteTxs
}

// readJSON decodes key into dst. Absent keys leave dst untouched; malformed
// values are logged and ignored.
func (s *Store) readJSON(ctx context.Context, key string, dst any) error {
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.logger.WarnContext(ctx, "Ignoring malformed stored value", log.FieldKey, key, log.FieldError, err)
	}
	return nil
}

func (s *Store) writeJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.kv.Put(ctx, key, b); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Add validates the input, records it and persists the full list. The new
// record is then handed to the mirror; a mirror failure is logged only.
func (s *Store) Add(ctx context.Context, n core.NewTransaction) (core.Transaction, error) {
	n.Category = strings.TrimSpace(n.Category)
	n.Description = strings.TrimSpace(n.Description)
	if n.Recurrence == "" {
		n.Recurrence = core.None
	}
	if err := n.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("add transaction: %w", err)
	}

	s.mu.Lock()
	created := s.now().UTC()
	tx := core.Transaction{
		ID:          core.NewID(created),
		Type:        n.Type,
		Amount:      n.Amount,
		Category:    n.Category,
		Description: n.Description,
		Date:        n.Date,
		OwnerID:     s.owner,
		CreatedAt:   created,
		Recurrence:  n.Recurrence,
	}
	next := append(slices.Clone(s.txs), tx)
	if err := s.writeJSON(ctx, storage.KeyTransactions, next); err != nil {
		s.mu.Unlock()
		s.logger.ErrorOp(ctx, "Add not persisted", log.OpPersist, err)
		return core.Transaction{}, fmt.Errorf("add transaction: %w", err)
	}
	s.txs = next
	s.bump()
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Transaction added", log.NewFields().
		WithOperation(log.OpCreate).
		WithTransaction(tx.ID, string(tx.Type), tx.Amount.String(), tx.Category, tx.Date.String()).
		ToSlice()...)

	s.mirrorNew(ctx, tx)
	return tx, nil
}

func (s *Store) mirrorNew(ctx context.Context, tx core.Transaction) {
	if s.mirror == nil || s.owner == core.Offline {
		return
	}
	if err := s.mirror.Mirror(ctx, tx); err != nil {
		s.logger.ErrorOp(ctx, "Remote mirror failed", log.OpMirror, err, log.FieldTxID, tx.ID)
	}
}

// Update merges patch into the record with id. A missing id is a no-op and
// reports false. Edits stay local and are not mirrored.
func (s *Store) Update(ctx context.Context, id string, patch core.Patch) (core.Transaction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return core.Transaction{}, false, nil
	}
	merged := patch.Apply(s.txs[i])
	if err := merged.Validate(); err != nil {
		return core.Transaction{}, true, fmt.Errorf("update transaction: %w", err)
	}
	next := slices.Clone(s.txs)
	next[i] = merged
	if err := s.writeJSON(ctx, storage.KeyTransactions, next); err != nil {
		return core.Transaction{}, true, fmt.Errorf("update transaction: %w", err)
	}
	s.txs = next
	s.bump()
	s.logger.InfoContext(ctx, "Transaction updated", log.FieldOperation, log.OpUpdate, log.FieldTxID, id)
	return merged, true, nil
}

// Remove drops the record with id and reports whether it existed.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false, nil
	}
	next := slices.Delete(slices.Clone(s.txs), i, i+1)
	if err := s.writeJSON(ctx, storage.KeyTransactions, next); err != nil {
		return false, fmt.Errorf("remove transaction: %w", err)
	}
	s.txs = next
	s.bump()
	s.logger.InfoContext(ctx, "Transaction removed", log.FieldOperation, log.OpDelete, log.FieldTxID, id)
	return true, nil
}

func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.txs, func(t core.Transaction) bool { return t.ID == id })
}

// Get returns the record with id.
func (s *Store) Get(id string) (core.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return s.txs[i], true
	}
	return core.Transaction{}, false
}

// UpsertBudget sets the limit for (category, period), creating the budget
// when the pair is new.
func (s *Store) UpsertBudget(ctx context.Context, category string, period core.Period, amount decimal.Decimal) (core.Budget, error) {
	b := core.Budget{Category: strings.TrimSpace(category), Period: period, Amount: amount}
	if err := b.Validate(); err != nil {
		return core.Budget{}, fmt.Errorf("upsert budget: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := slices.Clone(s.budgets)
	i := slices.IndexFunc(next, func(x core.Budget) bool {
		return x.Category == b.Category && x.Period == b.Period
	})
	if i >= 0 {
		next[i].Amount = b.Amount
		b = next[i]
	} else {
		b.ID = core.NewID(s.now())
		next = append(next, b)
	}
	if err := s.writeJSON(ctx, storage.KeyBudgets, next); err != nil {
		return core.Budget{}, fmt.Errorf("upsert budget: %w", err)
	}
	s.budgets = next
	s.bump()
	s.logger.InfoContext(ctx, "Budget saved",
		log.FieldCategory, b.Category, "period", b.Period, log.FieldAmount, b.Amount.String())
	return b, nil
}

// RemoveBudget drops the budget with id and reports whether it existed.
func (s *Store) RemoveBudget(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.budgets, func(b core.Budget) bool { return b.ID == id })
	if i < 0 {
		return false, nil
	}
	next := slices.Delete(slices.Clone(s.budgets), i, i+1)
	if err := s.writeJSON(ctx, storage.KeyBudgets, next); err != nil {
		return false, fmt.Errorf("remove budget: %w", err)
	}
	s.budgets = next
	s.bump()
	return true, nil
}

// Transactions returns a copy of the records in insertion order.
func (s *Store) Transactions() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.txs)
}

// Budgets returns a copy of the budgets.
func (s *Store) Budgets() []core.Budget {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.budgets)
}

// Snapshot is a consistent copy of the store's state.
type Snapshot struct {
	Transactions []core.Transaction
	Budgets      []core.Budget
	Currency     string
	Version      uint64
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Transactions: slices.Clone(s.txs),
		Budgets:      slices.Clone(s.budgets),
		Currency:     s.currency,
		Version:      s.version,
	}
}

func (s *Store) Currency() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currency
}

// SetCurrency persists the display currency symbol.
func (s *Store) SetCurrency(ctx context.Context, symbol string) error {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" || len(symbol) > maxCurrencyLen {
		return ErrInvalidCurrency
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeJSON(ctx, storage.KeyCurrency, symbol); err != nil {
		return fmt.Errorf("set currency: %w", err)
	}
	s.currency = symbol
	s.bump()
	return nil
}

func (s *Store) bump() { s.version = versions.Add(1) }

// Version changes with every change to the in-memory state. Values are
// unique across all stores of the process.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Reset clears the in-memory lists. Persisted values are kept.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = nil
	s.budgets = nil
	s.currency = s.fallback
	s.loaded = false
	s.bump()
}

// Purge deletes the persisted transaction list.
func (s *Store) Purge(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Delete(ctx, storage.KeyTransactions); err != nil {
		return fmt.Errorf("purge transactions: %w", err)
	}
	s.bump()
	return nil
}
