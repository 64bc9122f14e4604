// Package storage holds the local key-value persistence behind the ledger.
//
// Values are opaque byte slices written and read whole; the ledger stores one
// JSON document per key and rewrites it on every mutation.
package storage

import (
	"context"
	"errors"
	"strings"
)

// Keys used by the ledger and its collaborators.
const (
	KeyTransactions  = "transactions"
	KeyBudgets       = "budgets"
	KeyCurrency      = "currency"
	KeyUsers         = "users"
	KeyRecurringRuns = "recurring_runs"
)

var (
	ErrNotFound   = errors.New("key not found")
	ErrInvalidKey = errors.New("invalid key")
)

// KV is a whole-value key-value store.
type KV interface {
	// Get returns ErrNotFound when key has never been written or was deleted.
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	// Delete is a no-op for absent keys.
	Delete(ctx context.Context, key string) error
	Close() error
}

func checkKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	return nil
}

// Namespace scopes every key of kv under prefix. Closing the namespace does
// not close the underlying store.
func Namespace(kv KV, prefix string) KV {
	return &namespaced{kv: kv, prefix: prefix + ":"}
}

type namespaced struct {
	kv     KV
	prefix string
}

func (n *namespaced) Get(ctx context.Context, key string) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	return n.kv.Get(ctx, n.prefix+key)
}

func (n *namespaced) Put(ctx context.Context, key string, value []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	return n.kv.Put(ctx, n.prefix+key, value)
}

func (n *namespaced) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	return n.kv.Delete(ctx, n.prefix+key)
}

func (n *namespaced) Close() error { return nil }
