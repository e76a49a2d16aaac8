package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a key does not exist.
	ErrNotFound = errors.New("store: key not found")
	// ErrConflict is returned when a compare-and-swap sees a different current value.
	ErrConflict = errors.New("store: compare-and-swap conflict")
	// ErrExists is returned when creating a record whose key or unique index is taken.
	ErrExists = errors.New("store: record already exists")
)

// KV is the persistence contract the ledger needs from a backend.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Has(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error

	// CompareAndSwap writes next only if the current value equals old.
	// A nil old means the key must be absent. Mismatch returns ErrConflict.
	CompareAndSwap(ctx context.Context, key string, old, next []byte) error

	// Iterate calls fn for every key with the given prefix, in key order.
	Iterate(ctx context.Context, prefix string, fn func(key string, value []byte) error) error

	Close() error
}
