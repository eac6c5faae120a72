package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when a key has no value. Callers treat
// absence as empty/default state rather than an error condition.
var ErrNotFound = errors.New("store: key not found")

// Store is an opaque persistent map from string key to string value, the
// contract the rest of the system is written against. Implementations must
// make Set a full replace of any prior value and Delete a no-op on absent keys.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error

	// Incr atomically increments an integer counter stored at key, creating
	// it at 1 when absent. Used for the revision counter.
	Incr(ctx context.Context, key string) (int64, error)

	// Ping checks if the backing storage is reachable
	Ping(ctx context.Context) error

	// Close releases the backing connection
	Close() error
}
