package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no value is stored under the key
var ErrNotFound = errors.New("storage: key not found")

// Storage defines the interface for the key-value blob store the tracker
// persists its state to. Values are opaque; Put replaces any prior value.
type Storage interface {
	// Get returns the value stored under key, or ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key, replacing any previous value
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes the key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Lifecycle
	Initialize(ctx context.Context) error
	Close() error
}
