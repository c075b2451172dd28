package database

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("key not found")

// KVReader provides read-only access to stored blobs
type KVReader interface {
	// Get returns the value stored at key, or ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)
}

// KVWriter provides write access to stored blobs
type KVWriter interface {
	// Set replaces the value at key. Readers never observe a partial write.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes the key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// KV is a key/value blob store backing the credential store.
type KV interface {
	KVReader
	KVWriter
	// Close releases the underlying connection or file
	Close() error
}
