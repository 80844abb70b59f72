// Package kv is the persistence boundary: a byte oriented key-value store with
// memory, JSON file, Redis and SQLite backends.
package kv

import (
	"context"

	"github.com/pkg/errors"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("kv store is closed")

// Store key-value persistence. Values are opaque bytes.
type Store interface {
	// Get returns the value and true, or false when the key is absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Open creates a store for the backend. dsn is a directory for file,
// a redis:// URL for redis and a database path for sqlite; memory ignores it.
func Open(ctx context.Context, backend, dsn string) (Store, error) {
	switch backend {
	case BackendMemory, "":
		return NewMemoryStore(), nil
	case BackendFile:
		return NewFileStore(dsn)
	case BackendRedis:
		return NewRedisStore(ctx, dsn)
	case BackendSQLite:
		return NewSQLiteStore(ctx, dsn)
	default:
		return nil, errors.Errorf("unknown storage backend %q", backend)
	}
}
