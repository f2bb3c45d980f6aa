// Package kv defines the minimal key-value contract used for caching.
package kv

import (
	"context"
	"errors"
)

// ErrKeyNotFound signals a missing key (cache miss).
var ErrKeyNotFound = errors.New("key not found")

// Store is a byte-oriented key-value store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Ping(ctx context.Context) error
	Close()
}
