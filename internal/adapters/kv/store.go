// Package kv provides the key-value stores used to cache the character roster.
package kv

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by stores.
var (
	ErrEmptyKey = errors.New("kv: empty key")
	ErrBackend  = errors.New("kv: backend failure")
)

// Store is a minimal byte-oriented key-value store. A zero ttl means the
// value never expires.
type Store interface {
	// Get returns the value and whether the key was present and unexpired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
