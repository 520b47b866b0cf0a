// Package cache stores short-lived server-side state: OAuth 1.0a request
// secrets between the two handshake steps, and per-user search cursors.
//
// Two backends:
//   - memory (go-cache), for a single instance and tests
//   - redis (go-redis), when several instances share state
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get for missing or expired keys.
var ErrNotFound = errors.New("cache: key not found")

// Cache is a byte-valued key/value store with per-key expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Take returns the value and removes the key in one step. Of several
	// concurrent Takes on a key, exactly one gets the value.
	Take(ctx context.Context, key string) ([]byte, error)
	Close() error
}

// Open returns a Redis-backed cache when redisURL is set and an in-process
// one otherwise.
func Open(ctx context.Context, redisURL string, defaultTTL time.Duration) (Cache, error) {
	if redisURL == "" {
		return NewMemory(defaultTTL), nil
	}
	return NewRedis(ctx, redisURL)
}
