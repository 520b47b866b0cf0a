package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory is an in-process Cache.
type Memory struct {
	c *gocache.Cache

	// takeMu serializes Take; go-cache has no get-and-delete.
	takeMu sync.Mutex
}

var _ Cache = (*Memory)(nil)

// NewMemory creates a Memory cache. Keys set with ttl 0 use defaultTTL.
func NewMemory(defaultTTL time.Duration) *Memory {
	return &Memory{c: gocache.New(defaultTTL, time.Minute)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, ErrNotFound
	}
	b, _ := v.([]byte)
	return b, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	m.c.Set(key, value, ttl)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.c.Delete(key)
	return nil
}

func (m *Memory) Take(ctx context.Context, key string) ([]byte, error) {
	m.takeMu.Lock()
	defer m.takeMu.Unlock()

	b, err := m.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	m.c.Delete(key)
	return b, nil
}

func (m *Memory) Close() error { return nil }
