package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(time.Minute)

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_TakeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(time.Minute)
	require.NoError(t, c.Set(ctx, "oauth1:tok", []byte("secret"), 0))

	var winners atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := c.Take(ctx, "oauth1:tok")
			if err == nil {
				assert.Equal(t, []byte("secret"), b)
				winners.Add(1)
				return
			}
			assert.ErrorIs(t, err, ErrNotFound)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
	_, err := c.Get(ctx, "oauth1:tok")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(time.Minute)

	require.NoError(t, c.Set(ctx, "short", []byte("v"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, err := c.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpen_WithoutRedisURLIsMemory(t *testing.T) {
	c, err := Open(context.Background(), "", time.Minute)
	require.NoError(t, err)
	defer c.Close()

	_, ok := c.(*Memory)
	assert.True(t, ok)
}

func TestOpen_BadRedisURL(t *testing.T) {
	_, err := Open(context.Background(), "mysql://nope", time.Minute)
	assert.Error(t, err)
}
