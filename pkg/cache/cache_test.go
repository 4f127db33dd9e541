package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func localCaches() map[string]Cache {
	cfg := LocalConfig{
		MaxSize:           100,
		DefaultExpiration: 5 * time.Minute,
		CleanupInterval:   10 * time.Minute,
	}
	return map[string]Cache{
		"local":   NewLocalCache(cfg),
		"gocache": NewGoCache(cfg),
	}
}

func TestLocalCaches(t *testing.T) {
	ctx := context.Background()
	for name, c := range localCaches() {
		c := c
		t.Run(name, func(t *testing.T) {
			defer c.Close()

			require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
			v, ok := c.Get(ctx, "k")
			require.True(t, ok)
			assert.Equal(t, "v", v)
			assert.True(t, c.Exists(ctx, "k"))

			added, err := c.Add(ctx, "k", "other", time.Minute)
			require.NoError(t, err)
			assert.False(t, added)

			added, err = c.Add(ctx, "fresh", "x", time.Minute)
			require.NoError(t, err)
			assert.True(t, added)

			require.NoError(t, c.Delete(ctx, "k"))
			assert.False(t, c.Exists(ctx, "k"))

			n, err := c.Increment(ctx, "counter", 2, time.Minute)
			require.NoError(t, err)
			assert.EqualValues(t, 2, n)
			n, err = c.Increment(ctx, "counter", 3, time.Minute)
			require.NoError(t, err)
			assert.EqualValues(t, 5, n)

			require.NoError(t, c.Clear(ctx))
			assert.False(t, c.Exists(ctx, "fresh"))
		})
	}
}

func TestLocalCacheExpiration(t *testing.T) {
	ctx := context.Background()
	c := NewLocalCache(LocalConfig{MaxSize: 10})
	defer c.Close()

	require.NoError(t, c.Set(ctx, "short", 1, 20*time.Millisecond))
	time.Sleep(40 * time.Millisecond)
	_, ok := c.Get(ctx, "short")
	assert.False(t, ok)

	added, err := c.Add(ctx, "short", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, added)
}

func TestLocalCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := NewLocalCache(LocalConfig{MaxSize: 2})
	defer c.Close()

	require.NoError(t, c.Set(ctx, "a", 1, 0))
	require.NoError(t, c.Set(ctx, "b", 2, 0))
	_, _ = c.Get(ctx, "a")
	require.NoError(t, c.Set(ctx, "c", 3, 0))

	assert.True(t, c.Exists(ctx, "a"))
	assert.False(t, c.Exists(ctx, "b"))
	assert.True(t, c.Exists(ctx, "c"))
}

func TestRemember(t *testing.T) {
	ctx := context.Background()
	c := NewGoCache(LocalConfig{})
	type stats struct {
		Open int `json:"open"`
	}

	calls := 0
	load := func() (stats, error) {
		calls++
		return stats{Open: 7}, nil
	}

	got, err := Remember(ctx, c, "stats", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Open)

	got, err = Remember(ctx, c, "stats", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Open)
	assert.Equal(t, 1, calls)

	_, err = Remember(ctx, c, "broken", time.Minute, func() (stats, error) {
		return stats{}, errors.New("boom")
	})
	assert.Error(t, err)
	assert.False(t, c.Exists(ctx, "broken"))
}

func TestNewCacheRejectsUnknownType(t *testing.T) {
	_, err := NewCache(Config{Type: "memcached"})
	assert.Error(t, err)
}
