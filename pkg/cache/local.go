package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type localItem struct {
	value     interface{}
	expiresAt time.Time
}

func (i localItem) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && now.After(i.expiresAt)
}

// localCache 基于 expirable LRU 的本地缓存，单键过期时间另外记录
type localCache struct {
	mu     sync.Mutex
	lru    *expirable.LRU[string, localItem]
	config LocalConfig
}

// NewLocalCache 创建本地缓存
func NewLocalCache(config LocalConfig) Cache {
	config = config.withDefaults()
	return &localCache{
		lru:    expirable.NewLRU[string, localItem](config.MaxSize, nil, 0),
		config: config,
	}
}

func (lc *localCache) get(key string) (localItem, bool) {
	item, ok := lc.lru.Get(key)
	if !ok {
		return localItem{}, false
	}
	if item.expired(time.Now()) {
		lc.lru.Remove(key)
		return localItem{}, false
	}
	return item, true
}

func (lc *localCache) item(value interface{}, expiration time.Duration) localItem {
	if expiration <= 0 {
		expiration = lc.config.DefaultExpiration
	}
	return localItem{value: value, expiresAt: time.Now().Add(expiration)}
}

func (lc *localCache) Get(ctx context.Context, key string) (interface{}, bool) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	item, ok := lc.get(key)
	return item.value, ok
}

func (lc *localCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.lru.Add(key, lc.item(value, expiration))
	return nil
}

func (lc *localCache) Add(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if _, ok := lc.get(key); ok {
		return false, nil
	}
	lc.lru.Add(key, lc.item(value, expiration))
	return true, nil
}

func (lc *localCache) Delete(ctx context.Context, key string) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.lru.Remove(key)
	return nil
}

func (lc *localCache) Exists(ctx context.Context, key string) bool {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	_, ok := lc.get(key)
	return ok
}

func (lc *localCache) Increment(ctx context.Context, key string, delta int64, expiration time.Duration) (int64, error) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	item, ok := lc.get(key)
	if !ok {
		lc.lru.Add(key, lc.item(delta, expiration))
		return delta, nil
	}
	current, ok := item.value.(int64)
	if !ok {
		return 0, fmt.Errorf("value of %s is not an int64", key)
	}
	item.value = current + delta
	lc.lru.Add(key, item)
	return current + delta, nil
}

func (lc *localCache) Clear(ctx context.Context) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.lru.Purge()
	return nil
}

func (lc *localCache) Close() error {
	return lc.Clear(context.Background())
}
