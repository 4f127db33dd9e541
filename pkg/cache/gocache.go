package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// goCacheWrapper go-cache包装器
type goCacheWrapper struct {
	cache *gocache.Cache
}

// NewGoCache 创建基于go-cache的本地缓存
func NewGoCache(config LocalConfig) Cache {
	config = config.withDefaults()
	return &goCacheWrapper{
		cache: gocache.New(config.DefaultExpiration, config.CleanupInterval),
	}
}

func (gc *goCacheWrapper) Get(ctx context.Context, key string) (interface{}, bool) {
	return gc.cache.Get(key)
}

func (gc *goCacheWrapper) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	gc.cache.Set(key, value, goExpiration(expiration))
	return nil
}

func (gc *goCacheWrapper) Add(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	// go-cache 的 Add 在键已存在且未过期时返回错误
	if err := gc.cache.Add(key, value, goExpiration(expiration)); err != nil {
		return false, nil
	}
	return true, nil
}

func (gc *goCacheWrapper) Delete(ctx context.Context, key string) error {
	gc.cache.Delete(key)
	return nil
}

func (gc *goCacheWrapper) Exists(ctx context.Context, key string) bool {
	_, found := gc.cache.Get(key)
	return found
}

func (gc *goCacheWrapper) Increment(ctx context.Context, key string, delta int64, expiration time.Duration) (int64, error) {
	// go-cache支持IncrementInt64，返回新值
	if newValue, err := gc.cache.IncrementInt64(key, delta); err == nil {
		return newValue, nil
	}
	if err := gc.cache.Add(key, delta, goExpiration(expiration)); err != nil {
		// 并发下已被其他调用初始化
		return gc.cache.IncrementInt64(key, delta)
	}
	return delta, nil
}

func (gc *goCacheWrapper) Clear(ctx context.Context) error {
	gc.cache.Flush()
	return nil
}

// Close go-cache不需要关闭连接
func (gc *goCacheWrapper) Close() error {
	return nil
}

func goExpiration(d time.Duration) time.Duration {
	if d <= 0 {
		return gocache.DefaultExpiration
	}
	return d
}
