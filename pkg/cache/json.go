package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Remember 读取 JSON 编码的缓存值，未命中时调用 fn 并写回
func Remember[T any](ctx context.Context, c Cache, key string, ttl time.Duration, fn func() (T, error)) (T, error) {
	var out T
	if v, ok := c.Get(ctx, key); ok {
		if s, ok := v.(string); ok && json.Unmarshal([]byte(s), &out) == nil {
			return out, nil
		}
	}
	out, err := fn()
	if err != nil {
		return out, err
	}
	if data, err := json.Marshal(out); err == nil {
		_ = c.Set(ctx, key, string(data), ttl)
	}
	return out, nil
}
