package middleware

import (
	"CityWatch/pkg/cache"
	constants "CityWatch/pkg/constant"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

type IdemStore interface {
	// Set 返回 true 表示首次写入，false 表示键已存在
	Set(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// CacheIdemStore 基于 cache.Cache 的幂等键存储
type CacheIdemStore struct {
	c      cache.Cache
	prefix string
}

func NewCacheIdemStore(c cache.Cache) *CacheIdemStore {
	return &CacheIdemStore{c: c, prefix: "idem:"}
}

func (s *CacheIdemStore) Set(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.c.Add(ctx, s.prefix+key, 1, ttl)
}

func (s *CacheIdemStore) Release(ctx context.Context, key string) error {
	return s.c.Delete(ctx, s.prefix+key)
}

type IdempotencyConfig struct {
	HeaderName string        // Idempotency-Key 的请求头名
	TTL        time.Duration // 决定一段时间内重复请求的拒绝窗口
	Store      IdemStore
	// HashBody 为 true 时，没有请求头则用请求体哈希作为幂等键
	HashBody bool
}

// IdempotencyMiddleware 在 TTL 内拒绝重复提交，处理失败时释放键以允许重试
func IdempotencyMiddleware(cfg IdempotencyConfig) gin.HandlerFunc {
	if cfg.HeaderName == "" {
		cfg.HeaderName = "Idempotency-Key"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.Store == nil {
		cfg.Store = NewCacheIdemStore(cache.NewGoCache(cache.LocalConfig{}))
	}
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(cfg.HeaderName))
		if key == "" && cfg.HashBody {
			b, _ := io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(b))
			h := sha256.Sum256(b)
			key = hex.EncodeToString(h[:])
		}
		if key == "" {
			c.Next()
			return
		}
		key = c.FullPath() + ":" + c.GetString(constants.UserIDField) + ":" + key

		ok, err := cfg.Store.Set(c.Request.Context(), key, cfg.TTL)
		if err != nil {
			c.Next()
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"success": false, "error": "duplicate request"})
			return
		}
		c.Next()
		if c.Writer.Status() >= http.StatusBadRequest {
			_ = cfg.Store.Release(context.Background(), key)
		}
	}
}
