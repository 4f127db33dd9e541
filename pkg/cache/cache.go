package cache

import (
	"context"
	"time"
)

// Cache 缓存接口
type Cache interface {
	// Get 获取缓存值
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set 设置缓存值，expiration 为 0 时使用默认过期时间
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error

	// Add 仅在键不存在时写入，返回是否写入成功
	Add(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)

	// Delete 删除缓存
	Delete(ctx context.Context, key string) error

	// Exists 检查键是否存在
	Exists(ctx context.Context, key string) bool

	// Increment 自增，键不存在时以 delta 初始化并设置过期时间
	Increment(ctx context.Context, key string, delta int64, expiration time.Duration) (int64, error)

	// Clear 清空所有缓存
	Clear(ctx context.Context) error

	// Close 关闭缓存连接
	Close() error
}

// Config 缓存配置
type Config struct {
	// 缓存类型: "local"、"gocache" 或 "redis"
	Type string `json:"type" env:"CACHE_TYPE"`

	Redis RedisConfig `json:"redis"`

	Local LocalConfig `json:"local"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr         string        `json:"addr" env:"REDIS_ADDR"`
	Password     string        `json:"password" env:"REDIS_PASSWORD"`
	DB           int           `json:"db" env:"REDIS_DB"`
	PoolSize     int           `json:"pool_size"`
	MinIdleConns int           `json:"min_idle_conns"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	// 键前缀，多个服务共用一个库时区分
	Prefix string `json:"prefix"`
}

// LocalConfig 本地缓存配置
type LocalConfig struct {
	// 最大缓存项数，仅 local 生效
	MaxSize int `json:"max_size"`

	// 默认过期时间
	DefaultExpiration time.Duration `json:"default_expiration"`

	// 清理间隔，仅 gocache 生效
	CleanupInterval time.Duration `json:"cleanup_interval"`
}

func (c LocalConfig) withDefaults() LocalConfig {
	if c.MaxSize <= 0 {
		c.MaxSize = 10000
	}
	if c.DefaultExpiration <= 0 {
		c.DefaultExpiration = 5 * time.Minute
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = 10 * time.Minute
	}
	return c
}
