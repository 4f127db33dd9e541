package middleware

import (
	constants "CityWatch/pkg/constant"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// RateLimiterConfig 限流配置
//
// 示例：
// Rate: "300-M"、Identifier: "ip"/"user"/"ip+route"
// PerRouteRates: {"/api/auth/login": "10-M", "/api/public/reports": "5-M"}
// WhitelistCIDRs/BlacklistCIDRs: ["10.0.0.0/8", "127.0.0.1/32"]
// SkipPaths: ["/api/system/health", "/metrics"] 前缀匹配
type RateLimiterConfig struct {
	Rate           string            `json:"rate" binding:"required"` // e.g. "100-M", "1000-H"
	PerRouteRates  map[string]string `json:"perRouteRates"`           // 按路由模板覆盖速率
	Identifier     string            `json:"identifier" binding:"omitempty,oneof=ip user ip+route"`
	WhitelistCIDRs []string          `json:"whitelistCidrs"`
	BlacklistCIDRs []string          `json:"blacklistCidrs"`
	SkipPaths      []string          `json:"skipPaths"`
	AddHeaders     bool              `json:"addHeaders"`
}

// MetricsObserver 限流结果上报
type MetricsObserver interface {
	OnAllow(route string)
	OnDeny(route string)
}

// PrometheusObserver 基于 Prometheus 的实现
type PrometheusObserver struct {
	allow *prometheus.CounterVec
	deny  *prometheus.CounterVec
}

func NewPrometheusObserver(reg prometheus.Registerer) *PrometheusObserver {
	f := promauto.With(reg)
	return &PrometheusObserver{
		allow: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_limit_allow_total",
			Help: "Allowed requests by rate limiter",
		}, []string{"route"}),
		deny: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_limit_deny_total",
			Help: "Denied requests by rate limiter",
		}, []string{"route"}),
	}
}

func (p *PrometheusObserver) OnAllow(route string) { p.allow.WithLabelValues(route).Inc() }
func (p *PrometheusObserver) OnDeny(route string)  { p.deny.WithLabelValues(route).Inc() }

// NewRedisStore 多实例部署时共享计数
func NewRedisStore(client *redis.Client, prefix string) (limiter.Store, error) {
	if prefix == "" {
		prefix = "citywatch:limiter"
	}
	return sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: prefix})
}

// RateLimiter 按速率缓存 limiter，配置可在运行时替换
type RateLimiter struct {
	mu             sync.RWMutex
	cfg            RateLimiterConfig
	store          limiter.Store
	observer       MetricsObserver
	limitersByRate map[string]*limiter.Limiter
	whiteCIDRs     []*net.IPNet
	blackCIDRs     []*net.IPNet
}

// NewRateLimiter store 为空时使用内存存储
func NewRateLimiter(cfg RateLimiterConfig, store limiter.Store) *RateLimiter {
	if store == nil {
		store = memory.NewStore()
	}
	l := &RateLimiter{store: store}
	l.UpdateConfig(cfg)
	return l
}

func (l *RateLimiter) WithObserver(observer MetricsObserver) *RateLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observer = observer
	return l
}

// Config 返回当前配置的拷贝
func (l *RateLimiter) Config() RateLimiterConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// InvalidRates 返回无法解析的速率, 键为 "rate" 或路由模板
func (cfg RateLimiterConfig) InvalidRates() map[string]string {
	out := map[string]string{}
	if cfg.Rate != "" {
		if _, err := limiter.NewRateFromFormatted(cfg.Rate); err != nil {
			out["rate"] = err.Error()
		}
	}
	for route, r := range cfg.PerRouteRates {
		if _, err := limiter.NewRateFromFormatted(r); err != nil {
			out[route] = err.Error()
		}
	}
	return out
}

// UpdateConfig 替换配置并清空已缓存的 limiter
func (l *RateLimiter) UpdateConfig(cfg RateLimiterConfig) {
	if cfg.Rate == "" {
		cfg.Rate = "10-S"
	}
	if cfg.Identifier == "" {
		cfg.Identifier = "ip"
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cfg = cfg
	l.limitersByRate = make(map[string]*limiter.Limiter)
	l.whiteCIDRs = parseCIDRs(cfg.WhitelistCIDRs)
	l.blackCIDRs = parseCIDRs(cfg.BlacklistCIDRs)
}

// Middleware 返回 Gin 中间件
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		l.mu.RLock()
		cfg := l.cfg
		white, black := l.whiteCIDRs, l.blackCIDRs
		l.mu.RUnlock()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		if pathSkipped(cfg.SkipPaths, route) {
			c.Next()
			return
		}

		ip := clientIPFromRequest(c)
		if ipListed(ip, white) {
			c.Next()
			return
		}
		if ipListed(ip, black) {
			l.report(route, false)
			deny(c, 0)
			return
		}

		lim := l.limiterFor(rateForRoute(cfg, route))
		result, err := lim.Get(c.Request.Context(), buildLimitKey(cfg, c, ip, route))
		if err != nil {
			// 存储不可用时放行
			c.Next()
			return
		}
		if cfg.AddHeaders {
			setStandardHeaders(c, result)
		}
		if result.Reached {
			l.report(route, false)
			deny(c, time.Until(time.Unix(result.Reset, 0)))
			return
		}
		l.report(route, true)
		c.Next()
	}
}

func (l *RateLimiter) report(route string, allowed bool) {
	l.mu.RLock()
	obs := l.observer
	l.mu.RUnlock()
	if obs == nil {
		return
	}
	if allowed {
		obs.OnAllow(route)
	} else {
		obs.OnDeny(route)
	}
}

func (l *RateLimiter) limiterFor(rateStr string) *limiter.Limiter {
	l.mu.RLock()
	lim, ok := l.limitersByRate[rateStr]
	l.mu.RUnlock()
	if ok {
		return lim
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok = l.limitersByRate[rateStr]; ok {
		return lim
	}
	r, err := limiter.NewRateFromFormatted(rateStr)
	if err != nil {
		r = limiter.Rate{Period: time.Second, Limit: 10}
	}
	lim = limiter.New(l.store, r)
	l.limitersByRate[rateStr] = lim
	return lim
}

func rateForRoute(cfg RateLimiterConfig, route string) string {
	if r, ok := cfg.PerRouteRates[route]; ok && r != "" {
		return r
	}
	return cfg.Rate
}

func parseCIDRs(list []string) []*net.IPNet {
	var out []*net.IPNet
	for _, c := range list {
		if _, ipnet, err := net.ParseCIDR(strings.TrimSpace(c)); err == nil {
			out = append(out, ipnet)
		}
	}
	return out
}

func pathSkipped(prefixes []string, path string) bool {
	for _, pref := range prefixes {
		if pref != "" && strings.HasPrefix(path, pref) {
			return true
		}
	}
	return false
}

func clientIPFromRequest(c *gin.Context) string {
	return strings.TrimPrefix(c.ClientIP(), "::ffff:")
}

func ipListed(ip string, nets []*net.IPNet) bool {
	pip := net.ParseIP(ip)
	if pip == nil {
		return false
	}
	for _, n := range nets {
		if n.Contains(pip) {
			return true
		}
	}
	return false
}

func buildLimitKey(cfg RateLimiterConfig, c *gin.Context, ip, route string) string {
	switch cfg.Identifier {
	case "user":
		if uid := c.GetString(constants.UserIDField); uid != "" {
			return "user:" + uid + ":" + route
		}
		return "ip:" + ip + ":" + route
	case "ip+route":
		return "iprt:" + ip + ":" + route
	default:
		// 同一 IP 在不同速率的路由上分别计数
		if _, ok := cfg.PerRouteRates[route]; ok {
			return "iprt:" + ip + ":" + route
		}
		return "ip:" + ip
	}
}

func setStandardHeaders(c *gin.Context, ctx limiter.Context) {
	c.Header("X-RateLimit-Limit", strconv.FormatInt(ctx.Limit, 10))
	c.Header("X-RateLimit-Remaining", strconv.FormatInt(ctx.Remaining, 10))
	resetSec := int(time.Until(time.Unix(ctx.Reset, 0)).Seconds())
	if resetSec < 0 {
		resetSec = 0
	}
	c.Header("X-RateLimit-Reset", strconv.Itoa(resetSec))
}

func deny(c *gin.Context, retry time.Duration) {
	if sec := int(retry.Seconds()); sec > 0 {
		c.Header("Retry-After", strconv.Itoa(sec))
	}
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"success": false, "error": "too many requests"})
}
