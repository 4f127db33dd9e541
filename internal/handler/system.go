package handlers

import (
	"context"
	"net/http"
	"time"

	"CityWatch/pkg/middleware"
	"CityWatch/pkg/response"

	"github.com/gin-gonic/gin"
)

func (h *Handlers) GetRateLimiterConfig(c *gin.Context) {
	response.Success(c, "ok", h.limiter.Config())
}

// UpdateRateLimiterConfig 运行时替换限流配置
func (h *Handlers) UpdateRateLimiterConfig(c *gin.Context) {
	var cfg middleware.RateLimiterConfig
	if !bindJSON(c, &cfg) {
		return
	}
	if bad := cfg.InvalidRates(); len(bad) > 0 {
		response.Fail(c, "invalid rate format", bad)
		return
	}
	h.limiter.UpdateConfig(cfg)
	response.Success(c, "rate limiter config updated", h.limiter.Config())
}

// HealthCheck 健康检查接口
func (h *Handlers) HealthCheck(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err != nil {
		response.AbortWithStatus(c, http.StatusServiceUnavailable, "unhealthy", gin.H{"database": "connection failed"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		response.AbortWithStatus(c, http.StatusServiceUnavailable, "unhealthy", gin.H{"database": "ping failed"})
		return
	}
	response.Success(c, "healthy", gin.H{
		"status":  "healthy",
		"streams": h.hub.StreamCount(),
		"time":    time.Now().UTC(),
	})
}
