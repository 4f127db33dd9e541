package handlers

import (
	"strings"
	"time"

	"CityWatch/internal/models"
	"CityWatch/pkg/cache"
	"CityWatch/pkg/errors"
	"CityWatch/pkg/response"
	"CityWatch/pkg/search"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
)

const dashboardCacheKey = "dashboard:stats"

var searchTypes = []string{search.TypeCrime, search.TypeIncident, search.TypeCriminal}

func (h *Handlers) registerDashboardRoutes(r *gin.RouterGroup) {
	r.GET("dashboard/stats", models.PermissionRequired(models.ResDashboard, models.ActionRead), h.handleDashboardStats)
}

func (h *Handlers) registerSearchRoutes(r *gin.RouterGroup) {
	r.GET("search", models.PermissionRequired(models.ResSearch, models.ActionRead), h.handleSearch)
}

func (h *Handlers) handleDashboardStats(c *gin.Context) {
	ttl := time.Duration(h.cfg.DashboardCacheSeconds) * time.Second
	db := h.dbFor(c)
	hit := true
	stats, err := cache.Remember(c.Request.Context(), h.cache, dashboardCacheKey, ttl, func() (*models.DashboardStats, error) {
		hit = false
		return models.GetDashboardStats(db)
	})
	if err != nil {
		response.AbortWithError(c, errors.FromDB(err, "dashboard"))
		return
	}
	if h.metrics != nil {
		if hit {
			h.metrics.RecordCacheHit("dashboard")
		} else {
			h.metrics.RecordCacheMiss("dashboard")
		}
	}
	response.Success(c, "ok", stats)
}

// handleSearch 全文检索案件、事件与嫌犯
func (h *Handlers) handleSearch(c *gin.Context) {
	if h.search == nil {
		response.AbortWithError(c, errors.Unavailable("search is disabled"))
		return
	}
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		response.Fail(c, "validation failed", map[string]string{"q": "is required"})
		return
	}
	req := search.Request{Keyword: q, Size: cast.ToInt(c.Query("size")), From: cast.ToInt(c.Query("from"))}
	if req.Size <= 0 {
		req.Size = 20
	}
	if req.Size > 100 {
		req.Size = 100
	}
	if req.From < 0 {
		req.From = 0
	}
	if t := c.Query("type"); t != "" {
		for _, part := range strings.Split(t, ",") {
			part = strings.TrimSpace(part)
			if !contains(searchTypes, part) {
				response.Fail(c, "validation failed", map[string]string{"type": "must be one of: " + strings.Join(searchTypes, ", ")})
				return
			}
			req.Types = append(req.Types, part)
		}
	}
	res, err := h.search.Search(c.Request.Context(), req)
	if err != nil {
		response.AbortWithError(c, errors.Wrap(err, "search failed"))
		return
	}
	response.Success(c, "ok", res)
}
