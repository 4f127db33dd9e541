package middleware

import (
	constants "CityWatch/pkg/constant"
	"CityWatch/pkg/logger"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mssola/user_agent"
	"github.com/oschwald/geoip2-golang"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OperationLog 记录用户操作日志
type OperationLog struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          string    `gorm:"size:32;index" json:"userId"`           // 操作的用户 ID
	Username        string    `gorm:"size:128" json:"username"`              // 操作的用户名
	Role            string    `gorm:"size:32" json:"role"`                   // 操作时的角色
	Action          string    `gorm:"size:16" json:"action"`                 // create/update/delete
	Target          string    `gorm:"size:255;index" json:"target"`          // 路由模板
	Path            string    `gorm:"size:255" json:"path"`                  // 实际请求路径
	Status          int       `json:"status"`                                // 响应状态码
	IPAddress       string    `gorm:"size:64" json:"ipAddress"`              // 用户 IP 地址
	UserAgent       string    `gorm:"size:512" json:"userAgent"`             // 用户的浏览器信息
	Device          string    `gorm:"size:64" json:"device"`                 // 用户设备（手机、桌面等）
	Browser         string    `gorm:"size:64" json:"browser"`                // 浏览器信息（如 Chrome, Firefox 等）
	OperatingSystem string    `gorm:"size:64" json:"operatingSystem"`        // 操作系统（如 Windows, MacOS 等）
	Location        string    `gorm:"size:128" json:"location"`              // 用户的地理位置
	RequestMethod   string    `gorm:"size:16" json:"requestMethod"`          // HTTP 请求方法
	RequestID       string    `gorm:"size:64" json:"requestId"`              // 请求 ID
	CreatedAt       time.Time `gorm:"autoCreateTime;index" json:"createdAt"` // 操作时间
}

// GeoLocator 按 IP 解析城市，未配置数据库时返回空
type GeoLocator struct {
	once   sync.Once
	path   string
	reader *geoip2.Reader
}

func NewGeoLocator(path string) *GeoLocator {
	return &GeoLocator{path: path}
}

func (g *GeoLocator) Lookup(ip string) string {
	if g == nil || g.path == "" {
		return ""
	}
	g.once.Do(func() {
		r, err := geoip2.Open(g.path)
		if err != nil {
			logger.Warn("open geoip database failed", zap.String("path", g.path), zap.Error(err))
			return
		}
		g.reader = r
	})
	if g.reader == nil {
		return ""
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}
	record, err := g.reader.City(parsed)
	if err != nil {
		return ""
	}
	city := record.City.Names["en"]
	if country := record.Country.IsoCode; country != "" {
		if city == "" {
			return country
		}
		return city + ", " + country
	}
	return city
}

func (g *GeoLocator) Close() error {
	if g == nil || g.reader == nil {
		return nil
	}
	return g.reader.Close()
}

// OperationLogMiddleware 请求处理完成后记录增删改操作，GET 请求不记录
func OperationLogMiddleware(db *gorm.DB, geo *GeoLocator) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		action := actionOf(c.Request.Method)
		if action == "" {
			return
		}
		target := c.FullPath()
		if target == "" {
			// 未匹配的路由不记录
			return
		}

		ua := user_agent.New(c.Request.UserAgent())
		browser, version := ua.Browser()
		device := "desktop"
		if ua.Mobile() {
			device = "mobile"
		} else if ua.Bot() {
			device = "bot"
		}
		ip := c.ClientIP()

		entry := OperationLog{
			UserID:          c.GetString(constants.UserIDField),
			Username:        c.GetString(constants.UsernameField),
			Role:            c.GetString(constants.RoleField),
			Action:          action,
			Target:          target,
			Path:            c.Request.URL.Path,
			Status:          c.Writer.Status(),
			IPAddress:       ip,
			UserAgent:       truncate(c.Request.UserAgent(), 512),
			Device:          device,
			Browser:         strings.TrimSpace(browser + " " + version),
			OperatingSystem: ua.OS(),
			Location:        geo.Lookup(ip),
			RequestMethod:   c.Request.Method,
			RequestID:       c.GetString(constants.RequestIDField),
		}
		if err := CreateOperationLog(db, &entry); err != nil {
			logger.Warn("record operation log failed", zap.Error(err), zap.String("target", target))
		}
	}
}

// CreateOperationLog 创建操作日志
func CreateOperationLog(db *gorm.DB, entry *OperationLog) error {
	return db.Create(entry).Error
}

func actionOf(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
