package handlers

import (
	"net/http"
	"time"

	"CityWatch/internal/listeners"
	"CityWatch/internal/models"
	"CityWatch/pkg/cache"
	"CityWatch/pkg/config"
	constants "CityWatch/pkg/constant"
	"CityWatch/pkg/logger"
	"CityWatch/pkg/metrics"
	"CityWatch/pkg/middleware"
	"CityWatch/pkg/search"
	"CityWatch/pkg/sse"
	stores "CityWatch/pkg/storage"
	"CityWatch/pkg/util"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"gorm.io/gorm"
)

// Deps 处理器依赖, 为空的项使用默认实现
type Deps struct {
	Config       *config.Config
	Signals      *util.Signals
	Hub          *sse.Hub
	Notifier     *listeners.Notifier
	Cache        cache.Cache
	Store        stores.Store
	Search       search.Engine
	Metrics      *metrics.Metrics
	Geo          *middleware.GeoLocator
	LimiterStore limiter.Store
}

type Handlers struct {
	db       *gorm.DB
	cfg      *config.Config
	sig      *util.Signals
	hub      *sse.Hub
	notifier *listeners.Notifier
	cache    cache.Cache
	store    stores.Store
	search   search.Engine
	metrics  *metrics.Metrics
	geo      *middleware.GeoLocator
	auth     *models.Auth
	limiter  *middleware.RateLimiter
	idem     middleware.IdemStore
}

func NewHandlers(db *gorm.DB, deps Deps) *Handlers {
	h := &Handlers{
		db:       db,
		cfg:      deps.Config,
		sig:      deps.Signals,
		hub:      deps.Hub,
		notifier: deps.Notifier,
		cache:    deps.Cache,
		store:    deps.Store,
		search:   deps.Search,
		metrics:  deps.Metrics,
		geo:      deps.Geo,
	}
	if h.cfg == nil {
		h.cfg = config.GlobalConfig
	}
	if h.cfg == nil {
		h.cfg = config.Default()
	}
	if h.sig == nil {
		h.sig = util.Sig()
	}
	if h.hub == nil {
		h.hub = sse.NewHub(time.Duration(h.cfg.SSEPingSeconds) * time.Second)
	}
	if h.notifier == nil {
		h.notifier = listeners.NewNotifier(db, h.hub, h.metrics)
	}
	if h.cache == nil {
		h.cache = cache.NewGoCache(cache.LocalConfig{})
	}
	if h.geo == nil {
		h.geo = middleware.NewGeoLocator(h.cfg.GeoIPDB)
	}
	h.auth = models.NewAuth(db, h.cfg.SessionSecret, time.Duration(h.cfg.TokenTTLHours)*time.Hour)
	h.idem = middleware.NewCacheIdemStore(h.cache)
	h.limiter = middleware.NewRateLimiter(h.limiterConfig(), deps.LimiterStore)
	if h.metrics != nil {
		h.limiter.WithObserver(middleware.NewPrometheusObserver(h.metrics.Registry()))
	}
	return h
}

func (h *Handlers) Auth() *models.Auth { return h.auth }

func (h *Handlers) limiterConfig() middleware.RateLimiterConfig {
	api, auth := h.cfg.APIPrefix, h.cfg.APIPrefix+h.cfg.AuthPrefix
	return middleware.RateLimiterConfig{
		Rate: h.cfg.RateLimit,
		PerRouteRates: map[string]string{
			auth + "/login":          h.cfg.AuthRateLimit,
			auth + "/register":       h.cfg.AuthRateLimit,
			api + "/public/reports":  h.cfg.AuthRateLimit,
			api + "/public/feedback": h.cfg.AuthRateLimit,
		},
		Identifier: "ip",
		SkipPaths:  []string{api + "/system/health", api + "/realtime/stream"},
		AddHeaders: true,
	}
}

func (h *Handlers) Register(engine *gin.Engine) error {
	engine.Use(middleware.RequestID(), logger.GinLogger(), logger.GinRecovery(true), middleware.CORS(h.cfg.AllowOrigins))
	if h.metrics != nil {
		engine.Use(metrics.MonitorMiddleware(h.metrics))
		if h.cfg.MonitorPrefix != "" {
			engine.GET(h.cfg.MonitorPrefix, gin.WrapH(h.metrics.Handler()))
		}
	}
	store := cookie.NewStore([]byte(h.cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   h.cfg.SessionExpireDays * 24 * 3600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	engine.Use(sessions.Sessions(constants.SessionName, store))

	r := engine.Group(h.cfg.APIPrefix)

	// Register Global Singleton DB
	r.Use(middleware.InjectDB(h.db), h.limiter.Middleware(), middleware.OperationLogMiddleware(h.db, h.geo))

	h.registerSystemRoutes(r)
	h.registerAuthRoutes(r)
	h.registerPublicRoutes(r)
	h.registerIntegrationRoutes(r)

	authed := r.Group("", h.auth.AuthRequired)
	objs := h.GetObjs()
	for i := range objs {
		if err := objs[i].Build(h.db); err != nil {
			return err
		}
	}
	byName := map[string]*WebObject{}
	for i := range objs {
		byName[objs[i].Resource] = &objs[i]
	}
	// 自定义动作先于通用 CRUD 注册
	h.registerUserRoutes(authed)
	h.registerPendingAccountRoutes(authed)
	h.registerCrimeRoutes(authed)
	h.registerIncidentRoutes(authed)
	h.registerPatrolRoutes(authed, byName[models.ResPatrolLogs])
	h.registerAssetRoutes(authed)
	h.registerFeedbackRoutes(authed)
	h.registerScheduleRoutes(authed)
	h.registerAttachmentRoutes(authed, byName)
	h.registerRealtimeRoutes(authed)
	h.registerDashboardRoutes(authed)
	h.registerSearchRoutes(authed)
	for i := range objs {
		h.registerObject(authed, &objs[i])
	}
	return nil
}

func (h *Handlers) registerSystemRoutes(r *gin.RouterGroup) {
	system := r.Group("system")
	{
		system.GET("/health", h.HealthCheck)

		system.GET("/rate-limiter", h.auth.AuthRequired, models.RoleRequired(models.RoleAdmin), h.GetRateLimiterConfig)

		system.PUT("/rate-limiter", h.auth.AuthRequired, models.RoleRequired(models.RoleAdmin), h.UpdateRateLimiterConfig)
	}
}

func (h *Handlers) registerAuthRoutes(r *gin.RouterGroup) {
	auth := r.Group(h.cfg.AuthPrefix)
	{
		auth.POST("/register", h.handleUserSignup)

		auth.POST("/login", h.handleUserSignin)

		auth.POST("/logout", h.handleUserLogout)

		auth.GET("/me", h.auth.AuthRequired, h.handleUserInfo)

		auth.PUT("/me", h.auth.AuthRequired, h.handleUserUpdate)

		auth.PUT("/me/password", h.auth.AuthRequired, h.handleChangePassword)
	}
}

func (h *Handlers) registerPublicRoutes(r *gin.RouterGroup) {
	public := r.Group("public")
	idem := middleware.IdempotencyMiddleware(middleware.IdempotencyConfig{Store: h.idem, TTL: 10 * time.Minute})
	{
		public.POST("/reports", idem, h.handlePublicReport)

		public.POST("/feedback", idem, h.handlePublicFeedback)
	}
}

func (h *Handlers) registerIntegrationRoutes(r *gin.RouterGroup) {
	integrations := r.Group("integrations", middleware.SignVerifyMiddleware(h.cfg.APISecretKey))
	{
		integrations.POST("/incidents", h.handleIntegrationIncident)
	}
}
