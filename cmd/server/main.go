package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	handlers "CityWatch/internal/handler"
	"CityWatch/internal/listeners"
	"CityWatch/internal/models"
	"CityWatch/internal/tasks"
	"CityWatch/pkg/cache"
	"CityWatch/pkg/config"
	"CityWatch/pkg/logger"
	"CityWatch/pkg/metrics"
	"CityWatch/pkg/middleware"
	"CityWatch/pkg/scheduler"
	"CityWatch/pkg/search"
	"CityWatch/pkg/sse"
	stores "CityWatch/pkg/storage"
	"CityWatch/pkg/util"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	if err := config.Load(); err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg := config.GlobalConfig
	if err := logger.Init(&cfg.Log, cfg.Mode); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()
	gin.SetMode(cfg.Mode)

	if err := run(cfg); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config) error {
	m := metrics.NewMetrics()
	metrics.SetGlobalMetrics(m)

	db, err := openDatabase(cfg, m)
	if err != nil {
		return err
	}
	if admin, created, err := models.EnsureAdmin(db, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return err
	} else if created {
		logger.Info("bootstrap admin created", zap.String("email", admin.Email))
	}

	// redis 客户端由缓存、限流与 SSE 广播共用
	var rdb *redis.Client
	if cfg.CacheType == "redis" || cfg.SSEBroker == "redis" {
		rdb, err = cache.NewRedisClient(cache.RedisConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			return err
		}
		defer rdb.Close()
	}

	var c cache.Cache
	var limiterStore limiter.Store
	if cfg.CacheType == "redis" {
		c = cache.NewRedisCache(rdb, "citywatch:cache:")
		if limiterStore, err = middleware.NewRedisStore(rdb, "citywatch:limiter"); err != nil {
			return err
		}
	} else if c, err = cache.NewCache(cache.Config{Type: cfg.CacheType}); err != nil {
		return err
	}
	defer c.Close()

	store, err := stores.NewStore(stores.Config{
		Kind:      cfg.StorageKind,
		LocalDir:  cfg.UploadDir,
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		return err
	}

	var engine search.Engine
	if cfg.SearchEnabled {
		engine, err = search.New(search.Config{IndexPath: cfg.SearchPath})
		if err != nil {
			return err
		}
		defer engine.Close()
		n, err := listeners.ReindexAll(context.Background(), db, engine)
		if err != nil {
			logger.Warn("rebuild search index failed", zap.Error(err))
		} else {
			logger.Info("search index rebuilt", zap.Int("docs", n))
		}
	}

	hub := sse.NewHub(time.Duration(cfg.SSEPingSeconds) * time.Second).WithObserver(m)
	if cfg.SSEBroker == "redis" {
		if hub, err = hub.WithBroker(sse.NewRedisBroker(rdb, "citywatch:sse")); err != nil {
			return err
		}
	}
	defer hub.Close()

	geo := middleware.NewGeoLocator(cfg.GeoIPDB)
	defer geo.Close()

	sig := util.Sig()
	notifier := listeners.NewNotifier(db, hub, m)
	listeners.Init(sig, notifier, engine, m)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		loc = time.Local
	}
	cr := scheduler.NewCron(loc, 10*time.Minute)
	if err := tasks.NewRunner(db, cfg, notifier, m).Register(cr); err != nil {
		return err
	}
	cr.Start()
	defer cr.Stop()

	h := handlers.NewHandlers(db, handlers.Deps{
		Config:       cfg,
		Signals:      sig,
		Hub:          hub,
		Notifier:     notifier,
		Cache:        c,
		Store:        store,
		Search:       engine,
		Metrics:      m,
		Geo:          geo,
		LimiterStore: limiterStore,
	})
	engineHTTP := gin.New()
	if err := h.Register(engineHTTP); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           engineHTTP,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case s := <-quit:
		logger.Info("shutting down", zap.String("signal", s.String()))
	}

	// 先断开 SSE 长连接, 否则 Shutdown 会一直等待
	_ = hub.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func openDatabase(cfg *config.Config, m *metrics.Metrics) (*gorm.DB, error) {
	db, err := util.InitDatabase(cfg.DBDriver, cfg.DSN, logger.NewGormLogger(cfg.Log.Level, 200*time.Millisecond))
	if err != nil {
		return nil, err
	}
	if err := db.Use(metrics.NewGormPlugin(m)); err != nil {
		return nil, err
	}
	if err := models.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
