package config

import (
	"CityWatch/pkg/logger"
	"CityWatch/pkg/util"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
)

// config/config.go
type Config struct {
	DBDriver           string `env:"DB_DRIVER" validate:"omitempty,oneof=sqlite mysql pg postgres sqlserver mssql"`
	DSN                string `env:"DSN"`
	Log                logger.LogConfig
	Addr               string `env:"ADDR" validate:"required"`
	Mode               string `env:"MODE" validate:"oneof=debug release test"`
	Timezone           string `env:"TIMEZONE"`
	APIPrefix          string `env:"API_PREFIX" validate:"required,startswith=/"`
	AuthPrefix         string `env:"AUTH_PREFIX" validate:"required"`
	MonitorPrefix      string `env:"MONITOR_PREFIX"`
	AllowOrigins       []string
	SessionSecret      string `env:"SESSION_SECRET" validate:"required,min=16"`
	SessionExpireDays  int    `env:"SESSION_EXPIRE_DAYS" validate:"gte=1"`
	TokenTTLHours      int    `env:"TOKEN_TTL_HOURS" validate:"gte=1"`
	AutoApproveCitizen bool   `env:"AUTO_APPROVE_CITIZENS"`
	AdminEmail         string `env:"ADMIN_EMAIL" validate:"omitempty,email"`
	AdminPassword      string `env:"ADMIN_PASSWORD"`

	CacheType     string `env:"CACHE_TYPE" validate:"oneof=local gocache redis"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"`

	RateLimit     string `env:"RATE_LIMIT"`
	AuthRateLimit string `env:"AUTH_RATE_LIMIT"`

	StorageKind    string `env:"STORAGE_KIND" validate:"oneof=local minio"`
	UploadDir      string `env:"UPLOAD_DIR"`
	MaxUploadMB    int    `env:"MAX_UPLOAD_MB" validate:"gte=1"`
	MinioEndpoint  string `env:"MINIO_ENDPOINT" validate:"required_if=StorageKind minio"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY"`
	MinioBucket    string `env:"MINIO_BUCKET" validate:"required_if=StorageKind minio"`
	MinioUseSSL    bool   `env:"MINIO_USE_SSL"`

	SearchEnabled bool   `env:"SEARCH_ENABLED"`
	SearchPath    string `env:"SEARCH_PATH"`

	BackupEnabled  bool   `env:"BACKUP_ENABLED"`
	BackupPath     string `env:"BACKUP_PATH"`
	BackupSchedule string `env:"BACKUP_SCHEDULE"`

	NotificationRetentionDays int    `env:"NOTIFICATION_RETENTION_DAYS"`
	PendingAccountTTLDays     int    `env:"PENDING_ACCOUNT_TTL_DAYS"`
	ShiftReminderMinutes      int    `env:"SHIFT_REMINDER_MINUTES"`
	DashboardCacheSeconds     int    `env:"DASHBOARD_CACHE_SECONDS"`
	SSEPingSeconds            int    `env:"SSE_PING_SECONDS"`
	SSEBroker                 string `env:"SSE_BROKER" validate:"oneof=local redis"`

	GeoIPDB      string `env:"GEOIP_DB"`
	APISecretKey string `env:"API_SECRET_KEY"`
}

var GlobalConfig *Config

func Load() error {
	// 1. 根据环境加载 .env 文件
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development" // 默认使用开发环境
	}
	err := util.LoadEnv(env)
	if err != nil {
		log.Printf("Failed to load .env file: %v", err)
	}

	// 2. 加载全局配置
	cfg := &Config{
		DBDriver:           util.GetEnv("DB_DRIVER"),
		DSN:                util.GetEnv("DSN"),
		Addr:               util.GetEnv("ADDR"),
		Mode:               util.GetEnv("MODE"),
		Timezone:           util.GetEnv("TIMEZONE"),
		APIPrefix:          util.GetEnv("API_PREFIX"),
		AuthPrefix:         util.GetEnv("AUTH_PREFIX"),
		MonitorPrefix:      util.GetEnv("MONITOR_PREFIX"),
		AllowOrigins:       util.GetStringsEnv("ALLOW_ORIGINS"),
		SessionSecret:      util.GetEnv("SESSION_SECRET"),
		SessionExpireDays:  int(util.GetIntEnv("SESSION_EXPIRE_DAYS")),
		TokenTTLHours:      int(util.GetIntEnv("TOKEN_TTL_HOURS")),
		AutoApproveCitizen: os.Getenv("AUTO_APPROVE_CITIZENS") == "" || util.GetBoolEnv("AUTO_APPROVE_CITIZENS"),
		AdminEmail:         util.GetEnv("ADMIN_EMAIL"),
		AdminPassword:      util.GetEnv("ADMIN_PASSWORD"),
		Log: logger.LogConfig{
			Level:      util.GetEnv("LOG_LEVEL"),
			Filename:   util.GetEnv("LOG_FILENAME"),
			MaxSize:    int(util.GetIntEnv("LOG_MAX_SIZE")),
			MaxAge:     int(util.GetIntEnv("LOG_MAX_AGE")),
			MaxBackups: int(util.GetIntEnv("LOG_MAX_BACKUPS")),
		},
		CacheType:                 util.GetEnv("CACHE_TYPE"),
		RedisAddr:                 util.GetEnv("REDIS_ADDR"),
		RedisPassword:             util.GetEnv("REDIS_PASSWORD"),
		RedisDB:                   int(util.GetIntEnv("REDIS_DB")),
		RateLimit:                 util.GetEnv("RATE_LIMIT"),
		AuthRateLimit:             util.GetEnv("AUTH_RATE_LIMIT"),
		StorageKind:               util.GetEnv("STORAGE_KIND"),
		UploadDir:                 util.GetEnv("UPLOAD_DIR"),
		MaxUploadMB:               int(util.GetIntEnv("MAX_UPLOAD_MB")),
		MinioEndpoint:             util.GetEnv("MINIO_ENDPOINT"),
		MinioAccessKey:            util.GetEnv("MINIO_ACCESS_KEY"),
		MinioSecretKey:            util.GetEnv("MINIO_SECRET_KEY"),
		MinioBucket:               util.GetEnv("MINIO_BUCKET"),
		MinioUseSSL:               util.GetBoolEnv("MINIO_USE_SSL"),
		SearchEnabled:             os.Getenv("SEARCH_ENABLED") == "" || util.GetBoolEnv("SEARCH_ENABLED"),
		SearchPath:                util.GetEnv("SEARCH_PATH"),
		BackupEnabled:             util.GetBoolEnv("BACKUP_ENABLED"),
		BackupPath:                util.GetEnv("BACKUP_PATH"),
		BackupSchedule:            util.GetEnv("BACKUP_SCHEDULE"),
		NotificationRetentionDays: int(util.GetIntEnv("NOTIFICATION_RETENTION_DAYS")),
		PendingAccountTTLDays:     int(util.GetIntEnv("PENDING_ACCOUNT_TTL_DAYS")),
		ShiftReminderMinutes:      int(util.GetIntEnv("SHIFT_REMINDER_MINUTES")),
		DashboardCacheSeconds:     int(util.GetIntEnv("DASHBOARD_CACHE_SECONDS")),
		SSEPingSeconds:            int(util.GetIntEnv("SSE_PING_SECONDS")),
		SSEBroker:                 util.GetEnv("SSE_BROKER"),
		GeoIPDB:                   util.GetEnv("GEOIP_DB"),
		APISecretKey:              util.GetEnv("API_SECRET_KEY"),
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	GlobalConfig = cfg
	return nil
}

// Default 返回全部使用默认值的配置，测试与 CLI 使用
func Default() *Config {
	cfg := &Config{AutoApproveCitizen: true, SearchEnabled: true}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	setDefault(&c.DBDriver, "sqlite")
	setDefault(&c.Addr, ":8080")
	setDefault(&c.Mode, "release")
	setDefault(&c.Timezone, "Local")
	setDefault(&c.APIPrefix, "/api")
	setDefault(&c.AuthPrefix, "/auth")
	setDefault(&c.MonitorPrefix, "/metrics")
	setDefault(&c.SessionSecret, "citywatch-insecure-dev-secret")
	setDefault(&c.CacheType, "gocache")
	setDefault(&c.RedisAddr, "localhost:6379")
	setDefault(&c.RateLimit, "300-M")
	setDefault(&c.AuthRateLimit, "10-M")
	setDefault(&c.StorageKind, "local")
	setDefault(&c.UploadDir, "./data/uploads")
	setDefault(&c.BackupPath, "./data/backup")
	setDefault(&c.BackupSchedule, "0 3 * * *")
	setDefault(&c.SSEBroker, "local")
	setDefaultInt(&c.SessionExpireDays, 7)
	setDefaultInt(&c.TokenTTLHours, 24)
	setDefaultInt(&c.MaxUploadMB, 10)
	setDefaultInt(&c.NotificationRetentionDays, 30)
	setDefaultInt(&c.PendingAccountTTLDays, 14)
	setDefaultInt(&c.ShiftReminderMinutes, 60)
	setDefaultInt(&c.DashboardCacheSeconds, 30)
	setDefaultInt(&c.SSEPingSeconds, 25)
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate 校验配置项
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

func setDefault(v *string, def string) {
	if *v == "" {
		*v = def
	}
}

func setDefaultInt(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}
