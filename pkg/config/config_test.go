package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "/api", cfg.APIPrefix)
	assert.True(t, cfg.AutoApproveCitizen)
	assert.True(t, cfg.SearchEnabled)
	assert.Equal(t, 10, cfg.MaxUploadMB)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.CacheType = "memcached"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.StorageKind = "minio"
	assert.Error(t, cfg.Validate())
	cfg.MinioEndpoint = "localhost:9000"
	cfg.MinioBucket = "citywatch"
	assert.NoError(t, cfg.Validate())

	cfg = Default()
	cfg.SessionSecret = "short"
	assert.Error(t, cfg.Validate())
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "test-none")
	t.Setenv("ADDR", ":9090")
	t.Setenv("SEARCH_ENABLED", "false")
	t.Setenv("AUTO_APPROVE_CITIZENS", "")
	t.Setenv("ALLOW_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("MAX_UPLOAD_MB", "25")

	require.NoError(t, Load())
	cfg := GlobalConfig
	assert.Equal(t, ":9090", cfg.Addr)
	assert.False(t, cfg.SearchEnabled)
	assert.True(t, cfg.AutoApproveCitizen)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowOrigins)
	assert.Equal(t, 25, cfg.MaxUploadMB)
}
