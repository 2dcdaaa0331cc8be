package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.AppEnv)
	assert.Equal(t, 8080, cfg.Port)

	assert.False(t, cfg.KVEnabled)
	assert.Equal(t, "localhost", cfg.KVHost)
	assert.Equal(t, 6379, cfg.KVPort)
	assert.Equal(t, 0, cfg.KVDB)
	assert.False(t, cfg.KVTLS)
	assert.Equal(t, 1500*time.Millisecond, cfg.KVConnectTimeout)
	assert.Equal(t, 2*time.Second, cfg.KVOpTimeout)
	assert.Equal(t, 20, cfg.KVMaxConns)

	assert.Equal(t, 0.5, cfg.ContentWeight)
	assert.True(t, cfg.ExcludeSeen)
	assert.Equal(t, "COP", cfg.DefaultCurrency)

	assert.Equal(t, 3600*time.Second, cfg.CacheTTL)
	assert.Equal(t, "product:", cfg.CachePrefix)
	assert.True(t, cfg.CacheBGTasks)

	assert.Equal(t, 300*time.Second, cfg.EventCacheTTL)
	assert.Equal(t, 200, cfg.EventBufferSize)
	assert.Equal(t, 30*time.Second, cfg.EventFlushInterval)
	assert.Equal(t, "", cfg.EventFallbackDir)

	assert.Equal(t, "", cfg.OTLPEndpoint)
	assert.Equal(t, "retail-reco-core", cfg.OTELServiceName)
	assert.Equal(t, "*", cfg.CORSAllowOrigins)
	assert.Equal(t, 5*time.Second, cfg.ServerShutdownTimeout)
	assert.Equal(t, 15*time.Second, cfg.HTTPReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.HTTPWriteTimeout)
	assert.Equal(t, 60*time.Second, cfg.HTTPIdleTimeout)
}

func TestLoad_OverridesFromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("PORT", "9090")
	t.Setenv("KV_ENABLED", "true")
	t.Setenv("KV_HOST", "redis.internal")
	t.Setenv("KV_PORT", "6380")
	t.Setenv("KV_DB", "2")
	t.Setenv("KV_TLS", "true")
	t.Setenv("CONTENT_WEIGHT", "0.75")
	t.Setenv("EXCLUDE_SEEN", "false")
	t.Setenv("DEFAULT_CURRENCY", "USD")
	t.Setenv("CACHE_TTL_S", "7200s")
	t.Setenv("CACHE_PREFIX", "reco:")
	t.Setenv("EVENT_BUFFER_SIZE", "500")
	t.Setenv("EVENT_FALLBACK_DIR", "/var/lib/reco/fallback")
	t.Setenv("EVENT_KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("ADMIN_USERNAME", "admin")
	t.Setenv("ADMIN_PASSWORD", "password")
	t.Setenv("ADMIN_SESSION_SECRET", "secret")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://example.com")
	t.Setenv("SERVER_SHUTDOWN_TIMEOUT", "10s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.AppEnv)
	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.KVEnabled)
	assert.Equal(t, "redis.internal", cfg.KVHost)
	assert.Equal(t, 6380, cfg.KVPort)
	assert.Equal(t, 2, cfg.KVDB)
	assert.True(t, cfg.KVTLS)
	assert.Equal(t, 0.75, cfg.ContentWeight)
	assert.False(t, cfg.ExcludeSeen)
	assert.Equal(t, "USD", cfg.DefaultCurrency)
	assert.Equal(t, 7200*time.Second, cfg.CacheTTL)
	assert.Equal(t, "reco:", cfg.CachePrefix)
	assert.Equal(t, 500, cfg.EventBufferSize)
	assert.Equal(t, "/var/lib/reco/fallback", cfg.EventFallbackDir)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.EventKafkaBrokers)
	assert.Equal(t, "admin", cfg.AdminUsername)
	assert.Equal(t, "password", cfg.AdminPassword)
	assert.Equal(t, "secret", cfg.AdminSessionSecret)
	assert.Equal(t, "https://example.com", cfg.CORSAllowOrigins)
	assert.Equal(t, 10*time.Second, cfg.ServerShutdownTimeout)
	assert.True(t, cfg.AdminEnabled())
	assert.True(t, cfg.IsProd())
	assert.False(t, cfg.IsDev())
}

func TestIsTest(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsTest())
	assert.False(t, cfg.IsDev())
	assert.False(t, cfg.IsProd())
}
