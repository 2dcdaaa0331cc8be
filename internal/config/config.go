// Package config defines configuration parsing and helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"dev"`
	Port   int    `env:"PORT" envDefault:"8080"`

	// KV adapter (Redis-compatible) connection.
	KVEnabled        bool          `env:"KV_ENABLED" envDefault:"false"`
	KVHost           string        `env:"KV_HOST" envDefault:"localhost"`
	KVPort           int           `env:"KV_PORT" envDefault:"6379"`
	KVDB             int           `env:"KV_DB" envDefault:"0"`
	KVUser           string        `env:"KV_USER"`
	KVPassword       string        `env:"KV_PASSWORD"`
	KVTLS            bool          `env:"KV_TLS" envDefault:"false"`
	KVConnectTimeout time.Duration `env:"KV_CONNECT_TIMEOUT_S" envDefault:"1500ms"`
	KVOpTimeout      time.Duration `env:"KV_OP_TIMEOUT_S" envDefault:"2s"`
	KVMaxConns       int           `env:"KV_MAX_CONNS" envDefault:"20"`

	// Hybrid recommender tuning.
	ContentWeight   float64 `env:"CONTENT_WEIGHT" envDefault:"0.5"`
	ExcludeSeen     bool    `env:"EXCLUDE_SEEN" envDefault:"true"`
	DefaultCurrency string  `env:"DEFAULT_CURRENCY" envDefault:"COP"`

	// Product cache.
	CacheTTL     time.Duration `env:"CACHE_TTL_S" envDefault:"3600s"`
	CachePrefix  string        `env:"CACHE_PREFIX" envDefault:"product:"`
	CacheBGTasks bool          `env:"CACHE_BG_TASKS" envDefault:"true"`

	// Event store.
	EventCacheTTL      time.Duration `env:"EVENT_CACHE_TTL_S" envDefault:"300s"`
	EventBufferSize    int           `env:"EVENT_BUFFER_SIZE" envDefault:"200"`
	EventFlushInterval time.Duration `env:"EVENT_FLUSH_INTERVAL_S" envDefault:"30s"`
	EventFallbackDir   string        `env:"EVENT_FALLBACK_DIR"`
	// EventKafkaBrokers opts the event store into an additional async publish
	// to a Kafka/Redpanda sink alongside its normal KV-buffered write path.
	EventKafkaBrokers []string `env:"EVENT_KAFKA_BROKERS" envSeparator:","`

	// Remote collaborative engine / catalog client.
	CollaborativeBaseURL string        `env:"COLLABORATIVE_BASE_URL"`
	CollaborativeTimeout time.Duration `env:"COLLABORATIVE_TIMEOUT_S" envDefault:"3s"`
	CollaborativeRPS     float64       `env:"COLLABORATIVE_RATE_PER_SEC" envDefault:"20"`
	CollaborativeBurst   int           `env:"COLLABORATIVE_BURST" envDefault:"10"`

	// Optional durable profile mirror (Postgres), never on the read hot path.
	ProfileMirrorDSN string `env:"PROFILE_MIRROR_DSN"`

	// Observability.
	OTLPEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	OTELServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"retail-reco-core"`

	AdminUsername      string `env:"ADMIN_USERNAME"`
	AdminPassword      string `env:"ADMIN_PASSWORD"`
	AdminSessionSecret string `env:"ADMIN_SESSION_SECRET"`

	CORSAllowOrigins      string        `env:"CORS_ALLOW_ORIGINS" envDefault:"*"`
	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"5s"`
	HTTPReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	HTTPIdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`

	// Retry/backoff, used by the Service Factory's KV reconnect
	// (RetryKVConnect; see RetryConfig).
	RetryMaxRetries   int           `env:"RETRY_MAX_RETRIES" envDefault:"3"`
	RetryInitialDelay time.Duration `env:"RETRY_INITIAL_DELAY" envDefault:"2s"`
	RetryMaxDelay     time.Duration `env:"RETRY_MAX_DELAY" envDefault:"30s"`
	RetryMultiplier   float64       `env:"RETRY_MULTIPLIER" envDefault:"2.0"`
	RetryJitter       bool          `env:"RETRY_JITTER" envDefault:"true"`
	// DLQ configuration for the asynq background task plane.
	DLQMaxAge          time.Duration `env:"DLQ_MAX_AGE" envDefault:"168h"`
	DLQCleanupInterval time.Duration `env:"DLQ_CLEANUP_INTERVAL" envDefault:"24h"`
}

// AdminEnabled returns true if admin features should be enabled.
func (c Config) AdminEnabled() bool {
	return c.AdminUsername != "" && c.AdminPassword != "" && c.AdminSessionSecret != ""
}

// Load parses environment variables into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	return cfg, nil
}

// IsDev reports whether the app is running in development mode.
func (c Config) IsDev() bool { return strings.ToLower(c.AppEnv) == "dev" }

// IsProd reports whether the app is running in production mode.
func (c Config) IsProd() bool { return strings.ToLower(c.AppEnv) == "prod" }

// IsTest reports whether the app is running in test mode.
func (c Config) IsTest() bool { return strings.ToLower(c.AppEnv) == "test" }
