package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t, "OTEL_SERVICE_NAME", "HTTP_PORT", "STORE_BACKEND", "LOCK_BACKEND", "DB_MAX_OPEN_CONNS",
		"RATE_LIMIT_REQUESTS", "RATE_LIMIT_WINDOW", "KAFKA_BROKERS", "AUTH_REQUIRED", "RECONCILE_INTERVAL", "ENVIRONMENT",
		"TOKEN_TTL", "ADMIN_USERNAME", "ADMIN_PASSWORD", "RECONCILE_MAX_TRACKED")

	cfg := Load()
	assert.Equal(t, "pos-ledger", cfg.ServiceName)
	assert.Equal(t, "8084", cfg.HTTPPort)
	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, LockRedis, cfg.Lock)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 300, cfg.RateLimitRequests)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.AuthRequired)
	assert.Zero(t, cfg.ReconcileInterval)
	assert.Equal(t, 10000, cfg.ReconcileMaxTracked)
	assert.Equal(t, 12*time.Hour, cfg.TokenTTL)
	assert.Empty(t, cfg.AdminUsername)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("LOCK_BACKEND", "local")
	t.Setenv("RATE_LIMIT_REQUESTS", "20")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("KAFKA_ENABLED", "false")
	t.Setenv("AUTH_REQUIRED", "false")
	t.Setenv("TRACE_SAMPLE_RATIO", "0.25")
	t.Setenv("RECONCILE_INTERVAL", "5m")
	t.Setenv("RECONCILE_MAX_TRACKED", "50")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("TOKEN_TTL", "8h")
	t.Setenv("ADMIN_USERNAME", "root")

	cfg := Load()
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, LockLocal, cfg.Lock)
	assert.Equal(t, 20, cfg.RateLimitRequests)
	assert.Equal(t, 30*time.Second, cfg.RateLimitWindow)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.False(t, cfg.KafkaEnabled)
	assert.False(t, cfg.AuthRequired)
	assert.Equal(t, 0.25, cfg.TraceSample)
	assert.Equal(t, 5*time.Minute, cfg.ReconcileInterval)
	assert.Equal(t, 50, cfg.ReconcileMaxTracked)
	assert.Equal(t, 8*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "root", cfg.AdminUsername)
	assert.False(t, cfg.IsDevelopment())
}

func TestMalformedValuesFallBack(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "many")
	t.Setenv("LOCK_BACKOFF", "soon")
	t.Setenv("AUTH_REQUIRED", "maybe")
	t.Setenv("TRACE_SAMPLE_RATIO", "half")

	cfg := Load()
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 100*time.Millisecond, cfg.LockBackoff)
	assert.True(t, cfg.AuthRequired)
	assert.Equal(t, float64(1), cfg.TraceSample)
}
