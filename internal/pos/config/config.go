package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/tair/pos-ledger/pkg/database"
)

// StoreBackend selects where the ledger lives
type StoreBackend string

const (
	StorePostgres StoreBackend = "postgres"
	StoreMemory   StoreBackend = "memory"
)

// LockBackend selects how per-sale return locks are taken
type LockBackend string

const (
	LockRedis LockBackend = "redis"
	LockLocal LockBackend = "local"
)

// Config holds the POS ledger service configuration
type Config struct {
	ServiceName string
	Environment string
	LogLevel    string

	HTTPPort        string
	GRPCPort        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	Store    StoreBackend
	Database database.Config

	Lock          LockBackend
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockRetries   int
	LockBackoff   time.Duration

	RateLimitRequests int
	RateLimitWindow   time.Duration

	KafkaEnabled bool
	KafkaBrokers []string
	KafkaGroupID string

	JaegerEndpoint string
	TraceSample    float64

	JWTSecret    string
	JWTIssuer    string
	TokenTTL     time.Duration
	AuthRequired bool

	AdminUsername string
	AdminPassword string

	ReconcileInterval   time.Duration
	ReconcileMaxTracked int
}

// Load reads an optional .env file and then the environment. Missing .env is
// not an error; explicit environment variables win over it.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServiceName: getEnv("OTEL_SERVICE_NAME", "pos-ledger"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		HTTPPort:        getEnv("HTTP_PORT", "8084"),
		GRPCPort:        getEnv("GRPC_PORT", "9094"),
		RequestTimeout:  getDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		Store: StoreBackend(getEnv("STORE_BACKEND", string(StorePostgres))),
		Database: database.Config{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "posdb"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),

			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},

		Lock:          LockBackend(getEnv("LOCK_BACKEND", string(LockRedis))),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getInt("REDIS_DB", 0),
		LockRetries:   getInt("LOCK_RETRIES", 50),
		LockBackoff:   getDuration("LOCK_BACKOFF", 100*time.Millisecond),

		RateLimitRequests: getInt("RATE_LIMIT_REQUESTS", 300),
		RateLimitWindow:   getDuration("RATE_LIMIT_WINDOW", time.Minute),

		KafkaEnabled: getBool("KAFKA_ENABLED", true),
		KafkaBrokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "pos-reconciler"),

		JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
		TraceSample:    getFloat("TRACE_SAMPLE_RATIO", 1),

		JWTSecret:    getEnv("JWT_SECRET", "change-me"),
		JWTIssuer:    getEnv("JWT_ISSUER", "pos-ledger"),
		TokenTTL:     getDuration("TOKEN_TTL", 12*time.Hour),
		AuthRequired: getBool("AUTH_REQUIRED", true),

		AdminUsername: getEnv("ADMIN_USERNAME", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		ReconcileInterval:   getDuration("RECONCILE_INTERVAL", 0),
		ReconcileMaxTracked: getInt("RECONCILE_MAX_TRACKED", 10000),
	}
}

// IsDevelopment reports whether the service runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}
