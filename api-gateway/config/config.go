package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ServiceConfig describes one upstream behind the gateway. A service may run
// several instances; requests are spread across the healthy ones.
type ServiceConfig struct {
	Name        string
	Instances   []string
	Timeout     time.Duration
	HealthCheck string
	Retries     int
}

// GatewayConfig holds the main gateway configuration
type GatewayConfig struct {
	Port           string
	Services       map[string]ServiceConfig
	JWTSecret      string
	JWTIssuer      string
	AuthRequired   bool
	CORSOrigins    string
	HealthInterval time.Duration

	BreakerMaxFailures int
	BreakerTimeout     time.Duration
}

// LoadConfig loads the gateway configuration
func LoadConfig() *GatewayConfig {
	return &GatewayConfig{
		Port: getEnv("GATEWAY_PORT", "8000"),
		Services: map[string]ServiceConfig{
			"ledger": {
				Name:        "pos-ledger",
				Instances:   splitList(getEnv("POS_LEDGER_URLS", "http://localhost:8084")),
				Timeout:     getDuration("POS_LEDGER_TIMEOUT", 30*time.Second),
				HealthCheck: "/health",
				Retries:     getInt("POS_LEDGER_RETRIES", 3),
			},
			"reconciler": {
				Name:        "pos-reconciler",
				Instances:   splitList(getEnv("POS_RECONCILER_URLS", "http://localhost:9184")),
				Timeout:     5 * time.Second,
				HealthCheck: "/health",
			},
		},
		JWTSecret:      getEnv("JWT_SECRET", "change-me"),
		JWTIssuer:      getEnv("JWT_ISSUER", "pos-ledger"),
		AuthRequired:   getEnv("AUTH_REQUIRED", "true") != "false",
		CORSOrigins:    getEnv("CORS_ALLOWED_ORIGINS", "*"),
		HealthInterval: getDuration("HEALTH_INTERVAL", 15*time.Second),

		BreakerMaxFailures: getInt("BREAKER_MAX_FAILURES", 5),
		BreakerTimeout:     getDuration("BREAKER_TIMEOUT", 30*time.Second),
	}
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimRight(strings.TrimSpace(part), "/"); part != "" {
			out = append(out, part)
		}
	}
	return out
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

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}
