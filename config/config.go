package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string // default: 8080

	// Database
	PostgresDSN string

	// Cache
	RedisAddr string

	// Generation backend
	GeminiAPIKey string

	// ModelTiers is the ranked fallback order, most preferred first.
	ModelTiers     []string
	MaxRetries     int           // attempts per model, default: 2
	RequestTimeout time.Duration // per-attempt bound, default: 12s
	BackoffBase    float64       // retry delay multiplier, default: 1.5

	// Observability
	OTELExporterType     string // "stdout" or "otlp"
	OTELExporterEndpoint string // default: "localhost:4317"

	// Rate Limiting
	DefaultRateLimitRPM int64 // AI requests per device per minute, default: 30
}

var defaultModelTiers = []string{
	"gemini-2.0-flash",    // fastest
	"gemini-1.5-flash",    // stable
	"gemini-flash-latest", // last resort
}

func Load() (*Config, error) {
	// Load .env file if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		PostgresDSN:          os.Getenv("POSTGRES_DSN"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		GeminiAPIKey:         os.Getenv("GEMINI_API_KEY"),
		OTELExporterType:     getEnv("OTEL_EXPORTER_TYPE", "stdout"),
		OTELExporterEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
	}

	// Older deployments used numbered key variables
	if cfg.GeminiAPIKey == "" {
		cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY_1")
	}

	if tiers := os.Getenv("MODEL_TIERS"); tiers != "" {
		for _, m := range strings.Split(tiers, ",") {
			if m = strings.TrimSpace(m); m != "" {
				cfg.ModelTiers = append(cfg.ModelTiers, m)
			}
		}
	} else {
		cfg.ModelTiers = defaultModelTiers
	}

	retriesStr := getEnv("MAX_RETRIES", "2")
	retries, err := strconv.Atoi(retriesStr)
	if err != nil || retries < 1 {
		return nil, fmt.Errorf("invalid MAX_RETRIES: %q", retriesStr)
	}
	cfg.MaxRetries = retries

	timeoutStr := getEnv("REQUEST_TIMEOUT", "12s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil || timeout <= 0 {
		return nil, fmt.Errorf("invalid REQUEST_TIMEOUT: %q", timeoutStr)
	}
	cfg.RequestTimeout = timeout

	baseStr := getEnv("BACKOFF_BASE", "1.5")
	base, err := strconv.ParseFloat(baseStr, 64)
	if err != nil || base <= 1.0 {
		return nil, fmt.Errorf("invalid BACKOFF_BASE (must be > 1.0): %q", baseStr)
	}
	cfg.BackoffBase = base

	rpmStr := getEnv("DEFAULT_RATE_LIMIT_RPM", "30")
	rpm, err := strconv.ParseInt(rpmStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_RATE_LIMIT_RPM: %w", err)
	}
	cfg.DefaultRateLimitRPM = rpm

	// Validation
	if cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("POSTGRES_DSN is required")
	}
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("REDIS_ADDR is required")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if len(cfg.ModelTiers) == 0 {
		return nil, fmt.Errorf("MODEL_TIERS must name at least one model")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
