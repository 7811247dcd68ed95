package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	RedisURL           string
	CORSAllowedOrigins []string

	ERPBaseURL       string
	ERPUsername      string
	ERPPassword      string
	ERPCompanyNumber string
	ERPTimeout       time.Duration

	OutletPriceListID string

	CommerceEndpoint string
	CommerceToken    string

	ItemTimeout  time.Duration
	BatchTimeout time.Duration
	CacheTTL     time.Duration

	RateLimitMax    int
	RateLimitWindow time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		ERPBaseURL:         strings.TrimRight(strings.TrimSpace(k.String("ERP_BASE_URL")), "/"),
		ERPUsername:        k.String("ERP_USERNAME"),
		ERPPassword:        k.String("ERP_PASSWORD"),
		ERPCompanyNumber:   k.String("ERP_COMPANY_NUMBER"),
		ERPTimeout:         parseDuration(k.String("ERP_TIMEOUT"), "10s"),
		OutletPriceListID:  strings.TrimSpace(k.String("ERP_OUTLET_PRICE_LIST_ID")),
		CommerceEndpoint:   strings.TrimSpace(k.String("COMMERCE_GRAPHQL_ENDPOINT")),
		CommerceToken:      k.String("COMMERCE_API_TOKEN"),
		ItemTimeout:        parseDuration(k.String("PRICING_ITEM_TIMEOUT"), "30s"),
		BatchTimeout:       parseDuration(k.String("PRICING_BATCH_TIMEOUT"), "120s"),
		CacheTTL:           parseDuration(k.String("PRICING_CACHE_TTL"), "60s"),
		RateLimitMax:       intOrDefault(k.Int("RATE_LIMIT_MAX"), 120),
		RateLimitWindow:    parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
	}

	if cfg.ERPBaseURL == "" {
		return nil, errors.New("ERP_BASE_URL is required")
	}
	if cfg.ERPUsername == "" || cfg.ERPPassword == "" {
		return nil, errors.New("ERP_USERNAME and ERP_PASSWORD are required")
	}
	if cfg.OutletPriceListID == "" {
		return nil, errors.New("ERP_OUTLET_PRICE_LIST_ID is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func intOrDefault(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
