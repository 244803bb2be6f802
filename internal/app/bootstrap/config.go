package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration for the fleet API.
// It merges file defaults and environment overrides to support both local and deployed runs.
type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	// TrustProxy enables X-Forwarded-For client address resolution. Leave
	// false unless a trusted proxy terminates client connections.
	TrustProxy bool

	DatabaseURL string
	RedisURL    string

	TokenSecret string
	// TokenExpiry uses the <number><unit> shorthand (s/m/h/d), e.g. "12h".
	TokenExpiry string

	QuotaWarningRatio float64

	RateLimitRequests int
	RateLimitWindow   time.Duration

	LockoutThreshold int
	LockoutWindow    time.Duration
	LockoutDuration  time.Duration

	MaxDBConns int
}

// configFile mirrors the YAML schema used by configs/default.yaml.
// It is intentionally separate from Config so runtime-only fields stay internal.
type configFile struct {
	Service struct {
		ID         string `yaml:"id"`
		HTTPPort   int    `yaml:"http_port"`
		GRPCPort   int    `yaml:"grpc_port"`
		TrustProxy bool   `yaml:"trust_proxy"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL string `yaml:"postgres_url"`
		RedisURL    string `yaml:"redis_url"`
	} `yaml:"dependencies"`
	Auth struct {
		TokenSecret string `yaml:"token_secret"`
		TokenExpiry string `yaml:"token_expiry"`
	} `yaml:"auth"`
	Quota struct {
		WarningRatio float64 `yaml:"warning_ratio"`
	} `yaml:"quota"`
	Guards struct {
		RateLimitRequests      int `yaml:"rate_limit_requests"`
		RateLimitWindowSeconds int `yaml:"rate_limit_window_seconds"`
		LockoutThreshold       int `yaml:"lockout_threshold"`
		LockoutWindowMinutes   int `yaml:"lockout_window_minutes"`
		LockoutDurationMinutes int `yaml:"lockout_duration_minutes"`
	} `yaml:"guards"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
// This order keeps local bootstrap simple while allowing environment-specific overrides.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:         "fleetcore-api",
		HTTPPort:          8080,
		GRPCPort:          9090,
		TokenExpiry:       "24h",
		QuotaWarningRatio: 0.8,
		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
		LockoutThreshold:  5,
		LockoutWindow:     15 * time.Minute,
		LockoutDuration:   30 * time.Minute,
		MaxDBConns:        20,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Service.TrustProxy {
			cfg.TrustProxy = true
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if f.Auth.TokenSecret != "" {
			cfg.TokenSecret = f.Auth.TokenSecret
		}
		if f.Auth.TokenExpiry != "" {
			cfg.TokenExpiry = f.Auth.TokenExpiry
		}
		if f.Quota.WarningRatio > 0 {
			cfg.QuotaWarningRatio = f.Quota.WarningRatio
		}
		if f.Guards.RateLimitRequests > 0 {
			cfg.RateLimitRequests = f.Guards.RateLimitRequests
		}
		if f.Guards.RateLimitWindowSeconds > 0 {
			cfg.RateLimitWindow = time.Duration(f.Guards.RateLimitWindowSeconds) * time.Second
		}
		if f.Guards.LockoutThreshold > 0 {
			cfg.LockoutThreshold = f.Guards.LockoutThreshold
		}
		if f.Guards.LockoutWindowMinutes > 0 {
			cfg.LockoutWindow = time.Duration(f.Guards.LockoutWindowMinutes) * time.Minute
		}
		if f.Guards.LockoutDurationMinutes > 0 {
			cfg.LockoutDuration = time.Duration(f.Guards.LockoutDurationMinutes) * time.Minute
		}
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.TokenSecret = envOrDefault("TOKEN_SECRET", cfg.TokenSecret)
	cfg.TokenExpiry = envOrDefault("TOKEN_EXPIRY", cfg.TokenExpiry)
	cfg.QuotaWarningRatio = envFloat("QUOTA_WARNING_RATIO", cfg.QuotaWarningRatio)

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.TrustProxy = envBool("TRUST_PROXY", cfg.TrustProxy)
	cfg.MaxDBConns = envInt("DB_MAX_CONNS", cfg.MaxDBConns)

	cfg.RateLimitRequests = envInt("RATE_LIMIT_REQUESTS", cfg.RateLimitRequests)
	cfg.RateLimitWindow = time.Duration(envInt("RATE_LIMIT_WINDOW_SECONDS", int(cfg.RateLimitWindow.Seconds()))) * time.Second
	cfg.LockoutThreshold = envInt("FAILED_LOGIN_THRESHOLD", cfg.LockoutThreshold)
	cfg.LockoutWindow = time.Duration(envInt("LOCKOUT_WINDOW_MINUTES", int(cfg.LockoutWindow.Minutes()))) * time.Minute
	cfg.LockoutDuration = time.Duration(envInt("ACCOUNT_LOCKOUT_MINUTES", int(cfg.LockoutDuration.Minutes()))) * time.Minute

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("missing REDIS_URL")
	}
	if cfg.TokenSecret == "" {
		return Config{}, fmt.Errorf("missing TOKEN_SECRET")
	}

	return cfg, nil
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// envBool parses boolean env vars with safe fallback on empty/invalid values.
func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}

// envFloat parses float env vars with safe fallback on empty/invalid values.
func envFloat(name string, fallback float64) float64 {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}
