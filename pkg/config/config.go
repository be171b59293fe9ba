package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"flash-sniper/internal/risk"
)

// Config holds environment-driven settings for the sniper.
type Config struct {
	// OKX credentials
	APIKey     string
	SecretKey  string
	Passphrase string

	// Demo trading endpoints plus the x-simulated-trading header.
	SimulationMode bool
	// Optional HTTP CONNECT proxy, e.g. http://127.0.0.1:7890
	ProxyURL string

	// Logging
	LogLevel string
	LogFile  string

	// Journal database
	DBPath string

	// Status API listen address; empty disables it.
	HTTPAddr string

	// Strategy parameters and watch-list (yaml). Missing file means defaults.
	StrategyFile string

	SizingMode          string // "fixed" (default) or "all_in"
	ReconnectMaxBackoff time.Duration
	TimeSync            bool
}

// ErrMissingCredentials is returned when any OKX credential is absent.
var ErrMissingCredentials = errors.New("missing OKX credentials (OKX_API_KEY, OKX_SECRET_KEY, OKX_PASSPHRASE)")

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	cfg := &Config{
		APIKey:              os.Getenv("OKX_API_KEY"),
		SecretKey:           os.Getenv("OKX_SECRET_KEY"),
		Passphrase:          os.Getenv("OKX_PASSPHRASE"),
		SimulationMode:      getEnvBool("SIMULATION_MODE", true),
		ProxyURL:            strings.TrimSpace(os.Getenv("PROXY_URL")),
		LogLevel:            strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFile:             getEnv("LOG_FILE", ""),
		DBPath:              getEnv("DB_PATH", "./data/sniper.db"),
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		StrategyFile:        getEnv("STRATEGY_FILE", "strategy.yaml"),
		SizingMode:          strings.ToLower(getEnv("SIZING_MODE", risk.SizingFixed)),
		ReconnectMaxBackoff: getEnvDuration("RECONNECT_MAX_BACKOFF", 30*time.Second),
		TimeSync:            getEnvBool("TIME_SYNC", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and enumerations.
func (c *Config) Validate() error {
	if c.APIKey == "" || c.SecretKey == "" || c.Passphrase == "" {
		return ErrMissingCredentials
	}
	switch c.SizingMode {
	case risk.SizingFixed, risk.SizingAllIn:
	default:
		return fmt.Errorf("invalid SIZING_MODE %q (want %s or %s)", c.SizingMode, risk.SizingFixed, risk.SizingAllIn)
	}
	if c.ReconnectMaxBackoff < time.Second {
		return fmt.Errorf("RECONNECT_MAX_BACKOFF must be at least 1s, got %s", c.ReconnectMaxBackoff)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		// Bare integers are seconds.
		if i, err := strconv.Atoi(v); err == nil {
			return time.Duration(i) * time.Second
		}
	}
	return def
}
