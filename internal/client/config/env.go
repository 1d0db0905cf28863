package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvAPIURL     = "GOPHTODO_API_URL"
	EnvDatabase   = "GOPHTODO_DB"
	EnvTimeout    = "GOPHTODO_TIMEOUT"
	EnvRPS        = "GOPHTODO_RPS"
	EnvLogBackend = "GOPHTODO_LOG_BACKEND"
	EnvLogLevel   = "GOPHTODO_LOG_LEVEL"
	EnvLogFormat  = "GOPHTODO_LOG_FORMAT"
)

// dotEnvFile is loaded before reading the environment; a missing file is fine.
var dotEnvFile = ".env"

// parseEnv overlays cfg with GOPHTODO_* variables. Variables already present
// in the process environment win over the .env file.
func parseEnv(cfg *Config) error {
	_ = godotenv.Load(dotEnvFile)

	if v := os.Getenv(EnvAPIURL); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv(EnvDatabase); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		cfg.RequestTimeout = d
	}
	if v := os.Getenv(EnvRPS); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRPS, err)
		}
		cfg.RequestsPerSecond = f
	}
	if v := os.Getenv(EnvLogBackend); v != "" {
		cfg.LogBackend = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		cfg.LogFormat = v
	}
	return nil
}
