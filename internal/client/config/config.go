package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/dmitrijs2005/gophtodo/internal/flagx"
)

// Config holds runtime settings for the gophtodo CLI.
//
// Fields:
//   - APIBaseURL: absolute base URL of the tasks API, e.g. http://localhost:3000/api/v1.
//   - DatabasePath: SQLite file holding the persisted session token.
//   - RequestTimeout: per-request timeout for API calls.
//   - RequestsPerSecond: client-side request pacing; 0 disables it.
//   - LogBackend/LogLevel/LogFormat: see logging.Options.
type Config struct {
	APIBaseURL        string
	DatabasePath      string
	RequestTimeout    time.Duration
	RequestsPerSecond float64
	LogBackend        string
	LogLevel          string
	LogFormat         string
}

var ErrInvalidBaseURL = errors.New("api base url must be an absolute http(s) url")

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://localhost:3000/api/v1"
	c.DatabasePath = "gophtodo.db"
	c.RequestTimeout = 10 * time.Second
	c.RequestsPerSecond = 0
	c.LogBackend = "slog"
	c.LogLevel = "warn"
	c.LogFormat = "text"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// the config file (if one is named in args) and the environment. Flags are
// applied later by the command parser, see BindFlags.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if path := flagx.ConfigFileFlag(args); path != "" {
		if err := parseFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := parseEnv(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports configuration errors that would make every request fail.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidBaseURL, c.APIBaseURL)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second must not be negative: %v", c.RequestsPerSecond)
	}
	return nil
}
