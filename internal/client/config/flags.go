package config

import (
	"github.com/spf13/pflag"
)

// BindFlags registers the configuration flags on fs. Defaults are taken from
// cfg, so flags only override values that were explicitly passed.
//
// Supported flags:
//
//	-a, --api-url string     base URL of the tasks API
//	-d, --db string          path to the local session database
//	    --timeout duration   per-request timeout
//	    --rps float          client-side request rate limit (0 = off)
//	    --log-backend string slog or zap
//	    --log-level string   debug, info, warn, error
//	    --log-format string  text or json
//	-c, --config string      config file (read earlier by LoadConfig)
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVarP(&cfg.APIBaseURL, "api-url", "a", cfg.APIBaseURL, "base URL of the tasks API")
	fs.StringVarP(&cfg.DatabasePath, "db", "d", cfg.DatabasePath, "path to the local session database")
	fs.DurationVar(&cfg.RequestTimeout, "timeout", cfg.RequestTimeout, "per-request timeout")
	fs.Float64Var(&cfg.RequestsPerSecond, "rps", cfg.RequestsPerSecond, "client-side request rate limit (0 = off)")
	fs.StringVar(&cfg.LogBackend, "log-backend", cfg.LogBackend, "log backend: slog or zap")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: text or json")

	// Parsed earlier by LoadConfig; registered so the parser accepts it.
	fs.StringP("config", "c", "", "path to a JSON or YAML config file")
}
