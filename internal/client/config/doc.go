// Package config loads runtime configuration for the gophtodo client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file selected via -c or --config. Files ending
//     in .yaml/.yml are read as YAML, anything else as JSON.
//  3. Environment variables, after loading an optional .env file.
//  4. Command-line flags registered with BindFlags, which override all of the above.
//
// # File schema
//
// Durations use timex.Duration, so values can be strings like "5s" or
// integer nanoseconds:
//
//	{
//	  "api_base_url": "http://localhost:3000/api/v1",
//	  "database_path": "gophtodo.db",
//	  "request_timeout": "10s",
//	  "requests_per_second": 5,
//	  "log_backend": "zap",
//	  "log_level": "debug",
//	  "log_format": "json"
//	}
//
// # Environment
//
//	GOPHTODO_API_URL, GOPHTODO_DB, GOPHTODO_TIMEOUT, GOPHTODO_RPS,
//	GOPHTODO_LOG_BACKEND, GOPHTODO_LOG_LEVEL, GOPHTODO_LOG_FORMAT
package config
