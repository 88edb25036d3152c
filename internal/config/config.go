// Package config provides centralized configuration for stardb tooling.
// Settings load from environment variables with sensible defaults and are
// validated up front so a misconfigured backend fails fast, before any
// artifact is touched.
package config

import "time"

// Config holds everything a caller needs to construct one storage backend.
type Config struct {
	Storage  StorageConfig
	Database DatabaseConfig
	Logging  LoggingConfig
}

// StorageConfig selects and parameterizes the backend.
type StorageConfig struct {
	// Backend is one of: columnar, text, container, memory, postgres
	// (default: columnar)
	Backend string `env:"STORAGE_BACKEND" default:"columnar"`

	// Root is the storage root: a directory (or bare file path) for the
	// directory backends, the container file for the container backend.
	Root string `env:"STORAGE_ROOT" default:"./data"`

	// Namespace partitions the in-memory backend and names the container
	// backend's root group (default: default)
	Namespace string `env:"STORAGE_NAMESPACE" default:"default"`
}

// DatabaseConfig holds connection settings for the postgres backend.
// Ignored unless STORAGE_BACKEND=postgres.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of pooled connections (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the idle time before a connection closes (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}
