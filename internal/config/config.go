// Package config defines the configuration surface recognized by the
// memory store. Populating it from the environment or a settings
// file is an external collaborator's job; this package only defines the
// shape and its defaults.
package config

import "time"

// Database holds connection parameters for the embedded SQL engine.
type Database struct {
	URL            string
	AuthToken      string
	SyncURL        string
	EncryptionKey  string
	MaxConnections int
	IdleTimeout    time.Duration
}

// Cache holds parameters for the LRU+TTL identity/search cache.
type Cache struct {
	MaxSize        int
	TTL            time.Duration
	UpdateAgeOnGet bool
}

// Vector holds parameters for embedding storage and comparison.
type Vector struct {
	Dimensions int
}

// LogLevel is one of the closed set of supported structured log levels.
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
	LogLevelFatal LogLevel = "fatal"
)

// Config is the full configuration surface for the memory store:
// database, cache, vector, and logging.
type Config struct {
	Database Database
	Cache    Cache
	Vector   Vector
	LogLevel LogLevel
}

// Default returns a Config populated with sensible defaults:
// MaxConnections=10, IdleTimeout=30s, cache MaxSize=1000, TTL=5m,
// UpdateAgeOnGet=true, VectorDimensions=1536.
func Default() Config {
	return Config{
		Database: Database{
			URL:            "file:memory.db",
			MaxConnections: 10,
			IdleTimeout:    30 * time.Second,
		},
		Cache: Cache{
			MaxSize:        1000,
			TTL:            5 * time.Minute,
			UpdateAgeOnGet: true,
		},
		Vector: Vector{
			Dimensions: 1536,
		},
		LogLevel: LogLevelInfo,
	}
}
