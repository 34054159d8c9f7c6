package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr string
	LogLevel string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	// DatabaseURL selects the Postgres identity store. Empty means the
	// in-memory store, for development only.
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// RedisURL enables the Redis lockout policy and per-IP login throttling.
	// Empty keeps lockout state on the user row.
	RedisURL string

	// If true, /readyz returns 503 unless the DB is configured and reachable.
	ReadinessRequireDB bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr: EnvString("PORTAL_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel: EnvString("PORTAL_LOG_LEVEL", "info"),

		ReadHeaderTimeout: EnvDuration("PORTAL_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("PORTAL_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("PORTAL_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("PORTAL_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("PORTAL_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("PORTAL_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("PORTAL_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("PORTAL_DB_MIN_CONNS", 0),

		RedisURL: EnvString("PORTAL_REDIS_URL", ""),

		ReadinessRequireDB: EnvBool("PORTAL_READINESS_REQUIRE_DB", false),
	}
}
