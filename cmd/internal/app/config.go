package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBSchema    string
	DBMaxConns  int32
	DBMinConns  int32

	UploadDir string

	FeedAllowedOrigins []string

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// Security policy:
	// If true, SEVA_TOKEN_SECRET MUST be at least 32 bytes.
	RequireStrongSecret bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("SEVA_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("SEVA_LOG_LEVEL", "info"),
		LogFormat: EnvString("SEVA_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("SEVA_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("SEVA_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("SEVA_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("SEVA_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("SEVA_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("SEVA_DATABASE_URL", ""),
		DBSchema:    EnvString("SEVA_DB_SCHEMA", "seva"),
		DBMaxConns:  EnvInt32("SEVA_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("SEVA_DB_MIN_CONNS", 0),

		UploadDir: EnvString("SEVA_UPLOAD_DIR", "uploads"),

		FeedAllowedOrigins: EnvCSV("SEVA_FEED_ALLOWED_ORIGINS", ""),

		ReadinessRequireDB: EnvBool("SEVA_READINESS_REQUIRE_DB", false),

		RequireStrongSecret: EnvBool("SEVA_REQUIRE_STRONG_SECRET", false),
	}
}
