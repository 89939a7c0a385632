package config

import "time"

// Config is the root configuration structure for Sendgate.
// It contains all configuration sections for the HTTP server, counter
// storage, quota policy, retention, and telemetry settings.
type Config struct {
	// Server contains HTTP server configuration including listen address,
	// timeouts, and connection limits.
	Server ServerConfig `yaml:"server"`

	// Storage contains configuration for the usage counter store including
	// backend selection and per-backend settings.
	Storage StorageConfig `yaml:"storage"`

	// Quota contains configuration for the quota engine including the plan
	// table, warning ratio, and increment retry behavior.
	Quota QuotaConfig `yaml:"quota"`

	// Retention contains configuration for counter retention and the
	// pruning schedule.
	Retention RetentionConfig `yaml:"retention"`

	// Telemetry contains configuration for observability including logging
	// and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port for the server to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080", "0.0.0.0:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body. A zero or negative value means no timeout.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. A zero or negative value means no timeout.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled. If IdleTimeout is zero, ReadTimeout is used.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// If requests are still in-flight after this timeout, the server will
	// force shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing the request header's keys and values.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// StorageConfig contains configuration for the usage counter store.
type StorageConfig struct {
	// Backend selects the counter store implementation.
	// Options: "memory", "sqlite", "postgres", "redis"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite-specific settings (used when backend is "sqlite").
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Postgres contains PostgreSQL-specific settings (used when backend is "postgres").
	Postgres PostgresConfig `yaml:"postgres"`

	// Redis contains Redis-specific settings (used when backend is "redis").
	Redis RedisConfig `yaml:"redis"`
}

// SQLiteConfig contains SQLite storage settings.
type SQLiteConfig struct {
	// Path is the path to the SQLite database file.
	// Default: "data/counters.db"
	Path string `yaml:"path"`

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// CheckpointInterval is how often to checkpoint the write-ahead log.
	// Default: 5m
	CheckpointInterval time.Duration `yaml:"checkpoint_interval"`
}

// PostgresConfig contains PostgreSQL storage settings.
type PostgresConfig struct {
	// Host is the PostgreSQL server hostname.
	Host string `yaml:"host"`

	// Port is the PostgreSQL server port.
	// Default: 5432
	Port int `yaml:"port"`

	// Database is the database name.
	Database string `yaml:"database"`

	// User is the database user.
	User string `yaml:"user"`

	// Password is the database password.
	// This should typically be loaded from an environment variable.
	Password string `yaml:"password"`

	// SSLMode is the PostgreSQL SSL mode.
	// Default: "require"
	SSLMode string `yaml:"ssl_mode"`

	// MaxOpenConns caps the connection pool size.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns caps idle connections in the pool.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`
}

// RedisConfig contains Redis storage settings.
type RedisConfig struct {
	// Addr is the Redis server address ("host:port").
	Addr string `yaml:"addr"`

	// Password is the Redis AUTH password, empty for none.
	Password string `yaml:"password"`

	// DB is the Redis database number.
	// Default: 0
	DB int `yaml:"db"`

	// KeyPrefix namespaces all counter keys.
	// Default: "sendgate"
	KeyPrefix string `yaml:"key_prefix"`
}

// QuotaConfig contains configuration for the quota engine.
type QuotaConfig struct {
	// WarnRatio is the usage fraction at which threshold warnings fire.
	// Default: 0.8 (80%)
	WarnRatio float64 `yaml:"warn_ratio"`

	// IncrementAttempts is the number of attempts for each counter
	// increment before the increment is declared lost.
	// Default: 5
	IncrementAttempts int `yaml:"increment_attempts"`

	// IncrementBackoff is the initial delay between increment retries.
	// The delay doubles on each attempt.
	// Default: 50ms
	IncrementBackoff time.Duration `yaml:"increment_backoff"`

	// StoreTimeout bounds each individual counter store operation.
	// Default: 5s
	StoreTimeout time.Duration `yaml:"store_timeout"`

	// Plans defines or overrides the plan table. Keys are plan names;
	// plans named here shadow the built-in plan of the same name, and
	// built-ins not named here remain available.
	Plans map[string]PlanConfig `yaml:"plans"`
}

// PlanConfig defines the send ceilings for one subscription plan.
// A ceiling of -1 means unlimited; 0 blocks the channel entirely.
type PlanConfig struct {
	// EmailsPerDayPerMailbox caps daily email sends per mailbox.
	EmailsPerDayPerMailbox int64 `yaml:"emails_per_day_per_mailbox"`

	// EmailsPerMonth caps monthly email sends across the whole workspace.
	EmailsPerMonth int64 `yaml:"emails_per_month"`

	// LinkedInPerDay caps daily LinkedIn actions per workspace.
	LinkedInPerDay int64 `yaml:"linkedin_per_day"`

	// LinkedInPerMonth caps monthly LinkedIn actions per workspace.
	LinkedInPerMonth int64 `yaml:"linkedin_per_month"`
}

// RetentionConfig contains configuration for counter retention.
type RetentionConfig struct {
	// KeepDays is how many days of daily counters to retain.
	// 0 disables daily pruning.
	// Default: 45
	KeepDays int `yaml:"keep_days"`

	// KeepMonths is how many months of monthly counters to retain.
	// 0 disables monthly pruning.
	// Default: 13
	KeepMonths int `yaml:"keep_months"`

	// PruneSchedule is a cron expression for scheduled pruning.
	// An empty schedule disables the background pruner.
	// Default: "0 4 * * *"
	PruneSchedule string `yaml:"prune_schedule"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes source file and line in log records.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether the metrics endpoint is exposed.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`
}
