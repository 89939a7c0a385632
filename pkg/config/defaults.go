package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// Storage defaults
	DefaultStorageBackend        = "sqlite"
	DefaultSQLitePath            = "data/counters.db"
	DefaultSQLiteBusyTimeout     = 5 * time.Second
	DefaultSQLiteCheckpointEvery = 5 * time.Minute
	DefaultPostgresPort          = 5432
	DefaultPostgresSSLMode       = "require"
	DefaultPostgresMaxOpenConns  = 10
	DefaultPostgresMaxIdleConns  = 5
	DefaultRedisKeyPrefix        = "sendgate"

	// Quota defaults
	DefaultWarnRatio         = 0.8
	DefaultIncrementAttempts = 5
	DefaultIncrementBackoff  = 50 * time.Millisecond
	DefaultStoreTimeout      = 5 * time.Second

	// Retention defaults
	DefaultKeepDays      = 45
	DefaultKeepMonths    = 13
	DefaultPruneSchedule = "0 4 * * *"

	// Telemetry defaults
	DefaultLoggingLevel   = "info"
	DefaultLoggingFormat  = "json"
	DefaultMetricsEnabled = true
	DefaultMetricsPath    = "/metrics"
)

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	// Storage defaults
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = DefaultSQLitePath
	}
	if cfg.Storage.SQLite.BusyTimeout == 0 {
		cfg.Storage.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.Storage.SQLite.CheckpointInterval == 0 {
		cfg.Storage.SQLite.CheckpointInterval = DefaultSQLiteCheckpointEvery
	}
	if cfg.Storage.Postgres.Port == 0 {
		cfg.Storage.Postgres.Port = DefaultPostgresPort
	}
	if cfg.Storage.Postgres.SSLMode == "" {
		cfg.Storage.Postgres.SSLMode = DefaultPostgresSSLMode
	}
	if cfg.Storage.Postgres.MaxOpenConns == 0 {
		cfg.Storage.Postgres.MaxOpenConns = DefaultPostgresMaxOpenConns
	}
	if cfg.Storage.Postgres.MaxIdleConns == 0 {
		cfg.Storage.Postgres.MaxIdleConns = DefaultPostgresMaxIdleConns
	}
	if cfg.Storage.Redis.KeyPrefix == "" {
		cfg.Storage.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}

	// Quota defaults
	if cfg.Quota.WarnRatio == 0 {
		cfg.Quota.WarnRatio = DefaultWarnRatio
	}
	if cfg.Quota.IncrementAttempts == 0 {
		cfg.Quota.IncrementAttempts = DefaultIncrementAttempts
	}
	if cfg.Quota.IncrementBackoff == 0 {
		cfg.Quota.IncrementBackoff = DefaultIncrementBackoff
	}
	if cfg.Quota.StoreTimeout == 0 {
		cfg.Quota.StoreTimeout = DefaultStoreTimeout
	}

	// Retention defaults
	if cfg.Retention.KeepDays == 0 {
		cfg.Retention.KeepDays = DefaultKeepDays
	}
	if cfg.Retention.KeepMonths == 0 {
		cfg.Retention.KeepMonths = DefaultKeepMonths
	}
	if cfg.Retention.PruneSchedule == "" {
		cfg.Retention.PruneSchedule = DefaultPruneSchedule
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
}

// DefaultConfig returns a configuration with all defaults applied.
// Boolean fields whose default is true (metrics enabled) are set here;
// LoadConfig seeds the config from DefaultConfig before parsing so an
// explicit "enabled: false" in the file is preserved.
func DefaultConfig() *Config {
	cfg := &Config{
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{Enabled: DefaultMetricsEnabled},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
