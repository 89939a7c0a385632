package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// PostgresStore implements Store using PostgreSQL. This is the backend for
// multi-instance deployments: the upsert-with-increment statement makes
// concurrent increments from different processes linearizable at the
// database, with no coordination in the application.
type PostgresStore struct {
	db *sql.DB
}

// PostgresConfig configures the PostgreSQL store.
type PostgresConfig struct {
	// DSN is the PostgreSQL connection string.
	DSN string

	// MaxOpenConns caps the connection pool size.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns caps idle connections in the pool.
	// Default: 5
	MaxIdleConns int

	// ConnMaxLifetime bounds how long a connection may be reused.
	// Default: 30 minutes
	ConnMaxLifetime time.Duration
}

// OpenPostgresStore opens a connection pool, verifies connectivity, and
// ensures the counter table exists.
func OpenPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("dsn cannot be empty")
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 10
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 30 * time.Minute
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := NewPostgresStore(db)
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewPostgresStore wraps an existing database handle. The caller is
// responsible for schema setup; OpenPostgresStore handles both.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// initSchema creates the counter table if it doesn't exist.
func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS usage_counters (
		workspace_id TEXT NOT NULL,
		scope_id     TEXT NOT NULL DEFAULT '',
		channel      TEXT NOT NULL,
		period_type  TEXT NOT NULL,
		period_key   TEXT NOT NULL,
		count        BIGINT NOT NULL DEFAULT 0,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (workspace_id, scope_id, channel, period_type, period_key)
	);

	CREATE INDEX IF NOT EXISTS idx_usage_counters_period_key ON usage_counters(period_type, period_key);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Read returns the current count for a key, 0 if absent.
func (s *PostgresStore) Read(ctx context.Context, key Key) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}

	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT count FROM usage_counters
		WHERE workspace_id = $1 AND scope_id = $2 AND channel = $3 AND period_type = $4 AND period_key = $5`,
		key.WorkspaceID, key.ScopeID, key.Channel, key.PeriodType, key.PeriodKey,
	).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read counter: %w", err)
	}
	return count, nil
}

// IncrementAndGet atomically increments the counter for a key, creating it
// with count 1 if absent, and returns the post-increment value.
func (s *PostgresStore) IncrementAndGet(ctx context.Context, key Key) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}

	var count int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO usage_counters (workspace_id, scope_id, channel, period_type, period_key, count)
		VALUES ($1, $2, $3, $4, $5, 1)
		ON CONFLICT (workspace_id, scope_id, channel, period_type, period_key) DO UPDATE SET
			count = usage_counters.count + 1,
			updated_at = NOW()
		RETURNING count`,
		key.WorkspaceID, key.ScopeID, key.Channel, key.PeriodType, key.PeriodKey,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter: %w", err)
	}
	return count, nil
}

// Sum returns the total count across all scopes for a workspace, channel,
// period type, and period key.
func (s *PostgresStore) Sum(ctx context.Context, workspaceID, channel, periodType, periodKey string) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(count), 0) FROM usage_counters
		WHERE workspace_id = $1 AND channel = $2 AND period_type = $3 AND period_key = $4`,
		workspaceID, channel, periodType, periodKey,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum counters: %w", err)
	}
	return total, nil
}

// DeleteExpired removes counters from expired periods.
func (s *PostgresStore) DeleteExpired(ctx context.Context, dailyBefore, monthlyBefore string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM usage_counters
		WHERE (period_type = 'daily' AND period_key < $1)
		   OR (period_type = 'monthly' AND period_key < $2)`,
		dailyBefore, monthlyBefore,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired counters: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
