package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore implements Store using SQLite for persistence. It is suitable
// for single-instance deployments where counters must survive restarts.
//
// SQLiteStore uses a write-ahead log (WAL) for better concurrent performance
// and periodic checkpointing to balance write performance with durability.
// The increment is a single upsert-with-increment statement, so atomicity is
// provided by the database, not by the caller.
type SQLiteStore struct {
	db                 *sql.DB
	dbPath             string
	checkpointInterval time.Duration
	done               chan struct{}
	closeOnce          sync.Once

	// prepared statements, compiled once at startup
	incrStmt  *sql.Stmt
	readStmt  *sql.Stmt
	sumStmt   *sql.Stmt
	pruneStmt *sql.Stmt
}

// SQLiteConfig configures the SQLite store.
type SQLiteConfig struct {
	// Path is the path to the SQLite database file.
	Path string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration

	// CheckpointInterval is how often to checkpoint the WAL.
	// Default: 5 minutes
	CheckpointInterval time.Duration
}

// NewSQLiteStore creates a SQLite counter store with default settings.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	return NewSQLiteStoreWithConfig(SQLiteConfig{Path: path})
}

// NewSQLiteStoreWithConfig creates a SQLite counter store with custom
// configuration.
func NewSQLiteStoreWithConfig(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if cfg.CheckpointInterval == 0 {
		cfg.CheckpointInterval = 5 * time.Minute
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.Path, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &SQLiteStore{
		db:                 db,
		dbPath:             cfg.Path,
		checkpointInterval: cfg.CheckpointInterval,
		done:               make(chan struct{}),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := store.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	go store.checkpointLoop()

	return store, nil
}

// initSchema creates the counter table if it doesn't exist.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS usage_counters (
		workspace_id TEXT NOT NULL,
		scope_id     TEXT NOT NULL DEFAULT '',
		channel      TEXT NOT NULL,
		period_type  TEXT NOT NULL,
		period_key   TEXT NOT NULL,
		count        INTEGER NOT NULL DEFAULT 0,
		created_at   INTEGER NOT NULL,
		updated_at   INTEGER NOT NULL,
		PRIMARY KEY (workspace_id, scope_id, channel, period_type, period_key)
	);

	CREATE INDEX IF NOT EXISTS idx_usage_counters_period_key ON usage_counters(period_type, period_key);
	`

	_, err := s.db.Exec(schema)
	return err
}

// prepareStatements prepares SQL statements for reuse.
func (s *SQLiteStore) prepareStatements() error {
	var err error

	// The upsert is the atomic increment primitive: insert-or-add-one in a
	// single statement, returning the post-increment value.
	s.incrStmt, err = s.db.Prepare(`
		INSERT INTO usage_counters (workspace_id, scope_id, channel, period_type, period_key, count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT (workspace_id, scope_id, channel, period_type, period_key) DO UPDATE SET
			count = count + 1,
			updated_at = excluded.updated_at
		RETURNING count
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare increment statement: %w", err)
	}

	s.readStmt, err = s.db.Prepare(`
		SELECT count FROM usage_counters
		WHERE workspace_id = ? AND scope_id = ? AND channel = ? AND period_type = ? AND period_key = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare read statement: %w", err)
	}

	s.sumStmt, err = s.db.Prepare(`
		SELECT COALESCE(SUM(count), 0) FROM usage_counters
		WHERE workspace_id = ? AND channel = ? AND period_type = ? AND period_key = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare sum statement: %w", err)
	}

	s.pruneStmt, err = s.db.Prepare(`
		DELETE FROM usage_counters
		WHERE (period_type = 'daily' AND period_key < ?)
		   OR (period_type = 'monthly' AND period_key < ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare prune statement: %w", err)
	}

	return nil
}

// Read returns the current count for a key, 0 if absent.
func (s *SQLiteStore) Read(ctx context.Context, key Key) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}

	var count int64
	err := s.readStmt.QueryRowContext(ctx,
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
func (s *SQLiteStore) IncrementAndGet(ctx context.Context, key Key) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}

	now := time.Now().Unix()

	var count int64
	err := s.incrStmt.QueryRowContext(ctx,
		key.WorkspaceID, key.ScopeID, key.Channel, key.PeriodType, key.PeriodKey, now, now,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter: %w", err)
	}
	return count, nil
}

// Sum returns the total count across all scopes for a workspace, channel,
// period type, and period key.
func (s *SQLiteStore) Sum(ctx context.Context, workspaceID, channel, periodType, periodKey string) (int64, error) {
	var total int64
	err := s.sumStmt.QueryRowContext(ctx, workspaceID, channel, periodType, periodKey).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum counters: %w", err)
	}
	return total, nil
}

// DeleteExpired removes counters from expired periods.
func (s *SQLiteStore) DeleteExpired(ctx context.Context, dailyBefore, monthlyBefore string) (int64, error) {
	result, err := s.pruneStmt.ExecContext(ctx, dailyBefore, monthlyBefore)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired counters: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// Close releases resources held by the store. Close is idempotent.
func (s *SQLiteStore) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		close(s.done)

		if s.incrStmt != nil {
			s.incrStmt.Close()
		}
		if s.readStmt != nil {
			s.readStmt.Close()
		}
		if s.sumStmt != nil {
			s.sumStmt.Close()
		}
		if s.pruneStmt != nil {
			s.pruneStmt.Close()
		}

		if s.db != nil {
			// Run final checkpoint
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
			closeErr = s.db.Close()
		}
	})

	return closeErr
}

// checkpointLoop runs periodic WAL checkpoints.
func (s *SQLiteStore) checkpointLoop() {
	ticker := time.NewTicker(s.checkpointInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(PASSIVE)")
		case <-s.done:
			return
		}
	}
}
