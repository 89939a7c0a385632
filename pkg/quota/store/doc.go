// Package store provides persistence backends for usage counters.
//
// # Overview
//
// The store package defines the counter storage contract for the quota
// engine and provides multiple implementations:
//
//   - Memory: Fast in-process storage (default, no persistence)
//   - SQLite: Lightweight file-based persistence for single instances
//   - PostgreSQL: Production-grade persistence for multi-instance deployments
//   - Redis: Key-value persistence with native atomic increments and TTLs
//
// One counter exists per unique (workspace, scope, channel, period type,
// period key) tuple. A counter is created lazily on first increment with
// count 1 and is monotonically non-decreasing within its period.
//
// # Atomicity
//
// IncrementAndGet is the single mutation primitive. Every backend implements
// it as one atomic operation at the storage layer (an upsert-with-increment
// statement, a Redis INCR, or a mutex-serialized map update), never as a
// read-modify-write in the caller. Under N concurrent callers incrementing
// the same tuple, the final stored count is exactly N.
//
// # Usage
//
//	st := store.NewMemoryStore()
//	defer st.Close()
//
//	key := store.Key{
//	    WorkspaceID: "ws-1",
//	    ScopeID:     "mailbox-1",
//	    Channel:     "email",
//	    PeriodType:  "daily",
//	    PeriodKey:   "2026-08-28",
//	}
//	count, err := st.IncrementAndGet(ctx, key)
//
// # Thread Safety
//
// All backends are safe for concurrent use from multiple goroutines; the
// SQL and Redis backends are additionally safe across process boundaries.
package store
