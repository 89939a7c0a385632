package store

import (
	"context"
	"fmt"
)

// Key identifies one usage counter. Channel and period values are opaque
// strings at the storage boundary; the quota package owns their vocabulary.
type Key struct {
	// WorkspaceID is the tenant identifier.
	WorkspaceID string

	// ScopeID is the secondary key: the sending mailbox id for per-mailbox
	// email counters, empty for workspace-scoped counters (all LinkedIn
	// counters are workspace-scoped).
	ScopeID string

	// Channel is the send channel ("email", "linkedin").
	Channel string

	// PeriodType is the accounting window type ("daily", "monthly").
	PeriodType string

	// PeriodKey is the canonical period identifier ("2006-01-02" for daily,
	// "2006-01" for monthly). Construction is owned by the quota package;
	// call sites never hand-format dates.
	PeriodKey string
}

// Validate reports whether the key is complete. ScopeID may be empty.
func (k Key) Validate() error {
	if k.WorkspaceID == "" {
		return fmt.Errorf("workspace id cannot be empty")
	}
	if k.Channel == "" {
		return fmt.Errorf("channel cannot be empty")
	}
	if k.PeriodType == "" {
		return fmt.Errorf("period type cannot be empty")
	}
	if k.PeriodKey == "" {
		return fmt.Errorf("period key cannot be empty")
	}
	return nil
}

// String renders the key for logs and reconciliation events.
func (k Key) String() string {
	scope := k.ScopeID
	if scope == "" {
		scope = "-"
	}
	return fmt.Sprintf("%s/%s/%s/%s/%s", k.WorkspaceID, scope, k.Channel, k.PeriodType, k.PeriodKey)
}

// Store is the counter persistence contract.
//
// Implementations must be thread-safe. Read and Sum must reflect the latest
// committed increment; no caching layer may return a stale zero.
type Store interface {
	// Read returns the current count for a key, 0 if the counter does not
	// exist. Returns an error only on storage failure.
	Read(ctx context.Context, key Key) (int64, error)

	// IncrementAndGet atomically increments the counter for a key, creating
	// it with count 1 if absent, and returns the post-increment value.
	IncrementAndGet(ctx context.Context, key Key) (int64, error)

	// Sum returns the total count across every scope (per-mailbox rows and
	// any workspace-aggregate row) for a workspace, channel, period type,
	// and period key. Returns 0 if no rows exist.
	Sum(ctx context.Context, workspaceID, channel, periodType, periodKey string) (int64, error)

	// Close releases resources held by the store.
	Close() error
}

// Prunable is implemented by stores that support deleting counters from
// expired periods. Backends with native expiry (Redis TTLs) do not
// implement it.
type Prunable interface {
	// DeleteExpired removes daily counters with a period key before
	// dailyBefore and monthly counters with a period key before
	// monthlyBefore, returning the number of counters deleted. Canonical
	// period keys are zero-padded, so lexicographic comparison is
	// chronological.
	DeleteExpired(ctx context.Context, dailyBefore, monthlyBefore string) (int64, error)
}
