// Package quota implements the outbound send quota engine for Sendgate.
//
// # Overview
//
// The quota package gates how many outbound emails and LinkedIn actions a
// workspace may perform per calendar day and per calendar month. It provides:
//
//   - Admission checks (per-mailbox daily and workspace-aggregate monthly
//     ceilings for email, workspace daily and monthly ceilings for LinkedIn)
//   - Usage recording with atomic counter increments and bounded retry
//   - Threshold monitoring (warnings once a window crosses 80% of its ceiling)
//   - A plan-keyed limit policy table with a restrictive fallback
//
// # Architecture
//
// The package is organized into sub-packages:
//
//   - store: Counter persistence backends (memory, SQLite, PostgreSQL, Redis)
//   - retention: Scheduled pruning of expired-period counter rows
//
// # Usage
//
//	engine, err := quota.New(quota.Config{
//	    Store: store.NewMemoryStore(),
//	    Plans: quota.NewPlanTable(),
//	})
//
//	// Check before sending
//	decision, err := engine.CheckEmailAllowed(ctx, workspaceID, mailboxID, plan)
//	if err != nil || !decision.Allowed {
//	    // Storage errors fail closed: decision.Allowed is false either way.
//	    return decision, err
//	}
//
//	// Perform the external send, then record it
//	err = engine.RecordEmailSend(ctx, workspaceID, mailboxID)
//
// # Concurrency
//
// Correctness holds across process boundaries, not just goroutines: all
// counter mutation goes through the store's atomic increment-and-get
// primitive. Increments to the same counter tuple are linearizable; the
// admission check and the subsequent usage record for one logical send are
// deliberately not atomic together (a concurrent batch may briefly
// over-admit by one send per request in flight).
package quota
