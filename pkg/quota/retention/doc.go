// Package retention prunes usage counters from expired periods.
//
// # Retention Policy
//
// Counters are keyed by period (daily or monthly), so expired counters are
// never read again after their window closes. They are kept for a grace
// window beyond that, for audits and late reconciliation, then deleted:
//
//   - Daily counters: kept KeepDays days (default 45)
//   - Monthly counters: kept KeepMonths months (default 13)
//   - Scheduled pruning via cron expression
//
// # Basic Usage
//
//	pruner := retention.NewPruner(store, &retention.Config{
//	    KeepDays:      45,
//	    KeepMonths:    13,
//	    PruneSchedule: "0 4 * * *", // Daily at 4 AM
//	})
//
//	if err := pruner.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer pruner.Stop()
//
// # Manual Pruning
//
//	deleted, err := pruner.Prune(ctx)
//
// Backends whose counters expire on their own (Redis TTLs) do not implement
// the pruning interface; for those, skip the pruner entirely.
//
// If no schedule is configured (empty PruneSchedule), the scheduler does
// nothing and Start() returns immediately without error.
package retention
