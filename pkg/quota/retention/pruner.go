package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"nimbus-hq/sendgate/pkg/quota"
	"nimbus-hq/sendgate/pkg/quota/store"
)

// Config contains configuration for the retention pruner.
type Config struct {
	// KeepDays is how many days of daily counters to retain.
	// 0 means keep daily counters forever.
	KeepDays int

	// KeepMonths is how many months of monthly counters to retain.
	// 0 means keep monthly counters forever.
	KeepMonths int

	// PruneSchedule is a cron expression for scheduling pruning.
	// Example: "0 4 * * *" (daily at 4 AM)
	PruneSchedule string
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		KeepDays:      45,
		KeepMonths:    13,
		PruneSchedule: "0 4 * * *",
	}
}

// Pruner deletes usage counters whose period expired beyond the retention
// grace window.
type Pruner struct {
	store     store.Prunable
	config    *Config
	logger    *slog.Logger
	scheduler *Scheduler
	now       func() time.Time
}

// NewPruner creates a retention pruner over a prunable counter store.
func NewPruner(st store.Prunable, config *Config) *Pruner {
	if config == nil {
		config = DefaultConfig()
	}

	pruner := &Pruner{
		store:  st,
		config: config,
		logger: slog.Default().With("component", "quota.retention"),
		now:    time.Now,
	}
	pruner.scheduler = NewScheduler(pruner)

	return pruner
}

// Prune deletes counters from expired periods. The cutoffs are derived from
// the current time: daily counters older than KeepDays days and monthly
// counters older than KeepMonths months are removed in a single pass.
// Returns the number of counters deleted.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	now := p.now()

	// A zero retention setting keeps that period type forever; an empty
	// cutoff sorts before every period key, so the delete matches nothing.
	var dailyBefore, monthlyBefore string
	if p.config.KeepDays > 0 {
		dailyBefore = quota.DailyKey(now.AddDate(0, 0, -p.config.KeepDays))
	}
	if p.config.KeepMonths > 0 {
		monthlyBefore = quota.MonthlyKey(now.AddDate(0, -p.config.KeepMonths, 0))
	}

	if dailyBefore == "" && monthlyBefore == "" {
		p.logger.Debug("retention disabled, nothing to prune")
		return 0, nil
	}

	deleted, err := p.store.DeleteExpired(ctx, dailyBefore, monthlyBefore)
	if err != nil {
		return 0, fmt.Errorf("failed to prune expired counters: %w", err)
	}

	if deleted > 0 {
		p.logger.Info("pruned expired usage counters",
			"deleted_count", deleted,
			"daily_before", dailyBefore,
			"monthly_before", monthlyBefore,
		)
	} else {
		p.logger.Debug("no expired counters to prune",
			"daily_before", dailyBefore,
			"monthly_before", monthlyBefore,
		)
	}

	return deleted, nil
}

// Start starts the automatic pruning scheduler.
// Call this when starting the application.
func (p *Pruner) Start(ctx context.Context) error {
	return p.scheduler.Start(ctx)
}

// Stop stops the automatic pruning scheduler.
// Call this during graceful shutdown.
func (p *Pruner) Stop() {
	p.scheduler.Stop()
}

// NextPruning returns the time of the next scheduled pruning.
func (p *Pruner) NextPruning() *time.Time {
	return p.scheduler.NextRun()
}
