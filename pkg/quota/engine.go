package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"nimbus-hq/sendgate/pkg/quota/store"
)

// Engine coordinates admission checks, usage recording, and threshold
// monitoring over a counter store.
//
// The engine holds no mutable state of its own beyond the injected store, so
// correctness holds across any number of engine instances in any number of
// processes sharing the same store.
//
// # Example
//
//	engine, err := quota.New(quota.Config{
//	    Store: st,
//	    Plans: quota.NewPlanTable(),
//	})
//
//	decision, err := engine.CheckEmailAllowed(ctx, "ws-1", "mb-1", "starter")
//	if err != nil || !decision.Allowed {
//	    // deny the send
//	}
type Engine struct {
	store   store.Store
	plans   *PlanTable
	metrics *Metrics
	logger  *slog.Logger

	warnRatio         float64
	incrementAttempts int
	incrementBackoff  time.Duration
	storeTimeout      time.Duration

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// Config contains configuration for the quota engine.
type Config struct {
	// Store is the counter store. Required.
	Store store.Store

	// Plans is the limit policy table. Defaults to the built-in table.
	Plans *PlanTable

	// Metrics receives engine metrics. Optional.
	Metrics *Metrics

	// Logger receives structured logs. Defaults to slog.Default().
	Logger *slog.Logger

	// WarnRatio is the threshold-warning ratio in (0, 1].
	// Default: 0.80
	WarnRatio float64

	// IncrementAttempts bounds retries of a failed counter increment.
	// Default: 5
	IncrementAttempts int

	// IncrementBackoff is the initial retry backoff, doubled per attempt.
	// Default: 50ms
	IncrementBackoff time.Duration

	// StoreTimeout bounds each counter store operation.
	// Default: 5 seconds
	StoreTimeout time.Duration
}

// New creates a quota engine with the given configuration.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, ErrNoStore
	}
	if cfg.Plans == nil {
		cfg.Plans = NewPlanTable()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.WarnRatio <= 0 || cfg.WarnRatio > 1 {
		cfg.WarnRatio = 0.80
	}
	if cfg.IncrementAttempts <= 0 {
		cfg.IncrementAttempts = 5
	}
	if cfg.IncrementBackoff <= 0 {
		cfg.IncrementBackoff = 50 * time.Millisecond
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}

	return &Engine{
		store:             cfg.Store,
		plans:             cfg.Plans,
		metrics:           cfg.Metrics,
		logger:            cfg.Logger.With("component", "quota.engine"),
		warnRatio:         cfg.WarnRatio,
		incrementAttempts: cfg.IncrementAttempts,
		incrementBackoff:  cfg.IncrementBackoff,
		storeTimeout:      cfg.StoreTimeout,
		now:               time.Now,
	}, nil
}

// CheckEmailAllowed decides whether one more email may be sent from the
// given mailbox. The per-mailbox daily ceiling is checked before the
// workspace monthly aggregate; when both would deny, the daily violation is
// reported.
//
// A ceiling blocks at count >= limit. A zero ceiling therefore always
// denies; Unlimited skips the window entirely.
//
// On a storage error the returned Decision has Allowed=false (admission
// fails closed) and the error is returned for the caller to surface or
// retry.
func (e *Engine) CheckEmailAllowed(ctx context.Context, workspaceID, mailboxID, plan string) (Decision, error) {
	now := e.now()
	policy := e.plans.LimitsFor(plan)

	if policy.EmailsPerDayPerMailbox != Unlimited {
		count, err := e.read(ctx, store.Key{
			WorkspaceID: workspaceID,
			ScopeID:     mailboxID,
			Channel:     string(ChannelEmail),
			PeriodType:  string(PeriodDaily),
			PeriodKey:   DailyKey(now),
		})
		if err != nil {
			return Decision{}, fmt.Errorf("daily email counter: %w", err)
		}
		if count >= policy.EmailsPerDayPerMailbox {
			return e.deny(ChannelEmail, DenyDailyEmail, count, policy.EmailsPerDayPerMailbox), nil
		}
	}

	if policy.EmailsPerMonth != Unlimited {
		total, err := e.sum(ctx, workspaceID, ChannelEmail, PeriodMonthly, MonthlyKey(now))
		if err != nil {
			return Decision{}, fmt.Errorf("monthly email aggregate: %w", err)
		}
		if total >= policy.EmailsPerMonth {
			return e.deny(ChannelEmail, DenyMonthlyEmail, total, policy.EmailsPerMonth), nil
		}
	}

	e.metrics.RecordCheck(ChannelEmail, true)
	return Decision{Allowed: true}, nil
}

// CheckLinkedInAllowed decides whether one more LinkedIn action may be
// performed for the workspace. LinkedIn counters are always
// workspace-scoped; daily is checked before monthly.
func (e *Engine) CheckLinkedInAllowed(ctx context.Context, workspaceID, plan string) (Decision, error) {
	now := e.now()
	policy := e.plans.LimitsFor(plan)

	if policy.LinkedInPerDay != Unlimited {
		count, err := e.read(ctx, store.Key{
			WorkspaceID: workspaceID,
			Channel:     string(ChannelLinkedIn),
			PeriodType:  string(PeriodDaily),
			PeriodKey:   DailyKey(now),
		})
		if err != nil {
			return Decision{}, fmt.Errorf("daily linkedin counter: %w", err)
		}
		if count >= policy.LinkedInPerDay {
			return e.deny(ChannelLinkedIn, DenyDailyLinkedIn, count, policy.LinkedInPerDay), nil
		}
	}

	if policy.LinkedInPerMonth != Unlimited {
		count, err := e.read(ctx, store.Key{
			WorkspaceID: workspaceID,
			Channel:     string(ChannelLinkedIn),
			PeriodType:  string(PeriodMonthly),
			PeriodKey:   MonthlyKey(now),
		})
		if err != nil {
			return Decision{}, fmt.Errorf("monthly linkedin counter: %w", err)
		}
		if count >= policy.LinkedInPerMonth {
			return e.deny(ChannelLinkedIn, DenyMonthlyLinkedIn, count, policy.LinkedInPerMonth), nil
		}
	}

	e.metrics.RecordCheck(ChannelLinkedIn, true)
	return Decision{Allowed: true}, nil
}

// RecordEmailSend records one successful email send from a mailbox. The
// per-mailbox daily and monthly counters are incremented in parallel and
// independently: a partial failure retries only the failed counter, never
// the succeeded one.
//
// Call exactly once per successful external send. A returned
// ErrIncrementLost means a counter could not be committed within the retry
// budget and has been logged for reconciliation; the send must not be
// retried.
func (e *Engine) RecordEmailSend(ctx context.Context, workspaceID, mailboxID string) error {
	now := e.now()
	return e.record(ctx, ChannelEmail,
		store.Key{
			WorkspaceID: workspaceID,
			ScopeID:     mailboxID,
			Channel:     string(ChannelEmail),
			PeriodType:  string(PeriodDaily),
			PeriodKey:   DailyKey(now),
		},
		store.Key{
			WorkspaceID: workspaceID,
			ScopeID:     mailboxID,
			Channel:     string(ChannelEmail),
			PeriodType:  string(PeriodMonthly),
			PeriodKey:   MonthlyKey(now),
		},
	)
}

// RecordLinkedInAction records one successful LinkedIn action for the
// workspace, incrementing the daily and monthly counters analogously to
// RecordEmailSend.
func (e *Engine) RecordLinkedInAction(ctx context.Context, workspaceID string) error {
	now := e.now()
	return e.record(ctx, ChannelLinkedIn,
		store.Key{
			WorkspaceID: workspaceID,
			Channel:     string(ChannelLinkedIn),
			PeriodType:  string(PeriodDaily),
			PeriodKey:   DailyKey(now),
		},
		store.Key{
			WorkspaceID: workspaceID,
			Channel:     string(ChannelLinkedIn),
			PeriodType:  string(PeriodMonthly),
			PeriodKey:   MonthlyKey(now),
		},
	)
}

// CheckThresholds reports every monitored window at or above the warning
// ratio of its ceiling. The workspace-scoped windows (monthly email
// aggregate, daily and monthly LinkedIn) are always evaluated; the daily
// per-mailbox email window is evaluated for each mailbox id passed in.
//
// Zero and Unlimited ceilings are excluded: zero is already a hard block
// and Unlimited has nothing to warn against. CheckThresholds is read-only
// and may be called as often as desired.
func (e *Engine) CheckThresholds(ctx context.Context, workspaceID, plan string, mailboxIDs ...string) ([]ThresholdAlert, error) {
	now := e.now()
	policy := e.plans.LimitsFor(plan)

	var alerts []ThresholdAlert

	total, err := e.sum(ctx, workspaceID, ChannelEmail, PeriodMonthly, MonthlyKey(now))
	if err != nil {
		return nil, fmt.Errorf("monthly email aggregate: %w", err)
	}
	alerts = e.appendAlert(alerts, workspaceID, ChannelEmail, PeriodMonthly, "", total, policy.EmailsPerMonth)

	for _, window := range []struct {
		period PeriodType
		limit  int64
	}{
		{PeriodDaily, policy.LinkedInPerDay},
		{PeriodMonthly, policy.LinkedInPerMonth},
	} {
		count, err := e.read(ctx, store.Key{
			WorkspaceID: workspaceID,
			Channel:     string(ChannelLinkedIn),
			PeriodType:  string(window.period),
			PeriodKey:   PeriodKey(window.period, now),
		})
		if err != nil {
			return nil, fmt.Errorf("%s linkedin counter: %w", window.period, err)
		}
		alerts = e.appendAlert(alerts, workspaceID, ChannelLinkedIn, window.period, "", count, window.limit)
	}

	for _, mailboxID := range mailboxIDs {
		count, err := e.read(ctx, store.Key{
			WorkspaceID: workspaceID,
			ScopeID:     mailboxID,
			Channel:     string(ChannelEmail),
			PeriodType:  string(PeriodDaily),
			PeriodKey:   DailyKey(now),
		})
		if err != nil {
			return nil, fmt.Errorf("daily email counter for mailbox %s: %w", mailboxID, err)
		}
		alerts = e.appendAlert(alerts, workspaceID, ChannelEmail, PeriodDaily, mailboxID, count, policy.EmailsPerDayPerMailbox)
	}

	return alerts, nil
}

// deny builds a denial decision and records its metrics.
func (e *Engine) deny(channel Channel, reason DenyReason, current, limit int64) Decision {
	e.metrics.RecordCheck(channel, false)
	e.metrics.RecordDenial(reason)
	return Decision{
		Allowed: false,
		Reason:  reason,
		Current: current,
		Limit:   limit,
	}
}

// appendAlert appends a threshold alert when the window qualifies. Zero and
// Unlimited ceilings never qualify. The usage gauge is updated for every
// evaluated window, alerting or not.
func (e *Engine) appendAlert(alerts []ThresholdAlert, workspaceID string, channel Channel, period PeriodType, mailboxID string, current, limit int64) []ThresholdAlert {
	if limit <= 0 {
		return alerts
	}

	percent := float64(current) / float64(limit) * 100
	if mailboxID == "" {
		e.metrics.UpdateUsagePercent(workspaceID, channel, period, percent)
	}

	if percent < e.warnRatio*100 {
		return alerts
	}
	return append(alerts, ThresholdAlert{
		Channel:   channel,
		Period:    period,
		MailboxID: mailboxID,
		Current:   current,
		Limit:     limit,
		Percent:   percent,
	})
}

// record increments each key in parallel, retrying each independently.
func (e *Engine) record(ctx context.Context, channel Channel, keys ...store.Key) error {
	errs := make([]error, len(keys))

	var wg sync.WaitGroup
	for i, key := range keys {
		wg.Add(1)
		go func(i int, key store.Key) {
			defer wg.Done()
			errs[i] = e.incrementWithRetry(ctx, channel, key)
		}(i, key)
	}
	wg.Wait()

	return errors.Join(errs...)
}

// incrementWithRetry drives one counter increment through the bounded
// backoff loop. An increment that cannot be committed is logged as a
// reconciliation event so operators can repair the counter, and surfaces as
// ErrIncrementLost.
func (e *Engine) incrementWithRetry(ctx context.Context, channel Channel, key store.Key) error {
	backoff := e.incrementBackoff
	var lastErr error

	for attempt := 0; attempt < e.incrementAttempts; attempt++ {
		if attempt > 0 {
			e.metrics.RecordIncrementRetry()
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				lastErr = ctx.Err()
				return e.reportLost(key, attempt, lastErr)
			}
			if backoff < time.Second {
				backoff *= 2
			}
		}

		opCtx, cancel := context.WithTimeout(ctx, e.storeTimeout)
		start := time.Now()
		_, err := e.store.IncrementAndGet(opCtx, key)
		cancel()
		e.metrics.ObserveStoreOp("increment", time.Since(start).Seconds())

		if err == nil {
			e.metrics.RecordIncrement(channel, PeriodType(key.PeriodType))
			return nil
		}
		lastErr = err
		e.logger.Warn("counter increment failed, will retry",
			"counter", key.String(),
			"attempt", attempt+1,
			"error", err,
		)
	}

	return e.reportLost(key, e.incrementAttempts, lastErr)
}

// reportLost emits the reconciliation event for an uncommitted increment.
func (e *Engine) reportLost(key store.Key, attempts int, cause error) error {
	eventID := uuid.NewString()
	e.metrics.RecordIncrementLost()
	e.logger.Error("usage increment lost, reconciliation required",
		"event_id", eventID,
		"counter", key.String(),
		"delta", 1,
		"attempts", attempts,
		"error", cause,
	)
	return fmt.Errorf("counter %s (event %s): %w", key.String(), eventID, ErrIncrementLost)
}

// read performs a timed, metered counter read.
func (e *Engine) read(ctx context.Context, key store.Key) (int64, error) {
	opCtx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()

	start := time.Now()
	count, err := e.store.Read(opCtx, key)
	e.metrics.ObserveStoreOp("read", time.Since(start).Seconds())
	return count, err
}

// sum performs a timed, metered aggregate read.
func (e *Engine) sum(ctx context.Context, workspaceID string, channel Channel, period PeriodType, periodKey string) (int64, error) {
	opCtx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()

	start := time.Now()
	total, err := e.store.Sum(opCtx, workspaceID, string(channel), string(period), periodKey)
	e.metrics.ObserveStoreOp("sum", time.Since(start).Seconds())
	return total, err
}
