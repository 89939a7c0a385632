package quota

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"nimbus-hq/sendgate/pkg/quota/store"
)

var testTime = time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

// newTestEngine builds an engine over the given store with a fixed clock,
// fast retries, and a single "test" plan.
func newTestEngine(t *testing.T, st store.Store, policy Policy) *Engine {
	t.Helper()

	plans := NewPlanTable()
	plans.Replace(map[string]Policy{"test": policy})

	engine, err := New(Config{
		Store:            st,
		Plans:            plans,
		IncrementBackoff: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	engine.now = func() time.Time { return testTime }
	return engine
}

// recordEmails records n successful sends from a mailbox.
func recordEmails(t *testing.T, engine *Engine, workspaceID, mailboxID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := engine.RecordEmailSend(context.Background(), workspaceID, mailboxID); err != nil {
			t.Fatalf("RecordEmailSend failed: %v", err)
		}
	}
}

func TestNew_RequiresStore(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrNoStore) {
		t.Errorf("New without store = %v, want ErrNoStore", err)
	}
}

func TestEngine_EmailDailyCeilingBoundary(t *testing.T) {
	engine := newTestEngine(t, store.NewMemoryStore(), Policy{
		EmailsPerDayPerMailbox: 10,
		EmailsPerMonth:         1000,
		LinkedInPerDay:         10,
		LinkedInPerMonth:       100,
	})
	ctx := context.Background()

	// 9 sends: still under the ceiling
	recordEmails(t, engine, "ws-1", "mb-1", 9)

	decision, err := engine.CheckEmailAllowed(ctx, "ws-1", "mb-1", "test")
	if err != nil {
		t.Fatalf("CheckEmailAllowed failed: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("Expected allowed at count 9, got denied (%s)", decision.Reason)
	}

	// 10th send: count reaches the ceiling, which blocks (count >= limit)
	recordEmails(t, engine, "ws-1", "mb-1", 1)

	decision, err = engine.CheckEmailAllowed(ctx, "ws-1", "mb-1", "test")
	if err != nil {
		t.Fatalf("CheckEmailAllowed failed: %v", err)
	}
	if decision.Allowed {
		t.Fatal("Expected denied at count 10")
	}
	if decision.Reason != DenyDailyEmail {
		t.Errorf("Expected reason %q, got %q", DenyDailyEmail, decision.Reason)
	}
	if decision.Current != 10 || decision.Limit != 10 {
		t.Errorf("Expected current=10 limit=10, got current=%d limit=%d", decision.Current, decision.Limit)
	}
}

func TestEngine_MonthlyAggregateAcrossMailboxes(t *testing.T) {
	engine := newTestEngine(t, store.NewMemoryStore(), Policy{
		EmailsPerDayPerMailbox: 100,
		EmailsPerMonth:         10,
		LinkedInPerDay:         10,
		LinkedInPerMonth:       100,
	})
	ctx := context.Background()

	// Three mailboxes send 4 each: no mailbox breaks its daily ceiling, but
	// the workspace aggregate is 12.
	for _, mailbox := range []string{"mb-1", "mb-2", "mb-3"} {
		recordEmails(t, engine, "ws-1", mailbox, 4)
	}

	for _, mailbox := range []string{"mb-1", "mb-2", "mb-3"} {
		decision, err := engine.CheckEmailAllowed(ctx, "ws-1", mailbox, "test")
		if err != nil {
			t.Fatalf("CheckEmailAllowed(%s) failed: %v", mailbox, err)
		}
		if decision.Allowed {
			t.Fatalf("Expected %s denied by monthly aggregate", mailbox)
		}
		if decision.Reason != DenyMonthlyEmail {
			t.Errorf("Expected reason %q, got %q", DenyMonthlyEmail, decision.Reason)
		}
		if decision.Current != 12 {
			t.Errorf("Expected aggregate 12, got %d", decision.Current)
		}
	}

	// A different workspace is unaffected.
	decision, err := engine.CheckEmailAllowed(ctx, "ws-2", "mb-1", "test")
	if err != nil {
		t.Fatalf("CheckEmailAllowed failed: %v", err)
	}
	if !decision.Allowed {
		t.Error("Expected other workspace allowed")
	}
}

func TestEngine_DailyCheckedBeforeMonthly(t *testing.T) {
	engine := newTestEngine(t, store.NewMemoryStore(), Policy{
		EmailsPerDayPerMailbox: 3,
		EmailsPerMonth:         3,
		LinkedInPerDay:         10,
		LinkedInPerMonth:       100,
	})

	// Both windows are at their ceiling; the daily violation is reported.
	recordEmails(t, engine, "ws-1", "mb-1", 3)

	decision, err := engine.CheckEmailAllowed(context.Background(), "ws-1", "mb-1", "test")
	if err != nil {
		t.Fatalf("CheckEmailAllowed failed: %v", err)
	}
	if decision.Reason != DenyDailyEmail {
		t.Errorf("Expected daily violation reported first, got %q", decision.Reason)
	}
}

func TestEngine_ZeroCeilingHardBlock(t *testing.T) {
	engine := newTestEngine(t, store.NewMemoryStore(), Policy{
		EmailsPerDayPerMailbox: 10,
		EmailsPerMonth:         100,
		LinkedInPerDay:         0,
		LinkedInPerMonth:       100,
	})
	ctx := context.Background()

	// Zero means blocked regardless of usage, including at count 0.
	decision, err := engine.CheckLinkedInAllowed(ctx, "ws-1", "test")
	if err != nil {
		t.Fatalf("CheckLinkedInAllowed failed: %v", err)
	}
	if decision.Allowed {
		t.Fatal("Expected zero ceiling to deny")
	}
	if decision.Reason != DenyDailyLinkedIn {
		t.Errorf("Expected reason %q, got %q", DenyDailyLinkedIn, decision.Reason)
	}

	// And the blocked window is excluded from threshold output.
	alerts, err := engine.CheckThresholds(ctx, "ws-1", "test")
	if err != nil {
		t.Fatalf("CheckThresholds failed: %v", err)
	}
	for _, alert := range alerts {
		if alert.Channel == ChannelLinkedIn && alert.Period == PeriodDaily {
			t.Errorf("Zero-ceiling window must not appear in thresholds: %+v", alert)
		}
	}
}

func TestEngine_UnlimitedSkipsWindow(t *testing.T) {
	engine := newTestEngine(t, store.NewMemoryStore(), Policy{
		EmailsPerDayPerMailbox: 5,
		EmailsPerMonth:         Unlimited,
		LinkedInPerDay:         Unlimited,
		LinkedInPerMonth:       Unlimited,
	})
	ctx := context.Background()

	recordEmails(t, engine, "ws-1", "mb-1", 4)

	// Monthly is unlimited: only the daily ceiling can deny.
	decision, err := engine.CheckEmailAllowed(ctx, "ws-1", "mb-1", "test")
	if err != nil {
		t.Fatalf("CheckEmailAllowed failed: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("Expected allowed under unlimited monthly, got denied (%s)", decision.Reason)
	}

	recordEmails(t, engine, "ws-1", "mb-1", 1)
	decision, _ = engine.CheckEmailAllowed(ctx, "ws-1", "mb-1", "test")
	if decision.Allowed || decision.Reason != DenyDailyEmail {
		t.Errorf("Expected daily denial, got %+v", decision)
	}

	// Unlimited windows never produce threshold alerts.
	alerts, err := engine.CheckThresholds(ctx, "ws-1", "test")
	if err != nil {
		t.Fatalf("CheckThresholds failed: %v", err)
	}
	if len(alerts) != 0 {
		t.Errorf("Expected no alerts for unlimited windows, got %+v", alerts)
	}
}

func TestEngine_PeriodIsolation(t *testing.T) {
	st := store.NewMemoryStore()
	engine := newTestEngine(t, st, Policy{
		EmailsPerDayPerMailbox: 1,
		EmailsPerMonth:         100,
		LinkedInPerDay:         10,
		LinkedInPerMonth:       100,
	})
	ctx := context.Background()

	recordEmails(t, engine, "ws-1", "mb-1", 1)

	decision, _ := engine.CheckEmailAllowed(ctx, "ws-1", "mb-1", "test")
	if decision.Allowed {
		t.Fatal("Expected denied on the day of the send")
	}

	// Next day, same month: the daily window is fresh, the monthly counter
	// still carries the send.
	engine.now = func() time.Time { return testTime.AddDate(0, 0, 1) }

	decision, err := engine.CheckEmailAllowed(ctx, "ws-1", "mb-1", "test")
	if err != nil {
		t.Fatalf("CheckEmailAllowed failed: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("Expected allowed the next day, got denied (%s)", decision.Reason)
	}

	monthly, err := st.Sum(ctx, "ws-1", string(ChannelEmail), string(PeriodMonthly), MonthlyKey(testTime))
	if err != nil {
		t.Fatalf("Sum failed: %v", err)
	}
	if monthly != 1 {
		t.Errorf("Expected monthly counter 1 after day rollover, got %d", monthly)
	}

	// The old daily counter is untouched by the new day's key.
	old, err := st.Read(ctx, store.Key{
		WorkspaceID: "ws-1",
		ScopeID:     "mb-1",
		Channel:     string(ChannelEmail),
		PeriodType:  string(PeriodDaily),
		PeriodKey:   DailyKey(testTime),
	})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if old != 1 {
		t.Errorf("Expected old daily counter 1, got %d", old)
	}
}

func TestEngine_LinkedInCeilings(t *testing.T) {
	engine := newTestEngine(t, store.NewMemoryStore(), Policy{
		EmailsPerDayPerMailbox: 10,
		EmailsPerMonth:         100,
		LinkedInPerDay:         2,
		LinkedInPerMonth:       100,
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := engine.RecordLinkedInAction(ctx, "ws-1"); err != nil {
			t.Fatalf("RecordLinkedInAction failed: %v", err)
		}
	}

	decision, err := engine.CheckLinkedInAllowed(ctx, "ws-1", "test")
	if err != nil {
		t.Fatalf("CheckLinkedInAllowed failed: %v", err)
	}
	if decision.Allowed {
		t.Fatal("Expected denied at daily LinkedIn ceiling")
	}
	if decision.Reason != DenyDailyLinkedIn {
		t.Errorf("Expected reason %q, got %q", DenyDailyLinkedIn, decision.Reason)
	}
}

func TestEngine_ThresholdCrossing(t *testing.T) {
	engine := newTestEngine(t, store.NewMemoryStore(), Policy{
		EmailsPerDayPerMailbox: 1000,
		EmailsPerMonth:         100,
		LinkedInPerDay:         10,
		LinkedInPerMonth:       100,
	})
	ctx := context.Background()

	findMonthlyEmail := func(alerts []ThresholdAlert) *ThresholdAlert {
		for i := range alerts {
			if alerts[i].Channel == ChannelEmail && alerts[i].Period == PeriodMonthly {
				return &alerts[i]
			}
		}
		return nil
	}

	// 79/100: below the 80% warning ratio
	recordEmails(t, engine, "ws-1", "mb-1", 79)
	alerts, err := engine.CheckThresholds(ctx, "ws-1", "test")
	if err != nil {
		t.Fatalf("CheckThresholds failed: %v", err)
	}
	if alert := findMonthlyEmail(alerts); alert != nil {
		t.Errorf("Expected no monthly email alert at 79%%, got %+v", alert)
	}

	// 80/100: at the warning ratio
	recordEmails(t, engine, "ws-1", "mb-1", 1)
	alerts, err = engine.CheckThresholds(ctx, "ws-1", "test")
	if err != nil {
		t.Fatalf("CheckThresholds failed: %v", err)
	}
	alert := findMonthlyEmail(alerts)
	if alert == nil {
		t.Fatalf("Expected monthly email alert at 80%%, got %+v", alerts)
	}
	if alert.Percent != 80 {
		t.Errorf("Expected percent 80, got %v", alert.Percent)
	}
	if alert.Current != 80 || alert.Limit != 100 {
		t.Errorf("Expected current=80 limit=100, got current=%d limit=%d", alert.Current, alert.Limit)
	}
}

func TestEngine_ThresholdsPerMailbox(t *testing.T) {
	engine := newTestEngine(t, store.NewMemoryStore(), Policy{
		EmailsPerDayPerMailbox: 10,
		EmailsPerMonth:         1000,
		LinkedInPerDay:         10,
		LinkedInPerMonth:       100,
	})
	ctx := context.Background()

	recordEmails(t, engine, "ws-1", "mb-hot", 9)
	recordEmails(t, engine, "ws-1", "mb-cold", 2)

	alerts, err := engine.CheckThresholds(ctx, "ws-1", "test", "mb-hot", "mb-cold")
	if err != nil {
		t.Fatalf("CheckThresholds failed: %v", err)
	}

	var hot, cold bool
	for _, alert := range alerts {
		switch alert.MailboxID {
		case "mb-hot":
			hot = true
			if alert.Percent != 90 {
				t.Errorf("Expected mb-hot at 90%%, got %v", alert.Percent)
			}
		case "mb-cold":
			cold = true
		}
	}
	if !hot {
		t.Error("Expected alert for mb-hot")
	}
	if cold {
		t.Error("Did not expect alert for mb-cold at 20%")
	}
}

func TestEngine_FailClosedOnStoreError(t *testing.T) {
	engine := newTestEngine(t, &errorStore{}, Policy{
		EmailsPerDayPerMailbox: 10,
		EmailsPerMonth:         100,
		LinkedInPerDay:         10,
		LinkedInPerMonth:       100,
	})
	ctx := context.Background()

	decision, err := engine.CheckEmailAllowed(ctx, "ws-1", "mb-1", "test")
	if err == nil {
		t.Fatal("Expected error from failing store")
	}
	if decision.Allowed {
		t.Error("Admission must fail closed on storage errors")
	}

	decision, err = engine.CheckLinkedInAllowed(ctx, "ws-1", "test")
	if err == nil {
		t.Fatal("Expected error from failing store")
	}
	if decision.Allowed {
		t.Error("Admission must fail closed on storage errors")
	}

	if _, err := engine.CheckThresholds(ctx, "ws-1", "test"); err == nil {
		t.Error("Expected threshold error from failing store")
	}
}

func TestEngine_RecordRetriesTransientFailures(t *testing.T) {
	st := &flakyStore{inner: store.NewMemoryStore(), failuresPerKey: 2}
	engine := newTestEngine(t, st, Policy{
		EmailsPerDayPerMailbox: 10,
		EmailsPerMonth:         100,
		LinkedInPerDay:         10,
		LinkedInPerMonth:       100,
	})
	ctx := context.Background()

	if err := engine.RecordEmailSend(ctx, "ws-1", "mb-1"); err != nil {
		t.Fatalf("RecordEmailSend failed despite retry budget: %v", err)
	}

	for _, period := range []PeriodType{PeriodDaily, PeriodMonthly} {
		count, err := st.inner.Read(ctx, store.Key{
			WorkspaceID: "ws-1",
			ScopeID:     "mb-1",
			Channel:     string(ChannelEmail),
			PeriodType:  string(period),
			PeriodKey:   PeriodKey(period, testTime),
		})
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if count != 1 {
			t.Errorf("Expected %s counter 1 after retries, got %d", period, count)
		}
	}
}

func TestEngine_PartialFailureRetriesOnlyFailedCounter(t *testing.T) {
	// Monthly increments fail permanently; the daily counter must be
	// committed exactly once, not re-incremented by the monthly retries.
	st := &flakyStore{inner: store.NewMemoryStore(), failuresPerKey: -1, failOnly: string(PeriodMonthly)}
	engine := newTestEngine(t, st, Policy{
		EmailsPerDayPerMailbox: 10,
		EmailsPerMonth:         100,
		LinkedInPerDay:         10,
		LinkedInPerMonth:       100,
	})
	ctx := context.Background()

	err := engine.RecordEmailSend(ctx, "ws-1", "mb-1")
	if !errors.Is(err, ErrIncrementLost) {
		t.Fatalf("Expected ErrIncrementLost, got %v", err)
	}

	daily, err := st.inner.Read(ctx, store.Key{
		WorkspaceID: "ws-1",
		ScopeID:     "mb-1",
		Channel:     string(ChannelEmail),
		PeriodType:  string(PeriodDaily),
		PeriodKey:   DailyKey(testTime),
	})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if daily != 1 {
		t.Errorf("Expected daily counter exactly 1, got %d", daily)
	}

	monthly, err := st.inner.Read(ctx, store.Key{
		WorkspaceID: "ws-1",
		ScopeID:     "mb-1",
		Channel:     string(ChannelEmail),
		PeriodType:  string(PeriodMonthly),
		PeriodKey:   MonthlyKey(testTime),
	})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if monthly != 0 {
		t.Errorf("Expected monthly counter 0 after permanent failure, got %d", monthly)
	}
}

func TestEngine_IncrementLostAfterRetryExhaustion(t *testing.T) {
	engine := newTestEngine(t, &errorStore{}, Policy{
		EmailsPerDayPerMailbox: 10,
		EmailsPerMonth:         100,
		LinkedInPerDay:         10,
		LinkedInPerMonth:       100,
	})

	err := engine.RecordLinkedInAction(context.Background(), "ws-1")
	if !errors.Is(err, ErrIncrementLost) {
		t.Fatalf("Expected ErrIncrementLost, got %v", err)
	}
}

func TestEngine_ConcurrentRecording(t *testing.T) {
	const sends = 100

	st := store.NewMemoryStore()
	engine := newTestEngine(t, st, Policy{
		EmailsPerDayPerMailbox: 10000,
		EmailsPerMonth:         100000,
		LinkedInPerDay:         10,
		LinkedInPerMonth:       100,
	})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < sends; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := engine.RecordEmailSend(ctx, "ws-1", "mb-1"); err != nil {
				t.Errorf("RecordEmailSend failed: %v", err)
			}
		}()
	}
	wg.Wait()

	daily, err := st.Read(ctx, store.Key{
		WorkspaceID: "ws-1",
		ScopeID:     "mb-1",
		Channel:     string(ChannelEmail),
		PeriodType:  string(PeriodDaily),
		PeriodKey:   DailyKey(testTime),
	})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if daily != sends {
		t.Errorf("Expected daily counter %d after concurrent sends, got %d", sends, daily)
	}
}

// errorStore fails every operation.
type errorStore struct{}

func (e *errorStore) Read(ctx context.Context, key store.Key) (int64, error) {
	return 0, fmt.Errorf("store unavailable")
}

func (e *errorStore) IncrementAndGet(ctx context.Context, key store.Key) (int64, error) {
	return 0, fmt.Errorf("store unavailable")
}

func (e *errorStore) Sum(ctx context.Context, workspaceID, channel, periodType, periodKey string) (int64, error) {
	return 0, fmt.Errorf("store unavailable")
}

func (e *errorStore) Close() error { return nil }

// flakyStore wraps a memory store and fails increments a configurable
// number of times per key (-1 for always). When failOnly is set, only keys
// of that period type fail.
type flakyStore struct {
	inner          *store.MemoryStore
	failuresPerKey int
	failOnly       string

	mu   sync.Mutex
	seen map[string]int
}

func (f *flakyStore) Read(ctx context.Context, key store.Key) (int64, error) {
	return f.inner.Read(ctx, key)
}

func (f *flakyStore) Sum(ctx context.Context, workspaceID, channel, periodType, periodKey string) (int64, error) {
	return f.inner.Sum(ctx, workspaceID, channel, periodType, periodKey)
}

func (f *flakyStore) Close() error { return nil }

func (f *flakyStore) IncrementAndGet(ctx context.Context, key store.Key) (int64, error) {
	if f.failOnly == "" || strings.EqualFold(f.failOnly, key.PeriodType) {
		if f.failuresPerKey < 0 {
			return 0, fmt.Errorf("injected failure")
		}

		f.mu.Lock()
		if f.seen == nil {
			f.seen = make(map[string]int)
		}
		f.seen[key.String()]++
		attempts := f.seen[key.String()]
		f.mu.Unlock()

		if attempts <= f.failuresPerKey {
			return 0, fmt.Errorf("injected failure %d", attempts)
		}
	}
	return f.inner.IncrementAndGet(ctx, key)
}
