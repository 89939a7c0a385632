package retention

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"nimbus-hq/sendgate/pkg/quota/store"
)

func TestScheduler_Start(t *testing.T) {
	tests := []struct {
		name        string
		schedule    string
		wantRunning bool
		wantError   bool
	}{
		{
			name:        "valid daily schedule",
			schedule:    "0 4 * * *",
			wantRunning: true,
			wantError:   false,
		},
		{
			name:        "valid hourly schedule",
			schedule:    "0 * * * *",
			wantRunning: true,
			wantError:   false,
		},
		{
			name:        "empty schedule - no error, not running",
			schedule:    "",
			wantRunning: false,
			wantError:   false,
		},
		{
			name:        "invalid schedule",
			schedule:    "invalid cron",
			wantRunning: false,
			wantError:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pruner := &Pruner{
				store: store.NewMemoryStore(),
				config: &Config{
					PruneSchedule: tt.schedule,
					KeepDays:      45,
					KeepMonths:    13,
				},
				logger: slog.Default(),
				now:    time.Now,
			}

			scheduler := NewScheduler(pruner)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			err := scheduler.Start(ctx)

			if (err != nil) != tt.wantError {
				t.Errorf("Start() error = %v, wantError %v", err, tt.wantError)
			}

			if scheduler.IsRunning() != tt.wantRunning {
				t.Errorf("IsRunning() = %v, want %v",
					scheduler.IsRunning(), tt.wantRunning)
			}

			if tt.wantRunning {
				if next := scheduler.NextRun(); next == nil {
					t.Error("NextRun() returned nil for running scheduler")
				}
			}

			scheduler.Stop()

			if scheduler.IsRunning() {
				t.Error("scheduler still running after Stop()")
			}
		})
	}
}

func TestScheduler_GracefulShutdown(t *testing.T) {
	pruner := NewPruner(store.NewMemoryStore(), &Config{
		PruneSchedule: "0 4 * * *",
		KeepDays:      45,
	})

	scheduler := NewScheduler(pruner)

	ctx, cancel := context.WithCancel(context.Background())

	if err := scheduler.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	// Cancel context - should trigger shutdown
	cancel()

	// Wait a bit for graceful shutdown
	time.Sleep(100 * time.Millisecond)

	if scheduler.IsRunning() {
		t.Error("scheduler still running after context cancelled")
	}
}

func TestScheduler_NextRun(t *testing.T) {
	pruner := NewPruner(store.NewMemoryStore(), &Config{
		PruneSchedule: "0 4 * * *",
		KeepDays:      45,
	})

	scheduler := NewScheduler(pruner)

	// Before starting, NextRun should return nil
	if next := scheduler.NextRun(); next != nil {
		t.Errorf("NextRun() before start = %v, want nil", next)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := scheduler.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer scheduler.Stop()

	next := scheduler.NextRun()
	if next == nil {
		t.Fatal("NextRun() after start returned nil")
	}
	if !next.After(time.Now()) {
		t.Errorf("NextRun() = %v, want time in future", next)
	}
}

func TestScheduler_MultipleStartStop(t *testing.T) {
	pruner := NewPruner(store.NewMemoryStore(), &Config{
		PruneSchedule: "0 * * * *",
		KeepDays:      45,
	})

	scheduler := NewScheduler(pruner)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i := 0; i < 3; i++ {
		if err := scheduler.Start(ctx); err != nil {
			t.Fatalf("Start() iteration %d failed: %v", i, err)
		}

		if !scheduler.IsRunning() {
			t.Errorf("IsRunning() = false after Start() iteration %d", i)
		}

		scheduler.Stop()

		if scheduler.IsRunning() {
			t.Errorf("IsRunning() = true after Stop() iteration %d", i)
		}

		time.Sleep(50 * time.Millisecond)
	}
}

func TestPruner_StartStop(t *testing.T) {
	pruner := NewPruner(store.NewMemoryStore(), &Config{
		PruneSchedule: "0 4 * * *",
		KeepDays:      45,
		KeepMonths:    13,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := pruner.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	if !pruner.scheduler.IsRunning() {
		t.Error("scheduler not running after Pruner.Start()")
	}

	if next := pruner.NextPruning(); next == nil {
		t.Error("NextPruning() returned nil")
	}

	pruner.Stop()

	if pruner.scheduler.IsRunning() {
		t.Error("scheduler still running after Pruner.Stop()")
	}
}
