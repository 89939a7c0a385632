package quota

import (
	"sort"
	"sync"
)

// Unlimited marks a ceiling with no limit. Zero is NOT unlimited: a ceiling
// of zero means no sends are permitted on that channel for the plan.
const Unlimited int64 = -1

// DefaultPlan is the fallback plan for unknown plan names. It is the most
// restrictive built-in plan, so a misconfigured or stale plan name never
// grants unintended quota headroom.
const DefaultPlan = "free"

// Policy holds the four ceilings for one plan.
type Policy struct {
	// EmailsPerDayPerMailbox caps daily sends from a single mailbox.
	EmailsPerDayPerMailbox int64

	// EmailsPerMonth caps monthly sends across the whole workspace.
	EmailsPerMonth int64

	// LinkedInPerDay caps daily LinkedIn actions for the workspace.
	LinkedInPerDay int64

	// LinkedInPerMonth caps monthly LinkedIn actions for the workspace.
	LinkedInPerMonth int64
}

// builtinPlans returns the shipped plan table. Plans loaded from
// configuration overlay these entries.
func builtinPlans() map[string]Policy {
	return map[string]Policy{
		"free": {
			EmailsPerDayPerMailbox: 20,
			EmailsPerMonth:         200,
			LinkedInPerDay:         10,
			LinkedInPerMonth:       100,
		},
		"starter": {
			EmailsPerDayPerMailbox: 100,
			EmailsPerMonth:         2000,
			LinkedInPerDay:         25,
			LinkedInPerMonth:       400,
		},
		"pro": {
			EmailsPerDayPerMailbox: 400,
			EmailsPerMonth:         10000,
			LinkedInPerDay:         80,
			LinkedInPerMonth:       1600,
		},
		"scale": {
			EmailsPerDayPerMailbox: 1000,
			EmailsPerMonth:         Unlimited,
			LinkedInPerDay:         200,
			LinkedInPerMonth:       Unlimited,
		},
	}
}

// PlanTable maps plan names to limit policies.
//
// The table is a static, versionable lookup with no network or storage
// access. It is safe for concurrent use; Replace supports hot reload from
// configuration.
type PlanTable struct {
	mu    sync.RWMutex
	plans map[string]Policy
}

// NewPlanTable creates a table containing the built-in plans.
func NewPlanTable() *PlanTable {
	return &PlanTable{plans: builtinPlans()}
}

// LimitsFor resolves a plan name to its policy. Unknown plan names resolve
// to the "free" plan rather than failing.
func (t *PlanTable) LimitsFor(plan string) Policy {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if policy, ok := t.plans[plan]; ok {
		return policy
	}
	return t.plans[DefaultPlan]
}

// Replace overlays the built-in plans with the given custom plans and swaps
// the result in atomically. Custom entries win over built-ins of the same
// name; built-ins not overridden remain available.
func (t *PlanTable) Replace(custom map[string]Policy) {
	merged := builtinPlans()
	for name, policy := range custom {
		merged[name] = policy
	}

	t.mu.Lock()
	t.plans = merged
	t.mu.Unlock()
}

// Names returns the known plan names in sorted order.
func (t *PlanTable) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.plans))
	for name := range t.plans {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
