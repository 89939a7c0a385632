package quota

import "time"

// Period keys are derived once from wall-clock time at the moment of the
// operation and never recomputed retroactively. The timezone is fixed to UTC
// so concurrent callers in different local zones always agree on the current
// window.

// DailyKey returns the canonical key for the UTC calendar day containing t,
// in the form "2006-01-02".
func DailyKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// MonthlyKey returns the canonical key for the UTC calendar month containing
// t, in the form "2006-01".
func MonthlyKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// PeriodKey returns the canonical key of the given period type for t.
func PeriodKey(period PeriodType, t time.Time) string {
	if period == PeriodMonthly {
		return MonthlyKey(t)
	}
	return DailyKey(t)
}
