package quota

import "errors"

// Channel identifies an outbound send channel.
type Channel string

const (
	// ChannelEmail is outbound email sending.
	ChannelEmail Channel = "email"

	// ChannelLinkedIn is outbound LinkedIn actions (connects, messages).
	ChannelLinkedIn Channel = "linkedin"
)

// PeriodType identifies a quota accounting window.
type PeriodType string

const (
	// PeriodDaily is a UTC calendar-day window.
	PeriodDaily PeriodType = "daily"

	// PeriodMonthly is a UTC calendar-month window.
	PeriodMonthly PeriodType = "monthly"
)

// DenyReason names the window that caused an admission denial.
// Quota exhaustion is always a typed result value, never an error.
type DenyReason string

const (
	// DenyDailyEmail means the per-mailbox daily email ceiling is reached.
	DenyDailyEmail DenyReason = "daily_email"

	// DenyMonthlyEmail means the workspace monthly email ceiling is reached.
	DenyMonthlyEmail DenyReason = "monthly_email"

	// DenyDailyLinkedIn means the workspace daily LinkedIn ceiling is reached.
	DenyDailyLinkedIn DenyReason = "daily_linkedin"

	// DenyMonthlyLinkedIn means the workspace monthly LinkedIn ceiling is reached.
	DenyMonthlyLinkedIn DenyReason = "monthly_linkedin"
)

// Decision is the result of an admission check.
//
// When Allowed is false, Reason names the violated window and Current/Limit
// carry the counter value and ceiling that triggered the denial, so callers
// can explain "daily limit reached" vs. "monthly limit reached" without
// re-deriving it from raw counters.
type Decision struct {
	// Allowed indicates whether the send may proceed.
	Allowed bool

	// Reason names the violated window. Empty when Allowed is true.
	Reason DenyReason

	// Current is the counter value of the violated window.
	Current int64

	// Limit is the ceiling of the violated window.
	Limit int64
}

// ThresholdAlert reports a monitored window at or above the warning ratio.
type ThresholdAlert struct {
	// Channel is the send channel of the window.
	Channel Channel

	// Period is the accounting window type.
	Period PeriodType

	// MailboxID is set for the per-mailbox daily email window and empty
	// for workspace-scoped windows.
	MailboxID string

	// Current is the current counter value.
	Current int64

	// Limit is the configured ceiling.
	Limit int64

	// Percent is usage as a percentage of the ceiling (0-100, may exceed 100).
	Percent float64
}

// Error values for infrastructure failures. Quota exhaustion is never an
// error; see Decision.
var (
	// ErrIncrementLost is returned when a usage increment could not be
	// committed within the retry budget. The increment has been logged as a
	// reconciliation event; the send must NOT be retried, it already
	// happened.
	ErrIncrementLost = errors.New("usage increment lost after retries")

	// ErrNoStore is returned by New when no counter store is configured.
	ErrNoStore = errors.New("counter store is required")
)
