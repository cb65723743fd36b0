package recurrence

import "time"

// Status classifies a due date relative to "today". The first three are
// computed; the rest are terminal states recorded by the payment flow and
// never recomputed away.
type Status string

const (
	StatusUpcoming Status = "upcoming"
	StatusDueToday Status = "due_today"
	StatusOverdue  Status = "overdue"

	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
	StatusSkipped   Status = "skipped"
	StatusPostponed Status = "postponed"
)

// Terminal reports whether a status is an end state that date math must
// never override.
func (s Status) Terminal() bool {
	switch s {
	case StatusPaid, StatusCancelled, StatusSkipped, StatusPostponed:
		return true
	}
	return false
}

// CalculateStatus is the single source of truth for due-date classification.
// Bills, scheduled payments, liability schedules, and budget periods all
// route through here rather than comparing dates themselves.
func CalculateStatus(dueDate, today time.Time, existing Status) Status {
	if existing.Terminal() {
		return existing
	}

	due := DateOnly(dueDate)
	ref := DateOnly(today)
	switch {
	case due.Before(ref):
		return StatusOverdue
	case due.Equal(ref):
		return StatusDueToday
	default:
		return StatusUpcoming
	}
}
