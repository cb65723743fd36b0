// Package recurrence implements pure date arithmetic for recurring
// obligations: advancing a definition by one period, expanding it into a
// window of occurrences, and classifying due dates against "today".
// It performs no I/O; callers inject the reference date.
package recurrence

import (
	"errors"
	"time"
)

// Frequency is the repeat unit of a definition.
type Frequency string

const (
	FrequencyDay     Frequency = "day"
	FrequencyWeek    Frequency = "week"
	FrequencyMonth   Frequency = "month"
	FrequencyQuarter Frequency = "quarter"
	FrequencyYear    Frequency = "year"
	FrequencyCustom  Frequency = "custom"
)

// Unit is the base unit of a custom frequency.
type Unit string

const (
	UnitDay     Unit = "day"
	UnitWeek    Unit = "week"
	UnitMonth   Unit = "month"
	UnitQuarter Unit = "quarter"
	UnitYear    Unit = "year"
)

var (
	ErrInvalidFrequency = errors.New("invalid_frequency")
	ErrInvalidInterval  = errors.New("invalid_interval")
	ErrEmptyWeekdaySet  = errors.New("empty_weekday_set")
)

// Definition is a value object describing a recurrence rule.
type Definition struct {
	Frequency  Frequency
	Interval   int
	CustomUnit Unit
	// Weekdays applies when CustomUnit is week.
	Weekdays []time.Weekday
	// DayOfMonth applies when CustomUnit is month/quarter/year. Zero means
	// "use the start date's day of month".
	DayOfMonth int
	StartDate  time.Time
	EndDate    *time.Time
}

// Validate rejects definitions the rest of the system must never see.
// Custom definitions tolerate a non-positive interval (it defaults to 1),
// matching the leniency of the mobile form layer they originate from.
func (d Definition) Validate() error {
	switch d.Frequency {
	case FrequencyDay, FrequencyWeek, FrequencyMonth, FrequencyQuarter, FrequencyYear:
		if d.Interval < 1 {
			return ErrInvalidInterval
		}
	case FrequencyCustom:
		switch d.CustomUnit {
		case UnitDay, UnitWeek, UnitMonth, UnitQuarter, UnitYear:
		default:
			return ErrInvalidFrequency
		}
		if d.CustomUnit == UnitWeek && len(d.Weekdays) == 0 {
			return ErrEmptyWeekdaySet
		}
	default:
		return ErrInvalidFrequency
	}
	return nil
}

func (d Definition) interval() int {
	if d.Interval < 1 {
		return 1
	}
	return d.Interval
}

// anchorDay is the day-of-month occurrences try to land on.
func (d Definition) anchorDay() int {
	if d.DayOfMonth >= 1 && d.DayOfMonth <= 31 {
		return d.DayOfMonth
	}
	return d.StartDate.Day()
}

// Occurrence is one computed due date with its status relative to "today".
// Occurrences are derived values, never persisted.
type Occurrence struct {
	Date   time.Time
	Status Status
}

// Window bounds schedule expansion and carries the reference date used for
// status classification.
type Window struct {
	Start time.Time
	End   time.Time
	Today time.Time
}

// Next advances from by one period. For custom weekly rules the returned
// date may equal from when from itself falls on a configured weekday.
func Next(def Definition, from time.Time) time.Time {
	from = DateOnly(from)
	step := def.interval()

	switch def.Frequency {
	case FrequencyDay:
		return from.AddDate(0, 0, step)
	case FrequencyWeek:
		return from.AddDate(0, 0, 7*step)
	case FrequencyMonth:
		return addMonthsClamped(from, step, def.anchorDay())
	case FrequencyQuarter:
		return addMonthsClamped(from, 3*step, def.anchorDay())
	case FrequencyYear:
		return addMonthsClamped(from, 12*step, def.anchorDay())
	case FrequencyCustom:
		switch def.CustomUnit {
		case UnitDay:
			return from.AddDate(0, 0, step)
		case UnitWeek:
			return nextWeekday(def.Weekdays, step, from, true)
		case UnitMonth:
			return addMonthsClamped(from, step, def.anchorDay())
		case UnitQuarter:
			return addMonthsClamped(from, 3*step, def.anchorDay())
		case UnitYear:
			return addMonthsClamped(from, 12*step, def.anchorDay())
		}
	}
	return from
}

// NextAfter advances strictly past from, even for custom weekly rules where
// Next would return from itself on a configured weekday.
func NextAfter(def Definition, from time.Time) time.Time {
	return advance(def, DateOnly(from))
}

// maxOccurrences caps expansion so a malformed definition cannot spin.
const maxOccurrences = 3660

// NextOnOrAfter walks the definition's own occurrence sequence from its
// start date and returns the first occurrence on or after from. It returns
// the zero time when the sequence ends (end date or cap) before reaching
// from. Unlike Next, the result is always a date the definition actually
// produces, not an offset from an arbitrary reference.
func NextOnOrAfter(def Definition, from time.Time) time.Time {
	from = DateOnly(from)
	current := firstOccurrence(def)
	for i := 0; i < maxOccurrences; i++ {
		if def.EndDate != nil && current.After(DateOnly(*def.EndDate)) {
			return time.Time{}
		}
		if !current.Before(from) {
			return current
		}
		next := advance(def, current)
		if !next.After(current) {
			return time.Time{}
		}
		current = next
	}
	return time.Time{}
}

// Schedule expands def into every occurrence within the window, each tagged
// with a status relative to window.Today. The expansion is deterministic:
// identical inputs always produce the identical list.
func Schedule(def Definition, window Window) []Occurrence {
	start := DateOnly(window.Start)
	end := DateOnly(window.End)
	if def.EndDate != nil && DateOnly(*def.EndDate).Before(end) {
		end = DateOnly(*def.EndDate)
	}
	if end.Before(start) {
		return nil
	}

	occurrences := make([]Occurrence, 0, 8)
	current := firstOccurrence(def)
	for i := 0; i < maxOccurrences && !current.After(end); i++ {
		if !current.Before(start) {
			occurrences = append(occurrences, Occurrence{
				Date:   current,
				Status: CalculateStatus(current, window.Today, ""),
			})
		}
		next := advance(def, current)
		if !next.After(current) {
			break
		}
		current = next
	}
	return occurrences
}

// firstOccurrence resolves where the sequence begins. Custom weekly rules
// snap the start date forward onto the nearest configured weekday.
func firstOccurrence(def Definition) time.Time {
	start := DateOnly(def.StartDate)
	if def.Frequency == FrequencyCustom && def.CustomUnit == UnitWeek {
		return nextWeekday(def.Weekdays, def.interval(), start, true)
	}
	return start
}

// advance moves strictly past current, unlike Next which may return current
// itself for custom weekly rules.
func advance(def Definition, current time.Time) time.Time {
	if def.Frequency == FrequencyCustom && def.CustomUnit == UnitWeek {
		return nextWeekday(def.Weekdays, def.interval(), current, false)
	}
	return Next(def, current)
}

// nextWeekday finds the nearest date on a configured weekday, searching the
// remainder of the current week first and then jumping whole interval-week
// blocks. Weeks start on Sunday.
func nextWeekday(days []time.Weekday, interval int, from time.Time, inclusive bool) time.Time {
	set := make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		set[d] = true
	}

	week := weekStart(from)
	candidate := from
	if !inclusive {
		candidate = candidate.AddDate(0, 0, 1)
	}
	for ; weekStart(candidate).Equal(week); candidate = candidate.AddDate(0, 0, 1) {
		if set[candidate.Weekday()] {
			return candidate
		}
	}

	next := week.AddDate(0, 0, 7*interval)
	for i := 0; i < 7; i++ {
		candidate := next.AddDate(0, 0, i)
		if set[candidate.Weekday()] {
			return candidate
		}
	}
	return next
}

func weekStart(t time.Time) time.Time {
	return DateOnly(t).AddDate(0, 0, -int(t.Weekday()))
}

// addMonthsClamped adds months while keeping occurrences anchored to
// anchorDay, clamping to the last day of shorter months (day 31 in February
// becomes Feb 28, or Feb 29 in a leap year).
func addMonthsClamped(t time.Time, months, anchorDay int) time.Time {
	firstOfMonth := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	target := firstOfMonth.AddDate(0, months, 0)

	day := anchorDay
	if last := daysInMonth(target.Year(), target.Month()); day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day, 0, 0, 0, 0, time.UTC)
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DateOnly truncates to midnight UTC. All recurrence math happens at day
// granularity.
func DateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysUntil returns the signed whole-day distance from today to date.
// Negative means the date already passed.
func DaysUntil(date, today time.Time) int {
	return int(DateOnly(date).Sub(DateOnly(today)).Hours() / 24)
}
