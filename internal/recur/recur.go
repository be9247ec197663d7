// Package recur computes the concrete calendar occurrences of a
// recurring task from its anchor date and recurrence pattern. It is
// pure: no I/O, no ledger knowledge, no side effects.
package recur

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/nhle/taskcal/internal/model"
)

// Matches reports whether the task's pattern produces an occurrence on
// the given day. Tasks without an anchor date or without a repeating
// pattern never match; the same-day anchor counts.
//
// Monthly and yearly anchors keep their literal day of month: an anchor
// on the 31st produces nothing in shorter months. There is deliberately
// no clamping to month end.
func Matches(t model.Task, day time.Time) bool {
	if !t.Recurring() || t.AnchorDate == nil {
		return false
	}

	anchor := model.Midnight(*t.AnchorDate)
	day = model.Midnight(day)
	if day.Before(anchor) {
		return false
	}

	switch t.Recurrence {
	case model.RecurrenceDaily:
		return true
	case model.RecurrenceWeekly:
		return day.Weekday() == anchor.Weekday()
	case model.RecurrenceMonthly:
		return day.Day() == anchor.Day()
	case model.RecurrenceYearly:
		return day.Day() == anchor.Day() && day.Month() == anchor.Month()
	default:
		return false
	}
}

// Expand returns every day in [start, end] (inclusive) on which the
// task's pattern produces an occurrence, in ascending order. The
// returned times are midnight UTC. Non-recurring tasks expand to
// nothing; the aggregator places those directly.
func Expand(t model.Task, start, end time.Time) ([]time.Time, error) {
	if !t.Recurring() {
		return nil, nil
	}
	if t.AnchorDate == nil {
		return nil, fmt.Errorf("task %s: recurrence %q requires an anchor date", t.ID, t.Recurrence)
	}

	rule, err := ruleFor(t)
	if err != nil {
		return nil, err
	}

	start = model.Midnight(start)
	end = model.Midnight(end)
	if end.Before(start) {
		return nil, nil
	}

	// Between is inclusive on both ends with inc=true; the rule's
	// DTSTART already bounds the series at the anchor.
	return rule.Between(start, end, true), nil
}

// ruleFor maps the task's recurrence enum onto an RRULE. The defaults
// of the iCalendar model reproduce the engine's semantics exactly:
// WEEKLY repeats on the anchor's weekday, MONTHLY on the anchor's day
// of month (skipping months that lack it), YEARLY on the anchor's
// month and day.
func ruleFor(t model.Task) (*rrule.RRule, error) {
	var freq rrule.Frequency
	switch t.Recurrence {
	case model.RecurrenceDaily:
		freq = rrule.DAILY
	case model.RecurrenceWeekly:
		freq = rrule.WEEKLY
	case model.RecurrenceMonthly:
		freq = rrule.MONTHLY
	case model.RecurrenceYearly:
		freq = rrule.YEARLY
	default:
		return nil, fmt.Errorf("task %s: unsupported recurrence %q", t.ID, t.Recurrence)
	}

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:    freq,
		Dtstart: model.Midnight(*t.AnchorDate),
	})
	if err != nil {
		return nil, fmt.Errorf("building rule for task %s: %w", t.ID, err)
	}
	return rule, nil
}
