package model

import "time"

// Recurrence identifies how often a task repeats.
type Recurrence string

const (
	RecurrenceNone    Recurrence = "none"
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
	RecurrenceYearly  Recurrence = "yearly"
)

// Valid reports whether r is one of the known recurrence values.
func (r Recurrence) Valid() bool {
	switch r {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly,
		RecurrenceMonthly, RecurrenceYearly:
		return true
	}
	return false
}

// Task is a one-off or recurring reminder created by the user.
type Task struct {
	// ID is the stable internal identifier for this task.
	ID string `json:"id" db:"id"`

	// Title is the human-readable summary of the task.
	Title string `json:"title" db:"title"`

	// AnchorDate is the date the recurrence pattern is computed relative
	// to. For non-recurring tasks it is the due date. Nil means the task
	// has no date at all ("anytime").
	AnchorDate *time.Time `json:"anchor_date,omitempty" db:"anchor_date"`

	// AnchorTime is an optional time of day in "HH:MM" format.
	AnchorTime string `json:"anchor_time,omitempty" db:"anchor_time"`

	// Recurrence is the repeat pattern (use Recurrence* constants).
	Recurrence Recurrence `json:"recurrence" db:"recurrence"`

	// Completed archives a non-recurring task. It has no effect on
	// recurring tasks, whose per-date state lives in CompletionRecords.
	Completed bool `json:"completed" db:"completed"`

	// Urgency is an opaque priority value passed through to consumers.
	Urgency int `json:"urgency" db:"urgency"`

	// NotifySettings holds opaque notification preferences (JSON).
	NotifySettings string `json:"notify_settings,omitempty" db:"notify_settings"`

	// SharedWith holds opaque sharing metadata (JSON).
	SharedWith string `json:"shared_with,omitempty" db:"shared_with"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Recurring reports whether the task repeats.
func (t Task) Recurring() bool {
	return t.Recurrence != "" && t.Recurrence != RecurrenceNone
}

// CompletionRecord marks one occurrence of a recurring task as done.
// At most one record exists per (TaskID, Date) pair.
type CompletionRecord struct {
	ID        string    `json:"id" db:"id"`
	TaskID    string    `json:"task_id" db:"task_id"`
	Date      string    `json:"date" db:"date"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ExceptionRecord permanently suppresses one occurrence of a recurring
// task. At most one record exists per (TaskID, Date) pair, and there is
// no operation that removes one short of deleting the whole series.
type ExceptionRecord struct {
	ID        string    `json:"id" db:"id"`
	TaskID    string    `json:"task_id" db:"task_id"`
	Date      string    `json:"date" db:"date"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
