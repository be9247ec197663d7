package model

// Identity names either a task as a whole or a single dated instance of
// it. Historical completion entries need the instance form so they can
// be listed next to one-off tasks without colliding with the live task.
type Identity struct {
	TaskID string
	// Date is empty for the stable (whole-task) identity.
	Date string
}

// StableID returns the identity of the task itself.
func StableID(taskID string) Identity {
	return Identity{TaskID: taskID}
}

// InstanceID returns the identity of one dated occurrence of a task.
func InstanceID(taskID, date string) Identity {
	return Identity{TaskID: taskID, Date: date}
}

// Instance reports whether the identity names a single occurrence.
func (id Identity) Instance() bool { return id.Date != "" }

// String renders the identity for display and logging. Instance
// identities use the task id suffixed with the date.
func (id Identity) String() string {
	if id.Date == "" {
		return id.TaskID
	}
	return id.TaskID + "_" + id.Date
}

// OccurrenceState is the resolved state of a (task, date) pair.
type OccurrenceState int

const (
	// StateAbsent means the pattern produces no occurrence on the date,
	// or the task is archived.
	StateAbsent OccurrenceState = iota
	// StateDue means an active, uncompleted occurrence exists.
	StateDue
	// StateCompleted means the occurrence exists and is marked done.
	StateCompleted
	// StateExcluded means the occurrence was deleted for this date only.
	StateExcluded
)

func (s OccurrenceState) String() string {
	switch s {
	case StateDue:
		return "due"
	case StateCompleted:
		return "completed"
	case StateExcluded:
		return "excluded"
	default:
		return "absent"
	}
}

// Occurrence is one computed due-date instance of a task. It is derived
// on demand and never persisted.
type Occurrence struct {
	TaskID    string
	Date      string
	Time      string // "HH:MM" or "" for untimed
	Completed bool
}

// ItemKind tags entries in the aggregated day index.
type ItemKind string

const (
	// ItemTask is a non-recurring task due on the day.
	ItemTask ItemKind = "task"
	// ItemOccurrence is a resolved instance of a recurring task.
	ItemOccurrence ItemKind = "occurrence"
	// ItemEvent is a read-only external calendar event. Events are never
	// completable or excludable.
	ItemEvent ItemKind = "event"
)

// AgendaItem is a single entry in the unified day view.
type AgendaItem struct {
	Kind      ItemKind
	ID        Identity
	Title     string
	Date      string
	Time      string // "" sorts before any timed entry
	Completed bool
	Urgency   int

	// Task is set for ItemTask and ItemOccurrence entries.
	Task *Task
	// Event is set for ItemEvent entries.
	Event *ExternalEvent
}

// Timed reports whether the item has a time of day.
func (it AgendaItem) Timed() bool { return it.Time != "" }
