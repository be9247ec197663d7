package engine

import (
	"time"

	"github.com/nhle/taskcal/internal/model"
	"github.com/nhle/taskcal/internal/recur"
)

// Resolve answers "is this task due on this day, and in what state?"
// against a ledger snapshot.
//
// Non-recurring tasks are due exactly on their anchor date unless
// archived; the ledgers never apply to them. For recurring tasks an
// exception wins over everything, then the pattern decides existence,
// then a completion record decides the state.
func Resolve(task model.Task, day time.Time, idx *Index) model.OccurrenceState {
	date := model.DateKey(day)

	if !task.Recurring() {
		if task.Completed || task.AnchorDate == nil {
			return model.StateAbsent
		}
		if model.SameDay(*task.AnchorDate, day) {
			return model.StateDue
		}
		return model.StateAbsent
	}

	if idx.Excluded(task.ID, date) {
		return model.StateExcluded
	}
	if !recur.Matches(task, day) {
		return model.StateAbsent
	}
	if idx.Completed(task.ID, date) {
		return model.StateCompleted
	}
	return model.StateDue
}

// ResolveRange returns every materialized occurrence of a recurring
// task in [start, end]: due and completed instances, in date order.
// Excluded occurrences are never materialized. The ledger snapshot
// gives O(1) membership per date; nothing rescans the ledgers per day.
func ResolveRange(task model.Task, start, end time.Time, idx *Index) ([]model.Occurrence, error) {
	days, err := recur.Expand(task, start, end)
	if err != nil {
		return nil, &ValidationError{TaskID: task.ID, Reason: err.Error()}
	}

	occurrences := make([]model.Occurrence, 0, len(days))
	for _, day := range days {
		date := model.DateKey(day)
		if idx.Excluded(task.ID, date) {
			continue
		}
		occurrences = append(occurrences, model.Occurrence{
			TaskID:    task.ID,
			Date:      date,
			Time:      task.AnchorTime,
			Completed: idx.Completed(task.ID, date),
		})
	}
	return occurrences, nil
}
