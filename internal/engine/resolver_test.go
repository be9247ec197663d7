package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskcal/internal/model"
)

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// indexWith builds a ledger snapshot directly for resolver tests.
func indexWith(completed, excluded []ledgerKey) *Index {
	idx := &Index{
		completed: make(map[ledgerKey]bool),
		excluded:  make(map[ledgerKey]bool),
	}
	for _, k := range completed {
		idx.completed[k] = true
	}
	for _, k := range excluded {
		idx.excluded[k] = true
	}
	return idx
}

func TestResolve(t *testing.T) {
	weekly := model.Task{
		ID:         "t1",
		Recurrence: model.RecurrenceWeekly,
		AnchorDate: datePtr(2024, 1, 1), // Monday
	}
	oneOff := model.Task{
		ID:         "t2",
		Recurrence: model.RecurrenceNone,
		AnchorDate: datePtr(2024, 2, 1),
	}

	tests := []struct {
		name     string
		task     model.Task
		day      time.Time
		idx      *Index
		expected model.OccurrenceState
	}{
		{
			name:     "recurring occurrence is due on a pattern day",
			task:     weekly,
			day:      day(2024, 1, 8),
			idx:      indexWith(nil, nil),
			expected: model.StateDue,
		},
		{
			name:     "recurring occurrence absent off pattern",
			task:     weekly,
			day:      day(2024, 1, 9),
			idx:      indexWith(nil, nil),
			expected: model.StateAbsent,
		},
		{
			name:     "completion record hides the occurrence from the due list",
			task:     weekly,
			day:      day(2024, 1, 8),
			idx:      indexWith([]ledgerKey{{"t1", "2024-01-08"}}, nil),
			expected: model.StateCompleted,
		},
		{
			name:     "exception wins even over a completion record",
			task:     weekly,
			day:      day(2024, 1, 8),
			idx:      indexWith([]ledgerKey{{"t1", "2024-01-08"}}, []ledgerKey{{"t1", "2024-01-08"}}),
			expected: model.StateExcluded,
		},
		{
			name:     "one-off task due on its anchor date",
			task:     oneOff,
			day:      day(2024, 2, 1),
			idx:      indexWith(nil, nil),
			expected: model.StateDue,
		},
		{
			name:     "one-off task absent on other dates",
			task:     oneOff,
			day:      day(2024, 2, 2),
			idx:      indexWith(nil, nil),
			expected: model.StateAbsent,
		},
		{
			name: "archived one-off task is absent everywhere",
			task: model.Task{
				ID: "t2", Recurrence: model.RecurrenceNone,
				AnchorDate: datePtr(2024, 2, 1), Completed: true,
			},
			day:      day(2024, 2, 1),
			idx:      indexWith(nil, nil),
			expected: model.StateAbsent,
		},
		{
			name:     "anytime task has no occurrences",
			task:     model.Task{ID: "t3", Recurrence: model.RecurrenceNone},
			day:      day(2024, 2, 1),
			idx:      indexWith(nil, nil),
			expected: model.StateAbsent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Resolve(tt.task, tt.day, tt.idx))
		})
	}
}

func TestResolveRange(t *testing.T) {
	task := model.Task{
		ID:         "t1",
		Recurrence: model.RecurrenceWeekly,
		AnchorDate: datePtr(2024, 1, 1),
		AnchorTime: "09:30",
	}
	idx := indexWith(
		[]ledgerKey{{"t1", "2024-01-08"}},
		[]ledgerKey{{"t1", "2024-01-15"}},
	)

	occurrences, err := ResolveRange(task, day(2024, 1, 1), day(2024, 1, 31), idx)
	require.NoError(t, err)

	// Five Mondays, minus the excluded 15th. Excluded occurrences are
	// never materialized.
	require.Len(t, occurrences, 4)
	assert.Equal(t, "2024-01-01", occurrences[0].Date)
	assert.Equal(t, "2024-01-08", occurrences[1].Date)
	assert.True(t, occurrences[1].Completed)
	assert.Equal(t, "2024-01-22", occurrences[2].Date)
	assert.Equal(t, "2024-01-29", occurrences[3].Date)
	assert.Equal(t, "09:30", occurrences[0].Time)
}

func TestResolveRangeInvalidTask(t *testing.T) {
	task := model.Task{ID: "t1", Recurrence: model.RecurrenceWeekly}

	_, err := ResolveRange(task, day(2024, 1, 1), day(2024, 1, 31), indexWith(nil, nil))
	assert.True(t, IsValidationError(err))
}
