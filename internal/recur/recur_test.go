package recur

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

func TestMatches(t *testing.T) {
	tests := []struct {
		name     string
		task     model.Task
		day      time.Time
		expected bool
	}{
		{
			name:     "daily matches any day on or after anchor",
			task:     model.Task{Recurrence: model.RecurrenceDaily, AnchorDate: datePtr(2024, 1, 10)},
			day:      day(2024, 3, 7),
			expected: true,
		},
		{
			name:     "daily matches the anchor day itself",
			task:     model.Task{Recurrence: model.RecurrenceDaily, AnchorDate: datePtr(2024, 1, 10)},
			day:      day(2024, 1, 10),
			expected: true,
		},
		{
			name:     "no day before the anchor ever matches",
			task:     model.Task{Recurrence: model.RecurrenceDaily, AnchorDate: datePtr(2024, 1, 10)},
			day:      day(2024, 1, 9),
			expected: false,
		},
		{
			name:     "weekly matches the anchor weekday",
			task:     model.Task{Recurrence: model.RecurrenceWeekly, AnchorDate: datePtr(2024, 1, 1)}, // Monday
			day:      day(2024, 1, 22),                                                                // Monday
			expected: true,
		},
		{
			name:     "weekly skips other weekdays",
			task:     model.Task{Recurrence: model.RecurrenceWeekly, AnchorDate: datePtr(2024, 1, 1)},
			day:      day(2024, 1, 23), // Tuesday
			expected: false,
		},
		{
			name:     "monthly matches the anchor day of month",
			task:     model.Task{Recurrence: model.RecurrenceMonthly, AnchorDate: datePtr(2024, 1, 15)},
			day:      day(2024, 6, 15),
			expected: true,
		},
		{
			name:     "monthly anchored on the 31st skips April",
			task:     model.Task{Recurrence: model.RecurrenceMonthly, AnchorDate: datePtr(2024, 1, 31)},
			day:      day(2024, 4, 30),
			expected: false,
		},
		{
			name:     "monthly anchored on the 31st skips February",
			task:     model.Task{Recurrence: model.RecurrenceMonthly, AnchorDate: datePtr(2024, 1, 31)},
			day:      day(2024, 2, 29),
			expected: false,
		},
		{
			name:     "yearly matches month and day",
			task:     model.Task{Recurrence: model.RecurrenceYearly, AnchorDate: datePtr(2023, 4, 12)},
			day:      day(2025, 4, 12),
			expected: true,
		},
		{
			name:     "yearly skips the same day in another month",
			task:     model.Task{Recurrence: model.RecurrenceYearly, AnchorDate: datePtr(2023, 4, 12)},
			day:      day(2025, 5, 12),
			expected: false,
		},
		{
			name:     "non-recurring tasks never match",
			task:     model.Task{Recurrence: model.RecurrenceNone, AnchorDate: datePtr(2024, 1, 1)},
			day:      day(2024, 1, 1),
			expected: false,
		},
		{
			name:     "missing anchor never matches",
			task:     model.Task{Recurrence: model.RecurrenceDaily},
			day:      day(2024, 1, 1),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Matches(tt.task, tt.day))
		})
	}
}

func TestExpandWeekly(t *testing.T) {
	task := model.Task{
		ID:         "t1",
		Recurrence: model.RecurrenceWeekly,
		AnchorDate: datePtr(2024, 1, 1), // Monday
	}

	days, err := Expand(task, day(2024, 1, 1), day(2024, 1, 31))
	require.NoError(t, err)

	expected := []time.Time{
		day(2024, 1, 1), day(2024, 1, 8), day(2024, 1, 15),
		day(2024, 1, 22), day(2024, 1, 29),
	}
	assert.Equal(t, expected, days)
}

func TestExpandMonthlyDay31SkipsShortMonths(t *testing.T) {
	task := model.Task{
		ID:         "t1",
		Recurrence: model.RecurrenceMonthly,
		AnchorDate: datePtr(2024, 1, 31),
	}

	days, err := Expand(task, day(2024, 1, 1), day(2024, 6, 30))
	require.NoError(t, err)

	// February (29 days), April and June (30 days) produce nothing.
	expected := []time.Time{
		day(2024, 1, 31), day(2024, 3, 31), day(2024, 5, 31),
	}
	assert.Equal(t, expected, days)
}

func TestExpandStartsAtAnchor(t *testing.T) {
	task := model.Task{
		ID:         "t1",
		Recurrence: model.RecurrenceDaily,
		AnchorDate: datePtr(2024, 1, 10),
	}

	days, err := Expand(task, day(2024, 1, 1), day(2024, 1, 12))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day(2024, 1, 10), day(2024, 1, 11), day(2024, 1, 12)}, days)
}

func TestExpandMissingAnchorFails(t *testing.T) {
	task := model.Task{ID: "t1", Recurrence: model.RecurrenceWeekly}

	_, err := Expand(task, day(2024, 1, 1), day(2024, 1, 31))
	assert.Error(t, err)
}

func TestExpandNonRecurringIsEmpty(t *testing.T) {
	task := model.Task{ID: "t1", Recurrence: model.RecurrenceNone, AnchorDate: datePtr(2024, 1, 1)}

	days, err := Expand(task, day(2024, 1, 1), day(2024, 1, 31))
	require.NoError(t, err)
	assert.Empty(t, days)
}

// TestExpandAgreesWithMatches pins the rule-based expansion to the
// linear per-day scan the resolver uses.
func TestExpandAgreesWithMatches(t *testing.T) {
	tasks := []model.Task{
		{ID: "d", Recurrence: model.RecurrenceDaily, AnchorDate: datePtr(2024, 2, 10)},
		{ID: "w", Recurrence: model.RecurrenceWeekly, AnchorDate: datePtr(2023, 12, 28)},
		{ID: "m", Recurrence: model.RecurrenceMonthly, AnchorDate: datePtr(2023, 10, 30)},
		{ID: "y", Recurrence: model.RecurrenceYearly, AnchorDate: datePtr(2020, 2, 29)},
	}

	start, end := day(2024, 1, 1), day(2024, 12, 31)
	for _, task := range tasks {
		t.Run(task.ID, func(t *testing.T) {
			expanded, err := Expand(task, start, end)
			require.NoError(t, err)

			var scanned []time.Time
			for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
				if Matches(task, d) {
					scanned = append(scanned, d)
				}
			}
			assert.Equal(t, scanned, expanded)
		})
	}
}

func TestCacheExpand(t *testing.T) {
	task := model.Task{
		ID:         "t1",
		Recurrence: model.RecurrenceWeekly,
		AnchorDate: datePtr(2024, 1, 1),
		UpdatedAt:  day(2024, 1, 1),
	}
	cache := NewCache(0, 0)

	first, err := cache.Expand(task, day(2024, 1, 1), day(2024, 1, 31))
	require.NoError(t, err)
	require.Len(t, first, 5)
	assert.Equal(t, 1, cache.Len())

	second, err := cache.Expand(task, day(2024, 1, 1), day(2024, 1, 31))
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, cache.Len())

	// A task update gets its own entry rather than a stale hit.
	task.UpdatedAt = day(2024, 2, 1)
	_, err = cache.Expand(task, day(2024, 1, 1), day(2024, 1, 31))
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Len())

	cache.Invalidate("t1")
	assert.Equal(t, 0, cache.Len())
}

func TestCacheEviction(t *testing.T) {
	cache := NewCache(time.Hour, 3)

	for i := 0; i < 6; i++ {
		task := model.Task{
			ID:         string(rune('a' + i)),
			Recurrence: model.RecurrenceDaily,
			AnchorDate: datePtr(2024, 1, 1),
		}
		_, err := cache.Expand(task, day(2024, 1, 1), day(2024, 1, 7))
		require.NoError(t, err)
	}

	assert.LessOrEqual(t, cache.Len(), 3)
}
