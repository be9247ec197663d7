package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskcal/internal/model"
	"github.com/nhle/taskcal/internal/store"
	"github.com/nhle/taskcal/tests/testutil"
)

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestTaskCRUD(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	task, err := s.InsertTask(ctx, model.Task{
		Title:      "water plants",
		Recurrence: model.RecurrenceDaily,
		AnchorDate: datePtr(2024, 1, 1),
		AnchorTime: "08:30",
		Urgency:    2,
	})
	require.NoError(t, err)
	require.NotEmpty(t, task.ID, "insert must assign an id")

	got, err := s.GetTaskByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "water plants", got.Title)
	assert.Equal(t, model.RecurrenceDaily, got.Recurrence)
	assert.Equal(t, "08:30", got.AnchorTime)
	require.NotNil(t, got.AnchorDate)
	assert.Equal(t, "2024-01-01", model.DateKey(*got.AnchorDate))

	got.Title = "water the plants"
	got.Recurrence = model.RecurrenceWeekly
	require.NoError(t, s.UpdateTask(ctx, *got))

	updated, err := s.GetTaskByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "water the plants", updated.Title)
	assert.Equal(t, model.RecurrenceWeekly, updated.Recurrence)

	require.NoError(t, s.DeleteTask(ctx, task.ID))

	_, err = s.GetTaskByID(ctx, task.ID)
	assert.True(t, store.IsNotFound(err))
}

func TestTaskValidation(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	_, err := s.InsertTask(ctx, model.Task{Title: "   "})
	assert.Error(t, err, "blank title must be rejected")

	_, err = s.InsertTask(ctx, model.Task{Title: "x", Recurrence: "fortnightly"})
	assert.Error(t, err)

	_, err = s.InsertTask(ctx, model.Task{Title: "x", AnchorTime: "25:99"})
	assert.Error(t, err)
}

func TestTaskNotFound(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	_, err := s.GetTaskByID(ctx, "missing")
	assert.True(t, store.IsNotFound(err))

	err = s.UpdateTask(ctx, model.Task{ID: "missing", Title: "x", Recurrence: model.RecurrenceNone})
	assert.True(t, store.IsNotFound(err))

	err = s.DeleteTask(ctx, "missing")
	assert.True(t, store.IsNotFound(err))
}

func TestCompletionLedgerIdempotence(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	task, err := s.InsertTask(ctx, model.Task{
		Title:      "laundry",
		Recurrence: model.RecurrenceWeekly,
		AnchorDate: datePtr(2024, 1, 1),
	})
	require.NoError(t, err)

	first, err := s.InsertCompletion(ctx, task.ID, "2024-01-08")
	require.NoError(t, err)

	second, err := s.InsertCompletion(ctx, task.ID, "2024-01-08")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "duplicate insert must return the stored record")

	records, err := s.CompletionsFor(ctx, task.ID)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	require.NoError(t, s.DeleteCompletion(ctx, task.ID, "2024-01-08"))
	// Deleting again is a no-op.
	require.NoError(t, s.DeleteCompletion(ctx, task.ID, "2024-01-08"))

	records, err = s.CompletionsFor(ctx, task.ID)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestExceptionLedgerIdempotence(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	task, err := s.InsertTask(ctx, model.Task{
		Title:      "laundry",
		Recurrence: model.RecurrenceWeekly,
		AnchorDate: datePtr(2024, 1, 1),
	})
	require.NoError(t, err)

	first, err := s.InsertException(ctx, task.ID, "2024-01-15")
	require.NoError(t, err)

	second, err := s.InsertException(ctx, task.ID, "2024-01-15")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	records, err := s.ListExceptions(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestLedgerInsertForMissingTask(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	_, err := s.InsertCompletion(ctx, "missing", "2024-01-08")
	assert.True(t, store.IsNotFound(err))

	_, err = s.InsertException(ctx, "missing", "2024-01-08")
	assert.True(t, store.IsNotFound(err))
}

func TestDeleteTaskCascadesToLedgers(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	task, err := s.InsertTask(ctx, model.Task{
		Title:      "laundry",
		Recurrence: model.RecurrenceWeekly,
		AnchorDate: datePtr(2024, 1, 1),
	})
	require.NoError(t, err)

	other, err := s.InsertTask(ctx, model.Task{
		Title:      "dishes",
		Recurrence: model.RecurrenceDaily,
		AnchorDate: datePtr(2024, 1, 1),
	})
	require.NoError(t, err)

	_, err = s.InsertCompletion(ctx, task.ID, "2024-01-08")
	require.NoError(t, err)
	_, err = s.InsertException(ctx, task.ID, "2024-01-15")
	require.NoError(t, err)
	_, err = s.InsertCompletion(ctx, other.ID, "2024-01-08")
	require.NoError(t, err)

	require.NoError(t, s.DeleteTask(ctx, task.ID))

	completions, err := s.ListCompletions(ctx)
	require.NoError(t, err)
	require.Len(t, completions, 1, "only the other task's record survives")
	assert.Equal(t, other.ID, completions[0].TaskID)

	exceptions, err := s.ListExceptions(ctx)
	require.NoError(t, err)
	assert.Empty(t, exceptions)
}
