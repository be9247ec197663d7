package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskcal/internal/model"
	"github.com/nhle/taskcal/internal/store"
	"github.com/nhle/taskcal/tests/testutil"
)

func newTestEngine(t *testing.T) (*Engine, store.Store) {
	t.Helper()
	s := testutil.NewTestStore(t)
	e, err := New(context.Background(), s, nil)
	require.NoError(t, err)
	return e, s
}

func mustCreate(t *testing.T, e *Engine, task model.Task) model.Task {
	t.Helper()
	created, err := e.CreateTask(context.Background(), task)
	require.NoError(t, err)
	return created
}

func TestWeeklyRangeExpansion(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	t1 := mustCreate(t, e, model.Task{
		Title:      "laundry",
		Recurrence: model.RecurrenceWeekly,
		AnchorDate: datePtr(2024, 1, 1), // a Monday
	})

	index, err := e.GetOccurrencesForRange(ctx, day(2024, 1, 1), day(2024, 1, 31))
	require.NoError(t, err)

	mondays := []string{"2024-01-01", "2024-01-08", "2024-01-15", "2024-01-22", "2024-01-29"}
	assert.Len(t, index, len(mondays))
	for _, date := range mondays {
		require.Len(t, index[date], 1, "expected an occurrence on %s", date)
		assert.Equal(t, model.InstanceID(t1.ID, date), index[date][0].ID)
	}
}

func TestToggleCompletionRoundTrip(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	t1 := mustCreate(t, e, model.Task{
		Title:      "laundry",
		Recurrence: model.RecurrenceWeekly,
		AnchorDate: datePtr(2024, 1, 1),
	})

	before, err := e.CountDueOn(ctx, day(2024, 1, 8))
	require.NoError(t, err)
	assert.Equal(t, 1, before)

	require.NoError(t, e.ToggleCompletion(ctx, t1.ID, "2024-01-08", true))

	items, err := e.GetOccurrencesForDate(ctx, day(2024, 1, 8))
	require.NoError(t, err)
	assert.Empty(t, items, "completed occurrence must leave the due view")

	after, err := e.CountDueOn(ctx, day(2024, 1, 8))
	require.NoError(t, err)
	assert.Equal(t, before-1, after)

	// Untoggling restores the pre-toggle visibility.
	require.NoError(t, e.ToggleCompletion(ctx, t1.ID, "2024-01-08", false))

	items, err = e.GetOccurrencesForDate(ctx, day(2024, 1, 8))
	require.NoError(t, err)
	require.Len(t, items, 1)

	restored, err := e.CountDueOn(ctx, day(2024, 1, 8))
	require.NoError(t, err)
	assert.Equal(t, before, restored)
}

func TestToggleIsIdempotent(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	t1 := mustCreate(t, e, model.Task{
		Title:      "laundry",
		Recurrence: model.RecurrenceDaily,
		AnchorDate: datePtr(2024, 1, 1),
	})

	require.NoError(t, e.ToggleCompletion(ctx, t1.ID, "2024-01-05", true))
	require.NoError(t, e.ToggleCompletion(ctx, t1.ID, "2024-01-05", true))

	records, err := s.CompletionsFor(ctx, t1.ID)
	require.NoError(t, err)
	assert.Len(t, records, 1, "double mark must not duplicate the record")
}

func TestExcludeOccurrence(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	t1 := mustCreate(t, e, model.Task{
		Title:      "laundry",
		Recurrence: model.RecurrenceWeekly,
		AnchorDate: datePtr(2024, 1, 1),
	})

	require.NoError(t, e.ExcludeOccurrence(ctx, t1.ID, "2024-01-15"))

	index, err := e.GetOccurrencesForRange(ctx, day(2024, 1, 1), day(2024, 1, 31))
	require.NoError(t, err)

	assert.Empty(t, index["2024-01-15"])
	for _, date := range []string{"2024-01-01", "2024-01-08", "2024-01-22", "2024-01-29"} {
		assert.Len(t, index[date], 1, "neighbouring occurrence on %s must be unaffected", date)
	}

	// Exclusion is permanent: completing and uncompleting around it
	// changes nothing.
	require.NoError(t, e.ToggleCompletion(ctx, t1.ID, "2024-01-15", true))
	require.NoError(t, e.ToggleCompletion(ctx, t1.ID, "2024-01-15", false))

	items, err := e.GetOccurrencesForDate(ctx, day(2024, 1, 15))
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestDeleteSeriesCascades(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	t1 := mustCreate(t, e, model.Task{
		Title:      "laundry",
		Recurrence: model.RecurrenceWeekly,
		AnchorDate: datePtr(2024, 1, 1),
	})
	require.NoError(t, e.ToggleCompletion(ctx, t1.ID, "2024-01-08", true))
	require.NoError(t, e.ExcludeOccurrence(ctx, t1.ID, "2024-01-15"))

	require.NoError(t, e.DeleteSeries(ctx, t1.ID))

	index, err := e.GetOccurrencesForRange(ctx, day(2024, 1, 1), day(2024, 12, 31))
	require.NoError(t, err)
	assert.Empty(t, index)

	completions, err := s.ListCompletions(ctx)
	require.NoError(t, err)
	assert.Empty(t, completions)

	exceptions, err := s.ListExceptions(ctx)
	require.NoError(t, err)
	assert.Empty(t, exceptions)

	// Deleting again is a no-op success.
	assert.NoError(t, e.DeleteSeries(ctx, t1.ID))
}

func TestDeletionMode(t *testing.T) {
	recurring := model.Task{Recurrence: model.RecurrenceMonthly}
	oneOff := model.Task{Recurrence: model.RecurrenceNone}

	assert.Equal(t, DeletePrompt, DeletionMode(recurring))
	assert.Equal(t, DeleteDirect, DeletionMode(oneOff))
}

func TestOneOffTaskLifecycle(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	t2 := mustCreate(t, e, model.Task{
		Title:      "renew passport",
		Recurrence: model.RecurrenceNone,
		AnchorDate: datePtr(2024, 2, 1),
	})

	items, err := e.GetOccurrencesForDate(ctx, day(2024, 2, 1))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, model.ItemTask, items[0].Kind)

	items, err = e.GetOccurrencesForDate(ctx, day(2024, 2, 2))
	require.NoError(t, err)
	assert.Empty(t, items)

	// Archiving hides the task from every range.
	t2.Completed = true
	require.NoError(t, e.UpdateTask(ctx, t2))

	index, err := e.GetOccurrencesForRange(ctx, day(2024, 1, 1), day(2024, 12, 31))
	require.NoError(t, err)
	assert.Empty(t, index)
}

func TestToggleMissingTaskIsNoop(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	assert.NoError(t, e.ToggleCompletion(ctx, "nope", "2024-01-01", true))
}

func TestHistoryForUsesInstanceIdentity(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	t1 := mustCreate(t, e, model.Task{
		Title:      "laundry",
		Recurrence: model.RecurrenceWeekly,
		AnchorDate: datePtr(2024, 1, 1),
	})
	require.NoError(t, e.ToggleCompletion(ctx, t1.ID, "2024-01-01", true))
	require.NoError(t, e.ToggleCompletion(ctx, t1.ID, "2024-01-08", true))

	history, err := e.HistoryFor(ctx, t1.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.Equal(t, t1.ID+"_2024-01-01", history[0].ID.String())
	assert.True(t, history[0].ID.Instance())
	assert.NotEqual(t, history[0].ID, model.StableID(t1.ID))
}

func TestHistoryForMissingTaskIsEmpty(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	t1 := mustCreate(t, e, model.Task{
		Title:      "laundry",
		Recurrence: model.RecurrenceWeekly,
		AnchorDate: datePtr(2024, 1, 1),
	})
	require.NoError(t, e.ToggleCompletion(ctx, t1.ID, "2024-01-08", true))
	require.NoError(t, e.DeleteSeries(ctx, t1.ID))

	// A deleted task has no history; like the mutating no-ops, the
	// read reports the end state rather than an error.
	history, err := e.HistoryFor(ctx, t1.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	history, err = e.HistoryFor(ctx, "never-existed")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestEventsAreMergedReadOnly(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	e.SetEvents([]model.ExternalEvent{
		{UID: "ev1", Calendar: "work", Title: "planning",
			Start: time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC)},
	})

	items, err := e.GetOccurrencesForDate(ctx, day(2024, 1, 8))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, model.ItemEvent, items[0].Kind)

	// Events never count toward the due badge.
	count, err := e.CountDueOn(ctx, day(2024, 1, 8))
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

// failingStore wraps a real store and injects write failures.
type failingStore struct {
	store.Store
	failCompletions bool
	failExceptions  bool
	failDeletes     bool
}

var errInjected = errors.New("disk full")

func (f *failingStore) InsertCompletion(ctx context.Context, taskID, date string) (model.CompletionRecord, error) {
	if f.failCompletions {
		return model.CompletionRecord{}, errInjected
	}
	return f.Store.InsertCompletion(ctx, taskID, date)
}

func (f *failingStore) InsertException(ctx context.Context, taskID, date string) (model.ExceptionRecord, error) {
	if f.failExceptions {
		return model.ExceptionRecord{}, errInjected
	}
	return f.Store.InsertException(ctx, taskID, date)
}

func (f *failingStore) DeleteTask(ctx context.Context, id string) error {
	if f.failDeletes {
		return errInjected
	}
	return f.Store.DeleteTask(ctx, id)
}

func TestMarkCompleteRollsBackOnPersistenceFailure(t *testing.T) {
	base := testutil.NewTestStore(t)
	fs := &failingStore{Store: base}
	e, err := New(context.Background(), fs, nil)
	require.NoError(t, err)
	ctx := context.Background()

	t1 := mustCreate(t, e, model.Task{
		Title:      "laundry",
		Recurrence: model.RecurrenceWeekly,
		AnchorDate: datePtr(2024, 1, 1),
	})

	fs.failCompletions = true
	err = e.ToggleCompletion(ctx, t1.ID, "2024-01-08", true)
	require.Error(t, err)
	assert.True(t, IsPersistenceError(err))

	// The optimistic apply must have been rolled back: the occurrence
	// is still due.
	items, err := e.GetOccurrencesForDate(ctx, day(2024, 1, 8))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.False(t, items[0].Completed)

	count, err := e.CountDueOn(ctx, day(2024, 1, 8))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Once the store recovers the toggle goes through.
	fs.failCompletions = false
	require.NoError(t, e.ToggleCompletion(ctx, t1.ID, "2024-01-08", true))
	items, err = e.GetOccurrencesForDate(ctx, day(2024, 1, 8))
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestDeleteSeriesIsNotOptimistic(t *testing.T) {
	base := testutil.NewTestStore(t)
	fs := &failingStore{Store: base}
	e, err := New(context.Background(), fs, nil)
	require.NoError(t, err)
	ctx := context.Background()

	t1 := mustCreate(t, e, model.Task{
		Title:      "laundry",
		Recurrence: model.RecurrenceWeekly,
		AnchorDate: datePtr(2024, 1, 1),
	})

	fs.failDeletes = true
	err = e.DeleteSeries(ctx, t1.ID)
	require.Error(t, err)
	assert.True(t, IsPersistenceError(err))

	// The failed delete must leave the series fully visible.
	items, err := e.GetOccurrencesForDate(ctx, day(2024, 1, 8))
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

// flakyStore wraps a real store and fails every third ledger write
// until switched off, so some toggles land and some roll back.
type flakyStore struct {
	store.Store
	calls atomic.Int64
	off   atomic.Bool
}

func (f *flakyStore) shouldFail() bool {
	if f.off.Load() {
		return false
	}
	return f.calls.Add(1)%3 == 0
}

func (f *flakyStore) InsertCompletion(ctx context.Context, taskID, date string) (model.CompletionRecord, error) {
	if f.shouldFail() {
		return model.CompletionRecord{}, errInjected
	}
	return f.Store.InsertCompletion(ctx, taskID, date)
}

func (f *flakyStore) DeleteCompletion(ctx context.Context, taskID, date string) error {
	if f.shouldFail() {
		return errInjected
	}
	return f.Store.DeleteCompletion(ctx, taskID, date)
}

func TestConcurrentTogglesStayConsistent(t *testing.T) {
	base := testutil.NewTestStore(t)
	fs := &flakyStore{Store: base}
	e, err := New(context.Background(), fs, nil)
	require.NoError(t, err)
	ctx := context.Background()

	t1 := mustCreate(t, e, model.Task{
		Title:      "laundry",
		Recurrence: model.RecurrenceWeekly,
		AnchorDate: datePtr(2024, 1, 1),
	})

	// Hammer one occurrence with interleaved mark/unmark while the
	// store intermittently refuses writes. Failed toggles surface a
	// PersistenceError to their caller; whatever the interleaving,
	// the in-memory ledger and the store must end up agreeing.
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(completed bool) {
			defer wg.Done()
			_ = e.ToggleCompletion(ctx, t1.ID, "2024-01-08", completed)
		}(i%2 == 0)
	}
	wg.Wait()

	records, err := base.CompletionsFor(ctx, t1.ID)
	require.NoError(t, err)
	require.LessOrEqual(t, len(records), 1)
	persisted := len(records) == 1

	inMemory := e.ledger.Snapshot().Completed(t1.ID, "2024-01-08")
	assert.Equal(t, persisted, inMemory,
		"in-memory ledger diverged from the store after concurrent toggles")

	// The key stays usable once the store recovers.
	fs.off.Store(true)
	require.NoError(t, e.ToggleCompletion(ctx, t1.ID, "2024-01-08", true))
	require.NoError(t, e.ToggleCompletion(ctx, t1.ID, "2024-01-08", false))

	records, err = base.CompletionsFor(ctx, t1.ID)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.False(t, e.ledger.Snapshot().Completed(t1.ID, "2024-01-08"))
}

func TestExcludeRollsBackOnPersistenceFailure(t *testing.T) {
	base := testutil.NewTestStore(t)
	fs := &failingStore{Store: base}
	e, err := New(context.Background(), fs, nil)
	require.NoError(t, err)
	ctx := context.Background()

	t1 := mustCreate(t, e, model.Task{
		Title:      "laundry",
		Recurrence: model.RecurrenceDaily,
		AnchorDate: datePtr(2024, 1, 1),
	})

	fs.failExceptions = true
	err = e.ExcludeOccurrence(ctx, t1.ID, "2024-01-05")
	require.Error(t, err)
	assert.True(t, IsPersistenceError(err))

	items, err := e.GetOccurrencesForDate(ctx, day(2024, 1, 5))
	require.NoError(t, err)
	assert.Len(t, items, 1, "failed exclusion must not hide the occurrence")
}
