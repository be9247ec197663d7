package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nhle/taskcal/internal/model"
	"github.com/nhle/taskcal/internal/recur"
	"github.com/nhle/taskcal/internal/store"
)

// Engine is the facade consumers use: it expands task definitions into
// dated occurrences, reconciles them with the two ledgers, merges
// external events, and coordinates the mutating operations.
type Engine struct {
	store  store.Store
	ledger *Ledger
	cache  *recur.Cache
	agg    *Aggregator
	logger *slog.Logger

	mu      sync.Mutex
	version uint64
	events  []model.ExternalEvent
	memo    map[memoKey]map[string][]model.AgendaItem
}

// memoKey identifies one aggregated range computation. The version
// component changes on every mutation, so stale indexes are never
// served.
type memoKey struct {
	start   string
	end     string
	view    View
	version uint64
}

// New creates an Engine backed by the given store, loading both
// ledgers into memory.
func New(ctx context.Context, s store.Store, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ledger, err := NewLedger(ctx, s, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing ledgers: %w", err)
	}

	cache := recur.NewCache(0, 0)
	return &Engine{
		store:  s,
		ledger: ledger,
		cache:  cache,
		agg:    NewAggregator(cache, logger),
		logger: logger,
		memo:   make(map[memoKey]map[string][]model.AgendaItem),
	}, nil
}

// bumpVersion invalidates every memoized range index.
func (e *Engine) bumpVersion() {
	e.mu.Lock()
	e.version++
	e.memo = make(map[memoKey]map[string][]model.AgendaItem)
	e.mu.Unlock()
}

// SetEvents replaces the external-event snapshot the aggregator merges.
// Events are read-only; the engine never writes back to their source.
func (e *Engine) SetEvents(events []model.ExternalEvent) {
	e.mu.Lock()
	e.events = events
	e.version++
	e.memo = make(map[memoKey]map[string][]model.AgendaItem)
	e.mu.Unlock()
}

// GetOccurrencesForRange returns the active agenda for every day in
// [start, end], keyed by canonical date string. Results are memoized
// per (range, version) so unrelated re-renders do not recompute.
func (e *Engine) GetOccurrencesForRange(
	ctx context.Context,
	start, end time.Time,
) (map[string][]model.AgendaItem, error) {
	return e.buildRange(ctx, start, end, ViewActive)
}

// GetHistoryForRange returns completed occurrences and completed
// one-off tasks for every day in [start, end].
func (e *Engine) GetHistoryForRange(
	ctx context.Context,
	start, end time.Time,
) (map[string][]model.AgendaItem, error) {
	return e.buildRange(ctx, start, end, ViewHistory)
}

// GetOccurrencesForDate returns the active agenda for a single day.
func (e *Engine) GetOccurrencesForDate(
	ctx context.Context,
	day time.Time,
) ([]model.AgendaItem, error) {
	index, err := e.buildRange(ctx, day, day, ViewActive)
	if err != nil {
		return nil, err
	}
	return index[model.DateKey(day)], nil
}

// CountDueOn returns the number of active (not completed, not excluded)
// occurrences on a day. External events never count; they are not
// actionable.
func (e *Engine) CountDueOn(ctx context.Context, day time.Time) (int, error) {
	tasks, err := e.store.ListTasks(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing tasks: %w", err)
	}

	idx := e.ledger.Snapshot()
	count := 0
	for _, task := range tasks {
		if Resolve(task, day, idx) == model.StateDue {
			count++
		}
	}
	return count, nil
}

// ToggleCompletion marks or unmarks one occurrence of a recurring task
// as done. For non-recurring tasks it flips the task's own archived
// flag instead; the two mechanisms are disjoint. Toggling a task that
// no longer exists is a no-op success.
func (e *Engine) ToggleCompletion(
	ctx context.Context,
	taskID, date string,
	completed bool,
) error {
	task, err := e.store.GetTaskByID(ctx, taskID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("loading task %s: %w", taskID, err)
	}

	defer e.bumpVersion()

	if !task.Recurring() {
		task.Completed = completed
		if err := e.store.UpdateTask(ctx, *task); err != nil {
			if store.IsNotFound(err) {
				return nil
			}
			return &PersistenceError{Op: "toggling task", TaskID: taskID, Err: err}
		}
		return nil
	}

	return e.ledger.Toggle(ctx, taskID, date, completed)
}

// ExcludeOccurrence permanently removes one occurrence of a recurring
// task. There is no inverse; once excluded, the date never reappears
// for that task regardless of completion state.
func (e *Engine) ExcludeOccurrence(ctx context.Context, taskID, date string) error {
	defer e.bumpVersion()
	return e.ledger.Exclude(ctx, taskID, date)
}

// HistoryFor materializes the completion history of a task. Every entry
// carries an instance identity so it can be listed alongside one-off
// completed tasks without colliding with the live task. A task that no
// longer exists has no history: deletion cascades through the ledgers,
// so the read reports the end state rather than an error.
func (e *Engine) HistoryFor(ctx context.Context, taskID string) ([]model.AgendaItem, error) {
	task, err := e.store.GetTaskByID(ctx, taskID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading task %s: %w", taskID, err)
	}

	records, err := e.ledger.HistoryFor(ctx, taskID)
	if err != nil {
		return nil, err
	}

	items := make([]model.AgendaItem, 0, len(records))
	for _, r := range records {
		items = append(items, model.AgendaItem{
			Kind:      model.ItemOccurrence,
			ID:        model.InstanceID(r.TaskID, r.Date),
			Title:     task.Title,
			Date:      r.Date,
			Time:      task.AnchorTime,
			Completed: true,
			Urgency:   task.Urgency,
			Task:      task,
		})
	}
	return items, nil
}

// CreateTask persists a new task definition.
func (e *Engine) CreateTask(ctx context.Context, task model.Task) (model.Task, error) {
	created, err := e.store.InsertTask(ctx, task)
	if err != nil {
		return model.Task{}, fmt.Errorf("creating task: %w", err)
	}
	e.bumpVersion()
	return created, nil
}

// UpdateTask persists changes to a task definition. Any field may
// change, including the recurrence pattern; existing ledger records
// stay as they are (last-write-wins at the persistence boundary).
func (e *Engine) UpdateTask(ctx context.Context, task model.Task) error {
	if err := e.store.UpdateTask(ctx, task); err != nil {
		return fmt.Errorf("updating task %s: %w", task.ID, err)
	}
	e.cache.Invalidate(task.ID)
	e.bumpVersion()
	return nil
}

// ListTasks returns every task definition.
func (e *Engine) ListTasks(ctx context.Context) ([]model.Task, error) {
	return e.store.ListTasks(ctx)
}

// GetTask returns one task definition by id.
func (e *Engine) GetTask(ctx context.Context, id string) (*model.Task, error) {
	return e.store.GetTaskByID(ctx, id)
}

// buildRange computes (or returns the memoized) day index for a range.
func (e *Engine) buildRange(
	ctx context.Context,
	start, end time.Time,
	view View,
) (map[string][]model.AgendaItem, error) {
	start = model.Midnight(start)
	end = model.Midnight(end)

	e.mu.Lock()
	key := memoKey{
		start:   model.DateKey(start),
		end:     model.DateKey(end),
		view:    view,
		version: e.version,
	}
	if cached, ok := e.memo[key]; ok {
		e.mu.Unlock()
		return cached, nil
	}
	events := e.events
	e.mu.Unlock()

	tasks, err := e.store.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}

	idx := e.ledger.Snapshot()
	index := e.agg.BuildDayIndex(tasks, start, end, events, idx, view)

	e.mu.Lock()
	if key.version == e.version {
		e.memo[key] = index
	}
	e.mu.Unlock()

	return index, nil
}
