package engine

import (
	"context"

	"github.com/nhle/taskcal/internal/model"
	"github.com/nhle/taskcal/internal/store"
)

// DeleteMode is the outcome of the instance-vs-series deletion decision.
type DeleteMode int

const (
	// DeleteDirect removes the task outright. Non-recurring tasks have
	// no ledger entries, so nothing else is involved.
	DeleteDirect DeleteMode = iota
	// DeletePrompt means the caller must ask whether to delete one
	// occurrence or the entire series.
	DeletePrompt
)

// DeletionMode decides how a delete request on a task proceeds.
func DeletionMode(task model.Task) DeleteMode {
	if task.Recurring() {
		return DeletePrompt
	}
	return DeleteDirect
}

// DeleteOccurrence removes a single occurrence of a recurring task by
// writing an exception record. The task and every other occurrence,
// completion, and exception stay untouched.
func (e *Engine) DeleteOccurrence(ctx context.Context, taskID, date string) error {
	return e.ExcludeOccurrence(ctx, taskID, date)
}

// DeleteSeries removes a task and cascades to every completion and
// exception record of that task. Unlike the ledger mutations this is
// not optimistic: the task stays visible until the store confirms,
// because the operation is destructive and irreversible. Deleting a
// task that no longer exists is a no-op success.
func (e *Engine) DeleteSeries(ctx context.Context, taskID string) error {
	if err := e.store.DeleteTask(ctx, taskID); err != nil {
		if store.IsNotFound(err) {
			// Already gone; tidy the local mirrors anyway.
			e.forgetTask(taskID)
			return nil
		}
		return &PersistenceError{Op: "deleting series", TaskID: taskID, Err: err}
	}

	e.forgetTask(taskID)
	return nil
}

// forgetTask clears local state for a deleted task.
func (e *Engine) forgetTask(taskID string) {
	e.ledger.Forget(taskID)
	e.cache.Invalidate(taskID)
	e.bumpVersion()
}
