package store

import (
	"context"
	"errors"

	"github.com/nhle/taskcal/internal/model"
)

// ErrNotFound is returned when a task or ledger record does not exist.
// Callers that only need the end state (deleted, absent) may treat it
// as success.
var ErrNotFound = errors.New("record not found")

// IsNotFound reports whether err (or any error in its chain) is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Store defines the persistence interface for tasks and the two
// per-occurrence ledgers. Ledger inserts are idempotent: inserting an
// existing (task, date) pair returns the existing record unchanged.
type Store interface {
	// === Tasks ===

	ListTasks(ctx context.Context) ([]model.Task, error)
	GetTaskByID(ctx context.Context, id string) (*model.Task, error)
	InsertTask(ctx context.Context, task model.Task) (model.Task, error)
	UpdateTask(ctx context.Context, task model.Task) error

	// DeleteTask removes a task and cascades to its completion and
	// exception records.
	DeleteTask(ctx context.Context, id string) error

	// === Completion ledger ===

	ListCompletions(ctx context.Context) ([]model.CompletionRecord, error)
	CompletionsFor(ctx context.Context, taskID string) ([]model.CompletionRecord, error)
	InsertCompletion(ctx context.Context, taskID, date string) (model.CompletionRecord, error)
	DeleteCompletion(ctx context.Context, taskID, date string) error

	// === Exception ledger ===

	ListExceptions(ctx context.Context) ([]model.ExceptionRecord, error)
	InsertException(ctx context.Context, taskID, date string) (model.ExceptionRecord, error)

	Close() error
}
