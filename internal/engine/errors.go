// Package engine resolves recurring-task occurrences against the
// completion and exception ledgers and merges them with external
// calendar events into a day-indexed agenda.
package engine

import (
	"errors"
	"fmt"
)

// ValidationError marks a task definition the generator cannot expand
// (typically a recurring task without an anchor date). The offending
// task is skipped with a logged warning; it never breaks a range
// computation.
type ValidationError struct {
	TaskID string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid task %s: %s", e.TaskID, e.Reason)
}

// IsValidationError reports whether err (or any error in its chain) is
// a ValidationError.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// PersistenceError indicates a ledger or store write failed. The
// in-memory view has already been rolled back to its pre-operation
// state when this error reaches the caller.
type PersistenceError struct {
	Op     string
	TaskID string
	Date   string
	Err    error
}

func (e *PersistenceError) Error() string {
	if e.Date != "" {
		return fmt.Sprintf("%s (%s, %s): %v", e.Op, e.TaskID, e.Date, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.Op, e.TaskID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsPersistenceError reports whether err (or any error in its chain) is
// a PersistenceError.
func IsPersistenceError(err error) bool {
	var perr *PersistenceError
	return errors.As(err, &perr)
}
