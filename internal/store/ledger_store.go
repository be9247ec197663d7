package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/taskcal/internal/model"
)

// ListCompletions retrieves every completion record.
func (s *SQLiteStore) ListCompletions(ctx context.Context) ([]model.CompletionRecord, error) {
	var records []model.CompletionRecord
	err := s.db.SelectContext(ctx, &records,
		"SELECT * FROM completions ORDER BY date")
	if err != nil {
		return nil, fmt.Errorf("querying completions: %w", err)
	}
	return records, nil
}

// CompletionsFor retrieves the completion history of a single task,
// oldest first.
func (s *SQLiteStore) CompletionsFor(
	ctx context.Context,
	taskID string,
) ([]model.CompletionRecord, error) {
	var records []model.CompletionRecord
	err := s.db.SelectContext(ctx, &records,
		"SELECT * FROM completions WHERE task_id = ? ORDER BY date", taskID)
	if err != nil {
		return nil, fmt.Errorf("querying completions for task %s: %w", taskID, err)
	}
	return records, nil
}

// InsertCompletion records one occurrence as done. Inserting an
// existing (task, date) pair is a no-op that returns the stored record.
func (s *SQLiteStore) InsertCompletion(
	ctx context.Context,
	taskID, date string,
) (model.CompletionRecord, error) {
	record := model.CompletionRecord{
		ID:        uuid.New().String(),
		TaskID:    taskID,
		Date:      date,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO completions (id, task_id, date, created_at)
		VALUES (?, ?, ?, ?)`,
		record.ID, record.TaskID, record.Date, record.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint") {
			return model.CompletionRecord{}, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
		}
		return model.CompletionRecord{}, fmt.Errorf(
			"inserting completion (%s, %s): %w", taskID, date, err)
	}

	// The unique index may have kept an earlier record; return whatever
	// the table actually holds.
	var stored model.CompletionRecord
	err = s.db.GetContext(ctx, &stored,
		"SELECT * FROM completions WHERE task_id = ? AND date = ?", taskID, date)
	if err != nil {
		return model.CompletionRecord{}, fmt.Errorf(
			"reading completion (%s, %s): %w", taskID, date, err)
	}
	return stored, nil
}

// DeleteCompletion removes the completion record for one occurrence.
// Deleting a record that does not exist is a no-op.
func (s *SQLiteStore) DeleteCompletion(
	ctx context.Context,
	taskID, date string,
) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM completions WHERE task_id = ? AND date = ?", taskID, date)
	if err != nil {
		return fmt.Errorf("deleting completion (%s, %s): %w", taskID, date, err)
	}
	return nil
}

// ListExceptions retrieves every exception record.
func (s *SQLiteStore) ListExceptions(ctx context.Context) ([]model.ExceptionRecord, error) {
	var records []model.ExceptionRecord
	err := s.db.SelectContext(ctx, &records,
		"SELECT * FROM exceptions ORDER BY date")
	if err != nil {
		return nil, fmt.Errorf("querying exceptions: %w", err)
	}
	return records, nil
}

// InsertException permanently suppresses one occurrence. Idempotent
// like InsertCompletion. There is no delete counterpart; exceptions
// only go away when the whole series is deleted.
func (s *SQLiteStore) InsertException(
	ctx context.Context,
	taskID, date string,
) (model.ExceptionRecord, error) {
	record := model.ExceptionRecord{
		ID:        uuid.New().String(),
		TaskID:    taskID,
		Date:      date,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO exceptions (id, task_id, date, created_at)
		VALUES (?, ?, ?, ?)`,
		record.ID, record.TaskID, record.Date, record.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint") {
			return model.ExceptionRecord{}, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
		}
		return model.ExceptionRecord{}, fmt.Errorf(
			"inserting exception (%s, %s): %w", taskID, date, err)
	}

	var stored model.ExceptionRecord
	err = s.db.GetContext(ctx, &stored,
		"SELECT * FROM exceptions WHERE task_id = ? AND date = ?", taskID, date)
	if err != nil {
		return model.ExceptionRecord{}, fmt.Errorf(
			"reading exception (%s, %s): %w", taskID, date, err)
	}
	return stored, nil
}
