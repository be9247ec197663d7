package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nhle/taskcal/internal/model"
)

// ListTasks retrieves all tasks, ordered by creation time.
func (s *SQLiteStore) ListTasks(ctx context.Context) ([]model.Task, error) {
	rows, err := s.db.QueryxContext(ctx, "SELECT * FROM tasks ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

// GetTaskByID retrieves a single task by its ID.
func (s *SQLiteStore) GetTaskByID(
	ctx context.Context,
	id string,
) (*model.Task, error) {
	row := s.db.QueryRowxContext(ctx, "SELECT * FROM tasks WHERE id = ?", id)

	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("getting task %s: %w", id, err)
	}

	return &task, nil
}

// InsertTask creates a new task. Generates a UUID if ID is empty and
// returns the stored task.
func (s *SQLiteStore) InsertTask(
	ctx context.Context,
	task model.Task,
) (model.Task, error) {
	if strings.TrimSpace(task.Title) == "" {
		return model.Task{}, fmt.Errorf("task title must not be empty")
	}
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.Recurrence == "" {
		task.Recurrence = model.RecurrenceNone
	}
	if !task.Recurrence.Valid() {
		return model.Task{}, fmt.Errorf("invalid recurrence %q", task.Recurrence)
	}
	if !model.ValidClock(task.AnchorTime) {
		return model.Task{}, fmt.Errorf("invalid anchor time %q, expected HH:MM", task.AnchorTime)
	}

	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (
			id, title, anchor_date, anchor_time, recurrence, completed,
			urgency, notify_settings, shared_with, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.Title, task.AnchorDate, task.AnchorTime,
		string(task.Recurrence), boolToInt(task.Completed),
		task.Urgency, task.NotifySettings, task.SharedWith,
		task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return model.Task{}, fmt.Errorf("inserting task: %w", err)
	}
	return task, nil
}

// UpdateTask updates an existing task by ID. Any field may change,
// including the recurrence pattern.
func (s *SQLiteStore) UpdateTask(ctx context.Context, task model.Task) error {
	if strings.TrimSpace(task.Title) == "" {
		return fmt.Errorf("task title must not be empty")
	}
	if !task.Recurrence.Valid() {
		return fmt.Errorf("invalid recurrence %q", task.Recurrence)
	}
	if !model.ValidClock(task.AnchorTime) {
		return fmt.Errorf("invalid anchor time %q, expected HH:MM", task.AnchorTime)
	}

	task.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET
			title = ?, anchor_date = ?, anchor_time = ?, recurrence = ?,
			completed = ?, urgency = ?, notify_settings = ?, shared_with = ?,
			updated_at = ?
		WHERE id = ?`,
		task.Title, task.AnchorDate, task.AnchorTime, string(task.Recurrence),
		boolToInt(task.Completed), task.Urgency, task.NotifySettings,
		task.SharedWith, task.UpdatedAt,
		task.ID,
	)
	if err != nil {
		return fmt.Errorf("updating task %s: %w", task.ID, err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("task %s: %w", task.ID, ErrNotFound)
	}
	return nil
}

// DeleteTask removes a task by ID. The foreign keys cascade the delete
// to every completion and exception record of the series.
func (s *SQLiteStore) DeleteTask(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting task %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return nil
}

// scanTask scans a task row from sqlx.Rows or a sqlx.Row.
func scanTask(row sqlx.ColScanner) (model.Task, error) {
	var (
		task       model.Task
		anchorDate *time.Time
		recurrence string
		completed  int
	)

	err := row.Scan(
		&task.ID, &task.Title, &anchorDate, &task.AnchorTime,
		&recurrence, &completed, &task.Urgency,
		&task.NotifySettings, &task.SharedWith,
		&task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Task{}, err
		}
		return model.Task{}, fmt.Errorf("scanning task row: %w", err)
	}

	task.AnchorDate = anchorDate
	task.Recurrence = model.Recurrence(recurrence)
	task.Completed = completed != 0

	return task, nil
}
