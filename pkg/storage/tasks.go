package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const taskColumns = "id, user_id, title, category, priority, description, due_date, status, created_at, updated_at"

// CreateTask inserts task, filling ID, status and timestamps when unset.
func (s *Store) CreateTask(ctx context.Context, task *Task) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	if task == nil || strings.TrimSpace(task.UserID) == "" || strings.TrimSpace(task.Title) == "" {
		return fmt.Errorf("create task: %w", ErrInvalid)
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Status == "" {
		task.Status = TaskStatusTodo
	}
	if task.Category == "" {
		task.Category = "General"
	}
	if task.Priority == "" {
		task.Priority = "medium"
	}
	now := s.now().UTC().Truncate(time.Millisecond)
	task.CreatedAt, task.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		task.ID, task.UserID, task.Title, task.Category, task.Priority, task.Description,
		nullString(task.DueDate), task.Status, now.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}

	s.emit(EventTaskCreated, task.UserID, task.ID, *task)
	return nil
}

// GetTask returns the user's task or ErrNotFound.
func (s *Store) GetTask(ctx context.Context, userID, id string) (*Task, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	row := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT `+taskColumns+` FROM tasks WHERE user_id = ? AND id = ?`), userID, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// ListTasks returns the user's most recent tasks first.
func (s *Store) ListTasks(ctx context.Context, userID string, limit int) ([]Task, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT `+taskColumns+` FROM tasks WHERE user_id = ? ORDER BY created_at DESC, id LIMIT ?`),
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// DeleteTask removes the user's task. Missing tasks yield ErrNotFound.
func (s *Store) DeleteTask(ctx context.Context, userID, id, reason string) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	existing, err := s.GetTask(ctx, userID, id)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM tasks WHERE user_id = ? AND id = ?`), userID, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	s.emit(EventTaskDeleted, userID, id, DeletionData{Title: existing.Title, Reason: reason})
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*Task, error) {
	var (
		task             Task
		due              sql.NullString
		created, updated int64
	)
	if err := row.Scan(&task.ID, &task.UserID, &task.Title, &task.Category, &task.Priority,
		&task.Description, &due, &task.Status, &created, &updated); err != nil {
		return nil, err
	}
	if due.Valid {
		task.DueDate = &due.String
	}
	task.CreatedAt = time.UnixMilli(created).UTC()
	task.UpdatedAt = time.UnixMilli(updated).UTC()
	return &task, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
