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

const goalColumns = "id, user_id, title, description, priority, deadline, status, created_at, updated_at"

// CreateGoal inserts goal, filling ID, status and timestamps when unset.
func (s *Store) CreateGoal(ctx context.Context, goal *Goal) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	if goal == nil || strings.TrimSpace(goal.UserID) == "" || strings.TrimSpace(goal.Title) == "" {
		return fmt.Errorf("create goal: %w", ErrInvalid)
	}
	if goal.ID == "" {
		goal.ID = uuid.NewString()
	}
	if goal.Status == "" {
		goal.Status = GoalStatusActive
	}
	if goal.Priority == "" {
		goal.Priority = "medium"
	}
	now := s.now().UTC().Truncate(time.Millisecond)
	goal.CreatedAt, goal.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO goals (`+goalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		goal.ID, goal.UserID, goal.Title, goal.Description, goal.Priority,
		nullString(goal.Deadline), goal.Status, now.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("create goal: %w", err)
	}

	s.emit(EventGoalCreated, goal.UserID, goal.ID, *goal)
	return nil
}

func (s *Store) GetGoal(ctx context.Context, userID, id string) (*Goal, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	row := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT `+goalColumns+` FROM goals WHERE user_id = ? AND id = ?`), userID, id)
	goal, err := scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get goal: %w", err)
	}
	return goal, nil
}

func (s *Store) ListGoals(ctx context.Context, userID string, limit int) ([]Goal, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT `+goalColumns+` FROM goals WHERE user_id = ? ORDER BY created_at DESC, id LIMIT ?`),
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var goals []Goal
	for rows.Next() {
		goal, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		goals = append(goals, *goal)
	}
	return goals, rows.Err()
}

func (s *Store) DeleteGoal(ctx context.Context, userID, id, reason string) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	existing, err := s.GetGoal(ctx, userID, id)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM goals WHERE user_id = ? AND id = ?`), userID, id)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	s.emit(EventGoalDeleted, userID, id, DeletionData{Title: existing.Title, Reason: reason})
	return nil
}

func scanGoal(row rowScanner) (*Goal, error) {
	var (
		goal             Goal
		deadline         sql.NullString
		created, updated int64
	)
	if err := row.Scan(&goal.ID, &goal.UserID, &goal.Title, &goal.Description, &goal.Priority,
		&deadline, &goal.Status, &created, &updated); err != nil {
		return nil, err
	}
	if deadline.Valid {
		goal.Deadline = &deadline.String
	}
	goal.CreatedAt = time.UnixMilli(created).UTC()
	goal.UpdatedAt = time.UnixMilli(updated).UTC()
	return &goal, nil
}
