// Package storage persists tasks and goals. The SQLite backend lives here;
// other backends open a *sql.DB and attach it with Attach.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a record does not exist for the user.
	ErrNotFound = errors.New("storage: not found")
	// ErrInvalid is returned for records missing required fields.
	ErrInvalid = errors.New("storage: invalid record")
	// ErrStoreClosed indicates the underlying database connection is unavailable.
	ErrStoreClosed = errors.New("storage: closed")
)

const (
	TaskStatusTodo       = "todo"
	TaskStatusInProgress = "in_progress"
	TaskStatusDone       = "done"

	GoalStatusActive    = "active"
	GoalStatusCompleted = "completed"
)

// Task is a user's to-do item.
type Task struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Title       string    `json:"title"`
	Category    string    `json:"category"`
	Priority    string    `json:"priority"`
	Description string    `json:"description"`
	DueDate     *string   `json:"dueDate"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Goal is a longer-running objective.
type Goal struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Priority    string    `json:"priority"`
	Deadline    *string   `json:"deadline"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

//go:generate mockgen -package=storagemock -destination=storagemock/mock_repository.go github.com/odvcencio/taskmate/pkg/storage Repository

// Repository is the task/goal mutation and query surface. Every call is
// scoped to a user; records of other users are invisible.
type Repository interface {
	CreateTask(ctx context.Context, task *Task) error
	GetTask(ctx context.Context, userID, id string) (*Task, error)
	ListTasks(ctx context.Context, userID string, limit int) ([]Task, error)
	DeleteTask(ctx context.Context, userID, id, reason string) error

	CreateGoal(ctx context.Context, goal *Goal) error
	GetGoal(ctx context.Context, userID, id string) (*Goal, error)
	ListGoals(ctx context.Context, userID string, limit int) ([]Goal, error)
	DeleteGoal(ctx context.Context, userID, id, reason string) error

	Ping(ctx context.Context) error
	Close() error
}

// DefaultListLimit caps list queries when the caller passes a non-positive
// limit.
const DefaultListLimit = 100
