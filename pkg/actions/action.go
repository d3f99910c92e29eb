// Package actions defines the structured operations the assistant may
// propose and the parser that extracts them from model output.
package actions

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Kind identifies an action variant on the wire.
type Kind string

const (
	KindCreateTask Kind = "create_task"
	KindDeleteTask Kind = "delete_task"
	KindCreateGoal Kind = "create_goal"
	KindDeleteGoal Kind = "delete_goal"
)

// Kinds lists every supported kind in grammar order.
var Kinds = []Kind{KindCreateTask, KindDeleteTask, KindCreateGoal, KindDeleteGoal}

// Destructive reports whether actions of this kind remove data.
func (k Kind) Destructive() bool {
	return k == KindDeleteTask || k == KindDeleteGoal
}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Priority of a task or goal.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ParsePriority normalizes s, falling back to medium.
func ParsePriority(s string) Priority {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return p
	default:
		return PriorityMedium
	}
}

const (
	DefaultTaskTitle = "Untitled Task"
	DefaultGoalTitle = "Untitled Goal"
	DefaultCategory  = "General"
	StatusTodo       = "todo"

	// DateLayout is the canonical form of due dates and deadlines.
	DateLayout = "2006-01-02"
)

// Action is a proposed mutation. The set of implementations is closed;
// executors handle every variant through Handler.
type Action interface {
	Kind() Kind
	// Summary is a short human description, e.g. `create task "Buy milk"`.
	Summary() string
	// Dispatch routes the action to the matching Handler method and returns
	// the id of the affected entity.
	Dispatch(ctx context.Context, h Handler) (string, error)

	sealed()
}

// Handler applies actions. Adding a variant adds a method here, so every
// executor must handle it to compile.
type Handler interface {
	CreateTask(ctx context.Context, a CreateTask) (string, error)
	DeleteTask(ctx context.Context, a DeleteTask) (string, error)
	CreateGoal(ctx context.Context, a CreateGoal) (string, error)
	DeleteGoal(ctx context.Context, a DeleteGoal) (string, error)
}

// CreateTask proposes a new task.
type CreateTask struct {
	Title       string   `json:"title"`
	Category    string   `json:"category"`
	Priority    Priority `json:"priority"`
	Description string   `json:"description"`
	DueDate     *string  `json:"due_date"`
	Status      string   `json:"status"`
}

func (CreateTask) Kind() Kind { return KindCreateTask }
func (a CreateTask) Summary() string {
	return fmt.Sprintf("create task %q", a.Title)
}
func (a CreateTask) Dispatch(ctx context.Context, h Handler) (string, error) {
	return h.CreateTask(ctx, a)
}
func (CreateTask) sealed() {}

// DeleteTask proposes removing a task by id.
type DeleteTask struct {
	TaskID string `json:"taskId"`
	Reason string `json:"reason,omitempty"`
}

func (DeleteTask) Kind() Kind { return KindDeleteTask }
func (a DeleteTask) Summary() string {
	if a.TaskID == "" {
		return "delete task (no id)"
	}
	return fmt.Sprintf("delete task %s", a.TaskID)
}
func (a DeleteTask) Dispatch(ctx context.Context, h Handler) (string, error) {
	return h.DeleteTask(ctx, a)
}
func (DeleteTask) sealed() {}

// CreateGoal proposes a new goal.
type CreateGoal struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
	Deadline    *string  `json:"deadline"`
}

func (CreateGoal) Kind() Kind { return KindCreateGoal }
func (a CreateGoal) Summary() string {
	return fmt.Sprintf("create goal %q", a.Title)
}
func (a CreateGoal) Dispatch(ctx context.Context, h Handler) (string, error) {
	return h.CreateGoal(ctx, a)
}
func (CreateGoal) sealed() {}

// DeleteGoal proposes removing a goal by id.
type DeleteGoal struct {
	GoalID string `json:"goalId"`
	Reason string `json:"reason,omitempty"`
}

func (DeleteGoal) Kind() Kind { return KindDeleteGoal }
func (a DeleteGoal) Summary() string {
	if a.GoalID == "" {
		return "delete goal (no id)"
	}
	return fmt.Sprintf("delete goal %s", a.GoalID)
}
func (a DeleteGoal) Dispatch(ctx context.Context, h Handler) (string, error) {
	return h.DeleteGoal(ctx, a)
}
func (DeleteGoal) sealed() {}

// NormalizeDate returns s as YYYY-MM-DD, or nil when s is empty or not a
// recognizable date.
func NormalizeDate(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{DateLayout, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			d := t.Format(DateLayout)
			return &d
		}
	}
	return nil
}

// CountDestructive returns how many actions in batch remove data.
func CountDestructive(batch []Action) int {
	n := 0
	for _, a := range batch {
		if a != nil && a.Kind().Destructive() {
			n++
		}
	}
	return n
}
