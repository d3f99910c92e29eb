// Package execution applies confirmed action batches to the task store.
//
// A batch runs in order, one action at a time. Failures are recorded per
// action and never stop the remaining actions; nothing is retried.
package execution

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/odvcencio/taskmate/pkg/actions"
	apperrors "github.com/odvcencio/taskmate/pkg/errors"
	"github.com/odvcencio/taskmate/pkg/storage"
)

// Result is the outcome of one action in a batch.
type Result struct {
	// Index is the action's position in the confirmed batch.
	Index int `json:"index"`

	Kind    actions.Kind `json:"kind"`
	Summary string       `json:"summary"`
	Success bool         `json:"success"`

	// EntityID is the created or deleted record's id.
	EntityID string `json:"entityId,omitempty"`

	// Error is a user-presentable failure description.
	Error string `json:"error,omitempty"`
}

// Executor applies actions through a storage.Repository.
type Executor struct {
	repo   storage.Repository
	logger zerolog.Logger
}

func NewExecutor(repo storage.Repository, logger zerolog.Logger) *Executor {
	return &Executor{repo: repo, logger: logger}
}

// ExecuteBatch runs every action for userID and returns one Result per
// action, in batch order.
func (e *Executor) ExecuteBatch(ctx context.Context, userID string, batch []actions.Action) []Result {
	h := userHandler{repo: e.repo, userID: userID}
	results := make([]Result, 0, len(batch))

	for i, a := range batch {
		if a == nil {
			results = append(results, Result{Index: i, Error: "empty action"})
			continue
		}
		res := Result{Index: i, Kind: a.Kind(), Summary: a.Summary()}

		id, err := a.Dispatch(ctx, h)
		if err != nil {
			e.logger.Warn().Err(err).
				Str("user_id", userID).
				Str("kind", string(a.Kind())).
				Int("index", i).
				Msg("action failed")
			res.Error = publicMessage(err)
		} else {
			res.Success = true
			res.EntityID = id
		}
		results = append(results, res)
	}
	return results
}

// Counts returns how many results succeeded and failed.
func Counts(results []Result) (succeeded, failed int) {
	for _, r := range results {
		if r.Success {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}

// Describe renders results as a short reply for the user.
func Describe(results []Result) string {
	if len(results) == 0 {
		return "Nothing to do."
	}
	var done, failed []string
	for _, r := range results {
		if r.Success {
			done = append(done, r.Summary)
		} else {
			failed = append(failed, fmt.Sprintf("%s (%s)", r.Summary, r.Error))
		}
	}

	var b strings.Builder
	if len(done) > 0 {
		fmt.Fprintf(&b, "Done: %s.", strings.Join(done, "; "))
	}
	if len(failed) > 0 {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "Could not complete: %s.", strings.Join(failed, "; "))
	}
	return b.String()
}

func publicMessage(err error) string {
	switch {
	case apperrors.IsCode(err, apperrors.ErrCodeNotFound):
		return "not found"
	case apperrors.IsCode(err, apperrors.ErrCodeInvalidInput):
		return "invalid"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "failed"
	}
}

// userHandler binds the handler methods to one user.
type userHandler struct {
	repo   storage.Repository
	userID string
}

var _ actions.Handler = userHandler{}

func (h userHandler) CreateTask(ctx context.Context, a actions.CreateTask) (string, error) {
	task := &storage.Task{
		UserID:      h.userID,
		Title:       a.Title,
		Category:    a.Category,
		Priority:    string(a.Priority),
		Description: a.Description,
		DueDate:     a.DueDate,
		Status:      a.Status,
	}
	if err := h.repo.CreateTask(ctx, task); err != nil {
		return "", storageError(err, "create task")
	}
	return task.ID, nil
}

func (h userHandler) DeleteTask(ctx context.Context, a actions.DeleteTask) (string, error) {
	if a.TaskID == "" {
		return "", storageError(storage.ErrNotFound, "delete task")
	}
	if err := h.repo.DeleteTask(ctx, h.userID, a.TaskID, a.Reason); err != nil {
		return a.TaskID, storageError(err, "delete task").WithContext("task_id", a.TaskID)
	}
	return a.TaskID, nil
}

func (h userHandler) CreateGoal(ctx context.Context, a actions.CreateGoal) (string, error) {
	goal := &storage.Goal{
		UserID:      h.userID,
		Title:       a.Title,
		Description: a.Description,
		Priority:    string(a.Priority),
		Deadline:    a.Deadline,
	}
	if err := h.repo.CreateGoal(ctx, goal); err != nil {
		return "", storageError(err, "create goal")
	}
	return goal.ID, nil
}

func (h userHandler) DeleteGoal(ctx context.Context, a actions.DeleteGoal) (string, error) {
	if a.GoalID == "" {
		return "", storageError(storage.ErrNotFound, "delete goal")
	}
	if err := h.repo.DeleteGoal(ctx, h.userID, a.GoalID, a.Reason); err != nil {
		return a.GoalID, storageError(err, "delete goal").WithContext("goal_id", a.GoalID)
	}
	return a.GoalID, nil
}

func storageError(err error, op string) *apperrors.Error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return apperrors.Wrap(err, apperrors.ErrCodeNotFound, op)
	case errors.Is(err, storage.ErrInvalid):
		return apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, op)
	default:
		return apperrors.Wrap(err, apperrors.ErrCodeActionExecution, op)
	}
}
