// Package storetest is a conformance suite every storage.Repository
// backend must pass.
package storetest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/taskmate/pkg/storage"
)

// Run exercises repo implementations returned by makeRepo. Each subtest
// uses fresh user ids, so a shared database is fine.
func Run(t *testing.T, makeRepo func(t *testing.T) storage.Repository) {
	t.Helper()

	t.Run("TaskLifecycle", func(t *testing.T) { testTaskLifecycle(t, makeRepo(t)) })
	t.Run("GoalLifecycle", func(t *testing.T) { testGoalLifecycle(t, makeRepo(t)) })
	t.Run("UserIsolation", func(t *testing.T) { testUserIsolation(t, makeRepo(t)) })
	t.Run("Validation", func(t *testing.T) { testValidation(t, makeRepo(t)) })
	t.Run("ListLimit", func(t *testing.T) { testListLimit(t, makeRepo(t)) })
}

func newUser() string {
	return "u-" + uuid.NewString()
}

func testTaskLifecycle(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	user := newUser()
	due := "2026-11-01"

	task := &storage.Task{UserID: user, Title: "Call mom", Description: "weekly", DueDate: &due}
	require.NoError(t, repo.CreateTask(ctx, task))
	require.NotEmpty(t, task.ID)
	assert.Equal(t, storage.TaskStatusTodo, task.Status)
	assert.Equal(t, "General", task.Category)
	assert.Equal(t, "medium", task.Priority)
	assert.False(t, task.CreatedAt.IsZero())

	got, err := repo.GetTask(ctx, user, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Call mom", got.Title)
	assert.Equal(t, "weekly", got.Description)
	require.NotNil(t, got.DueDate)
	assert.Equal(t, due, *got.DueDate)
	assert.True(t, task.CreatedAt.Equal(got.CreatedAt))

	list, err := repo.ListTasks(ctx, user, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, task.ID, list[0].ID)

	require.NoError(t, repo.DeleteTask(ctx, user, task.ID, "done"))
	_, err = repo.GetTask(ctx, user, task.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, repo.DeleteTask(ctx, user, task.ID, ""), storage.ErrNotFound)
}

func testGoalLifecycle(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	user := newUser()

	goal := &storage.Goal{UserID: user, Title: "Run a marathon", Priority: "high"}
	require.NoError(t, repo.CreateGoal(ctx, goal))
	require.NotEmpty(t, goal.ID)
	assert.Equal(t, storage.GoalStatusActive, goal.Status)

	got, err := repo.GetGoal(ctx, user, goal.ID)
	require.NoError(t, err)
	assert.Equal(t, "high", got.Priority)
	assert.Nil(t, got.Deadline)

	list, err := repo.ListGoals(ctx, user, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, repo.DeleteGoal(ctx, user, goal.ID, "changed plans"))
	_, err = repo.GetGoal(ctx, user, goal.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testUserIsolation(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	owner, other := newUser(), newUser()

	task := &storage.Task{UserID: owner, Title: "Private"}
	require.NoError(t, repo.CreateTask(ctx, task))
	goal := &storage.Goal{UserID: owner, Title: "Private goal"}
	require.NoError(t, repo.CreateGoal(ctx, goal))

	_, err := repo.GetTask(ctx, other, task.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, repo.DeleteTask(ctx, other, task.ID, ""), storage.ErrNotFound)
	assert.ErrorIs(t, repo.DeleteGoal(ctx, other, goal.ID, ""), storage.ErrNotFound)

	tasks, err := repo.ListTasks(ctx, other, 0)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	_, err = repo.GetTask(ctx, owner, task.ID)
	assert.NoError(t, err)
}

func testValidation(t *testing.T, repo storage.Repository) {
	ctx := context.Background()

	assert.ErrorIs(t, repo.CreateTask(ctx, &storage.Task{UserID: newUser()}), storage.ErrInvalid)
	assert.ErrorIs(t, repo.CreateTask(ctx, &storage.Task{Title: "x"}), storage.ErrInvalid)
	assert.ErrorIs(t, repo.CreateGoal(ctx, &storage.Goal{UserID: newUser(), Title: "  "}), storage.ErrInvalid)
	assert.ErrorIs(t, repo.CreateTask(ctx, nil), storage.ErrInvalid)
}

func testListLimit(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	user := newUser()

	for _, title := range []string{"a", "b", "c"} {
		require.NoError(t, repo.CreateTask(ctx, &storage.Task{UserID: user, Title: title}))
	}

	list, err := repo.ListTasks(ctx, user, 2)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	all, err := repo.ListTasks(ctx, user, 0)
	require.NoError(t, err)
	titles := make([]string, 0, len(all))
	for _, task := range all {
		titles = append(titles, task.Title)
	}
	assert.ElementsMatch(t, []string{"a", "b", "c"}, titles)
}
