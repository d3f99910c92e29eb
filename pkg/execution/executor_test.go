package execution

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/odvcencio/taskmate/pkg/actions"
	"github.com/odvcencio/taskmate/pkg/logging"
	"github.com/odvcencio/taskmate/pkg/storage"
	"github.com/odvcencio/taskmate/pkg/storage/storagemock"
)

func TestExecuteBatch_AgainstSQLite(t *testing.T) {
	store, err := storage.New(":memory:")
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	existing := &storage.Task{UserID: "u1", Title: "Old task"}
	require.NoError(t, store.CreateTask(ctx, existing))

	due := "2026-10-16"
	batch := []actions.Action{
		actions.CreateTask{Title: "Call mom", Category: "Family", Priority: actions.PriorityHigh, DueDate: &due, Status: actions.StatusTodo},
		actions.DeleteTask{TaskID: "does-not-exist"},
		actions.DeleteTask{TaskID: existing.ID, Reason: "done"},
		actions.CreateGoal{Title: "Get fit", Priority: actions.PriorityLow},
	}

	results := NewExecutor(store, logging.Nop()).ExecuteBatch(ctx, "u1", batch)
	require.Len(t, results, 4)

	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, batch[i].Kind(), r.Kind)
	}
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Equal(t, "not found", results[1].Error)
	assert.True(t, results[2].Success)
	assert.True(t, results[3].Success)

	created, err := store.GetTask(ctx, "u1", results[0].EntityID)
	require.NoError(t, err)
	assert.Equal(t, "Family", created.Category)
	assert.Equal(t, "high", created.Priority)
	assert.Equal(t, "todo", created.Status)
	require.NotNil(t, created.DueDate)
	assert.Equal(t, due, *created.DueDate)

	_, err = store.GetTask(ctx, "u1", existing.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	goals, err := store.ListGoals(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, goals, 1)
	assert.Equal(t, "low", goals[0].Priority)

	ok, failed := Counts(results)
	assert.Equal(t, 3, ok)
	assert.Equal(t, 1, failed)
}

func TestExecuteBatch_FailureDoesNotStopSiblings(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := storagemock.NewMockRepository(ctrl)
	ctx := context.Background()

	gomock.InOrder(
		repo.EXPECT().DeleteGoal(ctx, "u1", "g1", "obsolete").Return(errors.New("connection reset")),
		repo.EXPECT().CreateTask(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, task *storage.Task) error {
			assert.Equal(t, "u1", task.UserID)
			task.ID = "t-new"
			return nil
		}),
		repo.EXPECT().DeleteGoal(ctx, "u1", "g2", "").Return(nil),
	)

	results := NewExecutor(repo, logging.Nop()).ExecuteBatch(ctx, "u1", []actions.Action{
		actions.DeleteGoal{GoalID: "g1", Reason: "obsolete"},
		actions.CreateTask{Title: "Next"},
		actions.DeleteGoal{GoalID: "g2"},
	})

	require.Len(t, results, 3)
	assert.Equal(t, Result{Index: 0, Kind: actions.KindDeleteGoal, Summary: "delete goal g1", Error: "failed"}, results[0])
	assert.Equal(t, Result{Index: 1, Kind: actions.KindCreateTask, Summary: `create task "Next"`, Success: true, EntityID: "t-new"}, results[1])
	assert.True(t, results[2].Success)
	assert.Equal(t, "g2", results[2].EntityID)
}

func TestExecuteBatch_NilAction(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := storagemock.NewMockRepository(ctrl)

	results := NewExecutor(repo, logging.Nop()).ExecuteBatch(context.Background(), "u1", []actions.Action{nil})
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
}

func TestExecuteBatch_MissingIDIsNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := storagemock.NewMockRepository(ctrl)
	repo.EXPECT().CreateGoal(gomock.Any(), gomock.Any()).Return(nil)

	results := NewExecutor(repo, logging.Nop()).ExecuteBatch(context.Background(), "u1", []actions.Action{
		actions.DeleteTask{Reason: "done"},
		actions.DeleteGoal{},
		actions.CreateGoal{Title: "still runs"},
	})
	require.Len(t, results, 3)
	assert.Equal(t, Result{Index: 0, Kind: actions.KindDeleteTask, Summary: "delete task (no id)", Error: "not found"}, results[0])
	assert.Equal(t, Result{Index: 1, Kind: actions.KindDeleteGoal, Summary: "delete goal (no id)", Error: "not found"}, results[1])
	assert.True(t, results[2].Success)
}

func TestExecuteBatch_CancelledContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := storagemock.NewMockRepository(ctrl)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	repo.EXPECT().CreateTask(ctx, gomock.Any()).Return(ctx.Err())

	results := NewExecutor(repo, logging.Nop()).ExecuteBatch(ctx, "u1", []actions.Action{actions.CreateTask{Title: "x"}})
	assert.Equal(t, "cancelled", results[0].Error)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "Nothing to do.", Describe(nil))

	got := Describe([]Result{
		{Summary: `create task "A"`, Success: true},
		{Summary: "delete task 7", Error: "not found"},
		{Summary: `create goal "B"`, Success: true},
	})
	assert.Equal(t, `Done: create task "A"; create goal "B". Could not complete: delete task 7 (not found).`, got)

	assert.Equal(t, "Could not complete: delete goal 1 (failed).", Describe([]Result{{Summary: "delete goal 1", Error: "failed"}}))
}
