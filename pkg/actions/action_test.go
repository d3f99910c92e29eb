package actions

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	calls []string
}

func (h *recordingHandler) CreateTask(_ context.Context, a CreateTask) (string, error) {
	h.calls = append(h.calls, "create_task:"+a.Title)
	return "task-1", nil
}

func (h *recordingHandler) DeleteTask(_ context.Context, a DeleteTask) (string, error) {
	h.calls = append(h.calls, "delete_task:"+a.TaskID)
	return a.TaskID, errors.New("missing")
}

func (h *recordingHandler) CreateGoal(_ context.Context, a CreateGoal) (string, error) {
	h.calls = append(h.calls, "create_goal:"+a.Title)
	return "goal-1", nil
}

func (h *recordingHandler) DeleteGoal(_ context.Context, a DeleteGoal) (string, error) {
	h.calls = append(h.calls, "delete_goal:"+a.GoalID)
	return a.GoalID, nil
}

func TestDispatch_RoutesEachKind(t *testing.T) {
	h := &recordingHandler{}
	ctx := context.Background()
	batch := []Action{
		CreateTask{Title: "a"},
		DeleteTask{TaskID: "t9"},
		CreateGoal{Title: "b"},
		DeleteGoal{GoalID: "g3"},
	}

	for _, a := range batch {
		_, _ = a.Dispatch(ctx, h)
	}

	assert.Equal(t, []string{"create_task:a", "delete_task:t9", "create_goal:b", "delete_goal:g3"}, h.calls)

	id, err := batch[1].Dispatch(ctx, h)
	assert.Equal(t, "t9", id)
	assert.EqualError(t, err, "missing")
}

func TestParsePriority(t *testing.T) {
	assert.Equal(t, PriorityHigh, ParsePriority(" High "))
	assert.Equal(t, PriorityLow, ParsePriority("low"))
	assert.Equal(t, PriorityMedium, ParsePriority(""))
	assert.Equal(t, PriorityMedium, ParsePriority("critical"))
}

func TestNormalizeDate(t *testing.T) {
	require.NotNil(t, NormalizeDate("2026-03-04"))
	assert.Equal(t, "2026-03-04", *NormalizeDate("2026-03-04"))
	assert.Equal(t, "2026-03-04", *NormalizeDate("2026-03-04T10:00:00+02:00"))
	assert.Nil(t, NormalizeDate("tomorrow"))
	assert.Nil(t, NormalizeDate(""))
}

func TestKindProperties(t *testing.T) {
	assert.True(t, KindDeleteGoal.Destructive())
	assert.False(t, KindCreateTask.Destructive())
	assert.True(t, KindCreateGoal.Valid())
	assert.False(t, Kind("archive_task").Valid())

	batch := []Action{DeleteTask{TaskID: "1"}, CreateTask{}, DeleteGoal{GoalID: "2"}}
	assert.Equal(t, 2, CountDestructive(batch))
}

func TestEncode_WireShape(t *testing.T) {
	due := "2026-01-02"
	env, err := Encode(CreateTask{Title: "Pay rent", Category: "Home", Priority: PriorityHigh, DueDate: &due, Status: StatusTodo})
	require.NoError(t, err)

	raw, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"create_task","data":{"title":"Pay rent","category":"Home","priority":"high","description":"","due_date":"2026-01-02","status":"todo"}}`, string(raw))

	back, ok := Decode(raw)
	require.True(t, ok)
	assert.Equal(t, "Pay rent", back.(CreateTask).Title)
}

func TestInstructions_MentionsGrammar(t *testing.T) {
	text := Instructions()
	assert.Contains(t, text, OpenTag)
	assert.Contains(t, text, CloseTag)
	for _, k := range Kinds {
		assert.Contains(t, text, string(k))
	}
}
