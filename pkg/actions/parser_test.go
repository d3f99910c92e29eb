package actions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_CreateTaskDefaults(t *testing.T) {
	got := Parse("Sure!\n<ACTIONS>[{\"type\":\"create_task\",\"data\":{\"title\":\"Buy milk\"}}]</ACTIONS>")

	assert.Equal(t, "Sure!", got.Message)
	require.Len(t, got.Actions, 1)

	task, ok := got.Actions[0].(CreateTask)
	require.True(t, ok)
	assert.Equal(t, "Buy milk", task.Title)
	assert.Equal(t, DefaultCategory, task.Category)
	assert.Equal(t, PriorityMedium, task.Priority)
	assert.Equal(t, StatusTodo, task.Status)
	assert.Equal(t, "", task.Description)
	assert.Nil(t, task.DueDate)
}

func TestParse_NoBlock(t *testing.T) {
	got := Parse("  Here are some tips for staying focused.  ")
	assert.Equal(t, "Here are some tips for staying focused.", got.Message)
	assert.Empty(t, got.Actions)
}

func TestParse_MalformedBlockFallsBack(t *testing.T) {
	in := "Okay!\n<ACTIONS>[{\"type\": \"create_task\", \"data\": {\"title\": </ACTIONS>\n"
	got := Parse(in)
	assert.Equal(t, "Okay!\n<ACTIONS>[{\"type\": \"create_task\", \"data\": {\"title\": </ACTIONS>", got.Message)
	assert.Empty(t, got.Actions)
}

func TestParse_StructuralFailures(t *testing.T) {
	cases := map[string]string{
		"object instead of array": `Done <ACTIONS>{"type":"create_task","data":{}}</ACTIONS>`,
		"two blocks":              `a <ACTIONS>[]</ACTIONS> b <ACTIONS>[]</ACTIONS>`,
		"missing close":           `a <ACTIONS>[{"type":"create_task","data":{}}]`,
		"close before open":       `a </ACTIONS> [] <ACTIONS>`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			got := Parse(in)
			assert.Equal(t, in, got.Message)
			assert.Empty(t, got.Actions)
		})
	}
}

func TestParse_FiltersInvalidPreservingOrder(t *testing.T) {
	in := `Working on it.
<ACTIONS>
[
  {"type": "create_goal", "data": {"title": "Run a marathon", "priority": "HIGH", "deadline": "2026-12-01"}},
  {"type": "archive_task", "data": {"taskId": "t1"}},
  {"type": "delete_task", "data": {"taskId": 42, "reason": "done"}}
]
</ACTIONS>`
	got := Parse(in)

	assert.Equal(t, "Working on it.", got.Message)
	require.Len(t, got.Actions, 2)

	goal := got.Actions[0].(CreateGoal)
	assert.Equal(t, "Run a marathon", goal.Title)
	assert.Equal(t, PriorityHigh, goal.Priority)
	require.NotNil(t, goal.Deadline)
	assert.Equal(t, "2026-12-01", *goal.Deadline)

	del := got.Actions[1].(DeleteTask)
	assert.Equal(t, "42", del.TaskID)
	assert.Equal(t, "done", del.Reason)
}

func TestParse_DropsShapeViolations(t *testing.T) {
	in := `x <ACTIONS>[
		{"data": {"title": "no type"}},
		{"type": "create_task"},
		{"type": "create_task", "data": null},
		"just a string",
		{"type": "delete_goal", "data": {"goalId": "g-7"}}
	]</ACTIONS>`
	got := Parse(in)
	require.Len(t, got.Actions, 1)
	assert.Equal(t, DeleteGoal{GoalID: "g-7"}, got.Actions[0])
}

func TestParse_DeleteWithoutIDPassesThrough(t *testing.T) {
	got := Parse(`<ACTIONS>[{"type":"delete_task","data":{"reason":"done"}},{"type":"delete_goal","data":{}}]</ACTIONS>`)
	require.Len(t, got.Actions, 2)
	assert.Equal(t, DeleteTask{Reason: "done"}, got.Actions[0])
	assert.Equal(t, DeleteGoal{}, got.Actions[1])
}

func TestParse_MessageIsTextWithoutBlock(t *testing.T) {
	got := Parse("Here you go <ACTIONS>[]</ACTIONS> all set.")
	assert.Equal(t, "Here you go  all set.", got.Message)
}

func TestParse_CodeFence(t *testing.T) {
	in := "Added.\n<ACTIONS>\n```json\n[{\"type\":\"create_task\",\"data\":{\"title\":\"Stretch\",\"due_date\":\"2026-10-16T09:00:00Z\"}}]\n```\n</ACTIONS>\nLet me know!"
	got := Parse(in)

	assert.Equal(t, "Added.\n\nLet me know!", got.Message)
	require.Len(t, got.Actions, 1)
	task := got.Actions[0].(CreateTask)
	require.NotNil(t, task.DueDate)
	assert.Equal(t, "2026-10-16", *task.DueDate)
}

func TestParse_EmptyArray(t *testing.T) {
	got := Parse("Nothing to do. <ACTIONS>[]</ACTIONS>")
	assert.Equal(t, "Nothing to do.", got.Message)
	assert.Empty(t, got.Actions)
}

func TestParse_InvalidFieldValuesNormalized(t *testing.T) {
	got := Parse(`<ACTIONS>[{"type":"create_task","data":{"title":"  ","priority":"urgent","due_date":"next week","category":7}}]</ACTIONS>`)
	require.Len(t, got.Actions, 1)
	task := got.Actions[0].(CreateTask)
	assert.Equal(t, DefaultTaskTitle, task.Title)
	assert.Equal(t, PriorityMedium, task.Priority)
	assert.Equal(t, DefaultCategory, task.Category)
	assert.Nil(t, task.DueDate)
	assert.Equal(t, "", got.Message)
}

func TestParser_Repair(t *testing.T) {
	in := `Sure <ACTIONS>[{"type": "create_task", "data": {"title": "Water plants",},},]</ACTIONS>`

	strict := NewParser().Parse(in)
	assert.Empty(t, strict.Actions)

	lenient := NewParser(WithRepair(true)).Parse(in)
	require.Len(t, lenient.Actions, 1)
	assert.Equal(t, "Water plants", lenient.Actions[0].(CreateTask).Title)
	assert.Equal(t, "Sure", lenient.Message)
}
