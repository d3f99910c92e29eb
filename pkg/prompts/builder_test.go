package prompts

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/odvcencio/taskmate/pkg/actions"
	"github.com/odvcencio/taskmate/pkg/storage"
)

var fixedNow = time.Date(2026, 10, 15, 14, 30, 0, 0, time.UTC)

func TestBuild_IncludesContext(t *testing.T) {
	due := "2026-10-20"
	p := NewBuilder().Build(Context{
		Now:     fixedNow,
		Message: "  delete the dentist task ",
		Tasks: []storage.Task{
			{ID: "t-1", Title: "Dentist", Status: "todo", Priority: "high", Category: "Health", DueDate: &due},
		},
		Goals: []storage.Goal{{ID: "g-1", Title: "Floss daily", Status: "active", Priority: "medium"}},
		History: []Turn{
			{Role: RoleUser, Content: "hi"},
			{Role: RoleAssistant, Content: "Hello!"},
		},
	})

	assert.Contains(t, p.System, "TaskMate")
	assert.Contains(t, p.System, "Thursday, 2026-10-15")
	assert.Contains(t, p.System, actions.OpenTag)
	assert.Equal(t, actions.GrammarVersion, p.GrammarVersion)

	assert.Contains(t, p.User, "- t-1: Dentist [todo, high, Health, due 2026-10-20]")
	assert.Contains(t, p.User, "- g-1: Floss daily [active, medium]")
	assert.Contains(t, p.User, "User: hi\nAssistant: Hello!\n")
	assert.True(t, strings.HasSuffix(p.User, "User: delete the dentist task"))
}

func TestBuild_EmptyLists(t *testing.T) {
	p := NewBuilder().Build(Context{Now: fixedNow, Message: "plan my week"})
	assert.Contains(t, p.User, "The user has no tasks.")
	assert.NotContains(t, p.User, "Current goals")
	assert.NotContains(t, p.User, "Recent conversation")
}

func TestBuild_Limits(t *testing.T) {
	var tasks []storage.Task
	for i := 0; i < 5; i++ {
		tasks = append(tasks, storage.Task{ID: string(rune('a' + i)), Title: "t"})
	}
	history := []Turn{
		{Role: RoleUser, Content: "one"},
		{Role: RoleUser, Content: "two"},
		{Role: RoleUser, Content: "three"},
	}

	p := NewBuilder(WithMaxItems(2), WithMaxHistory(1)).Build(Context{Now: fixedNow, Tasks: tasks, History: history})
	assert.Contains(t, p.User, "- ... and 3 more")
	assert.NotContains(t, p.User, "- c:")
	assert.Contains(t, p.User, "User: three")
	assert.NotContains(t, p.User, "User: two")
}

func TestBuild_PersonaOverride(t *testing.T) {
	b := NewBuilder(WithPersona("Be terse. {{DEFAULT_PERSONA}} Date: {{CURRENT_DATE}}"))
	p := b.Build(Context{Now: fixedNow})
	assert.True(t, strings.HasPrefix(p.System, "Be terse. "+DefaultPersona+" Date: Thursday, 2026-10-15"))
}

func TestBuild_PendingSummary(t *testing.T) {
	p := NewBuilder().Build(Context{Now: fixedNow, Message: "what else?", PendingSummary: "1 create task"})
	assert.Contains(t, p.User, "Awaiting user confirmation: 1 create task.")
}

func TestBuild_Location(t *testing.T) {
	loc := time.FixedZone("UTC+12", 12*3600)
	p := NewBuilder(WithLocation(loc)).Build(Context{Now: fixedNow})
	assert.Contains(t, p.System, "Friday, 2026-10-16")
}

func TestPrompt_Request(t *testing.T) {
	temp := float32(0.2)
	req := Prompt{System: "s", User: "u"}.Request(&temp)
	assert.Equal(t, "s", req.System)
	assert.Equal(t, "u", req.Prompt)
	assert.Equal(t, &temp, req.Temperature)
}
