// Package prompts assembles what the assistant sends to the model on a
// new-request turn.
package prompts

import (
	"fmt"
	"strings"
	"time"

	"github.com/odvcencio/taskmate/pkg/actions"
	"github.com/odvcencio/taskmate/pkg/model"
	"github.com/odvcencio/taskmate/pkg/storage"
)

// DefaultPersona introduces the assistant.
const DefaultPersona = `You are TaskMate, a friendly productivity assistant. You help the user plan their day, break work into tasks and keep track of goals. Keep replies short and concrete.`

// Placeholders recognised in a persona override.
const (
	PlaceholderDefaultPersona = "{{DEFAULT_PERSONA}}"
	PlaceholderCurrentDate    = "{{CURRENT_DATE}}"
)

// Role of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one prior message in the conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Context is everything a prompt is built from.
type Context struct {
	Now     time.Time
	Message string
	Tasks   []storage.Task
	Goals   []storage.Goal
	History []Turn
	// PendingSummary describes a batch still awaiting confirmation.
	PendingSummary string
}

// Prompt is a built prompt, ready to send.
type Prompt struct {
	System         string
	User           string
	GrammarVersion int
}

// Request converts the prompt to a model request.
func (p Prompt) Request(temperature *float32) model.Request {
	return model.Request{System: p.System, Prompt: p.User, Temperature: temperature}
}

type Builder struct {
	persona    string
	maxHistory int
	maxItems   int
	location   *time.Location
}

type Option func(*Builder)

// WithPersona replaces the persona text. The override may embed
// {{DEFAULT_PERSONA}} and {{CURRENT_DATE}}.
func WithPersona(persona string) Option {
	return func(b *Builder) {
		if strings.TrimSpace(persona) != "" {
			b.persona = persona
		}
	}
}

// WithMaxHistory caps how many prior turns are included.
func WithMaxHistory(n int) Option {
	return func(b *Builder) {
		if n >= 0 {
			b.maxHistory = n
		}
	}
}

// WithMaxItems caps how many tasks and goals are listed.
func WithMaxItems(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.maxItems = n
		}
	}
}

func WithLocation(loc *time.Location) Option {
	return func(b *Builder) {
		if loc != nil {
			b.location = loc
		}
	}
}

func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		persona:    DefaultPersona,
		maxHistory: 10,
		maxItems:   25,
		location:   time.UTC,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build renders c. It never fails; empty sections are omitted.
func (b *Builder) Build(c Context) Prompt {
	now := c.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.In(b.location)
	date := now.Format("Monday, 2006-01-02")

	persona := strings.ReplaceAll(b.persona, PlaceholderDefaultPersona, DefaultPersona)
	persona = strings.ReplaceAll(persona, PlaceholderCurrentDate, date)

	var sys strings.Builder
	sys.WriteString(strings.TrimSpace(persona))
	fmt.Fprintf(&sys, "\n\nToday is %s. Resolve relative dates such as \"tomorrow\" against it.\n\n", date)
	sys.WriteString(actions.Instructions())

	var user strings.Builder
	b.writeTasks(&user, c.Tasks)
	b.writeGoals(&user, c.Goals)
	if c.PendingSummary != "" {
		fmt.Fprintf(&user, "Awaiting user confirmation: %s. If the user asks for something new, propose a fresh batch; it replaces the old one.\n\n", c.PendingSummary)
	}
	b.writeHistory(&user, c.History)
	fmt.Fprintf(&user, "User: %s", strings.TrimSpace(c.Message))

	return Prompt{
		System:         sys.String(),
		User:           user.String(),
		GrammarVersion: actions.GrammarVersion,
	}
}

func (b *Builder) writeTasks(w *strings.Builder, tasks []storage.Task) {
	if len(tasks) == 0 {
		w.WriteString("The user has no tasks.\n\n")
		return
	}
	w.WriteString("Current tasks (id: title):\n")
	for i, t := range tasks {
		if i == b.maxItems {
			fmt.Fprintf(w, "- ... and %d more\n", len(tasks)-i)
			break
		}
		fmt.Fprintf(w, "- %s: %s [%s, %s, %s", t.ID, t.Title, t.Status, t.Priority, t.Category)
		if t.DueDate != nil {
			fmt.Fprintf(w, ", due %s", *t.DueDate)
		}
		w.WriteString("]\n")
	}
	w.WriteString("\n")
}

func (b *Builder) writeGoals(w *strings.Builder, goals []storage.Goal) {
	if len(goals) == 0 {
		return
	}
	w.WriteString("Current goals (id: title):\n")
	for i, g := range goals {
		if i == b.maxItems {
			fmt.Fprintf(w, "- ... and %d more\n", len(goals)-i)
			break
		}
		fmt.Fprintf(w, "- %s: %s [%s, %s", g.ID, g.Title, g.Status, g.Priority)
		if g.Deadline != nil {
			fmt.Fprintf(w, ", deadline %s", *g.Deadline)
		}
		w.WriteString("]\n")
	}
	w.WriteString("\n")
}

func (b *Builder) writeHistory(w *strings.Builder, history []Turn) {
	if len(history) == 0 || b.maxHistory == 0 {
		return
	}
	if len(history) > b.maxHistory {
		history = history[len(history)-b.maxHistory:]
	}
	w.WriteString("Recent conversation:\n")
	for _, turn := range history {
		name := "User"
		if turn.Role == RoleAssistant {
			name = "Assistant"
		}
		fmt.Fprintf(w, "%s: %s\n", name, strings.TrimSpace(turn.Content))
	}
	w.WriteString("\n")
}
