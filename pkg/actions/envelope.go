package actions

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Envelope is the wire form of one action: {"type": ..., "data": {...}}.
type Envelope struct {
	Type Kind            `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Encode wraps a in its envelope.
func Encode(a Action) (Envelope, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", a.Kind(), err)
	}
	return Envelope{Type: a.Kind(), Data: data}, nil
}

// EncodeAll wraps every action in batch, preserving order.
func EncodeAll(batch []Action) ([]Envelope, error) {
	out := make([]Envelope, 0, len(batch))
	for _, a := range batch {
		env, err := Encode(a)
		if err != nil {
			return nil, err
		}
		out = append(out, env)
	}
	return out, nil
}

// Decode validates and normalizes one raw element. ok is false when the
// element lacks a type or data object, names an unknown kind, or (for
// deletes) carries no id.
func Decode(raw json.RawMessage) (Action, bool) {
	var env struct {
		Type *string                    `json:"type"`
		Data map[string]json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, false
	}
	if env.Type == nil || env.Data == nil {
		return nil, false
	}
	fields := fieldSet(env.Data)

	switch Kind(strings.TrimSpace(*env.Type)) {
	case KindCreateTask:
		return CreateTask{
			Title:       fields.stringOr(DefaultTaskTitle, "title"),
			Category:    fields.stringOr(DefaultCategory, "category"),
			Priority:    ParsePriority(fields.string("priority")),
			Description: fields.string("description"),
			DueDate:     NormalizeDate(fields.string("due_date", "dueDate")),
			Status:      StatusTodo,
		}, true
	case KindCreateGoal:
		return CreateGoal{
			Title:       fields.stringOr(DefaultGoalTitle, "title"),
			Description: fields.string("description"),
			Priority:    ParsePriority(fields.string("priority")),
			Deadline:    NormalizeDate(fields.string("deadline", "target_date", "targetDate")),
		}, true
	case KindDeleteTask:
		// A missing id is passed through; execution reports it per action.
		return DeleteTask{TaskID: fields.id("taskId", "task_id", "id"), Reason: fields.string("reason")}, true
	case KindDeleteGoal:
		return DeleteGoal{GoalID: fields.id("goalId", "goal_id", "id"), Reason: fields.string("reason")}, true
	default:
		return nil, false
	}
}

type fieldSet map[string]json.RawMessage

// string returns the first key holding a JSON string, trimmed.
func (f fieldSet) string(keys ...string) string {
	for _, k := range keys {
		raw, ok := f[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func (f fieldSet) stringOr(def string, keys ...string) string {
	if s := f.string(keys...); s != "" {
		return s
	}
	return def
}

// id accepts either a string or an integral number.
func (f fieldSet) id(keys ...string) string {
	if s := f.string(keys...); s != "" {
		return s
	}
	for _, k := range keys {
		raw, ok := f[k]
		if !ok {
			continue
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			continue
		}
		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
	}
	return ""
}
