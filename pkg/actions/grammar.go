package actions

import (
	"fmt"
	"strings"
)

// The ACTIONS block grammar, version 1:
//
//	response  = prose [ block ] prose
//	block     = "<ACTIONS>" [ fence ] array [ fence ] "</ACTIONS>"
//	array     = JSON array of envelope
//	envelope  = {"type": kind, "data": object}
//	kind      = "create_task" | "delete_task" | "create_goal" | "delete_goal"
//	fence     = "```" [ "json" ] newline | "```"
//
// At most one block may appear. Prose outside the block is shown to the user.
const (
	GrammarVersion = 1

	OpenTag  = "<ACTIONS>"
	CloseTag = "</ACTIONS>"
)

// Instructions renders the grammar as guidance for the model.
func Instructions() string {
	var b strings.Builder
	fmt.Fprintf(&b, "ACTION FORMAT (v%d)\n", GrammarVersion)
	b.WriteString("When the user asks you to create or delete tasks or goals, reply normally and then append exactly one block:\n")
	fmt.Fprintf(&b, "%s\n[{\"type\": \"<kind>\", \"data\": {...}}]\n%s\n", OpenTag, CloseTag)
	b.WriteString("Supported kinds and fields:\n")
	b.WriteString(`- create_task: title (required), category, priority (high|medium|low), description, due_date (YYYY-MM-DD)` + "\n")
	b.WriteString(`- delete_task: taskId (required, from the task list), reason` + "\n")
	b.WriteString(`- create_goal: title (required), description, priority (high|medium|low), deadline (YYYY-MM-DD)` + "\n")
	b.WriteString(`- delete_goal: goalId (required, from the goal list), reason` + "\n")
	b.WriteString("Only include the block when an action is requested. Never claim an action is done; the user confirms it first.\n")
	return b.String()
}
