package confirm

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/odvcencio/taskmate/pkg/actions"
)

var newRequestPattern = regexp.MustCompile(`^(create|add|make|new|delete|remove|update|change|edit|rename|move|schedule|set|mark|complete|finish|list|show|find|plan|remind|help|what|when|where|which|who|why|how|can you|could you|would you|will you|please (create|add|make|delete|remove|update|change|show|list)|i want|i need|i'd like|id like|let's|lets)\b`)

// IsLikelyNewRequest reports whether message reads as a fresh instruction
// or question rather than an answer to a pending proposal.
func IsLikelyNewRequest(message string) bool {
	in := Normalize(message)
	if in.Text == "" {
		return false
	}
	if strings.HasSuffix(in.Text, "?") {
		return true
	}
	return newRequestPattern.MatchString(in.Text)
}

// DescribePending summarizes a batch by kind, e.g.
// "2 create tasks, 1 delete goal". Kinds appear in first-seen order.
func DescribePending(batch []actions.Action) string {
	counts := make(map[actions.Kind]int)
	var order []actions.Kind
	for _, a := range batch {
		if a == nil {
			continue
		}
		k := a.Kind()
		if counts[k] == 0 {
			order = append(order, k)
		}
		counts[k]++
	}
	if len(order) == 0 {
		return "no actions"
	}

	parts := make([]string, 0, len(order))
	for _, k := range order {
		parts = append(parts, describeKind(k, counts[k]))
	}
	return strings.Join(parts, ", ")
}

func describeKind(k actions.Kind, n int) string {
	verb, noun, _ := strings.Cut(string(k), "_")
	if n != 1 {
		noun += "s"
	}
	return fmt.Sprintf("%d %s %s", n, verb, noun)
}
