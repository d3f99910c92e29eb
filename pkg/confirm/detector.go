// Package confirm classifies short replies to a pending action batch as a
// confirmation, a decline, or neither.
package confirm

import (
	"strings"
	"unicode/utf8"
)

// Verdict is the outcome of classification.
type Verdict string

const (
	VerdictConfirm Verdict = "confirm"
	VerdictDecline Verdict = "decline"
	VerdictNone    Verdict = "none"
)

const (
	// MaxMessageLength is the longest message, in characters, that can be
	// read as a confirmation. Longer text is treated as a new request.
	MaxMessageLength = 50

	PatternNoPending = "no_pending_actions"
	PatternEmpty     = "empty_message"
	PatternTooLong   = "message_too_long"
	PatternNoMatch   = "no_match"
)

// Result of Detect.
type Result struct {
	Type           Verdict `json:"type"`
	Confidence     float64 `json:"confidence"`
	MatchedPattern string  `json:"matchedPattern"`
}

// Input is a normalized message handed to rule matchers.
type Input struct {
	Text  string   // lowercased, trimmed, single-spaced
	Bare  string   // Text without trailing punctuation
	Words []string // Bare split on spaces, punctuation stripped per word
}

// Rule is one row of the classification table.
type Rule struct {
	Name       string
	Verdict    Verdict
	Confidence float64
	Match      func(Input) bool
}

// Detector evaluates rules in order; the first match wins.
type Detector struct {
	rules  []Rule
	maxLen int
}

// Option configures a Detector.
type Option func(*Detector)

// WithRules replaces the rule table.
func WithRules(rules []Rule) Option {
	return func(d *Detector) { d.rules = append([]Rule(nil), rules...) }
}

func WithMaxLength(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.maxLen = n
		}
	}
}

func NewDetector(opts ...Option) *Detector {
	d := &Detector{rules: DefaultRules(), maxLen: MaxMessageLength}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var defaultDetector = NewDetector()

// Detect classifies message with the default rule table.
func Detect(message string, hasPending bool) Result {
	return defaultDetector.Detect(message, hasPending)
}

// Detect classifies message. Without pending actions it always returns none
// so a stray "yes" never triggers anything.
func (d *Detector) Detect(message string, hasPending bool) Result {
	if !hasPending {
		return none(PatternNoPending)
	}
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return none(PatternEmpty)
	}
	// Length is measured before inner whitespace is collapsed.
	if utf8.RuneCountInString(trimmed) > d.maxLen {
		return none(PatternTooLong)
	}
	in := Normalize(trimmed)
	for _, r := range d.rules {
		if r.Match(in) {
			return Result{Type: r.Verdict, Confidence: r.Confidence, MatchedPattern: r.Name}
		}
	}
	return none(PatternNoMatch)
}

// Rules returns a copy of the detector's table.
func (d *Detector) Rules() []Rule {
	return append([]Rule(nil), d.rules...)
}

func none(pattern string) Result {
	return Result{Type: VerdictNone, Confidence: 0, MatchedPattern: pattern}
}

// Normalize lowercases message, trims it and collapses inner whitespace.
func Normalize(message string) Input {
	text := strings.Join(strings.Fields(strings.ToLower(message)), " ")
	bare := strings.TrimRight(text, ".!,; ")
	var words []string
	for _, w := range strings.Fields(bare) {
		w = strings.Trim(w, ".,!?;:\"'()")
		if w != "" {
			words = append(words, w)
		}
	}
	return Input{Text: text, Bare: bare, Words: words}
}
