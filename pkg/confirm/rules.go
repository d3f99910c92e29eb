package confirm

import "regexp"

// Confidence levels by tier.
const (
	ConfidenceExact      = 1.0
	ConfidenceContextual = 0.9
	ConfidenceShort      = 0.8
)

// ShortMessageWords is the word limit for the single-word fallback tier.
const ShortMessageWords = 3

var strongAffirmatives = []string{
	"yes", "yeah", "yea", "yep", "yup", "y", "ya", "ok", "okay", "k", "kk",
	"sure", "confirm", "confirmed", "approve", "approved", "affirmative",
	"absolutely", "definitely", "of course", "certainly", "correct", "right",
	"alright", "all right", "👍", "✅",
}

var actionIntents = []string{
	"go ahead", "do it", "proceed", "sounds good", "go for it", "let's do it",
	"lets do it", "please do", "looks good", "looks great", "that works",
	"make it so", "ship it", "add it", "add them", "create it", "create them",
	"delete it", "delete them", "remove it", "remove them", "continue",
	"perfect", "great", "good", "fine", "works for me",
}

var declines = []string{
	"no", "nope", "nah", "n", "cancel", "stop", "abort", "never mind",
	"nevermind", "forget it", "don't", "dont", "do not", "decline", "declined",
	"reject", "skip", "skip it", "no way", "negative", "👎", "❌",
}

var contextualAffirmative = []*regexp.Regexp{
	regexp.MustCompile(`^(yes|yeah|yep|yup|sure|ok|okay|absolutely|definitely|alright|confirm(ed)?)[,!. ]+(please|pls|thanks|thank you|thx|go ahead|do it|proceed|go for it|sounds good|looks good|that works|perfect|great|add (it|them|those|that)|create (it|them|those|that)|delete (it|them|those|that)|remove (it|them|those|that)|that's (fine|right|correct|good|great)|i confirm)\b`),
	regexp.MustCompile(`^(please )?(go ahead|do it|proceed|go for it)( (please|now|with (it|that|them|those|this)))?$`),
	regexp.MustCompile(`^(that|this|it|those|these) (looks|sounds|seems|is|are) (good|great|fine|perfect|right|correct)$`),
	regexp.MustCompile(`^(yes|yeah|yep|sure|ok|okay),? (add|create|delete|remove|do) (it|them|those|that|all( of them)?)$`),
}

var contextualDecline = []*regexp.Regexp{
	regexp.MustCompile(`^(no|nope|nah)[,!. ]+(thanks|thank you|thx|please|don't|do not|cancel|stop|leave it|forget it|never ?mind|not now|not yet|i changed my mind|skip)\b`),
	regexp.MustCompile(`^(not now|not yet|maybe later|later|hold off|i changed my mind|changed my mind|on second thought)\b`),
	regexp.MustCompile(`^(please )?(cancel|stop|abort|discard|scrap) (it|that|this|them|those|these|all|everything)$`),
	regexp.MustCompile(`^(don't|do not|dont) (do|add|create|delete|remove) (it|that|this|them|those|these|anything)$`),
}

var affirmativeWords = toSet("yes", "yeah", "yea", "yep", "yup", "ok", "okay", "sure",
	"confirm", "confirmed", "approve", "approved", "proceed", "absolutely",
	"definitely", "alright")

var declineWords = toSet("no", "nope", "nah", "cancel", "stop", "abort", "decline",
	"reject", "nevermind", "don't", "dont", "never")

// DefaultRules is the English rule table: exact phrases first, then
// contextual patterns, then a single-word scan of very short messages.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "strong_affirmative", Verdict: VerdictConfirm, Confidence: ConfidenceExact, Match: exact(strongAffirmatives)},
		{Name: "action_intent", Verdict: VerdictConfirm, Confidence: ConfidenceExact, Match: exact(actionIntents)},
		{Name: "exact_decline", Verdict: VerdictDecline, Confidence: ConfidenceExact, Match: exact(declines)},
		{Name: "contextual_affirmative", Verdict: VerdictConfirm, Confidence: ConfidenceContextual, Match: anyPattern(contextualAffirmative)},
		{Name: "contextual_decline", Verdict: VerdictDecline, Confidence: ConfidenceContextual, Match: anyPattern(contextualDecline)},
		{Name: "short_affirmative_word", Verdict: VerdictConfirm, Confidence: ConfidenceShort, Match: shortWord(affirmativeWords)},
		{Name: "short_decline_word", Verdict: VerdictDecline, Confidence: ConfidenceShort, Match: shortWord(declineWords)},
	}
}

// exact matches the whole message, ignoring trailing punctuation.
func exact(phrases []string) func(Input) bool {
	set := toSet(phrases...)
	return func(in Input) bool {
		_, ok := set[in.Bare]
		return ok
	}
}

func anyPattern(patterns []*regexp.Regexp) func(Input) bool {
	return func(in Input) bool {
		for _, re := range patterns {
			if re.MatchString(in.Bare) {
				return true
			}
		}
		return false
	}
}

func shortWord(words map[string]struct{}) func(Input) bool {
	return func(in Input) bool {
		if len(in.Words) == 0 || len(in.Words) > ShortMessageWords {
			return false
		}
		for _, w := range in.Words {
			if _, ok := words[w]; ok {
				return true
			}
		}
		return false
	}
}

func toSet(items ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}
