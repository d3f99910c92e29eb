package actions

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/rs/zerolog"
)

// Parsed is the split of a model reply into prose and proposed actions.
type Parsed struct {
	Message string
	Actions []Action
}

// Parser extracts the ACTIONS block from model output. It never fails:
// anything it cannot read degrades to "no actions".
type Parser struct {
	repair bool
	logger zerolog.Logger
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithRepair runs a malformed block body through JSON repair before
// giving up on it.
func WithRepair(enabled bool) ParserOption {
	return func(p *Parser) { p.repair = enabled }
}

func WithLogger(logger zerolog.Logger) ParserOption {
	return func(p *Parser) { p.logger = logger }
}

func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var defaultParser = NewParser()

// Parse uses a parser with default options.
func Parse(text string) Parsed {
	return defaultParser.Parse(text)
}

// Parse splits text into the user-facing message and the validated actions.
func (p *Parser) Parse(text string) Parsed {
	trimmed := strings.TrimSpace(text)
	fallback := Parsed{Message: trimmed}

	opens := strings.Count(trimmed, OpenTag)
	closes := strings.Count(trimmed, CloseTag)
	if opens == 0 && closes == 0 {
		return fallback
	}
	if opens != 1 || closes != 1 {
		p.logger.Debug().Int("open", opens).Int("close", closes).Msg("unbalanced action markers")
		return fallback
	}

	start := strings.Index(trimmed, OpenTag)
	end := strings.Index(trimmed, CloseTag)
	if end < start {
		return fallback
	}

	body := stripFence(trimmed[start+len(OpenTag) : end])
	elems, ok := p.decodeArray(body)
	if !ok {
		return fallback
	}

	out := Parsed{Message: strings.TrimSpace(trimmed[:start] + trimmed[end+len(CloseTag):])}
	for i, raw := range elems {
		a, ok := Decode(raw)
		if !ok {
			p.logger.Debug().Int("index", i).Msg("dropping invalid action")
			continue
		}
		out.Actions = append(out.Actions, a)
	}
	return out
}

func (p *Parser) decodeArray(body string) ([]json.RawMessage, bool) {
	var elems []json.RawMessage
	err := json.Unmarshal([]byte(body), &elems)
	if err == nil {
		return elems, true
	}
	if !p.repair {
		p.logger.Debug().Err(err).Msg("action block is not a JSON array")
		return nil, false
	}

	fixed, repairErr := jsonrepair.JSONRepair(body)
	if repairErr != nil {
		p.logger.Debug().Err(repairErr).Msg("action block repair failed")
		return nil, false
	}
	if err := json.Unmarshal([]byte(fixed), &elems); err != nil {
		p.logger.Debug().Err(err).Msg("repaired action block is not a JSON array")
		return nil, false
	}
	return elems, true
}

// stripFence removes an optional markdown code fence around the body.
func stripFence(body string) string {
	body = strings.TrimSpace(body)
	if !strings.HasPrefix(body, "```") {
		return body
	}
	body = strings.TrimPrefix(body, "```")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = body[4:]
	}
	body = strings.TrimSpace(body)
	body = strings.TrimSuffix(body, "```")
	return strings.TrimSpace(body)
}
