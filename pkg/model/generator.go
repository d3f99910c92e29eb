// Package model wraps the text-generation service the assistant talks to.
package model

import "context"

// Request is one prompt to the model.
type Request struct {
	// System carries persona and format instructions.
	System string
	// Prompt is the user-turn content, including any context blocks.
	Prompt string
	// Temperature overrides the provider default when non-nil.
	Temperature     *float32
	MaxOutputTokens int32
}

// Response is the model's completion.
type Response struct {
	Text         string
	Model        string
	FinishReason string
	Usage        Usage
}

// Usage reports token accounting when the provider returns it.
type Usage struct {
	PromptTokens     int32
	CompletionTokens int32
}

// Generator produces a completion for a prompt. Implementations must honour
// ctx cancellation.
//
//go:generate mockgen -package=modelmock -destination=modelmock/mock_generator.go github.com/odvcencio/taskmate/pkg/model Generator
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (*Response, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}
