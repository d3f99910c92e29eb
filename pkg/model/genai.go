package model

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	apperrors "github.com/odvcencio/taskmate/pkg/errors"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// GenAIConfig configures the Gemini provider.
type GenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	// Temperature is the default when a request does not set one.
	Temperature     float32
	MaxOutputTokens int32
	HTTPClient      *http.Client
}

// GenAIProvider calls the Gemini API through google.golang.org/genai.
type GenAIProvider struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
}

var _ Generator = (*GenAIProvider)(nil)

func NewGenAIProvider(ctx context.Context, cfg GenAIConfig) (*GenAIProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, apperrors.New(apperrors.ErrCodeConfigInvalid, "gemini api key is required").
			WithRemediation("set GOOGLE_API_KEY or model.api_key in config.yaml")
	}
	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GenAIProvider{
		client:      client,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxOutputTokens,
	}, nil
}

// Model returns the configured model name.
func (p *GenAIProvider) Model() string {
	return p.model
}

func (p *GenAIProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	temp := p.temperature
	if req.Temperature != nil {
		temp = *req.Temperature
	}
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temp),
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if tokens := req.MaxOutputTokens; tokens > 0 {
		config.MaxOutputTokens = tokens
	} else if p.maxTokens > 0 {
		config.MaxOutputTokens = p.maxTokens
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(req.Prompt), config)
	if err != nil {
		return nil, wrapAPIError(err)
	}

	out := &Response{Text: resp.Text(), Model: p.model}
	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
		out.FinishReason = string(resp.Candidates[0].FinishReason)
	}
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
		}
	}
	if strings.TrimSpace(out.Text) == "" {
		return nil, apperrors.New(apperrors.ErrCodeModelAPIError, "model returned no text").
			WithContext("finish_reason", out.FinishReason)
	}
	return out, nil
}

func wrapAPIError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		return apperrors.Wrap(err, apperrors.ErrCodeModelRateLimit, "gemini quota exceeded").WithRetryable(true)
	case apiErr.Code >= 500:
		return apperrors.Wrap(err, apperrors.ErrCodeModelUnavailable, "gemini unavailable").WithRetryable(true)
	default:
		return apperrors.Wrap(err, apperrors.ErrCodeModelAPIError, "gemini request rejected").
			WithContext("status", apiErr.Status)
	}
}
