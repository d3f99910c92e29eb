package model

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	apperrors "github.com/odvcencio/taskmate/pkg/errors"
)

// GuardConfig configures Guard.
type GuardConfig struct {
	// RequestsPerSecond limits calls to the provider; zero disables limiting.
	RequestsPerSecond float64
	Burst             int
	// Timeout bounds a single call; zero leaves ctx untouched.
	Timeout time.Duration
	Breaker CircuitBreakerConfig
	Logger  zerolog.Logger
}

// Guarded rate-limits, times out and circuit-breaks calls to another
// Generator, and translates failures into structured errors.
type Guarded struct {
	next    Generator
	limiter *rate.Limiter
	breaker *CircuitBreaker
	timeout time.Duration
	logger  zerolog.Logger
}

var _ Generator = (*Guarded)(nil)

// Guard wraps next.
func Guard(next Generator, cfg GuardConfig) *Guarded {
	g := &Guarded{
		next:    next,
		breaker: NewCircuitBreaker(cfg.Breaker),
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return g
}

// Breaker exposes the circuit breaker for diagnostics.
func (g *Guarded) Breaker() *CircuitBreaker {
	return g.breaker
}

func (g *Guarded) Generate(ctx context.Context, req Request) (*Response, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeModelRateLimit, "wait for model rate limit").
				WithRetryable(true)
		}
	}

	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	var (
		resp    *Response
		callErr error
	)
	err := g.breaker.Call(func() error {
		resp, callErr = g.next.Generate(callCtx, req)
		// A caller that went away says nothing about the provider's health.
		if errors.Is(callErr, context.Canceled) && ctx.Err() != nil {
			return nil
		}
		return callErr
	})
	if err == nil {
		err = callErr
	}
	if err != nil {
		g.logger.Warn().Err(err).Dur("elapsed", time.Since(start)).Msg("model call failed")
		return nil, classify(err)
	}

	g.logger.Debug().
		Dur("elapsed", time.Since(start)).
		Str("model", resp.Model).
		Int32("prompt_tokens", resp.Usage.PromptTokens).
		Int32("completion_tokens", resp.Usage.CompletionTokens).
		Msg("model call completed")
	return resp, nil
}

func classify(err error) error {
	if _, ok := apperrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, ErrCircuitOpen):
		return apperrors.Wrap(err, apperrors.ErrCodeModelUnavailable, "model temporarily unavailable").
			WithRetryable(true)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Wrap(err, apperrors.ErrCodeModelTimeout, "model call timed out").
			WithRetryable(true)
	default:
		return apperrors.Wrap(err, apperrors.ErrCodeModelAPIError, "model call failed")
	}
}
