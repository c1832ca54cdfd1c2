// Package llm provides the provider-agnostic report generation gateway and
// its Gemini, OpenAI-compatible and Claude backends.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fundlens/internal/interfaces"
	"github.com/ternarybob/fundlens/internal/models"
)

// DefaultTimeout bounds a single completion attempt.
const DefaultTimeout = 60 * time.Second

// Gateway retries a single backend according to a RetryPolicy and
// classifies its failures. It implements interfaces.LLMService.
type Gateway struct {
	backend interfaces.LLMBackend
	policy  *RetryPolicy
	timeout time.Duration
	sleep   SleepFunc
	rand    func() float64
	logger  arbor.ILogger
}

var _ interfaces.LLMService = (*Gateway)(nil)

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p *RetryPolicy) GatewayOption {
	return func(g *Gateway) {
		if p != nil {
			g.policy = p
		}
	}
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithSleep replaces the backoff wait, for tests.
func WithSleep(sleep SleepFunc) GatewayOption {
	return func(g *Gateway) {
		g.sleep = sleep
	}
}

// WithRand replaces the jitter source, for tests.
func WithRand(rnd func() float64) GatewayOption {
	return func(g *Gateway) {
		g.rand = rnd
	}
}

// NewGateway wraps backend with retry and error classification.
func NewGateway(backend interfaces.LLMBackend, logger arbor.ILogger, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		backend: backend,
		policy:  NewDefaultRetryPolicy(),
		timeout: DefaultTimeout,
		sleep:   sleepContext,
		rand:    defaultRand,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Backend returns the wrapped backend's name.
func (g *Gateway) Backend() string {
	return g.backend.Name()
}

// Generate renders rc and asks the backend for a completion. Auth and
// quota failures return immediately; transient failures are retried up to
// MaxRetries times. Exhaustion yields ErrLLMGenerationFailed.
func (g *Gateway) Generate(ctx context.Context, systemPrompt string, rc *models.ReportContext) (string, error) {
	if rc == nil {
		return "", fmt.Errorf("%w: no context", ErrLLMGenerationFailed)
	}
	userMessage := rc.Render()

	var lastErr error
	for attempt := 0; attempt <= g.policy.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		text, err := g.attempt(ctx, systemPrompt, userMessage)
		if err == nil {
			if attempt > 0 {
				g.logger.Info().
					Str("backend", g.backend.Name()).
					Int("attempts", attempt+1).
					Msg("LLM generation succeeded after retry")
			}
			return text, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !retryable(err) {
			g.logger.Error().
				Str("backend", g.backend.Name()).
				Err(err).
				Msg("LLM generation failed, not retrying")
			return "", err
		}
		if attempt == g.policy.MaxRetries {
			break
		}

		backoff := g.policy.withJitter(g.policy.CalculateBackoff(attempt, ExtractRetryDelay(err)), g.rand)

		g.logger.Warn().
			Str("backend", g.backend.Name()).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(err).
			Msg("Retrying LLM generation")

		if err := g.sleep(ctx, backoff); err != nil {
			return "", err
		}
	}

	return "", fmt.Errorf("%w after %d attempts: %w", ErrLLMGenerationFailed, g.policy.MaxRetries+1, lastErr)
}

func (g *Gateway) attempt(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	actx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, err := g.backend.Complete(actx, systemPrompt, userMessage)
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		// The attempt timed out but the caller is still waiting.
		return "", classified(errTransient, g.backend.Name(), err)
	}
	return text, err
}
