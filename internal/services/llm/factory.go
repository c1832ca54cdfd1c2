package llm

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fundlens/internal/common"
	"github.com/ternarybob/fundlens/internal/interfaces"
)

// NewBackend creates the backend selected by cfg.LLM.Provider. The choice
// is made once per process.
func NewBackend(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (interfaces.LLMBackend, error) {
	switch cfg.LLM.Provider {
	case common.LLMProviderGemini, "":
		return NewGeminiBackend(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.Temperature, cfg.Gemini.BaseURL, logger)
	case common.LLMProviderOpenAI:
		return NewOpenAIBackend(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model, cfg.OpenAI.Temperature, logger)
	case common.LLMProviderClaude:
		return NewClaudeBackend(cfg.Claude.APIKey, cfg.Claude.Model, cfg.Claude.MaxTokens, cfg.Claude.Temperature, cfg.Claude.BaseURL, logger)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.LLM.Provider)
	}
}

// NewGatewayFromConfig creates the configured backend wrapped in a Gateway.
func NewGatewayFromConfig(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (*Gateway, error) {
	backend, err := NewBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	policy := NewDefaultRetryPolicy()
	if cfg.LLM.MaxRetries >= 0 {
		policy.MaxRetries = cfg.LLM.MaxRetries
	}
	policy.InitialBackoff = common.ParseDuration(cfg.LLM.BaseBackoff, DefaultInitialBackoff)

	logger.Info().
		Str("backend", backend.Name()).
		Int("max_retries", policy.MaxRetries).
		Msg("LLM gateway initialised")

	return NewGateway(backend, logger,
		WithRetryPolicy(policy),
		WithTimeout(common.ParseDuration(cfg.Pipeline.LLMTimeout, DefaultTimeout)),
	), nil
}
