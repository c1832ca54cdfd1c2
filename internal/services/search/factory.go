package search

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fundlens/internal/common"
	"github.com/ternarybob/fundlens/internal/interfaces"
)

// NewProvider creates the search provider selected by config.
func NewProvider(ctx context.Context, config *common.Config, logger arbor.ILogger) (interfaces.SearchProvider, error) {
	switch config.Search.Provider {
	case "", "tavily":
		return NewTavilyProvider(config.Search.APIKey, config.Search.BaseURL, logger), nil
	case "gemini":
		model := config.Gemini.SearchModel
		if model == "" {
			model = config.Gemini.Model
		}
		return NewGeminiProvider(ctx, config.Gemini.APIKey, config.Gemini.BaseURL, model, logger)
	case "rss":
		return NewRSSProvider(config.Search.RSSFeeds, logger), nil
	default:
		return nil, fmt.Errorf("unsupported search provider: %s", config.Search.Provider)
	}
}

// NewServiceFromConfig creates the provider and wraps it in a Service.
func NewServiceFromConfig(ctx context.Context, config *common.Config, logger arbor.ILogger) (*Service, error) {
	provider, err := NewProvider(ctx, config, logger)
	if err != nil {
		return nil, err
	}

	logger.Info().Str("provider", provider.Name()).Msg("Search provider initialized")

	return NewService(provider, logger, Options{
		MaxAttempts: config.Search.MaxAttempts,
		Timeout:     common.ParseDuration(config.Search.Timeout, DefaultTimeout),
	}), nil
}
