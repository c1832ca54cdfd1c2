package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fundlens/internal/common"
	"github.com/ternarybob/fundlens/internal/eastmoney"
	"github.com/ternarybob/fundlens/internal/eodhd"
	"github.com/ternarybob/fundlens/internal/funds"
	"github.com/ternarybob/fundlens/internal/httpclient"
	"github.com/ternarybob/fundlens/internal/interfaces"
	"github.com/ternarybob/fundlens/internal/models"
	"github.com/ternarybob/fundlens/internal/services/contextbuilder"
	"github.com/ternarybob/fundlens/internal/services/holdings"
	"github.com/ternarybob/fundlens/internal/services/llm"
	"github.com/ternarybob/fundlens/internal/services/mailer"
	"github.com/ternarybob/fundlens/internal/services/marketdata"
	"github.com/ternarybob/fundlens/internal/services/pipeline"
	"github.com/ternarybob/fundlens/internal/services/report"
	"github.com/ternarybob/fundlens/internal/services/search"
	"github.com/ternarybob/fundlens/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	Funds *funds.Registry

	// Storage
	HoldingsCache interfaces.HoldingsCache
	closeCache    func() error

	// Data services
	MarketData    *marketdata.Service
	Mapper        *holdings.Mapper
	SearchService *search.Service
	Builder       *contextbuilder.Builder

	// Generation and output
	LLMService *llm.Gateway
	Writer     *report.Writer
	Mailer     *mailer.Service

	Runner *pipeline.Runner
}

// New initializes the application with all dependencies
func New(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	registry, err := funds.LoadFile(cfg.Funds.File)
	if err != nil {
		return nil, fmt.Errorf("failed to load funds: %w", err)
	}
	app.Funds = registry

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := app.initServices(ctx); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	logger.Info().
		Int("funds", len(registry.All())).
		Str("llm", app.LLMService.Backend()).
		Str("output", cfg.Output.Dir).
		Bool("mailer", app.Mailer != nil).
		Msg("Application initialized")

	return app, nil
}

func (a *App) initStorage() error {
	cache, closeFn, err := storage.NewHoldingsCache(a.Logger, &a.Config.Cache)
	if err != nil {
		return err
	}
	a.HoldingsCache = cache
	a.closeCache = closeFn
	return nil
}

func (a *App) initServices(ctx context.Context) error {
	cfg := a.Config

	// 1. Upstream clients
	httpClient := httpclient.NewDefaultHTTPClient(common.ParseDuration(cfg.Market.Timeout, httpclient.DefaultTimeout))

	if cfg.Market.Provider != "" && cfg.Market.Provider != "eastmoney" {
		return fmt.Errorf("unsupported market provider: %s", cfg.Market.Provider)
	}
	em := eastmoney.NewClient(
		eastmoney.WithFundBaseURL(cfg.Market.FundBaseURL),
		eastmoney.WithNAVBaseURL(cfg.Market.NAVBaseURL),
		eastmoney.WithQuoteBaseURL(cfg.Market.QuoteBaseURL),
		eastmoney.WithHTTPClient(httpClient),
		eastmoney.WithRateLimit(cfg.Market.RateLimit),
		eastmoney.WithLogger(a.Logger),
	)

	sources := marketdata.Sources{
		Funds:      em,
		Quotes:     em,
		Boards:     em,
		Indicators: em,
	}
	if a.HoldingsCache != nil {
		sources.Cache = a.HoldingsCache
	}

	switch cfg.Market.OverseasProvider {
	case "", "eastmoney":
	case "eodhd":
		sources.Overseas = eodhd.NewClient(cfg.EODHD.APIKey,
			eodhd.WithBaseURL(cfg.EODHD.BaseURL),
			eodhd.WithHTTPClient(httpClient),
			eodhd.WithRateLimit(cfg.EODHD.RateLimit),
			eodhd.WithLogger(a.Logger),
		)
		a.Logger.Info().Msg("Overseas indicators served by EODHD")
	default:
		return fmt.Errorf("unsupported overseas provider: %s", cfg.Market.OverseasProvider)
	}

	// 2. Market data adapter and holdings mapper
	a.MarketData = marketdata.NewService(a.Logger, sources, marketdata.Options{
		MaxPriorPeriods: cfg.Market.MaxPriorPeriods,
		StalenessWindow: common.ParseDuration(cfg.Cache.StalenessWindow, marketdata.DefaultStalenessWindow),
	})
	a.Mapper = holdings.NewMapper(a.MarketData, cfg.Pipeline.MaxHoldings, a.Logger)

	// 3. Search
	searchService, err := search.NewServiceFromConfig(ctx, cfg, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize search: %w", err)
	}
	a.SearchService = searchService

	// 4. Context builder
	var period models.Period
	if cfg.Pipeline.HoldingsPeriod != "" {
		period, err = models.ParsePeriod(cfg.Pipeline.HoldingsPeriod)
		if err != nil {
			return fmt.Errorf("pipeline.holdings_period: %w", err)
		}
	}
	a.Builder = contextbuilder.NewBuilder(a.MarketData, a.Mapper, a.SearchService, contextbuilder.Options{
		Budget:             cfg.Pipeline.ContextBudget,
		DeviationThreshold: cfg.Pipeline.DeviationThreshold,
		NewsRecency:        common.ParseDuration(cfg.Search.Recency, contextbuilder.DefaultNewsRecency),
		MaxResults:         cfg.Search.MaxResults,
		DataTimeout:        common.ParseDuration(cfg.Pipeline.DataTimeout, contextbuilder.DefaultDataTimeout),
		HoldingsPeriod:     period,
	}, a.Logger)

	// 5. LLM gateway
	gateway, err := llm.NewGatewayFromConfig(ctx, cfg, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize llm: %w", err)
	}
	a.LLMService = gateway

	// 6. Output
	a.Writer = report.NewWriter(cfg.Output.Dir, a.Logger)

	var delivery interfaces.ReportDelivery
	if cfg.Mailer.Enabled {
		a.Mailer = mailer.NewService(cfg.Mailer, a.Logger)
		if !a.Mailer.IsConfigured() {
			return fmt.Errorf("mailer enabled but incomplete: host, credentials, from and to are required")
		}
		delivery = a.Mailer
	}

	// 7. Pipeline
	a.Runner = pipeline.NewRunner(a.Funds, a.Builder, a.LLMService, a.Writer, delivery, pipeline.Options{
		Concurrency:     cfg.Pipeline.Concurrency,
		Location:        cfg.Location(),
		MarketCloseHour: cfg.Pipeline.MarketCloseHour,
	}, a.Logger)

	return nil
}

// RunReport runs one batch, bounded by the configured run timeout.
func (a *App) RunReport(ctx context.Context, mode models.ReportType, codes []string) []models.Outcome {
	if d := common.ParseDuration(a.Config.Pipeline.RunTimeout, 0); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	start := time.Now()
	outcomes := a.Runner.RunReport(ctx, mode, codes)
	a.Logger.Debug().Dur("elapsed", time.Since(start)).Str("mode", string(mode)).Msg("Batch complete")
	return outcomes
}

// Close closes all application resources
func (a *App) Close() error {
	if a.closeCache != nil {
		if err := a.closeCache(); err != nil {
			return fmt.Errorf("failed to close cache: %w", err)
		}
		a.closeCache = nil
		a.Logger.Info().Msg("Holdings cache closed")
	}
	return nil
}
