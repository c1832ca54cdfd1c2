// Package contextbuilder gathers market data, holdings and news for a fund
// and assembles them into a size-bounded prompt context.
package contextbuilder

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fundlens/internal/interfaces"
	"github.com/ternarybob/fundlens/internal/models"
	"github.com/ternarybob/fundlens/internal/services/search"
)

// Indicator sets.
var (
	MacroIndicators = []string{"dji", "ndx", "spx", "usdcnh", "a50"}
	PostIndicators  = []string{"sse", "chinext", "csi300"}
)

const (
	DefaultBudget             = 24000
	DefaultDeviationThreshold = 2.0
	DefaultNewsRecency        = 24 * time.Hour
	DefaultMaxResults         = 3
	DefaultDataTimeout        = 30 * time.Second

	sectorBoardLimit = 100
	sectorFlowLimit  = 10
)

// Options tune collection and assembly.
type Options struct {
	Budget             int
	DeviationThreshold float64
	NewsRecency        time.Duration
	MaxResults         int
	DataTimeout        time.Duration

	// HoldingsPeriod pins the requested disclosure quarter. Zero requests
	// the latest quarter disclosed before the analysis date.
	HoldingsPeriod models.Period
}

// Builder implements interfaces.ContextBuilder.
type Builder struct {
	market interfaces.MarketDataService
	mapper interfaces.HoldingsMapper
	search interfaces.SearchService
	opts   Options
	logger arbor.ILogger
}

var _ interfaces.ContextBuilder = (*Builder)(nil)

// NewBuilder creates a context builder.
func NewBuilder(
	market interfaces.MarketDataService,
	mapper interfaces.HoldingsMapper,
	searchService interfaces.SearchService,
	opts Options,
	logger arbor.ILogger,
) *Builder {
	if opts.Budget <= 0 {
		opts.Budget = DefaultBudget
	}
	if opts.DeviationThreshold <= 0 {
		opts.DeviationThreshold = DefaultDeviationThreshold
	}
	if opts.NewsRecency <= 0 {
		opts.NewsRecency = DefaultNewsRecency
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	if opts.DataTimeout <= 0 {
		opts.DataTimeout = DefaultDataTimeout
	}
	return &Builder{
		market: market,
		mapper: mapper,
		search: searchService,
		opts:   opts,
		logger: logger,
	}
}

// Collect fetches every input for the report. Individual source failures
// are recorded as notes; only cancellation of ctx is returned as an error.
// Nothing is memoised: each call performs fresh fetches.
func (b *Builder) Collect(ctx context.Context, fund models.FundSpec, reportType models.ReportType, date time.Time) (*models.CollectedData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data := &models.CollectedData{Fund: fund, Type: reportType, Date: date}

	b.withTimeout(ctx, func(ctx context.Context) {
		data.Holdings = b.mapper.Resolve(ctx, fund, b.holdingsPeriod(date))
	})
	if !data.Holdings.Available() {
		data.Note("holdings unavailable: " + data.Holdings.Reason)
	}

	switch reportType {
	case models.ReportPre:
		b.collectPre(ctx, data)
	case models.ReportPost:
		b.collectPost(ctx, data)
	default:
		return nil, fmt.Errorf("unsupported report type %q", reportType)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.logger.Debug().
		Str("fund", fund.Code).
		Str("mode", string(reportType)).
		Str("holdings_kind", string(data.Holdings.Kind)).
		Int("news", len(data.News)).
		Int("notes", len(data.Notes)).
		Msg("Data collected")
	return data, nil
}

func (b *Builder) holdingsPeriod(date time.Time) models.Period {
	if !b.opts.HoldingsPeriod.IsZero() {
		return b.opts.HoldingsPeriod
	}
	return models.LatestDisclosedPeriod(date)
}

func (b *Builder) collectPre(ctx context.Context, data *models.CollectedData) {
	b.withTimeout(ctx, func(ctx context.Context) {
		data.Macro = b.market.MarketSnapshot(ctx, MacroIndicators)
	})
	if data.Macro.Empty() {
		data.Note("macro indicators unavailable")
	}

	b.collectBoards(ctx, data)

	var queries []newsQuery
	for _, h := range data.Holdings.Holdings {
		queries = append(queries, newsQuery{text: displayName(h) + " 新闻", topic: models.TopicHolding})
	}
	b.collectNews(ctx, data, queries)
}

func (b *Builder) collectPost(ctx context.Context, data *models.CollectedData) {
	var navErr error
	b.withTimeout(ctx, func(ctx context.Context) {
		data.NAV, navErr = b.market.NAV(ctx, data.Fund.Code, data.Date)
	})
	switch {
	case navErr != nil:
		data.Note("nav unavailable: " + navErr.Error())
	case data.NAV == nil:
		data.Note("nav not published")
	case data.NAV.Stale:
		data.Note("nav for " + data.Date.Format("2006-01-02") + " not yet published")
	}

	b.withTimeout(ctx, func(ctx context.Context) {
		data.Market = b.market.MarketSnapshot(ctx, PostIndicators)
	})
	if data.Market.Empty() {
		data.Note("market indices unavailable")
	}

	if len(data.Holdings.Holdings) > 0 {
		tickers := make([]string, 0, len(data.Holdings.Holdings))
		for _, h := range data.Holdings.Holdings {
			tickers = append(tickers, h.Ticker)
		}
		var err error
		b.withTimeout(ctx, func(ctx context.Context) {
			data.Quotes, err = b.market.Quotes(ctx, tickers)
		})
		if err != nil {
			data.Note("holding quotes unavailable")
			b.logger.Warn().Err(err).Str("fund", data.Fund.Code).Msg("Holding quotes unavailable")
		}
	}

	b.collectBoards(ctx, data)

	data.Attribution = ComputeAttribution(data.Holdings.Holdings, data.Quotes, data.Sectors,
		benchmark(data.Market), data.NAV, b.opts.DeviationThreshold)

	queries := []newsQuery{{text: data.Fund.Name + " 今日 涨跌 原因", topic: models.TopicFund}}
	for _, row := range data.Attribution.Culprits() {
		queries = append(queries, newsQuery{text: row.Name + " 今日 异动 原因", topic: models.TopicHolding})
	}
	b.collectNews(ctx, data, queries)
}

func (b *Builder) collectBoards(ctx context.Context, data *models.CollectedData) {
	var err error
	b.withTimeout(ctx, func(ctx context.Context) {
		data.Sectors, err = b.market.SectorBoards(ctx, sectorBoardLimit)
	})
	if err != nil {
		data.Note("sector boards unavailable")
		b.logger.Warn().Err(err).Str("fund", data.Fund.Code).Msg("Sector boards unavailable")
	}

	b.withTimeout(ctx, func(ctx context.Context) {
		data.Flow, err = b.market.CapitalFlow(ctx, data.Date)
	})
	if err != nil {
		data.Note("northbound flow unavailable")
		b.logger.Warn().Err(err).Str("fund", data.Fund.Code).Msg("Northbound flow unavailable")
	}

	b.withTimeout(ctx, func(ctx context.Context) {
		data.SectorFlows, err = b.market.SectorFundFlow(ctx, sectorFlowLimit)
	})
	if err != nil {
		data.Note("sector fund flow unavailable")
		b.logger.Warn().Err(err).Str("fund", data.Fund.Code).Msg("Sector fund flow unavailable")
	}
}

type newsQuery struct {
	text  string
	topic string
}

// collectNews runs queries in order. The first failed query skips the
// remaining ones for this fund.
func (b *Builder) collectNews(ctx context.Context, data *models.CollectedData, queries []newsQuery) {
	for _, q := range queries {
		if ctx.Err() != nil {
			return
		}

		var items []models.NewsItem
		var err error
		b.withTimeout(ctx, func(ctx context.Context) {
			items, err = search.Collect(b.search.Search(ctx, q.text, b.opts.NewsRecency, b.opts.MaxResults))
		})
		if err != nil {
			data.Note("search unavailable")
			b.logger.Warn().Err(err).Str("fund", data.Fund.Code).Msg("Search unavailable, skipping remaining queries")
			return
		}

		for _, item := range items {
			item.Topic = q.topic
			data.News = append(data.News, item)
		}
	}
}

func (b *Builder) withTimeout(ctx context.Context, fn func(ctx context.Context)) {
	tctx, cancel := context.WithTimeout(ctx, b.opts.DataTimeout)
	defer cancel()
	fn(tctx)
}

func benchmark(snap *models.MarketSnapshot) *models.Indicator {
	if snap == nil {
		return nil
	}
	for _, key := range []string{"csi300", "sse"} {
		if ind, ok := snap.Indicators[key]; ok {
			return &ind
		}
	}
	return nil
}

func displayName(h models.HoldingSnapshot) string {
	if h.Name != "" {
		return h.Name
	}
	return h.Ticker
}
