// Package interfaces provides service interfaces for dependency injection.
package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/fundlens/internal/models"
)

// FundDataSource fetches fund-level disclosures from an upstream provider.
type FundDataSource interface {
	// GetFundHoldingsByYear returns every quarter disclosed in the given year.
	// An empty map with a nil error means nothing has been disclosed.
	GetFundHoldingsByYear(ctx context.Context, fundCode string, year int) (map[models.Period][]models.HoldingSnapshot, error)

	// GetNAVHistory returns up to limit NAV points, newest first.
	GetNAVHistory(ctx context.Context, fundCode string, limit int) ([]models.NAVPoint, error)
}

// IndicatorSource resolves a single named market indicator.
type IndicatorSource interface {
	GetIndicator(ctx context.Context, key string) (models.Indicator, error)
}

// QuoteSource fetches latest quotes keyed by the tickers passed in.
type QuoteSource interface {
	GetStockQuotes(ctx context.Context, tickers []string) (map[string]models.Quote, error)
}

// BoardSource provides market-wide sector and capital flow figures.
type BoardSource interface {
	GetSectorBoards(ctx context.Context, limit int) ([]models.SectorPerformance, error)
	GetNorthboundFlow(ctx context.Context, days int) ([]models.FlowDay, error)

	// GetSectorFundFlow returns industry boards by main-capital net inflow,
	// largest inflow first.
	GetSectorFundFlow(ctx context.Context, limit int) ([]models.SectorFlow, error)
}

// HoldingsCache persists holdings keyed by (fund code, period).
type HoldingsCache interface {
	// GetHoldings returns the cached entry or nil when absent.
	GetHoldings(ctx context.Context, fundCode string, period models.Period) (*models.HoldingsCacheEntry, error)
	SaveHoldings(ctx context.Context, entry *models.HoldingsCacheEntry) error
}

// MarketDataService is the market data adapter consumed by the context builder.
type MarketDataService interface {
	// Holdings never fails; exhausted fallbacks yield NoHoldingsAvailable.
	Holdings(ctx context.Context, fundCode string, period models.Period) models.HoldingsResult

	// MarketSnapshot fetches each key independently; failures are recorded
	// in the snapshot rather than returned.
	MarketSnapshot(ctx context.Context, keys []string) *models.MarketSnapshot

	// NAV returns nil, nil when no NAV exists on or before date.
	NAV(ctx context.Context, fundCode string, date time.Time) (*models.NAV, error)

	Quotes(ctx context.Context, tickers []string) (map[string]models.Quote, error)
	SectorBoards(ctx context.Context, limit int) ([]models.SectorPerformance, error)
	CapitalFlow(ctx context.Context, asOf time.Time) (*models.CapitalFlow, error)
	SectorFundFlow(ctx context.Context, limit int) ([]models.SectorFlow, error)
}

// HoldingsMapper resolves a fund to its ranked top holdings.
type HoldingsMapper interface {
	Resolve(ctx context.Context, fund models.FundSpec, period models.Period) models.HoldingsResult
	SectorsOf(holdings []models.HoldingSnapshot) []string
}
