// Package holdings resolves a fund to its ranked top holdings and their
// industry classification.
package holdings

import (
	"context"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fundlens/internal/interfaces"
	"github.com/ternarybob/fundlens/internal/models"
)

// DefaultMaxHoldings is the top-N cut applied by Resolve.
const DefaultMaxHoldings = 10

// Mapper implements interfaces.HoldingsMapper.
type Mapper struct {
	market      interfaces.MarketDataService
	maxHoldings int
	logger      arbor.ILogger
}

var _ interfaces.HoldingsMapper = (*Mapper)(nil)

// NewMapper creates a holdings mapper. maxHoldings <= 0 uses DefaultMaxHoldings.
func NewMapper(market interfaces.MarketDataService, maxHoldings int, logger arbor.ILogger) *Mapper {
	if maxHoldings <= 0 {
		maxHoldings = DefaultMaxHoldings
	}
	return &Mapper{market: market, maxHoldings: maxHoldings, logger: logger}
}

// Resolve returns the fund's top holdings by weight. When the adapter has
// nothing for any recent period the fund's configured holdings are used
// and the result is tagged CachedFallback. Holdings without a sector are
// classified from their quote's industry where possible.
func (m *Mapper) Resolve(ctx context.Context, fund models.FundSpec, period models.Period) models.HoldingsResult {
	res := m.market.Holdings(ctx, fund.Code, period)

	if !res.Available() {
		if len(fund.HoldingsCache) == 0 {
			return res
		}
		m.logger.Warn().
			Str("fund", fund.Code).
			Str("reason", res.Reason).
			Int("cached", len(fund.HoldingsCache)).
			Msg("Using configured holdings")

		res = models.HoldingsResult{
			Kind:      models.HoldingsCachedFallback,
			Requested: period,
			Holdings:  fromConfig(fund.HoldingsCache),
			Stale:     true,
			Reason:    res.Reason,
		}
	} else {
		res.Holdings = append([]models.HoldingSnapshot(nil), res.Holdings...)
	}

	Rank(res.Holdings)
	if len(res.Holdings) > m.maxHoldings {
		res.Holdings = res.Holdings[:m.maxHoldings]
	}
	m.classify(ctx, fund, res.Holdings)
	return res
}

// SectorsOf returns the distinct non-empty sectors of holdings, sorted.
func (m *Mapper) SectorsOf(holdings []models.HoldingSnapshot) []string {
	seen := make(map[string]bool)
	var sectors []string
	for _, h := range holdings {
		if h.Sector == "" || seen[h.Sector] {
			continue
		}
		seen[h.Sector] = true
		sectors = append(sectors, h.Sector)
	}
	sort.Strings(sectors)
	return sectors
}

// Rank orders holdings by weight descending, then ticker ascending.
func Rank(holdings []models.HoldingSnapshot) {
	sort.SliceStable(holdings, func(i, j int) bool {
		if holdings[i].Weight != holdings[j].Weight {
			return holdings[i].Weight > holdings[j].Weight
		}
		return holdings[i].Ticker < holdings[j].Ticker
	})
}

func (m *Mapper) classify(ctx context.Context, fund models.FundSpec, holdings []models.HoldingSnapshot) {
	var missing []string
	for _, h := range holdings {
		if h.Sector == "" {
			missing = append(missing, h.Ticker)
		}
	}
	if len(missing) == 0 {
		return
	}

	quotes, err := m.market.Quotes(ctx, missing)
	if err != nil {
		m.logger.Warn().Err(err).Str("fund", fund.Code).Msg("Sector classification unavailable")
		return
	}
	for i := range holdings {
		if holdings[i].Sector != "" {
			continue
		}
		if q, ok := quotes[holdings[i].Ticker]; ok {
			holdings[i].Sector = q.Sector
			if holdings[i].Name == "" {
				holdings[i].Name = q.Name
			}
		}
	}
}

func fromConfig(cached []models.CachedHolding) []models.HoldingSnapshot {
	out := make([]models.HoldingSnapshot, 0, len(cached))
	for _, c := range cached {
		out = append(out, models.HoldingSnapshot{
			Ticker: c.Ticker,
			Name:   c.Name,
			Weight: c.Weight,
			Sector: c.Sector,
		})
	}
	return out
}
