// Package marketdata implements the market data adapter: holdings with
// period fallback, per-indicator market snapshots, NAV lookup and the
// quote, board and flow figures used for post-market attribution.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fundlens/internal/common"
	"github.com/ternarybob/fundlens/internal/interfaces"
	"github.com/ternarybob/fundlens/internal/models"
)

// ErrDataUnavailable marks market data that could not be obtained.
var ErrDataUnavailable = errors.New("data unavailable")

const (
	// DefaultMaxPriorPeriods is how many quarters before the requested one are tried.
	DefaultMaxPriorPeriods = 4
	// DefaultStalenessWindow flags cached holdings older than roughly four months.
	DefaultStalenessWindow = 120 * 24 * time.Hour

	navHistoryDepth = 10
	flowDays        = 5
	flowFetchDays   = 10
	flowWindow      = 10 * 24 * time.Hour
)

// Sources are the upstream clients behind the adapter. Overseas and Cache
// are optional.
type Sources struct {
	Funds      interfaces.FundDataSource
	Quotes     interfaces.QuoteSource
	Boards     interfaces.BoardSource
	Indicators interfaces.IndicatorSource
	Overseas   interfaces.IndicatorSource
	Cache      interfaces.HoldingsCache
}

// Options tune fallback depth and staleness.
type Options struct {
	MaxPriorPeriods int
	StalenessWindow time.Duration
	Now             func() time.Time
}

// Service implements interfaces.MarketDataService.
type Service struct {
	src       Sources
	maxPrior  int
	staleness time.Duration
	now       func() time.Time
	logger    arbor.ILogger
}

var _ interfaces.MarketDataService = (*Service)(nil)

// NewService creates the market data adapter.
func NewService(logger arbor.ILogger, src Sources, opts Options) *Service {
	s := &Service{
		src:       src,
		maxPrior:  opts.MaxPriorPeriods,
		staleness: opts.StalenessWindow,
		now:       opts.Now,
		logger:    logger,
	}
	if s.maxPrior <= 0 {
		s.maxPrior = DefaultMaxPriorPeriods
	}
	if s.staleness <= 0 {
		s.staleness = DefaultStalenessWindow
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func unavailable(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrDataUnavailable, what, err)
}

// MarketSnapshot fetches each indicator on its own. For every key the
// overseas source is tried first when configured, then the default source.
func (s *Service) MarketSnapshot(ctx context.Context, keys []string) *models.MarketSnapshot {
	snap := models.NewMarketSnapshot(s.now())

	for _, key := range keys {
		ind, err := s.indicator(ctx, key)
		if err != nil {
			s.logger.Warn().Err(err).Str("indicator", key).Msg("Indicator unavailable")
			snap.Fail(key)
			continue
		}
		if ind.Timestamp.IsZero() {
			ind.Timestamp = snap.FetchedAt
		}
		snap.Put(ind)
	}

	return snap
}

func (s *Service) indicator(ctx context.Context, key string) (models.Indicator, error) {
	var chain []interfaces.IndicatorSource
	if s.src.Overseas != nil {
		chain = append(chain, s.src.Overseas)
	}
	if s.src.Indicators != nil {
		chain = append(chain, s.src.Indicators)
	}
	if len(chain) == 0 {
		return models.Indicator{}, fmt.Errorf("no indicator source configured")
	}

	var errs []error
	for _, src := range chain {
		ind, err := src.GetIndicator(ctx, key)
		if err == nil {
			ind.Key = key
			return ind, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return models.Indicator{}, errors.Join(errs...)
}

// NAV returns the NAV published on date, else the latest one before it
// marked stale, else nil.
func (s *Service) NAV(ctx context.Context, fundCode string, date time.Time) (*models.NAV, error) {
	history, err := s.src.Funds.GetNAVHistory(ctx, fundCode, navHistoryDepth)
	if err != nil {
		return nil, unavailable("nav "+fundCode, err)
	}

	day := date.Format("2006-01-02")
	for i, point := range history {
		pointDay := point.Date.Format("2006-01-02")
		if pointDay > day {
			continue
		}
		nav := &models.NAV{
			NAVPoint:  point,
			Requested: date,
			Stale:     pointDay != day,
			History:   history[i:],
		}
		if nav.Stale {
			s.logger.Warn().
				Str("fund", fundCode).
				Str("requested", day).
				Str("latest", pointDay).
				Msg("NAV not yet published, using latest available")
		}
		return nav, nil
	}

	return nil, nil
}

// Quotes returns latest quotes keyed by ticker.
func (s *Service) Quotes(ctx context.Context, tickers []string) (map[string]models.Quote, error) {
	quotes, err := s.src.Quotes.GetStockQuotes(ctx, tickers)
	if err != nil {
		return nil, unavailable("quotes", err)
	}
	return quotes, nil
}

// SectorBoards returns industry boards, best performer first.
func (s *Service) SectorBoards(ctx context.Context, limit int) ([]models.SectorPerformance, error) {
	boards, err := s.src.Boards.GetSectorBoards(ctx, limit)
	if err != nil {
		return nil, unavailable("sector boards", err)
	}
	return boards, nil
}

// SectorFundFlow returns industry boards by main-capital net inflow,
// largest first.
func (s *Service) SectorFundFlow(ctx context.Context, limit int) ([]models.SectorFlow, error) {
	flows, err := s.src.Boards.GetSectorFundFlow(ctx, limit)
	if err != nil {
		return nil, unavailable("sector fund flow", err)
	}
	if len(flows) == 0 {
		return nil, unavailable("sector fund flow", fmt.Errorf("empty response"))
	}
	return flows, nil
}

// CapitalFlow sums the last five northbound days at or before asOf.
// Days more than ten days before asOf are ignored.
func (s *Service) CapitalFlow(ctx context.Context, asOf time.Time) (*models.CapitalFlow, error) {
	days, err := s.src.Boards.GetNorthboundFlow(ctx, flowFetchDays)
	if err != nil {
		return nil, unavailable("northbound flow", err)
	}

	asOfDay := asOf.Format("2006-01-02")
	cutoff := asOf.Add(-flowWindow).Format("2006-01-02")

	flow := &models.CapitalFlow{}
	for _, d := range days {
		day := d.Date.Format("2006-01-02")
		if day > asOfDay || day < cutoff {
			continue
		}
		flow.Days = append(flow.Days, d)
		flow.Sum += d.Net
		if len(flow.Days) == flowDays {
			break
		}
	}

	if len(flow.Days) == 0 {
		return nil, unavailable("northbound flow", fmt.Errorf("no data within %s of %s", flowWindow, asOfDay))
	}
	return flow, nil
}

// Holdings walks back from period through up to maxPrior earlier quarters
// and returns the first non-empty disclosure. Live failures fall back to
// the cache for the same quarter. It never returns an error: exhausting
// every quarter yields NoHoldingsAvailable with the collected reasons.
func (s *Service) Holdings(ctx context.Context, fundCode string, period models.Period) models.HoldingsResult {
	pages := make(map[int]map[models.Period][]models.HoldingSnapshot)
	pageErrs := make(map[int]error)
	var reasons []string

	p := period
	for i := 0; i <= s.maxPrior; i++ {
		if err := ctx.Err(); err != nil {
			reasons = append(reasons, err.Error())
			break
		}

		page, ok := pages[p.Year]
		fetchErr := pageErrs[p.Year]
		if !ok && fetchErr == nil {
			page, fetchErr = s.src.Funds.GetFundHoldingsByYear(ctx, fundCode, p.Year)
			if fetchErr != nil {
				pageErrs[p.Year] = fetchErr
			} else {
				pages[p.Year] = page
			}
		}

		if fetchErr != nil {
			if res, ok := s.cachedHoldings(ctx, fundCode, period, p); ok {
				return res
			}
			reasons = append(reasons, fmt.Sprintf("%s: %v", p, fetchErr))
			p = p.Prev()
			continue
		}

		if holdings := page[p]; len(holdings) > 0 {
			s.saveHoldings(ctx, fundCode, p, holdings)

			res := models.HoldingsResult{
				Kind:      models.HoldingsCurrent,
				Requested: period,
				AsOf:      p,
				Holdings:  holdings,
			}
			if p != period {
				res.Kind = models.HoldingsPriorPeriod
				res.Stale = true
				s.logger.Warn().
					Str("fund", fundCode).
					Str("requested", period.String()).
					Str("as_of", p.String()).
					Msg("Current holdings not disclosed, using prior period")
			}
			return res
		}

		reasons = append(reasons, fmt.Sprintf("%s: not disclosed", p))
		p = p.Prev()
	}

	s.logger.Warn().
		Str("fund", fundCode).
		Str("requested", period.String()).
		Strs("reasons", reasons).
		Msg("No holdings available")

	return models.HoldingsResult{
		Kind:      models.NoHoldingsAvailable,
		Requested: period,
		Reason:    strings.Join(reasons, "; "),
	}
}

func (s *Service) cachedHoldings(ctx context.Context, fundCode string, requested, p models.Period) (models.HoldingsResult, bool) {
	if s.src.Cache == nil {
		return models.HoldingsResult{}, false
	}

	entry, err := s.src.Cache.GetHoldings(ctx, fundCode, p)
	if err != nil {
		s.logger.Warn().Err(err).Str("fund", fundCode).Str("period", p.String()).Msg("Holdings cache read failed")
		return models.HoldingsResult{}, false
	}
	if entry == nil || len(entry.Holdings) == 0 {
		return models.HoldingsResult{}, false
	}

	staleness := common.CheckCacheStaleness(entry.FetchedAt, s.now(), s.staleness)
	res := models.HoldingsResult{
		Kind:      models.HoldingsCachedPeriod,
		Requested: requested,
		AsOf:      p,
		Holdings:  entry.Holdings,
		Stale:     p != requested || staleness.IsStale,
	}
	if staleness.IsStale {
		res.Reason = staleness.Reason
	}

	s.logger.Warn().
		Str("fund", fundCode).
		Str("period", p.String()).
		Bool("stale", res.Stale).
		Msg("Live holdings unavailable, served from cache")
	return res, true
}

func (s *Service) saveHoldings(ctx context.Context, fundCode string, p models.Period, holdings []models.HoldingSnapshot) {
	if s.src.Cache == nil {
		return
	}
	err := s.src.Cache.SaveHoldings(ctx, &models.HoldingsCacheEntry{
		FundCode:  fundCode,
		Period:    p,
		Holdings:  holdings,
		FetchedAt: s.now(),
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("fund", fundCode).Str("period", p.String()).Msg("Holdings cache write failed")
	}
}
