package contextbuilder

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/fundlens/internal/interfaces"
	"github.com/ternarybob/fundlens/internal/models"
	"github.com/ternarybob/fundlens/internal/services/search"
)

type mockMarket struct {
	indicators map[string]models.Indicator
	nav        *models.NAV
	navErr     error
	quotes     map[string]models.Quote
	sectors    []models.SectorPerformance
	flow       *models.CapitalFlow
	funds      []models.SectorFlow
	snapshots  [][]string
}

func (m *mockMarket) Holdings(ctx context.Context, code string, p models.Period) models.HoldingsResult {
	return models.HoldingsResult{Kind: models.NoHoldingsAvailable}
}

func (m *mockMarket) MarketSnapshot(ctx context.Context, keys []string) *models.MarketSnapshot {
	m.snapshots = append(m.snapshots, keys)
	snap := models.NewMarketSnapshot(time.Date(2024, 6, 28, 8, 0, 0, 0, time.UTC))
	for _, k := range keys {
		if ind, ok := m.indicators[k]; ok {
			snap.Put(ind)
		} else {
			snap.Fail(k)
		}
	}
	return snap
}

func (m *mockMarket) NAV(ctx context.Context, code string, date time.Time) (*models.NAV, error) {
	return m.nav, m.navErr
}

func (m *mockMarket) Quotes(ctx context.Context, tickers []string) (map[string]models.Quote, error) {
	return m.quotes, nil
}

func (m *mockMarket) SectorBoards(ctx context.Context, limit int) ([]models.SectorPerformance, error) {
	if m.sectors == nil {
		return nil, fmt.Errorf("boards down")
	}
	return m.sectors, nil
}

func (m *mockMarket) CapitalFlow(ctx context.Context, asOf time.Time) (*models.CapitalFlow, error) {
	if m.flow == nil {
		return nil, fmt.Errorf("flow down")
	}
	return m.flow, nil
}

func (m *mockMarket) SectorFundFlow(ctx context.Context, limit int) ([]models.SectorFlow, error) {
	if m.funds == nil {
		return nil, fmt.Errorf("sector flow down")
	}
	return m.funds, nil
}

type mockMapper struct {
	result    models.HoldingsResult
	requested []models.Period
}

func (m *mockMapper) Resolve(ctx context.Context, fund models.FundSpec, p models.Period) models.HoldingsResult {
	m.requested = append(m.requested, p)
	return m.result
}

func (m *mockMapper) SectorsOf(holdings []models.HoldingSnapshot) []string {
	seen := map[string]bool{}
	var out []string
	for _, h := range holdings {
		if h.Sector != "" && !seen[h.Sector] {
			seen[h.Sector] = true
			out = append(out, h.Sector)
		}
	}
	sort.Strings(out)
	return out
}

type fakeStream struct {
	items []models.NewsItem
	pos   int
	err   error
}

func (s *fakeStream) Next() bool {
	if s.pos >= len(s.items) {
		return false
	}
	s.pos++
	return true
}

func (s *fakeStream) Item() models.NewsItem { return s.items[s.pos-1] }
func (s *fakeStream) Err() error            { return s.err }

type mockSearch struct {
	queries []string
	fail    bool
	perHit  int
}

func (m *mockSearch) Search(ctx context.Context, query string, recency time.Duration, maxResults int) interfaces.NewsStream {
	m.queries = append(m.queries, query)
	if m.fail {
		return &fakeStream{err: fmt.Errorf("%w: mock: timeout", search.ErrSearchUnavailable)}
	}
	n := m.perHit
	if n == 0 {
		n = 1
	}
	var items []models.NewsItem
	for i := 1; i <= n; i++ {
		items = append(items, models.NewsItem{
			Query: query,
			Title: fmt.Sprintf("%s #%d", query, i),
			URL:   fmt.Sprintf("https://news.test/%s/%d", query, i),
			Rank:  i,
		})
	}
	return &fakeStream{items: items}
}
