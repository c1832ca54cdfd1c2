package marketdata

import (
	"context"

	"github.com/ternarybob/fundlens/internal/models"
)

type mockFunds struct {
	holdingsFn func(ctx context.Context, code string, year int) (map[models.Period][]models.HoldingSnapshot, error)
	navFn      func(ctx context.Context, code string, limit int) ([]models.NAVPoint, error)
	yearCalls  []int
}

func (m *mockFunds) GetFundHoldingsByYear(ctx context.Context, code string, year int) (map[models.Period][]models.HoldingSnapshot, error) {
	m.yearCalls = append(m.yearCalls, year)
	return m.holdingsFn(ctx, code, year)
}

func (m *mockFunds) GetNAVHistory(ctx context.Context, code string, limit int) ([]models.NAVPoint, error) {
	return m.navFn(ctx, code, limit)
}

type mockIndicators struct {
	fn    func(key string) (models.Indicator, error)
	calls []string
}

func (m *mockIndicators) GetIndicator(ctx context.Context, key string) (models.Indicator, error) {
	m.calls = append(m.calls, key)
	return m.fn(key)
}

type mockBoards struct {
	sectors []models.SectorPerformance
	flow    []models.FlowDay
	funds   []models.SectorFlow
	err     error
}

func (m *mockBoards) GetSectorBoards(ctx context.Context, limit int) ([]models.SectorPerformance, error) {
	return m.sectors, m.err
}

func (m *mockBoards) GetNorthboundFlow(ctx context.Context, days int) ([]models.FlowDay, error) {
	return m.flow, m.err
}

func (m *mockBoards) GetSectorFundFlow(ctx context.Context, limit int) ([]models.SectorFlow, error) {
	return m.funds, m.err
}

type memoryCache struct {
	entries map[string]*models.HoldingsCacheEntry
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]*models.HoldingsCacheEntry)}
}

func (c *memoryCache) GetHoldings(ctx context.Context, code string, p models.Period) (*models.HoldingsCacheEntry, error) {
	return c.entries[models.HoldingsCacheKey(code, p)], nil
}

func (c *memoryCache) SaveHoldings(ctx context.Context, e *models.HoldingsCacheEntry) error {
	c.entries[models.HoldingsCacheKey(e.FundCode, e.Period)] = e
	return nil
}
