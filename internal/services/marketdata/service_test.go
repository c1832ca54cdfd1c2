package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fundlens/internal/models"
)

var (
	q1 = models.Period{Year: 2024, Quarter: 1}
	q2 = models.Period{Year: 2024, Quarter: 2}
	q3 = models.Period{Year: 2024, Quarter: 3}
	q4 = models.Period{Year: 2023, Quarter: 4}
)

func fixedNow() time.Time {
	return time.Date(2024, 10, 15, 10, 0, 0, 0, time.UTC)
}

func snapshot(ticker string, weight float64, p models.Period) models.HoldingSnapshot {
	return models.HoldingSnapshot{Ticker: ticker, Weight: weight, AsOf: p}
}

func TestHoldings_Fallback(t *testing.T) {
	tests := []struct {
		name      string
		pages     map[int]map[models.Period][]models.HoldingSnapshot
		wantKind  models.HoldingsKind
		wantAsOf  models.Period
		wantStale bool
		wantYears []int
	}{
		{
			name: "current period",
			pages: map[int]map[models.Period][]models.HoldingSnapshot{
				2024: {q3: {snapshot("600519", 9.9, q3)}},
			},
			wantKind:  models.HoldingsCurrent,
			wantAsOf:  q3,
			wantYears: []int{2024},
		},
		{
			name: "prior period in same year page",
			pages: map[int]map[models.Period][]models.HoldingSnapshot{
				2024: {q2: {snapshot("600519", 9.9, q2)}},
			},
			wantKind:  models.HoldingsPriorPeriod,
			wantAsOf:  q2,
			wantStale: true,
			wantYears: []int{2024},
		},
		{
			name: "crosses year boundary",
			pages: map[int]map[models.Period][]models.HoldingSnapshot{
				2024: {},
				2023: {q4: {snapshot("600519", 9.9, q4)}},
			},
			wantKind:  models.HoldingsPriorPeriod,
			wantAsOf:  q4,
			wantStale: true,
			wantYears: []int{2024, 2023},
		},
		{
			name:      "nothing disclosed",
			pages:     map[int]map[models.Period][]models.HoldingSnapshot{},
			wantKind:  models.NoHoldingsAvailable,
			wantYears: []int{2024, 2023},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			funds := &mockFunds{
				holdingsFn: func(ctx context.Context, code string, year int) (map[models.Period][]models.HoldingSnapshot, error) {
					return tt.pages[year], nil
				},
			}
			svc := NewService(arbor.NewLogger(), Sources{Funds: funds}, Options{Now: fixedNow})

			res := svc.Holdings(context.Background(), "005827", q3)
			assert.Equal(t, tt.wantKind, res.Kind)
			assert.Equal(t, tt.wantAsOf, res.AsOf)
			assert.Equal(t, tt.wantStale, res.Stale)
			assert.Equal(t, q3, res.Requested)
			assert.Equal(t, tt.wantYears, funds.yearCalls)
			if tt.wantKind == models.NoHoldingsAvailable {
				assert.False(t, res.Available())
				assert.Contains(t, res.Reason, "not disclosed")
			} else {
				assert.True(t, res.Available())
			}
		})
	}
}

func TestHoldings_StopsAfterMaxPriorPeriods(t *testing.T) {
	funds := &mockFunds{
		holdingsFn: func(ctx context.Context, code string, year int) (map[models.Period][]models.HoldingSnapshot, error) {
			// Only a disclosure five quarters back exists.
			if year == 2023 {
				return map[models.Period][]models.HoldingSnapshot{
					{Year: 2023, Quarter: 2}: {snapshot("600519", 9.9, models.Period{Year: 2023, Quarter: 2})},
				}, nil
			}
			return nil, nil
		},
	}
	svc := NewService(arbor.NewLogger(), Sources{Funds: funds}, Options{MaxPriorPeriods: 4, Now: fixedNow})

	res := svc.Holdings(context.Background(), "005827", q3)
	assert.Equal(t, models.NoHoldingsAvailable, res.Kind)
}

func TestHoldings_WritesThroughAndServesCacheOnError(t *testing.T) {
	cache := newMemoryCache()
	live := true
	funds := &mockFunds{
		holdingsFn: func(ctx context.Context, code string, year int) (map[models.Period][]models.HoldingSnapshot, error) {
			if !live {
				return nil, errors.New("connection reset")
			}
			return map[models.Period][]models.HoldingSnapshot{q2: {snapshot("600519", 9.9, q2)}}, nil
		},
	}

	now := fixedNow()
	svc := NewService(arbor.NewLogger(), Sources{Funds: funds, Cache: cache}, Options{
		Now:             func() time.Time { return now },
		StalenessWindow: 24 * time.Hour,
	})

	res := svc.Holdings(context.Background(), "005827", q2)
	require.Equal(t, models.HoldingsCurrent, res.Kind)
	require.Contains(t, cache.entries, "005827|2024Q2")

	live = false
	res = svc.Holdings(context.Background(), "005827", q2)
	assert.Equal(t, models.HoldingsCachedPeriod, res.Kind)
	assert.Equal(t, q2, res.AsOf)
	assert.False(t, res.Stale)

	now = now.Add(48 * time.Hour)
	res = svc.Holdings(context.Background(), "005827", q2)
	assert.Equal(t, models.HoldingsCachedPeriod, res.Kind)
	assert.True(t, res.Stale, "entry older than the window must be flagged")
	assert.Contains(t, res.Reason, "older than")
}

func TestHoldings_LiveErrorWithoutCache(t *testing.T) {
	funds := &mockFunds{
		holdingsFn: func(ctx context.Context, code string, year int) (map[models.Period][]models.HoldingSnapshot, error) {
			return nil, errors.New("timeout")
		},
	}
	svc := NewService(arbor.NewLogger(), Sources{Funds: funds}, Options{Now: fixedNow})

	res := svc.Holdings(context.Background(), "005827", q1)
	assert.Equal(t, models.NoHoldingsAvailable, res.Kind)
	assert.Contains(t, res.Reason, "timeout")
	// One page fetch per year despite several quarters per year.
	assert.Equal(t, []int{2024, 2023}, funds.yearCalls)
}

func TestMarketSnapshot_Partial(t *testing.T) {
	indicators := &mockIndicators{fn: func(key string) (models.Indicator, error) {
		if key == "a50" {
			return models.Indicator{}, errors.New("upstream 502")
		}
		return models.Indicator{Name: key, Value: 100}, nil
	}}
	svc := NewService(arbor.NewLogger(), Sources{Indicators: indicators}, Options{Now: fixedNow})

	snap := svc.MarketSnapshot(context.Background(), []string{"dji", "a50", "spx"})
	assert.Equal(t, models.PartialMarketData, snap.Kind)
	assert.Equal(t, []string{"a50"}, snap.FailedKeys)
	assert.Len(t, snap.Indicators, 2)
	assert.Equal(t, fixedNow(), snap.Indicators["dji"].Timestamp)
	assert.Equal(t, []string{"dji", "a50", "spx"}, indicators.calls)
}

func TestMarketSnapshot_OverseasFirst(t *testing.T) {
	overseas := &mockIndicators{fn: func(key string) (models.Indicator, error) {
		if key == "a50" {
			return models.Indicator{}, errors.New("unknown indicator")
		}
		return models.Indicator{Name: "overseas " + key}, nil
	}}
	domestic := &mockIndicators{fn: func(key string) (models.Indicator, error) {
		return models.Indicator{Name: "domestic " + key}, nil
	}}
	svc := NewService(arbor.NewLogger(), Sources{Indicators: domestic, Overseas: overseas}, Options{Now: fixedNow})

	snap := svc.MarketSnapshot(context.Background(), []string{"spx", "a50"})
	assert.Equal(t, models.SnapshotComplete, snap.Kind)
	assert.Equal(t, "overseas spx", snap.Indicators["spx"].Name)
	assert.Equal(t, "domestic a50", snap.Indicators["a50"].Name)
	assert.Equal(t, []string{"a50"}, domestic.calls)
}

func TestNAV(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC) }
	history := []models.NAVPoint{
		{Date: day(28), Unit: 2.01, ChangePct: 1.01},
		{Date: day(27), Unit: 1.99, ChangePct: -0.5},
	}
	funds := &mockFunds{navFn: func(ctx context.Context, code string, limit int) ([]models.NAVPoint, error) {
		return history, nil
	}}
	svc := NewService(arbor.NewLogger(), Sources{Funds: funds}, Options{Now: fixedNow})
	shanghai := time.FixedZone("CST", 8*3600)

	t.Run("published", func(t *testing.T) {
		nav, err := svc.NAV(context.Background(), "005827", time.Date(2024, 6, 28, 16, 0, 0, 0, shanghai))
		require.NoError(t, err)
		require.NotNil(t, nav)
		assert.False(t, nav.Stale)
		assert.InDelta(t, 2.01, nav.Unit, 1e-9)
		assert.Len(t, nav.History, 2)
	})

	t.Run("not yet published", func(t *testing.T) {
		nav, err := svc.NAV(context.Background(), "005827", time.Date(2024, 7, 1, 16, 0, 0, 0, shanghai))
		require.NoError(t, err)
		require.NotNil(t, nav)
		assert.True(t, nav.Stale)
		assert.Equal(t, day(28), nav.Date)
	})

	t.Run("before history", func(t *testing.T) {
		nav, err := svc.NAV(context.Background(), "005827", day(1))
		require.NoError(t, err)
		assert.Nil(t, nav)
	})

	t.Run("upstream error", func(t *testing.T) {
		failing := NewService(arbor.NewLogger(), Sources{Funds: &mockFunds{
			navFn: func(ctx context.Context, code string, limit int) ([]models.NAVPoint, error) {
				return nil, errors.New("boom")
			},
		}}, Options{})
		_, err := failing.NAV(context.Background(), "005827", day(28))
		assert.ErrorIs(t, err, ErrDataUnavailable)
	})
}

func TestCapitalFlow(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC) }
	boards := &mockBoards{flow: []models.FlowDay{
		{Date: day(29), Net: 99},
		{Date: day(28), Net: 10},
		{Date: day(27), Net: -5},
		{Date: day(26), Net: 2.5},
		{Date: day(25), Net: 1},
		{Date: day(24), Net: 1},
		{Date: day(21), Net: 1000},
	}}
	svc := NewService(arbor.NewLogger(), Sources{Boards: boards}, Options{})

	flow, err := svc.CapitalFlow(context.Background(), day(28))
	require.NoError(t, err)
	require.Len(t, flow.Days, 5)
	assert.Equal(t, day(28), flow.Days[0].Date)
	assert.InDelta(t, 9.5, flow.Sum, 1e-9)

	_, err = svc.CapitalFlow(context.Background(), time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestSectorFundFlow(t *testing.T) {
	tests := []struct {
		name    string
		boards  *mockBoards
		wantLen int
		wantErr bool
	}{
		{
			name: "passes through",
			boards: &mockBoards{funds: []models.SectorFlow{
				{Code: "BK0447", Name: "互联网服务", MainNet: 12.5},
				{Code: "BK0478", Name: "有色金属", MainNet: -3.2},
			}},
			wantLen: 2,
		},
		{name: "empty", boards: &mockBoards{}, wantErr: true},
		{name: "upstream error", boards: &mockBoards{err: errors.New("timeout")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(arbor.NewLogger(), Sources{Boards: tt.boards}, Options{})
			flows, err := svc.SectorFundFlow(context.Background(), 5)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrDataUnavailable)
				return
			}
			require.NoError(t, err)
			assert.Len(t, flows, tt.wantLen)
		})
	}
}
