package contextbuilder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/fundlens/internal/models"
)

func TestComputeAttribution(t *testing.T) {
	holdings := testHoldings().Holdings
	quotes := map[string]models.Quote{
		"600519": {Ticker: "600519", ChangePct: 4.0},
		"300750": {Ticker: "300750", ChangePct: -3.0},
	}
	sectors := []models.SectorPerformance{
		{Name: "酿酒", ChangePct: 1.0},
		{Name: "电池", ChangePct: -0.5},
	}
	nav := &models.NAV{NAVPoint: models.NAVPoint{ChangePct: 0.8}}

	attr := ComputeAttribution(holdings, quotes, sectors, nil, nav, 2.0)

	require.Len(t, attr.Rows, 2, "unquoted holding skipped")
	moutai := attr.Rows[0]
	assert.Equal(t, "sector", moutai.SectorSource, "酿酒行业 matches 酿酒 after suffix trim")
	assert.InDelta(t, 3.0, moutai.Deviation, 1e-9)
	assert.InDelta(t, 0.1, moutai.Beta, 1e-9)
	assert.InDelta(t, 0.3, moutai.Alpha, 1e-9)
	assert.InDelta(t, 0.4, moutai.Contribution, 1e-9)
	assert.True(t, moutai.Culprit)

	catl := attr.Rows[1]
	assert.InDelta(t, -2.5, catl.Deviation, 1e-9)
	assert.InDelta(t, -0.15, catl.Contribution, 1e-9)
	assert.True(t, catl.Culprit)

	assert.InDelta(t, 15.0, attr.Coverage, 1e-9)
	assert.InDelta(t, 0.25, attr.Total, 1e-9)
	assert.InDelta(t, attr.Beta+attr.Alpha, attr.Total, 1e-9)
	assert.True(t, attr.HasFundChange)
	assert.InDelta(t, 0.55, attr.Residual, 1e-9)
	assert.Len(t, attr.Culprits(), 2)
}

func TestComputeAttribution_StaleNAVAndNoReference(t *testing.T) {
	holdings := []models.HoldingSnapshot{{Ticker: "AAPL", Name: "Apple", Weight: 4}}
	quotes := map[string]models.Quote{"AAPL": {Ticker: "AAPL", ChangePct: 1.5, Sector: "Technology"}}
	nav := &models.NAV{NAVPoint: models.NAVPoint{ChangePct: 0.2}, Stale: true}

	attr := ComputeAttribution(holdings, quotes, nil, nil, nav, 2.0)

	require.Len(t, attr.Rows, 1)
	assert.Equal(t, "Technology", attr.Rows[0].Sector, "sector taken from quote")
	assert.Equal(t, "", attr.Rows[0].SectorSource)
	assert.False(t, attr.Rows[0].Culprit)
	assert.False(t, attr.HasFundChange, "stale nav is not today's move")
}

func TestMatchSector(t *testing.T) {
	sectors := []models.SectorPerformance{{Name: "半导体"}, {Name: "酿酒行业"}}
	tests := []struct {
		name  string
		query string
		want  string
		found bool
	}{
		{"exact", "半导体", "半导体", true},
		{"suffix on query", "半导体板块", "半导体", true},
		{"suffix on board", "酿酒", "酿酒行业", true},
		{"missing", "银行", "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := matchSector(sectors, tt.query)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got.Name)
		})
	}
}
