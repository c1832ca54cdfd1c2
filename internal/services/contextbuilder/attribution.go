package contextbuilder

import (
	"math"
	"strings"

	"github.com/ternarybob/fundlens/internal/models"
)

// ComputeAttribution decomposes each quoted holding's contribution into
// sector beta (weight x sector change) and stock alpha (weight x excess
// over sector). A holding's sector change comes from the matching industry
// board, else the benchmark index. Holdings whose excess move exceeds
// threshold are marked as culprits. Unquoted holdings are skipped.
func ComputeAttribution(
	holdings []models.HoldingSnapshot,
	quotes map[string]models.Quote,
	sectors []models.SectorPerformance,
	bench *models.Indicator,
	nav *models.NAV,
	threshold float64,
) *models.Attribution {
	attr := &models.Attribution{}

	for _, h := range holdings {
		q, ok := quotes[h.Ticker]
		if !ok {
			continue
		}

		row := models.HoldingAttribution{
			Ticker:    h.Ticker,
			Name:      displayName(h),
			Sector:    h.Sector,
			Weight:    h.Weight,
			ChangePct: q.ChangePct,
		}
		if row.Sector == "" {
			row.Sector = q.Sector
		}

		if sp, ok := matchSector(sectors, row.Sector); ok {
			row.SectorChangePct = sp.ChangePct
			row.SectorSource = "sector"
		} else if bench != nil {
			row.SectorChangePct = bench.ChangePct
			row.SectorSource = "benchmark"
		}

		w := h.Weight / 100
		row.Deviation = row.ChangePct - row.SectorChangePct
		row.Beta = w * row.SectorChangePct
		row.Alpha = w * row.Deviation
		row.Contribution = w * row.ChangePct
		row.Culprit = math.Abs(row.Deviation) > threshold

		attr.Rows = append(attr.Rows, row)
		attr.Coverage += h.Weight
		attr.Beta += row.Beta
		attr.Alpha += row.Alpha
		attr.Total += row.Contribution
	}

	if nav != nil && !nav.Stale {
		attr.FundChangePct = nav.ChangePct
		attr.HasFundChange = true
		attr.Residual = attr.FundChangePct - attr.Total
	}
	return attr
}

// matchSector finds a board by exact name, then by name with the
// "行业"/"板块" suffix removed on both sides.
func matchSector(sectors []models.SectorPerformance, name string) (models.SectorPerformance, bool) {
	if name == "" {
		return models.SectorPerformance{}, false
	}
	for _, s := range sectors {
		if s.Name == name {
			return s, true
		}
	}
	base := trimSectorSuffix(name)
	for _, s := range sectors {
		if trimSectorSuffix(s.Name) == base {
			return s, true
		}
	}
	return models.SectorPerformance{}, false
}

func trimSectorSuffix(name string) string {
	name = strings.TrimSpace(name)
	for _, suffix := range []string{"行业", "板块", "Ⅱ", "Ⅲ"} {
		name = strings.TrimSuffix(name, suffix)
	}
	return name
}
