package models

import "time"

// CollectedData is everything fetched for one fund before assembly.
// Pointer fields are nil when the data could not be obtained.
type CollectedData struct {
	Fund FundSpec
	Type ReportType
	Date time.Time

	Holdings    HoldingsResult
	Macro       *MarketSnapshot
	Market      *MarketSnapshot
	NAV         *NAV
	Quotes      map[string]Quote
	Sectors     []SectorPerformance
	Flow        *CapitalFlow
	SectorFlows []SectorFlow
	Attribution *Attribution
	News        []NewsItem

	// Notes record degraded data sources, for report metadata.
	Notes []string
}

// Note appends a degradation note.
func (d *CollectedData) Note(msg string) {
	d.Notes = append(d.Notes, msg)
}

// HoldingAttribution splits one holding's contribution to the fund's daily
// return into a sector (beta) and stock-specific (alpha) part, in
// percentage points of fund NAV.
type HoldingAttribution struct {
	Ticker          string
	Name            string
	Sector          string
	SectorSource    string // "sector", "benchmark" or "" when unknown
	Weight          float64
	ChangePct       float64
	SectorChangePct float64
	Deviation       float64 // ChangePct - SectorChangePct
	Beta            float64
	Alpha           float64
	Contribution    float64
	Culprit         bool
}

// Attribution aggregates holding attributions against the fund's NAV move.
type Attribution struct {
	Rows          []HoldingAttribution
	Coverage      float64 // summed weight of quoted holdings, percent
	Beta          float64
	Alpha         float64
	Total         float64
	FundChangePct float64
	HasFundChange bool
	Residual      float64 // FundChangePct - Total, when HasFundChange
}

// Culprits returns the rows whose deviation exceeded the threshold.
func (a *Attribution) Culprits() []HoldingAttribution {
	if a == nil {
		return nil
	}
	var out []HoldingAttribution
	for _, r := range a.Rows {
		if r.Culprit {
			out = append(out, r)
		}
	}
	return out
}
