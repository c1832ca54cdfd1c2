package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Period is a fiscal reporting quarter.
type Period struct {
	Year    int `json:"year" yaml:"year"`
	Quarter int `json:"quarter" yaml:"quarter"`
}

// PeriodOf returns the calendar quarter containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Quarter: (int(t.Month())-1)/3 + 1}
}

// LatestDisclosedPeriod returns the most recent quarter whose holdings
// disclosure could already exist at t (the quarter before the current one).
func LatestDisclosedPeriod(t time.Time) Period {
	return PeriodOf(t).Prev()
}

// Prev returns the immediately preceding quarter.
func (p Period) Prev() Period {
	if p.Quarter <= 1 {
		return Period{Year: p.Year - 1, Quarter: 4}
	}
	return Period{Year: p.Year, Quarter: p.Quarter - 1}
}

// IsZero reports whether the period is unset.
func (p Period) IsZero() bool {
	return p.Year == 0 && p.Quarter == 0
}

// String formats the period as "2024Q3".
func (p Period) String() string {
	if p.IsZero() {
		return ""
	}
	return fmt.Sprintf("%dQ%d", p.Year, p.Quarter)
}

// End returns the last calendar day of the quarter.
func (p Period) End() time.Time {
	month := time.Month(p.Quarter * 3)
	return time.Date(p.Year, month+1, 0, 0, 0, 0, 0, time.UTC)
}

// ParsePeriod parses "2024Q3" (case-insensitive).
func ParsePeriod(s string) (Period, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	idx := strings.Index(s, "Q")
	if idx <= 0 || idx == len(s)-1 {
		return Period{}, fmt.Errorf("invalid period %q", s)
	}
	year, err := strconv.Atoi(s[:idx])
	if err != nil {
		return Period{}, fmt.Errorf("invalid period year %q: %w", s, err)
	}
	quarter, err := strconv.Atoi(s[idx+1:])
	if err != nil || quarter < 1 || quarter > 4 {
		return Period{}, fmt.Errorf("invalid period quarter %q", s)
	}
	return Period{Year: year, Quarter: quarter}, nil
}

// HoldingSnapshot is one disclosed position of a fund.
type HoldingSnapshot struct {
	Ticker string  `json:"ticker" yaml:"ticker"`
	Name   string  `json:"name" yaml:"name"`
	Weight float64 `json:"weight" yaml:"weight"` // percent of NAV
	Sector string  `json:"sector,omitempty" yaml:"sector,omitempty"`
	AsOf   Period  `json:"as_of" yaml:"as_of"`
}

// HoldingsKind tags how a holdings result was obtained.
type HoldingsKind string

const (
	HoldingsCurrent        HoldingsKind = "current"
	HoldingsPriorPeriod    HoldingsKind = "prior_period"
	HoldingsCachedPeriod   HoldingsKind = "cached_period"
	HoldingsCachedFallback HoldingsKind = "cached_fallback"
	NoHoldingsAvailable    HoldingsKind = "no_holdings_available"
)

// HoldingsResult is the tagged outcome of a holdings lookup.
type HoldingsResult struct {
	Kind      HoldingsKind
	Requested Period
	AsOf      Period
	Holdings  []HoldingSnapshot
	// Stale is set when AsOf differs from Requested or the data came from a
	// cache entry older than the staleness window.
	Stale  bool
	Reason string
}

// Available reports whether any holdings were resolved.
func (r HoldingsResult) Available() bool {
	return r.Kind != NoHoldingsAvailable && len(r.Holdings) > 0
}

// CachedFallback reports whether the holdings came from static configuration.
func (r HoldingsResult) CachedFallback() bool {
	return r.Kind == HoldingsCachedFallback
}

// HoldingsCacheEntry is a persisted holdings disclosure.
type HoldingsCacheEntry struct {
	Key       string            `json:"key" badgerhold:"key"`
	FundCode  string            `json:"fund_code" badgerhold:"index"`
	Period    Period            `json:"period"`
	Holdings  []HoldingSnapshot `json:"holdings"`
	FetchedAt time.Time         `json:"fetched_at"`
}

// HoldingsCacheKey is the storage key for a (fund, period) pair.
func HoldingsCacheKey(fundCode string, period Period) string {
	return fundCode + "|" + period.String()
}
