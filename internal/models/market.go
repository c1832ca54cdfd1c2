package models

import (
	"sort"
	"time"
)

// Indicator is a single named market figure.
type Indicator struct {
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	Value     float64   `json:"value"`
	Change    float64   `json:"change"`
	ChangePct float64   `json:"change_pct"`
	Timestamp time.Time `json:"timestamp"`
}

// SnapshotKind tags whether every requested indicator was fetched.
type SnapshotKind string

const (
	SnapshotComplete  SnapshotKind = "complete"
	PartialMarketData SnapshotKind = "partial_market_data"
)

// MarketSnapshot is a set of indicators. Partial snapshots are valid;
// FailedKeys lists the indicators that could not be fetched.
type MarketSnapshot struct {
	Kind       SnapshotKind         `json:"kind"`
	Indicators map[string]Indicator `json:"indicators"`
	FailedKeys []string             `json:"failed_keys,omitempty"`
	FetchedAt  time.Time            `json:"fetched_at"`
}

// NewMarketSnapshot returns an empty complete snapshot.
func NewMarketSnapshot(now time.Time) *MarketSnapshot {
	return &MarketSnapshot{
		Kind:       SnapshotComplete,
		Indicators: make(map[string]Indicator),
		FetchedAt:  now,
	}
}

// Put records a fetched indicator.
func (s *MarketSnapshot) Put(ind Indicator) {
	s.Indicators[ind.Key] = ind
}

// Fail records a key that could not be fetched and marks the snapshot partial.
func (s *MarketSnapshot) Fail(key string) {
	s.FailedKeys = append(s.FailedKeys, key)
	s.Kind = PartialMarketData
}

// Empty reports whether no indicator was fetched.
func (s *MarketSnapshot) Empty() bool {
	return s == nil || len(s.Indicators) == 0
}

// Ordered returns the indicators in the given key order, skipping missing ones.
func (s *MarketSnapshot) Ordered(keys []string) []Indicator {
	out := make([]Indicator, 0, len(keys))
	for _, k := range keys {
		if ind, ok := s.Indicators[k]; ok {
			out = append(out, ind)
		}
	}
	return out
}

// Quote is a security's latest price and daily change.
type Quote struct {
	Ticker    string    `json:"ticker"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	ChangePct float64   `json:"change_pct"`
	Sector    string    `json:"sector,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NAVPoint is one published net asset value.
type NAVPoint struct {
	Date        time.Time `json:"date"`
	Unit        float64   `json:"unit"`
	Accumulated float64   `json:"accumulated"`
	ChangePct   float64   `json:"change_pct"`
}

// NAV is a fund's NAV for a requested date plus recent history.
type NAV struct {
	NAVPoint
	Requested time.Time `json:"requested"`
	// Stale is set when no NAV was published for Requested and the latest
	// earlier value is returned instead.
	Stale   bool       `json:"stale"`
	History []NAVPoint `json:"history,omitempty"` // newest first
}

// SectorPerformance is one industry board's daily move.
type SectorPerformance struct {
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	ChangePct float64 `json:"change_pct"`
	Leader    string  `json:"leader,omitempty"`
}

// SortSectors orders sectors by change descending, then by name.
func SortSectors(sectors []SectorPerformance) {
	sort.SliceStable(sectors, func(i, j int) bool {
		if sectors[i].ChangePct != sectors[j].ChangePct {
			return sectors[i].ChangePct > sectors[j].ChangePct
		}
		return sectors[i].Name < sectors[j].Name
	})
}

// FlowDay is one day of cross-border net flow, in 100 million CNY.
type FlowDay struct {
	Date time.Time `json:"date"`
	Net  float64   `json:"net"`
}

// SectorFlow is one industry board's main-capital net inflow for the day,
// in 100 million CNY.
type SectorFlow struct {
	Code    string  `json:"code"`
	Name    string  `json:"name"`
	MainNet float64 `json:"main_net"`
}

// CapitalFlow summarises recent northbound flow.
type CapitalFlow struct {
	Days []FlowDay `json:"days"` // newest first
	Sum  float64   `json:"sum"`
}
