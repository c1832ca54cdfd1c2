package models

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// FundSpec describes a fund under coverage. Loaded once per run from the
// fund list file and never mutated afterwards.
type FundSpec struct {
	Code          string          `json:"code" yaml:"code" toml:"code" validate:"required,alphanum"`
	Name          string          `json:"name" yaml:"name" toml:"name" validate:"required"`
	Strategy      string          `json:"strategy" yaml:"strategy" toml:"strategy"`
	CoreSectors   []string        `json:"core_sectors" yaml:"core_sectors" toml:"core_sectors"`
	HoldingsCache []CachedHolding `json:"holdings_cache" yaml:"holdings_cache" toml:"holdings_cache" validate:"dive"`
}

// CachedHolding is a statically configured holding used when no live
// holdings data can be obtained.
type CachedHolding struct {
	Ticker string  `json:"ticker" yaml:"ticker" toml:"ticker" validate:"required"`
	Name   string  `json:"name,omitempty" yaml:"name,omitempty" toml:"name"`
	Weight float64 `json:"weight,omitempty" yaml:"weight,omitempty" toml:"weight" validate:"gte=0,lte=100"`
	Sector string  `json:"sector,omitempty" yaml:"sector,omitempty" toml:"sector"`
}

// HasCoreSector reports whether sector is one of the fund's core sectors.
func (f *FundSpec) HasCoreSector(sector string) bool {
	for _, s := range f.CoreSectors {
		if s == sector {
			return true
		}
	}
	return false
}

// UnmarshalJSON accepts either a bare ticker string or a full object.
func (h *CachedHolding) UnmarshalJSON(data []byte) error {
	var ticker string
	if err := json.Unmarshal(data, &ticker); err == nil {
		*h = CachedHolding{Ticker: ticker}
		return nil
	}
	type plain CachedHolding
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*h = CachedHolding(p)
	return nil
}

// UnmarshalYAML accepts either a bare ticker scalar or a mapping.
func (h *CachedHolding) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*h = CachedHolding{Ticker: node.Value}
		return nil
	}
	type plain CachedHolding
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*h = CachedHolding(p)
	return nil
}
