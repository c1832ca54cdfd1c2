package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// ReportType selects the workflow.
type ReportType string

const (
	ReportPre  ReportType = "pre"
	ReportPost ReportType = "post"
)

// ParseReportType validates a mode string.
func ParseReportType(s string) (ReportType, error) {
	switch ReportType(s) {
	case ReportPre, ReportPost:
		return ReportType(s), nil
	}
	return "", fmt.Errorf("invalid report mode %q (want pre or post)", s)
}

// Title is the report's main section heading.
func (t ReportType) Title() string {
	if t == ReportPost {
		return "Afternoon Review"
	}
	return "Morning Brief"
}

// Section names used in ReportContext.
const (
	SectionMacro       = "macro"
	SectionMarket      = "market"
	SectionFundNAV     = "fund_nav"
	SectionHoldings    = "holdings"
	SectionAttribution = "attribution"
	SectionSector      = "sector"
	SectionCapitalFlow = "capital_flow"
	SectionNews        = "news"
)

// ContextSection is one serialised block of the prompt context.
type ContextSection struct {
	Name      string
	Title     string
	Text      string
	Mandatory bool
	Truncated bool
}

// ReportContext is the bounded prompt context handed to the LLM gateway.
type ReportContext struct {
	Fund     FundSpec
	Type     ReportType
	Date     time.Time
	Budget   int
	Sections []ContextSection
	Included []string
	Dropped  []string
	Omitted  []string // sections with no data
	Sources  []Source

	HoldingsKind   HoldingsKind
	HoldingsPeriod Period
	StaleData      bool
	Notes          []string
}

// Size is the rune count of the rendered context.
func (c *ReportContext) Size() int {
	return utf8.RuneCountInString(c.Render())
}

// Render joins the non-empty sections into the user message.
func (c *ReportContext) Render() string {
	var b strings.Builder
	for _, s := range c.Sections {
		if s.Text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(s.Text)
	}
	return b.String()
}

// Section returns the named section, or nil.
func (c *ReportContext) Section(name string) *ContextSection {
	for i := range c.Sections {
		if c.Sections[i].Name == name {
			return &c.Sections[i]
		}
	}
	return nil
}

// ReportResult is a generated report. Written once, never mutated.
type ReportResult struct {
	RunID       string
	Type        ReportType
	FundCode    string
	FundName    string
	Date        time.Time
	GeneratedAt time.Time
	RawOutput   string
	Sentiment   *int
	Sections    []string
	Dropped     []string
	Omitted     []string
	StaleData   bool
	Path        string
}

// Stage is a per-fund pipeline state.
type Stage string

const (
	StageCollectingData  Stage = "collecting_data"
	StageBuildingContext Stage = "building_context"
	StageGenerating      Stage = "generating"
	StageWriting         Stage = "writing"
	StageDone            Stage = "done"
	StageFailed          Stage = "failed"
)

// FailureRecord describes a fund whose report failed.
type FailureRecord struct {
	FundCode string
	Stage    Stage
	Reason   string
	Err      error
}

func (f *FailureRecord) Error() string {
	return fmt.Sprintf("fund %s failed at %s: %s", f.FundCode, f.Stage, f.Reason)
}

func (f *FailureRecord) Unwrap() error {
	return f.Err
}

// Outcome is either a result or a failure for one fund.
type Outcome struct {
	FundCode string
	Result   *ReportResult
	Failure  *FailureRecord
}

// OK reports whether the fund's report was produced.
func (o Outcome) OK() bool {
	return o.Result != nil && o.Failure == nil
}
