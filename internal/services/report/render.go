package report

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ternarybob/fundlens/internal/models"
)

// frontMatter is the machine-readable report header.
type frontMatter struct {
	FundCode        string   `yaml:"fund_code"`
	FundName        string   `yaml:"fund_name"`
	Date            string   `yaml:"date"`
	Mode            string   `yaml:"mode"`
	Sentiment       *int     `yaml:"sentiment"` // null when not extractable
	GeneratedAt     string   `yaml:"generated_at"`
	Sections        []string `yaml:"sections"`
	DroppedSections []string `yaml:"dropped_sections"`
	OmittedSections []string `yaml:"omitted_sections,omitempty"`
	StaleData       bool     `yaml:"stale_data"`
	HoldingsKind    string   `yaml:"holdings_kind"`
	HoldingsPeriod  string   `yaml:"holdings_period,omitempty"`
	Notes           []string `yaml:"notes,omitempty"`
	RunID           string   `yaml:"run_id"`
}

// Render produces the markdown document for a generated report.
func Render(result *models.ReportResult, rc *models.ReportContext) (string, error) {
	fm := frontMatter{
		FundCode:        result.FundCode,
		FundName:        result.FundName,
		Date:            result.Date.Format("2006-01-02"),
		Mode:            string(result.Type),
		Sentiment:       result.Sentiment,
		GeneratedAt:     result.GeneratedAt.Format("2006-01-02T15:04:05Z07:00"),
		Sections:        nonNil(result.Sections),
		DroppedSections: nonNil(result.Dropped),
		OmittedSections: result.Omitted,
		StaleData:       result.StaleData,
		RunID:           result.RunID,
	}
	if rc != nil {
		fm.HoldingsKind = string(rc.HoldingsKind)
		fm.HoldingsPeriod = rc.HoldingsPeriod.String()
		fm.Notes = rc.Notes
	}

	header, err := yaml.Marshal(fm)
	if err != nil {
		return "", fmt.Errorf("failed to marshal front matter: %w", err)
	}

	title := result.Type.Title()

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(header)
	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "# %s %s\n\n", result.FundName, title)

	fmt.Fprintf(&b, "## %s\n\n", title)
	if result.StaleData {
		b.WriteString(staleNotice(rc))
	}
	if rc != nil {
		if digest := rc.Render(); digest != "" {
			b.WriteString(digest + "\n\n")
		}
	}

	b.WriteString("## AI Insights\n\n")
	b.WriteString(strings.TrimSpace(result.RawOutput) + "\n\n")

	b.WriteString("## Sources\n")
	if rc != nil {
		b.WriteString(formatSources(rc.Sources))
	}
	return b.String(), nil
}

func staleNotice(rc *models.ReportContext) string {
	if rc != nil && !rc.HoldingsPeriod.IsZero() && rc.HoldingsKind != models.HoldingsCurrent {
		return fmt.Sprintf("> ⚠️ 部分数据非最新：持仓数据来自 %s 披露期。\n\n", rc.HoldingsPeriod)
	}
	return "> ⚠️ 部分数据非最新。\n\n"
}

// formatSources groups sources by category in first-seen order.
func formatSources(sources []models.Source) string {
	if len(sources) == 0 {
		return "\n暂无\n"
	}

	var order []string
	groups := make(map[string][]models.Source)
	for _, s := range sources {
		if _, ok := groups[s.Category]; !ok {
			order = append(order, s.Category)
		}
		groups[s.Category] = append(groups[s.Category], s)
	}

	var b strings.Builder
	for _, category := range order {
		fmt.Fprintf(&b, "\n### %s\n", category)
		for i, s := range groups[category] {
			if s.URL != "" {
				fmt.Fprintf(&b, "%d. [%s](%s)\n", i+1, s.Title, s.URL)
			} else {
				fmt.Fprintf(&b, "%d. %s\n", i+1, s.Title)
			}
		}
	}
	return b.String()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
