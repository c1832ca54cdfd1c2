package contextbuilder

import (
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/ternarybob/fundlens/internal/models"
)

// dropPriority lists droppable sections, first dropped first. Holdings and
// attribution are mandatory and never dropped.
var dropPriority = []string{
	models.SectionNews,
	models.SectionSector,
	models.SectionCapitalFlow,
	models.SectionMacro,
	models.SectionMarket,
	models.SectionFundNAV,
}

const truncationMarker = "\n…（已截断）"

// Assemble serialises collected data into sections and enforces the size
// budget. It performs no I/O and is deterministic for identical input.
func (b *Builder) Assemble(data *models.CollectedData) *models.ReportContext {
	rc := &models.ReportContext{
		Fund:           data.Fund,
		Type:           data.Type,
		Date:           data.Date,
		Budget:         b.opts.Budget,
		HoldingsKind:   data.Holdings.Kind,
		HoldingsPeriod: data.Holdings.AsOf,
		StaleData:      data.Holdings.Stale || (data.NAV != nil && data.NAV.Stale),
		Notes:          append([]string(nil), data.Notes...),
	}

	news := append([]models.NewsItem(nil), data.News...)
	rc.Sections, rc.Omitted = buildSections(data, news, b.holdingSectors(data))

	news = enforceBudget(rc, news)

	for _, s := range rc.Sections {
		if s.Text != "" {
			rc.Included = append(rc.Included, s.Name)
		}
	}
	rc.Sources = collectSources(data, rc, news)

	if len(rc.Dropped) > 0 {
		b.logger.Info().
			Str("fund", data.Fund.Code).
			Strs("dropped", rc.Dropped).
			Int("budget", rc.Budget).
			Msg("Context over budget, sections dropped")
	}
	return rc
}

func (b *Builder) holdingSectors(data *models.CollectedData) []string {
	return b.mapper.SectorsOf(data.Holdings.Holdings)
}

// buildSections renders every section that has data, in report order, and
// lists the ones omitted for lack of data.
func buildSections(data *models.CollectedData, news []models.NewsItem, holdingSectors []string) ([]models.ContextSection, []string) {
	var sections []models.ContextSection
	var omitted []string

	add := func(name, title string, ok bool, mandatory bool, render func() string) {
		if !ok {
			omitted = append(omitted, name)
			return
		}
		sections = append(sections, models.ContextSection{
			Name:      name,
			Title:     title,
			Text:      render(),
			Mandatory: mandatory,
		})
	}

	post := data.Type == models.ReportPost

	if post {
		add(models.SectionFundNAV, "基金净值", data.NAV != nil, false, func() string {
			return formatNAV(data.NAV)
		})
		add(models.SectionMarket, "今日市场表现", !data.Market.Empty(), false, func() string {
			return formatIndicators("### 今日市场表现", data.Market, PostIndicators)
		})
	} else {
		add(models.SectionMacro, "隔夜外盘与宏观指标", !data.Macro.Empty(), false, func() string {
			return formatIndicators("### 隔夜外盘与宏观指标", data.Macro, MacroIndicators)
		})
	}

	add(models.SectionHoldings, "重仓股", true, true, func() string {
		return formatHoldings(data.Holdings, data.Quotes, post)
	})

	if post {
		add(models.SectionAttribution, "业绩归因", true, true, func() string {
			return formatAttribution(data.Attribution)
		})
	}

	add(models.SectionSector, "行业板块", len(data.Sectors) > 0, false, func() string {
		return formatSectors(data.Sectors, data.Fund, holdingSectors)
	})
	hasFlow := (data.Flow != nil && len(data.Flow.Days) > 0) || len(data.SectorFlows) > 0
	add(models.SectionCapitalFlow, "资金流向", hasFlow, false, func() string {
		return formatFlow(data.Flow, data.SectorFlows)
	})
	add(models.SectionNews, "相关新闻", len(news) > 0, false, func() string {
		return formatNews(news)
	})

	return sections, omitted
}

// enforceBudget shrinks rc until it fits its budget: lowest-ranked news
// items first, then whole sections in dropPriority order, then truncation
// of the largest remaining section. It returns the news items still present.
func enforceBudget(rc *models.ReportContext, news []models.NewsItem) []models.NewsItem {
	if rc.Size() <= rc.Budget {
		return news
	}

	if sec := rc.Section(models.SectionNews); sec != nil && len(news) > 1 {
		keep := make([]bool, len(news))
		for i := range keep {
			keep[i] = true
		}
		remaining := news
		for _, idx := range trimOrder(news) {
			if rc.Size() <= rc.Budget {
				break
			}
			keep[idx] = false
			next := filterNews(news, keep)
			if len(next) == 0 {
				break
			}
			remaining = next
			sec.Text = formatNews(remaining)
		}
		if len(remaining) < len(news) {
			rc.Notes = append(rc.Notes, fmt.Sprintf("news trimmed to %d of %d items", len(remaining), len(news)))
		}
		news = remaining
		if rc.Size() <= rc.Budget {
			return news
		}
	}

	for _, name := range dropPriority {
		if rc.Size() <= rc.Budget {
			break
		}
		if removeSection(rc, name) {
			rc.Dropped = append(rc.Dropped, name)
			if name == models.SectionNews {
				news = nil
			}
		}
	}

	for rc.Size() > rc.Budget {
		idx := largestSection(rc.Sections)
		if idx < 0 {
			break
		}
		sec := &rc.Sections[idx]
		over := rc.Size() - rc.Budget
		sec.Text = truncateText(sec.Text, utf8.RuneCountInString(sec.Text)-over)
		sec.Truncated = true
	}

	return news
}

// trimOrder returns news indices in removal order: highest rank number
// first, later items first among equal ranks.
func trimOrder(news []models.NewsItem) []int {
	order := make([]int, len(news))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := news[order[a]].Rank, news[order[b]].Rank
		if ra != rb {
			return ra > rb
		}
		return order[a] > order[b]
	})
	return order
}

func filterNews(news []models.NewsItem, keep []bool) []models.NewsItem {
	out := make([]models.NewsItem, 0, len(news))
	for i, item := range news {
		if keep[i] {
			out = append(out, item)
		}
	}
	return out
}

func removeSection(rc *models.ReportContext, name string) bool {
	for i, s := range rc.Sections {
		if s.Name == name && !s.Mandatory {
			rc.Sections = append(rc.Sections[:i], rc.Sections[i+1:]...)
			return true
		}
	}
	return false
}

// largestSection returns the index of the longest non-empty section, the
// earliest on ties, or -1.
func largestSection(sections []models.ContextSection) int {
	best, bestLen := -1, 0
	for i, s := range sections {
		if n := utf8.RuneCountInString(s.Text); n > bestLen {
			best, bestLen = i, n
		}
	}
	return best
}

// truncateText cuts text to at most n runes, ending with the truncation
// marker when there is room for it.
func truncateText(text string, n int) string {
	runes := []rune(text)
	if n >= len(runes) {
		return text
	}
	if n <= 0 {
		return ""
	}
	marker := []rune(truncationMarker)
	if n <= len(marker) {
		return string(runes[:n])
	}
	return string(runes[:n-len(marker)]) + truncationMarker
}
