package contextbuilder

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/fundlens/internal/models"
)

func oversizedContext(budget int) (*models.ReportContext, []models.NewsItem) {
	var news []models.NewsItem
	for i := 1; i <= 6; i++ {
		news = append(news, models.NewsItem{
			Query:   "q",
			Title:   fmt.Sprintf("title-%d", i),
			Snippet: strings.Repeat("新", 80),
			Rank:    i,
		})
	}
	rc := &models.ReportContext{
		Budget: budget,
		Sections: []models.ContextSection{
			{Name: models.SectionFundNAV, Text: strings.Repeat("n", 300)},
			{Name: models.SectionMarket, Text: strings.Repeat("m", 300)},
			{Name: models.SectionHoldings, Text: strings.Repeat("h", 400), Mandatory: true},
			{Name: models.SectionAttribution, Text: strings.Repeat("a", 400), Mandatory: true},
			{Name: models.SectionSector, Text: strings.Repeat("s", 500)},
			{Name: models.SectionCapitalFlow, Text: strings.Repeat("c", 100)},
			{Name: models.SectionNews, Text: formatNews(news)},
		},
	}
	return rc, news
}

func TestEnforceBudget_AlwaysFits(t *testing.T) {
	for _, budget := range []int{0, 1, 5, 10, 50, 200, 801, 1000, 1500, 2000, 5000, 100000} {
		t.Run(fmt.Sprintf("budget=%d", budget), func(t *testing.T) {
			rc, news := oversizedContext(budget)
			enforceBudget(rc, news)
			assert.LessOrEqual(t, rc.Size(), budget)
			assert.NotNil(t, rc.Section(models.SectionHoldings), "mandatory section kept")
			assert.NotNil(t, rc.Section(models.SectionAttribution), "mandatory section kept")
		})
	}
}

func TestEnforceBudget_DropOrder(t *testing.T) {
	rc, news := oversizedContext(1200)
	enforceBudget(rc, news)

	assert.Equal(t, []string{models.SectionNews, models.SectionSector, models.SectionCapitalFlow, models.SectionMarket}, rc.Dropped)
	require.NotNil(t, rc.Section(models.SectionFundNAV))
	assert.LessOrEqual(t, rc.Size(), 1200)

	again, news := oversizedContext(1200)
	enforceBudget(again, news)
	assert.Equal(t, rc.Dropped, again.Dropped)
	assert.Equal(t, rc.Render(), again.Render())
}

func TestEnforceBudget_TrimsLowestRankedNewsFirst(t *testing.T) {
	rc, news := oversizedContext(0)
	full := rc.Size()
	// Each rendered item costs its line plus a newline.
	rc.Budget = full - 3*utf8Len(formatNewsItem(news[0])) - 1

	kept := enforceBudget(rc, news)
	require.Len(t, kept, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{kept[0].Rank, kept[1].Rank, kept[2].Rank})
	assert.Empty(t, rc.Dropped)
	assert.Contains(t, rc.Notes, "news trimmed to 3 of 6 items")
	assert.NotContains(t, rc.Render(), "title-4")
	assert.LessOrEqual(t, rc.Size(), rc.Budget)
}

func TestEnforceBudget_UnderBudgetUntouched(t *testing.T) {
	rc, news := oversizedContext(100000)
	before := rc.Render()
	kept := enforceBudget(rc, news)
	assert.Equal(t, before, rc.Render())
	assert.Len(t, kept, len(news))
	assert.Empty(t, rc.Dropped)
}

func TestEnforceBudget_TruncatesMandatory(t *testing.T) {
	rc, news := oversizedContext(300)
	enforceBudget(rc, news)

	assert.Equal(t, []string{
		models.SectionNews, models.SectionSector, models.SectionCapitalFlow, models.SectionMarket, models.SectionFundNAV,
	}, rc.Dropped)
	holdings := rc.Section(models.SectionHoldings)
	require.NotNil(t, holdings)
	assert.True(t, holdings.Truncated || rc.Section(models.SectionAttribution).Truncated)
	assert.Contains(t, rc.Render(), "已截断")
	assert.LessOrEqual(t, rc.Size(), 300)
}

func TestTruncateText(t *testing.T) {
	tests := []struct {
		name string
		text string
		n    int
		want string
	}{
		{"fits", "abc", 5, "abc"},
		{"zero", "abc", 0, ""},
		{"no room for marker", "abcdefghij", 3, "abc"},
		{"with marker", strings.Repeat("x", 20), 12, strings.Repeat("x", 5) + truncationMarker},
		{"runes", "一二三四五六七八九十一二三四五", 10, "一二三" + truncationMarker},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateText(tt.text, tt.n)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, utf8Len(got), tt.n)
		})
	}
}

func TestCollectSources_Dedupe(t *testing.T) {
	data := &models.CollectedData{
		Fund:     testFund,
		Type:     models.ReportPost,
		Holdings: testHoldings(),
	}
	rc := &models.ReportContext{Sections: []models.ContextSection{
		{Name: models.SectionMarket, Text: "m"},
		{Name: models.SectionHoldings, Text: "h"},
		{Name: models.SectionAttribution, Text: "a"},
		{Name: models.SectionSector, Text: ""},
	}}
	news := []models.NewsItem{
		{Title: "基金大涨", URL: "https://a.test/1", Topic: models.TopicFund},
		{Title: "基金大涨", URL: "https://a.test/1", Topic: models.TopicFund},
		{Title: "茅台公告", URL: "https://a.test/2", Topic: models.TopicHolding},
	}

	sources := collectSources(data, rc, news)

	require.Len(t, sources, 5)
	assert.Equal(t, models.Source{Category: categoryMarketData, Title: "东方财富: 指数与外汇行情", URL: "https://quote.eastmoney.com/"}, sources[0])
	assert.Equal(t, "东方财富: 基金持仓 005827 (2024Q2)", sources[1].Title)
	assert.Equal(t, "东方财富: 个股行情", sources[2].Title)
	assert.Equal(t, categoryFundNews, sources[3].Category)
	assert.Equal(t, categoryHoldingNews, sources[4].Category)
}

func utf8Len(s string) int {
	return len([]rune(s))
}

func TestFormatFlow(t *testing.T) {
	var sectorFlows []models.SectorFlow
	for i, name := range []string{"半导体", "证券", "酿酒行业", "电池", "银行", "煤炭行业"} {
		sectorFlows = append(sectorFlows, models.SectorFlow{Name: name, MainNet: float64(10 - i)})
	}
	northbound := &models.CapitalFlow{Days: []models.FlowDay{{Date: testDate, Net: -6.5}}, Sum: -6.5}

	tests := []struct {
		name     string
		flow     *models.CapitalFlow
		sectors  []models.SectorFlow
		contains []string
		excludes []string
	}{
		{
			name:     "northbound and sectors",
			flow:     northbound,
			sectors:  sectorFlows,
			contains: []string{"北向资金:", "最新净流入（2024-06-28）: -6.50亿", "行业主力资金流向:\n- 半导体: +10.00亿", "- 银行: +6.00亿"},
			excludes: []string{"煤炭行业"},
		},
		{
			name:     "sectors only",
			sectors:  sectorFlows[:2],
			contains: []string{"行业主力资金流向:\n- 半导体: +10.00亿\n- 证券: +9.00亿"},
			excludes: []string{"北向资金"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := formatFlow(tt.flow, tt.sectors)
			for _, want := range tt.contains {
				assert.Contains(t, text, want)
			}
			for _, unwanted := range tt.excludes {
				assert.NotContains(t, text, unwanted)
			}
		})
	}
}

func TestBuildSections_SectorFlowOnly(t *testing.T) {
	data := &models.CollectedData{
		Fund:        testFund,
		Type:        models.ReportPre,
		Holdings:    testHoldings(),
		SectorFlows: []models.SectorFlow{{Name: "证券", MainNet: 3}},
	}
	sections, omitted := buildSections(data, nil, nil)

	var names []string
	for _, s := range sections {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, models.SectionCapitalFlow)
	assert.NotContains(t, omitted, models.SectionCapitalFlow)
}
