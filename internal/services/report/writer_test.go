package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/fundlens/internal/models"
)

func sampleReport() (*models.ReportResult, *models.ReportContext) {
	date := time.Date(2024, 10, 15, 0, 0, 0, 0, time.UTC)
	sentiment := 2
	rc := &models.ReportContext{
		Fund:           models.FundSpec{Code: "005827", Name: "易方达蓝筹精选混合"},
		Type:           models.ReportPost,
		Date:           date,
		Budget:         24000,
		Sections:       []models.ContextSection{{Name: models.SectionHoldings, Text: "### 重仓股今日表现\n- 贵州茅台(600519): 1520.00 (+4.00%)"}},
		Included:       []string{models.SectionHoldings},
		Dropped:        []string{models.SectionNews},
		HoldingsKind:   models.HoldingsPriorPeriod,
		HoldingsPeriod: models.Period{Year: 2024, Quarter: 2},
		StaleData:      true,
		Sources: []models.Source{
			{Category: "市场数据", Title: "东方财富: 基金持仓 005827 (2024Q2)", URL: "https://fundf10.eastmoney.com/ccmx_005827.html"},
			{Category: "基金新闻", Title: "蓝筹基金反弹", URL: "https://news.test/1"},
			{Category: "市场数据", Title: "基金配置: 预设持仓"},
		},
	}
	result := &models.ReportResult{
		RunID:       "run-1",
		Type:        models.ReportPost,
		FundCode:    "005827",
		FundName:    "易方达蓝筹精选混合",
		Date:        date,
		GeneratedAt: time.Date(2024, 10, 15, 16, 0, 0, 0, time.UTC),
		RawOutput:   "今日基金上涨。\n\n情绪评分: 2\n",
		Sentiment:   &sentiment,
		Sections:    rc.Included,
		Dropped:     rc.Dropped,
		StaleData:   true,
	}
	return result, rc
}

func splitFrontMatter(t *testing.T, doc string) (map[string]interface{}, string) {
	t.Helper()
	require.True(t, strings.HasPrefix(doc, "---\n"))
	end := strings.Index(doc[4:], "\n---\n")
	require.GreaterOrEqual(t, end, 0)
	var fm map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(doc[4:4+end+1]), &fm))
	return fm, doc[4+end+5:]
}

func TestRender(t *testing.T) {
	result, rc := sampleReport()

	doc, err := Render(result, rc)
	require.NoError(t, err)

	fm, body := splitFrontMatter(t, doc)
	assert.Equal(t, "005827", fm["fund_code"])
	assert.Equal(t, "易方达蓝筹精选混合", fm["fund_name"])
	assert.Equal(t, "2024-10-15", fm["date"])
	assert.Equal(t, "post", fm["mode"])
	assert.Equal(t, 2, fm["sentiment"])
	assert.Equal(t, true, fm["stale_data"])
	assert.Equal(t, "prior_period", fm["holdings_kind"])
	assert.Equal(t, "2024Q2", fm["holdings_period"])
	assert.Equal(t, []interface{}{"news"}, fm["dropped_sections"])
	assert.Equal(t, "run-1", fm["run_id"])

	assert.Contains(t, body, "# 易方达蓝筹精选混合 Afternoon Review\n")
	assert.Contains(t, body, "## Afternoon Review\n")
	assert.Contains(t, body, "## AI Insights\n\n今日基金上涨。")
	assert.Contains(t, body, "持仓数据来自 2024Q2 披露期")
	assert.Contains(t, body, "### 市场数据\n1. [东方财富: 基金持仓 005827 (2024Q2)](https://fundf10.eastmoney.com/ccmx_005827.html)\n2. 基金配置: 预设持仓\n")
	assert.Contains(t, body, "### 基金新闻\n1. [蓝筹基金反弹](https://news.test/1)")
	assert.Less(t, strings.Index(body, "## Afternoon Review"), strings.Index(body, "## AI Insights"))
	assert.Less(t, strings.Index(body, "## AI Insights"), strings.Index(body, "## Sources"))
}

func TestRender_NoSentiment(t *testing.T) {
	result, rc := sampleReport()
	result.Sentiment = nil
	result.Type = models.ReportPre

	doc, err := Render(result, rc)
	require.NoError(t, err)

	fm, body := splitFrontMatter(t, doc)
	sentiment, ok := fm["sentiment"]
	assert.True(t, ok, "sentiment key is always present")
	assert.Nil(t, sentiment)
	assert.Contains(t, doc, "\nsentiment: null\n")
	assert.Contains(t, body, "## Morning Brief")
}

func TestWriter_Write(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, arbor.NewLogger())
	result, rc := sampleReport()

	path, err := w.Write(result, rc)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2024-10-15", "2024-10-15_005827_post.md"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "## AI Insights")

	// Rewriting the same key replaces the file and leaves no temp files.
	result.RawOutput = "second run"
	_, err = w.Write(result, rc)
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "second run")
}

func TestWriter_UnwritableDir(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	w := NewWriter(blocker, arbor.NewLogger())
	result, rc := sampleReport()

	_, err := w.Write(result, rc)
	assert.Error(t, err)
}
