package contextbuilder

import (
	"fmt"

	"github.com/ternarybob/fundlens/internal/models"
)

const (
	categoryMarketData  = "市场数据"
	categoryFundNews    = "基金新闻"
	categoryHoldingNews = "重仓股新闻"
)

// collectSources lists the data behind every included section plus the
// news items that survived the budget, deduplicated by title and URL.
func collectSources(data *models.CollectedData, rc *models.ReportContext, news []models.NewsItem) []models.Source {
	var sources []models.Source
	seen := make(map[[2]string]bool)
	add := func(s models.Source) {
		key := [2]string{s.Title, s.URL}
		if seen[key] {
			return
		}
		seen[key] = true
		sources = append(sources, s)
	}

	code := data.Fund.Code
	for _, s := range rc.Sections {
		if s.Text == "" {
			continue
		}
		switch s.Name {
		case models.SectionMacro, models.SectionMarket:
			add(models.Source{Category: categoryMarketData, Title: "东方财富: 指数与外汇行情", URL: "https://quote.eastmoney.com/"})
		case models.SectionFundNAV:
			add(models.Source{Category: categoryMarketData, Title: fmt.Sprintf("东方财富: 基金净值 %s", code),
				URL: fmt.Sprintf("https://fundf10.eastmoney.com/jjjz_%s.html", code)})
		case models.SectionHoldings:
			if data.Holdings.CachedFallback() {
				add(models.Source{Category: categoryMarketData, Title: "基金配置: 预设持仓"})
			} else if data.Holdings.Available() {
				add(models.Source{Category: categoryMarketData, Title: fmt.Sprintf("东方财富: 基金持仓 %s (%s)", code, data.Holdings.AsOf),
					URL: fmt.Sprintf("https://fundf10.eastmoney.com/ccmx_%s.html", code)})
			}
		case models.SectionAttribution:
			add(models.Source{Category: categoryMarketData, Title: "东方财富: 个股行情", URL: "https://quote.eastmoney.com/"})
		case models.SectionSector:
			add(models.Source{Category: categoryMarketData, Title: "东方财富: 行业板块", URL: "https://quote.eastmoney.com/center/boardlist.html"})
		case models.SectionCapitalFlow:
			if data.Flow != nil && len(data.Flow.Days) > 0 {
				add(models.Source{Category: categoryMarketData, Title: "东方财富: 北向资金", URL: "https://data.eastmoney.com/hsgt/index.html"})
			}
			if len(data.SectorFlows) > 0 {
				add(models.Source{Category: categoryMarketData, Title: "东方财富: 行业资金流", URL: "https://data.eastmoney.com/bkzj/hy.html"})
			}
		}
	}

	for _, item := range news {
		category := categoryHoldingNews
		if item.Topic == models.TopicFund {
			category = categoryFundNews
		}
		add(models.Source{Category: category, Title: item.Title, URL: item.URL})
	}
	return sources
}
