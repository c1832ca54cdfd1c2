package contextbuilder

import (
	"fmt"
	"strings"

	"github.com/ternarybob/fundlens/internal/models"
)

const sectorTopN = 5

func pct(v float64) string {
	return fmt.Sprintf("%+.2f%%", v)
}

func formatIndicators(title string, snap *models.MarketSnapshot, keys []string) string {
	var b strings.Builder
	b.WriteString(title + "\n")
	for _, ind := range snap.Ordered(keys) {
		fmt.Fprintf(&b, "- %s: %.2f (%s)\n", ind.Name, ind.Value, pct(ind.ChangePct))
	}
	if len(snap.FailedKeys) > 0 {
		fmt.Fprintf(&b, "- 未能获取: %s\n", strings.Join(snap.FailedKeys, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatNAV(nav *models.NAV) string {
	var b strings.Builder
	b.WriteString("### 基金净值\n")
	if nav.Stale {
		fmt.Fprintf(&b, "⚠️ 当日净值可能尚未披露：分析日 %s，最新净值日期 %s（以下为最近可用净值）\n",
			nav.Requested.Format("2006-01-02"), nav.Date.Format("2006-01-02"))
	}
	fmt.Fprintf(&b, "- 净值日期: %s\n", nav.Date.Format("2006-01-02"))
	fmt.Fprintf(&b, "- 单位净值: %.4f\n", nav.Unit)
	fmt.Fprintf(&b, "- 日增长率: %s\n", pct(nav.ChangePct))

	if len(nav.History) >= 2 {
		b.WriteString("近期走势:\n")
		for i, p := range nav.History {
			if i == 5 {
				break
			}
			fmt.Fprintf(&b, "- %s: %.4f (%s)\n", p.Date.Format("2006-01-02"), p.Unit, pct(p.ChangePct))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func holdingsHeader(res models.HoldingsResult) string {
	switch res.Kind {
	case models.HoldingsCurrent:
		return fmt.Sprintf("持仓披露期: %s", res.AsOf)
	case models.HoldingsPriorPeriod:
		return fmt.Sprintf("持仓披露期: %s（%s 尚未披露，使用最近一期）", res.AsOf, res.Requested)
	case models.HoldingsCachedPeriod:
		return fmt.Sprintf("持仓披露期: %s（来自本地缓存）", res.AsOf)
	case models.HoldingsCachedFallback:
		return "持仓来源: 配置中的预设持仓（非最新披露）"
	}
	return ""
}

func formatHoldings(res models.HoldingsResult, quotes map[string]models.Quote, post bool) string {
	var b strings.Builder
	if post {
		b.WriteString("### 重仓股今日表现\n")
	} else {
		b.WriteString("### 重仓股\n")
	}

	if !res.Available() {
		b.WriteString("持仓数据暂无")
		if res.Reason != "" {
			fmt.Fprintf(&b, "（%s）", res.Reason)
		}
		return b.String()
	}

	b.WriteString(holdingsHeader(res) + "\n")
	for _, h := range res.Holdings {
		line := fmt.Sprintf("- %s(%s)", displayName(h), h.Ticker)
		if post {
			if q, ok := quotes[h.Ticker]; ok {
				line += fmt.Sprintf(": %.2f (%s)", q.Price, pct(q.ChangePct))
			} else {
				line += ": 行情暂无"
			}
		}
		if h.Weight > 0 {
			line += fmt.Sprintf(" [持仓%.2f%%]", h.Weight)
		}
		if h.Sector != "" {
			line += " [" + h.Sector + "]"
		}
		b.WriteString(line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatAttribution(attr *models.Attribution) string {
	var b strings.Builder
	b.WriteString("### 业绩归因\n")

	if attr == nil || len(attr.Rows) == 0 {
		b.WriteString("归因数据不足（重仓股行情缺失）")
		return b.String()
	}

	if attr.HasFundChange {
		fmt.Fprintf(&b, "- 基金当日涨跌: %s\n", pct(attr.FundChangePct))
	} else {
		b.WriteString("- 基金当日涨跌: 净值未披露\n")
	}
	fmt.Fprintf(&b, "- 重仓股合计贡献: %s（板块贝塔 %s，个股阿尔法 %s），覆盖持仓 %.2f%%\n",
		pct(attr.Total), pct(attr.Beta), pct(attr.Alpha), attr.Coverage)
	if attr.HasFundChange {
		fmt.Fprintf(&b, "- 未解释部分（其余持仓与仓位）: %s\n", pct(attr.Residual))
	}

	for _, r := range attr.Rows {
		ref := "基准"
		switch r.SectorSource {
		case "sector":
			ref = "板块 " + r.Sector
		case "":
			ref = "无参照"
		}
		line := fmt.Sprintf("- %s: 个股 %s vs %s %s，偏离 %+.2fpp，贡献 %+.3f%%",
			r.Name, pct(r.ChangePct), ref, pct(r.SectorChangePct), r.Deviation, r.Contribution)
		if r.Culprit {
			line += " ⚠️异动"
		}
		b.WriteString(line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatSectors(sectors []models.SectorPerformance, fund models.FundSpec, holdingSectors []string) string {
	var b strings.Builder
	b.WriteString("### 行业板块\n")

	n := sectorTopN
	if len(sectors) < n {
		n = len(sectors)
	}
	b.WriteString("涨幅前列:\n")
	for _, s := range sectors[:n] {
		fmt.Fprintf(&b, "- %s: %s\n", s.Name, pct(s.ChangePct))
	}
	if len(sectors) > sectorTopN {
		b.WriteString("跌幅前列:\n")
		start := len(sectors) - sectorTopN
		if start < n {
			start = n
		}
		for i := len(sectors) - 1; i >= start; i-- {
			fmt.Fprintf(&b, "- %s: %s\n", sectors[i].Name, pct(sectors[i].ChangePct))
		}
	}

	var focus []string
	seen := make(map[string]bool)
	for _, name := range append(append([]string{}, fund.CoreSectors...), holdingSectors...) {
		if seen[name] {
			continue
		}
		seen[name] = true
		if sp, ok := matchSector(sectors, name); ok {
			line := fmt.Sprintf("- %s: %s", sp.Name, pct(sp.ChangePct))
			if fund.HasCoreSector(name) {
				line += " [核心配置]"
			}
			focus = append(focus, line)
		}
	}
	if len(focus) > 0 {
		b.WriteString("相关板块:\n")
		b.WriteString(strings.Join(focus, "\n"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatFlow(flow *models.CapitalFlow, sectorFlows []models.SectorFlow) string {
	var b strings.Builder
	b.WriteString("### 资金流向\n")
	if flow != nil && len(flow.Days) > 0 {
		latest := flow.Days[0]
		b.WriteString("北向资金:\n")
		fmt.Fprintf(&b, "- 最新净流入（%s）: %+.2f亿\n", latest.Date.Format("2006-01-02"), latest.Net)
		fmt.Fprintf(&b, "- %d日累计: %+.2f亿\n", len(flow.Days), flow.Sum)
	}
	if len(sectorFlows) > 0 {
		b.WriteString("行业主力资金流向:\n")
		for i, s := range sectorFlows {
			if i == sectorTopN {
				break
			}
			fmt.Fprintf(&b, "- %s: %+.2f亿\n", s.Name, s.MainNet)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatNews(items []models.NewsItem) string {
	var b strings.Builder
	b.WriteString("### 相关新闻")
	query := ""
	for _, item := range items {
		if item.Query != query {
			query = item.Query
			fmt.Fprintf(&b, "\n**%s**", query)
		}
		b.WriteString("\n" + formatNewsItem(item))
	}
	return b.String()
}

func formatNewsItem(item models.NewsItem) string {
	line := "- " + item.Title
	if item.PublishedAt != nil {
		line += " (" + item.PublishedAt.Format("01-02 15:04") + ")"
	}
	if item.Snippet != "" {
		line += ": " + item.Snippet
	}
	return line
}
