package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/fundlens/internal/models"
)

const analystRole = `你是一名资深的公募基金分析师，服务对象是持有该基金的个人投资者。` +
	`你只依据用户提供的数据与新闻进行分析，不编造数据；数据缺失或过期时要明确指出。`

const preMarketTask = `【任务】撰写盘前简报（Morning Brief）：
1. 隔夜外盘与汇率对今日 A 股及该基金重仓板块的影响；
2. 逐一点评重仓股的最新消息，区分利好、利空与中性；
3. 给出今日需要关注的风险点与观察指标；
4. 最后一行单独输出：情绪评分: <-5 到 5 的整数>，正数偏乐观，负数偏悲观。`

const postMarketTask = `【任务】撰写盘后复盘（Afternoon Review）：
1. 概述今日大盘与基金净值表现；
2. 结合业绩归因，说明基金涨跌主要来自板块贝塔还是个股阿尔法；
3. 对标记为异动的重仓股，结合新闻解释原因；
4. 给出明日展望与操作提示；
5. 最后一行单独输出：情绪评分: <-5 到 5 的整数>，正数偏乐观，负数偏悲观。`

const outputRules = `【输出要求】使用 Markdown，小标题用 ###，语言简洁，不要复述原始数据表格。`

// SystemPrompt builds the fixed instruction for one fund's report. The
// assembled context is sent separately as the user message.
func SystemPrompt(fund models.FundSpec, reportType models.ReportType, date time.Time) string {
	var b strings.Builder
	b.WriteString(analystRole + "\n\n")

	fmt.Fprintf(&b, "【基金】%s（%s）\n", fund.Name, fund.Code)
	if fund.Strategy != "" {
		fmt.Fprintf(&b, "【投资策略】%s\n", fund.Strategy)
	}
	if len(fund.CoreSectors) > 0 {
		fmt.Fprintf(&b, "【核心板块】%s\n", strings.Join(fund.CoreSectors, "、"))
	}
	fmt.Fprintf(&b, "【分析日期】%s\n\n", date.Format("2006-01-02"))

	if reportType == models.ReportPost {
		b.WriteString(postMarketTask)
	} else {
		b.WriteString(preMarketTask)
	}
	b.WriteString("\n\n" + outputRules)
	return b.String()
}
