package eastmoney

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/fundlens/internal/models"
)

var (
	// apidata={ content:"...",arryear:[...],curyear:2024};
	archiveContentRegex = regexp.MustCompile(`(?s)content:"(.*?)",\s*arryear`)
	quarterRegex        = regexp.MustCompile(`(\d{4})年\s*(\d)季度`)
)

// GetFundHoldingsByYear returns the disclosed top stock holdings for every
// quarter published in the given year's archive page.
func (c *Client) GetFundHoldingsByYear(ctx context.Context, fundCode string, year int) (map[models.Period][]models.HoldingSnapshot, error) {
	params := url.Values{}
	params.Set("type", "jjcc")
	params.Set("code", fundCode)
	params.Set("topline", "10")
	params.Set("year", strconv.Itoa(year))

	body, err := c.get(ctx, c.fundBaseURL, "/FundArchivesDatas.aspx", params, c.fundBaseURL+"/ccmx_"+fundCode+".html")
	if err != nil {
		return nil, err
	}

	return parseHoldingsArchive(string(body))
}

// parseHoldingsArchive extracts the HTML fragment from the archive script
// payload and parses one table per quarter.
func parseHoldingsArchive(payload string) (map[models.Period][]models.HoldingSnapshot, error) {
	fragment := payload
	if m := archiveContentRegex.FindStringSubmatch(payload); len(m) == 2 {
		fragment = strings.NewReplacer(`\"`, `"`, `\/`, `/`).Replace(m[1])
	}

	result := make(map[models.Period][]models.HoldingSnapshot)
	if strings.TrimSpace(fragment) == "" {
		return result, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil, fmt.Errorf("failed to parse holdings fragment: %w", err)
	}

	doc.Find("div.box").Each(func(_ int, box *goquery.Selection) {
		m := quarterRegex.FindStringSubmatch(box.Find("h4").Text())
		if len(m) != 3 {
			return
		}
		year, _ := strconv.Atoi(m[1])
		quarter, _ := strconv.Atoi(m[2])
		period := models.Period{Year: year, Quarter: quarter}

		holdings := parseHoldingsTable(box.Find("table").First(), period)
		if len(holdings) > 0 {
			result[period] = holdings
		}
	})

	return result, nil
}

func parseHoldingsTable(table *goquery.Selection, period models.Period) []models.HoldingSnapshot {
	codeCol, nameCol, weightCol := -1, -1, -1
	table.Find("thead th").Each(func(i int, th *goquery.Selection) {
		text := strings.TrimSpace(th.Text())
		switch {
		case strings.Contains(text, "股票代码"):
			codeCol = i
		case strings.Contains(text, "股票名称"):
			nameCol = i
		case strings.Contains(text, "占净值"):
			weightCol = i
		}
	})
	if codeCol < 0 || weightCol < 0 {
		return nil
	}

	var holdings []models.HoldingSnapshot
	table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() <= weightCol || cells.Length() <= codeCol {
			return
		}
		ticker := strings.TrimSpace(cells.Eq(codeCol).Text())
		if ticker == "" {
			return
		}
		weightText := strings.TrimSuffix(strings.TrimSpace(cells.Eq(weightCol).Text()), "%")
		weight, err := strconv.ParseFloat(weightText, 64)
		if err != nil {
			return
		}
		name := ""
		if nameCol >= 0 && cells.Length() > nameCol {
			name = strings.TrimSpace(cells.Eq(nameCol).Text())
		}
		holdings = append(holdings, models.HoldingSnapshot{
			Ticker: ticker,
			Name:   name,
			Weight: weight,
			AsOf:   period,
		})
	})
	return holdings
}
