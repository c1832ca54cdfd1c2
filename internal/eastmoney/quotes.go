package eastmoney

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/fundlens/internal/models"
)

// Quote is a normalized ulist/clist record.
type Quote struct {
	SecID     string
	Code      string
	Name      string
	Price     float64
	Change    float64
	ChangePct float64
	Industry  string
	Leader    string
	Timestamp time.Time
	HasPrice  bool
}

// GetQuotes fetches the latest quotes for East Money secids ("1.600519").
// Securities missing from the response are absent from the result.
func (c *Client) GetQuotes(ctx context.Context, secids []string) (map[string]Quote, error) {
	if len(secids) == 0 {
		return map[string]Quote{}, nil
	}

	params := url.Values{}
	params.Set("fltt", "2")
	params.Set("invt", "2")
	params.Set("secids", strings.Join(secids, ","))
	params.Set("fields", "f2,f3,f4,f12,f13,f14,f100,f124")

	var resp quoteList
	if err := c.getJSON(ctx, c.quoteBaseURL, "/api/qt/ulist.np/get", params, "", &resp); err != nil {
		return nil, err
	}

	out := make(map[string]Quote, len(secids))
	if resp.Data == nil {
		return out, nil
	}
	for _, rec := range resp.Data.Diff {
		q := c.toQuote(rec)
		out[q.SecID] = q
	}
	return out, nil
}

// GetSectorBoards returns industry boards sorted by daily change, best first.
func (c *Client) GetSectorBoards(ctx context.Context, limit int) ([]models.SectorPerformance, error) {
	if limit <= 0 {
		limit = 100
	}

	params := url.Values{}
	params.Set("pn", "1")
	params.Set("pz", strconv.Itoa(limit))
	params.Set("po", "1")
	params.Set("np", "1")
	params.Set("fltt", "2")
	params.Set("invt", "2")
	params.Set("fid", "f3")
	params.Set("fs", "m:90 t:2")
	params.Set("fields", "f3,f12,f14,f128")

	var resp quoteList
	if err := c.getJSON(ctx, c.quoteBaseURL, "/api/qt/clist/get", params, "", &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, nil
	}

	sectors := make([]models.SectorPerformance, 0, len(resp.Data.Diff))
	for _, rec := range resp.Data.Diff {
		if !rec.ChangePct.Valid() {
			continue
		}
		sectors = append(sectors, models.SectorPerformance{
			Code:      string(rec.Code),
			Name:      rec.Name,
			ChangePct: float64(rec.ChangePct),
			Leader:    string(rec.Leader),
		})
	}
	models.SortSectors(sectors)
	return sectors, nil
}

// GetSectorFundFlow returns industry boards ranked by today's main-capital
// net inflow, in 100 million CNY.
func (c *Client) GetSectorFundFlow(ctx context.Context, limit int) ([]models.SectorFlow, error) {
	if limit <= 0 {
		limit = 10
	}

	params := url.Values{}
	params.Set("pn", "1")
	params.Set("pz", strconv.Itoa(limit))
	params.Set("po", "1")
	params.Set("np", "1")
	params.Set("fltt", "2")
	params.Set("invt", "2")
	params.Set("fid", "f62")
	params.Set("fs", "m:90 t:2")
	params.Set("fields", "f12,f14,f62")

	var resp quoteList
	if err := c.getJSON(ctx, c.quoteBaseURL, "/api/qt/clist/get", params, "", &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, nil
	}

	flows := make([]models.SectorFlow, 0, len(resp.Data.Diff))
	for _, rec := range resp.Data.Diff {
		if !rec.MainNet.Valid() {
			continue
		}
		flows = append(flows, models.SectorFlow{
			Code:    string(rec.Code),
			Name:    rec.Name,
			MainNet: float64(rec.MainNet) / 1e8,
		})
	}
	sort.SliceStable(flows, func(i, j int) bool {
		return flows[i].MainNet > flows[j].MainNet
	})
	if len(flows) > limit {
		flows = flows[:limit]
	}
	return flows, nil
}

// GetNorthboundFlow returns up to days of daily northbound net flow,
// newest first, in 100 million CNY.
func (c *Client) GetNorthboundFlow(ctx context.Context, days int) ([]models.FlowDay, error) {
	if days <= 0 {
		days = 5
	}

	params := url.Values{}
	params.Set("fields1", "f1,f3,f5")
	params.Set("fields2", "f51,f52")
	params.Set("klt", "101")
	params.Set("lmt", strconv.Itoa(days))

	var resp klineResponse
	if err := c.getJSON(ctx, c.historyBaseURL, "/api/qt/kamt.kline/get", params, "", &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, nil
	}

	var flow []models.FlowDay
	for _, line := range resp.Data.S2N {
		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			continue
		}
		date, err := time.Parse("2006-01-02", parts[0])
		if err != nil {
			continue
		}
		net, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			continue
		}
		flow = append(flow, models.FlowDay{Date: date, Net: net / 10000})
	}

	// kline rows are oldest first
	for i, j := 0, len(flow)-1; i < j; i, j = i+1, j-1 {
		flow[i], flow[j] = flow[j], flow[i]
	}
	if len(flow) > days {
		flow = flow[:days]
	}
	return flow, nil
}

func (c *Client) toQuote(rec quoteRecord) Quote {
	q := Quote{
		SecID:    fmt.Sprintf("%d.%s", rec.Market, rec.Code),
		Code:     string(rec.Code),
		Name:     rec.Name,
		Industry: strings.TrimSpace(string(rec.Industry)),
		Leader:   string(rec.Leader),
	}
	if q.Industry == "-" {
		q.Industry = ""
	}
	if rec.Price.Valid() {
		q.Price = float64(rec.Price)
		q.HasPrice = true
	}
	if rec.Change.Valid() {
		q.Change = float64(rec.Change)
	}
	if rec.ChangePct.Valid() {
		q.ChangePct = float64(rec.ChangePct)
	}
	if rec.Timestamp.Valid() && rec.Timestamp > 0 {
		q.Timestamp = time.Unix(int64(rec.Timestamp), 0)
	} else {
		q.Timestamp = c.now()
	}
	return q
}
