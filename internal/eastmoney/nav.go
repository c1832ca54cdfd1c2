package eastmoney

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/ternarybob/fundlens/internal/models"
)

// GetNAVHistory returns up to limit most recent NAV points, newest first.
func (c *Client) GetNAVHistory(ctx context.Context, fundCode string, limit int) ([]models.NAVPoint, error) {
	if limit <= 0 {
		limit = 10
	}

	params := url.Values{}
	params.Set("fundCode", fundCode)
	params.Set("pageIndex", "1")
	params.Set("pageSize", strconv.Itoa(limit))

	var resp navResponse
	if err := c.getJSON(ctx, c.navBaseURL, "/f10/lsjz", params, "https://fundf10.eastmoney.com/", &resp); err != nil {
		return nil, err
	}
	if resp.ErrCode != 0 {
		return nil, &APIError{StatusCode: resp.ErrCode, Message: resp.ErrMsg, Endpoint: "/f10/lsjz"}
	}

	points := make([]models.NAVPoint, 0, len(resp.Data.LSJZList))
	for _, rec := range resp.Data.LSJZList {
		date, err := time.Parse("2006-01-02", rec.Date)
		if err != nil || !rec.Unit.Valid() {
			continue
		}
		p := models.NAVPoint{Date: date, Unit: float64(rec.Unit)}
		if rec.Accumulated.Valid() {
			p.Accumulated = float64(rec.Accumulated)
		}
		if rec.ChangePct.Valid() {
			p.ChangePct = float64(rec.ChangePct)
		}
		points = append(points, p)
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].Date.After(points[j].Date)
	})

	if len(points) == 0 && len(resp.Data.LSJZList) > 0 {
		return nil, fmt.Errorf("no parseable NAV records for fund %s", fundCode)
	}
	return points, nil
}
