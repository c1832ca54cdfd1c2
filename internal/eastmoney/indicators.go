package eastmoney

import (
	"context"
	"fmt"

	"github.com/ternarybob/fundlens/internal/common"
	"github.com/ternarybob/fundlens/internal/models"
)

// IndicatorSecIDs maps indicator keys to East Money quote identifiers.
var IndicatorSecIDs = map[string]string{
	"dji":     "100.DJIA",
	"ndx":     "100.NDX",
	"spx":     "100.SPX",
	"usdcnh":  "133.USDCNH",
	"a50":     "104.CN00Y",
	"sse":     "1.000001",
	"chinext": "0.399006",
	"csi300":  "1.000300",
}

// GetIndicator fetches one named indicator.
func (c *Client) GetIndicator(ctx context.Context, key string) (models.Indicator, error) {
	secid, ok := IndicatorSecIDs[key]
	if !ok {
		return models.Indicator{}, fmt.Errorf("unknown indicator %q", key)
	}

	quotes, err := c.GetQuotes(ctx, []string{secid})
	if err != nil {
		return models.Indicator{}, err
	}
	q, ok := quotes[secid]
	if !ok || !q.HasPrice {
		return models.Indicator{}, &APIError{
			StatusCode: 200,
			Message:    "no price for " + secid,
			Endpoint:   "/api/qt/ulist.np/get",
		}
	}

	return models.Indicator{
		Key:       key,
		Name:      q.Name,
		Value:     q.Price,
		Change:    q.Change,
		ChangePct: q.ChangePct,
		Timestamp: q.Timestamp,
	}, nil
}

// GetStockQuotes fetches quotes for plain or exchange-qualified tickers.
// The result is keyed by the ticker as passed in; unparseable or
// unquoted tickers are absent.
func (c *Client) GetStockQuotes(ctx context.Context, tickers []string) (map[string]models.Quote, error) {
	bySecID := make(map[string]string, len(tickers))
	secids := make([]string, 0, len(tickers))
	for _, raw := range tickers {
		secid := common.ParseTicker(raw).SecID()
		if secid == "" {
			continue
		}
		if _, dup := bySecID[secid]; !dup {
			secids = append(secids, secid)
		}
		bySecID[secid] = raw
	}

	quotes, err := c.GetQuotes(ctx, secids)
	if err != nil {
		return nil, err
	}

	out := make(map[string]models.Quote, len(quotes))
	for secid, q := range quotes {
		raw, ok := bySecID[secid]
		if !ok || !q.HasPrice {
			continue
		}
		out[raw] = models.Quote{
			Ticker:    raw,
			Name:      q.Name,
			Price:     q.Price,
			ChangePct: q.ChangePct,
			Sector:    q.Industry,
			Timestamp: q.Timestamp,
		}
	}
	return out, nil
}
