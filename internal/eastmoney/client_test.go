package eastmoney

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fundlens/internal/models"
)

const holdingsPayload = `var apidata={ content:"<div class='box'><div class='boxitem w790'><h4 class='t'><label class='left'><a href='http://fund.eastmoney.com/005827.html'>易方达蓝筹精选混合</a>&nbsp;&nbsp;2024年2季度股票投资明细</label></h4><table class='w782 comm tzxq'><thead><tr><th class='first'>序号</th><th>股票代码</th><th>股票名称</th><th class='xglj'>相关资讯</th><th class='tor'>占净值<br />比例</th><th class='tor'>持股数<br />（万股）</th></tr></thead><tbody><tr><td>1</td><td><a href='\/\/quote.eastmoney.com\/unify\/r\/1.600519'>600519</a></td><td class='tol'><a>贵州茅台</a></td><td class='xglj'>股吧</td><td class='tor'>9.92%</td><td class='tor'>120.00</td></tr><tr><td>2</td><td><a>00700</a></td><td class='tol'><a>腾讯控股</a></td><td class='xglj'>股吧</td><td class='tor'>9.51%</td><td class='tor'>300.00</td></tr></tbody></table></div></div><div class='box'><div class='boxitem w790'><h4 class='t'><label class='left'>易方达蓝筹精选混合&nbsp;&nbsp;2024年1季度股票投资明细</label></h4><table class='w782 comm tzxq'><thead><tr><th>序号</th><th>股票代码</th><th>股票名称</th><th>占净值<br />比例</th></tr></thead><tbody><tr><td>1</td><td>600519</td><td>贵州茅台</td><td>9.80%</td></tr></tbody></table></div></div>",arryear:[2024,2023,2022],curyear:2024};`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(
		WithFundBaseURL(srv.URL),
		WithNAVBaseURL(srv.URL),
		WithQuoteBaseURL(srv.URL),
		WithHistoryBaseURL(srv.URL),
		WithLogger(arbor.NewLogger()),
		WithRateLimit(100),
	)
}

func TestGetFundHoldingsByYear(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/FundArchivesDatas.aspx", r.URL.Path)
		assert.Equal(t, "jjcc", r.URL.Query().Get("type"))
		assert.Equal(t, "005827", r.URL.Query().Get("code"))
		assert.Equal(t, "2024", r.URL.Query().Get("year"))
		_, _ = w.Write([]byte(holdingsPayload))
	})

	byPeriod, err := client.GetFundHoldingsByYear(context.Background(), "005827", 2024)
	require.NoError(t, err)
	require.Len(t, byPeriod, 2)

	q2 := byPeriod[models.Period{Year: 2024, Quarter: 2}]
	require.Len(t, q2, 2)
	assert.Equal(t, "600519", q2[0].Ticker)
	assert.Equal(t, "贵州茅台", q2[0].Name)
	assert.InDelta(t, 9.92, q2[0].Weight, 1e-9)
	assert.Equal(t, models.Period{Year: 2024, Quarter: 2}, q2[0].AsOf)
	assert.Equal(t, "00700", q2[1].Ticker)

	q1 := byPeriod[models.Period{Year: 2024, Quarter: 1}]
	require.Len(t, q1, 1)
	assert.InDelta(t, 9.80, q1[0].Weight, 1e-9)
}

func TestGetFundHoldingsByYear_Empty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`var apidata={ content:"",arryear:[],curyear:2025};`))
	})

	byPeriod, err := client.GetFundHoldingsByYear(context.Background(), "005827", 2025)
	require.NoError(t, err)
	assert.Empty(t, byPeriod)
}

func TestGetNAVHistory(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/f10/lsjz", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("Referer"))
		_, _ = w.Write([]byte(`{"Data":{"LSJZList":[
			{"FSRQ":"2024-06-27","DWJZ":"1.9900","LJJZ":"1.9900","JZZZL":"-0.50"},
			{"FSRQ":"2024-06-28","DWJZ":"2.0100","LJJZ":"2.0100","JZZZL":"1.01"},
			{"FSRQ":"2024-06-26","DWJZ":"2.0000","LJJZ":"2.0000","JZZZL":""}
		]},"ErrCode":0,"ErrMsg":null,"TotalCount":3}`))
	})

	points, err := client.GetNAVHistory(context.Background(), "005827", 5)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, "2024-06-28", points[0].Date.Format("2006-01-02"), "newest first")
	assert.InDelta(t, 2.01, points[0].Unit, 1e-9)
	assert.InDelta(t, 1.01, points[0].ChangePct, 1e-9)
	assert.Equal(t, 0.0, points[2].ChangePct)
}

func TestGetQuotes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/qt/ulist.np/get", r.URL.Path)
		assert.Equal(t, "1.600519,100.DJIA", r.URL.Query().Get("secids"))
		_, _ = w.Write([]byte(`{"rc":0,"data":{"total":2,"diff":[
			{"f2":1520.5,"f3":-1.25,"f4":-19.3,"f12":"600519","f13":1,"f14":"贵州茅台","f100":"酿酒行业","f124":1719558000},
			{"f2":"-","f3":"-","f4":"-","f12":"DJIA","f13":100,"f14":"道琼斯","f100":"-","f124":1719558000}
		]}}`))
	})

	quotes, err := client.GetQuotes(context.Background(), []string{"1.600519", "100.DJIA"})
	require.NoError(t, err)
	require.Len(t, quotes, 2)

	mt := quotes["1.600519"]
	assert.True(t, mt.HasPrice)
	assert.InDelta(t, -1.25, mt.ChangePct, 1e-9)
	assert.Equal(t, "酿酒行业", mt.Industry)
	assert.Equal(t, int64(1719558000), mt.Timestamp.Unix())

	dji := quotes["100.DJIA"]
	assert.False(t, dji.HasPrice)
	assert.Empty(t, dji.Industry)
}

func TestGetSectorBoards(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/qt/clist/get", r.URL.Path)
		assert.Equal(t, "m:90 t:2", r.URL.Query().Get("fs"))
		_, _ = w.Write([]byte(`{"rc":0,"data":{"total":3,"diff":[
			{"f3":0.5,"f12":"BK0438","f14":"食品饮料","f128":"贵州茅台"},
			{"f3":2.1,"f12":"BK0447","f14":"互联网服务","f128":"三六零"},
			{"f3":"-","f12":"BK0000","f14":"停牌板块","f128":"-"}
		]}}`))
	})

	sectors, err := client.GetSectorBoards(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, sectors, 2)
	assert.Equal(t, "互联网服务", sectors[0].Name)
	assert.Equal(t, "贵州茅台", sectors[1].Leader)
}

func TestGetSectorFundFlow(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/api/qt/clist/get", r.URL.Path)
		assert.Equal(t, "m:90 t:2", q.Get("fs"))
		assert.Equal(t, "f62", q.Get("fid"))
		assert.Equal(t, "f12,f14,f62", q.Get("fields"))
		assert.Equal(t, "2", q.Get("pz"))
		_, _ = w.Write([]byte(`{"rc":0,"data":{"total":3,"diff":[
			{"f12":"BK0478","f14":"有色金属","f62":-320000000},
			{"f12":"BK0447","f14":"互联网服务","f62":1250000000.5},
			{"f12":"BK0000","f14":"停牌板块","f62":"-"}
		]}}`))
	})

	flows, err := client.GetSectorFundFlow(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, flows, 2)
	assert.Equal(t, "互联网服务", flows[0].Name)
	assert.Equal(t, "BK0447", flows[0].Code)
	assert.InDelta(t, 12.500000005, flows[0].MainNet, 1e-9)
	assert.InDelta(t, -3.2, flows[1].MainNet, 1e-9)
}

func TestGetNorthboundFlow(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/qt/kamt.kline/get", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"s2n":["2024-06-26,150000.00","2024-06-27,-50000.00","2024-06-28,250000.00"]}}`))
	})

	flow, err := client.GetNorthboundFlow(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, flow, 3)
	assert.Equal(t, "2024-06-28", flow[0].Date.Format("2006-01-02"))
	assert.InDelta(t, 25.0, flow[0].Net, 1e-9)
	assert.InDelta(t, -5.0, flow[1].Net, 1e-9)
}

func TestClient_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	})

	_, err := client.GetNAVHistory(context.Background(), "005827", 5)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "/f10/lsjz", apiErr.Endpoint)
}

func TestClient_RateLimited(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.GetQuotes(context.Background(), []string{"1.000001"})
	var rlErr *RateLimitError
	assert.True(t, errors.As(err, &rlErr))
}

func TestClient_ContextCancelled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.GetQuotes(ctx, []string{"1.000001"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
