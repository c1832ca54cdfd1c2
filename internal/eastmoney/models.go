package eastmoney

// navResponse is the f10/lsjz NAV history payload.
type navResponse struct {
	Data struct {
		LSJZList []navRecord `json:"LSJZList"`
	} `json:"Data"`
	ErrCode    int    `json:"ErrCode"`
	ErrMsg     string `json:"ErrMsg"`
	TotalCount int    `json:"TotalCount"`
}

type navRecord struct {
	Date        string    `json:"FSRQ"`  // 2006-01-02
	Unit        flexFloat `json:"DWJZ"`  // unit NAV
	Accumulated flexFloat `json:"LJJZ"`  // accumulated NAV
	ChangePct   flexFloat `json:"JZZZL"` // daily growth in percent
}

// quoteList is the shape shared by ulist.np and clist endpoints.
type quoteList struct {
	RC   int `json:"rc"`
	Data *struct {
		Total int           `json:"total"`
		Diff  []quoteRecord `json:"diff"`
	} `json:"data"`
}

// quoteRecord uses East Money field ids.
type quoteRecord struct {
	Price     flexFloat  `json:"f2"`
	ChangePct flexFloat  `json:"f3"`
	Change    flexFloat  `json:"f4"`
	MainNet   flexFloat  `json:"f62"` // CNY
	Code      flexString `json:"f12"`
	Market    int        `json:"f13"`
	Name      string     `json:"f14"`
	Industry  flexString `json:"f100"`
	Timestamp flexFloat  `json:"f124"` // unix seconds
	Leader    flexString `json:"f128"`
}

// klineResponse is the kamt.kline cross-border flow payload.
type klineResponse struct {
	Data *struct {
		S2N []string `json:"s2n"` // "2006-01-02,<net in 10k CNY>"
	} `json:"data"`
}
