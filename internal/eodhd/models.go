package eodhd

import (
	"time"
)

// EODData represents a single day's end-of-day price data.
type EODData struct {
	Date          time.Time `json:"-"`
	DateStr       string    `json:"date"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Close         float64   `json:"close"`
	AdjustedClose float64   `json:"adjusted_close"`
	Volume        int64     `json:"volume"`
}

// EODResponse is a slice of EODData.
type EODResponse []EODData

// RealTimeQuote is the /real-time response. Delayed quotes on lower tiers.
type RealTimeQuote struct {
	Code          string  `json:"code"`
	Timestamp     int64   `json:"timestamp"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Close         float64 `json:"close"`
	PreviousClose float64 `json:"previousClose"`
	Change        float64 `json:"change"`
	ChangePct     float64 `json:"change_p"`
}

// IndicatorSymbols maps overseas indicator keys to EODHD symbols.
var IndicatorSymbols = map[string]string{
	"dji":    "DJI.INDX",
	"ndx":    "NDX.INDX",
	"spx":    "GSPC.INDX",
	"usdcnh": "USDCNH.FOREX",
}

// IndicatorNames holds display names for IndicatorSymbols keys.
var IndicatorNames = map[string]string{
	"dji":    "道琼斯工业指数",
	"ndx":    "纳斯达克100",
	"spx":    "标普500",
	"usdcnh": "美元/离岸人民币",
}
