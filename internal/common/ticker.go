package common

import (
	"strings"
)

// Ticker represents a parsed exchange-qualified security code.
// Format: EXCHANGE:CODE (e.g., "SH:600519", "SZ:000858", "HK:00700")
type Ticker struct {
	// Exchange is the exchange code ("SH", "SZ", "BJ", "HK")
	Exchange string
	// Code is the security code (e.g., "600519")
	Code string
	// Raw is the ticker as given
	Raw string
}

// exchangeToSecIDMarket maps exchange codes to East Money market prefixes.
var exchangeToSecIDMarket = map[string]string{
	"SH": "1",
	"SZ": "0",
	"BJ": "0",
	"HK": "116",
}

// ParseTicker parses a security code.
// Supports formats:
//   - "SH:600519" or "sh600519" -> Exchange="SH", Code="600519"
//   - "600519.SH" -> Exchange="SH", Code="600519"
//   - "600519" -> exchange inferred from the leading digit
//   - "00700" -> Exchange="HK" (five digits)
func ParseTicker(ticker string) Ticker {
	raw := ticker
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return Ticker{}
	}

	if idx := strings.Index(ticker, ":"); idx > 0 {
		return Ticker{Exchange: ticker[:idx], Code: ticker[idx+1:], Raw: raw}
	}

	if idx := strings.LastIndex(ticker, "."); idx > 0 {
		if _, ok := exchangeToSecIDMarket[ticker[idx+1:]]; ok {
			return Ticker{Exchange: ticker[idx+1:], Code: ticker[:idx], Raw: raw}
		}
	}

	if len(ticker) > 2 {
		if _, ok := exchangeToSecIDMarket[ticker[:2]]; ok && isDigits(ticker[2:]) {
			return Ticker{Exchange: ticker[:2], Code: ticker[2:], Raw: raw}
		}
	}

	return Ticker{Exchange: inferExchange(ticker), Code: ticker, Raw: raw}
}

func inferExchange(code string) string {
	if !isDigits(code) {
		return ""
	}
	if len(code) == 5 {
		return "HK"
	}
	switch code[0] {
	case '6', '9', '5':
		return "SH"
	case '0', '1', '2', '3':
		return "SZ"
	case '4', '8':
		return "BJ"
	}
	return ""
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// String returns the full exchange-qualified ticker string.
func (t Ticker) String() string {
	if t.Exchange == "" || t.Code == "" {
		return t.Code
	}
	return t.Exchange + ":" + t.Code
}

// SecID returns the East Money quote identifier ("1.600519").
func (t Ticker) SecID() string {
	market, ok := exchangeToSecIDMarket[t.Exchange]
	if !ok || t.Code == "" {
		return ""
	}
	return market + "." + t.Code
}
