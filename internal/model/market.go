package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ETF is one listed fund in the scan universe.
type ETF struct {
	Symbol string `json:"symbol"` // Yahoo ticker, e.g. 0056.TW
	Name   string `json:"name"`
}

// Code returns the exchange code without the market suffix.
func (e ETF) Code() string {
	if i := strings.IndexByte(e.Symbol, '.'); i > 0 {
		return e.Symbol[:i]
	}
	return e.Symbol
}

// Label renders the ETF the way the selector lists it: "0056.TW 元大高股息".
func (e ETF) Label() string {
	if e.Name == "" {
		return e.Symbol
	}
	return e.Symbol + " " + e.Name
}

// QuoteURL links to the public quote page for the symbol.
func (e ETF) QuoteURL() string {
	return "https://tw.stock.yahoo.com/quote/" + e.Symbol
}

// Quote is the last traded price for a symbol. A zero price means unavailable.
type Quote struct {
	Symbol    string          `json:"symbol"`
	LastPrice decimal.Decimal `json:"last_price"`
	Currency  string          `json:"currency,omitempty"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// Available reports whether the quote carries a usable price.
func (q Quote) Available() bool {
	return q.LastPrice.IsPositive()
}
