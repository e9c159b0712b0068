package collector

import (
	"context"
	"errors"
	"time"

	"ETFSentinel/internal/model"
)

// ErrNoPrice means the provider returned no usable last price.
var ErrNoPrice = errors.New("no price available")

// Fetcher defines the interface for fetching market data.
type Fetcher interface {
	FetchQuote(ctx context.Context, symbol string) (model.Quote, error)
	FetchDividends(ctx context.Context, symbol string) ([]model.DividendEvent, error)
	Name() string
}

// ChartFetcher is implemented by providers whose one response carries both the
// last price and the dividend history. The collector then spends a single
// request per symbol.
type ChartFetcher interface {
	FetchChart(ctx context.Context, symbol string) (model.Quote, []model.DividendEvent, error)
}

// MarketZone is the exchange time zone distribution dates are expressed in.
var MarketZone = loadZone("Asia/Taipei")

func loadZone(name string) *time.Location {
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	return time.FixedZone("CST", 8*3600)
}
