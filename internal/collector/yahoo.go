package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"ETFSentinel/internal/model"
)

const yahooBaseURL = "https://query1.finance.yahoo.com"

// YahooFetcher implements Fetcher using the Yahoo Finance chart API.
type YahooFetcher struct {
	BaseURL string
	Client  *http.Client
}

// NewYahooFetcher creates a new Yahoo Finance fetcher with optional proxy support.
func NewYahooFetcher(proxyURL string) *YahooFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &YahooFetcher{
		BaseURL: yahooBaseURL,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol               string   `json:"symbol"`
				Currency             string   `json:"currency"`
				RegularMarketPrice   *float64 `json:"regularMarketPrice"`
				ExchangeTimezoneName string   `json:"exchangeTimezoneName"`
			} `json:"meta"`
			Timestamp []int64 `json:"timestamp"`
			Events    struct {
				Dividends map[string]struct {
					Amount float64 `json:"amount"`
					Date   int64   `json:"date"`
				} `json:"dividends"`
			} `json:"events"`
			Indicators struct {
				Quote []struct {
					Close []interface{} `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func toFloat(v interface{}) float64 {
	if v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

// fetchChart requests two years of daily bars with dividend events. The same
// response carries the last price, so one call serves both halves of a symbol.
func (f *YahooFetcher) fetchChart(ctx context.Context, symbol string) (*yahooChart, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=2y&events=div", f.BaseURL, url.PathEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Accept", "application/json")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, string(body))
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, fmt.Errorf("yahoo: no data returned for %s", symbol)
	}
	return &chart, nil
}

// FetchChart returns the quote and the dividend history from a single chart call.
func (f *YahooFetcher) FetchChart(ctx context.Context, symbol string) (model.Quote, []model.DividendEvent, error) {
	chart, err := f.fetchChart(ctx, symbol)
	if err != nil {
		return model.Quote{}, nil, err
	}
	q, err := chartQuote(chart, symbol)
	if err != nil {
		return model.Quote{}, nil, err
	}
	return q, chartDividends(chart), nil
}

// FetchQuote returns the regular market price, falling back to the last non-null close.
func (f *YahooFetcher) FetchQuote(ctx context.Context, symbol string) (model.Quote, error) {
	chart, err := f.fetchChart(ctx, symbol)
	if err != nil {
		return model.Quote{}, err
	}
	return chartQuote(chart, symbol)
}

// FetchDividends returns two years of distributions in exchange-local time, oldest first.
func (f *YahooFetcher) FetchDividends(ctx context.Context, symbol string) ([]model.DividendEvent, error) {
	chart, err := f.fetchChart(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return chartDividends(chart), nil
}

func chartQuote(chart *yahooChart, symbol string) (model.Quote, error) {
	result := chart.Chart.Result[0]

	var price float64
	if result.Meta.RegularMarketPrice != nil {
		price = *result.Meta.RegularMarketPrice
	}
	if price <= 0 && len(result.Indicators.Quote) > 0 {
		closes := result.Indicators.Quote[0].Close
		for i := len(closes) - 1; i >= 0; i-- {
			if c := toFloat(closes[i]); c > 0 {
				price = c
				break
			}
		}
	}
	if price <= 0 {
		return model.Quote{}, fmt.Errorf("yahoo %s: %w", symbol, ErrNoPrice)
	}

	return model.Quote{
		Symbol:    symbol,
		LastPrice: decimal.NewFromFloat(price),
		Currency:  result.Meta.Currency,
		FetchedAt: time.Now(),
	}, nil
}

func chartDividends(chart *yahooChart) []model.DividendEvent {
	result := chart.Chart.Result[0]

	loc := MarketZone
	if tz := result.Meta.ExchangeTimezoneName; tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}

	events := make([]model.DividendEvent, 0, len(result.Events.Dividends))
	for _, d := range result.Events.Dividends {
		events = append(events, model.DividendEvent{
			ExDate: time.Unix(d.Date, 0).In(loc),
			Amount: decimal.NewFromFloat(d.Amount),
		})
	}
	sort.Slice(events, func(i, j int) bool { return events[i].ExDate.Before(events[j].ExDate) })
	return events
}
