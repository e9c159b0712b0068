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

// RESTFetcher implements Fetcher against a self-hosted quote API.
type RESTFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewRESTFetcher creates a new fetcher with optional proxy support.
func NewRESTFetcher(baseURL, apiKey, proxyURL string) *RESTFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &RESTFetcher{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

func (f *RESTFetcher) Name() string { return "rest" }

// restDividend is the expected JSON shape of one distribution.
type restDividend struct {
	Date   int64   `json:"date"` // unix seconds
	Amount float64 `json:"amount"`
}

func (f *RESTFetcher) FetchQuote(ctx context.Context, symbol string) (model.Quote, error) {
	endpoint := fmt.Sprintf("%s/api/v1/quote?symbol=%s", f.BaseURL, url.QueryEscape(symbol))
	var result struct {
		Price    float64 `json:"price"`
		Currency string  `json:"currency"`
	}
	if err := f.getJSON(ctx, endpoint, &result); err != nil {
		return model.Quote{}, fmt.Errorf("fetch quote: %w", err)
	}
	if result.Price <= 0 {
		return model.Quote{}, fmt.Errorf("rest %s: %w", symbol, ErrNoPrice)
	}
	return model.Quote{
		Symbol:    symbol,
		LastPrice: decimal.NewFromFloat(result.Price),
		Currency:  result.Currency,
		FetchedAt: time.Now(),
	}, nil
}

func (f *RESTFetcher) FetchDividends(ctx context.Context, symbol string) ([]model.DividendEvent, error) {
	endpoint := fmt.Sprintf("%s/api/v1/dividends?symbol=%s", f.BaseURL, url.QueryEscape(symbol))
	var rows []restDividend
	if err := f.getJSON(ctx, endpoint, &rows); err != nil {
		return nil, fmt.Errorf("fetch dividends: %w", err)
	}
	events := make([]model.DividendEvent, len(rows))
	for i, r := range rows {
		events[i] = model.DividendEvent{
			ExDate: time.Unix(r.Date, 0).In(MarketZone),
			Amount: decimal.NewFromFloat(r.Amount),
		}
	}
	// Ensure chronological order
	sort.Slice(events, func(i, j int) bool { return events[i].ExDate.Before(events[j].ExDate) })
	return events, nil
}

func (f *RESTFetcher) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d, body: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
