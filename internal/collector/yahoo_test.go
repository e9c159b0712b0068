package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ETFSentinel/internal/model"
)

const chartWithDividends = `{
  "chart": {
    "result": [{
      "meta": {"symbol": "0056.TW", "currency": "TWD", "regularMarketPrice": 36.15, "exchangeTimezoneName": "Asia/Taipei"},
      "timestamp": [1719792000, 1719878400],
      "events": {"dividends": {
        "1729036800": {"amount": 1.07, "date": 1729036800},
        "1721091600": {"amount": 1.0, "date": 1721091600}
      }},
      "indicators": {"quote": [{"close": [35.9, 36.15]}]}
    }],
    "error": null
  }
}`

const chartNoMarketPrice = `{
  "chart": {
    "result": [{
      "meta": {"symbol": "00878.TW", "currency": "TWD"},
      "timestamp": [1, 2, 3],
      "indicators": {"quote": [{"close": [21.5, 21.8, null]}]}
    }],
    "error": null
  }
}`

func newYahooServer(t *testing.T, body string, status int) (*YahooFetcher, *[]string) {
	t.Helper()
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.String())
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	f := NewYahooFetcher("")
	f.BaseURL = srv.URL
	return f, &paths
}

func TestYahooFetcher_FetchQuote(t *testing.T) {
	f, paths := newYahooServer(t, chartWithDividends, http.StatusOK)
	q, err := f.FetchQuote(context.Background(), "0056.TW")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.LastPrice.String() != "36.15" {
		t.Errorf("expected 36.15, got %s", q.LastPrice)
	}
	if q.Currency != "TWD" {
		t.Errorf("expected TWD, got %q", q.Currency)
	}
	if !strings.Contains((*paths)[0], "/v8/finance/chart/0056.TW") {
		t.Errorf("unexpected request %q", (*paths)[0])
	}
}

func TestYahooFetcher_FetchQuoteFallsBackToLastClose(t *testing.T) {
	f, _ := newYahooServer(t, chartNoMarketPrice, http.StatusOK)
	q, err := f.FetchQuote(context.Background(), "00878.TW")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.LastPrice.String() != "21.8" {
		t.Errorf("expected last non-null close 21.8, got %s", q.LastPrice)
	}
}

func TestYahooFetcher_FetchQuoteNoPrice(t *testing.T) {
	body := `{"chart":{"result":[{"meta":{"symbol":"X.TW"},"indicators":{"quote":[{"close":[null]}]}}],"error":null}}`
	f, _ := newYahooServer(t, body, http.StatusOK)
	if _, err := f.FetchQuote(context.Background(), "X.TW"); !errors.Is(err, ErrNoPrice) {
		t.Fatalf("expected ErrNoPrice, got %v", err)
	}
}

func TestYahooFetcher_FetchChart(t *testing.T) {
	f, paths := newYahooServer(t, chartWithDividends, http.StatusOK)
	q, events, err := f.FetchChart(context.Background(), "0056.TW")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.LastPrice.String() != "36.15" || len(events) != 2 {
		t.Errorf("unexpected chart: price %s, %d events", q.LastPrice, len(events))
	}
	if len(*paths) != 1 || !strings.Contains((*paths)[0], "range=2y") || !strings.Contains((*paths)[0], "events=div") {
		t.Errorf("expected one two-year chart request with dividends, got %v", *paths)
	}
}

func TestCollector_OneChartRequestPerSymbol(t *testing.T) {
	f, paths := newYahooServer(t, chartWithDividends, http.StatusOK)
	c := NewCollector(f, Options{Concurrency: 1, CacheTTL: time.Minute})
	now := time.Date(2025, 1, 1, 14, 0, 0, 0, MarketZone)

	for i := 0; i < 2; i++ {
		r, err := c.Evaluate(context.Background(), model.ETF{Symbol: "0056.TW", Name: "元大高股息"}, now)
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if r.Summary.Count != 2 {
			t.Errorf("expected 2 distributions in the window, got %d", r.Summary.Count)
		}
	}
	if len(*paths) != 1 {
		t.Errorf("expected a single provider request, got %d", len(*paths))
	}
}

func TestCollector_ChartWithoutPriceIsExcluded(t *testing.T) {
	body := `{"chart":{"result":[{"meta":{"symbol":"X.TW"},"indicators":{"quote":[{"close":[null]}]}}],"error":null}}`
	f, _ := newYahooServer(t, body, http.StatusOK)
	c := NewCollector(f, Options{Concurrency: 1})
	if _, err := c.Evaluate(context.Background(), model.ETF{Symbol: "X.TW"}, time.Now()); !errors.Is(err, ErrNoPrice) {
		t.Errorf("expected ErrNoPrice, got %v", err)
	}
}

func TestYahooFetcher_FetchDividends(t *testing.T) {
	f, paths := newYahooServer(t, chartWithDividends, http.StatusOK)
	events, err := f.FetchDividends(context.Background(), "0056.TW")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if !events[0].ExDate.Before(events[1].ExDate) {
		t.Error("expected chronological order")
	}
	if events[0].Amount.String() != "1" || events[1].Amount.String() != "1.07" {
		t.Errorf("unexpected amounts %s, %s", events[0].Amount, events[1].Amount)
	}
	if events[0].ExDate.Location().String() != events[1].ExDate.Location().String() {
		t.Error("expected all events in one location")
	}
	if !strings.Contains((*paths)[0], "events=div") {
		t.Errorf("expected dividend events requested, got %q", (*paths)[0])
	}
}

func TestYahooFetcher_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"http status", `{}`, http.StatusNotFound},
		{"api error", `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`, http.StatusOK},
		{"empty result", `{"chart":{"result":[],"error":null}}`, http.StatusOK},
		{"bad json", `{`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, _ := newYahooServer(t, tt.body, tt.status)
			if _, err := f.FetchDividends(context.Background(), "0056.TW"); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRESTFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/api/v1/quote":
			w.Write([]byte(`{"price": 27.5, "currency": "TWD"}`))
		case "/api/v1/dividends":
			w.Write([]byte(`[{"date": 1729036800, "amount": 0.5}, {"date": 1721091600, "amount": 0.45}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	f := NewRESTFetcher(srv.URL, "secret", "")
	q, err := f.FetchQuote(context.Background(), "0056.TW")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.LastPrice.String() != "27.5" {
		t.Errorf("expected 27.5, got %s", q.LastPrice)
	}
	events, err := f.FetchDividends(context.Background(), "0056.TW")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 || events[0].Amount.String() != "0.45" {
		t.Errorf("unexpected events %+v", events)
	}

	unauth := NewRESTFetcher(srv.URL, "", "")
	if _, err := unauth.FetchQuote(context.Background(), "0056.TW"); err == nil {
		t.Error("expected error without api key")
	}
}
