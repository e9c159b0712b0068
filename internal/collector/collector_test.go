package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ETFSentinel/internal/calculator"
	"ETFSentinel/internal/model"
)

var scanNow = time.Date(2025, 6, 30, 14, 0, 0, 0, MarketZone)

func quarterly(amount string) []model.DividendEvent {
	events := make([]model.DividendEvent, 4)
	for i := range events {
		events[i] = model.DividendEvent{
			ExDate: scanNow.AddDate(0, -3*i, -10),
			Amount: decimal.RequireFromString(amount),
		}
	}
	return events
}

func newMock() *MockFetcher {
	return &MockFetcher{
		Prices: map[string]float64{
			"0056.TW":  36.0,
			"00878.TW": 22.0,
			"0050.TW":  180.0,
			"00919.TW": 23.5,
		},
		Dividends: map[string][]model.DividendEvent{
			"0056.TW":  quarterly("0.9"),  // 3600/yr -> 300/mo
			"00878.TW": quarterly("0.45"), // 1800/yr -> 150/mo
			"0050.TW":  {{ExDate: scanNow.AddDate(0, -2, 0), Amount: decimal.RequireFromString("4")}},
		},
	}
}

var universe = []model.ETF{
	{Symbol: "00878.TW", Name: "國泰永續高股息"},
	{Symbol: "0056.TW", Name: "元大高股息"},
	{Symbol: "0050.TW", Name: "元大台灣50"},
	{Symbol: "00919.TW", Name: "群益台灣精選高息"},
}

func TestEvaluate(t *testing.T) {
	c := NewCollector(newMock(), Options{Concurrency: 1})
	r, err := c.Evaluate(context.Background(), universe[1], scanNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Summary.Frequency != model.FrequencyQuarterly {
		t.Errorf("expected Quarterly, got %s", r.Summary.Frequency)
	}
	if !r.Metrics.MonthlyIncomePerLot.Equal(decimal.NewFromInt(300)) {
		t.Errorf("expected 300/month, got %s", r.Metrics.MonthlyIncomePerLot)
	}
	if !r.Metrics.YieldPercent.Equal(decimal.NewFromInt(10)) {
		t.Errorf("expected 10%% yield, got %s", r.Metrics.YieldPercent)
	}
	if r.QuoteURL != "https://tw.stock.yahoo.com/quote/0056.TW" {
		t.Errorf("unexpected quote url %q", r.QuoteURL)
	}
}

func TestEvaluate_NoPriceIsExcluded(t *testing.T) {
	m := newMock()
	m.Prices["0056.TW"] = 0
	c := NewCollector(m, Options{Concurrency: 1})
	_, err := c.Evaluate(context.Background(), universe[1], scanNow)
	if !errors.Is(err, ErrNoPrice) {
		t.Fatalf("expected ErrNoPrice, got %v", err)
	}
}

func TestScan_SortsAndSkips(t *testing.T) {
	m := newMock()
	m.Errors = map[string]error{"00919.TW": errors.New("boom")}
	c := NewCollector(m, Options{Concurrency: 3})

	var mu sync.Mutex
	var seen []int
	res, err := c.Scan(context.Background(), universe, scanNow, func(done, total int, _ model.ETF) {
		mu.Lock()
		defer mu.Unlock()
		if total != len(universe) {
			t.Errorf("expected total %d, got %d", len(universe), total)
		}
		seen = append(seen, done)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"0050.TW", "0056.TW", "00878.TW"} // 333.33, 300, 150 per month
	if len(res.Rows) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(res.Rows))
	}
	for i, sym := range want {
		if res.Rows[i].ETF.Symbol != sym {
			t.Errorf("row %d: expected %s, got %s", i, sym, res.Rows[i].ETF.Symbol)
		}
	}
	if len(res.Skipped) != 1 || res.Skipped[0].ETF.Symbol != "00919.TW" {
		t.Errorf("expected 00919.TW skipped, got %+v", res.Skipped)
	}
	if len(seen) != len(universe) {
		t.Errorf("expected %d progress calls, got %d", len(universe), len(seen))
	}
}

func TestScan_MalformedDividendsSurface(t *testing.T) {
	m := newMock()
	m.Dividends["0056.TW"] = []model.DividendEvent{
		{ExDate: scanNow.AddDate(0, -1, 0), Amount: decimal.RequireFromString("-1")},
	}
	c := NewCollector(m, Options{Concurrency: 2})

	res, err := c.Scan(context.Background(), universe[:2], scanNow, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Skipped) != 1 {
		t.Fatalf("expected one skipped symbol, got %d", len(res.Skipped))
	}
	if !calculator.IsMalformed(res.Skipped[0].Err) {
		t.Errorf("expected malformed error, got %v", res.Skipped[0].Err)
	}
}

func TestScan_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewCollector(newMock(), Options{Concurrency: 2, RequestsPerSecond: 1})
	if _, err := c.Scan(ctx, universe, scanNow, nil); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestCollector_CachesWithinTTL(t *testing.T) {
	m := newMock()
	c := NewCollector(m, Options{Concurrency: 1, CacheTTL: time.Minute})

	for i := 0; i < 3; i++ {
		if _, err := c.Evaluate(context.Background(), universe[1], scanNow); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := m.Calls(); got != 2 {
		t.Errorf("expected 2 upstream calls (quote + dividends), got %d", got)
	}

	c.Invalidate("0056.TW")
	if _, err := c.Evaluate(context.Background(), universe[1], scanNow); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := m.Calls(); got != 4 {
		t.Errorf("expected refetch after invalidate, got %d calls", got)
	}
}

func TestSortByMonthlyIncome_TiesBySymbol(t *testing.T) {
	rows := []model.Ranking{
		{ETF: model.ETF{Symbol: "B"}, Metrics: model.LotMetrics{MonthlyIncomePerLot: decimal.NewFromInt(100)}},
		{ETF: model.ETF{Symbol: "A"}, Metrics: model.LotMetrics{MonthlyIncomePerLot: decimal.NewFromInt(100)}},
		{ETF: model.ETF{Symbol: "C"}, Metrics: model.LotMetrics{MonthlyIncomePerLot: decimal.NewFromInt(200)}},
	}
	SortByMonthlyIncome(rows)
	got := rows[0].ETF.Symbol + rows[1].ETF.Symbol + rows[2].ETF.Symbol
	if got != "CAB" {
		t.Errorf("expected CAB, got %s", got)
	}
}
