package collector

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/phuslu/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"ETFSentinel/internal/calculator"
	"ETFSentinel/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	mu        sync.Mutex
	Prices    map[string]float64
	Dividends map[string][]model.DividendEvent
	Errors    map[string]error
	calls     int
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchQuote(_ context.Context, symbol string) (model.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if err := m.Errors[symbol]; err != nil {
		return model.Quote{}, err
	}
	p, ok := m.Prices[symbol]
	if !ok || p <= 0 {
		return model.Quote{}, fmt.Errorf("mock %s: %w", symbol, ErrNoPrice)
	}
	return model.Quote{Symbol: symbol, LastPrice: decimal.NewFromFloat(p), Currency: "TWD", FetchedAt: time.Now()}, nil
}

func (m *MockFetcher) FetchDividends(_ context.Context, symbol string) ([]model.DividendEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if err := m.Errors[symbol]; err != nil {
		return nil, err
	}
	return m.Dividends[symbol], nil
}

// Calls reports how many fetches reached the mock.
func (m *MockFetcher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Options tunes how hard the collector leans on the provider.
type Options struct {
	Concurrency       int
	RequestsPerSecond float64 // 0 means unlimited
	CacheTTL          time.Duration
}

// Collector fetches raw market data and runs it through the calculator.
type Collector struct {
	Fetcher     Fetcher
	concurrency int
	limiter     *rate.Limiter
	cache       *cache.Cache
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, opts Options) *Collector {
	c := &Collector{Fetcher: fetcher, concurrency: opts.Concurrency}
	if c.concurrency < 1 {
		c.concurrency = 1
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	c.limiter = rate.NewLimiter(limit, c.concurrency)
	if opts.CacheTTL > 0 {
		c.cache = cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}
	return c
}

// Skip records a symbol left out of a scan and why.
type Skip struct {
	ETF model.ETF
	Err error
}

// ScanResult is the ranked output of one scan.
type ScanResult struct {
	Rows    []model.Ranking
	Skipped []Skip
	TakenAt time.Time
}

// ProgressFunc is told about every finished symbol.
type ProgressFunc func(done, total int, etf model.ETF)

// Quote returns the cached or freshly fetched quote for symbol.
func (c *Collector) Quote(ctx context.Context, symbol string) (model.Quote, error) {
	key := "quote:" + symbol
	if q, ok := c.cached(key); ok {
		return q.(model.Quote), nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return model.Quote{}, err
	}
	q, err := c.Fetcher.FetchQuote(ctx, symbol)
	if err != nil {
		return model.Quote{}, err
	}
	if !q.Available() {
		return model.Quote{}, fmt.Errorf("%s: %w", symbol, ErrNoPrice)
	}
	c.store(key, q)
	return q, nil
}

func (c *Collector) dividends(ctx context.Context, symbol string) ([]model.DividendEvent, error) {
	key := "divs:" + symbol
	if d, ok := c.cached(key); ok {
		return d.([]model.DividendEvent), nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	events, err := c.Fetcher.FetchDividends(ctx, symbol)
	if err != nil {
		return nil, err
	}
	c.store(key, events)
	return events, nil
}

// marketData loads a symbol's quote and dividends, from cache when both are
// fresh. Chart providers are asked once; others once per half.
func (c *Collector) marketData(ctx context.Context, symbol string) (model.Quote, []model.DividendEvent, error) {
	if q, ok := c.cached("quote:" + symbol); ok {
		if d, ok := c.cached("divs:" + symbol); ok {
			return q.(model.Quote), d.([]model.DividendEvent), nil
		}
	}

	cf, ok := c.Fetcher.(ChartFetcher)
	if !ok {
		q, err := c.Quote(ctx, symbol)
		if err != nil {
			return model.Quote{}, nil, fmt.Errorf("quote: %w", err)
		}
		events, err := c.dividends(ctx, symbol)
		if err != nil {
			return model.Quote{}, nil, fmt.Errorf("dividends: %w", err)
		}
		return q, events, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return model.Quote{}, nil, err
	}
	q, events, err := cf.FetchChart(ctx, symbol)
	if err != nil {
		return model.Quote{}, nil, fmt.Errorf("chart: %w", err)
	}
	if !q.Available() {
		return model.Quote{}, nil, fmt.Errorf("chart: %s: %w", symbol, ErrNoPrice)
	}
	c.store("quote:"+symbol, q)
	c.store("divs:"+symbol, events)
	return q, events, nil
}

// Evaluate prices one ETF and derives its income figures as of now.
// Symbols without a price are rejected with ErrNoPrice rather than ranked at 0% yield.
func (c *Collector) Evaluate(ctx context.Context, etf model.ETF, now time.Time) (model.Ranking, error) {
	q, events, err := c.marketData(ctx, etf.Symbol)
	if err != nil {
		return model.Ranking{}, err
	}
	summary, err := calculator.SummarizeDividends(events, now)
	if err != nil {
		return model.Ranking{}, fmt.Errorf("summarize: %w", err)
	}
	return model.Ranking{
		ETF:      etf,
		Quote:    q,
		Summary:  summary,
		Metrics:  calculator.ComputeLotMetrics(q.LastPrice, summary.AnnualPerShare),
		QuoteURL: etf.QuoteURL(),
	}, nil
}

// Scan evaluates every ETF with bounded parallelism. A failing symbol is logged
// and skipped; only cancellation fails the scan.
func (c *Collector) Scan(ctx context.Context, etfs []model.ETF, now time.Time, progress ProgressFunc) (*ScanResult, error) {
	rows := make([]*model.Ranking, len(etfs))
	errs := make([]error, len(etfs))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, etf := range etfs {
		i, etf := i, etf
		g.Go(func() error {
			r, err := c.Evaluate(gctx, etf, now)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				errs[i] = err
			} else {
				rows[i] = &r
			}
			if progress != nil {
				progress(int(done.Add(1)), len(etfs), etf)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scan cancelled: %w", err)
	}

	result := &ScanResult{TakenAt: now}
	for i, etf := range etfs {
		if errs[i] != nil {
			if calculator.IsMalformed(errs[i]) {
				log.Error().Str("symbol", etf.Symbol).Err(errs[i]).Msg("malformed dividend data, skip symbol")
			} else {
				log.Warn().Str("symbol", etf.Symbol).Err(errs[i]).Msg("skip symbol")
			}
			result.Skipped = append(result.Skipped, Skip{ETF: etf, Err: errs[i]})
			continue
		}
		result.Rows = append(result.Rows, *rows[i])
	}
	SortByMonthlyIncome(result.Rows)

	log.Info().Int("ranked", len(result.Rows)).Int("skipped", len(result.Skipped)).
		Str("source", c.Fetcher.Name()).Msg("scan finished")
	return result, nil
}

// SortByMonthlyIncome orders rows by monthly income per lot, highest first, then by symbol.
func SortByMonthlyIncome(rows []model.Ranking) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].Metrics.MonthlyIncomePerLot, rows[j].Metrics.MonthlyIncomePerLot
		if !a.Equal(b) {
			return a.GreaterThan(b)
		}
		return rows[i].ETF.Symbol < rows[j].ETF.Symbol
	})
}

// Invalidate drops cached data for a symbol.
func (c *Collector) Invalidate(symbol string) {
	if c.cache == nil {
		return
	}
	c.cache.Delete("quote:" + symbol)
	c.cache.Delete("divs:" + symbol)
}

func (c *Collector) cached(key string) (interface{}, bool) {
	if c.cache == nil {
		return nil, false
	}
	return c.cache.Get(key)
}

func (c *Collector) store(key string, v interface{}) {
	if c.cache != nil {
		c.cache.SetDefault(key, v)
	}
}
