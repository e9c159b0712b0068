package portfolio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"
	"github.com/shopspring/decimal"

	"ETFSentinel/internal/calculator"
	"ETFSentinel/internal/model"
	"ETFSentinel/internal/recorder"
)

var (
	ErrUnknownSymbol      = errors.New("symbol not in universe")
	ErrNothingPurchasable = errors.New("amount does not cover one lot")
	ErrHoldingNotFound    = errors.New("holding not found")
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrInvalidLTV         = errors.New("ltv out of range")
	ErrInvalidRate        = errors.New("interest rate must not be negative")
)

// Evaluator prices a symbol and derives its lot metrics. Invalidate drops any
// cached market data so the next Evaluate goes to the provider.
type Evaluator interface {
	Evaluate(ctx context.Context, etf model.ETF, now time.Time) (model.Ranking, error)
	Invalidate(symbol string)
}

// Resolver maps a user-typed symbol onto the universe.
type Resolver interface {
	Lookup(symbol string) (model.ETF, bool)
}

// Limits bounds the leverage inputs a caller may ask for.
type Limits struct {
	MaxLTV decimal.Decimal
	Policy calculator.RiskPolicy
}

// Manager holds the simulated portfolio in memory with concurrency safety.
// Holdings are lost on restart.
type Manager struct {
	mu       sync.Mutex
	holdings []model.Holding
	eval     Evaluator
	resolver Resolver
	rec      recorder.Recorder
	limits   Limits
	now      func() time.Time
}

// NewManager creates an empty portfolio.
func NewManager(eval Evaluator, resolver Resolver, rec recorder.Recorder, limits Limits) *Manager {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Manager{
		eval:     eval,
		resolver: resolver,
		rec:      rec,
		limits:   limits,
		now:      time.Now,
	}
}

// Preview prices a symbol without buying it.
func (m *Manager) Preview(ctx context.Context, symbol string) (model.Ranking, error) {
	etf, ok := m.resolver.Lookup(symbol)
	if !ok {
		return model.Ranking{}, fmt.Errorf("%s: %w", etf.Symbol, ErrUnknownSymbol)
	}
	return m.eval.Evaluate(ctx, etf, m.now())
}

// Add spends cash on whole lots of symbol at the current price. Cash that does
// not fill a lot is reported as the holding's leftover.
func (m *Manager) Add(ctx context.Context, symbol string, cash decimal.Decimal) (model.Holding, error) {
	if !cash.IsPositive() {
		return model.Holding{}, ErrInvalidAmount
	}
	etf, ok := m.resolver.Lookup(symbol)
	if !ok {
		return model.Holding{}, fmt.Errorf("%s: %w", etf.Symbol, ErrUnknownSymbol)
	}
	// Purchases are priced from a fresh quote, never from the scan cache.
	m.eval.Invalidate(etf.Symbol)
	r, err := m.eval.Evaluate(ctx, etf, m.now())
	if err != nil {
		return model.Holding{}, err
	}

	h := calculator.BuildHolding(r.ETF, cash, r.Metrics)
	if h.Lots == 0 {
		return model.Holding{}, fmt.Errorf("%s at %s per lot: %w", r.ETF.Symbol, r.Metrics.PricePerLot.StringFixed(0), ErrNothingPurchasable)
	}
	h.ID = uuid.NewString()
	h.AddedAt = m.now()

	m.mu.Lock()
	m.holdings = append(m.holdings, h)
	summary := calculator.Aggregate(m.holdings)
	m.mu.Unlock()

	m.record("ADD", h, summary)
	log.Info().Str("symbol", h.Symbol).Int64("lots", h.Lots).Str("invested", h.InvestedAmount.String()).Msg("holding added")
	return h, nil
}

// Remove deletes one holding by id.
func (m *Manager) Remove(id string) (model.Holding, error) {
	m.mu.Lock()
	idx := -1
	for i, h := range m.holdings {
		if h.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return model.Holding{}, fmt.Errorf("%s: %w", id, ErrHoldingNotFound)
	}
	removed := m.holdings[idx]
	m.holdings = append(m.holdings[:idx], m.holdings[idx+1:]...)
	summary := calculator.Aggregate(m.holdings)
	m.mu.Unlock()

	m.record("REMOVE", removed, summary)
	return removed, nil
}

// Clear empties the portfolio and reports how many holdings were dropped.
func (m *Manager) Clear() int {
	m.mu.Lock()
	n := len(m.holdings)
	m.holdings = nil
	m.mu.Unlock()

	if n > 0 {
		m.record("CLEAR", model.Holding{}, model.Portfolio{})
	}
	return n
}

// Holdings returns a copy of the current holdings, oldest first.
func (m *Manager) Holdings() []model.Holding {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Holding(nil), m.holdings...)
}

// Summary aggregates the current holdings.
func (m *Manager) Summary() model.Portfolio {
	m.mu.Lock()
	defer m.mu.Unlock()
	return calculator.Aggregate(m.holdings)
}

// Leverage projects pledging the current portfolio at ltv percent and the
// given annual interest rate.
func (m *Manager) Leverage(ltv, rate decimal.Decimal) (model.LeverageProjection, error) {
	if ltv.IsNegative() || ltv.GreaterThan(m.limits.MaxLTV) {
		return model.LeverageProjection{}, fmt.Errorf("%s not in [0, %s]: %w", ltv, m.limits.MaxLTV, ErrInvalidLTV)
	}
	if rate.IsNegative() {
		return model.LeverageProjection{}, ErrInvalidRate
	}

	summary := m.Summary()
	proj := calculator.ProjectLeverage(calculator.LeverageInputFor(summary, ltv, rate), m.limits.Policy)
	if summary.TotalInvested.IsPositive() {
		if err := m.rec.RecordLeverage(&recorder.LeverageEvent{Portfolio: summary, Projection: proj}); err != nil {
			log.Error().Err(err).Msg("failed to record leverage projection")
		}
	}
	return proj, nil
}

func (m *Manager) record(eventType string, h model.Holding, p model.Portfolio) {
	if err := m.rec.RecordHolding(&recorder.HoldingEvent{EventType: eventType, Holding: h, Portfolio: p}); err != nil {
		log.Error().Err(err).Str("event", eventType).Msg("failed to record holding event")
	}
}
