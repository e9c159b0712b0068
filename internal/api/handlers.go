package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"ETFSentinel/internal/calculator"
	"ETFSentinel/internal/collector"
	"ETFSentinel/internal/model"
	"ETFSentinel/internal/portfolio"
	"ETFSentinel/internal/ranking"
	"ETFSentinel/internal/universe"
)

// Handler serves the dashboard endpoints.
type Handler struct {
	scanner   *ranking.Scanner
	universe  *universe.Registry
	portfolio *portfolio.Manager
	opts      Options
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status       string     `json:"status"`
	UniverseSize int        `json:"universe_size"`
	Ranked       int        `json:"ranked"`
	LastScan     *time.Time `json:"last_scan,omitempty"`
}

// Health reports liveness and how fresh the leaderboard is.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	snap := h.scanner.Board.Snapshot()
	resp := HealthResponse{
		Status:       "healthy",
		UniverseSize: len(h.universe.List()),
		Ranked:       len(snap.Rows),
	}
	if snap.RunID != "" {
		resp.LastScan = &snap.TakenAt
	}
	RespondJSON(w, http.StatusOK, resp)
}

// UniverseResponse lists the symbols a scan covers.
type UniverseResponse struct {
	Source    string      `json:"source"`
	UpdatedAt time.Time   `json:"updated_at"`
	ETFs      []model.ETF `json:"etfs"`
}

// Universe handles GET /api/universe?q=.
func (h *Handler) Universe(w http.ResponseWriter, r *http.Request) {
	etfs := h.universe.Search(r.URL.Query().Get("q"))
	if etfs == nil {
		etfs = []model.ETF{}
	}
	RespondJSON(w, http.StatusOK, UniverseResponse{
		Source:    h.universe.SourceName(),
		UpdatedAt: h.universe.UpdatedAt(),
		ETFs:      etfs,
	})
}

// RankingResponse is a page of the leaderboard.
type RankingResponse struct {
	RunID   string          `json:"run_id"`
	TakenAt time.Time       `json:"taken_at"`
	Total   int             `json:"total"`
	Rows    []model.Ranking `json:"rows"`
	Skipped []SkipResponse  `json:"skipped,omitempty"`
}

// SkipResponse names a symbol a scan left out.
type SkipResponse struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// ListETFs handles GET /api/etfs?q=&limit=.
func (h *Handler) ListETFs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			RespondError(w, http.StatusBadRequest, "invalid limit", v)
			return
		}
		limit = n
	}

	snap := h.scanner.Board.Snapshot()
	rows := h.scanner.Board.Search(r.URL.Query().Get("q"))
	total := len(rows)
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	if rows == nil {
		rows = []model.Ranking{}
	}
	RespondJSON(w, http.StatusOK, RankingResponse{RunID: snap.RunID, TakenAt: snap.TakenAt, Total: total, Rows: rows})
}

// ETFResponse is one symbol's detail with its leaderboard position (0 when unranked).
type ETFResponse struct {
	Rank    int           `json:"rank"`
	Ranking model.Ranking `json:"ranking"`
}

// GetETF handles GET /api/etfs/{symbol}. Unranked symbols are priced on demand.
func (h *Handler) GetETF(w http.ResponseWriter, r *http.Request) {
	etf, _ := h.universe.Lookup(chi.URLParam(r, "symbol"))
	if row, rank, ok := h.scanner.Board.Lookup(etf.Symbol); ok {
		RespondJSON(w, http.StatusOK, ETFResponse{Rank: rank, Ranking: row})
		return
	}
	row, err := h.portfolio.Preview(r.Context(), etf.Symbol)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, ETFResponse{Ranking: row})
}

// Scan handles POST /api/scan: a synchronous rescan of the universe.
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.opts.ScanTimeout)
	defer cancel()

	res, err := h.scanner.Run(ctx, nil)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	skipped := make([]SkipResponse, len(res.Skipped))
	for i, s := range res.Skipped {
		skipped[i] = SkipResponse{Symbol: s.ETF.Symbol, Name: s.ETF.Name, Reason: s.Err.Error()}
	}
	RespondJSON(w, http.StatusOK, RankingResponse{
		RunID:   res.Snapshot.RunID,
		TakenAt: res.Snapshot.TakenAt,
		Total:   len(res.Snapshot.Rows),
		Rows:    res.Snapshot.Rows,
		Skipped: skipped,
	})
}

// PortfolioResponse lists holdings with their totals.
type PortfolioResponse struct {
	Holdings []model.Holding `json:"holdings"`
	Summary  model.Portfolio `json:"summary"`
}

func (h *Handler) portfolioResponse() PortfolioResponse {
	holdings := h.portfolio.Holdings()
	if holdings == nil {
		holdings = []model.Holding{}
	}
	return PortfolioResponse{Holdings: holdings, Summary: h.portfolio.Summary()}
}

// Portfolio handles GET /api/portfolio.
func (h *Handler) Portfolio(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.portfolioResponse())
}

// AddHoldingRequest is the body of POST /api/portfolio/holdings.
type AddHoldingRequest struct {
	Symbol string          `json:"symbol"`
	Amount decimal.Decimal `json:"amount"` // TWD; zero uses the configured default
}

// AddHolding handles POST /api/portfolio/holdings.
func (h *Handler) AddHolding(w http.ResponseWriter, r *http.Request) {
	var req AddHoldingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Symbol == "" {
		RespondError(w, http.StatusBadRequest, "symbol is required", nil)
		return
	}
	if req.Amount.IsZero() {
		req.Amount = h.opts.DefaultAmount
	}

	holding, err := h.portfolio.Add(r.Context(), req.Symbol, req.Amount)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, holding)
}

// RemoveHolding handles DELETE /api/portfolio/holdings/{id}.
func (h *Handler) RemoveHolding(w http.ResponseWriter, r *http.Request) {
	removed, err := h.portfolio.Remove(chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, removed)
}

// ClearPortfolio handles DELETE /api/portfolio.
func (h *Handler) ClearPortfolio(w http.ResponseWriter, r *http.Request) {
	n := h.portfolio.Clear()
	RespondJSON(w, http.StatusOK, map[string]int{"cleared": n})
}

// Preview handles GET /api/portfolio/preview/{symbol}.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	row, err := h.portfolio.Preview(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, row)
}

// LeverageResponse pairs the pledged portfolio with its projection.
type LeverageResponse struct {
	Summary    model.Portfolio          `json:"summary"`
	Projection model.LeverageProjection `json:"projection"`
}

// Leverage handles GET /api/portfolio/leverage?ltv=&rate=.
func (h *Handler) Leverage(w http.ResponseWriter, r *http.Request) {
	ltv, err := decimalParam(r, "ltv", h.opts.DefaultLTV)
	if err != nil {
		RespondError(w, http.StatusBadRequest, "invalid ltv", err.Error())
		return
	}
	rate, err := decimalParam(r, "rate", h.opts.DefaultRate)
	if err != nil {
		RespondError(w, http.StatusBadRequest, "invalid rate", err.Error())
		return
	}
	proj, err := h.portfolio.Leverage(ltv, rate)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, LeverageResponse{Summary: h.portfolio.Summary(), Projection: proj})
}

func decimalParam(r *http.Request, name string, def decimal.Decimal) (decimal.Decimal, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return decimal.NewFromString(v)
}

// respondDomainError maps package sentinel errors onto HTTP statuses.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, portfolio.ErrUnknownSymbol), errors.Is(err, portfolio.ErrHoldingNotFound):
		RespondError(w, http.StatusNotFound, "not found", err.Error())
	case errors.Is(err, portfolio.ErrNothingPurchasable), errors.Is(err, portfolio.ErrInvalidAmount),
		errors.Is(err, portfolio.ErrInvalidLTV), errors.Is(err, portfolio.ErrInvalidRate):
		RespondError(w, http.StatusUnprocessableEntity, "invalid request", err.Error())
	case errors.Is(err, collector.ErrNoPrice):
		RespondError(w, http.StatusBadGateway, "no price available", err.Error())
	case calculator.IsMalformed(err):
		RespondError(w, http.StatusBadGateway, "malformed dividend data", err.Error())
	case errors.Is(err, ranking.ErrScanInProgress):
		RespondError(w, http.StatusConflict, "scan in progress", nil)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		RespondError(w, http.StatusGatewayTimeout, "request timed out", err.Error())
	default:
		RespondError(w, http.StatusBadGateway, "upstream error", err.Error())
	}
}
