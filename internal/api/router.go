package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"ETFSentinel/internal/portfolio"
	"ETFSentinel/internal/ranking"
	"ETFSentinel/internal/universe"
)

// Options configures the router.
type Options struct {
	AllowedOrigins    []string
	RequestsPerSecond float64 // 0 disables rate limiting
	Burst             int
	DefaultAmount     decimal.Decimal
	DefaultLTV        decimal.Decimal
	DefaultRate       decimal.Decimal
	ScanTimeout       time.Duration
}

// NewRouter creates and configures the HTTP router.
func NewRouter(sc *ranking.Scanner, reg *universe.Registry, pm *portfolio.Manager, opts Options) http.Handler {
	h := &Handler{scanner: sc, universe: reg, portfolio: pm, opts: opts}
	if h.opts.ScanTimeout == 0 {
		h.opts.ScanTimeout = 5 * time.Minute
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(NewCORS(opts.AllowedOrigins).Handler)
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		r.Use(RateLimit(rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/system/health", h.Health)

		r.Get("/universe", h.Universe)
		r.Post("/scan", h.Scan)

		r.Route("/etfs", func(r chi.Router) {
			r.Get("/", h.ListETFs)
			r.Get("/{symbol}", h.GetETF)
		})

		r.Route("/portfolio", func(r chi.Router) {
			r.Get("/", h.Portfolio)
			r.Delete("/", h.ClearPortfolio)
			r.Post("/holdings", h.AddHolding)
			r.Delete("/holdings/{id}", h.RemoveHolding)
			r.Get("/preview/{symbol}", h.Preview)
			r.Get("/leverage", h.Leverage)
		})
	})

	return r
}
