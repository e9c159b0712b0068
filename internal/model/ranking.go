package model

// Ranking is one row of the leaderboard: a priced ETF with its derived income figures.
type Ranking struct {
	ETF      ETF             `json:"etf"`
	Quote    Quote           `json:"quote"`
	Summary  DividendSummary `json:"summary"`
	Metrics  LotMetrics      `json:"metrics"`
	QuoteURL string          `json:"quote_url"`
}
