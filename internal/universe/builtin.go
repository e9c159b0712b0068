package universe

import (
	"strings"

	"ETFSentinel/internal/model"
)

// builtin is the curated list of popular listed ETFs: high dividend, market cap,
// bond and thematic funds.
var builtin = []model.ETF{
	{Symbol: "0056.TW", Name: "元大高股息"},
	{Symbol: "00878.TW", Name: "國泰永續高股息"},
	{Symbol: "00929.TW", Name: "復華台灣科技優息"},
	{Symbol: "00919.TW", Name: "群益台灣精選高息"},
	{Symbol: "00940.TW", Name: "元大台灣價值高息"},
	{Symbol: "00939.TW", Name: "統一台灣高息動能"},
	{Symbol: "00713.TW", Name: "元大台灣高息低波"},
	{Symbol: "0050.TW", Name: "元大台灣50"},
	{Symbol: "006208.TW", Name: "富邦台50"},
	{Symbol: "00922.TW", Name: "國泰台灣領袖50"},
	{Symbol: "00679B.TW", Name: "元大美債20年"},
	{Symbol: "00687B.TW", Name: "國泰20年美債"},
	{Symbol: "00937B.TW", Name: "群益ESG投等債20+"},
	{Symbol: "0052.TW", Name: "富邦科技"},
	{Symbol: "00830.TW", Name: "國泰費城半導體"},
	{Symbol: "00881.TW", Name: "國泰台灣5G+"},
	{Symbol: "00662.TW", Name: "富邦NASDAQ"},
	{Symbol: "00646.TW", Name: "元大S&P500"},
}

// Builtin returns a copy of the curated ETF list in display order.
func Builtin() []model.ETF {
	out := make([]model.ETF, len(builtin))
	copy(out, builtin)
	return out
}

// Search filters etfs by case-insensitive substring match on symbol or name.
// An empty query returns everything.
func Search(etfs []model.ETF, query string) []model.ETF {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		out := make([]model.ETF, len(etfs))
		copy(out, etfs)
		return out
	}
	var out []model.ETF
	for _, e := range etfs {
		if strings.Contains(strings.ToLower(e.Symbol), q) || strings.Contains(strings.ToLower(e.Name), q) {
			out = append(out, e)
		}
	}
	return out
}

// ParseOption splits a selector label such as "0056.TW 元大高股息" back into an ETF.
// A bare code gets the .TW suffix.
func ParseOption(label string) (model.ETF, bool) {
	label = strings.TrimSpace(label)
	if label == "" {
		return model.ETF{}, false
	}
	symbol, name, _ := strings.Cut(label, " ")
	return model.ETF{Symbol: NormalizeSymbol(symbol), Name: strings.TrimSpace(name)}, true
}

// NormalizeSymbol upper-cases a ticker and adds the .TW suffix when missing.
func NormalizeSymbol(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" || strings.Contains(s, ".") {
		return s
	}
	return s + ".TW"
}
