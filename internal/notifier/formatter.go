package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"ETFSentinel/internal/model"
)

var printer = message.NewPrinter(language.English)

// TWD renders an amount as whole dollars with thousands separators: 1234567.8 -> "1,234,568".
func TWD(d decimal.Decimal) string {
	return printer.Sprintf("%d", d.Round(0).IntPart())
}

// Percent renders a percentage with two decimals.
func Percent(d decimal.Decimal) string {
	return d.StringFixed(2) + "%"
}

func signedTWD(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-" + TWD(d.Neg())
	}
	return "+" + TWD(d)
}

func etfLink(e model.ETF, url string) string {
	return fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(url), html.EscapeString(e.Label()))
}

// FormatRanking formats the top rows of a scan into a Telegram message.
func FormatRanking(rows []model.Ranking, takenAt time.Time, skipped int) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 <b>ETF 月配息排行</b> | %s\n", takenAt.Format("2006-01-02 15:04")))
	b.WriteString("依每張月均配息排序\n\n")

	if len(rows) == 0 {
		b.WriteString("尚無資料，請先執行 /scan\n")
		return b.String()
	}
	for i, r := range rows {
		b.WriteString(fmt.Sprintf("%d. %s\n", i+1, etfLink(r.ETF, r.QuoteURL)))
		b.WriteString(fmt.Sprintf("   股價 %s | 月配/張 $%s | 殖利率 %s\n",
			r.Quote.LastPrice.StringFixed(2), TWD(r.Metrics.MonthlyIncomePerLot), Percent(r.Metrics.YieldPercent)))
		b.WriteString(fmt.Sprintf("   %s\n", html.EscapeString(r.Summary.Display())))
	}
	if skipped > 0 {
		b.WriteString(fmt.Sprintf("\n⚠️ %d 檔無法取得報價，已略過\n", skipped))
	}
	return b.String()
}

// FormatETF formats a single symbol's detail card. rank is 1-based, 0 when unranked.
func FormatETF(r model.Ranking, rank int) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🔎 <b>%s</b>\n", etfLink(r.ETF, r.QuoteURL)))
	if rank > 0 {
		b.WriteString(fmt.Sprintf("排名: 第 %d 名\n", rank))
	}
	b.WriteString(fmt.Sprintf("股價: %s\n", r.Quote.LastPrice.StringFixed(2)))
	b.WriteString(fmt.Sprintf("一張成本: $%s\n", TWD(r.Metrics.PricePerLot)))
	b.WriteString(fmt.Sprintf("近一年配息/股: %s\n", r.Summary.AnnualPerShare.StringFixed(2)))
	b.WriteString(fmt.Sprintf("年配/張: $%s | 月配/張: $%s\n", TWD(r.Metrics.AnnualIncomePerLot), TWD(r.Metrics.MonthlyIncomePerLot)))
	b.WriteString(fmt.Sprintf("殖利率: %s\n", Percent(r.Metrics.YieldPercent)))
	b.WriteString(fmt.Sprintf("配息紀錄: %s\n", html.EscapeString(r.Summary.Display())))
	return b.String()
}

// FormatHoldingAdded confirms a purchase.
func FormatHoldingAdded(h model.Holding) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("✅ 已加入 <b>%s %s</b>\n", html.EscapeString(h.Symbol), html.EscapeString(h.Name)))
	b.WriteString(fmt.Sprintf("買進 %d 張，投入 $%s\n", h.Lots, TWD(h.InvestedAmount)))
	if h.Leftover.IsPositive() {
		b.WriteString(fmt.Sprintf("剩餘現金 $%s\n", TWD(h.Leftover)))
	}
	b.WriteString(fmt.Sprintf("月配息 +$%s\n", TWD(h.MonthlyIncome)))
	b.WriteString(fmt.Sprintf("編號: <code>%s</code>\n", h.ID))
	return b.String()
}

// FormatPortfolio lists the holdings and their totals.
func FormatPortfolio(holdings []model.Holding, p model.Portfolio) string {
	var b strings.Builder
	b.WriteString("💼 <b>模擬存股組合</b>\n\n")
	if len(holdings) == 0 {
		b.WriteString("目前沒有持股，使用 /add 代號 金額 加入\n")
		return b.String()
	}
	for _, h := range holdings {
		b.WriteString(fmt.Sprintf("• %s %s | %d 張 | $%s | 月配 $%s\n",
			html.EscapeString(h.Symbol), html.EscapeString(h.Name), h.Lots, TWD(h.InvestedAmount), TWD(h.MonthlyIncome)))
		b.WriteString(fmt.Sprintf("  <code>%s</code>\n", h.ID))
	}
	b.WriteString("  ─────────────────\n")
	b.WriteString(fmt.Sprintf("總投入: $%s\n", TWD(p.TotalInvested)))
	b.WriteString(fmt.Sprintf("每月被動收入: $%s\n", TWD(p.TotalMonthlyIncome)))
	b.WriteString(fmt.Sprintf("組合殖利率: %s\n", Percent(p.BlendedYieldPercent)))
	return b.String()
}

// FormatLeverage reports a pledge projection against the current portfolio.
func FormatLeverage(p model.Portfolio, proj model.LeverageProjection) string {
	var b strings.Builder
	b.WriteString("🏦 <b>質押槓桿試算</b>\n\n")
	if !p.TotalInvested.IsPositive() {
		b.WriteString("組合為空，請先加入持股\n")
		return b.String()
	}
	b.WriteString(fmt.Sprintf("質押成數: %s%% | 借款利率: %s%%\n", proj.LTVPercent.String(), proj.InterestRatePercent.String()))
	b.WriteString(fmt.Sprintf("可借金額: $%s\n", TWD(proj.MaxLoan)))
	b.WriteString(fmt.Sprintf("每月利息: -$%s\n", TWD(proj.MonthlyInterest)))
	b.WriteString(fmt.Sprintf("加碼月配: +$%s\n", TWD(proj.MonthlyIncomeGain)))
	b.WriteString(fmt.Sprintf("每月淨增: %s\n", signedTWD(proj.NetMonthlyGain)))
	b.WriteString(fmt.Sprintf("槓桿後月收入: $%s (原 $%s)\n", TWD(proj.FinalMonthlyIncome), TWD(p.TotalMonthlyIncome)))
	b.WriteString(fmt.Sprintf("利差: %s\n", Percent(proj.SpreadPercent)))

	if proj.Band == model.RiskNone {
		b.WriteString("維持率: - (未借款)\n")
		return b.String()
	}
	icon := map[model.RiskBand]string{model.RiskDanger: "🔴", model.RiskCaution: "🟡", model.RiskSafe: "🟢"}[proj.Band]
	b.WriteString(fmt.Sprintf("維持率: %s %s %s\n", Percent(proj.MaintenanceRatio), icon, proj.Band.Label()))
	if proj.NetMonthlyGain.IsNegative() {
		b.WriteString("\n⚠️ 借款利率高於組合殖利率，槓桿為負收益\n")
	}
	return b.String()
}

// FormatError formats an error alert message.
func FormatError(where string, err error) string {
	return fmt.Sprintf("🚨 <b>ETFSentinel 錯誤</b>\n\n%s: %s", html.EscapeString(where), html.EscapeString(err.Error()))
}
