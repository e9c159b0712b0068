package calculator

import (
	"github.com/shopspring/decimal"

	"ETFSentinel/internal/model"
)

var (
	// SharesPerLot is the Taiwan board lot.
	SharesPerLot = decimal.NewFromInt(1000)

	monthsPerYear = decimal.NewFromInt(12)
	hundred       = decimal.NewFromInt(100)
)

// ComputeLotMetrics scales per-share price and trailing dividends to one lot.
// An unpriced instrument yields 0.
func ComputeLotMetrics(price, annualPerShare decimal.Decimal) model.LotMetrics {
	annualPerLot := annualPerShare.Mul(SharesPerLot)
	yield := decimal.Zero
	if price.IsPositive() {
		yield = annualPerShare.Div(price).Mul(hundred)
	}
	return model.LotMetrics{
		PricePerShare:       price,
		PricePerLot:         price.Mul(SharesPerLot),
		AnnualIncomePerLot:  annualPerLot,
		MonthlyIncomePerLot: annualPerLot.Div(monthsPerYear),
		YieldPercent:        yield,
	}
}

// LotsPurchasable converts a cash amount to whole lots, truncating toward zero.
// The remainder is the cash left uninvested, in [0, pricePerLot).
func LotsPurchasable(cash, pricePerLot decimal.Decimal) (int64, decimal.Decimal) {
	if !cash.IsPositive() {
		return 0, decimal.Zero
	}
	if !pricePerLot.IsPositive() {
		return 0, cash
	}
	q, r := cash.QuoRem(pricePerLot, 0)
	return q.IntPart(), r
}

// BuildHolding turns a purchase intent into a holding of whole lots.
// The caller assigns ID and AddedAt.
func BuildHolding(etf model.ETF, cash decimal.Decimal, m model.LotMetrics) model.Holding {
	lots, leftover := LotsPurchasable(cash, m.PricePerLot)
	n := decimal.NewFromInt(lots)
	return model.Holding{
		Symbol:         etf.Symbol,
		Name:           etf.Name,
		Lots:           lots,
		PricePerLot:    m.PricePerLot,
		InvestedAmount: m.PricePerLot.Mul(n),
		Leftover:       leftover,
		MonthlyIncome:  m.MonthlyIncomePerLot.Mul(n),
	}
}
