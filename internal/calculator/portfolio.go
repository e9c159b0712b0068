package calculator

import (
	"github.com/shopspring/decimal"

	"ETFSentinel/internal/model"
)

// Aggregate sums holdings into portfolio totals. Order does not matter.
func Aggregate(holdings []model.Holding) model.Portfolio {
	invested := decimal.Zero
	monthly := decimal.Zero
	for _, h := range holdings {
		invested = invested.Add(h.InvestedAmount)
		monthly = monthly.Add(h.MonthlyIncome)
	}
	return model.Portfolio{
		TotalInvested:       invested,
		TotalMonthlyIncome:  monthly,
		BlendedYieldPercent: BlendedYield(invested, monthly),
	}
}

// BlendedYield annualizes monthly income over the invested amount, 0 when nothing is invested.
func BlendedYield(invested, monthly decimal.Decimal) decimal.Decimal {
	if !invested.IsPositive() {
		return decimal.Zero
	}
	return monthly.Mul(monthsPerYear).Div(invested).Mul(hundred)
}
