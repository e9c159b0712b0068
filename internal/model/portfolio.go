package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// LotMetrics are the per-lot (1,000 share) income figures for one symbol.
type LotMetrics struct {
	PricePerShare       decimal.Decimal `json:"price_per_share"`
	PricePerLot         decimal.Decimal `json:"price_per_lot"`
	AnnualIncomePerLot  decimal.Decimal `json:"annual_income_per_lot"`
	MonthlyIncomePerLot decimal.Decimal `json:"monthly_income_per_lot"`
	YieldPercent        decimal.Decimal `json:"yield_percent"`
}

// Holding is a committed purchase of whole lots.
type Holding struct {
	ID             string          `json:"id"`
	Symbol         string          `json:"symbol"`
	Name           string          `json:"name"`
	Lots           int64           `json:"lots"`
	PricePerLot    decimal.Decimal `json:"price_per_lot"`
	InvestedAmount decimal.Decimal `json:"invested_amount"`
	Leftover       decimal.Decimal `json:"leftover"` // cash that did not fill a lot
	MonthlyIncome  decimal.Decimal `json:"monthly_income"`
	AddedAt        time.Time       `json:"added_at"`
}

// Portfolio is the transient aggregate of the current holdings.
type Portfolio struct {
	TotalInvested       decimal.Decimal `json:"total_invested"`
	TotalMonthlyIncome  decimal.Decimal `json:"total_monthly_income"`
	BlendedYieldPercent decimal.Decimal `json:"blended_yield_percent"`
}

// RiskBand classifies a maintenance ratio.
type RiskBand string

const (
	RiskNone    RiskBand = "NONE" // no loan taken
	RiskDanger  RiskBand = "DANGER"
	RiskCaution RiskBand = "CAUTION"
	RiskSafe    RiskBand = "SAFE"
)

// Label is the short Traditional Chinese wording used in reports.
func (b RiskBand) Label() string {
	switch b {
	case RiskDanger:
		return "危險"
	case RiskCaution:
		return "注意"
	case RiskSafe:
		return "安全"
	default:
		return "無借款"
	}
}

// LeverageProjection is the outcome of pledging a portfolio and reinvesting the loan.
type LeverageProjection struct {
	LTVPercent          decimal.Decimal `json:"ltv_percent"`
	InterestRatePercent decimal.Decimal `json:"interest_rate_percent"`
	MaxLoan             decimal.Decimal `json:"max_loan"`
	MonthlyInterest     decimal.Decimal `json:"monthly_interest"`
	MonthlyIncomeGain   decimal.Decimal `json:"monthly_income_gain"`
	NetMonthlyGain      decimal.Decimal `json:"net_monthly_gain"` // may be negative
	FinalMonthlyIncome  decimal.Decimal `json:"final_monthly_income"`
	MaintenanceRatio    decimal.Decimal `json:"maintenance_ratio_percent"`
	SpreadPercent       decimal.Decimal `json:"spread_percent"`
	Band                RiskBand        `json:"band"`
}
