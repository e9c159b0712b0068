package calculator

import (
	"errors"

	"github.com/shopspring/decimal"

	"ETFSentinel/internal/model"
)

// RiskPolicy holds the maintenance-ratio thresholds, in percent.
// Ratios below DangerBelow are Danger, below CautionBelow are Caution, the rest Safe.
type RiskPolicy struct {
	DangerBelow  decimal.Decimal
	CautionBelow decimal.Decimal
}

// DefaultRiskPolicy matches the broker convention of a 130% margin call line.
var DefaultRiskPolicy = RiskPolicy{
	DangerBelow:  decimal.NewFromInt(130),
	CautionBelow: decimal.NewFromInt(160),
}

// Validate checks that the thresholds are positive and ordered.
func (p RiskPolicy) Validate() error {
	if !p.DangerBelow.IsPositive() {
		return errors.New("danger threshold must be positive")
	}
	if p.CautionBelow.LessThan(p.DangerBelow) {
		return errors.New("caution threshold must not be below danger threshold")
	}
	return nil
}

// Band classifies a maintenance ratio.
func (p RiskPolicy) Band(ratio decimal.Decimal) model.RiskBand {
	switch {
	case ratio.LessThan(p.DangerBelow):
		return model.RiskDanger
	case ratio.LessThan(p.CautionBelow):
		return model.RiskCaution
	default:
		return model.RiskSafe
	}
}

// LeverageInput carries the five values a projection depends on. All are percents or TWD.
type LeverageInput struct {
	TotalInvested       decimal.Decimal
	BlendedYieldPercent decimal.Decimal
	TotalMonthlyIncome  decimal.Decimal
	LTVPercent          decimal.Decimal
	AnnualRatePercent   decimal.Decimal
}

// LeverageInputFor builds the input for pledging portfolio p.
func LeverageInputFor(p model.Portfolio, ltv, rate decimal.Decimal) LeverageInput {
	return LeverageInput{
		TotalInvested:       p.TotalInvested,
		BlendedYieldPercent: p.BlendedYieldPercent,
		TotalMonthlyIncome:  p.TotalMonthlyIncome,
		LTVPercent:          ltv,
		AnnualRatePercent:   rate,
	}
}

// ProjectLeverage borrows against the portfolio at the given LTV and reinvests the
// loan into the same mix. The net gain is reported as is, including when negative.
func ProjectLeverage(in LeverageInput, policy RiskPolicy) model.LeverageProjection {
	maxLoan := in.TotalInvested.Mul(in.LTVPercent).Div(hundred).Floor()
	interest := maxLoan.Mul(in.AnnualRatePercent).Div(hundred).Div(monthsPerYear)
	gain := maxLoan.Mul(in.BlendedYieldPercent).Div(hundred).Div(monthsPerYear)
	net := gain.Sub(interest)

	out := model.LeverageProjection{
		LTVPercent:          in.LTVPercent,
		InterestRatePercent: in.AnnualRatePercent,
		MaxLoan:             maxLoan,
		MonthlyInterest:     interest,
		MonthlyIncomeGain:   gain,
		NetMonthlyGain:      net,
		FinalMonthlyIncome:  in.TotalMonthlyIncome.Add(net),
		MaintenanceRatio:    decimal.Zero,
		SpreadPercent:       in.BlendedYieldPercent.Sub(in.AnnualRatePercent),
		Band:                model.RiskNone,
	}
	if maxLoan.IsPositive() {
		out.MaintenanceRatio = in.TotalInvested.Add(maxLoan).Div(maxLoan).Mul(hundred)
		out.Band = policy.Band(out.MaintenanceRatio)
	}
	return out
}
