package calculator

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ETFSentinel/internal/model"
)

// TrailingWindow is the look-back used to annualize distributions.
const TrailingWindow = 365 * 24 * time.Hour

var (
	ErrNegativeAmount = errors.New("negative dividend amount")
	ErrMissingDate    = errors.New("dividend event has no ex-date")
	ErrZoneMismatch   = errors.New("dividend dates mix time zones")
)

// IsMalformed reports whether err marks bad upstream dividend data.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrNegativeAmount) || errors.Is(err, ErrMissingDate) || errors.Is(err, ErrZoneMismatch)
}

// ClassifyFrequency tags a payout schedule by how many events fell in the window.
// It does not look at the spacing between events.
func ClassifyFrequency(count int) model.Frequency {
	switch {
	case count >= 10:
		return model.FrequencyMonthly
	case count >= 3:
		return model.FrequencyQuarterly
	case count == 2:
		return model.FrequencySemiAnnual
	case count == 1:
		return model.FrequencyAnnual
	default:
		return model.FrequencyNone
	}
}

// FormatAmount prints a per-share amount with two decimals, dropping trailing zeros
// and a dangling point: 1.50 -> "1.5", 2.00 -> "2". Rounding follows the amount's
// float64 value, ties to even, as quote pages print it: 0.125 -> "0.12".
func FormatAmount(d decimal.Decimal) string {
	s := strconv.FormatFloat(d.InexactFloat64(), 'f', 2, 64)
	if strings.IndexByte(s, '.') >= 0 {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	return s
}

// SummarizeDividends reduces a symbol's dividend history to the trailing window
// (now-365d, now]. The input slice is not modified.
func SummarizeDividends(events []model.DividendEvent, now time.Time) (model.DividendSummary, error) {
	if err := validateEvents(events); err != nil {
		return model.DividendSummary{}, err
	}

	start := now.Add(-TrailingWindow)
	window := make([]model.DividendEvent, 0, len(events))
	for _, e := range events {
		if e.ExDate.After(start) && !e.ExDate.After(now) {
			window = append(window, e)
		}
	}

	if len(window) == 0 {
		return model.DividendSummary{
			Frequency:      model.FrequencyNone,
			AnnualPerShare: decimal.Zero,
			History:        []string{},
		}, nil
	}

	sort.SliceStable(window, func(i, j int) bool { return window[i].ExDate.Before(window[j].ExDate) })

	total := decimal.Zero
	history := make([]string, len(window))
	for i, e := range window {
		total = total.Add(e.Amount)
		history[i] = FormatAmount(e.Amount)
	}

	return model.DividendSummary{
		Frequency:      ClassifyFrequency(len(window)),
		AnnualPerShare: total,
		History:        history,
		Count:          len(window),
	}, nil
}

// validateEvents rejects rows that point at an upstream data problem.
// Every event must carry a date in the same location as the first one.
func validateEvents(events []model.DividendEvent) error {
	if len(events) == 0 {
		return nil
	}
	zone := events[0].ExDate.Location().String()
	for i, e := range events {
		if e.ExDate.IsZero() {
			return fmt.Errorf("event %d: %w", i, ErrMissingDate)
		}
		if e.Amount.IsNegative() {
			return fmt.Errorf("event %d (%s): %w", i, e.Amount, ErrNegativeAmount)
		}
		if z := e.ExDate.Location().String(); z != zone {
			return fmt.Errorf("event %d: %q vs %q: %w", i, z, zone, ErrZoneMismatch)
		}
	}
	return nil
}
