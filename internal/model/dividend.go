package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// NoDistributions is the history text for a symbol with nothing paid in the window.
const NoDistributions = "無配息"

// DividendEvent is a single historical distribution.
type DividendEvent struct {
	ExDate time.Time       `json:"ex_date"`
	Amount decimal.Decimal `json:"amount"` // per share
}

// Frequency is a count-based tag of how often a fund paid in the trailing year.
type Frequency int

const (
	FrequencyNone Frequency = iota
	FrequencyAnnual
	FrequencySemiAnnual
	FrequencyQuarterly
	FrequencyMonthly
)

func (f Frequency) String() string {
	switch f {
	case FrequencyAnnual:
		return "Annual"
	case FrequencySemiAnnual:
		return "SemiAnnual"
	case FrequencyQuarterly:
		return "Quarterly"
	case FrequencyMonthly:
		return "Monthly"
	default:
		return "None"
	}
}

// Label is the one-character tag shown in front of the payout history.
func (f Frequency) Label() string {
	switch f {
	case FrequencyAnnual:
		return "年"
	case FrequencySemiAnnual:
		return "半"
	case FrequencyQuarterly:
		return "季"
	case FrequencyMonthly:
		return "月"
	default:
		return ""
	}
}

func (f Frequency) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Frequency) UnmarshalText(b []byte) error {
	switch string(b) {
	case "Annual":
		*f = FrequencyAnnual
	case "SemiAnnual":
		*f = FrequencySemiAnnual
	case "Quarterly":
		*f = FrequencyQuarterly
	case "Monthly":
		*f = FrequencyMonthly
	case "None", "":
		*f = FrequencyNone
	default:
		return fmt.Errorf("unknown frequency %q", b)
	}
	return nil
}

// DividendSummary is derived from a window of events; it is never cached.
type DividendSummary struct {
	Frequency      Frequency       `json:"frequency"`
	AnnualPerShare decimal.Decimal `json:"annual_per_share"`
	History        []string        `json:"history"` // formatted amounts, oldest first
	Count          int             `json:"count"`
}

// Display renders the summary as "季: 0.5/0.48/0.5/0.52".
func (s DividendSummary) Display() string {
	if s.Frequency == FrequencyNone || len(s.History) == 0 {
		return NoDistributions
	}
	return s.Frequency.Label() + ": " + strings.Join(s.History, "/")
}
