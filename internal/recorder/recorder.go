package recorder

import (
	"time"

	"ETFSentinel/internal/model"
)

// ScanSnapshot holds one published leaderboard.
type ScanSnapshot struct {
	RunID   string
	TakenAt time.Time
	Source  string
	Rows    []model.Ranking
	Skipped int
}

// HoldingEvent records a change to the simulated portfolio.
type HoldingEvent struct {
	EventType string // "ADD", "REMOVE", "CLEAR"
	Holding   model.Holding
	Portfolio model.Portfolio // totals after the change
}

// LeverageEvent records a leverage projection that was shown to the user.
type LeverageEvent struct {
	Portfolio  model.Portfolio
	Projection model.LeverageProjection
}

// Recorder persists historical data for analysis.
type Recorder interface {
	RecordScan(snap *ScanSnapshot) error
	RecordHolding(evt *HoldingEvent) error
	RecordLeverage(evt *LeverageEvent) error
	Close() error
}
