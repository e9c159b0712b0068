package recorder

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ETFSentinel/internal/model"
)

func openTemp(t *testing.T) *SQLiteRecorder {
	t.Helper()
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("open recorder: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func count(t *testing.T, r *SQLiteRecorder, table string) int {
	t.Helper()
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestSQLiteRecorder_RecordScan(t *testing.T) {
	r := openTemp(t)
	snap := &ScanSnapshot{
		RunID:   "run-1",
		TakenAt: time.Now(),
		Source:  "mock",
		Skipped: 1,
		Rows: []model.Ranking{
			{
				ETF:     model.ETF{Symbol: "0056.TW", Name: "元大高股息"},
				Quote:   model.Quote{LastPrice: decimal.RequireFromString("36.15")},
				Summary: model.DividendSummary{Frequency: model.FrequencyQuarterly, AnnualPerShare: decimal.RequireFromString("3.6"), History: []string{"0.9", "0.9"}},
				Metrics: model.LotMetrics{MonthlyIncomePerLot: decimal.NewFromInt(300), YieldPercent: decimal.NewFromInt(10)},
			},
			{ETF: model.ETF{Symbol: "00878.TW", Name: "國泰永續高股息"}},
		},
	}
	if err := r.RecordScan(snap); err != nil {
		t.Fatalf("RecordScan: %v", err)
	}
	if n := count(t, r, "scan_runs"); n != 1 {
		t.Errorf("expected 1 run, got %d", n)
	}
	if n := count(t, r, "scan_rows"); n != 2 {
		t.Errorf("expected 2 rows, got %d", n)
	}

	var history, frequency string
	if err := r.db.QueryRow("SELECT history, frequency FROM scan_rows WHERE rank = 1").Scan(&history, &frequency); err != nil {
		t.Fatalf("query row: %v", err)
	}
	if history != "0.9/0.9" || frequency != "Quarterly" {
		t.Errorf("unexpected row: %q %q", history, frequency)
	}

	if err := r.RecordScan(snap); err == nil {
		t.Error("expected duplicate run id to be rejected")
	}
	if n := count(t, r, "scan_rows"); n != 2 {
		t.Errorf("failed scan must not leave partial rows, got %d", n)
	}
}

func TestSQLiteRecorder_RecordHoldingAndLeverage(t *testing.T) {
	r := openTemp(t)
	err := r.RecordHolding(&HoldingEvent{
		EventType: "ADD",
		Holding:   model.Holding{ID: "h1", Symbol: "0056.TW", Lots: 2, InvestedAmount: decimal.NewFromInt(72000)},
		Portfolio: model.Portfolio{TotalInvested: decimal.NewFromInt(72000)},
	})
	if err != nil {
		t.Fatalf("RecordHolding: %v", err)
	}
	err = r.RecordLeverage(&LeverageEvent{
		Portfolio:  model.Portfolio{TotalInvested: decimal.NewFromInt(1000000)},
		Projection: model.LeverageProjection{MaxLoan: decimal.NewFromInt(600000), Band: model.RiskSafe},
	})
	if err != nil {
		t.Fatalf("RecordLeverage: %v", err)
	}
	if n := count(t, r, "holding_events"); n != 1 {
		t.Errorf("expected 1 holding event, got %d", n)
	}
	var band string
	if err := r.db.QueryRow("SELECT band FROM leverage_projections").Scan(&band); err != nil || band != "SAFE" {
		t.Errorf("unexpected band %q, %v", band, err)
	}
}

func TestSQLiteRecorder_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	r, err := NewSQLiteRecorder(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := r.RecordHolding(&HoldingEvent{EventType: "CLEAR"}); err != nil {
		t.Fatalf("RecordHolding: %v", err)
	}
	r.Close()

	r, err = NewSQLiteRecorder(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer r.Close()
	if n := count(t, r, "holding_events"); n != 1 {
		t.Errorf("expected data to survive reopen, got %d rows", n)
	}
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NewNoopRecorder()
	if err := r.RecordScan(&ScanSnapshot{}); err != nil {
		t.Error(err)
	}
	if err := r.Close(); err != nil {
		t.Error(err)
	}
}
