package recorder

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/phuslu/log"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteRecorder persists historical data to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode lets dashboards read while scans write.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return &SQLiteRecorder{db: db}, nil
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.Up(db, "migrations")
}

func (r *SQLiteRecorder) RecordScan(snap *ScanSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO scan_runs
		(run_id, timestamp, source, ranked, skipped)
		VALUES (?,?,?,?,?)`,
		snap.RunID, snap.TakenAt.Unix(), snap.Source, len(snap.Rows), snap.Skipped,
	); err != nil {
		return fmt.Errorf("insert scan run: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO scan_rows
		(run_id, rank, symbol, name, price, frequency, annual_per_share, history,
		 monthly_income_per_lot, yield_percent)
		VALUES (?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, row := range snap.Rows {
		if _, err := stmt.Exec(
			snap.RunID, i+1, row.ETF.Symbol, row.ETF.Name,
			row.Quote.LastPrice.String(), row.Summary.Frequency.String(),
			row.Summary.AnnualPerShare.String(), strings.Join(row.Summary.History, "/"),
			row.Metrics.MonthlyIncomePerLot.StringFixed(2), row.Metrics.YieldPercent.StringFixed(2),
		); err != nil {
			return fmt.Errorf("insert scan row %s: %w", row.ETF.Symbol, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecordHolding(evt *HoldingEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := evt.Holding
	_, err := r.db.Exec(`INSERT INTO holding_events
		(timestamp, event_type, holding_id, symbol, lots, invested_amount, monthly_income,
		 total_invested, total_monthly_income, blended_yield)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		time.Now().Unix(), evt.EventType, h.ID, h.Symbol, h.Lots,
		h.InvestedAmount.String(), h.MonthlyIncome.String(),
		evt.Portfolio.TotalInvested.String(), evt.Portfolio.TotalMonthlyIncome.String(),
		evt.Portfolio.BlendedYieldPercent.StringFixed(4),
	)
	return err
}

func (r *SQLiteRecorder) RecordLeverage(evt *LeverageEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := evt.Projection
	_, err := r.db.Exec(`INSERT INTO leverage_projections
		(timestamp, total_invested, blended_yield, ltv_percent, interest_rate, max_loan,
		 net_monthly_gain, final_monthly_income, maintenance_ratio, band)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		time.Now().Unix(), evt.Portfolio.TotalInvested.String(),
		evt.Portfolio.BlendedYieldPercent.StringFixed(4),
		p.LTVPercent.String(), p.InterestRatePercent.String(), p.MaxLoan.String(),
		p.NetMonthlyGain.StringFixed(2), p.FinalMonthlyIncome.StringFixed(2),
		p.MaintenanceRatio.StringFixed(2), string(p.Band),
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
