package ranking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/phuslu/log"

	"ETFSentinel/internal/collector"
	"ETFSentinel/internal/model"
	"ETFSentinel/internal/recorder"
)

// ErrScanInProgress is returned when a scan is requested while another runs.
var ErrScanInProgress = errors.New("scan already in progress")

// Universe lists the symbols to scan.
type Universe interface {
	List() []model.ETF
}

// Scanner runs the scan pipeline: evaluate the universe, publish to the board,
// then record and export the result.
type Scanner struct {
	Collector  *collector.Collector
	Universe   Universe
	Board      *Board
	Recorder   recorder.Recorder
	ExportPath string

	running sync.Mutex
	now     func() time.Time
}

// NewScanner wires a scanner. rec may be nil.
func NewScanner(col *collector.Collector, u Universe, board *Board, rec recorder.Recorder, exportPath string) *Scanner {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Scanner{
		Collector:  col,
		Universe:   u,
		Board:      board,
		Recorder:   rec,
		ExportPath: exportPath,
		now:        time.Now,
	}
}

// Result summarizes one finished scan.
type Result struct {
	Snapshot Snapshot
	Skipped  []collector.Skip
}

// Run scans the whole universe once. Only one scan runs at a time.
func (s *Scanner) Run(ctx context.Context, progress collector.ProgressFunc) (*Result, error) {
	if !s.running.TryLock() {
		return nil, ErrScanInProgress
	}
	defer s.running.Unlock()

	etfs := s.Universe.List()
	log.Info().Int("symbols", len(etfs)).Msg("running scan")

	res, err := s.Collector.Scan(ctx, etfs, s.now(), progress)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	snap := s.Board.Replace(res.Rows, res.TakenAt)

	if err := s.Recorder.RecordScan(&recorder.ScanSnapshot{
		RunID:   snap.RunID,
		TakenAt: snap.TakenAt,
		Source:  s.Collector.Fetcher.Name(),
		Rows:    snap.Rows,
		Skipped: len(res.Skipped),
	}); err != nil {
		log.Error().Err(err).Msg("record scan")
	}
	if s.ExportPath != "" {
		if err := WriteJSON(s.ExportPath, snap); err != nil {
			log.Error().Err(err).Str("path", s.ExportPath).Msg("export scan")
		}
	}
	return &Result{Snapshot: snap, Skipped: res.Skipped}, nil
}
