package ranking

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ETFSentinel/internal/model"
)

// Snapshot is one published scan.
type Snapshot struct {
	RunID   string          `json:"run_id"`
	TakenAt time.Time       `json:"taken_at"`
	Rows    []model.Ranking `json:"rows"`
}

// Board holds the latest leaderboard with concurrency safety.
type Board struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewBoard creates an empty board.
func NewBoard() *Board {
	return &Board{}
}

// Replace publishes a new scan and returns its snapshot. Rows are expected
// to be sorted already.
func (b *Board) Replace(rows []model.Ranking, takenAt time.Time) Snapshot {
	cp := make([]model.Ranking, len(rows))
	copy(cp, rows)
	snap := Snapshot{RunID: uuid.NewString(), TakenAt: takenAt, Rows: cp}

	b.mu.Lock()
	b.snap = snap
	b.mu.Unlock()
	return snap
}

// Snapshot returns a copy of the latest scan.
func (b *Board) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s := b.snap
	s.Rows = append([]model.Ranking(nil), b.snap.Rows...)
	return s
}

// Empty reports whether no scan has been published.
func (b *Board) Empty() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snap.RunID == ""
}

// Top returns the first n rows. n <= 0 returns all.
func (b *Board) Top(n int) []model.Ranking {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rows := b.snap.Rows
	if n > 0 && n < len(rows) {
		rows = rows[:n]
	}
	return append([]model.Ranking(nil), rows...)
}

// Search filters rows by case-insensitive symbol or name match, keeping rank order.
func (b *Board) Search(query string) []model.Ranking {
	q := strings.ToLower(strings.TrimSpace(query))
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []model.Ranking
	for _, r := range b.snap.Rows {
		if q == "" || strings.Contains(strings.ToLower(r.ETF.Symbol), q) || strings.Contains(strings.ToLower(r.ETF.Name), q) {
			out = append(out, r)
		}
	}
	return out
}

// Lookup finds a symbol's row and its 1-based rank.
func (b *Board) Lookup(symbol string) (model.Ranking, int, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for i, r := range b.snap.Rows {
		if strings.EqualFold(r.ETF.Symbol, symbol) {
			return r, i + 1, true
		}
	}
	return model.Ranking{}, 0, false
}

// Restore loads a previously exported snapshot, unless a scan was already published.
func (b *Board) Restore(snap Snapshot) bool {
	if snap.RunID == "" {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.snap.RunID != "" {
		return false
	}
	b.snap = snap
	return true
}
