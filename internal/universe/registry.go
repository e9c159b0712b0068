package universe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/phuslu/log"

	"ETFSentinel/internal/model"
)

// Registry holds the active scan universe.
type Registry struct {
	mu        sync.RWMutex
	source    Source
	etfs      []model.ETF
	index     map[string]model.ETF
	updatedAt time.Time
}

// NewRegistry seeds the registry with the curated list so scans work before
// the first refresh succeeds.
func NewRegistry(source Source) *Registry {
	if source == nil {
		source = BuiltinSource{}
	}
	r := &Registry{source: source}
	r.set(Builtin())
	return r
}

// Refresh reloads the list from the source. On failure the previous list stays active.
func (r *Registry) Refresh(ctx context.Context) error {
	etfs, err := r.source.Fetch(ctx)
	if err != nil {
		log.Warn().Err(err).Str("source", r.source.Name()).Msg("universe refresh failed, keeping current list")
		return fmt.Errorf("refresh universe: %w", err)
	}
	r.set(etfs)
	log.Info().Int("count", len(etfs)).Str("source", r.source.Name()).Msg("universe refreshed")
	return nil
}

func (r *Registry) set(etfs []model.ETF) {
	index := make(map[string]model.ETF, len(etfs))
	for _, e := range etfs {
		index[e.Symbol] = e
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.etfs = etfs
	r.index = index
	r.updatedAt = time.Now()
}

// List returns a copy of the active universe.
func (r *Registry) List() []model.ETF {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.ETF, len(r.etfs))
	copy(out, r.etfs)
	return out
}

// Search filters the active universe.
func (r *Registry) Search(query string) []model.ETF {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Search(r.etfs, query)
}

// Lookup resolves a symbol (with or without the .TW suffix). Symbols outside the
// universe are still returned, unnamed, with ok=false.
func (r *Registry) Lookup(symbol string) (model.ETF, bool) {
	sym := NormalizeSymbol(symbol)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.index[sym]; ok {
		return e, true
	}
	return model.ETF{Symbol: sym}, false
}

// UpdatedAt reports when the list was last swapped in.
func (r *Registry) UpdatedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.updatedAt
}

// SourceName names where the list comes from.
func (r *Registry) SourceName() string { return r.source.Name() }
