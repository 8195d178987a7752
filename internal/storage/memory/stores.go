// Package memory provides in-memory store implementations for tests and
// local development.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/casaplaza/listing-scraper/internal/scraper"
)

// PropertyStore keeps normalized properties keyed by (source, external_id).
type PropertyStore struct {
	mu     sync.RWMutex
	rows   map[string]scraper.NormalizedProperty
	closed bool

	// RowErr, when set, simulates a per-row persistence failure: rows for
	// which it returns an error are skipped.
	RowErr func(p scraper.NormalizedProperty) error

	// TxErr, when set, simulates a transaction-level failure for every
	// batch.
	TxErr error
}

// NewPropertyStore returns an empty store.
func NewPropertyStore() *PropertyStore {
	return &PropertyStore{rows: make(map[string]scraper.NormalizedProperty)}
}

func key(p scraper.NormalizedProperty) string {
	return p.Source + "|" + p.ExternalID
}

// UpsertProperties mirrors the transactional store semantics: bad rows are
// skipped, a transaction error persists nothing.
func (s *PropertyStore) UpsertProperties(_ context.Context, batch []scraper.NormalizedProperty) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.TxErr != nil {
		return 0, s.TxErr
	}
	saved := 0
	for _, p := range batch {
		if s.RowErr != nil {
			if err := s.RowErr(p); err != nil {
				continue
			}
		}
		s.rows[key(p)] = p
		saved++
	}
	return saved, nil
}

// ListBySource returns rows for one source priced above minPrice.
func (s *PropertyStore) ListBySource(_ context.Context, source string, minPrice float64) ([]scraper.NormalizedProperty, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []scraper.NormalizedProperty
	for _, p := range s.rows {
		if p.Source == source && p.Price.Amount > minPrice {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalID < out[j].ExternalID })
	return out, nil
}

// Close marks the store closed.
func (s *PropertyStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Closed reports whether Close was called.
func (s *PropertyStore) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Len returns the number of stored rows.
func (s *PropertyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// StatusStore keeps run status rows keyed by name.
type StatusStore struct {
	mu     sync.RWMutex
	rows   map[string]scraper.RunStatus
	Err    error
	closed bool
}

// NewStatusStore returns an empty status store.
func NewStatusStore() *StatusStore {
	return &StatusStore{rows: make(map[string]scraper.RunStatus)}
}

// UpsertStatus inserts or replaces one source's status row.
func (s *StatusStore) UpsertStatus(_ context.Context, status scraper.RunStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.rows[status.Name] = status
	return nil
}

// Get returns a stored status row.
func (s *StatusStore) Get(name string) (scraper.RunStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.rows[name]
	return st, ok
}

// Close marks the store closed.
func (s *StatusStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
