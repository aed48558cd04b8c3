package watcher

import (
	"sync"

	"github.com/streamops/streamcheck/pkg/types"
)

// Store holds the most recently completed report. The watcher and the API
// server share one Store so GET /api/validations/latest sees reports from
// either source.
type Store struct {
	mu     sync.RWMutex
	latest types.Report
	ok     bool
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Set replaces the stored report.
func (s *Store) Set(r types.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = r
	s.ok = true
}

// Latest returns the most recent report and whether one has been stored yet.
func (s *Store) Latest() (types.Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.ok
}
