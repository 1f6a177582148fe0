package bot

import (
	"sync"
	"time"

	"futuresbot/internal/types"
)

// Snapshot holds the trailing window of the last enriched table. Writers
// replace it wholesale; readers always get their own copy.
type Snapshot struct {
	mu      sync.RWMutex
	rows    []types.FeatureRow
	updated time.Time
	limit   int
}

func NewSnapshot(limit int) *Snapshot {
	if limit <= 0 {
		limit = 500
	}
	return &Snapshot{limit: limit}
}

// Publish stores a copy of the last limit rows.
func (s *Snapshot) Publish(rows []types.FeatureRow, at time.Time) {
	if len(rows) > s.limit {
		rows = rows[len(rows)-s.limit:]
	}
	cp := make([]types.FeatureRow, len(rows))
	copy(cp, rows)

	s.mu.Lock()
	s.rows = cp
	s.updated = at
	s.mu.Unlock()
}

// Rows returns a copy of the last n rows, or all of them when n <= 0.
// It returns nil before the first publish.
func (s *Snapshot) Rows(n int) []types.FeatureRow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.rows == nil {
		return nil
	}
	src := s.rows
	if n > 0 && len(src) > n {
		src = src[len(src)-n:]
	}
	out := make([]types.FeatureRow, len(src))
	copy(out, src)
	return out
}

// Latest returns the newest row.
func (s *Snapshot) Latest() (types.FeatureRow, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.rows) == 0 {
		return types.FeatureRow{}, false
	}
	return s.rows[len(s.rows)-1], true
}

func (s *Snapshot) Updated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updated
}
