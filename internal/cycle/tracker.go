package cycle

import (
	"sync"
	"time"
)

// Snapshot is the ops-surface view of the last cycle.
type Snapshot struct {
	LastOutcome    string    `json:"last_outcome"`
	LastRunAt      time.Time `json:"last_run_at"`
	NextRunAt      time.Time `json:"next_run_at"`
	ProcessedCount int       `json:"processed_count"`
}

// Tracker records cycle outcomes for the status endpoint. Written only
// by the cycle, read by the ops HTTP handler.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

func NewTracker() *Tracker {
	return &Tracker{snap: Snapshot{LastOutcome: "pending"}}
}

func (t *Tracker) Record(outcome string, processed int, ranAt, nextAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap = Snapshot{
		LastOutcome:    outcome,
		LastRunAt:      ranAt,
		NextRunAt:      nextAt,
		ProcessedCount: processed,
	}
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap
}
