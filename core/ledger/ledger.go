// Package ledger keeps an append-only record of completed rescues. Volunteer
// statistics are derived views over the ledger, never mutated counters, so
// concurrent completions cannot lose updates.
package ledger

import (
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// CompletionEvent is one immutable ledger entry.
type CompletionEvent struct {
	VolunteerID     string
	ResponseMinutes float64
	Timestamp       time.Time
}

// Stats is the materialized view for one volunteer.
type Stats struct {
	Completed          int
	AvgResponseMinutes float64
}

// Ledger is a concurrency-safe append-only completion log.
type Ledger struct {
	mu      sync.RWMutex
	entries []CompletionEvent
}

// New returns an empty Ledger.
func New() *Ledger { return &Ledger{} }

// Append records a completion. Entries are never mutated or removed.
func (l *Ledger) Append(e CompletionEvent) {
	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()
}

// StatsFor derives the stats view for a volunteer from the ledger.
func (l *Ledger) StatsFor(volunteerID string) Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var times []float64
	for _, e := range l.entries {
		if e.VolunteerID == volunteerID {
			times = append(times, e.ResponseMinutes)
		}
	}
	if len(times) == 0 {
		return Stats{}
	}
	return Stats{
		Completed:          len(times),
		AvgResponseMinutes: stat.Mean(times, nil),
	}
}

// Len returns the total number of ledger entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
