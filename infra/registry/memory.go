// Package registry provides volunteer capability adapters. The memory
// implementation serves seeded fixtures for development and tests; the HTTP
// implementation talks to the identity collaborator.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/strayaid/rescuedispatch/core/ledger"
	"github.com/strayaid/rescuedispatch/core/model"
)

// MemoryRegistry keeps capabilities in memory. Completions are appended to a
// ledger and stats are derived from it on every read.
type MemoryRegistry struct {
	mu     sync.RWMutex
	caps   map[string]model.VolunteerCapability
	ledger *ledger.Ledger
}

// NewMemoryRegistry seeds a registry with the given capabilities.
func NewMemoryRegistry(caps ...model.VolunteerCapability) *MemoryRegistry {
	r := &MemoryRegistry{
		caps:   make(map[string]model.VolunteerCapability, len(caps)),
		ledger: ledger.New(),
	}
	for _, c := range caps {
		r.caps[c.VolunteerID] = c
	}
	return r
}

// GetCapability returns the capability record with ledger-derived stats.
func (r *MemoryRegistry) GetCapability(_ context.Context, volunteerID string) (model.VolunteerCapability, error) {
	r.mu.RLock()
	c, ok := r.caps[volunteerID]
	r.mu.RUnlock()
	if !ok {
		return model.VolunteerCapability{}, fmt.Errorf("volunteer %s: %w", volunteerID, model.ErrNotFound)
	}
	return r.withStats(c), nil
}

// ListAvailable returns all active capabilities, sorted by volunteer id.
func (r *MemoryRegistry) ListAvailable(_ context.Context) ([]model.VolunteerCapability, error) {
	r.mu.RLock()
	out := make([]model.VolunteerCapability, 0, len(r.caps))
	for _, c := range r.caps {
		if c.Active {
			out = append(out, r.withStats(c))
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].VolunteerID < out[j].VolunteerID })
	return out, nil
}

// RecordRescueCompletion appends a completion to the ledger.
func (r *MemoryRegistry) RecordRescueCompletion(_ context.Context, volunteerID string, responseMinutes float64) error {
	r.mu.RLock()
	_, ok := r.caps[volunteerID]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("volunteer %s: %w", volunteerID, model.ErrNotFound)
	}
	r.ledger.Append(ledger.CompletionEvent{
		VolunteerID:     volunteerID,
		ResponseMinutes: responseMinutes,
		Timestamp:       time.Now().UTC(),
	})
	return nil
}

// Upsert adds or replaces a capability record.
func (r *MemoryRegistry) Upsert(c model.VolunteerCapability) {
	r.mu.Lock()
	r.caps[c.VolunteerID] = c
	r.mu.Unlock()
}

func (r *MemoryRegistry) withStats(c model.VolunteerCapability) model.VolunteerCapability {
	stats := r.ledger.StatsFor(c.VolunteerID)
	if stats.Completed > 0 {
		c.CompletedRescues = stats.Completed
		c.AvgResponseMinutes = stats.AvgResponseMinutes
	}
	return c
}
