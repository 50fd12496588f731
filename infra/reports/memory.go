// Package reports provides rescue report adapters. The memory implementation
// serves seeded fixtures for development and tests; the HTTP implementation
// talks to the report collaborator.
package reports

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/strayaid/rescuedispatch/core/model"
)

// MemoryReports keeps reports in memory.
type MemoryReports struct {
	mu      sync.RWMutex
	reports map[string]model.RescueReport
}

// NewMemoryReports seeds a report service with the given reports.
func NewMemoryReports(rs ...model.RescueReport) *MemoryReports {
	m := &MemoryReports{reports: make(map[string]model.RescueReport, len(rs))}
	for _, r := range rs {
		m.reports[r.ID] = r
	}
	return m
}

// GetReport returns one report by id.
func (m *MemoryReports) GetReport(_ context.Context, reportID string) (model.RescueReport, error) {
	m.mu.RLock()
	r, ok := m.reports[reportID]
	m.mu.RUnlock()
	if !ok {
		return model.RescueReport{}, fmt.Errorf("report %s: %w", reportID, model.ErrNotFound)
	}
	return r, nil
}

// ListPending returns reports still waiting for a responder, oldest first.
func (m *MemoryReports) ListPending(_ context.Context) ([]model.RescueReport, error) {
	m.mu.RLock()
	var out []model.RescueReport
	for _, r := range m.reports {
		if r.Status == model.ReportPending || r.Status == model.ReportAssigned {
			out = append(out, r)
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// SetStatus updates the report's coarse status.
func (m *MemoryReports) SetStatus(_ context.Context, reportID string, status model.ReportStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[reportID]
	if !ok {
		return fmt.Errorf("report %s: %w", reportID, model.ErrNotFound)
	}
	r.Status = status
	m.reports[reportID] = r
	return nil
}

// Upsert adds or replaces a report.
func (m *MemoryReports) Upsert(r model.RescueReport) {
	m.mu.Lock()
	m.reports[r.ID] = r
	m.mu.Unlock()
}
