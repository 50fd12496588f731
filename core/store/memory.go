package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/strayaid/rescuedispatch/core/model"
)

// MemoryStore is an in-process Store used by tests and the simulation mode.
// Per-report serialization is provided by one mutex per report id.
type MemoryStore struct {
	mu          sync.RWMutex
	assignments map[string]*model.Assignment
	byPair      map[string]string // reportID|volunteerID -> assignment id

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		assignments: make(map[string]*model.Assignment),
		byPair:      make(map[string]string),
		locks:       make(map[string]*sync.Mutex),
	}
}

func pairKey(reportID, volunteerID string) string {
	return reportID + "|" + volunteerID
}

// Create implements Store.
func (s *MemoryStore) Create(_ context.Context, a *model.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey(a.ReportID, a.VolunteerID)
	if _, ok := s.byPair[key]; ok {
		return fmt.Errorf("create %s/%s: %w", a.ReportID, a.VolunteerID, model.ErrDuplicateAssignment)
	}
	s.assignments[a.ID] = a.Clone()
	s.byPair[key] = a.ID
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (*model.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assignments[id]
	if !ok {
		return nil, fmt.Errorf("assignment %s: %w", id, model.ErrNotFound)
	}
	return a.Clone(), nil
}

// ByReport implements Store. Results are ordered by assignment time then id
// for deterministic iteration.
func (s *MemoryStore) ByReport(_ context.Context, reportID string) ([]*model.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byReportLocked(reportID), nil
}

func (s *MemoryStore) byReportLocked(reportID string) []*model.Assignment {
	var out []*model.Assignment
	for _, a := range s.assignments {
		if a.ReportID == reportID {
			out = append(out, a.Clone())
		}
	}
	sortAssignments(out)
	return out
}

// ByVolunteer implements Store.
func (s *MemoryStore) ByVolunteer(_ context.Context, volunteerID string) ([]*model.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Assignment
	for _, a := range s.assignments {
		if a.VolunteerID == volunteerID {
			out = append(out, a.Clone())
		}
	}
	sortAssignments(out)
	return out, nil
}

// StaleAssigned implements Store.
func (s *MemoryStore) StaleAssigned(_ context.Context, cutoff time.Time) ([]*model.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Assignment
	for _, a := range s.assignments {
		if a.Status == model.StatusAssigned && a.AssignedAt.Before(cutoff) {
			out = append(out, a.Clone())
		}
	}
	sortAssignments(out)
	return out, nil
}

// InReportTx implements Store. Sections for the same report run one at a
// time; writes are staged and applied only when fn succeeds.
func (s *MemoryStore) InReportTx(ctx context.Context, reportID string, fn func(Tx) error) error {
	lock := s.reportLock(reportID)
	lock.Lock()
	defer lock.Unlock()

	tx := &memoryTx{store: s, reportID: reportID, staged: make(map[string]*model.Assignment)}
	if err := fn(tx); err != nil {
		return err
	}
	s.mu.Lock()
	for id, a := range tx.staged {
		s.assignments[id] = a
	}
	s.mu.Unlock()
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) reportLock(reportID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[reportID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[reportID] = l
	}
	return l
}

type memoryTx struct {
	store    *MemoryStore
	reportID string
	staged   map[string]*model.Assignment
}

func (t *memoryTx) Get(_ context.Context, id string) (*model.Assignment, error) {
	if a, ok := t.staged[id]; ok {
		return a.Clone(), nil
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	a, ok := t.store.assignments[id]
	if !ok {
		return nil, fmt.Errorf("assignment %s: %w", id, model.ErrNotFound)
	}
	return a.Clone(), nil
}

func (t *memoryTx) ByReport(_ context.Context, reportID string) ([]*model.Assignment, error) {
	t.store.mu.RLock()
	out := t.store.byReportLocked(reportID)
	t.store.mu.RUnlock()
	for i, a := range out {
		if staged, ok := t.staged[a.ID]; ok {
			out[i] = staged.Clone()
		}
	}
	return out, nil
}

func (t *memoryTx) Save(_ context.Context, a *model.Assignment) error {
	t.staged[a.ID] = a.Clone()
	return nil
}

func sortAssignments(list []*model.Assignment) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].AssignedAt.Equal(list[j].AssignedAt) {
			return list[i].AssignedAt.Before(list[j].AssignedAt)
		}
		return list[i].ID < list[j].ID
	})
}
