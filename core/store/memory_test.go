package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/strayaid/rescuedispatch/core/model"
)

func assignment(id, report, volunteer string) *model.Assignment {
	return &model.Assignment{
		ID:          id,
		ReportID:    report,
		VolunteerID: volunteer,
		Type:        model.TypePrimary,
		Status:      model.StatusAssigned,
		AssignedAt:  time.Now(),
	}
}

func TestMemoryStoreCreateDuplicatePair(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if err := s.Create(ctx, assignment("a1", "r1", "v1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := s.Create(ctx, assignment("a2", "r1", "v1"))
	if !errors.Is(err, model.ErrDuplicateAssignment) {
		t.Fatalf("duplicate create: %v", err)
	}
	if err := s.Create(ctx, assignment("a3", "r1", "v2")); err != nil {
		t.Fatalf("different volunteer: %v", err)
	}
}

func TestMemoryStoreGetNotFound(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestMemoryStoreTxDiscardsOnError(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if err := s.Create(ctx, assignment("a1", "r1", "v1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	boom := errors.New("boom")
	err := s.InReportTx(ctx, "r1", func(tx Tx) error {
		a, err := tx.Get(ctx, "a1")
		if err != nil {
			return err
		}
		a.Status = model.StatusCancelled
		if err := tx.Save(ctx, a); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("tx err = %v", err)
	}
	a, err := s.Get(ctx, "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if a.Status != model.StatusAssigned {
		t.Fatalf("write survived rolled back section: %s", a.Status)
	}
}

func TestMemoryStoreTxSeesOwnWrites(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if err := s.Create(ctx, assignment("a1", "r1", "v1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := s.InReportTx(ctx, "r1", func(tx Tx) error {
		a, _ := tx.Get(ctx, "a1")
		a.Status = model.StatusCancelled
		if err := tx.Save(ctx, a); err != nil {
			return err
		}
		list, err := tx.ByReport(ctx, "r1")
		if err != nil {
			return err
		}
		if list[0].Status != model.StatusCancelled {
			t.Errorf("staged write not visible: %s", list[0].Status)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
}

func TestMemoryStoreSerializesPerReport(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if err := s.Create(ctx, assignment("a1", "r1", "v1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	var inSection int32
	var wg sync.WaitGroup
	mu := sync.Mutex{}
	maxSeen := int32(0)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.InReportTx(ctx, "r1", func(tx Tx) error {
				mu.Lock()
				inSection++
				if inSection > maxSeen {
					maxSeen = inSection
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				inSection--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Fatalf("%d sections overlapped for one report", maxSeen)
	}
}

func TestMemoryStoreStaleAssigned(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	old := assignment("a1", "r1", "v1")
	old.AssignedAt = time.Now().Add(-time.Hour)
	fresh := assignment("a2", "r2", "v2")
	done := assignment("a3", "r3", "v3")
	done.AssignedAt = time.Now().Add(-time.Hour)
	done.Status = model.StatusCancelled
	for _, a := range []*model.Assignment{old, fresh, done} {
		if err := s.Create(ctx, a); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	stale, err := s.StaleAssigned(ctx, time.Now().Add(-30*time.Minute))
	if err != nil {
		t.Fatalf("stale: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != "a1" {
		t.Fatalf("stale = %v", stale)
	}
}
