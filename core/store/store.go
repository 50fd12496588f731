// Package store defines the persistence contract for assignments. The only
// mutable shared state of the engine lives behind this interface.
package store

import (
	"context"
	"time"

	"github.com/strayaid/rescuedispatch/core/model"
)

// Tx is the view handed to a per-report transactional section. Reads see
// committed state plus the section's own writes; Save stages an update that
// commits atomically with the section.
type Tx interface {
	Get(ctx context.Context, id string) (*model.Assignment, error)
	ByReport(ctx context.Context, reportID string) ([]*model.Assignment, error)
	Save(ctx context.Context, a *model.Assignment) error
}

// Store persists assignments and their history. Implementations must
// guarantee that InReportTx sections for the same report id are serialized:
// two concurrent sections never interleave, which is what makes the
// check-then-act inside Accept safe.
type Store interface {
	// Create inserts a new assignment. It fails with
	// model.ErrDuplicateAssignment when the (report, volunteer) pair
	// already has one.
	Create(ctx context.Context, a *model.Assignment) error

	Get(ctx context.Context, id string) (*model.Assignment, error)
	ByReport(ctx context.Context, reportID string) ([]*model.Assignment, error)
	ByVolunteer(ctx context.Context, volunteerID string) ([]*model.Assignment, error)

	// StaleAssigned lists ASSIGNED assignments created before the cutoff,
	// used by the scheduled re-dispatch sweep.
	StaleAssigned(ctx context.Context, cutoff time.Time) ([]*model.Assignment, error)

	// InReportTx runs fn inside a section serialized per report id. If fn
	// returns an error the section's writes are discarded.
	InReportTx(ctx context.Context, reportID string, fn func(Tx) error) error

	Close() error
}
