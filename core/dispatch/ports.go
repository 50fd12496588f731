package dispatch

import (
	"context"

	"github.com/strayaid/rescuedispatch/core/model"
)

// VolunteerRegistry is the read/write port to the identity collaborator that
// owns volunteer capability records. Writes are eventually consistent; a
// failed stat update never unwinds a committed assignment transition.
type VolunteerRegistry interface {
	GetCapability(ctx context.Context, volunteerID string) (model.VolunteerCapability, error)
	ListAvailable(ctx context.Context) ([]model.VolunteerCapability, error)
	RecordRescueCompletion(ctx context.Context, volunteerID string, responseMinutes float64) error
}

// ReportService is the port to the collaborator owning rescue reports.
type ReportService interface {
	GetReport(ctx context.Context, reportID string) (model.RescueReport, error)
	ListPending(ctx context.Context) ([]model.RescueReport, error)
	SetStatus(ctx context.Context, reportID string, status model.ReportStatus) error
}

// Notifier delivers a notification to a recipient. Delivery is best-effort:
// failures are logged by the orchestrator and never fail the triggering
// operation.
type Notifier interface {
	Send(ctx context.Context, recipientID, kind string, payload map[string]any) error
}
