package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/strayaid/rescuedispatch/core/events"
	"github.com/strayaid/rescuedispatch/core/logger"
	"github.com/strayaid/rescuedispatch/core/metrics"
	"github.com/strayaid/rescuedispatch/core/model"
	"github.com/strayaid/rescuedispatch/core/qualification"
	"github.com/strayaid/rescuedispatch/core/store"
	"github.com/strayaid/rescuedispatch/internal/eventbus"
)

// Notification kinds passed to the Notifier port.
const (
	KindAssignmentCreated = "rescue-assignment-created"
	KindStatusChanged     = "rescue-status-changed"
	KindCompleted         = "rescue-completed"
)

// Manager is the assignment orchestrator. It selects candidates for new
// reports, enforces the single-active-responder invariant on accept and
// drives assignments through their lifecycle. Manager holds no mutable
// request state; everything shared lives in the store, so instances can be
// replicated freely.
type Manager struct {
	store    store.Store
	registry VolunteerRegistry
	reports  ReportService
	notifier Notifier
	ranker   RankingEngine
	cfg      Config
	bus      eventbus.EventBus
	metrics  metrics.MetricsSink
	logger   logger.Logger
	now      func() time.Time
}

// NewManager creates an orchestrator. notifier, bus and sink may be nil.
func NewManager(st store.Store, registry VolunteerRegistry, reports ReportService, notifier Notifier, cfg Config, sink metrics.MetricsSink, bus eventbus.EventBus, log logger.Logger) (*Manager, error) {
	if st == nil || registry == nil || reports == nil || log == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewManager")
	}
	cfg.SetDefaults()
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Manager{
		store:    st,
		registry: registry,
		reports:  reports,
		notifier: notifier,
		ranker:   cfg.Ranker(),
		cfg:      cfg,
		bus:      bus,
		metrics:  sink,
		logger:   log,
		now:      time.Now,
	}, nil
}

// SetClock overrides the time source, used by tests.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

// Dispatch selects and notifies candidate volunteers for a report. One
// ASSIGNED assignment is created per selected candidate. When nobody is
// eligible the report stays pending and ErrNoCandidates is returned.
func (m *Manager) Dispatch(ctx context.Context, reportID string) (*DispatchResult, error) {
	report, err := m.reports.GetReport(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("load report %s: %w", reportID, err)
	}
	pool, err := m.registry.ListAvailable(ctx)
	if err != nil {
		return nil, fmt.Errorf("load volunteer pool: %w", err)
	}
	existing, err := m.store.ByReport(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("load assignments for %s: %w", reportID, err)
	}
	// A volunteer gets at most one assignment per report, ever. Cancelled
	// and no-show holders stay excluded so a re-dispatch reaches new people.
	excluded := make(map[string]bool, len(existing))
	for _, a := range existing {
		excluded[a.VolunteerID] = true
	}

	candidates := FilterCandidates(report, pool, excluded)
	ranked := m.ranker.Rank(candidates, report.Urgency)

	selected := make([]Candidate, 0, m.cfg.Limit(report.Urgency.IsCritical()))
	for _, c := range ranked {
		q := qualification.Evaluate(report, c.Volunteer)
		if q.Level == qualification.MatchNotRecommended {
			continue
		}
		c.Qualification = q
		selected = append(selected, c)
		if len(selected) == m.cfg.Limit(report.Urgency.IsCritical()) {
			break
		}
	}
	if len(selected) == 0 {
		m.logger.Infof("no candidates for report %s (%s), report stays pending", reportID, report.Urgency)
		return nil, fmt.Errorf("dispatch report %s: %w", reportID, model.ErrNoCandidates)
	}

	now := m.now()
	result := &DispatchResult{ReportID: reportID, Candidates: selected}
	for i, c := range selected {
		a := &model.Assignment{
			ID:               uuid.NewString(),
			ReportID:         reportID,
			VolunteerID:      c.Volunteer.VolunteerID,
			Type:             roleFor(i, c.Volunteer),
			Status:           model.StatusAssigned,
			AssignedAt:       now,
			TravelDistanceKm: c.DistanceKm,
		}
		if err := m.store.Create(ctx, a); err != nil {
			return nil, fmt.Errorf("create assignment for %s: %w", c.Volunteer.VolunteerID, err)
		}
		result.Assignments = append(result.Assignments, a.Clone())
		m.publish(events.AssignmentCreated{Assignment: *a.Clone(), Urgency: report.Urgency})
		m.notify(ctx, c.Volunteer.VolunteerID, KindAssignmentCreated, map[string]any{
			"assignment_id": a.ID,
			"report_id":     reportID,
			"urgency":       report.Urgency.String(),
			"distance_km":   a.TravelDistanceKm,
			"role":          string(a.Type),
			"qualification": c.Qualification,
		})
	}
	if err := m.reports.SetStatus(ctx, reportID, model.ReportAssigned); err != nil {
		m.logger.Warnf("report %s status update failed: %v", reportID, err)
	}
	if err := m.metrics.RecordDispatch(metrics.DispatchRecord{
		ReportID:   reportID,
		Urgency:    report.Urgency.String(),
		Candidates: len(selected),
		When:       now,
	}); err != nil {
		m.logger.Errorf("metrics error: %v", err)
	}
	m.logger.Infof("dispatched report %s to %d volunteers", reportID, len(selected))
	return result, nil
}

// roleFor derives the assignment type from the candidate's rank position.
func roleFor(position int, vol model.VolunteerCapability) model.AssignmentType {
	if position == 0 {
		return model.TypePrimary
	}
	if vol.HasTransportation {
		return model.TypeTransport
	}
	return model.TypeBackup
}

// AcceptOptions carries the optional fields of an accept call.
type AcceptOptions struct {
	Type             model.AssignmentType // optional role override, e.g. retry as BACKUP
	EstimatedArrival *time.Time
	Notes            string
}

// Accept claims an assignment for its volunteer. The check against
// competing assignments and the transition commit happen inside one
// serialized per-report section, so of N concurrent accepts for one report
// exactly the first committed one wins and the rest observe
// ErrAlreadyAssigned.
func (m *Manager) Accept(ctx context.Context, assignmentID, volunteerID string, opts AcceptOptions) (*model.Assignment, error) {
	head, err := m.store.Get(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if head.VolunteerID != volunteerID {
		return nil, fmt.Errorf("assignment %s belongs to another volunteer: %w", assignmentID, model.ErrNotOwner)
	}

	var accepted *model.Assignment
	err = m.store.InReportTx(ctx, head.ReportID, func(tx store.Tx) error {
		cur, err := tx.Get(ctx, assignmentID)
		if err != nil {
			return err
		}
		siblings, err := tx.ByReport(ctx, cur.ReportID)
		if err != nil {
			return err
		}
		active := 0
		for _, s := range siblings {
			if s.ID != cur.ID && s.Status.Active() {
				active++
			}
		}
		if active > 1 {
			m.logger.Errorf("INVARIANT VIOLATION: report %s has %d active assignments", cur.ReportID, active)
			return fmt.Errorf("report %s has %d active assignments: %w", cur.ReportID, active, model.ErrInvariant)
		}
		if active == 1 {
			return fmt.Errorf("accept %s: %w", assignmentID, model.ErrAlreadyAssigned)
		}
		if err := cur.Accept(m.now()); err != nil {
			return err
		}
		if opts.Type != "" {
			cur.Type = opts.Type
		}
		cur.EstimatedArrival = opts.EstimatedArrival
		if opts.Notes != "" {
			cur.Notes = opts.Notes
		}
		if err := tx.Save(ctx, cur); err != nil {
			return err
		}
		accepted = cur
		return nil
	})
	if err != nil {
		if errors.Is(err, model.ErrAlreadyAssigned) {
			if recErr := m.metrics.RecordAccept(metrics.AcceptRecord{
				AssignmentID: assignmentID,
				ReportID:     head.ReportID,
				Conflict:     true,
			}); recErr != nil {
				m.logger.Errorf("metrics error: %v", recErr)
			}
		}
		return nil, err
	}

	m.publish(events.StatusChanged{Assignment: *accepted.Clone(), From: model.StatusAssigned, At: m.now()})
	m.notify(ctx, accepted.VolunteerID, KindStatusChanged, map[string]any{
		"assignment_id": accepted.ID,
		"status":        string(accepted.Status),
	})
	if err := m.metrics.RecordAccept(metrics.AcceptRecord{
		AssignmentID:    accepted.ID,
		ReportID:        accepted.ReportID,
		ResponseMinutes: accepted.ResponseTimeMinutes,
	}); err != nil {
		m.logger.Errorf("metrics error: %v", err)
	}
	return accepted, nil
}

// UpdateStatus advances an assignment along the state graph. Acceptance and
// completion have dedicated operations because they carry extra semantics.
func (m *Manager) UpdateStatus(ctx context.Context, assignmentID, volunteerID string, next model.AssignmentStatus, notes string) (*model.Assignment, error) {
	if next == model.StatusAccepted {
		return nil, fmt.Errorf("use Accept to claim an assignment: %w", model.ErrInvalidTransition)
	}
	if next == model.StatusCompleted {
		return nil, fmt.Errorf("use Complete to finish an assignment: %w", model.ErrInvalidTransition)
	}
	return m.mutate(ctx, assignmentID, volunteerID, func(cur *model.Assignment) error {
		if err := cur.Transition(next); err != nil {
			return err
		}
		if notes != "" {
			cur.Notes = notes
		}
		return nil
	})
}

// AppendLocation appends a sample to the assignment's location trail.
func (m *Manager) AppendLocation(ctx context.Context, assignmentID, volunteerID string, pos model.Coordinate) error {
	if !pos.Valid() {
		return fmt.Errorf("location (%f, %f): %w", pos.Lat, pos.Lng, model.ErrInvalidCoordinate)
	}
	_, err := m.mutateQuiet(ctx, assignmentID, volunteerID, func(cur *model.Assignment) error {
		return cur.AppendPing(pos, m.now())
	})
	return err
}

// Complete finishes an assignment with an outcome. Completing an already
// completed assignment is a no-op success: the stored terminal state is
// returned and no side effects are repeated. Stat updates and the report
// status write-back are best-effort and never unwind the committed
// transition.
func (m *Manager) Complete(ctx context.Context, assignmentID, volunteerID string, outcome model.Outcome, notes string) (*model.Assignment, error) {
	head, err := m.store.Get(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if head.VolunteerID != volunteerID {
		return nil, fmt.Errorf("assignment %s belongs to another volunteer: %w", assignmentID, model.ErrNotOwner)
	}

	var completed *model.Assignment
	alreadyDone := false
	err = m.store.InReportTx(ctx, head.ReportID, func(tx store.Tx) error {
		cur, err := tx.Get(ctx, assignmentID)
		if err != nil {
			return err
		}
		if cur.Status == model.StatusCompleted {
			completed = cur
			alreadyDone = true
			return nil
		}
		prev := cur.Status
		if err := cur.Complete(outcome, notes, m.now()); err != nil {
			return fmt.Errorf("complete from %s: %w", prev, err)
		}
		if err := tx.Save(ctx, cur); err != nil {
			return err
		}
		completed = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	if alreadyDone {
		return completed, nil
	}

	if err := m.registry.RecordRescueCompletion(ctx, volunteerID, completed.ResponseTimeMinutes); err != nil {
		m.logger.Errorf("volunteer stat update failed for %s: %v", volunteerID, err)
	}
	if err := m.reports.SetStatus(ctx, completed.ReportID, reportStatusFor(outcome)); err != nil {
		m.logger.Errorf("report %s status update failed: %v", completed.ReportID, err)
	}
	m.publish(events.AssignmentCompleted{
		Assignment:      *completed.Clone(),
		Outcome:         outcome,
		ResponseMinutes: completed.ResponseTimeMinutes,
	})
	m.notify(ctx, volunteerID, KindCompleted, map[string]any{
		"assignment_id": completed.ID,
		"outcome":       string(outcome),
	})
	if err := m.metrics.RecordCompletion(metrics.CompletionRecord{
		AssignmentID:    completed.ID,
		Outcome:         string(outcome),
		ResponseMinutes: completed.ResponseTimeMinutes,
	}); err != nil {
		m.logger.Errorf("metrics error: %v", err)
	}
	return completed, nil
}

// reportStatusFor maps a rescue outcome to the coarse report status.
func reportStatusFor(outcome model.Outcome) model.ReportStatus {
	switch outcome {
	case model.OutcomeSuccess:
		return model.ReportRescued
	case model.OutcomeReferred:
		return model.ReportInvestigating
	default:
		return model.ReportClosed
	}
}

// Cancel withdraws a never-accepted or stalled assignment, e.g. when a
// re-dispatch decision supersedes it.
func (m *Manager) Cancel(ctx context.Context, assignmentID, reason string) (*model.Assignment, error) {
	head, err := m.store.Get(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	return m.mutate(ctx, assignmentID, head.VolunteerID, func(cur *model.Assignment) error {
		if err := cur.Transition(model.StatusCancelled); err != nil {
			return err
		}
		if reason != "" {
			cur.Notes = reason
		}
		return nil
	})
}

// ListAvailableRescues projects the pending reports a volunteer could
// respond to, with distance, score and qualification attached. Read-only.
func (m *Manager) ListAvailableRescues(ctx context.Context, volunteerID string) ([]RescueCandidateView, error) {
	vol, err := m.registry.GetCapability(ctx, volunteerID)
	if err != nil {
		return nil, fmt.Errorf("load capability for %s: %w", volunteerID, err)
	}
	pending, err := m.reports.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pending reports: %w", err)
	}
	mine, err := m.store.ByVolunteer(ctx, volunteerID)
	if err != nil {
		return nil, err
	}
	holding := make(map[string]bool, len(mine))
	for _, a := range mine {
		if a.Status != model.StatusCancelled {
			holding[a.ReportID] = true
		}
	}

	var views []RescueCandidateView
	for _, report := range pending {
		if holding[report.ID] {
			continue
		}
		dist, ok := Eligible(report, vol)
		if !ok {
			continue
		}
		q := qualification.Evaluate(report, vol)
		if q.Level == qualification.MatchNotRecommended {
			continue
		}
		views = append(views, RescueCandidateView{
			Report:        report,
			DistanceKm:    dist,
			Score:         m.ranker.Score(vol, report.Urgency),
			Qualification: q,
		})
	}
	sort.SliceStable(views, func(i, j int) bool {
		if views[i].Score != views[j].Score {
			return views[i].Score > views[j].Score
		}
		if views[i].DistanceKm != views[j].DistanceKm {
			return views[i].DistanceKm < views[j].DistanceKm
		}
		return views[i].Report.ID < views[j].Report.ID
	})
	return views, nil
}

// Get returns one assignment.
func (m *Manager) Get(ctx context.Context, assignmentID string) (*model.Assignment, error) {
	return m.store.Get(ctx, assignmentID)
}

// ListByReport returns all assignments ever created for a report, cancelled
// ones included, for audit views.
func (m *Manager) ListByReport(ctx context.Context, reportID string) ([]*model.Assignment, error) {
	return m.store.ByReport(ctx, reportID)
}

// mutate runs fn on the assignment inside its report's serialized section,
// then emits the lifecycle notification and event.
func (m *Manager) mutate(ctx context.Context, assignmentID, volunteerID string, fn func(*model.Assignment) error) (*model.Assignment, error) {
	var prev model.AssignmentStatus
	updated, err := m.mutateQuiet(ctx, assignmentID, volunteerID, func(cur *model.Assignment) error {
		prev = cur.Status
		return fn(cur)
	})
	if err != nil {
		return nil, err
	}
	m.publish(events.StatusChanged{Assignment: *updated.Clone(), From: prev, At: m.now()})
	m.notify(ctx, updated.VolunteerID, KindStatusChanged, map[string]any{
		"assignment_id": updated.ID,
		"status":        string(updated.Status),
	})
	return updated, nil
}

func (m *Manager) mutateQuiet(ctx context.Context, assignmentID, volunteerID string, fn func(*model.Assignment) error) (*model.Assignment, error) {
	head, err := m.store.Get(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if head.VolunteerID != volunteerID {
		return nil, fmt.Errorf("assignment %s belongs to another volunteer: %w", assignmentID, model.ErrNotOwner)
	}
	var updated *model.Assignment
	err = m.store.InReportTx(ctx, head.ReportID, func(tx store.Tx) error {
		cur, err := tx.Get(ctx, assignmentID)
		if err != nil {
			return err
		}
		if err := fn(cur); err != nil {
			return err
		}
		if err := tx.Save(ctx, cur); err != nil {
			return err
		}
		updated = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// publish sends an event on the bus when one is configured. Delivery is
// non-blocking.
func (m *Manager) publish(e eventbus.Event) {
	if m.bus != nil {
		m.bus.Publish(e)
	}
}

// notify delivers a notification best-effort.
func (m *Manager) notify(ctx context.Context, recipientID, kind string, payload map[string]any) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Send(ctx, recipientID, kind, payload); err != nil {
		m.logger.Warnf("notification %s to %s failed: %v", kind, recipientID, err)
	}
}
