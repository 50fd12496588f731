package model

import (
	"fmt"
	"time"
)

// AssignmentStatus is the lifecycle state of an assignment.
type AssignmentStatus string

const (
	StatusAssigned  AssignmentStatus = "ASSIGNED"
	StatusAccepted  AssignmentStatus = "ACCEPTED"
	StatusEnRoute   AssignmentStatus = "EN_ROUTE"
	StatusOnScene   AssignmentStatus = "ON_SCENE"
	StatusCompleted AssignmentStatus = "COMPLETED"
	StatusCancelled AssignmentStatus = "CANCELLED"
	StatusNoShow    AssignmentStatus = "NO_SHOW"
)

// transitions is the explicit state graph. A status maps to the set of
// statuses reachable from it. Terminal states have no entry.
var transitions = map[AssignmentStatus][]AssignmentStatus{
	StatusAssigned: {StatusAccepted, StatusCancelled, StatusNoShow},
	StatusAccepted: {StatusEnRoute, StatusOnScene, StatusCompleted, StatusCancelled, StatusNoShow},
	StatusEnRoute:  {StatusOnScene, StatusCompleted},
	StatusOnScene:  {StatusCompleted},
}

// CanTransition reports whether moving from to next is a legal forward step.
func (s AssignmentStatus) CanTransition(next AssignmentStatus) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the status permits no further transitions.
func (s AssignmentStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// Active reports whether the assignment holds the single-active-responder
// slot for its report.
func (s AssignmentStatus) Active() bool {
	return s == StatusAccepted || s == StatusEnRoute || s == StatusOnScene
}

// AssignmentType describes the role a volunteer plays on a rescue.
type AssignmentType string

const (
	TypePrimary   AssignmentType = "PRIMARY"
	TypeBackup    AssignmentType = "BACKUP"
	TypeTransport AssignmentType = "TRANSPORT"
	TypeMedical   AssignmentType = "MEDICAL"
)

// Outcome records how a completed rescue ended.
type Outcome string

const (
	OutcomeSuccess      Outcome = "SUCCESS"
	OutcomePartial      Outcome = "PARTIAL"
	OutcomeUnsuccessful Outcome = "UNSUCCESSFUL"
	OutcomeAnimalGone   Outcome = "ANIMAL_GONE"
	OutcomeReferred     Outcome = "REFERRED"
)

// LocationPing is one immutable entry of an assignment's location trail.
type LocationPing struct {
	Position  Coordinate       `json:"position"`
	Timestamp time.Time        `json:"timestamp"`
	Status    AssignmentStatus `json:"status"`
}

// Assignment is a volunteer's claim on a rescue report. It is the only
// entity owned and persisted by this engine.
type Assignment struct {
	ID          string
	ReportID    string
	VolunteerID string
	Type        AssignmentType
	Status      AssignmentStatus

	AssignedAt       time.Time
	AcceptedAt       *time.Time
	CompletedAt      *time.Time
	EstimatedArrival *time.Time

	TravelDistanceKm    float64
	ResponseTimeMinutes float64 // acceptedAt - assignedAt, set on accept

	// LocationTrail is append-only; entries are never mutated or removed.
	LocationTrail []LocationPing

	Notes           string
	CompletionNotes string
	Outcome         Outcome
}

// Accept transitions the assignment to ACCEPTED, stamping the acceptance
// time exactly once and deriving the response time.
func (a *Assignment) Accept(now time.Time) error {
	if !a.Status.CanTransition(StatusAccepted) {
		return fmt.Errorf("accept from %s: %w", a.Status, ErrInvalidTransition)
	}
	if a.AcceptedAt != nil {
		return fmt.Errorf("acceptance time already set: %w", ErrInvalidTransition)
	}
	if now.Before(a.AssignedAt) {
		now = a.AssignedAt
	}
	a.Status = StatusAccepted
	a.AcceptedAt = &now
	a.ResponseTimeMinutes = now.Sub(a.AssignedAt).Minutes()
	return nil
}

// Transition moves the assignment to next if the state graph allows it.
func (a *Assignment) Transition(next AssignmentStatus) error {
	if !a.Status.CanTransition(next) {
		return fmt.Errorf("transition %s -> %s: %w", a.Status, next, ErrInvalidTransition)
	}
	a.Status = next
	return nil
}

// AppendPing appends a location sample to the trail. Terminal assignments
// reject further pings.
func (a *Assignment) AppendPing(pos Coordinate, now time.Time) error {
	if a.Status.Terminal() {
		return fmt.Errorf("location update on %s assignment: %w", a.Status, ErrInvalidTransition)
	}
	a.LocationTrail = append(a.LocationTrail, LocationPing{Position: pos, Timestamp: now, Status: a.Status})
	return nil
}

// Complete transitions the assignment to COMPLETED and records the outcome.
// Completing an already completed assignment is a no-op.
func (a *Assignment) Complete(outcome Outcome, notes string, now time.Time) error {
	if a.Status == StatusCompleted {
		return nil
	}
	if err := a.Transition(StatusCompleted); err != nil {
		return err
	}
	a.CompletedAt = &now
	a.Outcome = outcome
	if notes != "" {
		a.CompletionNotes = notes
	}
	return nil
}

// Clone returns a deep copy so stores can hand out values without sharing
// the trail's backing array.
func (a *Assignment) Clone() *Assignment {
	cp := *a
	if a.AcceptedAt != nil {
		t := *a.AcceptedAt
		cp.AcceptedAt = &t
	}
	if a.CompletedAt != nil {
		t := *a.CompletedAt
		cp.CompletedAt = &t
	}
	if a.EstimatedArrival != nil {
		t := *a.EstimatedArrival
		cp.EstimatedArrival = &t
	}
	cp.LocationTrail = append([]LocationPing(nil), a.LocationTrail...)
	return &cp
}
