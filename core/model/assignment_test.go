package model

import (
	"errors"
	"testing"
	"time"
)

func newAssignment() *Assignment {
	return &Assignment{
		ID:          "a1",
		ReportID:    "r1",
		VolunteerID: "v1",
		Type:        TypePrimary,
		Status:      StatusAssigned,
		AssignedAt:  time.Now().Add(-5 * time.Minute),
	}
}

func TestAcceptSetsTimestamps(t *testing.T) {
	a := newAssignment()
	now := time.Now()
	if err := a.Accept(now); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if a.Status != StatusAccepted {
		t.Fatalf("status = %s", a.Status)
	}
	if a.AcceptedAt == nil || !a.AcceptedAt.Equal(now) {
		t.Fatalf("acceptedAt not stamped")
	}
	if a.ResponseTimeMinutes < 4.9 || a.ResponseTimeMinutes > 5.1 {
		t.Fatalf("responseTime = %f, want ~5", a.ResponseTimeMinutes)
	}
}

func TestAcceptTwiceRejected(t *testing.T) {
	a := newAssignment()
	if err := a.Accept(time.Now()); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := a.Accept(time.Now()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second accept: %v, want ErrInvalidTransition", err)
	}
}

func TestTransitionGraph(t *testing.T) {
	cases := []struct {
		from, to AssignmentStatus
		ok       bool
	}{
		{StatusAssigned, StatusAccepted, true},
		{StatusAssigned, StatusCancelled, true},
		{StatusAssigned, StatusNoShow, true},
		{StatusAssigned, StatusCompleted, false},
		{StatusAssigned, StatusEnRoute, false},
		{StatusAccepted, StatusEnRoute, true},
		{StatusAccepted, StatusCompleted, true},
		{StatusAccepted, StatusCancelled, true},
		{StatusEnRoute, StatusOnScene, true},
		{StatusEnRoute, StatusCancelled, false},
		{StatusOnScene, StatusCompleted, true},
		{StatusOnScene, StatusAssigned, false},
		{StatusCompleted, StatusOnScene, false},
		{StatusCancelled, StatusAccepted, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.ok {
			t.Errorf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestIllegalTransitionLeavesStatus(t *testing.T) {
	a := newAssignment()
	err := a.Transition(StatusCompleted)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v", err)
	}
	if a.Status != StatusAssigned {
		t.Fatalf("status changed to %s on rejected transition", a.Status)
	}
}

func TestCompleteIdempotent(t *testing.T) {
	a := newAssignment()
	if err := a.Accept(time.Now()); err != nil {
		t.Fatalf("accept: %v", err)
	}
	now := time.Now()
	if err := a.Complete(OutcomeSuccess, "done", now); err != nil {
		t.Fatalf("complete: %v", err)
	}
	first := *a.CompletedAt
	if err := a.Complete(OutcomeSuccess, "done again", now.Add(time.Hour)); err != nil {
		t.Fatalf("second complete: %v", err)
	}
	if !a.CompletedAt.Equal(first) {
		t.Fatalf("completedAt changed on repeat completion")
	}
	if a.CompletionNotes != "done" {
		t.Fatalf("notes overwritten: %q", a.CompletionNotes)
	}
}

func TestAppendPingTerminal(t *testing.T) {
	a := newAssignment()
	if err := a.AppendPing(Coordinate{Lat: 1, Lng: 2}, time.Now()); err != nil {
		t.Fatalf("ping on assigned: %v", err)
	}
	a.Status = StatusCancelled
	if err := a.AppendPing(Coordinate{Lat: 1, Lng: 2}, time.Now()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("ping on cancelled: %v", err)
	}
	if len(a.LocationTrail) != 1 {
		t.Fatalf("trail length = %d", len(a.LocationTrail))
	}
}

func TestCloneIsolatesTrail(t *testing.T) {
	a := newAssignment()
	_ = a.AppendPing(Coordinate{Lat: 1, Lng: 1}, time.Now())
	cp := a.Clone()
	_ = a.AppendPing(Coordinate{Lat: 2, Lng: 2}, time.Now())
	if len(cp.LocationTrail) != 1 {
		t.Fatalf("clone shares trail with original")
	}
}
