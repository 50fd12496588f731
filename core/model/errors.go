package model

import "errors"

// Named error conditions surfaced by the engine. Callers classify them with
// errors.Is so the UI can distinguish "someone else took this" from "not
// found" from "system unavailable".
var (
	// ErrNotFound indicates an unknown assignment, report or volunteer id.
	ErrNotFound = errors.New("not found")

	// ErrNotOwner indicates a volunteer acting on an assignment they do not hold.
	ErrNotOwner = errors.New("not the assigned volunteer")

	// ErrAlreadyAssigned indicates another assignment already holds the
	// active-responder slot for the report.
	ErrAlreadyAssigned = errors.New("report already has an active responder")

	// ErrInvalidTransition indicates a status change not present in the
	// assignment state graph.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNoCandidates indicates dispatch found no eligible volunteers.
	// The report stays pending; the caller may widen the search later.
	ErrNoCandidates = errors.New("no eligible candidates found")

	// ErrDuplicateAssignment indicates a second assignment for the same
	// (report, volunteer) pair.
	ErrDuplicateAssignment = errors.New("assignment already exists for volunteer and report")

	// ErrInvalidCoordinate indicates a coordinate outside WGS84 bounds.
	// Rejected synchronously, never retried.
	ErrInvalidCoordinate = errors.New("invalid coordinate")

	// ErrInvariant indicates an internal consistency violation, e.g. two
	// accepted assignments observed for one report. Never reconciled
	// silently.
	ErrInvariant = errors.New("assignment invariant violated")
)
