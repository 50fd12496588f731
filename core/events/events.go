// Package events defines the lifecycle events the orchestrator publishes on
// the event bus.
//
// Available event types:
//   - AssignmentCreated: dispatch selected a candidate
//   - StatusChanged: an assignment moved through its lifecycle
//   - AssignmentCompleted: a rescue finished with an outcome
package events

import (
	"time"

	"github.com/strayaid/rescuedispatch/core/model"
)

// AssignmentCreated is published for each assignment a dispatch creates.
type AssignmentCreated struct {
	Assignment model.Assignment
	Urgency    model.Urgency
}

// StatusChanged is published on every lifecycle transition.
type StatusChanged struct {
	Assignment model.Assignment
	From       model.AssignmentStatus
	At         time.Time
}

// AssignmentCompleted is published when a rescue reaches COMPLETED.
type AssignmentCompleted struct {
	Assignment      model.Assignment
	Outcome         model.Outcome
	ResponseMinutes float64
}
