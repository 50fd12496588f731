package dispatch

import (
	"github.com/strayaid/rescuedispatch/core/model"
	"github.com/strayaid/rescuedispatch/core/qualification"
)

// Candidate is a volunteer that passed structural eligibility for a report,
// together with the data the ranking engine needs.
type Candidate struct {
	Volunteer     model.VolunteerCapability
	DistanceKm    float64
	Score         float64
	Qualification qualification.Result
}

// RescueCandidateView is the read-only projection returned by
// ListAvailableRescues for a volunteer's "what can I respond to" screen.
type RescueCandidateView struct {
	Report        model.RescueReport   `json:"report"`
	DistanceKm    float64              `json:"distance_km"`
	Score         float64              `json:"score"`
	Qualification qualification.Result `json:"qualification"`
}

// DispatchResult summarises one dispatch run.
type DispatchResult struct {
	ReportID    string
	Assignments []*model.Assignment
	Candidates  []Candidate
}
