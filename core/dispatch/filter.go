package dispatch

import "github.com/strayaid/rescuedispatch/core/model"

// Eligible applies the structural eligibility predicates for one volunteer.
// It is pure: the precomputed distance is returned so callers do not compute
// it twice.
func Eligible(report model.RescueReport, vol model.VolunteerCapability) (float64, bool) {
	if !vol.Active || !vol.GPSTrackingConsent || !vol.HasAnimalHandling {
		return 0, false
	}
	if report.Urgency.IsCritical() && !vol.AvailableForEmergency {
		return 0, false
	}
	dist := vol.Base.DistanceKm(report.Location)
	if dist > vol.MaxRescueDistanceKm {
		return 0, false
	}
	return dist, true
}

// FilterCandidates narrows the volunteer pool to those structurally eligible
// for the report. excluded holds volunteer ids that already received an
// assignment for this report. The function has no side effects and touches
// no datastore.
func FilterCandidates(report model.RescueReport, pool []model.VolunteerCapability, excluded map[string]bool) []Candidate {
	var out []Candidate
	for _, vol := range pool {
		if excluded[vol.VolunteerID] {
			continue
		}
		dist, ok := Eligible(report, vol)
		if !ok {
			continue
		}
		out = append(out, Candidate{Volunteer: vol, DistanceKm: dist})
	}
	return out
}
