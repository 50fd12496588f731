package dispatch

import (
	"sort"

	"github.com/strayaid/rescuedispatch/core/model"
)

// RankingEngine orders candidates by a weighted suitability score. The
// weights follow the shelter's dispatch policy and can be tuned per
// deployment through Config.
type RankingEngine struct {
	EmergencyBonus   float64 // added when the report is critical and the volunteer is emergency-ready
	TransportBonus   float64 // added when the volunteer has transportation
	ResponseBonusMax float64 // max bonus for a fast responder
	ResponseWindowMn float64 // response times beyond this window earn no bonus
}

// NewRankingEngine returns an engine with the default policy weights.
func NewRankingEngine() RankingEngine {
	return RankingEngine{
		EmergencyBonus:   10,
		TransportBonus:   5,
		ResponseBonusMax: 5,
		ResponseWindowMn: 30,
	}
}

// Score computes the weighted suitability score for one volunteer.
func (e RankingEngine) Score(vol model.VolunteerCapability, urgency model.Urgency) float64 {
	score := float64(vol.Experience)
	if urgency.IsCritical() && vol.AvailableForEmergency {
		score += e.EmergencyBonus
	}
	if vol.HasTransportation {
		score += e.TransportBonus
	}
	if vol.AvgResponseMinutes > 0 {
		slack := e.ResponseWindowMn - vol.AvgResponseMinutes
		if slack > 0 {
			score += slack / e.ResponseWindowMn * e.ResponseBonusMax
		}
	}
	return score
}

// Rank scores the candidates and returns them in descending desirability.
// The sort is stable and deterministic: ties on score break on ascending
// distance, then on volunteer id so equal inputs always produce equal
// output.
func (e RankingEngine) Rank(candidates []Candidate, urgency model.Urgency) []Candidate {
	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)
	for i := range ranked {
		ranked[i].Score = e.Score(ranked[i].Volunteer, urgency)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if ranked[i].DistanceKm != ranked[j].DistanceKm {
			return ranked[i].DistanceKm < ranked[j].DistanceKm
		}
		return ranked[i].Volunteer.VolunteerID < ranked[j].Volunteer.VolunteerID
	})
	return ranked
}

// CandidateLimit returns how many candidates a dispatch should notify for
// the given urgency. Policy constant, kept out of the ranking math.
func CandidateLimit(urgency model.Urgency) int {
	if urgency.IsCritical() {
		return 3
	}
	return 2
}
