package qualification

import (
	"fmt"
	"strings"

	"github.com/strayaid/rescuedispatch/core/model"
)

// MatchLevel summarises how well a volunteer fits a report's requirements.
type MatchLevel string

const (
	MatchPerfect        MatchLevel = "perfect"
	MatchGood           MatchLevel = "good"
	MatchCaution        MatchLevel = "caution"
	MatchNotRecommended MatchLevel = "not_recommended"
)

// Result is the gate's verdict for one volunteer and one report.
type Result struct {
	Level              MatchLevel `json:"level"`
	Score              int        `json:"score"` // 0-100
	MissingRequired    []string   `json:"missing_required,omitempty"`
	MissingRecommended []string   `json:"missing_recommended,omitempty"`
	Message            string     `json:"message"`
}

// Scoring split between required and recommended trainings.
const (
	requiredWeight    = 80
	recommendedWeight = 20
)

// Evaluate scores a volunteer's training record against the report's
// requirements. A missing emergency flag is a critical blocker and forces
// not_recommended with score zero regardless of trainings.
func Evaluate(report model.RescueReport, vol model.VolunteerCapability) Result {
	req := Derive(report)

	if req.NeedsEmergencyFlag && !vol.AvailableForEmergency {
		return Result{
			Level:   MatchNotRecommended,
			Score:   0,
			Message: "not available for emergency response",
		}
	}

	var missingReq, missingRec []string
	for _, t := range req.Required {
		if !vol.HasTraining(t) {
			missingReq = append(missingReq, t)
		}
	}
	for _, t := range req.Recommended {
		if !vol.HasTraining(t) {
			missingRec = append(missingRec, t)
		}
	}

	score := requiredWeight
	if len(req.Required) > 0 {
		met := len(req.Required) - len(missingReq)
		score = requiredWeight * met / len(req.Required)
	}
	recScore := recommendedWeight
	if len(req.Recommended) > 0 {
		met := len(req.Recommended) - len(missingRec)
		recScore = recommendedWeight * met / len(req.Recommended)
	}
	score += recScore

	res := Result{
		Score:              score,
		MissingRequired:    missingReq,
		MissingRecommended: missingRec,
	}
	switch {
	case len(missingReq) == 0 && len(missingRec) == 0:
		res.Level = MatchPerfect
		res.Message = "fully qualified for this rescue"
	case len(missingReq) == 0:
		res.Level = MatchGood
		res.Message = fmt.Sprintf("qualified; recommended training missing: %s", strings.Join(missingRec, ", "))
	case score >= 40:
		res.Level = MatchCaution
		res.Message = fmt.Sprintf("required training missing: %s", strings.Join(missingReq, ", "))
	default:
		res.Level = MatchNotRecommended
		res.Message = fmt.Sprintf("not qualified; required training missing: %s", strings.Join(missingReq, ", "))
	}
	return res
}
