// Package qualification maps a rescue report's attributes to required and
// recommended trainings and scores a volunteer's record against them.
package qualification

import (
	"strings"

	"github.com/strayaid/rescuedispatch/core/model"
)

// Training identifiers understood by the gate.
const (
	TrainingBasicRescue     = "basic_rescue"
	TrainingFirstAid        = "animal_first_aid"
	TrainingBehavior        = "behavior_handling"
	TrainingLargeAnimal     = "large_animal_handling"
	TrainingSceneManagement = "scene_management"
)

// Level marks how strongly a training is demanded.
type Level int

const (
	Recommended Level = iota
	Required
)

// conditionRule binds a set of condition keywords to a training demand.
// Rules are evaluated against the lower-cased free-text condition; when a
// keyword matches, the training is demanded at the rule's level.
type conditionRule struct {
	keywords []string
	training string
	level    Level
}

// conditionRules is the policy table for free-text condition classification.
// Ordering matters: a later Required rule upgrades an earlier Recommended
// demand for the same training.
var conditionRules = []conditionRule{
	{
		keywords: []string{"sick", "ill", "weak", "lethargic", "dehydrated"},
		training: TrainingFirstAid,
		level:    Recommended,
	},
	{
		keywords: []string{"injured", "injury", "bleeding", "wounded", "hit by", "broken", "hurt", "limping"},
		training: TrainingFirstAid,
		level:    Required,
	},
	{
		keywords: []string{"aggressive", "attacking", "biting", "growling", "snapping"},
		training: TrainingBehavior,
		level:    Required,
	},
}

// Requirements is the set of trainings demanded for one report, plus
// whether the emergency-availability flag is mandatory.
type Requirements struct {
	Required           []string
	Recommended        []string
	NeedsEmergencyFlag bool
}

// demand records a training at the strongest level seen so far.
func (r *Requirements) demand(training string, level Level) {
	if level == Required {
		for i, t := range r.Recommended {
			if t == training {
				r.Recommended = append(r.Recommended[:i], r.Recommended[i+1:]...)
				break
			}
		}
		for _, t := range r.Required {
			if t == training {
				return
			}
		}
		r.Required = append(r.Required, training)
		return
	}
	for _, t := range r.Required {
		if t == training {
			return
		}
	}
	for _, t := range r.Recommended {
		if t == training {
			return
		}
	}
	r.Recommended = append(r.Recommended, training)
}

// Derive computes the training requirements for a report from the policy
// tables.
func Derive(report model.RescueReport) Requirements {
	var req Requirements
	req.demand(TrainingBasicRescue, Required)

	condition := strings.ToLower(report.Condition)
	for _, rule := range conditionRules {
		for _, kw := range rule.keywords {
			if strings.Contains(condition, kw) {
				req.demand(rule.training, rule.level)
				break
			}
		}
	}

	if report.AnimalType.IsLarge() {
		req.demand(TrainingLargeAnimal, Required)
	}

	switch report.Urgency {
	case model.UrgencyHigh:
		req.demand(TrainingSceneManagement, Recommended)
	case model.UrgencyEmergency:
		req.demand(TrainingSceneManagement, Required)
		req.NeedsEmergencyFlag = true
	}
	return req
}
