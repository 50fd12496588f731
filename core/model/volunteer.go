package model

// ExperienceLevel ranks a volunteer's field experience.
type ExperienceLevel int

const (
	ExperienceNone ExperienceLevel = iota
	ExperienceBeginner
	ExperienceIntermediate
	ExperienceExperienced
	ExperienceExpert
)

// String returns a human-readable representation of the level.
func (l ExperienceLevel) String() string {
	switch l {
	case ExperienceBeginner:
		return "BEGINNER"
	case ExperienceIntermediate:
		return "INTERMEDIATE"
	case ExperienceExperienced:
		return "EXPERIENCED"
	case ExperienceExpert:
		return "EXPERT"
	default:
		return "NONE"
	}
}

// VolunteerCapability is the read-only capability record exposed by the
// identity collaborator for one volunteer.
type VolunteerCapability struct {
	VolunteerID           string
	Base                  Coordinate
	MaxRescueDistanceKm   float64
	HasAnimalHandling     bool
	HasTransportation     bool
	GPSTrackingConsent    bool
	AvailableForEmergency bool
	Active                bool
	Experience            ExperienceLevel
	CompletedTrainings    []string
	ActiveCertifications  []string

	// Rolling statistics maintained by the registry.
	AvgResponseMinutes float64 // 0 when the volunteer has no history
	CompletedRescues   int
}

// HasTraining reports whether the volunteer completed the given training.
func (v VolunteerCapability) HasTraining(id string) bool {
	for _, t := range v.CompletedTrainings {
		if t == id {
			return true
		}
	}
	return false
}
