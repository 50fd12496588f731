package model

import "time"

// Urgency classifies how quickly a rescue report needs a response.
type Urgency int

const (
	UrgencyLow Urgency = iota
	UrgencyNormal
	UrgencyHigh
	UrgencyEmergency
)

// String returns a human-readable representation of the urgency.
func (u Urgency) String() string {
	switch u {
	case UrgencyLow:
		return "LOW"
	case UrgencyNormal:
		return "NORMAL"
	case UrgencyHigh:
		return "HIGH"
	case UrgencyEmergency:
		return "EMERGENCY"
	default:
		return "unknown"
	}
}

// IsCritical reports whether the urgency demands emergency-ready volunteers.
func (u Urgency) IsCritical() bool {
	return u == UrgencyHigh || u == UrgencyEmergency
}

// AnimalType is a coarse hint about the animal involved in a report.
type AnimalType string

const (
	AnimalDog       AnimalType = "dog"
	AnimalCat       AnimalType = "cat"
	AnimalBird      AnimalType = "bird"
	AnimalLivestock AnimalType = "livestock"
	AnimalWildlife  AnimalType = "wildlife"
	AnimalOther     AnimalType = "other"
)

// IsLarge reports whether the animal type requires large-animal handling.
func (t AnimalType) IsLarge() bool {
	return t == AnimalLivestock || t == AnimalWildlife
}

// ReportStatus is the coarse status written back to the report collaborator.
type ReportStatus string

const (
	ReportPending       ReportStatus = "PENDING"
	ReportAssigned      ReportStatus = "ASSIGNED"
	ReportRescued       ReportStatus = "RESCUED"
	ReportInvestigating ReportStatus = "INVESTIGATING"
	ReportClosed        ReportStatus = "CLOSED"
)

// RescueReport is the external rescue request this engine dispatches for.
// It is owned by the report collaborator and read-only here.
type RescueReport struct {
	ID         string
	Location   Coordinate
	Urgency    Urgency
	AnimalType AnimalType
	Condition  string // free-text description of the animal's condition
	CreatedAt  time.Time
	Status     ReportStatus
}
