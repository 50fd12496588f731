package dispatch

import (
	"testing"

	"github.com/strayaid/rescuedispatch/core/model"
)

func baseVolunteer(id string) model.VolunteerCapability {
	return model.VolunteerCapability{
		VolunteerID:           id,
		Base:                  model.Coordinate{Lat: 3.12, Lng: 101.62},
		MaxRescueDistanceKm:   10,
		HasAnimalHandling:     true,
		GPSTrackingConsent:    true,
		AvailableForEmergency: true,
		Active:                true,
		Experience:            model.ExperienceIntermediate,
	}
}

func testReport(urgency model.Urgency) model.RescueReport {
	return model.RescueReport{
		ID:       "r1",
		Location: model.Coordinate{Lat: 3.1, Lng: 101.6},
		Urgency:  urgency,
		Status:   model.ReportPending,
	}
}

func TestFilterPredicates(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*model.VolunteerCapability)
		urg    model.Urgency
		ok     bool
	}{
		{"eligible", func(v *model.VolunteerCapability) {}, model.UrgencyNormal, true},
		{"inactive", func(v *model.VolunteerCapability) { v.Active = false }, model.UrgencyNormal, false},
		{"no consent", func(v *model.VolunteerCapability) { v.GPSTrackingConsent = false }, model.UrgencyNormal, false},
		{"no handling", func(v *model.VolunteerCapability) { v.HasAnimalHandling = false }, model.UrgencyNormal, false},
		{"too far", func(v *model.VolunteerCapability) { v.MaxRescueDistanceKm = 1 }, model.UrgencyNormal, false},
		{"emergency needs flag", func(v *model.VolunteerCapability) { v.AvailableForEmergency = false }, model.UrgencyEmergency, false},
		{"high needs flag", func(v *model.VolunteerCapability) { v.AvailableForEmergency = false }, model.UrgencyHigh, false},
		{"no flag normal ok", func(v *model.VolunteerCapability) { v.AvailableForEmergency = false }, model.UrgencyNormal, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			vol := baseVolunteer("v1")
			tc.mutate(&vol)
			_, ok := Eligible(testReport(tc.urg), vol)
			if ok != tc.ok {
				t.Errorf("eligible = %v, want %v", ok, tc.ok)
			}
		})
	}
}

func TestFilterCandidatesSubsetAndExclusion(t *testing.T) {
	pool := []model.VolunteerCapability{
		baseVolunteer("v1"),
		baseVolunteer("v2"),
		baseVolunteer("v3"),
	}
	pool[2].Active = false
	excluded := map[string]bool{"v2": true}

	out := FilterCandidates(testReport(model.UrgencyNormal), pool, excluded)
	if len(out) != 1 || out[0].Volunteer.VolunteerID != "v1" {
		t.Fatalf("candidates = %+v", out)
	}
	if out[0].DistanceKm <= 0 || out[0].DistanceKm > 10 {
		t.Fatalf("distance = %f", out[0].DistanceKm)
	}
}

func TestFilterNoFalsePositives(t *testing.T) {
	report := testReport(model.UrgencyHigh)
	pool := []model.VolunteerCapability{}
	for i := 0; i < 20; i++ {
		v := baseVolunteer(string(rune('a' + i)))
		switch i % 5 {
		case 1:
			v.Active = false
		case 2:
			v.GPSTrackingConsent = false
		case 3:
			v.MaxRescueDistanceKm = 0.1
		case 4:
			v.AvailableForEmergency = false
		}
		pool = append(pool, v)
	}
	for _, c := range FilterCandidates(report, pool, nil) {
		if _, ok := Eligible(report, c.Volunteer); !ok {
			t.Errorf("candidate %s fails its own predicates", c.Volunteer.VolunteerID)
		}
	}
}
