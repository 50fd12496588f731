package redispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strayaid/rescuedispatch/config"
	"github.com/strayaid/rescuedispatch/core/dispatch"
	"github.com/strayaid/rescuedispatch/core/model"
	"github.com/strayaid/rescuedispatch/core/qualification"
	"github.com/strayaid/rescuedispatch/core/store"
	"github.com/strayaid/rescuedispatch/infra/logger"
	"github.com/strayaid/rescuedispatch/infra/registry"
	"github.com/strayaid/rescuedispatch/infra/reports"
	"github.com/strayaid/rescuedispatch/internal/eventbus"
)

func capable(id string) model.VolunteerCapability {
	return model.VolunteerCapability{
		VolunteerID:           id,
		Base:                  model.Coordinate{Lat: 3.12, Lng: 101.62},
		MaxRescueDistanceKm:   15,
		HasAnimalHandling:     true,
		GPSTrackingConsent:    true,
		AvailableForEmergency: true,
		Active:                true,
		Experience:            model.ExperienceIntermediate,
		CompletedTrainings:    []string{qualification.TrainingBasicRescue, qualification.TrainingFirstAid},
	}
}

func newFixture(t *testing.T) (*store.MemoryStore, *dispatch.Manager, *Sweeper) {
	t.Helper()
	st := store.NewMemoryStore()
	reg := registry.NewMemoryRegistry(capable("v1"), capable("v2"), capable("v3"), capable("v4"))
	reps := reports.NewMemoryReports(model.RescueReport{
		ID:        "r1",
		Location:  model.Coordinate{Lat: 3.1, Lng: 101.6},
		Urgency:   model.UrgencyNormal,
		Condition: "hurt wing",
		Status:    model.ReportPending,
		CreatedAt: time.Now().Add(-2 * time.Hour),
	})
	var cfg dispatch.Config
	cfg.SetDefaults()
	mgr, err := dispatch.NewManager(st, reg, reps, nil, cfg, nil, eventbus.New(), logger.NopLogger{})
	require.NoError(t, err)

	sw := NewSweeper(st, mgr, config.RedispatchConfig{StaleAfterMinutes: 30}, logger.NopLogger{})
	return st, mgr, sw
}

func TestSweepCancelsStaleAndRedispatches(t *testing.T) {
	ctx := context.Background()
	st, mgr, sw := newFixture(t)

	res, err := mgr.Dispatch(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, res.Assignments, 2)

	// Nobody responded; age the assignments past the window.
	sw.now = func() time.Time { return time.Now().Add(time.Hour) }

	require.NoError(t, sw.Sweep(ctx))

	all, err := st.ByReport(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, all, 4, "two cancelled plus two fresh assignments")

	fresh := 0
	for _, a := range all {
		switch a.Status {
		case model.StatusAssigned:
			fresh++
		case model.StatusCancelled:
		default:
			t.Fatalf("unexpected status %s", a.Status)
		}
	}
	assert.Equal(t, 2, fresh)

	// The no-show volunteers must not be re-selected.
	holders := make(map[string]int)
	for _, a := range all {
		holders[a.VolunteerID]++
	}
	for v, n := range holders {
		assert.Equalf(t, 1, n, "volunteer %s assigned twice", v)
	}
}

func TestSweepSkipsFreshAndAccepted(t *testing.T) {
	ctx := context.Background()
	st, mgr, sw := newFixture(t)

	res, err := mgr.Dispatch(ctx, "r1")
	require.NoError(t, err)
	a := res.Assignments[0]
	_, err = mgr.Accept(ctx, a.ID, a.VolunteerID, dispatch.AcceptOptions{})
	require.NoError(t, err)

	require.NoError(t, sw.Sweep(ctx))

	all, err := st.ByReport(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, all, 2, "fresh assignments are left alone")
	got, err := st.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAccepted, got.Status)
}
