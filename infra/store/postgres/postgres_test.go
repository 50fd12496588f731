package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/strayaid/rescuedispatch/core/model"
	"github.com/strayaid/rescuedispatch/core/store"
)

func startPostgres(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("DOCKER_AVAILABLE") != "true" && os.Getenv("DOCKER_AVAILABLE") != "1" {
		t.Skip("docker not available")
	}
	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "rescue",
			"POSTGRES_PASSWORD": "rescue",
			"POSTGRES_DB":       "rescue",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp"),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)
	dsn := fmt.Sprintf("postgres://rescue:rescue@%s:%s/rescue?sslmode=disable", host, port.Port())

	var st *Store
	for i := 0; i < 10; i++ {
		st, err = New(ctx, dsn)
		if err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func sampleAssignment(reportID, volunteerID string) *model.Assignment {
	return &model.Assignment{
		ID:          uuid.NewString(),
		ReportID:    reportID,
		VolunteerID: volunteerID,
		Type:        model.TypePrimary,
		Status:      model.StatusAssigned,
		AssignedAt:  time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	a := sampleAssignment("r1", "v1")
	a.LocationTrail = []model.LocationPing{{
		Position:  model.Coordinate{Lat: 3.1, Lng: 101.6},
		Timestamp: time.Now().UTC().Truncate(time.Millisecond),
		Status:    model.StatusAssigned,
	}}
	require.NoError(t, st.Create(ctx, a))

	got, err := st.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ReportID, got.ReportID)
	assert.Equal(t, model.StatusAssigned, got.Status)
	assert.Len(t, got.LocationTrail, 1)

	// Duplicate pair is rejected.
	dup := sampleAssignment("r1", "v1")
	err = st.Create(ctx, dup)
	assert.ErrorIs(t, err, model.ErrDuplicateAssignment)

	// Same volunteer on another report is fine.
	require.NoError(t, st.Create(ctx, sampleAssignment("r2", "v1")))

	byReport, err := st.ByReport(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, byReport, 1)

	byVol, err := st.ByVolunteer(ctx, "v1")
	require.NoError(t, err)
	assert.Len(t, byVol, 2)

	_, err = st.Get(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestPostgresStoreTxRollback(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	a := sampleAssignment("r1", "v1")
	require.NoError(t, st.Create(ctx, a))

	boom := errors.New("boom")
	err := st.InReportTx(ctx, "r1", func(tx store.Tx) error {
		cur, err := tx.Get(ctx, a.ID)
		if err != nil {
			return err
		}
		if err := cur.Accept(time.Now()); err != nil {
			return err
		}
		if err := tx.Save(ctx, cur); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := st.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAssigned, got.Status)
}

func TestPostgresStoreTxSerialization(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 8; i++ {
		a := sampleAssignment("r1", fmt.Sprintf("v%d", i))
		require.NoError(t, st.Create(ctx, a))
		ids = append(ids, a.ID)
	}

	// Each section accepts its assignment only when no sibling is active.
	// The advisory lock must serialize the sections so exactly one wins.
	var wg sync.WaitGroup
	accepted := make(chan string, len(ids))
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			err := st.InReportTx(ctx, "r1", func(tx store.Tx) error {
				siblings, err := tx.ByReport(ctx, "r1")
				if err != nil {
					return err
				}
				for _, s := range siblings {
					if s.Status.Active() {
						return model.ErrAlreadyAssigned
					}
				}
				cur, err := tx.Get(ctx, id)
				if err != nil {
					return err
				}
				if err := cur.Accept(time.Now()); err != nil {
					return err
				}
				return tx.Save(ctx, cur)
			})
			if err == nil {
				accepted <- id
			} else if !errors.Is(err, model.ErrAlreadyAssigned) {
				t.Errorf("unexpected error: %v", err)
			}
		}(id)
	}
	wg.Wait()
	close(accepted)

	var winners []string
	for id := range accepted {
		winners = append(winners, id)
	}
	require.Len(t, winners, 1)

	all, err := st.ByReport(ctx, "r1")
	require.NoError(t, err)
	active := 0
	for _, a := range all {
		if a.Status.Active() {
			active++
		}
	}
	assert.Equal(t, 1, active)
}

func TestPostgresStoreStaleAssigned(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	old := sampleAssignment("r1", "v1")
	old.AssignedAt = time.Now().Add(-time.Hour)
	require.NoError(t, st.Create(ctx, old))

	fresh := sampleAssignment("r2", "v2")
	require.NoError(t, st.Create(ctx, fresh))

	stale, err := st.StaleAssigned(ctx, time.Now().Add(-30*time.Minute))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, old.ID, stale[0].ID)
}
