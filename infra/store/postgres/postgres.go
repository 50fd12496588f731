// Package postgres persists assignments in PostgreSQL. Per-report sections
// are serialized with a transaction-scoped advisory lock keyed on the
// report id, so the check-then-act inside Accept stays safe across
// processes.
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/strayaid/rescuedispatch/core/model"
	"github.com/strayaid/rescuedispatch/core/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const uniqueViolation = "23505"

const assignmentColumns = `id, report_id, volunteer_id, type, status,
	assigned_at, accepted_at, completed_at, estimated_arrival,
	travel_distance_km, response_time_minutes, location_trail,
	notes, completion_notes, outcome`

// Store implements store.Store on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to PostgreSQL and applies pending migrations.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	s := &Store{pool: pool}
	if err := s.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) runMigrations(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	rows, err := s.pool.Query(ctx, `SELECT filename FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("failed to query applied migrations: %w", err)
	}
	applied := make(map[string]bool)
	for rows.Next() {
		var filename string
		if err := rows.Scan(&filename); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration filename: %w", err)
		}
		applied[filename] = true
	}
	rows.Close()

	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}
	var sqlFiles []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			sqlFiles = append(sqlFiles, entry.Name())
		}
	}
	sort.Strings(sqlFiles)

	for _, filename := range sqlFiles {
		if applied[filename] {
			continue
		}
		content, err := fs.ReadFile(migrationsFS, "migrations/"+filename)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for %s: %w", filename, err)
		}
		if _, err = tx.Exec(ctx, string(content)); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}
		if _, err = tx.Exec(ctx, `INSERT INTO schema_migrations (filename) VALUES ($1)`, filename); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("failed to record migration %s: %w", filename, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", filename, err)
		}
	}
	return nil
}

// querier covers the query surface shared by the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertAssignment(ctx context.Context, q querier, a *model.Assignment) error {
	trail, err := json.Marshal(a.LocationTrail)
	if err != nil {
		return fmt.Errorf("failed to encode location trail: %w", err)
	}
	_, err = q.Exec(ctx, `
		INSERT INTO assignments (`+assignmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, a.ID, a.ReportID, a.VolunteerID, string(a.Type), string(a.Status),
		a.AssignedAt, a.AcceptedAt, a.CompletedAt, a.EstimatedArrival,
		a.TravelDistanceKm, a.ResponseTimeMinutes, trail,
		a.Notes, a.CompletionNotes, string(a.Outcome))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("report %s volunteer %s: %w", a.ReportID, a.VolunteerID, model.ErrDuplicateAssignment)
		}
		return fmt.Errorf("failed to insert assignment: %w", err)
	}
	return nil
}

func updateAssignment(ctx context.Context, q querier, a *model.Assignment) error {
	trail, err := json.Marshal(a.LocationTrail)
	if err != nil {
		return fmt.Errorf("failed to encode location trail: %w", err)
	}
	tag, err := q.Exec(ctx, `
		UPDATE assignments SET
			type = $2, status = $3, accepted_at = $4, completed_at = $5,
			estimated_arrival = $6, travel_distance_km = $7,
			response_time_minutes = $8, location_trail = $9,
			notes = $10, completion_notes = $11, outcome = $12
		WHERE id = $1
	`, a.ID, string(a.Type), string(a.Status), a.AcceptedAt, a.CompletedAt,
		a.EstimatedArrival, a.TravelDistanceKm, a.ResponseTimeMinutes, trail,
		a.Notes, a.CompletionNotes, string(a.Outcome))
	if err != nil {
		return fmt.Errorf("failed to update assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("assignment %s: %w", a.ID, model.ErrNotFound)
	}
	return nil
}

func scanAssignment(row pgx.Row) (*model.Assignment, error) {
	var (
		a       model.Assignment
		typ     string
		status  string
		outcome string
		trail   []byte
	)
	err := row.Scan(&a.ID, &a.ReportID, &a.VolunteerID, &typ, &status,
		&a.AssignedAt, &a.AcceptedAt, &a.CompletedAt, &a.EstimatedArrival,
		&a.TravelDistanceKm, &a.ResponseTimeMinutes, &trail,
		&a.Notes, &a.CompletionNotes, &outcome)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan assignment: %w", err)
	}
	a.Type = model.AssignmentType(typ)
	a.Status = model.AssignmentStatus(status)
	a.Outcome = model.Outcome(outcome)
	if err := json.Unmarshal(trail, &a.LocationTrail); err != nil {
		return nil, fmt.Errorf("failed to decode location trail: %w", err)
	}
	return &a, nil
}

func queryAssignments(ctx context.Context, q querier, sql string, args ...any) ([]*model.Assignment, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()
	var out []*model.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Create inserts a new assignment.
func (s *Store) Create(ctx context.Context, a *model.Assignment) error {
	return insertAssignment(ctx, s.pool, a)
}

// Get loads one assignment by id.
func (s *Store) Get(ctx context.Context, id string) (*model.Assignment, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE id = $1`, id)
	return scanAssignment(row)
}

// ByReport lists the assignments of one report, oldest first.
func (s *Store) ByReport(ctx context.Context, reportID string) ([]*model.Assignment, error) {
	return queryAssignments(ctx, s.pool, `
		SELECT `+assignmentColumns+` FROM assignments
		WHERE report_id = $1 ORDER BY assigned_at, id
	`, reportID)
}

// ByVolunteer lists the assignments held by one volunteer, oldest first.
func (s *Store) ByVolunteer(ctx context.Context, volunteerID string) ([]*model.Assignment, error) {
	return queryAssignments(ctx, s.pool, `
		SELECT `+assignmentColumns+` FROM assignments
		WHERE volunteer_id = $1 ORDER BY assigned_at, id
	`, volunteerID)
}

// StaleAssigned lists ASSIGNED assignments created before the cutoff.
func (s *Store) StaleAssigned(ctx context.Context, cutoff time.Time) ([]*model.Assignment, error) {
	return queryAssignments(ctx, s.pool, `
		SELECT `+assignmentColumns+` FROM assignments
		WHERE status = $1 AND assigned_at < $2 ORDER BY assigned_at, id
	`, string(model.StatusAssigned), cutoff)
}

// InReportTx runs fn inside a database transaction holding an advisory lock
// on the report id. Concurrent sections for the same report queue behind the
// lock; the lock releases on commit or rollback.
func (s *Store) InReportTx(ctx context.Context, reportID string, fn func(store.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, reportID); err != nil {
		return fmt.Errorf("failed to take report lock: %w", err)
	}
	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Get(ctx context.Context, id string) (*model.Assignment, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE id = $1`, id)
	return scanAssignment(row)
}

func (t *pgTx) ByReport(ctx context.Context, reportID string) ([]*model.Assignment, error) {
	return queryAssignments(ctx, t.tx, `
		SELECT `+assignmentColumns+` FROM assignments
		WHERE report_id = $1 ORDER BY assigned_at, id
	`, reportID)
}

func (t *pgTx) Save(ctx context.Context, a *model.Assignment) error {
	return updateAssignment(ctx, t.tx, a)
}
