/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package repo

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/HamedShams/sprint-pulse/internal/config"
	"github.com/HamedShams/sprint-pulse/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

//go:embed schema.sql
var schemaSQL string

type DB struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

func MustOpen(ctx context.Context, cfg config.Config, log zerolog.Logger) *DB {
	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}
	ctx2, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(ctx2); err != nil {
		log.Fatal().Err(err).Msg("db ping failed")
	}
	return &DB{Pool: pool, log: log}
}

func (d *DB) Close() { d.Pool.Close() }

type Repository struct {
	db  *DB
	log zerolog.Logger
}

func NewRepository(d *DB, log zerolog.Logger) *Repository { return &Repository{db: d, log: log} }

// Migrate applies the idempotent schema.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.Pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// lockConn is the slice of *pgxpool.Conn the advisory lock needs.
type lockConn interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Release()
}

// TryAdvisoryLock takes a session advisory lock on a connection held out of
// the pool until the returned unlock runs, so lock and unlock share a
// session. ok is false when another session holds the key.
func (r *Repository) TryAdvisoryLock(ctx context.Context, key int64) (unlock func(context.Context) error, ok bool, err error) {
	conn, err := r.db.Pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock conn: %w", err)
	}
	return tryAdvisoryLock(ctx, conn, key)
}

func tryAdvisoryLock(ctx context.Context, conn lockConn, key int64) (func(context.Context) error, bool, error) {
	var ok bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&ok); err != nil {
		conn.Release()
		return nil, false, err
	}
	if !ok {
		conn.Release()
		return nil, false, nil
	}
	unlock := func(ctx context.Context) error {
		defer conn.Release()
		var released bool
		if err := conn.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", key).Scan(&released); err != nil {
			return err
		}
		if !released {
			return errors.New("advisory unlock returned false")
		}
		return nil
	}
	return unlock, true, nil
}

// GetSprint loads a sprint with its standups (user and blockers attached) and
// backlog items.
func (r *Repository) GetSprint(ctx context.Context, id int64) (*domain.Sprint, error) {
	var s domain.Sprint
	err := r.db.Pool.QueryRow(ctx, `SELECT id, organization_id, name, start_date, end_date FROM sprints WHERE id=$1`, id).
		Scan(&s.ID, &s.OrganizationID, &s.Name, &s.StartDate, &s.EndDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sprint %d: %w", id, err)
	}
	standups, err := r.standups(ctx, `WHERE s.sprint_id=$1 ORDER BY s.created_at`, id)
	if err != nil {
		return nil, err
	}
	s.Standups = standups
	items, err := r.backlogItems(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	s.BacklogItems = items[id]
	return &s, nil
}

// RecentSprints returns the most recently started sprints in scope, newest
// first, with backlog items attached.
func (r *Repository) RecentSprints(ctx context.Context, scope domain.Scope, limit int) ([]domain.Sprint, error) {
	q := `SELECT id, organization_id, name, start_date, end_date FROM sprints`
	args := []any{limit}
	if !scope.Global() {
		q += ` WHERE organization_id=$2`
		args = append(args, scope.OrganizationID)
	}
	q += ` ORDER BY start_date DESC, id DESC LIMIT $1`
	sprints, err := r.sprints(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(sprints))
	for _, s := range sprints {
		ids = append(ids, s.ID)
	}
	items, err := r.backlogItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range sprints {
		sprints[i].BacklogItems = items[sprints[i].ID]
	}
	return sprints, nil
}

// ActiveSprints returns sprints whose date range contains at.
func (r *Repository) ActiveSprints(ctx context.Context, at time.Time) ([]domain.Sprint, error) {
	return r.sprints(ctx, `SELECT id, organization_id, name, start_date, end_date FROM sprints
        WHERE start_date <= $1 AND end_date >= $1 ORDER BY id`, at)
}

func (r *Repository) sprints(ctx context.Context, q string, args ...any) ([]domain.Sprint, error) {
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query sprints: %w", err)
	}
	defer rows.Close()
	var out []domain.Sprint
	for rows.Next() {
		var s domain.Sprint
		if err := rows.Scan(&s.ID, &s.OrganizationID, &s.Name, &s.StartDate, &s.EndDate); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) backlogItems(ctx context.Context, sprintIDs []int64) (map[int64][]domain.BacklogItem, error) {
	out := map[int64][]domain.BacklogItem{}
	if len(sprintIDs) == 0 {
		return out, nil
	}
	rows, err := r.db.Pool.Query(ctx, `SELECT id, sprint_id, title, completed FROM backlog_items WHERE sprint_id = ANY($1) ORDER BY id`, sprintIDs)
	if err != nil {
		return nil, fmt.Errorf("query backlog items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it domain.BacklogItem
		if err := rows.Scan(&it.ID, &it.SprintID, &it.Title, &it.Completed); err != nil {
			return nil, err
		}
		out[it.SprintID] = append(out[it.SprintID], it)
	}
	return out, rows.Err()
}

// GetStandup loads a standup with its user and blockers.
func (r *Repository) GetStandup(ctx context.Context, id int64) (*domain.Standup, error) {
	list, err := r.standups(ctx, `WHERE s.id=$1`, id)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return &list[0], nil
}

func (r *Repository) standups(ctx context.Context, where string, args ...any) ([]domain.Standup, error) {
	q := `SELECT s.id, s.user_id, s.sprint_id, s.yesterday, s.today, s.obstacles, s.created_at,
            u.id, u.name, COALESCE(u.email,'')
        FROM standups s JOIN users u ON u.id = s.user_id ` + where
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query standups: %w", err)
	}
	defer rows.Close()
	var out []domain.Standup
	for rows.Next() {
		var st domain.Standup
		u := &domain.User{}
		if err := rows.Scan(&st.ID, &st.UserID, &st.SprintID, &st.Yesterday, &st.Today, &st.Obstacles, &st.CreatedAt,
			&u.ID, &u.Name, &u.Email); err != nil {
			return nil, err
		}
		st.User = u
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}
	ids := make([]int64, 0, len(out))
	for _, st := range out {
		ids = append(ids, st.ID)
	}
	byStandup, err := r.blockersFor(ctx, `WHERE standup_id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Blockers = byStandup[out[i].ID]
	}
	return out, nil
}

func (r *Repository) blockersFor(ctx context.Context, where string, args ...any) (map[int64][]domain.Blocker, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT id, standup_id, severity, description, resolved, created_at FROM blockers `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query blockers: %w", err)
	}
	defer rows.Close()
	out := map[int64][]domain.Blocker{}
	for rows.Next() {
		var b domain.Blocker
		var sev string
		if err := rows.Scan(&b.ID, &b.StandupID, &sev, &b.Description, &b.Resolved, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.Severity = domain.Severity(sev)
		out[b.StandupID] = append(out[b.StandupID], b)
	}
	return out, rows.Err()
}

// SprintBlockersSince returns blockers reported on standups of the sprint
// created at or after since.
func (r *Repository) SprintBlockersSince(ctx context.Context, sprintID int64, since time.Time) ([]domain.Blocker, error) {
	byStandup, err := r.blockersFor(ctx,
		`WHERE standup_id IN (SELECT id FROM standups WHERE sprint_id=$1 AND created_at >= $2)`, sprintID, since)
	if err != nil {
		return nil, err
	}
	var out []domain.Blocker
	for _, bs := range byStandup {
		out = append(out, bs...)
	}
	return out, nil
}

// Sweep runs
func (r *Repository) StartSweepRun(ctx context.Context) (int64, error) {
	const q = `INSERT INTO sweep_runs(started_at, success) VALUES(now(), false) RETURNING id`
	var id int64
	if err := r.db.Pool.QueryRow(ctx, q).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *Repository) FinishSweepRun(ctx context.Context, id int64, sprints, enqueued int, success bool, errStr string) error {
	const q = `UPDATE sweep_runs SET finished_at=now(), sprints=$2, enqueued=$3, success=$4, error=$5 WHERE id=$1`
	_, err := r.db.Pool.Exec(ctx, q, id, sprints, enqueued, success, errStr)
	return err
}

func (r *Repository) GetLastRun(ctx context.Context) (*domain.SweepRun, error) {
	const q = `SELECT started_at, finished_at, coalesce(sprints,0), coalesce(enqueued,0),
        coalesce(success,false), coalesce(error,'')
        FROM sweep_runs ORDER BY id DESC LIMIT 1`
	lr := &domain.SweepRun{}
	err := r.db.Pool.QueryRow(ctx, q).Scan(&lr.StartedAt, &lr.FinishedAt, &lr.Sprints, &lr.Enqueued, &lr.Success, &lr.Error)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return lr, nil
}
