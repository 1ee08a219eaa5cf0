/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/HamedShams/sprint-pulse/internal/config"
	"github.com/HamedShams/sprint-pulse/internal/domain"
	"github.com/HamedShams/sprint-pulse/internal/queue"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const sweepLockKey int64 = 424243

type sweepStore interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(context.Context) error, ok bool, err error)
	ActiveSprints(ctx context.Context, at time.Time) ([]domain.Sprint, error)
	StartSweepRun(ctx context.Context) (int64, error)
	FinishSweepRun(ctx context.Context, id int64, sprints, enqueued int, success bool, errStr string) error
}

type healthScheduler interface {
	ScheduleSprintHealthCheck(ctx context.Context, sprintID int64) (*queue.Job, error)
}

// Cron books a health check for every active sprint on a schedule. An
// advisory lock keeps concurrent replicas from sweeping twice.
type Cron struct {
	cfg   config.Config
	log   zerolog.Logger
	store sweepStore
	q     healthScheduler
	c     *cron.Cron
	now   func() time.Time
}

func NewCron(cfg config.Config, log zerolog.Logger, store sweepStore, q healthScheduler) (*Cron, error) {
	loc, err := time.LoadLocation(cfg.TZ)
	if err != nil {
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc), cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)))
	cr := &Cron{cfg: cfg, log: log, store: store, q: q, c: c, now: time.Now}
	if _, err := c.AddFunc(cfg.SweepCron, cr.run); err != nil {
		return nil, fmt.Errorf("cron spec %q: %w", cfg.SweepCron, err)
	}
	return cr, nil
}

func (cr *Cron) Start() { cr.c.Start() }
func (cr *Cron) Stop()  { <-cr.c.Stop().Done() }

func (cr *Cron) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if _, err := cr.Sweep(ctx); err != nil {
		cr.log.Error().Err(err).Msg("cron: sweep failed")
	}
}

// Sweep schedules a health check for each sprint active now and records the
// run. It returns the number of jobs enqueued; zero with a nil error means
// another instance holds the lock.
func (cr *Cron) Sweep(ctx context.Context) (int, error) {
	unlock, ok, err := cr.store.TryAdvisoryLock(ctx, sweepLockKey)
	if err != nil {
		return 0, fmt.Errorf("lock: %w", err)
	}
	if !ok {
		cr.log.Info().Msg("cron: sweep already running elsewhere")
		return 0, nil
	}
	defer func() {
		if err := unlock(context.Background()); err != nil {
			cr.log.Warn().Err(err).Msg("cron: unlock failed")
		}
	}()

	runID, err := cr.store.StartSweepRun(ctx)
	if err != nil {
		cr.log.Error().Err(err).Msg("cron: start sweep run failed")
	}
	sprints, err := cr.store.ActiveSprints(ctx, cr.now())
	if err != nil {
		cr.finish(runID, 0, 0, err)
		return 0, fmt.Errorf("active sprints: %w", err)
	}

	enqueued := 0
	var lastErr error
	for _, sp := range sprints {
		j, err := cr.q.ScheduleSprintHealthCheck(ctx, sp.ID)
		if err != nil {
			lastErr = err
			cr.log.Error().Err(err).Int64("sprint", sp.ID).Msg("cron: schedule health check failed")
			continue
		}
		enqueued++
		cr.log.Debug().Int64("sprint", sp.ID).Str("job", j.ID).Msg("cron: health check scheduled")
	}
	cr.finish(runID, len(sprints), enqueued, lastErr)
	cr.log.Info().Int("sprints", len(sprints)).Int("enqueued", enqueued).Msg("cron: sweep done")
	return enqueued, nil
}

func (cr *Cron) finish(runID int64, sprints, enqueued int, cause error) {
	if runID == 0 {
		return
	}
	errStr := ""
	if cause != nil {
		errStr = cause.Error()
	}
	if err := cr.store.FinishSweepRun(context.Background(), runID, sprints, enqueued, cause == nil, errStr); err != nil {
		cr.log.Error().Err(err).Int64("run", runID).Msg("cron: finish sweep run failed")
	}
}
