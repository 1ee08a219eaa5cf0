/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/HamedShams/sprint-pulse/internal/config"
	"github.com/HamedShams/sprint-pulse/internal/domain"
	"github.com/HamedShams/sprint-pulse/internal/queue"
	"github.com/rs/zerolog"
)

const (
	dequeueTimeout = 2 * time.Second
	jobTimeout     = 5 * time.Minute
)

type jobQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	Complete(ctx context.Context, job *queue.Job, result any) error
	Fail(ctx context.Context, job *queue.Job, cause error) error
	Promote(ctx context.Context) (int, error)
}

type processor interface {
	ProcessSprintAnalysis(ctx context.Context, job domain.SprintJob) domain.JobResult
	ProcessSprintHealthCheck(ctx context.Context, job domain.SprintJob) domain.JobResult
	ProcessStandupAnalysis(ctx context.Context, job domain.StandupJob) domain.JobResult
}

type Notifier interface {
	Notify(ctx context.Context, recipient, text string) error
}

// Worker pulls jobs off the queue and runs them on a fixed pool of
// goroutines. A separate loop promotes delayed jobs whose time has come.
type Worker struct {
	cfg      config.Config
	log      zerolog.Logger
	q        jobQueue
	svc      processor
	notifier Notifier

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewWorker(cfg config.Config, log zerolog.Logger, q jobQueue, svc processor, notifier Notifier) *Worker {
	return &Worker{cfg: cfg, log: log, q: q, svc: svc, notifier: notifier}
}

// Start launches the pool. Cancelling ctx or calling Stop ends polling only;
// jobs already dequeued run to completion on a context detached from it,
// bounded by jobTimeout.
func (w *Worker) Start(ctx context.Context) {
	runCtx := context.WithoutCancel(ctx)
	ctx, w.cancel = context.WithCancel(ctx)
	n := w.cfg.Workers
	if n <= 0 {
		n = 4
	}
	jobs := make(chan *queue.Job)
	var pool sync.WaitGroup
	for i := 0; i < n; i++ {
		pool.Add(1)
		go func() {
			defer pool.Done()
			for j := range jobs {
				w.handle(runCtx, j)
			}
		}()
	}

	w.wg.Add(2)
	go func() {
		defer w.wg.Done()
		defer func() { close(jobs); pool.Wait() }()
		for ctx.Err() == nil {
			// BRPOP plus the active-state write must not be cut short, or a
			// popped job would be lost.
			j, err := w.q.Dequeue(runCtx, dequeueTimeout)
			if err != nil {
				w.log.Error().Err(err).Msg("worker: dequeue failed")
				sleep(ctx, time.Second)
				continue
			}
			if j == nil {
				continue
			}
			// Workers keep draining until jobs is closed, so this hand-off
			// always completes.
			jobs <- j
		}
	}()
	go func() {
		defer w.wg.Done()
		w.promoteLoop(ctx)
	}()
	w.log.Info().Int("workers", n).Msg("worker: started")
}

// Stop ends polling and waits for in-flight jobs to finish.
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

func (w *Worker) promoteLoop(ctx context.Context) {
	interval := w.cfg.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n, err := w.q.Promote(ctx); err != nil && ctx.Err() == nil {
				w.log.Error().Err(err).Msg("worker: promote failed")
			} else if n > 0 {
				w.log.Debug().Int("jobs", n).Msg("worker: delayed jobs promoted")
			}
		}
	}
}

// handle runs one job under jobTimeout and records the outcome.
func (w *Worker) handle(ctx context.Context, j *queue.Job) {
	start := time.Now()
	jctx, jcancel := context.WithTimeout(ctx, jobTimeout)
	result, err := w.Run(jctx, j)
	jcancel()
	bctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	lg := w.log.With().Str("job", j.ID).Str("kind", string(j.Kind)).Int("attempt", j.Attempts).Dur("took", time.Since(start)).Logger()
	if err != nil {
		lg.Error().Err(err).Msg("worker: job failed")
		if ferr := w.q.Fail(bctx, j, err); ferr != nil {
			lg.Error().Err(ferr).Msg("worker: record failure")
		}
		return
	}
	if cerr := w.q.Complete(bctx, j, result); cerr != nil {
		lg.Error().Err(cerr).Msg("worker: record completion")
		return
	}
	lg.Info().Msg("worker: job completed")
}

// Run dispatches a job by kind. Analysis failures come back inside the
// result; only undecodable payloads and delivery errors are returned.
func (w *Worker) Run(ctx context.Context, j *queue.Job) (any, error) {
	switch j.Kind {
	case queue.KindSprintAnalysis:
		var p domain.SprintJob
		if err := j.Decode(&p); err != nil {
			return nil, err
		}
		return w.svc.ProcessSprintAnalysis(ctx, p), nil
	case queue.KindSprintHealthCheck:
		var p domain.SprintJob
		if err := j.Decode(&p); err != nil {
			return nil, err
		}
		return w.svc.ProcessSprintHealthCheck(ctx, p), nil
	case queue.KindStandupAnalysis:
		var p domain.StandupJob
		if err := j.Decode(&p); err != nil {
			return nil, err
		}
		return w.svc.ProcessStandupAnalysis(ctx, p), nil
	case queue.KindNotification:
		var n domain.Notification
		if err := j.Decode(&n); err != nil {
			return nil, err
		}
		return w.deliver(ctx, n)
	}
	return nil, fmt.Errorf("unknown job kind %q", j.Kind)
}

func (w *Worker) deliver(ctx context.Context, n domain.Notification) (any, error) {
	if n.Type != domain.NotificationTelegram {
		return nil, fmt.Errorf("unsupported notification type %q", n.Type)
	}
	if w.notifier == nil {
		return nil, errors.New("no notifier configured")
	}
	if n.Recipient == "" {
		w.log.Warn().Str("priority", n.Priority).Msg("worker: notification without recipient dropped")
		return domain.JobResult{Success: false, Error: "no recipient"}, nil
	}
	if err := w.notifier.Notify(ctx, n.Recipient, n.Message); err != nil {
		return nil, fmt.Errorf("notify %s: %w", n.Recipient, err)
	}
	return domain.JobResult{Success: true}, nil
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
