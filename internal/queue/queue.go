/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/HamedShams/sprint-pulse/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type Kind string

const (
	KindSprintAnalysis    Kind = "sprint-analysis"
	KindSprintHealthCheck Kind = "sprint-health-check"
	KindStandupAnalysis   Kind = "standup-analysis"
	KindNotification      Kind = "notification"
)

type State string

const (
	StateWaiting   State = "waiting"
	StateDelayed   State = "delayed"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

var ErrJobNotFound = errors.New("job not found")

const (
	finishedTTL  = 7 * 24 * time.Hour
	retryBackoff = 5 * time.Second
)

type Job struct {
	ID          string          `json:"id"`
	Kind        Kind            `json:"kind"`
	Payload     json.RawMessage `json:"payload"`
	Urgent      bool            `json:"urgent,omitempty"`
	State       State           `json:"state"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"maxAttempts"`
	CreatedAt   time.Time       `json:"createdAt"`
	RunAt       time.Time       `json:"runAt"`
	FinishedAt  *time.Time      `json:"finishedAt,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// Decode unmarshals the job payload into v.
func (j *Job) Decode(v any) error {
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload of job %s: %w", j.Kind, j.ID, err)
	}
	return nil
}

// Queue is a small Redis job queue: a ready list consumed from the right,
// a sorted set of delayed jobs scored by run time, and one JSON record per
// job.
type Queue struct {
	rdb         redis.UniversalClient
	prefix      string
	maxAttempts int
	log         zerolog.Logger
	now         func() time.Time
}

func New(rdb redis.UniversalClient, prefix string, maxAttempts int, log zerolog.Logger) *Queue {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &Queue{rdb: rdb, prefix: prefix, maxAttempts: maxAttempts, log: log, now: time.Now}
}

func (q *Queue) jobKey(id string) string { return q.prefix + ":job:" + id }
func (q *Queue) readyKey() string        { return q.prefix + ":ready" }
func (q *Queue) delayedKey() string      { return q.prefix + ":delayed" }

// Enqueue stores a job and makes it ready now, or after delay.
func (q *Queue) Enqueue(ctx context.Context, kind Kind, payload any, delay time.Duration, urgent bool) (*Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	now := q.now().UTC()
	job := &Job{
		ID:          uuid.NewString(),
		Kind:        kind,
		Payload:     raw,
		Urgent:      urgent,
		State:       StateWaiting,
		MaxAttempts: q.maxAttempts,
		CreatedAt:   now,
		RunAt:       now.Add(delay),
	}
	if delay > 0 {
		job.State = StateDelayed
	}
	if err := q.save(ctx, job, 0); err != nil {
		return nil, err
	}
	if delay > 0 {
		err = q.rdb.ZAdd(ctx, q.delayedKey(), redis.Z{Score: float64(job.RunAt.UnixMilli()), Member: job.ID}).Err()
	} else {
		err = q.push(ctx, job)
	}
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", kind, err)
	}
	q.log.Debug().Str("job", job.ID).Str("kind", string(kind)).Dur("delay", delay).Msg("queue: enqueued")
	return job, nil
}

func (q *Queue) push(ctx context.Context, job *Job) error {
	if job.Urgent {
		return q.rdb.RPush(ctx, q.readyKey(), job.ID).Err()
	}
	return q.rdb.LPush(ctx, q.readyKey(), job.ID).Err()
}

func (q *Queue) save(ctx context.Context, job *Job, ttl time.Duration) error {
	b, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.rdb.Set(ctx, q.jobKey(job.ID), b, ttl).Err(); err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return nil
}

func (q *Queue) ScheduleSprintAnalysis(ctx context.Context, sprintID int64, analysisType string, delay time.Duration) (*Job, error) {
	return q.Enqueue(ctx, KindSprintAnalysis, domain.SprintJob{SprintID: sprintID, AnalysisType: analysisType}, delay, false)
}

func (q *Queue) ScheduleSprintHealthCheck(ctx context.Context, sprintID int64) (*Job, error) {
	return q.Enqueue(ctx, KindSprintHealthCheck, domain.SprintJob{SprintID: sprintID, AnalysisType: domain.AnalysisHealth}, 0, false)
}

func (q *Queue) ScheduleStandupAnalysis(ctx context.Context, job domain.StandupJob) (*Job, error) {
	return q.Enqueue(ctx, KindStandupAnalysis, job, 0, false)
}

// ScheduleNotification jumps the line for urgent and high priority messages.
func (q *Queue) ScheduleNotification(ctx context.Context, n domain.Notification) (*Job, error) {
	urgent := n.Priority == "urgent" || n.Priority == "high"
	return q.Enqueue(ctx, KindNotification, n, 0, urgent)
}

// Promote moves delayed jobs whose run time has passed onto the ready list.
// ZREM acts as the claim so concurrent promoters never double-push a job.
func (q *Queue) Promote(ctx context.Context) (int, error) {
	max := strconv.FormatInt(q.now().UTC().UnixMilli(), 10)
	ids, err := q.rdb.ZRangeByScore(ctx, q.delayedKey(), &redis.ZRangeBy{Min: "-inf", Max: max}).Result()
	if err != nil {
		return 0, fmt.Errorf("promote: %w", err)
	}
	moved := 0
	for _, id := range ids {
		n, err := q.rdb.ZRem(ctx, q.delayedKey(), id).Result()
		if err != nil {
			return moved, fmt.Errorf("promote %s: %w", id, err)
		}
		if n == 0 {
			continue
		}
		job, err := q.Status(ctx, id)
		if err != nil {
			q.log.Warn().Err(err).Str("job", id).Msg("queue: dropping delayed job without record")
			continue
		}
		job.State = StateWaiting
		if err := q.save(ctx, job, 0); err != nil {
			return moved, err
		}
		if err := q.push(ctx, job); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}

// Dequeue blocks up to timeout for the next ready job. It returns nil, nil
// when nothing arrived in time.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.readyKey()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue: %w", err)
	}
	job, err := q.Status(ctx, res[1])
	if err != nil {
		return nil, err
	}
	job.State = StateActive
	job.Attempts++
	if err := q.save(ctx, job, 0); err != nil {
		return nil, err
	}
	return job, nil
}

// Complete records a successful run.
func (q *Queue) Complete(ctx context.Context, job *Job, result any) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result of job %s: %w", job.ID, err)
	}
	now := q.now().UTC()
	job.State = StateCompleted
	job.Result = raw
	job.Error = ""
	job.FinishedAt = &now
	return q.save(ctx, job, finishedTTL)
}

// Fail records a failed run and reschedules it with linear backoff until
// MaxAttempts is reached.
func (q *Queue) Fail(ctx context.Context, job *Job, cause error) error {
	job.Error = cause.Error()
	if job.Attempts < job.MaxAttempts {
		job.State = StateDelayed
		job.RunAt = q.now().UTC().Add(time.Duration(job.Attempts) * retryBackoff)
		if err := q.save(ctx, job, 0); err != nil {
			return err
		}
		return q.rdb.ZAdd(ctx, q.delayedKey(), redis.Z{Score: float64(job.RunAt.UnixMilli()), Member: job.ID}).Err()
	}
	now := q.now().UTC()
	job.State = StateFailed
	job.FinishedAt = &now
	return q.save(ctx, job, finishedTTL)
}

// Status returns the stored record of a job.
func (q *Queue) Status(ctx context.Context, id string) (*Job, error) {
	b, err := q.rdb.Get(ctx, q.jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", id, err)
	}
	var job Job
	if err := json.Unmarshal(b, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}
