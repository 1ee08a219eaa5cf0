package jobs

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/HamedShams/sprint-pulse/internal/config"
	"github.com/HamedShams/sprint-pulse/internal/domain"
	"github.com/HamedShams/sprint-pulse/internal/queue"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type finished struct {
	id                int64
	sprints, enqueued int
	success           bool
	errStr            string
}

type fakeSweepStore struct {
	locked   bool
	unlocked bool
	active   []domain.Sprint
	at       time.Time
	finished []finished
}

func (f *fakeSweepStore) TryAdvisoryLock(context.Context, int64) (func(context.Context) error, bool, error) {
	if f.locked {
		return nil, false, nil
	}
	f.locked = true
	return func(context.Context) error {
		f.locked = false
		f.unlocked = true
		return nil
	}, true, nil
}
func (f *fakeSweepStore) ActiveSprints(_ context.Context, at time.Time) ([]domain.Sprint, error) {
	f.at = at
	return f.active, nil
}
func (f *fakeSweepStore) StartSweepRun(context.Context) (int64, error) { return 11, nil }
func (f *fakeSweepStore) FinishSweepRun(_ context.Context, id int64, sprints, enqueued int, success bool, errStr string) error {
	f.finished = append(f.finished, finished{id, sprints, enqueued, success, errStr})
	return nil
}

type fakeScheduler struct {
	ids  []int64
	fail int64
}

func (f *fakeScheduler) ScheduleSprintHealthCheck(_ context.Context, sprintID int64) (*queue.Job, error) {
	if sprintID == f.fail {
		return nil, errors.New("redis unavailable")
	}
	f.ids = append(f.ids, sprintID)
	return &queue.Job{ID: fmt.Sprintf("hc-%d", sprintID)}, nil
}

func newCron(t *testing.T, store *fakeSweepStore, q *fakeScheduler) *Cron {
	cr, err := NewCron(config.Config{TZ: "UTC", SweepCron: "0 9 * * MON-FRI"}, zerolog.Nop(), store, q)
	require.NoError(t, err)
	cr.now = func() time.Time { return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC) }
	return cr
}

func TestSweep_SchedulesActiveSprints(t *testing.T) {
	store := &fakeSweepStore{active: []domain.Sprint{{ID: 1}, {ID: 2}, {ID: 3}}}
	q := &fakeScheduler{}
	cr := newCron(t, store, q)

	n, err := cr.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []int64{1, 2, 3}, q.ids)
	assert.Equal(t, cr.now(), store.at)
	assert.True(t, store.unlocked)
	assert.Equal(t, []finished{{11, 3, 3, true, ""}}, store.finished)
}

func TestSweep_PartialFailureRecorded(t *testing.T) {
	store := &fakeSweepStore{active: []domain.Sprint{{ID: 1}, {ID: 2}}}
	cr := newCron(t, store, &fakeScheduler{fail: 2})

	n, err := cr.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, store.finished, 1)
	assert.False(t, store.finished[0].success)
	assert.Equal(t, "redis unavailable", store.finished[0].errStr)
}

func TestSweep_SkipsWhenLocked(t *testing.T) {
	store := &fakeSweepStore{locked: true, active: []domain.Sprint{{ID: 1}}}
	q := &fakeScheduler{}
	cr := newCron(t, store, q)

	n, err := cr.Sweep(context.Background())

	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, q.ids)
	assert.False(t, store.unlocked)
	assert.Empty(t, store.finished)
}

func TestNewCron_BadSpec(t *testing.T) {
	_, err := NewCron(config.Config{TZ: "UTC", SweepCron: "every day"}, zerolog.Nop(), &fakeSweepStore{}, &fakeScheduler{})
	assert.Error(t, err)
}

func TestSweep_ReleasesLockForNextRun(t *testing.T) {
	store := &fakeSweepStore{active: []domain.Sprint{{ID: 1}}}
	q := &fakeScheduler{}
	cr := newCron(t, store, q)

	_, err := cr.Sweep(context.Background())
	require.NoError(t, err)
	n, err := cr.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	assert.Equal(t, []int64{1, 1}, q.ids)
	assert.False(t, store.locked)
	assert.Len(t, store.finished, 2)
}
