package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/HamedShams/sprint-pulse/internal/config"
	"github.com/HamedShams/sprint-pulse/internal/domain"
	"github.com/HamedShams/sprint-pulse/internal/queue"
	"github.com/HamedShams/sprint-pulse/internal/repo"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	sprintJobs []domain.SprintJob
	standups   []domain.StandupJob
	panic      bool
}

func (f *fakeService) ProcessSprintAnalysis(_ context.Context, j domain.SprintJob) domain.JobResult {
	if f.panic {
		panic("boom")
	}
	f.sprintJobs = append(f.sprintJobs, j)
	if j.SprintID == 999 {
		return domain.Failed(errors.New("Sprint 999 not found"))
	}
	return domain.JobResult{Success: true, Insights: []string{}}
}

func (f *fakeService) ProcessSprintHealthCheck(_ context.Context, j domain.SprintJob) domain.JobResult {
	f.sprintJobs = append(f.sprintJobs, j)
	return domain.JobResult{Success: true}
}

func (f *fakeService) ProcessStandupAnalysis(_ context.Context, j domain.StandupJob) domain.JobResult {
	f.standups = append(f.standups, j)
	return domain.JobResult{Success: true}
}

func (f *fakeService) ProcessRiskAssessment(_ context.Context, j domain.RiskAssessmentJob) domain.JobResult {
	return domain.JobResult{Success: true, Data: map[string]any{"scope": j.Scope}}
}

type fakeQueue struct {
	delay time.Duration
	jobs  map[string]*queue.Job
	err   error
}

func (f *fakeQueue) ScheduleSprintAnalysis(_ context.Context, _ int64, _ string, delay time.Duration) (*queue.Job, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.delay = delay
	return &queue.Job{ID: "j-1", State: queue.StateDelayed}, nil
}

func (f *fakeQueue) ScheduleStandupAnalysis(context.Context, domain.StandupJob) (*queue.Job, error) {
	return &queue.Job{ID: "j-2", State: queue.StateWaiting}, f.err
}

func (f *fakeQueue) Status(_ context.Context, id string) (*queue.Job, error) {
	if j, ok := f.jobs[id]; ok {
		return j, nil
	}
	return nil, queue.ErrJobNotFound
}

type fakeRuns struct{ run *domain.SweepRun }

func (f fakeRuns) GetLastRun(context.Context) (*domain.SweepRun, error) {
	if f.run == nil {
		return nil, repo.ErrNotFound
	}
	return f.run, nil
}

func newRouter(svc *fakeService, q *fakeQueue, runs fakeRuns) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandlers(config.Config{AppEnv: "test"}, zerolog.Nop(), svc, q, runs)
	return NewRouter(h, zerolog.Nop())
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAnalyzeSprint(t *testing.T) {
	svc := &fakeService{}
	r := newRouter(svc, &fakeQueue{}, fakeRuns{})

	w := do(r, http.MethodPost, "/api/workflows/sprints/7/analyze", `{"analysisType":"risk"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []domain.SprintJob{{SprintID: 7, AnalysisType: "risk"}}, svc.sprintJobs)

	w = do(r, http.MethodPost, "/api/workflows/sprints/999/analyze", `{"analysisType":"health"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var res domain.JobResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.False(t, res.Success)
	assert.Equal(t, "Sprint 999 not found", res.Error)
}

func TestAnalyzeSprint_BadInput(t *testing.T) {
	svc := &fakeService{}
	r := newRouter(svc, &fakeQueue{}, fakeRuns{})

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/workflows/sprints/abc/analyze", `{"analysisType":"health"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/workflows/sprints/7/analyze", `{"analysisType":"forecast"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/workflows/sprints/7/analyze", `not json`).Code)
	assert.Empty(t, svc.sprintJobs)
}

func TestScheduleSprint(t *testing.T) {
	q := &fakeQueue{}
	r := newRouter(&fakeService{}, q, fakeRuns{})

	w := do(r, http.MethodPost, "/api/workflows/sprints/7/schedule", `{"analysisType":"risk","delayMs":300000}`)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 5*time.Minute, q.delay)
	assert.Contains(t, w.Body.String(), `"jobId":"j-1"`)
}

func TestScheduleSprint_QueueDown(t *testing.T) {
	r := newRouter(&fakeService{}, &fakeQueue{err: errors.New("dial tcp: refused")}, fakeRuns{})
	w := do(r, http.MethodPost, "/api/workflows/sprints/7/schedule", `{"analysisType":"health"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())
}

func TestStandupRoutes(t *testing.T) {
	svc := &fakeService{}
	r := newRouter(svc, &fakeQueue{}, fakeRuns{})

	w := do(r, http.MethodPost, "/api/workflows/standups/4/analyze", `{"analysisType":"blockers","userId":2,"sprintId":7}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, svc.standups, 1)
	assert.Equal(t, int64(4), svc.standups[0].StandupID)
	require.NotNil(t, svc.standups[0].SprintID)
	assert.Equal(t, int64(7), *svc.standups[0].SprintID)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/workflows/standups/4/analyze", `{"analysisType":"health"}`).Code)
	assert.Equal(t, http.StatusAccepted, do(r, http.MethodPost, "/api/workflows/standups/4/schedule", `{"analysisType":"sentiment"}`).Code)
}

func TestJobStatus(t *testing.T) {
	q := &fakeQueue{jobs: map[string]*queue.Job{"j-9": {ID: "j-9", State: queue.StateCompleted}}}
	r := newRouter(&fakeService{}, q, fakeRuns{})

	w := do(r, http.MethodGet, "/api/workflows/jobs/j-9", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"completed"`)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/workflows/jobs/nope", "").Code)
}

func TestRiskAssessmentAndHealthCheck(t *testing.T) {
	svc := &fakeService{}
	r := newRouter(svc, &fakeQueue{}, fakeRuns{})

	w := do(r, http.MethodPost, "/api/workflows/risk-assessment", `{"scope":"team"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"scope":"team"`)

	w = do(r, http.MethodPost, "/api/workflows/sprints/3/health-check", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.AnalysisHealth, svc.sprintJobs[0].AnalysisType)
}

func TestPanicBecomesInternalError(t *testing.T) {
	r := newRouter(&fakeService{panic: true}, &fakeQueue{}, fakeRuns{})
	w := do(r, http.MethodPost, "/api/workflows/sprints/7/analyze", `{"analysisType":"health"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())
}

func TestLastRun(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, do(newRouter(&fakeService{}, &fakeQueue{}, fakeRuns{}), http.MethodGet, "/admin/last-run", "").Code)

	run := &domain.SweepRun{StartedAt: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC), Sprints: 2, Enqueued: 2, Success: true}
	w := do(newRouter(&fakeService{}, &fakeQueue{}, fakeRuns{run: run}), http.MethodGet, "/admin/last-run", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"enqueued":2`)
	assert.Equal(t, http.StatusOK, do(newRouter(&fakeService{}, &fakeQueue{}, fakeRuns{}), http.MethodGet, "/healthz", "").Code)
}
