/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/HamedShams/sprint-pulse/internal/config"
	"github.com/HamedShams/sprint-pulse/internal/domain"
	"github.com/HamedShams/sprint-pulse/internal/queue"
	"github.com/HamedShams/sprint-pulse/internal/repo"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type service interface {
	ProcessSprintAnalysis(ctx context.Context, job domain.SprintJob) domain.JobResult
	ProcessSprintHealthCheck(ctx context.Context, job domain.SprintJob) domain.JobResult
	ProcessStandupAnalysis(ctx context.Context, job domain.StandupJob) domain.JobResult
	ProcessRiskAssessment(ctx context.Context, job domain.RiskAssessmentJob) domain.JobResult
}

type jobQueue interface {
	ScheduleSprintAnalysis(ctx context.Context, sprintID int64, analysisType string, delay time.Duration) (*queue.Job, error)
	ScheduleStandupAnalysis(ctx context.Context, job domain.StandupJob) (*queue.Job, error)
	Status(ctx context.Context, id string) (*queue.Job, error)
}

type runStore interface {
	GetLastRun(ctx context.Context) (*domain.SweepRun, error)
}

type Handlers struct {
	cfg   config.Config
	log   zerolog.Logger
	svc   service
	q     jobQueue
	store runStore
}

func NewHandlers(cfg config.Config, log zerolog.Logger, svc service, q jobQueue, store runStore) *Handlers {
	return &Handlers{cfg: cfg, log: log, svc: svc, q: q, store: store}
}

var errInternal = gin.H{"error": "Internal server error"}

func (h *Handlers) internal(c *gin.Context, err error) {
	h.log.Error().Err(err).Str("p", c.FullPath()).Msg("http: request failed")
	c.JSON(http.StatusInternalServerError, errInternal)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

func (h *Handlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type analyzeRequest struct {
	AnalysisType string `json:"analysisType"`
	DelayMs      int64  `json:"delayMs"`
}

func (h *Handlers) AnalyzeSprint(c *gin.Context) {
	id, ok := pathID(c, "sprintId")
	if !ok {
		return
	}
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil || !domain.ValidSprintAnalysis(req.AnalysisType) {
		badRequest(c, "analysisType must be one of health, completion, risk")
		return
	}
	c.JSON(http.StatusOK, h.svc.ProcessSprintAnalysis(c.Request.Context(), domain.SprintJob{SprintID: id, AnalysisType: req.AnalysisType}))
}

func (h *Handlers) SprintHealthCheck(c *gin.Context) {
	id, ok := pathID(c, "sprintId")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.svc.ProcessSprintHealthCheck(c.Request.Context(), domain.SprintJob{SprintID: id, AnalysisType: domain.AnalysisHealth}))
}

func (h *Handlers) ScheduleSprint(c *gin.Context) {
	id, ok := pathID(c, "sprintId")
	if !ok {
		return
	}
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil || !domain.ValidSprintAnalysis(req.AnalysisType) {
		badRequest(c, "analysisType must be one of health, completion, risk")
		return
	}
	if req.DelayMs < 0 {
		badRequest(c, "delayMs must not be negative")
		return
	}
	j, err := h.q.ScheduleSprintAnalysis(c.Request.Context(), id, req.AnalysisType, time.Duration(req.DelayMs)*time.Millisecond)
	if err != nil {
		h.internal(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"jobId": j.ID, "state": j.State, "runAt": j.RunAt})
}

type standupRequest struct {
	AnalysisType string `json:"analysisType"`
	UserID       int64  `json:"userId"`
	SprintID     *int64 `json:"sprintId"`
}

func (h *Handlers) AnalyzeStandup(c *gin.Context) {
	id, ok := pathID(c, "standupId")
	if !ok {
		return
	}
	var req standupRequest
	if err := c.ShouldBindJSON(&req); err != nil || !domain.ValidStandupAnalysis(req.AnalysisType) {
		badRequest(c, "analysisType must be one of sentiment, blockers, velocity")
		return
	}
	job := domain.StandupJob{StandupID: id, UserID: req.UserID, SprintID: req.SprintID, AnalysisType: req.AnalysisType}
	c.JSON(http.StatusOK, h.svc.ProcessStandupAnalysis(c.Request.Context(), job))
}

func (h *Handlers) ScheduleStandup(c *gin.Context) {
	id, ok := pathID(c, "standupId")
	if !ok {
		return
	}
	var req standupRequest
	if err := c.ShouldBindJSON(&req); err != nil || !domain.ValidStandupAnalysis(req.AnalysisType) {
		badRequest(c, "analysisType must be one of sentiment, blockers, velocity")
		return
	}
	job := domain.StandupJob{StandupID: id, UserID: req.UserID, SprintID: req.SprintID, AnalysisType: req.AnalysisType}
	j, err := h.q.ScheduleStandupAnalysis(c.Request.Context(), job)
	if err != nil {
		h.internal(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"jobId": j.ID, "state": j.State, "runAt": j.RunAt})
}

func (h *Handlers) RiskAssessment(c *gin.Context) {
	var req domain.RiskAssessmentJob
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	c.JSON(http.StatusOK, h.svc.ProcessRiskAssessment(c.Request.Context(), req))
}

func (h *Handlers) JobStatus(c *gin.Context) {
	j, err := h.q.Status(c.Request.Context(), c.Param("jobId"))
	if errors.Is(err, queue.ErrJobNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	if err != nil {
		h.internal(c, err)
		return
	}
	c.JSON(http.StatusOK, j)
}

func (h *Handlers) LastRun(c *gin.Context) {
	lr, err := h.store.GetLastRun(c.Request.Context())
	if errors.Is(err, repo.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no sweep has run yet"})
		return
	}
	if err != nil {
		h.internal(c, err)
		return
	}
	c.JSON(http.StatusOK, lr)
}
