/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func NewRouter(h *Handlers, log zerolog.Logger) *gin.Engine {
	if h.cfg.AppEnv != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.CustomRecovery(func(c *gin.Context, rec any) {
		log.Error().Interface("panic", rec).Str("p", c.FullPath()).Msg("http: panic")
		c.AbortWithStatusJSON(http.StatusInternalServerError, errInternal)
	}))
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().Str("m", c.Request.Method).Str("p", c.FullPath()).Int("s", c.Writer.Status()).Dur("took", time.Since(start)).Msg("http")
	})

	r.GET("/healthz", h.Healthz)
	r.GET("/admin/last-run", h.LastRun)

	wf := r.Group("/api/workflows")
	wf.POST("/sprints/:sprintId/analyze", h.AnalyzeSprint)
	wf.POST("/sprints/:sprintId/health-check", h.SprintHealthCheck)
	wf.POST("/sprints/:sprintId/schedule", h.ScheduleSprint)
	wf.POST("/standups/:standupId/analyze", h.AnalyzeStandup)
	wf.POST("/standups/:standupId/schedule", h.ScheduleStandup)
	wf.POST("/risk-assessment", h.RiskAssessment)
	wf.GET("/jobs/:jobId", h.JobStatus)

	return r
}
