/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/HamedShams/sprint-pulse/internal/analysis"
	"github.com/HamedShams/sprint-pulse/internal/config"
	"github.com/HamedShams/sprint-pulse/internal/domain"
	"github.com/HamedShams/sprint-pulse/internal/queue"
	"github.com/HamedShams/sprint-pulse/internal/repo"
	"github.com/rs/zerolog"
)

const (
	velocityTrendWindow    = 3
	velocityAnalysisWindow = 5
	blockerPatternWindow   = 7 * 24 * time.Hour
	riskFollowUpDelay      = 300000 * time.Millisecond
)

type Store interface {
	GetSprint(ctx context.Context, id int64) (*domain.Sprint, error)
	RecentSprints(ctx context.Context, scope domain.Scope, limit int) ([]domain.Sprint, error)
	GetStandup(ctx context.Context, id int64) (*domain.Standup, error)
	SprintBlockersSince(ctx context.Context, sprintID int64, since time.Time) ([]domain.Blocker, error)
}

type Queue interface {
	ScheduleSprintAnalysis(ctx context.Context, sprintID int64, analysisType string, delay time.Duration) (*queue.Job, error)
	ScheduleStandupAnalysis(ctx context.Context, job domain.StandupJob) (*queue.Job, error)
	ScheduleNotification(ctx context.Context, n domain.Notification) (*queue.Job, error)
}

type Analyzer interface {
	AnalyzeSentiment(ctx context.Context, standup domain.Standup) domain.SentimentResult
	DetectBlockerPatterns(ctx context.Context, descriptions []string) domain.BlockerPatterns
}

type VectorStore interface {
	AddDocument(ctx context.Context, text string, metadata map[string]any) error
}

// Service orchestrates sprint and standup analyses. It holds no state
// between calls; everything lives in the store and the queue.
type Service struct {
	cfg     config.Config
	log     zerolog.Logger
	store   Store
	queue   Queue
	ai      Analyzer
	vectors VectorStore
	now     func() time.Time
}

func New(cfg config.Config, log zerolog.Logger, store Store, q Queue, ai Analyzer, vectors VectorStore) *Service {
	return &Service{cfg: cfg, log: log, store: store, queue: q, ai: ai, vectors: vectors, now: time.Now}
}

func (s *Service) scopeFor(organizationID int64) domain.Scope {
	if s.cfg.VelocityScope == config.ScopeGlobal {
		return domain.Scope{}
	}
	return domain.Scope{OrganizationID: organizationID}
}

func (s *Service) loadSprint(ctx context.Context, id int64) (*domain.Sprint, error) {
	sprint, err := s.store.GetSprint(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("Sprint %d not found", id)
	}
	return sprint, err
}

func (s *Service) loadStandup(ctx context.Context, id int64) (*domain.Standup, error) {
	st, err := s.store.GetStandup(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("Standup %d not found", id)
	}
	return st, err
}

// CalculateVelocityTrend compares completed items of the two most recently
// started sprints in scope.
func (s *Service) CalculateVelocityTrend(ctx context.Context, scope domain.Scope) (float64, error) {
	sprints, err := s.store.RecentSprints(ctx, scope, velocityTrendWindow)
	if err != nil {
		return 0, err
	}
	if len(sprints) < 2 {
		return 0, nil
	}
	return analysis.VelocityTrend(analysis.CompletedCount(sprints[0].BacklogItems), analysis.CompletedCount(sprints[1].BacklogItems)), nil
}

func (s *Service) AnalyzeSprintHealth(ctx context.Context, sprint domain.Sprint) (domain.SprintHealthMetrics, error) {
	trend, err := s.CalculateVelocityTrend(ctx, s.scopeFor(sprint.OrganizationID))
	if err != nil {
		return domain.SprintHealthMetrics{}, fmt.Errorf("velocity trend: %w", err)
	}
	return analysis.ComputeHealth(trend, sprint.Blockers(), sprint.Standups), nil
}

func (s *Service) AssessSprintRisks(ctx context.Context, sprint domain.Sprint) (domain.RiskAssessment, error) {
	m, err := s.AnalyzeSprintHealth(ctx, sprint)
	if err != nil {
		return domain.RiskAssessment{}, err
	}
	return analysis.AssessRisks(m), nil
}

func healthResult(m domain.SprintHealthMetrics) domain.JobResult {
	res := domain.JobResult{
		Success:         true,
		Data:            m,
		Insights:        []string{},
		Recommendations: []string{},
		Metrics: &domain.ResultMetrics{
			RiskScore:             m.RiskScore,
			VelocityTrend:         m.VelocityTrend,
			CompletionProbability: m.CompletionProbability,
		},
	}
	for _, in := range m.Insights {
		res.Insights = append(res.Insights, in.Title)
		res.Recommendations = append(res.Recommendations, in.ActionItems...)
	}
	return res
}

// ProcessSprintAnalysis runs one sprint analysis. Failures are reported in
// the result, never returned.
func (s *Service) ProcessSprintAnalysis(ctx context.Context, job domain.SprintJob) domain.JobResult {
	res, err := s.processSprintAnalysis(ctx, job)
	if err != nil {
		s.log.Error().Err(err).Int64("sprint", job.SprintID).Str("type", job.AnalysisType).Msg("sprint analysis failed")
		return domain.Failed(err)
	}
	return res
}

func (s *Service) processSprintAnalysis(ctx context.Context, job domain.SprintJob) (domain.JobResult, error) {
	sprint, err := s.loadSprint(ctx, job.SprintID)
	if err != nil {
		return domain.JobResult{}, err
	}

	var res domain.JobResult
	var critical []string
	switch job.AnalysisType {
	case domain.AnalysisHealth:
		m, err := s.AnalyzeSprintHealth(ctx, *sprint)
		if err != nil {
			return domain.JobResult{}, err
		}
		res = healthResult(m)
		critical = analysis.CriticalTitles(m.Insights)
	case domain.AnalysisCompletion:
		c := analysis.AnalyzeSprintCompletion(*sprint)
		res = domain.JobResult{Success: true, Data: c, Insights: []string{c.Insight}, Recommendations: []string{}}
	case domain.AnalysisRisk:
		ra, err := s.AssessSprintRisks(ctx, *sprint)
		if err != nil {
			return domain.JobResult{}, err
		}
		res = healthResult(ra.Health)
		res.Data = ra
		res.Insights = []string{}
		for _, r := range ra.Risks {
			res.Insights = append(res.Insights, r.Description)
		}
		res.Recommendations = ra.Mitigations
		critical = analysis.CriticalTitles(ra.Health.Insights)
	default:
		return domain.JobResult{}, fmt.Errorf("Unknown analysis type: %s", job.AnalysisType)
	}

	if len(critical) > 0 {
		s.notify(ctx, domain.Notification{
			Type:      domain.NotificationTelegram,
			Recipient: s.cfg.NotifyRecipient,
			Message:   fmt.Sprintf("Critical sprint issues detected in %s: %s", sprint.Name, strings.Join(critical, ", ")),
			Priority:  "urgent",
			Metadata:  map[string]any{"sprintId": sprint.ID, "analysisType": job.AnalysisType},
		})
	}
	return res, nil
}

// ProcessSprintHealthCheck computes health directly and books a delayed
// risk analysis when the risk score is high.
func (s *Service) ProcessSprintHealthCheck(ctx context.Context, job domain.SprintJob) domain.JobResult {
	sprint, err := s.loadSprint(ctx, job.SprintID)
	if err != nil {
		s.log.Error().Err(err).Int64("sprint", job.SprintID).Msg("health check failed")
		return domain.Failed(err)
	}
	m, err := s.AnalyzeSprintHealth(ctx, *sprint)
	if err != nil {
		s.log.Error().Err(err).Int64("sprint", job.SprintID).Msg("health check failed")
		return domain.Failed(err)
	}
	hc := domain.HealthCheck{Health: m}
	if m.RiskScore > analysis.HighRiskThreshold && s.queue != nil {
		if j, err := s.queue.ScheduleSprintAnalysis(ctx, sprint.ID, domain.AnalysisRisk, riskFollowUpDelay); err != nil {
			s.log.Error().Err(err).Int64("sprint", sprint.ID).Msg("schedule risk follow-up failed")
		} else {
			hc.FollowUpJobID = j.ID
			s.log.Info().Int64("sprint", sprint.ID).Str("job", j.ID).Float64("risk", m.RiskScore).Msg("risk follow-up scheduled")
		}
	}
	res := healthResult(m)
	res.Data = hc
	return res
}

// ProcessRiskAssessment returns an empty assessment shell for the scope.
func (s *Service) ProcessRiskAssessment(_ context.Context, job domain.RiskAssessmentJob) domain.JobResult {
	return domain.JobResult{
		Success: true,
		Data: map[string]any{
			"scope":       job.Scope,
			"risks":       []domain.Risk{},
			"mitigations": []string{},
		},
		Insights:        []string{},
		Recommendations: []string{},
	}
}

// notify enqueues a notification; a failure is logged and swallowed.
func (s *Service) notify(ctx context.Context, n domain.Notification) {
	if s.queue == nil {
		return
	}
	j, err := s.queue.ScheduleNotification(ctx, n)
	if err != nil {
		s.log.Error().Err(err).Str("priority", n.Priority).Msg("notification enqueue failed")
		return
	}
	s.log.Info().Str("job", j.ID).Str("priority", n.Priority).Msg("notification enqueued")
}

