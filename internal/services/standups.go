/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/HamedShams/sprint-pulse/internal/analysis"
	"github.com/HamedShams/sprint-pulse/internal/config"
	"github.com/HamedShams/sprint-pulse/internal/domain"
)

// ProcessStandupAnalysis dispatches a standup job by analysis type.
func (s *Service) ProcessStandupAnalysis(ctx context.Context, job domain.StandupJob) domain.JobResult {
	switch job.AnalysisType {
	case domain.AnalysisSentiment:
		return s.ProcessStandupSentimentAnalysis(ctx, job)
	case domain.AnalysisBlockers:
		return s.ProcessBlockerPatternDetection(ctx, job)
	case domain.AnalysisVelocity:
		return s.ProcessTeamVelocityAnalysis(ctx, job)
	}
	err := fmt.Errorf("Unknown analysis type: %s", job.AnalysisType)
	s.log.Error().Err(err).Int64("standup", job.StandupID).Msg("standup analysis failed")
	return domain.Failed(err)
}

func (s *Service) standupFailed(job domain.StandupJob, err error) domain.JobResult {
	s.log.Error().Err(err).Int64("standup", job.StandupID).Str("type", job.AnalysisType).Msg("standup analysis failed")
	return domain.Failed(err)
}

func standupText(st domain.Standup) string {
	return strings.TrimSpace(fmt.Sprintf("%s\n%s\n%s", st.Yesterday, st.Today, st.Obstacles))
}

func (s *Service) ProcessStandupSentimentAnalysis(ctx context.Context, job domain.StandupJob) domain.JobResult {
	st, err := s.loadStandup(ctx, job.StandupID)
	if err != nil {
		return s.standupFailed(job, err)
	}
	sentiment := s.ai.AnalyzeSentiment(ctx, *st)
	s.index(ctx, *st)
	return domain.JobResult{
		Success:         true,
		Data:            sentiment,
		Insights:        []string{sentiment.Summary},
		Recommendations: []string{},
	}
}

// index stores the redacted standup in the vector store; failures are
// logged only.
func (s *Service) index(ctx context.Context, st domain.Standup) {
	if s.vectors == nil {
		return
	}
	var sprintID any
	if st.SprintID != nil {
		sprintID = *st.SprintID
	}
	meta := map[string]any{
		"type":      "standup",
		"id":        st.ID,
		"userId":    st.UserID,
		"sprintId":  sprintID,
		"createdAt": st.CreatedAt.UTC().Format(time.RFC3339),
	}
	var names []string
	if st.User != nil {
		names = append(names, st.User.Name)
	}
	text := analysis.RedactPII([]string{standupText(st)}, names)[0]
	if err := s.vectors.AddDocument(ctx, text, meta); err != nil {
		s.log.Warn().Err(err).Int64("standup", st.ID).Msg("standup indexing failed")
	}
}

func (s *Service) ProcessBlockerPatternDetection(ctx context.Context, job domain.StandupJob) domain.JobResult {
	st, err := s.loadStandup(ctx, job.StandupID)
	if err != nil {
		return s.standupFailed(job, err)
	}
	blockers := st.Blockers
	if st.SprintID != nil {
		blockers, err = s.store.SprintBlockersSince(ctx, *st.SprintID, s.now().Add(-blockerPatternWindow))
		if err != nil {
			return s.standupFailed(job, fmt.Errorf("load sprint blockers: %w", err))
		}
	}
	descriptions := make([]string, 0, len(blockers))
	for _, b := range blockers {
		descriptions = append(descriptions, b.Description)
	}
	patterns := s.ai.DetectBlockerPatterns(ctx, descriptions)

	if len(patterns.RecurringPatterns) > 0 {
		meta := map[string]any{"standupId": st.ID}
		if st.SprintID != nil {
			meta["sprintId"] = *st.SprintID
		}
		s.notify(ctx, domain.Notification{
			Type:      domain.NotificationTelegram,
			Recipient: s.cfg.NotifyRecipient,
			Message:   "Recurring blocker patterns detected: " + strings.Join(patterns.RecurringPatterns, ", "),
			Priority:  "high",
			Metadata:  meta,
		})
	}
	return domain.JobResult{
		Success:         true,
		Data:            patterns,
		Insights:        patterns.Insights,
		Recommendations: patterns.Recommendations,
	}
}

func (s *Service) ProcessTeamVelocityAnalysis(ctx context.Context, job domain.StandupJob) domain.JobResult {
	st, err := s.loadStandup(ctx, job.StandupID)
	if err != nil {
		return s.standupFailed(job, err)
	}
	scope := domain.Scope{}
	if s.cfg.VelocityScope != config.ScopeGlobal {
		if st.SprintID == nil {
			return s.standupFailed(job, fmt.Errorf("Standup %d has no sprint; velocity scope is unknown", st.ID))
		}
		sprint, err := s.loadSprint(ctx, *st.SprintID)
		if err != nil {
			return s.standupFailed(job, err)
		}
		scope = s.scopeFor(sprint.OrganizationID)
	}
	va, err := s.AnalyzeTeamVelocity(ctx, scope)
	if err != nil {
		return s.standupFailed(job, err)
	}

	res := domain.JobResult{Success: true, Data: va, Insights: []string{}, Recommendations: []string{}}
	switch {
	case va.SprintsAnalyzed < 2:
		res.Insights = append(res.Insights, "Not enough sprint history to determine a velocity trend")
	case va.Trend < analysis.DecliningVelocityThreshold:
		res.Insights = append(res.Insights, fmt.Sprintf("Velocity dropped %.0f%% from the previous sprint", -va.Trend*100))
		res.Recommendations = append(res.Recommendations, "Review sprint scope and team capacity before the next planning")
	case va.Trend > 0.1:
		res.Insights = append(res.Insights, fmt.Sprintf("Velocity improved %.0f%% over the previous sprint", va.Trend*100))
	default:
		res.Insights = append(res.Insights, "Velocity is stable")
	}
	res.Insights = append(res.Insights, fmt.Sprintf("Average velocity over %d sprints: %.1f items", va.SprintsAnalyzed, va.AverageVelocity))
	return res
}

// AnalyzeTeamVelocity summarises completed items over the recent sprints in
// scope, newest first.
func (s *Service) AnalyzeTeamVelocity(ctx context.Context, scope domain.Scope) (domain.VelocityAnalysis, error) {
	sprints, err := s.store.RecentSprints(ctx, scope, velocityAnalysisWindow)
	if err != nil {
		return domain.VelocityAnalysis{}, fmt.Errorf("recent sprints: %w", err)
	}
	va := domain.VelocityAnalysis{RecentVelocities: []int{}, SprintsAnalyzed: len(sprints)}
	total := 0
	for _, sp := range sprints {
		v := analysis.CompletedCount(sp.BacklogItems)
		va.RecentVelocities = append(va.RecentVelocities, v)
		total += v
	}
	if len(sprints) > 0 {
		va.AverageVelocity = math.Round(float64(total)/float64(len(sprints))*100) / 100
	}
	if len(sprints) >= 2 {
		va.Trend = analysis.VelocityTrend(va.RecentVelocities[0], va.RecentVelocities[1])
	}
	return va, nil
}
