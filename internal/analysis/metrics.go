/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package analysis

import (
	"math"
	"strings"

	"github.com/HamedShams/sprint-pulse/internal/domain"
)

// VelocityTrend is the relative change in completed items between the two
// most recent sprints. Zero when there is no previous baseline.
func VelocityTrend(recentCompleted, previousCompleted int) float64 {
	if previousCompleted <= 0 {
		return 0
	}
	return float64(recentCompleted-previousCompleted) / float64(previousCompleted)
}

// TeamSentiment degrades linearly with the share of standups reporting an
// obstacle: 1 when none do, -1 when all do.
func TeamSentiment(standups []domain.Standup) float64 {
	if len(standups) == 0 {
		return 0
	}
	withObstacles := 0
	for _, s := range standups {
		if strings.TrimSpace(s.Obstacles) != "" {
			withObstacles++
		}
	}
	ratio := float64(withObstacles) / float64(len(standups))
	return math.Max(-1, 1-2*ratio)
}

func severityWeight(s domain.Severity) float64 {
	switch domain.Severity(strings.ToLower(string(s))) {
	case domain.SeverityHigh:
		return 1.0
	case domain.SeverityMedium:
		return 0.6
	default:
		return 0.3
	}
}

// BlockerSeverity averages severity weights (high 1.0, medium 0.6, other 0.3).
func BlockerSeverity(blockers []domain.Blocker) float64 {
	if len(blockers) == 0 {
		return 0
	}
	total := 0.0
	for _, b := range blockers {
		total += severityWeight(b.Severity)
	}
	return total / float64(len(blockers))
}

func CompletedCount(items []domain.BacklogItem) int {
	n := 0
	for _, it := range items {
		if it.Completed {
			n++
		}
	}
	return n
}

func CompletionRate(items []domain.BacklogItem) float64 {
	if len(items) == 0 {
		return 0
	}
	return float64(CompletedCount(items)) / float64(len(items))
}

// AnalyzeSprintCompletion bands the completion rate into a qualitative note.
func AnalyzeSprintCompletion(sprint domain.Sprint) domain.CompletionAnalysis {
	rate := CompletionRate(sprint.BacklogItems)
	var note string
	switch {
	case rate > 0.8:
		note = "Sprint completion is excellent"
	case rate > 0.6:
		note = "Sprint completion is good"
	default:
		note = "Sprint completion is below target"
	}
	return domain.CompletionAnalysis{
		CompletionRate: rate,
		CompletedItems: CompletedCount(sprint.BacklogItems),
		TotalItems:     len(sprint.BacklogItems),
		Insight:        note,
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(1, math.Max(0, v))
}

// RiskScore is the worst of the three clamped risk terms.
func RiskScore(velocityTrend, blockerSeverity, teamSentiment float64) float64 {
	return math.Max(clamp01(1-velocityTrend), math.Max(clamp01(blockerSeverity), clamp01(1-teamSentiment)))
}

func CompletionProbability(riskScore float64) float64 {
	return math.Max(0, 1-riskScore)
}
