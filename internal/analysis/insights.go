/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package analysis

import (
	"fmt"

	"github.com/HamedShams/sprint-pulse/internal/domain"
)

// Rule thresholds.
const (
	DecliningVelocityThreshold = -0.3
	CriticalBlockerThreshold   = 0.7
	LowSentimentThreshold      = -0.3
	HighRiskThreshold          = 0.7
)

type rule struct {
	fires   func(m domain.SprintHealthMetrics) bool
	insight func(m domain.SprintHealthMetrics) domain.WorkflowInsight
}

// rules fire independently, in declaration order.
var rules = []rule{
	{
		fires: func(m domain.SprintHealthMetrics) bool { return m.VelocityTrend < DecliningVelocityThreshold },
		insight: func(m domain.SprintHealthMetrics) domain.WorkflowInsight {
			return domain.WorkflowInsight{
				Type:        domain.InsightRisk,
				Priority:    domain.PriorityHigh,
				Title:       "Declining Velocity Detected",
				Description: fmt.Sprintf("Team velocity has decreased by %.0f%% compared to the previous sprint", -m.VelocityTrend*100),
				ActionItems: []string{
					"Review sprint scope and remove non-critical items",
					"Identify and address process bottlenecks",
					"Check team capacity and availability",
				},
				Confidence: 0.8,
				Metadata:   map[string]any{"velocityTrend": m.VelocityTrend},
			}
		},
	},
	{
		fires: func(m domain.SprintHealthMetrics) bool { return m.BlockerSeverity > CriticalBlockerThreshold },
		insight: func(m domain.SprintHealthMetrics) domain.WorkflowInsight {
			return domain.WorkflowInsight{
				Type:        domain.InsightAlert,
				Priority:    domain.PriorityCritical,
				Title:       "Critical Blockers Present",
				Description: "High-severity blockers are impacting sprint progress",
				ActionItems: []string{
					"Escalate high-severity blockers to stakeholders",
					"Schedule a blocker resolution session",
					"Reassign work away from blocked items",
				},
				Confidence: 0.9,
				Metadata:   map[string]any{"blockerSeverity": m.BlockerSeverity},
			}
		},
	},
	{
		fires: func(m domain.SprintHealthMetrics) bool { return m.TeamSentiment < LowSentimentThreshold },
		insight: func(m domain.SprintHealthMetrics) domain.WorkflowInsight {
			return domain.WorkflowInsight{
				Type:        domain.InsightRisk,
				Priority:    domain.PriorityMedium,
				Title:       "Team Sentiment Concerns",
				Description: "Standups show a high rate of reported obstacles",
				ActionItems: []string{
					"Hold one-on-ones with affected team members",
					"Discuss obstacles in the next retrospective",
					"Review workload distribution",
				},
				Confidence: 0.7,
				Metadata:   map[string]any{"teamSentiment": m.TeamSentiment},
			}
		},
	},
}

// ComputeHealth derives the sprint health metrics and fires the threshold
// rules. It is pure: the same inputs always yield the same result.
func ComputeHealth(velocityTrend float64, blockers []domain.Blocker, standups []domain.Standup) domain.SprintHealthMetrics {
	m := domain.SprintHealthMetrics{
		VelocityTrend:   velocityTrend,
		BlockerSeverity: BlockerSeverity(blockers),
		TeamSentiment:   TeamSentiment(standups),
	}
	m.RiskScore = RiskScore(m.VelocityTrend, m.BlockerSeverity, m.TeamSentiment)
	m.CompletionProbability = CompletionProbability(m.RiskScore)
	m.Insights = []domain.WorkflowInsight{}
	for _, r := range rules {
		if r.fires(m) {
			m.Insights = append(m.Insights, r.insight(m))
		}
	}
	return m
}

// AssessRisks projects health metrics into a risk assessment.
func AssessRisks(m domain.SprintHealthMetrics) domain.RiskAssessment {
	out := domain.RiskAssessment{Risks: []domain.Risk{}, Mitigations: []string{}, Health: m}
	if m.RiskScore > HighRiskThreshold {
		mitigation := "Review sprint scope, resolve blockers, and rebalance team workload"
		out.Risks = append(out.Risks, domain.Risk{
			Type:        "sprint_health",
			Severity:    "high",
			Description: fmt.Sprintf("Sprint risk score is %.2f", m.RiskScore),
			Mitigation:  mitigation,
		})
		out.Mitigations = append(out.Mitigations, mitigation)
	}
	return out
}

// CriticalTitles returns the titles of critical insights in order.
func CriticalTitles(insights []domain.WorkflowInsight) []string {
	var out []string
	for _, in := range insights {
		if in.Priority == domain.PriorityCritical {
			out = append(out, in.Title)
		}
	}
	return out
}
