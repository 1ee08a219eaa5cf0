package domain

import "time"

type InsightType string

const (
	InsightRisk           InsightType = "risk"
	InsightOpportunity    InsightType = "opportunity"
	InsightRecommendation InsightType = "recommendation"
	InsightAlert          InsightType = "alert"
)

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// WorkflowInsight is an advisory produced by the rule engine. It is never
// persisted by this service.
type WorkflowInsight struct {
	Type        InsightType    `json:"type"`
	Priority    Priority       `json:"priority"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	ActionItems []string       `json:"actionItems,omitempty"`
	Confidence  float64        `json:"confidence"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type SprintHealthMetrics struct {
	VelocityTrend         float64           `json:"velocityTrend"`
	BlockerSeverity       float64           `json:"blockerSeverity"`
	TeamSentiment         float64           `json:"teamSentiment"`
	RiskScore             float64           `json:"riskScore"`
	CompletionProbability float64           `json:"completionProbability"`
	Insights              []WorkflowInsight `json:"insights"`
}

type Risk struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Mitigation  string `json:"mitigation"`
}

type RiskAssessment struct {
	Risks       []Risk              `json:"risks"`
	Mitigations []string            `json:"mitigations"`
	Health      SprintHealthMetrics `json:"health"`
}

type CompletionAnalysis struct {
	CompletionRate float64 `json:"completionRate"`
	CompletedItems int     `json:"completedItems"`
	TotalItems     int     `json:"totalItems"`
	Insight        string  `json:"insight"`
}

type SentimentResult struct {
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	Summary    string  `json:"summary"`
}

type BlockerPatterns struct {
	RecurringPatterns []string `json:"recurringPatterns"`
	Insights          []string `json:"insights"`
	Recommendations   []string `json:"recommendations"`
}

type VelocityAnalysis struct {
	AverageVelocity  float64 `json:"averageVelocity"`
	RecentVelocities []int   `json:"recentVelocities"`
	Trend            float64 `json:"trend"`
	SprintsAnalyzed  int     `json:"sprintsAnalyzed"`
}

// Analysis types accepted for sprints and standups.
const (
	AnalysisHealth     = "health"
	AnalysisCompletion = "completion"
	AnalysisRisk       = "risk"

	AnalysisSentiment = "sentiment"
	AnalysisBlockers  = "blockers"
	AnalysisVelocity  = "velocity"
)

func ValidSprintAnalysis(t string) bool {
	switch t {
	case AnalysisHealth, AnalysisCompletion, AnalysisRisk:
		return true
	}
	return false
}

func ValidStandupAnalysis(t string) bool {
	switch t {
	case AnalysisSentiment, AnalysisBlockers, AnalysisVelocity:
		return true
	}
	return false
}

type SprintJob struct {
	SprintID     int64  `json:"sprintId"`
	AnalysisType string `json:"analysisType"`
}

type StandupJob struct {
	StandupID    int64  `json:"standupId"`
	UserID       int64  `json:"userId"`
	SprintID     *int64 `json:"sprintId,omitempty"`
	AnalysisType string `json:"analysisType"`
}

type RiskAssessmentJob struct {
	Scope    string `json:"scope"`
	SprintID *int64 `json:"sprintId,omitempty"`
	UserID   *int64 `json:"userId,omitempty"`
}

type NotificationType string

const NotificationTelegram NotificationType = "telegram"

type Notification struct {
	Type      NotificationType `json:"type"`
	Recipient string           `json:"recipient"`
	Message   string           `json:"message"`
	Priority  string           `json:"priority"`
	Metadata  map[string]any   `json:"metadata,omitempty"`
}

type ResultMetrics struct {
	RiskScore             float64 `json:"riskScore"`
	VelocityTrend         float64 `json:"velocityTrend"`
	CompletionProbability float64 `json:"completionProbability"`
}

// JobResult is the uniform outcome of every orchestrated analysis.
// Business failures set Success=false and Error; they are never returned as Go errors.
type JobResult struct {
	Success         bool           `json:"success"`
	Data            any            `json:"data,omitempty"`
	Insights        []string       `json:"insights,omitempty"`
	Recommendations []string       `json:"recommendations,omitempty"`
	Metrics         *ResultMetrics `json:"metrics,omitempty"`
	Error           string         `json:"error,omitempty"`
}

func Failed(err error) JobResult { return JobResult{Success: false, Error: err.Error()} }

type SweepRun struct {
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	Sprints    int        `json:"sprints"`
	Enqueued   int        `json:"enqueued"`
	Success    bool       `json:"success"`
	Error      string     `json:"error,omitempty"`
}

// HealthCheck is the outcome of a direct health check, with the id of the
// follow-up risk analysis when one was scheduled.
type HealthCheck struct {
	Health        SprintHealthMetrics `json:"health"`
	FollowUpJobID string              `json:"followUpJobId,omitempty"`
}
