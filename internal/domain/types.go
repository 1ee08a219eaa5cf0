package domain

import "time"

type Organization struct {
	ID   int64
	Name string
}

type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

type Sprint struct {
	ID             int64         `json:"id"`
	OrganizationID int64         `json:"organizationId"`
	Name           string        `json:"name"`
	StartDate      time.Time     `json:"startDate"`
	EndDate        time.Time     `json:"endDate"`
	Standups       []Standup     `json:"standups,omitempty"`
	BacklogItems   []BacklogItem `json:"backlogItems,omitempty"`
}

// Blockers flattens the blockers of every standup in the sprint.
func (s Sprint) Blockers() []Blocker {
	var out []Blocker
	for _, st := range s.Standups {
		out = append(out, st.Blockers...)
	}
	return out
}

type Standup struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	SprintID  *int64    `json:"sprintId,omitempty"`
	Yesterday string    `json:"yesterday"`
	Today     string    `json:"today"`
	Obstacles string    `json:"obstacles"`
	CreatedAt time.Time `json:"createdAt"`
	User      *User     `json:"user,omitempty"`
	Blockers  []Blocker `json:"blockers,omitempty"`
}

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type Blocker struct {
	ID          int64     `json:"id"`
	StandupID   int64     `json:"standupId"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
	Resolved    bool      `json:"resolved"`
	CreatedAt   time.Time `json:"createdAt"`
}

type BacklogItem struct {
	ID        int64  `json:"id"`
	SprintID  int64  `json:"sprintId"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// Scope restricts historical sprint queries. OrganizationID 0 means all
// organizations.
type Scope struct {
	OrganizationID int64
}

func (s Scope) Global() bool { return s.OrganizationID == 0 }
