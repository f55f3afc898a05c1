package reporting

import "time"

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Request scopes a report. OrganizationID is required; AgentID narrows call-based figures.
type Request struct {
	OrganizationID string    `json:"organizationId"`
	Range          TimeRange `json:"range"`
	AgentID        string    `json:"agentId,omitempty"`
}

type CallsSummary struct {
	OrganizationID string `json:"organizationId"`
	AgentID        string `json:"agentId,omitempty"`

	TotalCalls      int `json:"totalCalls"`
	ScheduledCalls  int `json:"scheduledCalls"`
	InProgressCalls int `json:"inProgressCalls"`
	CompletedCalls  int `json:"completedCalls"`
	CancelledCalls  int `json:"cancelledCalls"`
	GateOverrides   int `json:"gateOverrides"`

	TotalDurationSeconds   int `json:"totalDurationSeconds"`
	AverageDurationSeconds int `json:"averageDurationSeconds"`
}

type OutcomeBreakdown struct {
	Total        int            `json:"total"`
	Counts       map[string]int `json:"counts"`
	CoachingRate float64        `json:"coachingRate"`
}

// ObjectionRow is one recorded objection flattened with its type.
type ObjectionRow struct {
	Type    string
	Outcome string
}

type ObjectionTypeStats struct {
	Type           string  `json:"type"`
	Total          int     `json:"total"`
	Resolved       int     `json:"resolved"`
	Deferred       int     `json:"deferred"`
	Disqualified   int     `json:"disqualified"`
	ResolutionRate float64 `json:"resolutionRate"`
}

type FunnelStep struct {
	MilestoneID string `json:"milestoneId"`
	Number      int    `json:"number"`
	Title       string `json:"title"`
	Started     int    `json:"started"`
	Completed   int    `json:"completed"`
	Skipped     int    `json:"skipped"`
}

type Dashboard struct {
	Range      TimeRange            `json:"range"`
	Calls      CallsSummary         `json:"calls"`
	Outcomes   OutcomeBreakdown     `json:"outcomes"`
	Objections []ObjectionTypeStats `json:"objections"`
	Funnel     []FunnelStep         `json:"milestoneFunnel"`
}
