package httpapi

import "time"

type loginRequest struct {
	UserID         string `json:"userId" validate:"required"`
	OrganizationID string `json:"organizationId" validate:"required"`
	Role           string `json:"role" validate:"required,oneof=owner admin manager agent analyst"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
	Role         string `json:"role" validate:"required,oneof=owner admin manager agent analyst"`
}

type createProspectRequest struct {
	Name        string  `json:"name" validate:"required,max=255"`
	Company     string  `json:"company" validate:"max=255"`
	Email       string  `json:"email" validate:"omitempty,email"`
	Phone       string  `json:"phone" validate:"max=64"`
	ClientCount *int    `json:"clientCount" validate:"omitempty,gte=0"`
	MainPain    *string `json:"mainPain"`
	Notes       string  `json:"notes"`
}

type updateProspectRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=255"`
	Company     *string `json:"company" validate:"omitempty,max=255"`
	Email       *string `json:"email" validate:"omitempty,email"`
	Phone       *string `json:"phone" validate:"omitempty,max=64"`
	ClientCount *int    `json:"clientCount" validate:"omitempty,gte=0"`
	MainPain    *string `json:"mainPain"`
	Notes       *string `json:"notes"`
}

type createCallRequest struct {
	ProspectID  string     `json:"prospectId" validate:"required"`
	AgentID     string     `json:"agentId"`
	Mode        string     `json:"mode" validate:"omitempty,oneof=strict flexible"`
	Language    string     `json:"language" validate:"max=16"`
	ScheduledAt *time.Time `json:"scheduledAt"`
	ZoomLink    *string    `json:"zoomLink"`
	Notes       string     `json:"notes"`
}

type updateCallRequest struct {
	ProspectID  *string    `json:"prospectId"`
	Mode        *string    `json:"mode" validate:"omitempty,oneof=strict flexible"`
	Language    *string    `json:"language" validate:"omitempty,max=16"`
	ScheduledAt *time.Time `json:"scheduledAt"`
	ZoomLink    *string    `json:"zoomLink"`
	Notes       *string    `json:"notes"`
}

type checklistItemRequest struct {
	Checked *bool `json:"checked" validate:"required"`
}

type overrideRequest struct {
	OverrideReason string `json:"overrideReason" validate:"max=1000"`
}

type reasonRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

type completeCallRequest struct {
	OutcomeType            string     `json:"outcomeType" validate:"required,oneof=Coaching_Client Follow_up_Scheduled Implementation_Only Disqualified"`
	DisqualificationReason string     `json:"disqualificationReason" validate:"max=2000"`
	Notes                  string     `json:"notes"`
	FollowUpAt             *time.Time `json:"followUpAt"`
}

type checkItemRequest struct {
	Value *bool `json:"value" validate:"required"`
}

type updateResponseRequest struct {
	Notes *string `json:"notes" validate:"required"`
}

type createObjectionResponseRequest struct {
	ObjectionID       string            `json:"objectionId" validate:"required"`
	MilestoneID       string            `json:"milestoneId"`
	Outcome           string            `json:"outcome" validate:"required,oneof=Resolved Deferred Disqualified"`
	DiagnosticAnswers map[string]string `json:"diagnosticAnswers"`
	Notes             string            `json:"notes"`
}

type updateObjectionResponseRequest struct {
	Notes             *string           `json:"notes"`
	DiagnosticAnswers map[string]string `json:"diagnosticAnswers"`
	Outcome           *string           `json:"outcome"`
}

type nextQuestionRequest struct {
	Answers map[string]string `json:"answers"`
}

type itemDefDTO struct {
	ID       string `json:"id" validate:"required"`
	Text     string `json:"text"`
	Required bool   `json:"required"`
}

type milestoneDefDTO struct {
	Number            int          `json:"number" validate:"required,gte=1"`
	OrderIndex        int          `json:"orderIndex" validate:"gte=0"`
	Title             string       `json:"title" validate:"required"`
	Objective         string       `json:"objective"`
	DurationMinutes   int          `json:"durationMinutes" validate:"gte=0"`
	RequiredQuestions []itemDefDTO `json:"requiredQuestions" validate:"dive"`
	Confirmations     []itemDefDTO `json:"confirmations" validate:"dive"`
}

type upsertMilestonesRequest struct {
	Milestones []milestoneDefDTO `json:"milestones" validate:"required,min=1,dive"`
}

type questionDTO struct {
	ID   string `json:"id" validate:"required"`
	Text string `json:"text"`
}

type objectionDefDTO struct {
	Type            string        `json:"type" validate:"required,oneof=Price Timing Authority Need Skepticism Competition"`
	Title           string        `json:"title"`
	Questions       []questionDTO `json:"diagnosticQuestions" validate:"dive"`
	AllowedOutcomes []string      `json:"allowedOutcomes" validate:"dive,oneof=Resolved Deferred Disqualified"`
}

type upsertObjectionsRequest struct {
	Objections []objectionDefDTO `json:"objections" validate:"required,min=1,dive"`
}
