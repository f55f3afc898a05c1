package objections

import (
	"time"

	"gorm.io/datatypes"
)

// Type is one of the fixed objection categories.
type Type string

const (
	TypePrice       Type = "Price"
	TypeTiming      Type = "Timing"
	TypeAuthority   Type = "Authority"
	TypeNeed        Type = "Need"
	TypeSkepticism  Type = "Skepticism"
	TypeCompetition Type = "Competition"
)

var Types = []Type{TypePrice, TypeTiming, TypeAuthority, TypeNeed, TypeSkepticism, TypeCompetition}

func (t Type) Valid() bool {
	for _, v := range Types {
		if v == t {
			return true
		}
	}
	return false
}

// Outcome is the terminal disposition of a raised objection.
type Outcome string

const (
	OutcomeResolved     Outcome = "Resolved"
	OutcomeDeferred     Outcome = "Deferred"
	OutcomeDisqualified Outcome = "Disqualified"
)

func (o Outcome) Valid() bool {
	return o == OutcomeResolved || o == OutcomeDeferred || o == OutcomeDisqualified
}

// Question is one step of an objection's diagnostic sequence.
type Question struct {
	ID   string `json:"id" yaml:"id"`
	Text string `json:"text" yaml:"text"`
}

// Objection defines how one objection type is diagnosed within an organization.
type Objection struct {
	ID                  string                         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrganizationID      string                         `json:"organizationId" gorm:"type:varchar(64);not null;uniqueIndex:idx_objection_org_type,priority:1"`
	Type                Type                           `json:"type" gorm:"type:varchar(32);not null;uniqueIndex:idx_objection_org_type,priority:2"`
	Title               string                         `json:"title" gorm:"type:varchar(255)"`
	DiagnosticQuestions datatypes.JSONType[[]Question] `json:"diagnosticQuestions"`
	AllowedOutcomes     datatypes.JSONType[[]Outcome]  `json:"allowedOutcomes"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Objection) TableName() string { return "objections" }

func (o Objection) Questions() []Question { return o.DiagnosticQuestions.Data() }

func (o Objection) Allows(outcome Outcome) bool {
	for _, a := range o.AllowedOutcomes.Data() {
		if a == outcome {
			return true
		}
	}
	return false
}

func (o Objection) HasQuestion(id string) bool {
	for _, q := range o.Questions() {
		if q.ID == id {
			return true
		}
	}
	return false
}

// Answers maps a diagnostic question id to the agent's answer.
type Answers map[string]string

// Response is one objection raised during a call. Outcome is fixed at creation.
type Response struct {
	ID                string                      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CallSessionID     string                      `json:"callSessionId" gorm:"type:varchar(36);not null;index"`
	ObjectionID       string                      `json:"objectionId" gorm:"type:varchar(36);not null;index"`
	MilestoneID       *string                     `json:"milestoneId" gorm:"type:varchar(36)"`
	Outcome           Outcome                     `json:"outcome" gorm:"type:varchar(16);not null"`
	DiagnosticAnswers datatypes.JSONType[Answers] `json:"diagnosticAnswers"`
	Notes             string                      `json:"notes" gorm:"type:text"`
	CreatedBy         string                      `json:"createdBy" gorm:"type:varchar(64)"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Response) TableName() string { return "objection_responses" }

// Answers returns a copy of the stored answers, never nil.
func (r Response) Answers() Answers {
	src := r.DiagnosticAnswers.Data()
	out := make(Answers, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
