package milestones

import (
	"time"

	"gorm.io/datatypes"
)

// ItemDef is a question or confirmation an agent ticks off during a milestone.
type ItemDef struct {
	ID       string `json:"id" yaml:"id"`
	Text     string `json:"text" yaml:"text"`
	Required bool   `json:"required" yaml:"required"`
}

// Milestone is one step of an organization's call script, numbered 1..N.
// Definitions are edited through the playbook, never during a call.
type Milestone struct {
	ID                string                        `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrganizationID    string                        `json:"organizationId" gorm:"type:varchar(64);not null;uniqueIndex:idx_milestone_org_number,priority:1"`
	Number            int                           `json:"number" gorm:"not null;uniqueIndex:idx_milestone_org_number,priority:2"`
	OrderIndex        int                           `json:"orderIndex" gorm:"not null"`
	Title             string                        `json:"title" gorm:"type:varchar(255);not null"`
	Objective         string                        `json:"objective" gorm:"type:text"`
	DurationMinutes   int                           `json:"durationMinutes"`
	RequiredQuestions datatypes.JSONType[[]ItemDef] `json:"requiredQuestions"`
	Confirmations     datatypes.JSONType[[]ItemDef] `json:"confirmations"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Milestone) TableName() string { return "milestones" }

// Items returns questions followed by confirmations.
func (m Milestone) Items() []ItemDef {
	qs := m.RequiredQuestions.Data()
	cs := m.Confirmations.Data()
	out := make([]ItemDef, 0, len(qs)+len(cs))
	out = append(out, qs...)
	return append(out, cs...)
}

// HasItem reports whether id is declared on the milestone.
func (m Milestone) HasItem(id string) bool {
	for _, it := range m.Items() {
		if it.ID == id {
			return true
		}
	}
	return false
}

// RequiredItemIDs lists required-flagged ids from questions and confirmations, in order.
func (m Milestone) RequiredItemIDs() []string {
	var out []string
	for _, it := range m.Items() {
		if it.Required {
			out = append(out, it.ID)
		}
	}
	return out
}

type ResponseStatus string

const (
	ResponseInProgress ResponseStatus = "in_progress"
	ResponseCompleted  ResponseStatus = "completed"
	ResponseSkipped    ResponseStatus = "skipped"
)

func (s ResponseStatus) Terminal() bool {
	return s == ResponseCompleted || s == ResponseSkipped
}

// CheckedItems maps a milestone item id to whether the agent ticked it.
type CheckedItems map[string]bool

// MilestoneResponse is a call's progress through one milestone, created on first start.
//
// Invariants:
//   - At most one response per (call session, milestone).
//   - CompletedAt is set iff Status is completed or skipped.
//   - OverrideReason is set when skipped or started out of sequence.
type MilestoneResponse struct {
	ID                   string                           `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CallSessionID        string                           `json:"callSessionId" gorm:"type:varchar(36);not null;uniqueIndex:idx_response_call_milestone,priority:1"`
	MilestoneID          string                           `json:"milestoneId" gorm:"type:varchar(36);not null;uniqueIndex:idx_response_call_milestone,priority:2"`
	Status               ResponseStatus                   `json:"status" gorm:"type:varchar(16);not null"`
	RequiredItemsChecked datatypes.JSONType[CheckedItems] `json:"requiredItemsChecked"`
	Notes                string                           `json:"notes" gorm:"type:text"`
	OverrideReason       *string                          `json:"overrideReason" gorm:"type:text"`
	StartedAt            time.Time                        `json:"startedAt"`
	CompletedAt          *time.Time                       `json:"completedAt"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (MilestoneResponse) TableName() string { return "milestone_responses" }

// Checked returns a copy of the checked-items map, never nil.
func (r MilestoneResponse) Checked() CheckedItems {
	src := r.RequiredItemsChecked.Data()
	out := make(CheckedItems, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
