package outcomes

import (
	"time"

	"gorm.io/datatypes"
)

type Type string

const (
	TypeCoachingClient     Type = "Coaching_Client"
	TypeFollowUpScheduled  Type = "Follow_up_Scheduled"
	TypeImplementationOnly Type = "Implementation_Only"
	TypeDisqualified       Type = "Disqualified"
)

var Types = []Type{TypeCoachingClient, TypeFollowUpScheduled, TypeImplementationOnly, TypeDisqualified}

func (t Type) Valid() bool {
	switch t {
	case TypeCoachingClient, TypeFollowUpScheduled, TypeImplementationOnly, TypeDisqualified:
		return true
	default:
		return false
	}
}

// QualificationFlags snapshots the checklist gate at the moment the outcome is recorded.
type QualificationFlags struct {
	ClientCount    *int     `json:"clientCount"`
	Threshold      int      `json:"threshold"`
	GatesPassed    bool     `json:"gatesPassed"`
	FailedGates    []string `json:"failedGates"`
	GateOverridden bool     `json:"gateOverridden"`
	OverrideReason string   `json:"overrideReason,omitempty"`
}

// CallOutcome finalizes a call. Exactly one per call session.
type CallOutcome struct {
	ID                     string                                 `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CallSessionID          string                                 `json:"callSessionId" gorm:"type:varchar(36);not null;uniqueIndex"`
	OrganizationID         string                                 `json:"organizationId" gorm:"type:varchar(64);not null;index"`
	OutcomeType            Type                                   `json:"outcomeType" gorm:"type:varchar(32);not null;index"`
	DisqualificationReason *string                                `json:"disqualificationReason" gorm:"type:text"`
	QualificationFlags     datatypes.JSONType[QualificationFlags] `json:"qualificationFlags"`
	Notes                  string                                 `json:"notes" gorm:"type:text"`
	FollowUpAt             *time.Time                             `json:"followUpAt"`
	RecordedBy             string                                 `json:"recordedBy" gorm:"type:varchar(64)"`

	CreatedAt time.Time `json:"createdAt"`
}

func (CallOutcome) TableName() string { return "call_outcomes" }
