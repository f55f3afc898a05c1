package calls

import "time"

// CallSession is one scripted sales call.
//
// Invariants:
//   - StartedAt is set iff the call has reached in_progress.
//   - EndedAt is set iff Status is completed or cancelled.
//   - Status only changes through ApplyTransition.
type CallSession struct {
	ID             string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrganizationID string `json:"organizationId" gorm:"type:varchar(64);not null;index:idx_calls_org_status,priority:1"`
	ProspectID     string `json:"prospectId" gorm:"type:varchar(36);not null;index"`
	AgentID        string `json:"agentId" gorm:"type:varchar(64);not null;index"`

	Status   Status `json:"status" gorm:"type:varchar(16);not null;index:idx_calls_org_status,priority:2"`
	Mode     Mode   `json:"mode" gorm:"type:varchar(16);not null"`
	Language string `json:"language" gorm:"type:varchar(16);not null"`

	ScheduledAt *time.Time `json:"scheduledAt"`
	StartedAt   *time.Time `json:"startedAt"`
	EndedAt     *time.Time `json:"endedAt"`

	ZoomLink           *string `json:"zoomLink" gorm:"type:text"`
	GateOverrideReason *string `json:"gateOverrideReason" gorm:"type:text"`
	Notes              string  `json:"notes" gorm:"type:text"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (CallSession) TableName() string { return "call_sessions" }

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// Mode controls whether milestones must be taken in order.
type Mode string

const (
	ModeStrict   Mode = "strict"
	ModeFlexible Mode = "flexible"
)

func (m Mode) Valid() bool { return m == ModeStrict || m == ModeFlexible }
