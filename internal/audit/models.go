package audit

import (
	"time"

	"gorm.io/datatypes"
)

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - organization_id is required for tenancy isolation.
// - Every gate override, out-of-sequence start and milestone skip produces one event.
type Event struct {
	ID             string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrganizationID string `json:"organization_id" gorm:"type:varchar(64);not null;index:idx_audit_org_created,priority:1"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" gorm:"type:varchar(32);not null;index"`

	// ActorUserID is the authenticated user causing the event.
	ActorUserID string `json:"actor_user_id,omitempty" gorm:"type:varchar(64)"`
	ActorRole   string `json:"actor_role,omitempty" gorm:"type:varchar(32)"`
	IPAddress   string `json:"ip_address,omitempty" gorm:"type:varchar(64)"`

	// Target identifiers (optional, depending on the event type).
	CallID      string `json:"call_id,omitempty" gorm:"type:varchar(36);index"`
	MilestoneID string `json:"milestone_id,omitempty" gorm:"type:varchar(36)"`

	// Message is the human-supplied reason or a short description.
	Message string `json:"message,omitempty" gorm:"type:text"`

	Metadata datatypes.JSON `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"not null;index:idx_audit_org_created,priority:2"`
}

func (Event) TableName() string { return "audit_events" }

type EventType string

const (
	EventTypeGateOverride     EventType = "gate_override"
	EventTypeSequenceOverride EventType = "sequence_override"
	EventTypeMilestoneSkipped EventType = "milestone_skipped"
	EventTypeCallTransition   EventType = "call_transition"
	EventTypeAdminAction      EventType = "admin_action"
)

// Filter narrows List results. Zero fields are ignored.
type Filter struct {
	Type   EventType
	CallID string
	Limit  int
}
