package prospects

import "time"

// Prospect is the person or company a call is held with.
// ClientCount and MainPain feed the pre-call checklist's auto-derived items.
type Prospect struct {
	ID             string  `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrganizationID string  `json:"organizationId" gorm:"type:varchar(64);not null;index"`
	Name           string  `json:"name" gorm:"type:varchar(255);not null"`
	Company        string  `json:"company" gorm:"type:varchar(255)"`
	Email          string  `json:"email" gorm:"type:varchar(255)"`
	Phone          string  `json:"phone" gorm:"type:varchar(64)"`
	ClientCount    *int    `json:"clientCount"`
	MainPain       *string `json:"mainPain" gorm:"type:text"`
	Notes          string  `json:"notes" gorm:"type:text"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Prospect) TableName() string { return "prospects" }

// HasMainPain reports whether a non-blank main pain has been recorded.
func (p Prospect) HasMainPain() bool {
	return p.MainPain != nil && trimmed(*p.MainPain) != ""
}
