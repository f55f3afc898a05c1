package checklist

import "time"

// Source says who answers a checklist item.
type Source string

const (
	// SourceAgent items are ticked by the agent.
	SourceAgent Source = "agent"
	// SourceAuto items are derived from prospect data and cannot be set by hand.
	SourceAuto Source = "auto"
)

const (
	ItemProspectResearchDone   = "prospect_research_done"
	ItemAgendaShared           = "agenda_shared"
	ItemMeetingLinkTested      = "meeting_link_tested"
	ItemDecisionMakerConfirmed = "decision_maker_confirmed"
	ItemMainPainIdentified     = "main_pain_identified"
	ItemClientCountConfirmed   = "client_count_confirmed"
	ItemCaseStudyPrepared      = "case_study_prepared"
	ItemPricingReviewed        = "pricing_reviewed"
)

// Definition is one entry of the fixed pre-call checklist.
type Definition struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	IsGate      bool   `json:"isGate"`
	Source      Source `json:"source"`
}

// Definitions is the checklist in display order.
var Definitions = []Definition{
	{ID: ItemProspectResearchDone, Label: "Prospect research done", Description: "Reviewed the prospect's business, site and recent news.", Required: true, Source: SourceAgent},
	{ID: ItemAgendaShared, Label: "Agenda shared", Description: "Sent the call agenda to the prospect.", Required: true, Source: SourceAgent},
	{ID: ItemMeetingLinkTested, Label: "Meeting link tested", Description: "Opened the meeting link and checked audio and screen share.", Required: true, Source: SourceAgent},
	{ID: ItemDecisionMakerConfirmed, Label: "Decision maker confirmed", Description: "Confirmed the attendee can make the buying decision.", Required: true, Source: SourceAgent},
	{ID: ItemMainPainIdentified, Label: "Main pain identified", Description: "The prospect record has a main pain.", Required: true, Source: SourceAuto},
	{ID: ItemClientCountConfirmed, Label: "Client count qualifies", Description: "The prospect's client count meets the qualification threshold.", IsGate: true, Source: SourceAuto},
	{ID: ItemCaseStudyPrepared, Label: "Case study prepared", Description: "A relevant case study is ready to share.", Source: SourceAgent},
	{ID: ItemPricingReviewed, Label: "Pricing reviewed", Description: "Reviewed the pricing options likely to come up.", Source: SourceAgent},
}

// Lookup finds a definition by id.
func Lookup(id string) (Definition, bool) {
	for _, d := range Definitions {
		if d.ID == id {
			return d, true
		}
	}
	return Definition{}, false
}

// Entry is an agent-supplied answer for one item on one call.
type Entry struct {
	CallSessionID string    `json:"callSessionId" gorm:"primaryKey;type:varchar(36)"`
	ItemID        string    `json:"itemId" gorm:"primaryKey;type:varchar(64)"`
	Checked       bool      `json:"checked" gorm:"not null"`
	CheckedBy     string    `json:"checkedBy" gorm:"type:varchar(64)"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (Entry) TableName() string { return "checklist_entries" }
