package checklist

import (
	"fmt"
	"strings"
	"time"

	"callos/internal/calls"
	"callos/internal/prospects"
)

// Item is a definition with its evaluated state for one call.
type Item struct {
	Definition
	Checked   bool       `json:"checked"`
	CheckedBy string     `json:"checkedBy,omitempty"`
	CheckedAt *time.Time `json:"checkedAt,omitempty"`
}

type Checklist struct {
	CallID          string   `json:"callId"`
	Items           []Item   `json:"items"`
	IsComplete      bool     `json:"isComplete"`
	GatesPassed     bool     `json:"gatesPassed"`
	MissingRequired []string `json:"missingRequired"`
	FailedGates     []string `json:"failedGates"`
	ClientCount     *int     `json:"clientCount"`
	Threshold       int      `json:"threshold"`
}

// Evaluate computes the checklist for a call from the prospect record and stored agent entries.
func Evaluate(callID string, p prospects.Prospect, entries []Entry, threshold int) Checklist {
	byID := make(map[string]Entry, len(entries))
	for _, e := range entries {
		byID[e.ItemID] = e
	}

	out := Checklist{
		CallID:          callID,
		Items:           make([]Item, 0, len(Definitions)),
		MissingRequired: []string{},
		FailedGates:     []string{},
		ClientCount:     p.ClientCount,
		Threshold:       threshold,
	}
	for _, d := range Definitions {
		it := Item{Definition: d}
		switch d.ID {
		case ItemMainPainIdentified:
			it.Checked = p.HasMainPain()
		case ItemClientCountConfirmed:
			it.Checked = p.ClientCount != nil && *p.ClientCount >= threshold
		default:
			if e, ok := byID[d.ID]; ok {
				it.Checked = e.Checked
				if e.Checked {
					it.CheckedBy = e.CheckedBy
					at := e.UpdatedAt
					it.CheckedAt = &at
				}
			}
		}
		if d.Required && !it.Checked {
			out.MissingRequired = append(out.MissingRequired, d.ID)
		}
		if d.IsGate && !it.Checked {
			out.FailedGates = append(out.FailedGates, d.ID)
		}
		out.Items = append(out.Items, it)
	}
	out.IsComplete = len(out.MissingRequired) == 0
	out.GatesPassed = len(out.FailedGates) == 0
	return out
}

type Validation struct {
	IsValid        bool     `json:"isValid"`
	CanStart       bool     `json:"canStart"`
	Errors         []string `json:"errors"`
	Warnings       []string `json:"warnings"`
	GateOverridden bool     `json:"gateOverridden"`
	OverrideReason string   `json:"overrideReason,omitempty"`
}

// Validate decides whether cl allows the call to start. A non-blank overrideReason turns
// failed gates into warnings; authorizing the override is the caller's job.
func Validate(cl Checklist, status calls.Status, overrideReason string) Validation {
	reason := strings.TrimSpace(overrideReason)
	v := Validation{Errors: []string{}, Warnings: []string{}}

	for _, id := range cl.MissingRequired {
		v.Errors = append(v.Errors, "required item not checked: "+labelFor(id))
	}

	for _, id := range cl.FailedGates {
		msg := gateMessage(id, cl)
		if reason != "" {
			v.Warnings = append(v.Warnings, msg+" (overridden: "+reason+")")
			v.GateOverridden = true
			continue
		}
		v.Errors = append(v.Errors, msg)
	}
	if v.GateOverridden {
		v.OverrideReason = reason
	}

	v.IsValid = len(v.Errors) == 0
	v.CanStart = v.IsValid && status == calls.StatusScheduled
	if v.IsValid && status != calls.StatusScheduled {
		v.Warnings = append(v.Warnings, fmt.Sprintf("call is %s and cannot be started", status))
	}
	return v
}

func gateMessage(id string, cl Checklist) string {
	if id == ItemClientCountConfirmed {
		if cl.ClientCount == nil {
			return fmt.Sprintf("qualification gate failed: client count unknown (threshold %d)", cl.Threshold)
		}
		return fmt.Sprintf("qualification gate failed: client count %d is below threshold %d", *cl.ClientCount, cl.Threshold)
	}
	return "gate failed: " + labelFor(id)
}

func labelFor(id string) string {
	if d, ok := Lookup(id); ok {
		return d.Label
	}
	return id
}
