package milestones

import (
	"fmt"
	"sort"

	"callos/internal/calls"
)

// Policy holds the sequencing rules that vary per deployment.
type Policy struct {
	// SkippedSatisfiesSequence lets a skipped milestone count as resolved when
	// checking strict-mode order. GetNextMilestone always treats skipped as done.
	SkippedSatisfiesSequence bool
}

// StartCheck is the answer to "may this milestone be started now".
type StartCheck struct {
	CanStart         bool     `json:"canStart"`
	Reason           string   `json:"reason,omitempty"`
	RequiresOverride bool     `json:"requiresOverride"`
	BlockedBy        []string `json:"blockedBy,omitempty"`
}

// CompletionCheck is the result of validating a milestone's checked items.
type CompletionCheck struct {
	IsValid      bool     `json:"isValid"`
	MissingItems []string `json:"missingItems"`
}

// SortMilestones orders milestones by OrderIndex, then Number.
func SortMilestones(ms []Milestone) {
	sort.SliceStable(ms, func(i, j int) bool {
		if ms[i].OrderIndex != ms[j].OrderIndex {
			return ms[i].OrderIndex < ms[j].OrderIndex
		}
		return ms[i].Number < ms[j].Number
	})
}

// ValidateMilestoneCompletion reports required ids missing or unticked in checked.
func ValidateMilestoneCompletion(m Milestone, checked CheckedItems) CompletionCheck {
	out := CompletionCheck{MissingItems: []string{}}
	for _, id := range m.RequiredItemIDs() {
		if !checked[id] {
			out.MissingItems = append(out.MissingItems, id)
		}
	}
	out.IsValid = len(out.MissingItems) == 0
	return out
}

func resolved(r MilestoneResponse, ok bool, policy Policy) bool {
	if !ok {
		return false
	}
	switch r.Status {
	case ResponseCompleted:
		return true
	case ResponseSkipped:
		return policy.SkippedSatisfiesSequence
	default:
		return false
	}
}

// CheckSequence decides whether target may start given the call mode and the
// responses so far (keyed by milestone id). ordered must be sorted with SortMilestones.
func CheckSequence(mode calls.Mode, ordered []Milestone, responses map[string]MilestoneResponse, target Milestone, policy Policy) StartCheck {
	if mode != calls.ModeStrict {
		return StartCheck{CanStart: true}
	}

	var blockers []Milestone
	for _, m := range ordered {
		if m.ID == target.ID {
			break
		}
		if precedes(m, target) {
			r, ok := responses[m.ID]
			if !resolved(r, ok, policy) {
				blockers = append(blockers, m)
			}
		}
	}
	if len(blockers) == 0 {
		return StartCheck{CanStart: true}
	}

	ids := make([]string, 0, len(blockers))
	for _, b := range blockers {
		ids = append(ids, b.ID)
	}
	first := blockers[0]
	verb := "completed"
	if policy.SkippedSatisfiesSequence {
		verb = "completed or skipped"
	}
	return StartCheck{
		CanStart:         false,
		Reason:           fmt.Sprintf("milestone %d (%s) must be %s first", first.Number, first.Title, verb),
		RequiresOverride: true,
		BlockedBy:        ids,
	}
}

func precedes(a, b Milestone) bool {
	if a.OrderIndex != b.OrderIndex {
		return a.OrderIndex < b.OrderIndex
	}
	return a.Number < b.Number
}

// NextMilestone returns the first milestone that is neither completed nor skipped.
func NextMilestone(ordered []Milestone, responses map[string]MilestoneResponse) (Milestone, bool) {
	for _, m := range ordered {
		r, ok := responses[m.ID]
		if !ok || !r.Status.Terminal() {
			return m, true
		}
	}
	return Milestone{}, false
}
