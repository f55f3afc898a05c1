package checklist

import (
	"testing"

	"callos/internal/calls"
	"callos/internal/prospects"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func agentEntries(callID string, ids ...string) []Entry {
	out := make([]Entry, 0, len(ids))
	for _, id := range ids {
		out = append(out, Entry{CallSessionID: callID, ItemID: id, Checked: true, CheckedBy: "agent-1"})
	}
	return out
}

func allRequiredAgentItems(callID string) []Entry {
	return agentEntries(callID, ItemProspectResearchDone, ItemAgendaShared, ItemMeetingLinkTested, ItemDecisionMakerConfirmed)
}

func intp(n int) *int { return &n }
func strp(s string) *string { return &s }

func TestDefinitions_Shape(t *testing.T) {
	require.Len(t, Definitions, 8)
	var gates []string
	for _, d := range Definitions {
		if d.IsGate {
			gates = append(gates, d.ID)
		}
	}
	assert.Equal(t, []string{ItemClientCountConfirmed}, gates)
}

func TestEvaluate_AutoDerivedItems(t *testing.T) {
	p := prospects.Prospect{ClientCount: intp(500), MainPain: strp("slow onboarding")}
	cl := Evaluate("c1", p, nil, 500)

	byID := map[string]Item{}
	for _, it := range cl.Items {
		byID[it.ID] = it
	}
	assert.True(t, byID[ItemClientCountConfirmed].Checked, "count equal to threshold qualifies")
	assert.True(t, byID[ItemMainPainIdentified].Checked)
	assert.True(t, cl.GatesPassed)
	assert.False(t, cl.IsComplete)

	blank := prospects.Prospect{ClientCount: intp(499), MainPain: strp("   ")}
	cl = Evaluate("c1", blank, nil, 500)
	assert.Contains(t, cl.FailedGates, ItemClientCountConfirmed)
	assert.Contains(t, cl.MissingRequired, ItemMainPainIdentified)
}

func TestEvaluate_IgnoresStoredAnswersForAutoItems(t *testing.T) {
	p := prospects.Prospect{ClientCount: intp(10)}
	entries := agentEntries("c1", ItemClientCountConfirmed, ItemMainPainIdentified)
	cl := Evaluate("c1", p, entries, 500)
	assert.False(t, cl.GatesPassed)
	assert.Contains(t, cl.MissingRequired, ItemMainPainIdentified)
}

func TestEvaluate_CompleteIffAllRequiredChecked(t *testing.T) {
	p := prospects.Prospect{ClientCount: intp(900), MainPain: strp("pain")}
	cl := Evaluate("c1", p, allRequiredAgentItems("c1"), 500)
	assert.True(t, cl.IsComplete)
	assert.Empty(t, cl.MissingRequired)

	entries := allRequiredAgentItems("c1")
	entries[1].Checked = false
	cl = Evaluate("c1", p, entries, 500)
	assert.False(t, cl.IsComplete)
	assert.Equal(t, []string{ItemAgendaShared}, cl.MissingRequired)
}

func TestValidate_DisqualifiedProspectNeedsOverride(t *testing.T) {
	p := prospects.Prospect{ClientCount: intp(300), MainPain: strp("pain")}
	cl := Evaluate("c1", p, allRequiredAgentItems("c1"), 500)

	var gate Item
	for _, it := range cl.Items {
		if it.ID == ItemClientCountConfirmed {
			gate = it
		}
	}
	assert.False(t, gate.Checked)
	assert.Equal(t, []string{ItemClientCountConfirmed}, cl.FailedGates)

	v := Validate(cl, calls.StatusScheduled, "")
	assert.False(t, v.IsValid)
	assert.False(t, v.CanStart)
	assert.NotEmpty(t, v.Errors)

	v = Validate(cl, calls.StatusScheduled, "advisory call")
	assert.True(t, v.IsValid)
	assert.True(t, v.CanStart)
	assert.NotEmpty(t, v.Warnings)
	assert.True(t, v.GateOverridden)
	assert.Equal(t, "advisory call", v.OverrideReason)
}

func TestValidate_OverrideDoesNotCoverMissingRequired(t *testing.T) {
	p := prospects.Prospect{ClientCount: intp(300)}
	cl := Evaluate("c1", p, nil, 500)
	v := Validate(cl, calls.StatusScheduled, "advisory call")
	assert.False(t, v.IsValid)
}

func TestValidate_CanStartOnlyWhenScheduled(t *testing.T) {
	p := prospects.Prospect{ClientCount: intp(900), MainPain: strp("pain")}
	cl := Evaluate("c1", p, allRequiredAgentItems("c1"), 500)
	v := Validate(cl, calls.StatusInProgress, "")
	assert.True(t, v.IsValid)
	assert.False(t, v.CanStart)
}
