package calls

import (
	"testing"
	"time"

	"callos/internal/apperr"
)

func TestTransitionTable(t *testing.T) {
	all := []Status{StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled}
	allowed := map[[2]Status]bool{
		{StatusScheduled, StatusInProgress}: true,
		{StatusScheduled, StatusCancelled}:  true,
		{StatusInProgress, StatusCompleted}: true,
		{StatusInProgress, StatusCancelled}: true,
	}
	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]Status{from, to}]
			if got := IsValidTransition(from, to); got != want {
				t.Fatalf("IsValidTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTerminalStatesHaveNoTransitions(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusCancelled} {
		if !IsTerminal(s) {
			t.Fatalf("expected %s terminal", s)
		}
		if n := len(AllowedTransitions(s)); n != 0 {
			t.Fatalf("expected no transitions from %s, got %d", s, n)
		}
	}
}

func TestGetTransition_SideEffects(t *testing.T) {
	tr, ok := GetTransition(StatusScheduled, StatusInProgress)
	if !ok || tr.AutoSetTimestamp != StampStartedAt || !tr.RequiresChecklist {
		t.Fatalf("unexpected transition: %+v", tr)
	}
	tr, ok = GetTransition(StatusInProgress, StatusCompleted)
	if !ok || tr.AutoSetTimestamp != StampEndedAt || tr.RequiresChecklist {
		t.Fatalf("unexpected transition: %+v", tr)
	}
	if _, ok := GetTransition(StatusCompleted, StatusInProgress); ok {
		t.Fatalf("expected no transition out of completed")
	}
}

func TestApplyTransition_StampsTimestamps(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	c := CallSession{Status: StatusScheduled}

	if _, err := ApplyTransition(&c, StatusInProgress, now, ApplyOptions{}); !apperr.HasCode(err, apperr.CodeChecklistIncomplete) {
		t.Fatalf("expected checklist error, got %v", err)
	}
	if c.Status != StatusScheduled || c.StartedAt != nil {
		t.Fatalf("expected call unchanged after rejection")
	}

	if _, err := ApplyTransition(&c, StatusInProgress, now, ApplyOptions{ChecklistVerified: true}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if c.StartedAt == nil || !c.StartedAt.Equal(now) || c.EndedAt != nil {
		t.Fatalf("expected startedAt only: %+v", c)
	}

	end := now.Add(30 * time.Minute)
	if _, err := ApplyTransition(&c, StatusCompleted, end, ApplyOptions{}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if c.EndedAt == nil || !c.EndedAt.Equal(end) {
		t.Fatalf("expected endedAt set")
	}

	_, err := ApplyTransition(&c, StatusInProgress, end, ApplyOptions{ChecklistVerified: true})
	if !apperr.HasCode(err, apperr.CodeInvalidStateTransition) {
		t.Fatalf("expected INVALID_STATE_TRANSITION, got %v", err)
	}
}

func TestApplyTransition_CancelFromScheduledSetsEndedOnly(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	c := CallSession{Status: StatusScheduled}
	if _, err := ApplyTransition(&c, StatusCancelled, now, ApplyOptions{}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if c.StartedAt != nil || c.EndedAt == nil {
		t.Fatalf("expected only endedAt: %+v", c)
	}
}
