package calls

import (
	"net/http"
	"sort"
	"time"

	"callos/internal/apperr"
)

// TimestampField names the call timestamp a transition stamps.
type TimestampField string

const (
	StampNone      TimestampField = ""
	StampStartedAt TimestampField = "startedAt"
	StampEndedAt   TimestampField = "endedAt"
)

// Transition describes one legal status change and its side effects.
type Transition struct {
	From              Status
	To                Status
	AutoSetTimestamp  TimestampField
	RequiresChecklist bool
}

var transitions = map[Status]map[Status]Transition{
	StatusScheduled: {
		StatusInProgress: {From: StatusScheduled, To: StatusInProgress, AutoSetTimestamp: StampStartedAt, RequiresChecklist: true},
		StatusCancelled:  {From: StatusScheduled, To: StatusCancelled, AutoSetTimestamp: StampEndedAt},
	},
	StatusInProgress: {
		StatusCompleted: {From: StatusInProgress, To: StatusCompleted, AutoSetTimestamp: StampEndedAt},
		StatusCancelled: {From: StatusInProgress, To: StatusCancelled, AutoSetTimestamp: StampEndedAt},
	},
}

func IsValidTransition(from, to Status) bool {
	_, ok := GetTransition(from, to)
	return ok
}

func GetTransition(from, to Status) (Transition, bool) {
	t, ok := transitions[from][to]
	return t, ok
}

// AllowedTransitions lists the statuses reachable from from, sorted for stable output.
func AllowedTransitions(from Status) []Status {
	out := make([]Status, 0, len(transitions[from]))
	for to := range transitions[from] {
		out = append(out, to)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func IsTerminal(s Status) bool {
	return s == StatusCompleted || s == StatusCancelled
}

type ApplyOptions struct {
	// ChecklistVerified must be set by the caller after the pre-call checklist passed.
	ChecklistVerified bool
}

// ApplyTransition moves c to status to, stamping timestamps as the transition table says.
// c is not modified when the transition is rejected.
func ApplyTransition(c *CallSession, to Status, now time.Time, opts ApplyOptions) (Transition, error) {
	t, ok := GetTransition(c.Status, to)
	if !ok {
		return Transition{}, apperr.InvalidTransition(string(c.Status), string(to))
	}
	if t.RequiresChecklist && !opts.ChecklistVerified {
		return Transition{}, apperr.New(http.StatusBadRequest, apperr.CodeChecklistIncomplete,
			"checklist must pass before the call can start")
	}

	ts := now.UTC()
	switch t.AutoSetTimestamp {
	case StampStartedAt:
		c.StartedAt = &ts
	case StampEndedAt:
		c.EndedAt = &ts
	}
	c.Status = to
	c.UpdatedAt = ts
	return t, nil
}
