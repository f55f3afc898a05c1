package objections

import (
	"callos/internal/apperr"
)

// Step is the next diagnostic question for an objection, or Done once every question is answered.
type Step struct {
	Question *Question `json:"question,omitempty"`
	Index    int       `json:"index"`
	Total    int       `json:"total"`
	Done     bool      `json:"done"`
	Outcomes []Outcome `json:"allowedOutcomes"`
}

// NextQuestion returns the first question in order without a non-empty answer.
func NextQuestion(o Objection, answers Answers) Step {
	qs := o.Questions()
	step := Step{Total: len(qs), Outcomes: o.AllowedOutcomes.Data()}
	for i, q := range qs {
		if answers[q.ID] == "" {
			q := q
			step.Question = &q
			step.Index = i
			return step
		}
	}
	step.Index = len(qs)
	step.Done = true
	return step
}

// ValidateAnswers rejects answers keyed by ids the objection does not declare.
func ValidateAnswers(o Objection, answers Answers) error {
	for id := range answers {
		if !o.HasQuestion(id) {
			return apperr.Validation("diagnostic question %q is not defined for %s", id, o.Type)
		}
	}
	return nil
}

// ValidateOutcome enforces the objection's allow-list.
func ValidateOutcome(o Objection, outcome Outcome) error {
	if !outcome.Valid() {
		return apperr.Validation("outcome must be Resolved, Deferred or Disqualified")
	}
	if !o.Allows(outcome) {
		return apperr.Validation("outcome %s is not allowed for %s objections", outcome, o.Type).
			WithDetail("allowedOutcomes", o.AllowedOutcomes.Data())
	}
	return nil
}

// DefaultAllowedOutcomes is used when a playbook entry omits allowedOutcomes.
func DefaultAllowedOutcomes(t Type) []Outcome {
	switch t {
	case TypeSkepticism:
		return []Outcome{OutcomeResolved, OutcomeDisqualified}
	case TypeNeed:
		return []Outcome{OutcomeResolved, OutcomeDisqualified}
	default:
		return []Outcome{OutcomeResolved, OutcomeDeferred, OutcomeDisqualified}
	}
}
