// Package orchestration composes the call state machine, checklist gate, milestone engine
// and outcome recording into the decisions an agent's call screen needs.
package orchestration

import (
	"context"
	"fmt"
	"strings"

	"callos/internal/apperr"
	"callos/internal/audit"
	"callos/internal/auth"
	"callos/internal/calls"
	"callos/internal/checklist"
	"callos/internal/milestones"
	"callos/internal/outcomes"
	"callos/pkg/logger"
	"callos/pkg/utils"

	"gorm.io/gorm"
)

type AuditLogger interface {
	Record(ctx context.Context, p auth.Principal, typ audit.EventType, callID, milestoneID, message string, metadata map[string]any) error
}

// Metrics observes engine decisions. Implemented by observability.EngineMetrics.
type Metrics interface {
	CallTransitioned(from, to calls.Status)
	GateOverridden()
	OutcomeRecorded(t outcomes.Type)
}

type Policy struct {
	// RequireMilestonesForCompletion blocks completion until every milestone is completed or skipped.
	RequireMilestonesForCompletion bool
}

type Engine struct {
	db         *gorm.DB
	calls      *calls.Service
	checklist  *checklist.Service
	milestones *milestones.Service
	outcomes   *outcomes.Service
	audit      AuditLogger
	metrics    Metrics
	policy     Policy
}

func NewEngine(db *gorm.DB, callSvc *calls.Service, checklistSvc *checklist.Service, milestoneSvc *milestones.Service, outcomeSvc *outcomes.Service, auditLog AuditLogger, policy Policy) *Engine {
	return &Engine{
		db:         db,
		calls:      callSvc,
		checklist:  checklistSvc,
		milestones: milestoneSvc,
		outcomes:   outcomeSvc,
		audit:      auditLog,
		policy:     policy,
	}
}

func (e *Engine) SetMetrics(m Metrics) { e.metrics = m }

func (e *Engine) Policy() Policy { return e.policy }

type StartDecision struct {
	CanStart          bool                 `json:"canStart"`
	TransitionAllowed bool                 `json:"transitionAllowed"`
	Validation        checklist.Validation `json:"validation"`
	Checklist         checklist.Checklist  `json:"checklist"`
}

// CanStartCall reports whether the call may move to in_progress with the given override reason.
func (e *Engine) CanStartCall(ctx context.Context, p auth.Principal, callID, overrideReason string) (StartDecision, error) {
	c, cl, err := e.checklist.Load(ctx, p.OrganizationID, callID)
	if err != nil {
		return StartDecision{}, err
	}
	return e.decideStart(p, c, cl, overrideReason)
}

func (e *Engine) decideStart(p auth.Principal, c calls.CallSession, cl checklist.Checklist, overrideReason string) (StartDecision, error) {
	v, err := checklist.ValidateFor(p, c, cl, overrideReason)
	if err != nil {
		return StartDecision{}, err
	}
	allowed := calls.IsValidTransition(c.Status, calls.StatusInProgress)
	return StartDecision{
		CanStart:          allowed && v.IsValid,
		TransitionAllowed: allowed,
		Validation:        v,
		Checklist:         cl,
	}, nil
}

// StartCall moves a scheduled call to in_progress once the checklist passes. A failed gate
// needs a non-blank override reason from a principal allowed to override.
func (e *Engine) StartCall(ctx context.Context, p auth.Principal, callID, overrideReason string) (calls.CallSession, StartDecision, error) {
	var (
		out      calls.CallSession
		decision StartDecision
	)
	err := utils.WithTx(ctx, e.db, nil, func(ctx context.Context) error {
		c, err := e.calls.GetForUpdate(ctx, p.OrganizationID, callID)
		if err != nil {
			return err
		}
		if !calls.IsValidTransition(c.Status, calls.StatusInProgress) {
			return apperr.InvalidTransition(string(c.Status), string(calls.StatusInProgress))
		}
		cl, err := e.checklist.EvaluateFor(ctx, c)
		if err != nil {
			return err
		}
		decision, err = e.decideStart(p, c, cl, overrideReason)
		if err != nil {
			return err
		}
		if !cl.IsComplete {
			return apperr.ChecklistIncomplete(cl.MissingRequired)
		}
		if !cl.GatesPassed && !decision.Validation.GateOverridden {
			return apperr.QualificationGateFailed(cl.FailedGates)
		}

		from := c.Status
		if _, err := calls.ApplyTransition(&c, calls.StatusInProgress, e.calls.Now(), calls.ApplyOptions{ChecklistVerified: true}); err != nil {
			return err
		}
		if decision.Validation.GateOverridden {
			reason := decision.Validation.OverrideReason
			c.GateOverrideReason = &reason
		}
		if err := e.calls.Save(ctx, &c); err != nil {
			return err
		}

		if decision.Validation.GateOverridden {
			logger.From(ctx).Warn("qualification gate overridden",
				"call_id", c.ID, "actor", p.UserID, "role", p.Role, "failed_gates", cl.FailedGates)
			if err := e.record(ctx, p, audit.EventTypeGateOverride, c.ID, decision.Validation.OverrideReason,
				map[string]any{"failedGates": cl.FailedGates, "clientCount": cl.ClientCount, "threshold": cl.Threshold}); err != nil {
				return err
			}
			e.afterCommit(ctx, func(m Metrics) { m.GateOverridden() })
		}
		if err := e.transitioned(ctx, p, c.ID, from, c.Status); err != nil {
			return err
		}
		out = c
		return nil
	})
	return out, decision, err
}

// CancelCall ends a scheduled or in-progress call without an outcome.
func (e *Engine) CancelCall(ctx context.Context, p auth.Principal, callID, reason string) (calls.CallSession, error) {
	var out calls.CallSession
	err := utils.WithTx(ctx, e.db, nil, func(ctx context.Context) error {
		c, err := e.calls.GetForUpdate(ctx, p.OrganizationID, callID)
		if err != nil {
			return err
		}
		from := c.Status
		if _, err := calls.ApplyTransition(&c, calls.StatusCancelled, e.calls.Now(), calls.ApplyOptions{}); err != nil {
			return err
		}
		if r := strings.TrimSpace(reason); r != "" {
			if c.Notes != "" {
				c.Notes += "\n"
			}
			c.Notes += "Cancelled: " + r
		}
		if err := e.calls.Save(ctx, &c); err != nil {
			return err
		}
		if err := e.transitioned(ctx, p, c.ID, from, c.Status); err != nil {
			return err
		}
		out = c
		return nil
	})
	return out, err
}

// CanEnterMilestone combines the call state with the milestone sequencing rules.
func (e *Engine) CanEnterMilestone(ctx context.Context, organizationID, callID, milestoneID string) (milestones.StartCheck, error) {
	c, err := e.calls.Get(ctx, organizationID, callID)
	if err != nil {
		return milestones.StartCheck{}, err
	}
	if c.Status != calls.StatusInProgress {
		return milestones.StartCheck{
			CanStart: false,
			Reason:   fmt.Sprintf("call is %s; milestones can only be entered while it is in progress", c.Status),
		}, nil
	}
	return e.milestones.CanStartMilestone(ctx, organizationID, callID, milestoneID)
}

type CompletionDecision struct {
	CanComplete          bool     `json:"canComplete"`
	Reasons              []string `json:"reasons"`
	UnresolvedMilestones []string `json:"unresolvedMilestones"`
}

// CanCompleteCall checks the state machine and, under RequireMilestonesForCompletion,
// that every milestone was completed or skipped.
func (e *Engine) CanCompleteCall(ctx context.Context, organizationID, callID string) (CompletionDecision, error) {
	c, err := e.calls.Get(ctx, organizationID, callID)
	if err != nil {
		return CompletionDecision{}, err
	}
	return e.decideCompletion(ctx, c)
}

func (e *Engine) decideCompletion(ctx context.Context, c calls.CallSession) (CompletionDecision, error) {
	d := CompletionDecision{Reasons: []string{}, UnresolvedMilestones: []string{}}
	if !calls.IsValidTransition(c.Status, calls.StatusCompleted) {
		d.Reasons = append(d.Reasons, fmt.Sprintf("cannot transition call from %s to %s", c.Status, calls.StatusCompleted))
	}
	unresolved, err := e.milestones.Unresolved(ctx, c.OrganizationID, c.ID)
	if err != nil {
		return CompletionDecision{}, err
	}
	d.UnresolvedMilestones = unresolved
	if e.policy.RequireMilestonesForCompletion && len(unresolved) > 0 {
		d.Reasons = append(d.Reasons, fmt.Sprintf("%d milestone(s) are neither completed nor skipped", len(unresolved)))
	}
	d.CanComplete = len(d.Reasons) == 0
	return d, nil
}

// CompleteCall records the outcome and moves the call to completed in one transaction.
func (e *Engine) CompleteCall(ctx context.Context, p auth.Principal, callID string, in outcomes.Input) (calls.CallSession, outcomes.CallOutcome, error) {
	if err := in.Validate(); err != nil {
		return calls.CallSession{}, outcomes.CallOutcome{}, err
	}
	var (
		outCall    calls.CallSession
		outOutcome outcomes.CallOutcome
	)
	err := utils.WithTx(ctx, e.db, nil, func(ctx context.Context) error {
		c, err := e.calls.GetForUpdate(ctx, p.OrganizationID, callID)
		if err != nil {
			return err
		}
		if _, err := e.outcomes.GetForCall(ctx, c.OrganizationID, c.ID); err == nil {
			return apperr.Conflict("an outcome is already recorded for this call")
		} else if !apperr.HasCode(err, apperr.CodeNotFound) {
			return err
		}
		if !calls.IsValidTransition(c.Status, calls.StatusCompleted) {
			return apperr.InvalidTransition(string(c.Status), string(calls.StatusCompleted))
		}
		d, err := e.decideCompletion(ctx, c)
		if err != nil {
			return err
		}
		if !d.CanComplete {
			return apperr.MilestonesUnresolved(d.UnresolvedMilestones)
		}

		cl, err := e.checklist.EvaluateFor(ctx, c)
		if err != nil {
			return err
		}
		flags := outcomes.QualificationFlags{
			ClientCount:    cl.ClientCount,
			Threshold:      cl.Threshold,
			GatesPassed:    cl.GatesPassed,
			FailedGates:    cl.FailedGates,
			GateOverridden: c.GateOverrideReason != nil,
		}
		if c.GateOverrideReason != nil {
			flags.OverrideReason = *c.GateOverrideReason
		}

		now := e.calls.Now()
		o, err := e.outcomes.Create(ctx, c.OrganizationID, c.ID, p.UserID, in, flags, now)
		if err != nil {
			return err
		}
		from := c.Status
		if _, err := calls.ApplyTransition(&c, calls.StatusCompleted, now, calls.ApplyOptions{}); err != nil {
			return err
		}
		if err := e.calls.Save(ctx, &c); err != nil {
			return err
		}
		if err := e.transitioned(ctx, p, c.ID, from, c.Status); err != nil {
			return err
		}
		e.afterCommit(ctx, func(m Metrics) { m.OutcomeRecorded(o.OutcomeType) })
		outCall, outOutcome = c, o
		return nil
	})
	return outCall, outOutcome, err
}

func (e *Engine) transitioned(ctx context.Context, p auth.Principal, callID string, from, to calls.Status) error {
	logger.From(ctx).Info("call transitioned", "call_id", callID, "from", from, "to", to, "actor", p.UserID)
	e.afterCommit(ctx, func(m Metrics) { m.CallTransitioned(from, to) })
	return e.record(ctx, p, audit.EventTypeCallTransition, callID, fmt.Sprintf("%s -> %s", from, to),
		map[string]any{"from": from, "to": to})
}

// afterCommit reports to metrics once the enclosing transaction commits.
func (e *Engine) afterCommit(ctx context.Context, fn func(m Metrics)) {
	if e.metrics == nil {
		return
	}
	m := e.metrics
	utils.AfterCommit(ctx, func() { fn(m) })
}

func (e *Engine) record(ctx context.Context, p auth.Principal, typ audit.EventType, callID, message string, metadata map[string]any) error {
	if e.audit == nil {
		return nil
	}
	if err := e.audit.Record(ctx, p, typ, callID, "", message, metadata); err != nil {
		return fmt.Errorf("orchestration: audit: %w", err)
	}
	return nil
}
