package milestones

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"callos/internal/apperr"
	"callos/internal/audit"
	"callos/internal/auth"
	"callos/internal/calls"
	"callos/pkg/logger"
	"callos/pkg/utils"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AuditLogger records overrides and skips. *audit.Service satisfies it.
type AuditLogger interface {
	Record(ctx context.Context, p auth.Principal, typ audit.EventType, callID, milestoneID, message string, metadata map[string]any) error
}

type Service struct {
	db     *gorm.DB
	calls  *calls.Service
	audit  AuditLogger
	policy Policy
	now    func() time.Time
}

func NewService(db *gorm.DB, callSvc *calls.Service, auditLog AuditLogger, policy Policy) *Service {
	return &Service{db: db, calls: callSvc, audit: auditLog, policy: policy, now: time.Now}
}

func (s *Service) Policy() Policy { return s.policy }

// ListMilestones returns the organization's milestones in sequence order.
func (s *Service) ListMilestones(ctx context.Context, organizationID string) ([]Milestone, error) {
	var out []Milestone
	err := utils.Conn(ctx, s.db).
		Where("organization_id = ?", organizationID).
		Order("order_index ASC, number ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("milestones: list: %w", err)
	}
	return out, nil
}

func (s *Service) GetMilestone(ctx context.Context, organizationID, id string) (Milestone, error) {
	var m Milestone
	err := utils.Conn(ctx, s.db).Where("organization_id = ? AND id = ?", organizationID, id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Milestone{}, apperr.NotFound("milestone")
	}
	if err != nil {
		return Milestone{}, fmt.Errorf("milestones: get: %w", err)
	}
	return m, nil
}

// DefinitionInput describes one milestone when loading a playbook.
type DefinitionInput struct {
	Number            int
	OrderIndex        int
	Title             string
	Objective         string
	DurationMinutes   int
	RequiredQuestions []ItemDef
	Confirmations     []ItemDef
}

// UpsertDefinitions creates or updates milestones keyed by (organization, number).
// Milestones not mentioned are left in place. Definitions are frozen while any of the
// organization's calls is in progress.
func (s *Service) UpsertDefinitions(ctx context.Context, organizationID string, defs []DefinitionInput) ([]Milestone, error) {
	if organizationID == "" {
		return nil, apperr.Validation("organization is required")
	}
	if err := validateDefinitions(defs); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context) error {
		live, err := s.calls.CountInProgress(ctx, organizationID)
		if err != nil {
			return err
		}
		if live > 0 {
			return apperr.Conflict(fmt.Sprintf("milestone definitions cannot change while %d call(s) are in progress", live)).
				WithDetail("callsInProgress", live)
		}
		for _, d := range defs {
			order := d.OrderIndex
			if order == 0 {
				order = d.Number
			}
			m := Milestone{
				ID:                uuid.NewString(),
				OrganizationID:    organizationID,
				Number:            d.Number,
				OrderIndex:        order,
				Title:             strings.TrimSpace(d.Title),
				Objective:         strings.TrimSpace(d.Objective),
				DurationMinutes:   d.DurationMinutes,
				RequiredQuestions: datatypes.NewJSONType(nonNil(d.RequiredQuestions)),
				Confirmations:     datatypes.NewJSONType(nonNil(d.Confirmations)),
				CreatedAt:         now,
				UpdatedAt:         now,
			}
			err := utils.Conn(ctx, s.db).Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "organization_id"}, {Name: "number"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"order_index", "title", "objective", "duration_minutes",
					"required_questions", "confirmations", "updated_at",
				}),
			}).Create(&m).Error
			if err != nil {
				return fmt.Errorf("milestones: upsert %d: %w", d.Number, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.ListMilestones(ctx, organizationID)
}

func validateDefinitions(defs []DefinitionInput) error {
	if len(defs) == 0 {
		return apperr.Validation("at least one milestone is required")
	}
	numbers := map[int]bool{}
	for _, d := range defs {
		if d.Number < 1 {
			return apperr.Validation("milestone number must be >= 1, got %d", d.Number)
		}
		if numbers[d.Number] {
			return apperr.Validation("duplicate milestone number %d", d.Number)
		}
		numbers[d.Number] = true
		if strings.TrimSpace(d.Title) == "" {
			return apperr.Validation("milestone %d needs a title", d.Number)
		}
		ids := map[string]bool{}
		for _, it := range append(append([]ItemDef{}, d.RequiredQuestions...), d.Confirmations...) {
			if strings.TrimSpace(it.ID) == "" {
				return apperr.Validation("milestone %d has an item without an id", d.Number)
			}
			if ids[it.ID] {
				return apperr.Validation("milestone %d declares item %q twice", d.Number, it.ID)
			}
			ids[it.ID] = true
		}
	}
	return nil
}

func nonNil(items []ItemDef) []ItemDef {
	if items == nil {
		return []ItemDef{}
	}
	return items
}

func (s *Service) responsesFor(ctx context.Context, callID string) (map[string]MilestoneResponse, error) {
	var rows []MilestoneResponse
	if err := utils.Conn(ctx, s.db).Where("call_session_id = ?", callID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("milestones: load responses: %w", err)
	}
	out := make(map[string]MilestoneResponse, len(rows))
	for _, r := range rows {
		out[r.MilestoneID] = r
	}
	return out, nil
}

// ListResponses returns a call's milestone responses keyed by milestone id.
func (s *Service) ListResponses(ctx context.Context, organizationID, callID string) (map[string]MilestoneResponse, error) {
	if _, err := s.calls.Get(ctx, organizationID, callID); err != nil {
		return nil, err
	}
	return s.responsesFor(ctx, callID)
}

// CanStartMilestone reports whether milestoneID may start on the call right now.
func (s *Service) CanStartMilestone(ctx context.Context, organizationID, callID, milestoneID string) (StartCheck, error) {
	c, err := s.calls.Get(ctx, organizationID, callID)
	if err != nil {
		return StartCheck{}, err
	}
	return s.canStart(ctx, c, milestoneID)
}

func (s *Service) canStart(ctx context.Context, c calls.CallSession, milestoneID string) (StartCheck, error) {
	target, err := s.GetMilestone(ctx, c.OrganizationID, milestoneID)
	if err != nil {
		return StartCheck{}, err
	}
	ordered, err := s.ListMilestones(ctx, c.OrganizationID)
	if err != nil {
		return StartCheck{}, err
	}
	responses, err := s.responsesFor(ctx, c.ID)
	if err != nil {
		return StartCheck{}, err
	}
	return CheckSequence(c.Mode, ordered, responses, target, s.policy), nil
}

// StartMilestoneResponse creates the response for (call, milestone). Calling it again
// returns the existing response unchanged. In strict mode an out-of-order start needs
// an override reason from a principal allowed to override.
func (s *Service) StartMilestoneResponse(ctx context.Context, p auth.Principal, callID, milestoneID, overrideReason string) (MilestoneResponse, error) {
	var out MilestoneResponse
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context) error {
		c, err := s.calls.GetForUpdate(ctx, p.OrganizationID, callID)
		if err != nil {
			return err
		}
		existing, found, err := s.findResponse(ctx, c.ID, milestoneID)
		if err != nil {
			return err
		}
		if found {
			out = existing
			return nil
		}
		if c.Status != calls.StatusInProgress {
			return apperr.Validation("milestones can only be started while the call is in progress (call is %s)", c.Status)
		}

		check, err := s.canStart(ctx, c, milestoneID)
		if err != nil {
			return err
		}
		reason := strings.TrimSpace(overrideReason)
		if !check.CanStart {
			if reason == "" {
				return apperr.SequentialViolation(check.Reason).WithDetail("blockedBy", check.BlockedBy)
			}
			if !p.CanOverrideGates {
				return apperr.Forbidden("only managers and admins can start milestones out of sequence")
			}
		}

		now := s.now().UTC()
		r := MilestoneResponse{
			ID:                   uuid.NewString(),
			CallSessionID:        c.ID,
			MilestoneID:          milestoneID,
			Status:               ResponseInProgress,
			RequiredItemsChecked: datatypes.NewJSONType(CheckedItems{}),
			StartedAt:            now,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		if !check.CanStart {
			r.OverrideReason = &reason
		}
		if err := utils.Conn(ctx, s.db).Create(&r).Error; err != nil {
			return fmt.Errorf("milestones: start: %w", err)
		}
		if !check.CanStart {
			logger.From(ctx).Info("milestone started out of sequence",
				"call_id", c.ID, "milestone_id", milestoneID, "actor", p.UserID)
			if err := s.record(ctx, p, audit.EventTypeSequenceOverride, c.ID, milestoneID, reason,
				map[string]any{"blockedBy": check.BlockedBy}); err != nil {
				return err
			}
		}
		out = r
		return nil
	})
	return out, err
}

func (s *Service) findResponse(ctx context.Context, callID, milestoneID string) (MilestoneResponse, bool, error) {
	var r MilestoneResponse
	err := utils.Conn(ctx, s.db).
		Where("call_session_id = ? AND milestone_id = ?", callID, milestoneID).
		First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return MilestoneResponse{}, false, nil
	}
	if err != nil {
		return MilestoneResponse{}, false, fmt.Errorf("milestones: find response: %w", err)
	}
	return r, true, nil
}

// GetResponse loads a response, scoped to the caller's organization through its call.
func (s *Service) GetResponse(ctx context.Context, organizationID, responseID string) (MilestoneResponse, error) {
	r, _, err := s.loadResponse(ctx, organizationID, responseID, false)
	return r, err
}

// loadResponse returns the response and its call. With lock the call row is locked,
// so it must run inside a transaction.
func (s *Service) loadResponse(ctx context.Context, organizationID, responseID string, lock bool) (MilestoneResponse, calls.CallSession, error) {
	var r MilestoneResponse
	err := utils.Conn(ctx, s.db).Where("id = ?", responseID).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return MilestoneResponse{}, calls.CallSession{}, apperr.NotFound("milestone response")
	}
	if err != nil {
		return MilestoneResponse{}, calls.CallSession{}, fmt.Errorf("milestones: get response: %w", err)
	}
	var c calls.CallSession
	if lock {
		c, err = s.calls.GetForUpdate(ctx, organizationID, r.CallSessionID)
	} else {
		c, err = s.calls.Get(ctx, organizationID, r.CallSessionID)
	}
	if err != nil {
		if apperr.HasCode(err, apperr.CodeNotFound) {
			return MilestoneResponse{}, calls.CallSession{}, apperr.NotFound("milestone response")
		}
		return MilestoneResponse{}, calls.CallSession{}, err
	}
	return r, c, nil
}

// mutate runs fn on an in-progress response of an in-progress call and saves the result.
func (s *Service) mutate(ctx context.Context, organizationID, responseID string, fn func(ctx context.Context, r *MilestoneResponse, c calls.CallSession) error) (MilestoneResponse, error) {
	var out MilestoneResponse
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context) error {
		r, c, err := s.loadResponse(ctx, organizationID, responseID, true)
		if err != nil {
			return err
		}
		if c.Status != calls.StatusInProgress {
			return apperr.Validation("call is %s; milestone responses can no longer change", c.Status)
		}
		if r.Status.Terminal() {
			return apperr.Validation("milestone response is already %s", r.Status)
		}
		if err := fn(ctx, &r, c); err != nil {
			return err
		}
		r.UpdatedAt = s.now().UTC()
		if err := utils.Conn(ctx, s.db).Save(&r).Error; err != nil {
			return fmt.Errorf("milestones: save response: %w", err)
		}
		out = r
		return nil
	})
	return out, err
}

// CheckItem sets one declared item on an in-progress response. Last write wins.
func (s *Service) CheckItem(ctx context.Context, p auth.Principal, responseID, itemID string, value bool) (MilestoneResponse, error) {
	return s.mutate(ctx, p.OrganizationID, responseID, func(ctx context.Context, r *MilestoneResponse, c calls.CallSession) error {
		m, err := s.GetMilestone(ctx, c.OrganizationID, r.MilestoneID)
		if err != nil {
			return err
		}
		if !m.HasItem(itemID) {
			return apperr.Validation("item %q is not declared on milestone %d", itemID, m.Number)
		}
		checked := r.Checked()
		checked[itemID] = value
		r.RequiredItemsChecked = datatypes.NewJSONType(checked)
		return nil
	})
}

// UpdateNotes replaces the free-text notes of an in-progress response.
func (s *Service) UpdateNotes(ctx context.Context, p auth.Principal, responseID, notes string) (MilestoneResponse, error) {
	return s.mutate(ctx, p.OrganizationID, responseID, func(ctx context.Context, r *MilestoneResponse, _ calls.CallSession) error {
		r.Notes = notes
		return nil
	})
}

// ValidateCompletion validates checked against the organization's milestone definition.
func (s *Service) ValidateCompletion(ctx context.Context, organizationID, milestoneID string, checked CheckedItems) (CompletionCheck, error) {
	m, err := s.GetMilestone(ctx, organizationID, milestoneID)
	if err != nil {
		return CompletionCheck{}, err
	}
	return ValidateMilestoneCompletion(m, checked), nil
}

// CompleteMilestone marks a response completed. Strict-mode calls must have every
// required item checked.
func (s *Service) CompleteMilestone(ctx context.Context, p auth.Principal, responseID string) (MilestoneResponse, error) {
	return s.mutate(ctx, p.OrganizationID, responseID, func(ctx context.Context, r *MilestoneResponse, c calls.CallSession) error {
		if c.Mode == calls.ModeStrict {
			m, err := s.GetMilestone(ctx, c.OrganizationID, r.MilestoneID)
			if err != nil {
				return err
			}
			if v := ValidateMilestoneCompletion(m, r.Checked()); !v.IsValid {
				return apperr.CompletionRequirementsNotMet(v.MissingItems)
			}
		}
		now := s.now().UTC()
		r.Status = ResponseCompleted
		r.CompletedAt = &now
		return nil
	})
}

// SkipMilestone marks an in-progress response skipped with a mandatory reason.
func (s *Service) SkipMilestone(ctx context.Context, p auth.Principal, responseID, reason string) (MilestoneResponse, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return MilestoneResponse{}, apperr.Validation("a reason is required to skip a milestone")
	}
	return s.mutate(ctx, p.OrganizationID, responseID, func(ctx context.Context, r *MilestoneResponse, c calls.CallSession) error {
		markSkipped(r, reason, s.now().UTC())
		return s.record(ctx, p, audit.EventTypeMilestoneSkipped, c.ID, r.MilestoneID, reason, nil)
	})
}

// SkipMilestoneForCall skips a milestone by id, creating its response if it was never started.
// Creating it is held to the same sequencing rules as StartMilestoneResponse; only a
// principal allowed to override may skip ahead.
func (s *Service) SkipMilestoneForCall(ctx context.Context, p auth.Principal, callID, milestoneID, reason string) (MilestoneResponse, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return MilestoneResponse{}, apperr.Validation("a reason is required to skip a milestone")
	}
	var out MilestoneResponse
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context) error {
		c, err := s.calls.GetForUpdate(ctx, p.OrganizationID, callID)
		if err != nil {
			return err
		}
		if c.Status != calls.StatusInProgress {
			return apperr.Validation("milestones can only be skipped while the call is in progress (call is %s)", c.Status)
		}
		if _, err := s.GetMilestone(ctx, c.OrganizationID, milestoneID); err != nil {
			return err
		}
		r, found, err := s.findResponse(ctx, c.ID, milestoneID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		switch {
		case found && r.Status.Terminal():
			return apperr.Validation("milestone response is already %s", r.Status)
		case found:
			markSkipped(&r, reason, now)
			r.UpdatedAt = now
			if err := utils.Conn(ctx, s.db).Save(&r).Error; err != nil {
				return fmt.Errorf("milestones: skip: %w", err)
			}
		default:
			check, err := s.canStart(ctx, c, milestoneID)
			if err != nil {
				return err
			}
			if !check.CanStart {
				if !p.CanOverrideGates {
					return apperr.SequentialViolation(check.Reason).WithDetail("blockedBy", check.BlockedBy)
				}
				logger.From(ctx).Warn("milestone skipped out of sequence",
					"call_id", c.ID, "milestone_id", milestoneID, "actor", p.UserID, "blocked_by", check.BlockedBy)
				if err := s.record(ctx, p, audit.EventTypeSequenceOverride, c.ID, milestoneID, reason,
					map[string]any{"blockedBy": check.BlockedBy, "action": "skip"}); err != nil {
					return err
				}
			}
			r = MilestoneResponse{
				ID:                   uuid.NewString(),
				CallSessionID:        c.ID,
				MilestoneID:          milestoneID,
				RequiredItemsChecked: datatypes.NewJSONType(CheckedItems{}),
				StartedAt:            now,
				CreatedAt:            now,
				UpdatedAt:            now,
			}
			markSkipped(&r, reason, now)
			if err := utils.Conn(ctx, s.db).Create(&r).Error; err != nil {
				return fmt.Errorf("milestones: skip: %w", err)
			}
		}
		out = r
		return s.record(ctx, p, audit.EventTypeMilestoneSkipped, c.ID, milestoneID, reason, nil)
	})
	return out, err
}

func markSkipped(r *MilestoneResponse, reason string, now time.Time) {
	r.Status = ResponseSkipped
	r.OverrideReason = &reason
	r.CompletedAt = &now
}

// GetNextMilestone returns the first milestone neither completed nor skipped, or nil.
func (s *Service) GetNextMilestone(ctx context.Context, organizationID, callID string) (*Milestone, error) {
	if _, err := s.calls.Get(ctx, organizationID, callID); err != nil {
		return nil, err
	}
	ordered, err := s.ListMilestones(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	responses, err := s.responsesFor(ctx, callID)
	if err != nil {
		return nil, err
	}
	m, ok := NextMilestone(ordered, responses)
	if !ok {
		return nil, nil
	}
	return &m, nil
}

// ProgressEntry is one milestone with its state on a call.
type ProgressEntry struct {
	Milestone Milestone          `json:"milestone"`
	State     string             `json:"state"`
	Response  *MilestoneResponse `json:"response,omitempty"`
	Start     StartCheck         `json:"start"`
}

type Progress struct {
	CallID      string          `json:"callId"`
	Mode        calls.Mode      `json:"mode"`
	Entries     []ProgressEntry `json:"milestones"`
	Total       int             `json:"total"`
	Completed   int             `json:"completed"`
	Skipped     int             `json:"skipped"`
	NextID      string          `json:"nextMilestoneId,omitempty"`
	AllResolved bool            `json:"allResolved"`
}

const StateNotStarted = "not_started"

// Progress summarizes every milestone for the agent's call screen.
func (s *Service) Progress(ctx context.Context, organizationID, callID string) (Progress, error) {
	c, err := s.calls.Get(ctx, organizationID, callID)
	if err != nil {
		return Progress{}, err
	}
	ordered, err := s.ListMilestones(ctx, organizationID)
	if err != nil {
		return Progress{}, err
	}
	responses, err := s.responsesFor(ctx, callID)
	if err != nil {
		return Progress{}, err
	}

	out := Progress{CallID: c.ID, Mode: c.Mode, Total: len(ordered), Entries: make([]ProgressEntry, 0, len(ordered))}
	for _, m := range ordered {
		e := ProgressEntry{Milestone: m, State: StateNotStarted}
		if r, ok := responses[m.ID]; ok {
			r := r
			e.Response = &r
			e.State = string(r.Status)
			switch r.Status {
			case ResponseCompleted:
				out.Completed++
			case ResponseSkipped:
				out.Skipped++
			}
		} else {
			e.Start = CheckSequence(c.Mode, ordered, responses, m, s.policy)
		}
		out.Entries = append(out.Entries, e)
	}
	if next, ok := NextMilestone(ordered, responses); ok {
		out.NextID = next.ID
	}
	out.AllResolved = out.Completed+out.Skipped == out.Total
	return out, nil
}

// Unresolved lists milestone ids on the call that are neither completed nor skipped.
func (s *Service) Unresolved(ctx context.Context, organizationID, callID string) ([]string, error) {
	ordered, err := s.ListMilestones(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	responses, err := s.responsesFor(ctx, callID)
	if err != nil {
		return nil, err
	}
	out := []string{}
	for _, m := range ordered {
		if r, ok := responses[m.ID]; !ok || !r.Status.Terminal() {
			out = append(out, m.ID)
		}
	}
	return out, nil
}

func (s *Service) record(ctx context.Context, p auth.Principal, typ audit.EventType, callID, milestoneID, message string, metadata map[string]any) error {
	if s.audit == nil {
		return nil
	}
	if err := s.audit.Record(ctx, p, typ, callID, milestoneID, message, metadata); err != nil {
		return fmt.Errorf("milestones: audit: %w", err)
	}
	return nil
}

// SetClock replaces the clock. Intended for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }
