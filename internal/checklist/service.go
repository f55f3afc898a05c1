package checklist

import (
	"context"
	"fmt"
	"strings"
	"time"

	"callos/internal/apperr"
	"callos/internal/auth"
	"callos/internal/calls"
	"callos/internal/prospects"
	"callos/pkg/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	db        *gorm.DB
	calls     *calls.Service
	prospects *prospects.Service
	threshold int
	now       func() time.Time
}

func NewService(db *gorm.DB, callSvc *calls.Service, prospectSvc *prospects.Service, threshold int) *Service {
	return &Service{db: db, calls: callSvc, prospects: prospectSvc, threshold: threshold, now: time.Now}
}

func (s *Service) Threshold() int { return s.threshold }

func (s *Service) GetChecklist(ctx context.Context, organizationID, callID string) (Checklist, error) {
	_, cl, err := s.Load(ctx, organizationID, callID)
	return cl, err
}

// Load returns the call together with its evaluated checklist.
func (s *Service) Load(ctx context.Context, organizationID, callID string) (calls.CallSession, Checklist, error) {
	c, err := s.calls.Get(ctx, organizationID, callID)
	if err != nil {
		return calls.CallSession{}, Checklist{}, err
	}
	cl, err := s.evaluate(ctx, c)
	return c, cl, err
}

// EvaluateFor evaluates the checklist for an already-loaded call.
func (s *Service) EvaluateFor(ctx context.Context, c calls.CallSession) (Checklist, error) {
	return s.evaluate(ctx, c)
}

func (s *Service) evaluate(ctx context.Context, c calls.CallSession) (Checklist, error) {
	p, err := s.prospects.Get(ctx, c.OrganizationID, c.ProspectID)
	if err != nil {
		return Checklist{}, err
	}
	var entries []Entry
	if err := utils.Conn(ctx, s.db).Where("call_session_id = ?", c.ID).Find(&entries).Error; err != nil {
		return Checklist{}, fmt.Errorf("checklist: load entries: %w", err)
	}
	return Evaluate(c.ID, p, entries, s.threshold), nil
}

// SetItem records the agent's answer for one agent-sourced item. Last write wins.
func (s *Service) SetItem(ctx context.Context, p auth.Principal, callID, itemID string, checked bool) (Checklist, error) {
	d, ok := Lookup(itemID)
	if !ok {
		return Checklist{}, apperr.Validation("unknown checklist item %q", itemID)
	}
	if d.Source != SourceAgent {
		return Checklist{}, apperr.Validation("checklist item %q is derived from prospect data and cannot be set", itemID)
	}
	c, err := s.calls.Get(ctx, p.OrganizationID, callID)
	if err != nil {
		return Checklist{}, err
	}
	if c.Status != calls.StatusScheduled {
		return Checklist{}, apperr.Validation("checklist can only change while the call is scheduled")
	}

	e := Entry{CallSessionID: c.ID, ItemID: itemID, Checked: checked, CheckedBy: p.UserID, UpdatedAt: s.now().UTC()}
	err = utils.Conn(ctx, s.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "call_session_id"}, {Name: "item_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"checked", "checked_by", "updated_at"}),
	}).Create(&e).Error
	if err != nil {
		return Checklist{}, fmt.Errorf("checklist: set item: %w", err)
	}
	return s.evaluate(ctx, c)
}

// ValidateChecklist evaluates whether the call may start. An override reason is only
// honoured from a principal allowed to override gates.
func (s *Service) ValidateChecklist(ctx context.Context, p auth.Principal, callID, overrideReason string) (Validation, error) {
	c, cl, err := s.Load(ctx, p.OrganizationID, callID)
	if err != nil {
		return Validation{}, err
	}
	return ValidateFor(p, c, cl, overrideReason)
}

// ValidateFor is ValidateChecklist for an already-loaded call and checklist.
func ValidateFor(p auth.Principal, c calls.CallSession, cl Checklist, overrideReason string) (Validation, error) {
	if strings.TrimSpace(overrideReason) != "" && !cl.GatesPassed && !p.CanOverrideGates {
		return Validation{}, apperr.Forbidden("only managers and admins can override the qualification gate")
	}
	return Validate(cl, c.Status, overrideReason), nil
}
