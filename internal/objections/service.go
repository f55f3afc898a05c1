package objections

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"callos/internal/apperr"
	"callos/internal/auth"
	"callos/internal/calls"
	"callos/internal/milestones"
	"callos/pkg/logger"
	"callos/pkg/utils"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Metrics receives one observation per recorded objection.
type Metrics interface {
	ObjectionRecorded(t Type, outcome Outcome)
}

type Service struct {
	db         *gorm.DB
	calls      *calls.Service
	milestones *milestones.Service
	metrics    Metrics
	now        func() time.Time
}

func NewService(db *gorm.DB, callSvc *calls.Service, milestoneSvc *milestones.Service) *Service {
	return &Service{db: db, calls: callSvc, milestones: milestoneSvc, now: time.Now}
}

func (s *Service) SetMetrics(m Metrics) { s.metrics = m }

func (s *Service) ListDefinitions(ctx context.Context, organizationID string) ([]Objection, error) {
	var out []Objection
	if err := utils.Conn(ctx, s.db).Where("organization_id = ?", organizationID).Order("type ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("objections: list: %w", err)
	}
	return out, nil
}

func (s *Service) GetDefinition(ctx context.Context, organizationID, id string) (Objection, error) {
	var o Objection
	err := utils.Conn(ctx, s.db).Where("organization_id = ? AND id = ?", organizationID, id).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Objection{}, apperr.NotFound("objection")
	}
	if err != nil {
		return Objection{}, fmt.Errorf("objections: get: %w", err)
	}
	return o, nil
}

type DefinitionInput struct {
	Type            Type
	Title           string
	Questions       []Question
	AllowedOutcomes []Outcome
}

// UpsertDefinitions creates or replaces objection definitions keyed by (organization, type).
func (s *Service) UpsertDefinitions(ctx context.Context, organizationID string, defs []DefinitionInput) ([]Objection, error) {
	if organizationID == "" {
		return nil, apperr.Validation("organization is required")
	}
	seen := map[Type]bool{}
	for i := range defs {
		d := &defs[i]
		if !d.Type.Valid() {
			return nil, apperr.Validation("unknown objection type %q", d.Type)
		}
		if seen[d.Type] {
			return nil, apperr.Validation("objection type %s defined twice", d.Type)
		}
		seen[d.Type] = true
		ids := map[string]bool{}
		for _, q := range d.Questions {
			if strings.TrimSpace(q.ID) == "" || ids[q.ID] {
				return nil, apperr.Validation("%s questions need unique ids", d.Type)
			}
			ids[q.ID] = true
		}
		if len(d.AllowedOutcomes) == 0 {
			d.AllowedOutcomes = DefaultAllowedOutcomes(d.Type)
		}
		for _, o := range d.AllowedOutcomes {
			if !o.Valid() {
				return nil, apperr.Validation("%s: unknown outcome %q", d.Type, o)
			}
		}
	}

	now := s.now().UTC()
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context) error {
		for _, d := range defs {
			qs := d.Questions
			if qs == nil {
				qs = []Question{}
			}
			title := strings.TrimSpace(d.Title)
			if title == "" {
				title = string(d.Type)
			}
			o := Objection{
				ID:                  uuid.NewString(),
				OrganizationID:      organizationID,
				Type:                d.Type,
				Title:               title,
				DiagnosticQuestions: datatypes.NewJSONType(qs),
				AllowedOutcomes:     datatypes.NewJSONType(d.AllowedOutcomes),
				CreatedAt:           now,
				UpdatedAt:           now,
			}
			err := utils.Conn(ctx, s.db).Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "organization_id"}, {Name: "type"}},
				DoUpdates: clause.AssignmentColumns([]string{"title", "diagnostic_questions", "allowed_outcomes", "updated_at"}),
			}).Create(&o).Error
			if err != nil {
				return fmt.Errorf("objections: upsert %s: %w", d.Type, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.ListDefinitions(ctx, organizationID)
}

type CreateInput struct {
	ObjectionID       string
	MilestoneID       string
	Outcome           Outcome
	DiagnosticAnswers Answers
	Notes             string
}

// CreateResponse records a raised objection and its final outcome. Every check runs in
// the same transaction as the insert with the call row locked.
func (s *Service) CreateResponse(ctx context.Context, p auth.Principal, callID string, in CreateInput) (Response, error) {
	var out Response
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context) error {
		c, err := s.calls.GetForUpdate(ctx, p.OrganizationID, callID)
		if err != nil {
			return err
		}
		if c.Status != calls.StatusInProgress {
			return apperr.Validation("objections can only be recorded while the call is in progress (call is %s)", c.Status)
		}
		o, err := s.GetDefinition(ctx, c.OrganizationID, in.ObjectionID)
		if err != nil {
			return err
		}
		if err := ValidateOutcome(o, in.Outcome); err != nil {
			return err
		}
		if err := ValidateAnswers(o, in.DiagnosticAnswers); err != nil {
			return err
		}
		var milestoneID *string
		if in.MilestoneID != "" {
			if _, err := s.milestones.GetMilestone(ctx, c.OrganizationID, in.MilestoneID); err != nil {
				return err
			}
			milestoneID = &in.MilestoneID
		}

		answers := in.DiagnosticAnswers
		if answers == nil {
			answers = Answers{}
		}
		now := s.now().UTC()
		r := Response{
			ID:                uuid.NewString(),
			CallSessionID:     c.ID,
			ObjectionID:       o.ID,
			MilestoneID:       milestoneID,
			Outcome:           in.Outcome,
			DiagnosticAnswers: datatypes.NewJSONType(answers),
			Notes:             in.Notes,
			CreatedBy:         p.UserID,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := utils.Conn(ctx, s.db).Create(&r).Error; err != nil {
			return fmt.Errorf("objections: create response: %w", err)
		}
		logger.From(ctx).Info("objection recorded",
			"call_id", c.ID, "type", o.Type, "outcome", r.Outcome, "actor", p.UserID)
		if m := s.metrics; m != nil {
			utils.AfterCommit(ctx, func() { m.ObjectionRecorded(o.Type, r.Outcome) })
		}
		out = r
		return nil
	})
	return out, err
}

// UpdateInput patches a response. Outcome is accepted only to reject a change.
type UpdateInput struct {
	Notes             *string
	DiagnosticAnswers Answers
	Outcome           *Outcome
}

// UpdateResponse patches notes and merges diagnostic answers. The outcome never changes.
func (s *Service) UpdateResponse(ctx context.Context, p auth.Principal, responseID string, in UpdateInput) (Response, error) {
	var out Response
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context) error {
		r, err := s.getResponse(ctx, p.OrganizationID, responseID)
		if err != nil {
			return err
		}
		if in.Outcome != nil && *in.Outcome != r.Outcome {
			return apperr.Validation("objection outcome cannot be changed once recorded")
		}
		if in.DiagnosticAnswers != nil {
			o, err := s.GetDefinition(ctx, p.OrganizationID, r.ObjectionID)
			if err != nil {
				return err
			}
			if err := ValidateAnswers(o, in.DiagnosticAnswers); err != nil {
				return err
			}
			merged := r.Answers()
			for k, v := range in.DiagnosticAnswers {
				merged[k] = v
			}
			r.DiagnosticAnswers = datatypes.NewJSONType(merged)
		}
		if in.Notes != nil {
			r.Notes = *in.Notes
		}
		r.UpdatedAt = s.now().UTC()
		if err := utils.Conn(ctx, s.db).Save(&r).Error; err != nil {
			return fmt.Errorf("objections: update response: %w", err)
		}
		out = r
		return nil
	})
	return out, err
}

func (s *Service) GetResponse(ctx context.Context, organizationID, responseID string) (Response, error) {
	return s.getResponse(ctx, organizationID, responseID)
}

func (s *Service) getResponse(ctx context.Context, organizationID, responseID string) (Response, error) {
	var r Response
	err := utils.Conn(ctx, s.db).Where("id = ?", responseID).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Response{}, apperr.NotFound("objection response")
	}
	if err != nil {
		return Response{}, fmt.Errorf("objections: get response: %w", err)
	}
	if _, err := s.calls.Get(ctx, organizationID, r.CallSessionID); err != nil {
		if apperr.HasCode(err, apperr.CodeNotFound) {
			return Response{}, apperr.NotFound("objection response")
		}
		return Response{}, err
	}
	return r, nil
}

// ListForCall returns the call's objection responses oldest first.
func (s *Service) ListForCall(ctx context.Context, organizationID, callID string) ([]Response, error) {
	if _, err := s.calls.Get(ctx, organizationID, callID); err != nil {
		return nil, err
	}
	var out []Response
	if err := utils.Conn(ctx, s.db).Where("call_session_id = ?", callID).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("objections: list responses: %w", err)
	}
	return out, nil
}

// NextQuestion steps an objection's diagnostic sequence for clients that do not step locally.
func (s *Service) NextQuestion(ctx context.Context, organizationID, objectionID string, answers Answers) (Step, error) {
	o, err := s.GetDefinition(ctx, organizationID, objectionID)
	if err != nil {
		return Step{}, err
	}
	if err := ValidateAnswers(o, answers); err != nil {
		return Step{}, err
	}
	return NextQuestion(o, answers), nil
}

// SetClock replaces the clock. Intended for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }
