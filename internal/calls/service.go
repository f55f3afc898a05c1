package calls

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"callos/internal/apperr"
	"callos/internal/auth"
	"callos/internal/prospects"
	"callos/pkg/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DefaultLanguage = "en"

type Service struct {
	db        *gorm.DB
	prospects *prospects.Service
	now       func() time.Time
}

func NewService(db *gorm.DB, prospectSvc *prospects.Service) *Service {
	return &Service{db: db, prospects: prospectSvc, now: time.Now}
}

type CreateInput struct {
	ProspectID  string
	AgentID     string
	Mode        Mode
	Language    string
	ScheduledAt *time.Time
	ZoomLink    *string
	Notes       string
}

// UpdateInput is a partial update. Mode and ProspectID may only change while scheduled.
type UpdateInput struct {
	ProspectID  *string
	Mode        *Mode
	Language    *string
	ScheduledAt *time.Time
	ZoomLink    *string
	Notes       *string
}

type ListFilter struct {
	Status  Status
	AgentID string
	From    *time.Time
	To      *time.Time
	Limit   int
	Offset  int
}

func (s *Service) Create(ctx context.Context, p auth.Principal, in CreateInput) (CallSession, error) {
	if !p.Valid() {
		return CallSession{}, apperr.Forbidden("identity required")
	}
	if in.ProspectID == "" {
		return CallSession{}, apperr.Validation("prospectId is required")
	}
	if _, err := s.prospects.Get(ctx, p.OrganizationID, in.ProspectID); err != nil {
		return CallSession{}, err
	}
	if in.Mode == "" {
		in.Mode = ModeStrict
	}
	if !in.Mode.Valid() {
		return CallSession{}, apperr.Validation("mode must be strict or flexible")
	}
	if strings.TrimSpace(in.Language) == "" {
		in.Language = DefaultLanguage
	}
	if in.AgentID == "" {
		in.AgentID = p.UserID
	}

	now := s.now().UTC()
	c := CallSession{
		ID:             uuid.NewString(),
		OrganizationID: p.OrganizationID,
		ProspectID:     in.ProspectID,
		AgentID:        in.AgentID,
		Status:         StatusScheduled,
		Mode:           in.Mode,
		Language:       strings.TrimSpace(in.Language),
		ScheduledAt:    in.ScheduledAt,
		ZoomLink:       in.ZoomLink,
		Notes:          in.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := utils.Conn(ctx, s.db).Create(&c).Error; err != nil {
		return CallSession{}, fmt.Errorf("calls: create: %w", err)
	}
	return c, nil
}

// Get returns the call only if it belongs to organizationID.
func (s *Service) Get(ctx context.Context, organizationID, id string) (CallSession, error) {
	return s.get(utils.Conn(ctx, s.db), organizationID, id)
}

// GetForUpdate is Get with a row lock; call it inside utils.WithTx.
func (s *Service) GetForUpdate(ctx context.Context, organizationID, id string) (CallSession, error) {
	return s.get(utils.Conn(ctx, s.db).Clauses(clause.Locking{Strength: "UPDATE"}), organizationID, id)
}

func (s *Service) get(q *gorm.DB, organizationID, id string) (CallSession, error) {
	var c CallSession
	err := q.Where("organization_id = ? AND id = ?", organizationID, id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return CallSession{}, apperr.NotFound("call session")
	}
	if err != nil {
		return CallSession{}, fmt.Errorf("calls: get: %w", err)
	}
	return c, nil
}

// CountInProgress reports how many of the organization's calls are live.
func (s *Service) CountInProgress(ctx context.Context, organizationID string) (int64, error) {
	var n int64
	err := utils.Conn(ctx, s.db).Model(&CallSession{}).
		Where("organization_id = ? AND status = ?", organizationID, StatusInProgress).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("calls: count in progress: %w", err)
	}
	return n, nil
}

func (s *Service) List(ctx context.Context, organizationID string, f ListFilter) ([]CallSession, error) {
	q := utils.Conn(ctx, s.db).Where("organization_id = ?", organizationID)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.AgentID != "" {
		q = q.Where("agent_id = ?", f.AgentID)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("created_at < ?", f.To.UTC())
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []CallSession
	if err := q.Order("created_at DESC").Limit(limit).Offset(f.Offset).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("calls: list: %w", err)
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, p auth.Principal, id string, in UpdateInput) (CallSession, error) {
	var out CallSession
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context) error {
		c, err := s.GetForUpdate(ctx, p.OrganizationID, id)
		if err != nil {
			return err
		}
		if IsTerminal(c.Status) {
			return apperr.Validation("call session is %s and can no longer be edited", c.Status)
		}
		if in.Mode != nil || in.ProspectID != nil {
			if c.Status != StatusScheduled {
				return apperr.Validation("mode and prospect can only change while the call is scheduled")
			}
		}
		if in.Mode != nil {
			if !in.Mode.Valid() {
				return apperr.Validation("mode must be strict or flexible")
			}
			c.Mode = *in.Mode
		}
		if in.ProspectID != nil {
			if _, err := s.prospects.Get(ctx, p.OrganizationID, *in.ProspectID); err != nil {
				return err
			}
			c.ProspectID = *in.ProspectID
		}
		if in.Language != nil && strings.TrimSpace(*in.Language) != "" {
			c.Language = strings.TrimSpace(*in.Language)
		}
		if in.ScheduledAt != nil {
			c.ScheduledAt = in.ScheduledAt
		}
		if in.ZoomLink != nil {
			c.ZoomLink = in.ZoomLink
		}
		if in.Notes != nil {
			c.Notes = *in.Notes
		}
		c.UpdatedAt = s.now().UTC()
		if err := s.Save(ctx, &c); err != nil {
			return err
		}
		out = c
		return nil
	})
	return out, err
}

// Save persists c as-is. Status changes must have gone through ApplyTransition.
func (s *Service) Save(ctx context.Context, c *CallSession) error {
	if err := utils.Conn(ctx, s.db).Save(c).Error; err != nil {
		return fmt.Errorf("calls: save: %w", err)
	}
	return nil
}

// Transition locks the call, applies the transition and saves it.
func (s *Service) Transition(ctx context.Context, organizationID, id string, to Status, opts ApplyOptions) (CallSession, Transition, error) {
	var (
		out CallSession
		tr  Transition
	)
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context) error {
		c, err := s.GetForUpdate(ctx, organizationID, id)
		if err != nil {
			return err
		}
		tr, err = ApplyTransition(&c, to, s.now(), opts)
		if err != nil {
			return err
		}
		if err := s.Save(ctx, &c); err != nil {
			return err
		}
		out = c
		return nil
	})
	return out, tr, err
}

// Now exposes the service clock so callers stamping related rows agree with it.
func (s *Service) Now() time.Time { return s.now() }

// SetClock replaces the clock. Intended for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }
