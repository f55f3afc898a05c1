package prospects

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"callos/internal/apperr"
	"callos/pkg/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

type CreateInput struct {
	Name        string
	Company     string
	Email       string
	Phone       string
	ClientCount *int
	MainPain    *string
	Notes       string
}

// UpdateInput is a partial update; nil fields are left unchanged.
type UpdateInput struct {
	Name        *string
	Company     *string
	Email       *string
	Phone       *string
	ClientCount *int
	MainPain    *string
	Notes       *string
}

type ListFilter struct {
	Search string
	Limit  int
	Offset int
}

func (s *Service) Create(ctx context.Context, organizationID string, in CreateInput) (Prospect, error) {
	if organizationID == "" {
		return Prospect{}, apperr.Validation("organization is required")
	}
	if trimmed(in.Name) == "" {
		return Prospect{}, apperr.Validation("name is required")
	}
	if in.ClientCount != nil && *in.ClientCount < 0 {
		return Prospect{}, apperr.Validation("clientCount must be >= 0")
	}
	now := s.now().UTC()
	p := Prospect{
		ID:             uuid.NewString(),
		OrganizationID: organizationID,
		Name:           trimmed(in.Name),
		Company:        trimmed(in.Company),
		Email:          trimmed(in.Email),
		Phone:          trimmed(in.Phone),
		ClientCount:    in.ClientCount,
		MainPain:       in.MainPain,
		Notes:          in.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := utils.Conn(ctx, s.db).Create(&p).Error; err != nil {
		return Prospect{}, fmt.Errorf("prospects: create: %w", err)
	}
	return p, nil
}

// Get returns the prospect only if it belongs to organizationID.
func (s *Service) Get(ctx context.Context, organizationID, id string) (Prospect, error) {
	var p Prospect
	err := utils.Conn(ctx, s.db).
		Where("organization_id = ? AND id = ?", organizationID, id).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Prospect{}, apperr.NotFound("prospect")
	}
	if err != nil {
		return Prospect{}, fmt.Errorf("prospects: get: %w", err)
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, organizationID string, f ListFilter) ([]Prospect, error) {
	q := utils.Conn(ctx, s.db).Where("organization_id = ?", organizationID)
	if term := trimmed(f.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(company) LIKE ?", like, like)
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []Prospect
	if err := q.Order("created_at DESC").Limit(limit).Offset(f.Offset).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("prospects: list: %w", err)
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, organizationID, id string, in UpdateInput) (Prospect, error) {
	p, err := s.Get(ctx, organizationID, id)
	if err != nil {
		return Prospect{}, err
	}
	if in.Name != nil {
		if trimmed(*in.Name) == "" {
			return Prospect{}, apperr.Validation("name cannot be blank")
		}
		p.Name = trimmed(*in.Name)
	}
	if in.Company != nil {
		p.Company = trimmed(*in.Company)
	}
	if in.Email != nil {
		p.Email = trimmed(*in.Email)
	}
	if in.Phone != nil {
		p.Phone = trimmed(*in.Phone)
	}
	if in.ClientCount != nil {
		if *in.ClientCount < 0 {
			return Prospect{}, apperr.Validation("clientCount must be >= 0")
		}
		p.ClientCount = in.ClientCount
	}
	if in.MainPain != nil {
		p.MainPain = in.MainPain
	}
	if in.Notes != nil {
		p.Notes = *in.Notes
	}
	p.UpdatedAt = s.now().UTC()
	if err := utils.Conn(ctx, s.db).Save(&p).Error; err != nil {
		return Prospect{}, fmt.Errorf("prospects: update: %w", err)
	}
	return p, nil
}

func trimmed(s string) string { return strings.TrimSpace(s) }
