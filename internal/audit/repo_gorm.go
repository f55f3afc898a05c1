package audit

import (
	"context"
	"fmt"

	"callos/pkg/utils"

	"gorm.io/gorm"
)

// GormRepo stores events in audit_events. It joins any transaction carried on ctx,
// so an override is recorded atomically with the change it authorizes.
type GormRepo struct {
	db *gorm.DB
}

func NewGormRepo(db *gorm.DB) *GormRepo { return &GormRepo{db: db} }

func (r *GormRepo) Append(ctx context.Context, e Event) error {
	if err := utils.Conn(ctx, r.db).Create(&e).Error; err != nil {
		return fmt.Errorf("audit: append: %w", err)
	}
	return nil
}

func (r *GormRepo) List(ctx context.Context, organizationID string, f Filter) ([]Event, error) {
	q := utils.Conn(ctx, r.db).Where("organization_id = ?", organizationID)
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.CallID != "" {
		q = q.Where("call_id = ?", f.CallID)
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []Event
	if err := q.Order("created_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	return out, nil
}
