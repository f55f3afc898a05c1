package reporting

import (
	"context"
	"fmt"
	"time"

	"callos/internal/calls"
	"callos/internal/milestones"
	"callos/internal/outcomes"
	"callos/pkg/utils"

	"gorm.io/gorm"
)

type GormRepo struct {
	db *gorm.DB
}

func NewGormRepo(db *gorm.DB) *GormRepo { return &GormRepo{db: db} }

func (r *GormRepo) ListCalls(ctx context.Context, organizationID string, from, to time.Time, agentID string) ([]calls.CallSession, error) {
	q := utils.Conn(ctx, r.db).
		Where("organization_id = ? AND created_at >= ? AND created_at < ?", organizationID, from, to)
	if agentID != "" {
		q = q.Where("agent_id = ?", agentID)
	}
	var out []calls.CallSession
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("reporting: calls: %w", err)
	}
	return out, nil
}

func (r *GormRepo) ListOutcomes(ctx context.Context, organizationID string, from, to time.Time) ([]outcomes.CallOutcome, error) {
	var out []outcomes.CallOutcome
	err := utils.Conn(ctx, r.db).
		Where("organization_id = ? AND created_at >= ? AND created_at < ?", organizationID, from, to).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("reporting: outcomes: %w", err)
	}
	return out, nil
}

func (r *GormRepo) ListObjections(ctx context.Context, organizationID string, from, to time.Time) ([]ObjectionRow, error) {
	var out []ObjectionRow
	err := utils.Conn(ctx, r.db).
		Table("objection_responses").
		Select("objections.type AS type, objection_responses.outcome AS outcome").
		Joins("JOIN objections ON objections.id = objection_responses.objection_id").
		Joins("JOIN call_sessions ON call_sessions.id = objection_responses.call_session_id").
		Where("call_sessions.organization_id = ?", organizationID).
		Where("objection_responses.created_at >= ? AND objection_responses.created_at < ?", from, to).
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("reporting: objections: %w", err)
	}
	return out, nil
}

func (r *GormRepo) ListMilestones(ctx context.Context, organizationID string) ([]milestones.Milestone, error) {
	var out []milestones.Milestone
	err := utils.Conn(ctx, r.db).
		Where("organization_id = ?", organizationID).
		Order("order_index ASC, number ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("reporting: milestones: %w", err)
	}
	return out, nil
}

func (r *GormRepo) ListMilestoneResponses(ctx context.Context, organizationID string, from, to time.Time) ([]milestones.MilestoneResponse, error) {
	var out []milestones.MilestoneResponse
	err := utils.Conn(ctx, r.db).
		Joins("JOIN call_sessions ON call_sessions.id = milestone_responses.call_session_id").
		Where("call_sessions.organization_id = ?", organizationID).
		Where("milestone_responses.started_at >= ? AND milestone_responses.started_at < ?", from, to).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("reporting: milestone responses: %w", err)
	}
	return out, nil
}
