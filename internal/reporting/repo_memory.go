package reporting

import (
	"context"
	"errors"
	"sync"
	"time"

	"callos/internal/calls"
	"callos/internal/milestones"
	"callos/internal/outcomes"
)

// MemoryRepo is a simple in-memory reporting repository for tests.
// It enforces organization isolation on reads.
type MemoryRepo struct {
	mu sync.Mutex

	Calls      []calls.CallSession
	Outcomes   []outcomes.CallOutcome
	Objections map[string][]ObjectionRow // key: organization id
	Milestones []milestones.Milestone
	Responses  []milestones.MilestoneResponse
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{Objections: map[string][]ObjectionRow{}} }

func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

func (r *MemoryRepo) ListCalls(ctx context.Context, organizationID string, from, to time.Time, agentID string) ([]calls.CallSession, error) {
	if organizationID == "" {
		return nil, errors.New("organization_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]calls.CallSession, 0)
	for _, c := range r.Calls {
		if c.OrganizationID != organizationID || !inRange(c.CreatedAt, from, to) {
			continue
		}
		if agentID != "" && c.AgentID != agentID {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *MemoryRepo) ListOutcomes(ctx context.Context, organizationID string, from, to time.Time) ([]outcomes.CallOutcome, error) {
	if organizationID == "" {
		return nil, errors.New("organization_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]outcomes.CallOutcome, 0)
	for _, o := range r.Outcomes {
		if o.OrganizationID == organizationID && inRange(o.CreatedAt, from, to) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *MemoryRepo) ListObjections(ctx context.Context, organizationID string, from, to time.Time) ([]ObjectionRow, error) {
	if organizationID == "" {
		return nil, errors.New("organization_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ObjectionRow(nil), r.Objections[organizationID]...), nil
}

func (r *MemoryRepo) ListMilestones(ctx context.Context, organizationID string) ([]milestones.Milestone, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]milestones.Milestone, 0)
	for _, m := range r.Milestones {
		if m.OrganizationID == organizationID {
			out = append(out, m)
		}
	}
	milestones.SortMilestones(out)
	return out, nil
}

func (r *MemoryRepo) ListMilestoneResponses(ctx context.Context, organizationID string, from, to time.Time) ([]milestones.MilestoneResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	org := map[string]bool{}
	for _, c := range r.Calls {
		if c.OrganizationID == organizationID {
			org[c.ID] = true
		}
	}
	out := make([]milestones.MilestoneResponse, 0)
	for _, resp := range r.Responses {
		if org[resp.CallSessionID] && inRange(resp.StartedAt, from, to) {
			out = append(out, resp)
		}
	}
	return out, nil
}
