package reporting

import (
	"context"
	"errors"
	"sort"
	"time"

	"callos/internal/calls"
	"callos/internal/milestones"
	"callos/internal/objections"
	"callos/internal/outcomes"

	"golang.org/x/sync/errgroup"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting.
//
// Implementations must filter by organization.
type Repository interface {
	ListCalls(ctx context.Context, organizationID string, from, to time.Time, agentID string) ([]calls.CallSession, error)
	ListOutcomes(ctx context.Context, organizationID string, from, to time.Time) ([]outcomes.CallOutcome, error)
	ListObjections(ctx context.Context, organizationID string, from, to time.Time) ([]ObjectionRow, error)
	ListMilestones(ctx context.Context, organizationID string) ([]milestones.Milestone, error)
	ListMilestoneResponses(ctx context.Context, organizationID string, from, to time.Time) ([]milestones.MilestoneResponse, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) check(req Request) error {
	if req.OrganizationID == "" {
		return ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return ErrInvalidRequest
	}
	if s.repo == nil {
		return errors.New("reporting: repository not configured")
	}
	return nil
}

func (s *Service) CallsSummary(ctx context.Context, req Request) (CallsSummary, error) {
	if err := s.check(req); err != nil {
		return CallsSummary{}, err
	}
	rows, err := s.repo.ListCalls(ctx, req.OrganizationID, req.Range.From, req.Range.To, req.AgentID)
	if err != nil {
		return CallsSummary{}, err
	}

	out := CallsSummary{OrganizationID: req.OrganizationID, AgentID: req.AgentID}
	ended := 0
	for _, c := range rows {
		out.TotalCalls++
		if c.GateOverrideReason != nil {
			out.GateOverrides++
		}
		switch c.Status {
		case calls.StatusScheduled:
			out.ScheduledCalls++
		case calls.StatusInProgress:
			out.InProgressCalls++
		case calls.StatusCompleted:
			out.CompletedCalls++
		case calls.StatusCancelled:
			out.CancelledCalls++
		}
		if c.Status == calls.StatusCompleted && c.StartedAt != nil && c.EndedAt != nil {
			out.TotalDurationSeconds += int(c.EndedAt.Sub(*c.StartedAt) / time.Second)
			ended++
		}
	}
	if ended > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / ended
	}
	return out, nil
}

func (s *Service) OutcomeBreakdown(ctx context.Context, req Request) (OutcomeBreakdown, error) {
	if err := s.check(req); err != nil {
		return OutcomeBreakdown{}, err
	}
	rows, err := s.repo.ListOutcomes(ctx, req.OrganizationID, req.Range.From, req.Range.To)
	if err != nil {
		return OutcomeBreakdown{}, err
	}
	out := OutcomeBreakdown{Counts: map[string]int{}}
	for _, t := range outcomes.Types {
		out.Counts[string(t)] = 0
	}
	for _, o := range rows {
		out.Total++
		out.Counts[string(o.OutcomeType)]++
	}
	out.CoachingRate = ratio(out.Counts[string(outcomes.TypeCoachingClient)], out.Total)
	return out, nil
}

// ObjectionStats counts outcomes per objection type, in the fixed type order.
func (s *Service) ObjectionStats(ctx context.Context, req Request) ([]ObjectionTypeStats, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListObjections(ctx, req.OrganizationID, req.Range.From, req.Range.To)
	if err != nil {
		return nil, err
	}
	byType := map[string]*ObjectionTypeStats{}
	out := make([]ObjectionTypeStats, 0, len(objections.Types))
	for _, t := range objections.Types {
		out = append(out, ObjectionTypeStats{Type: string(t)})
	}
	for i := range out {
		byType[out[i].Type] = &out[i]
	}
	for _, r := range rows {
		st, ok := byType[r.Type]
		if !ok {
			continue
		}
		st.Total++
		switch objections.Outcome(r.Outcome) {
		case objections.OutcomeResolved:
			st.Resolved++
		case objections.OutcomeDeferred:
			st.Deferred++
		case objections.OutcomeDisqualified:
			st.Disqualified++
		}
	}
	for i := range out {
		out[i].ResolutionRate = ratio(out[i].Resolved, out[i].Total)
	}
	return out, nil
}

// MilestoneFunnel reports how far calls got through the organization's milestones.
func (s *Service) MilestoneFunnel(ctx context.Context, req Request) ([]FunnelStep, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	ms, err := s.repo.ListMilestones(ctx, req.OrganizationID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListMilestoneResponses(ctx, req.OrganizationID, req.Range.From, req.Range.To)
	if err != nil {
		return nil, err
	}
	milestones.SortMilestones(ms)
	idx := make(map[string]int, len(ms))
	out := make([]FunnelStep, len(ms))
	for i, m := range ms {
		idx[m.ID] = i
		out[i] = FunnelStep{MilestoneID: m.ID, Number: m.Number, Title: m.Title}
	}
	for _, r := range rows {
		i, ok := idx[r.MilestoneID]
		if !ok {
			continue
		}
		out[i].Started++
		switch r.Status {
		case milestones.ResponseCompleted:
			out[i].Completed++
		case milestones.ResponseSkipped:
			out[i].Skipped++
		}
	}
	return out, nil
}

// Dashboard runs every report concurrently.
func (s *Service) Dashboard(ctx context.Context, req Request) (Dashboard, error) {
	if err := s.check(req); err != nil {
		return Dashboard{}, err
	}
	out := Dashboard{Range: req.Range}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.CallsSummary(gctx, req)
		out.Calls = v
		return err
	})
	g.Go(func() error {
		v, err := s.OutcomeBreakdown(gctx, req)
		out.Outcomes = v
		return err
	})
	g.Go(func() error {
		v, err := s.ObjectionStats(gctx, req)
		out.Objections = v
		return err
	})
	g.Go(func() error {
		v, err := s.MilestoneFunnel(gctx, req)
		out.Funnel = v
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return out, nil
}

func ratio(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
