package reporting

import (
	"bytes"
	"context"
	"testing"
	"time"

	"callos/internal/calls"
	"callos/internal/milestones"
	"callos/internal/outcomes"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var (
	t0  = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rng = TimeRange{From: t0, To: t0.Add(24 * time.Hour)}
)

func tp(t time.Time) *time.Time { return &t }

func seeded() *MemoryRepo {
	repo := NewMemoryRepo()
	reason := "advisory"
	repo.Calls = []calls.CallSession{
		{ID: "c1", OrganizationID: "org-1", AgentID: "a1", Status: calls.StatusCompleted, CreatedAt: t0.Add(time.Hour),
			StartedAt: tp(t0.Add(time.Hour)), EndedAt: tp(t0.Add(time.Hour + 30*time.Minute))},
		{ID: "c2", OrganizationID: "org-1", AgentID: "a2", Status: calls.StatusCancelled, CreatedAt: t0.Add(2 * time.Hour)},
		{ID: "c3", OrganizationID: "org-1", AgentID: "a1", Status: calls.StatusInProgress, CreatedAt: t0.Add(3 * time.Hour),
			GateOverrideReason: &reason},
		{ID: "c4", OrganizationID: "org-2", AgentID: "a9", Status: calls.StatusCompleted, CreatedAt: t0.Add(time.Hour)},
		{ID: "c5", OrganizationID: "org-1", AgentID: "a1", Status: calls.StatusScheduled, CreatedAt: t0.Add(48 * time.Hour)},
	}
	repo.Outcomes = []outcomes.CallOutcome{
		{ID: "o1", OrganizationID: "org-1", CallSessionID: "c1", OutcomeType: outcomes.TypeCoachingClient, CreatedAt: t0.Add(2 * time.Hour)},
		{ID: "o2", OrganizationID: "org-2", CallSessionID: "c4", OutcomeType: outcomes.TypeDisqualified, CreatedAt: t0.Add(2 * time.Hour)},
	}
	repo.Objections["org-1"] = []ObjectionRow{
		{Type: "Price", Outcome: "Resolved"},
		{Type: "Price", Outcome: "Deferred"},
		{Type: "Skepticism", Outcome: "Disqualified"},
	}
	repo.Milestones = []milestones.Milestone{
		{ID: "m2", OrganizationID: "org-1", Number: 2, OrderIndex: 2, Title: "Discovery"},
		{ID: "m1", OrganizationID: "org-1", Number: 1, OrderIndex: 1, Title: "Rapport"},
	}
	repo.Responses = []milestones.MilestoneResponse{
		{CallSessionID: "c1", MilestoneID: "m1", Status: milestones.ResponseCompleted, StartedAt: t0.Add(time.Hour)},
		{CallSessionID: "c1", MilestoneID: "m2", Status: milestones.ResponseSkipped, StartedAt: t0.Add(time.Hour)},
		{CallSessionID: "c3", MilestoneID: "m1", Status: milestones.ResponseInProgress, StartedAt: t0.Add(3 * time.Hour)},
		{CallSessionID: "c4", MilestoneID: "m1", Status: milestones.ResponseCompleted, StartedAt: t0.Add(time.Hour)},
	}
	return repo
}

func TestCallsSummary_OrganizationAndRangeScoped(t *testing.T) {
	svc := NewService(seeded())
	got, err := svc.CallsSummary(context.Background(), Request{OrganizationID: "org-1", Range: rng})
	require.NoError(t, err)
	assert.Equal(t, 3, got.TotalCalls)
	assert.Equal(t, 1, got.CompletedCalls)
	assert.Equal(t, 1, got.CancelledCalls)
	assert.Equal(t, 1, got.InProgressCalls)
	assert.Equal(t, 1, got.GateOverrides)
	assert.Equal(t, 1800, got.AverageDurationSeconds)

	byAgent, err := svc.CallsSummary(context.Background(), Request{OrganizationID: "org-1", Range: rng, AgentID: "a2"})
	require.NoError(t, err)
	assert.Equal(t, 1, byAgent.TotalCalls)
}

func TestService_RejectsBadRequests(t *testing.T) {
	svc := NewService(seeded())
	_, err := svc.CallsSummary(context.Background(), Request{Range: rng})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = svc.Dashboard(context.Background(), Request{OrganizationID: "org-1", Range: TimeRange{From: rng.To, To: rng.From}})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestDashboard(t *testing.T) {
	svc := NewService(seeded())
	d, err := svc.Dashboard(context.Background(), Request{OrganizationID: "org-1", Range: rng})
	require.NoError(t, err)

	assert.Equal(t, 1, d.Outcomes.Total)
	assert.Equal(t, 1, d.Outcomes.Counts[string(outcomes.TypeCoachingClient)])
	assert.Equal(t, 0, d.Outcomes.Counts[string(outcomes.TypeDisqualified)])
	assert.InDelta(t, 1.0, d.Outcomes.CoachingRate, 1e-9)

	require.Len(t, d.Objections, 6)
	price := d.Objections[0]
	assert.Equal(t, "Price", price.Type)
	assert.Equal(t, 2, price.Total)
	assert.InDelta(t, 0.5, price.ResolutionRate, 1e-9)

	require.Len(t, d.Funnel, 2)
	assert.Equal(t, "m1", d.Funnel[0].MilestoneID)
	assert.Equal(t, 2, d.Funnel[0].Started)
	assert.Equal(t, 1, d.Funnel[0].Completed)
	assert.Equal(t, 1, d.Funnel[1].Skipped)
}

func TestExportXLSX(t *testing.T) {
	svc := NewService(seeded())
	name, data, err := svc.ExportXLSX(context.Background(), Request{OrganizationID: "org-1", Range: rng})
	require.NoError(t, err)
	assert.Equal(t, "callos_20260101_20260102.xlsx", name)

	xl, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = xl.Close() }()
	assert.Equal(t, []string{sheetSummary, sheetOutcomes, sheetObjections, sheetFunnel}, xl.GetSheetList())

	v, err := xl.GetCellValue(sheetSummary, "B2")
	require.NoError(t, err)
	assert.Equal(t, "3", v)
	title, err := xl.GetCellValue(sheetFunnel, "B2")
	require.NoError(t, err)
	assert.Equal(t, "Rapport", title)
}
