package checklist

import (
	"context"
	"testing"

	"callos/internal/apperr"
	"callos/internal/auth"
	"callos/internal/calls"
	"callos/internal/prospects"
	"callos/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc     *Service
	calls   *calls.Service
	call    calls.CallSession
	agent   auth.Principal
	manager auth.Principal
}

func newFixture(t *testing.T, clientCount int) fixture {
	t.Helper()
	db, err := utils.OpenSQLite(":memory:", false)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&prospects.Prospect{}, &calls.CallSession{}, &Entry{}))

	ctx := context.Background()
	ps := prospects.NewService(db)
	pr, err := ps.Create(ctx, "org-1", prospects.CreateInput{Name: "Lead", ClientCount: &clientCount, MainPain: strp("churn")})
	require.NoError(t, err)

	cs := calls.NewService(db, ps)
	agent := auth.Principal{UserID: "agent-1", OrganizationID: "org-1", Role: "agent"}
	c, err := cs.Create(ctx, agent, calls.CreateInput{ProspectID: pr.ID})
	require.NoError(t, err)

	return fixture{
		svc:     NewService(db, cs, ps, 500),
		calls:   cs,
		call:    c,
		agent:   agent,
		manager: auth.Principal{UserID: "mgr-1", OrganizationID: "org-1", Role: "manager", CanOverrideGates: true},
	}
}

func (f fixture) checkAllRequired(t *testing.T) {
	t.Helper()
	for _, id := range []string{ItemProspectResearchDone, ItemAgendaShared, ItemMeetingLinkTested, ItemDecisionMakerConfirmed} {
		_, err := f.svc.SetItem(context.Background(), f.agent, f.call.ID, id, true)
		require.NoError(t, err)
	}
}

func TestSetItem_UpsertsLastWriteWins(t *testing.T) {
	f := newFixture(t, 800)
	ctx := context.Background()

	_, err := f.svc.SetItem(ctx, f.agent, f.call.ID, ItemAgendaShared, true)
	require.NoError(t, err)
	cl, err := f.svc.SetItem(ctx, f.agent, f.call.ID, ItemAgendaShared, false)
	require.NoError(t, err)
	assert.Contains(t, cl.MissingRequired, ItemAgendaShared)

	f.checkAllRequired(t)
	cl, err = f.svc.GetChecklist(ctx, "org-1", f.call.ID)
	require.NoError(t, err)
	assert.True(t, cl.IsComplete)
	assert.True(t, cl.GatesPassed)
}

func TestSetItem_RejectsAutoAndUnknownItems(t *testing.T) {
	f := newFixture(t, 800)
	ctx := context.Background()

	_, err := f.svc.SetItem(ctx, f.agent, f.call.ID, ItemClientCountConfirmed, true)
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))
	_, err = f.svc.SetItem(ctx, f.agent, f.call.ID, "made_up", true)
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))
}

func TestSetItem_OnlyWhileScheduled(t *testing.T) {
	f := newFixture(t, 800)
	ctx := context.Background()
	_, _, err := f.calls.Transition(ctx, "org-1", f.call.ID, calls.StatusCancelled, calls.ApplyOptions{})
	require.NoError(t, err)

	_, err = f.svc.SetItem(ctx, f.agent, f.call.ID, ItemAgendaShared, true)
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))
}

func TestValidateChecklist_OverrideNeedsAuthority(t *testing.T) {
	f := newFixture(t, 300)
	f.checkAllRequired(t)
	ctx := context.Background()

	v, err := f.svc.ValidateChecklist(ctx, f.agent, f.call.ID, "")
	require.NoError(t, err)
	assert.False(t, v.IsValid)

	_, err = f.svc.ValidateChecklist(ctx, f.agent, f.call.ID, "advisory call")
	assert.True(t, apperr.HasCode(err, apperr.CodeForbidden))

	v, err = f.svc.ValidateChecklist(ctx, f.manager, f.call.ID, "advisory call")
	require.NoError(t, err)
	assert.True(t, v.IsValid)
	assert.NotEmpty(t, v.Warnings)
}

func TestGetChecklist_TenantScoped(t *testing.T) {
	f := newFixture(t, 800)
	_, err := f.svc.GetChecklist(context.Background(), "org-2", f.call.ID)
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
}
