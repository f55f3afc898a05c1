package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"callos/internal/audit"
	"callos/internal/auth"
	"callos/internal/calls"
	"callos/internal/checklist"
	"callos/internal/config"
	"callos/internal/milestones"
	"callos/internal/objections"
	"callos/internal/orchestration"
	"callos/internal/outcomes"
	"callos/internal/prospects"
	"callos/internal/rbac"
	"callos/internal/reporting"
	"callos/internal/store"
	"callos/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router *gin.Engine
	auth   *auth.Manager
}

func newTestServer(t *testing.T, devLogin bool) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := utils.OpenSQLite(":memory:", false)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(db))

	am, err := auth.NewManager(config.AuthConfig{
		JWTSecret:       "secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: time.Hour,
	})
	require.NoError(t, err)

	auditSvc := audit.NewService(audit.NewGormRepo(db))
	ps := prospects.NewService(db)
	cs := calls.NewService(db, ps)
	cls := checklist.NewService(db, cs, ps, config.DefaultQualificationThreshold)
	mss := milestones.NewService(db, cs, auditSvc, milestones.Policy{SkippedSatisfiesSequence: true})
	outs := outcomes.NewService(db)

	h := Handlers{
		Auth:       am,
		Prospects:  ps,
		Calls:      cs,
		Checklist:  cls,
		Milestones: mss,
		Objections: objections.NewService(db, cs, mss),
		Outcomes:   outs,
		Engine:     orchestration.NewEngine(db, cs, cls, mss, outs, auditSvc, orchestration.Policy{}),
		Reporting:  reporting.NewService(reporting.NewGormRepo(db)),
		Audit:      auditSvc,
		DevLogin:   devLogin,
	}

	r := gin.New()
	Register(r.Group("/v1"), h, auth.RequireAccessToken(am, rbac.CanOverrideGates))
	return testServer{router: r, auth: am}
}

func (s testServer) token(t *testing.T, userID, role string) string {
	t.Helper()
	pair, err := s.auth.IssuePair(time.Now(), auth.Identity{UserID: userID, OrganizationID: "org-1", Role: role})
	require.NoError(t, err)
	return pair.AccessToken
}

func (s testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, w)
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, w.Body.String())
	code, _ := e["code"].(string)
	return code
}

func (s testServer) createCall(t *testing.T, token string, clientCount int) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/v1/prospects", token, map[string]any{
		"name":        "Acme Coaching",
		"clientCount": clientCount,
		"mainPain":    "no predictable pipeline",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	prospectID := decode(t, w)["id"].(string)

	w = s.do(t, http.MethodPost, "/v1/calls", token, map[string]any{"prospectId": prospectID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode(t, w)["id"].(string)
}

func (s testServer) tickChecklist(t *testing.T, token, callID string) {
	t.Helper()
	for _, id := range []string{checklist.ItemProspectResearchDone, checklist.ItemAgendaShared, checklist.ItemMeetingLinkTested, checklist.ItemDecisionMakerConfirmed} {
		w := s.do(t, http.MethodPut, "/v1/calls/"+callID+"/checklist/"+id, token, map[string]any{"checked": true})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
}

func TestRoutes_RequireBearerToken(t *testing.T) {
	s := newTestServer(t, false)
	w := s.do(t, http.MethodGet, "/v1/calls", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogin_DisabledByDefault(t *testing.T) {
	s := newTestServer(t, false)
	w := s.do(t, http.MethodPost, "/v1/auth/login", "", map[string]any{"userId": "u", "organizationId": "org-1", "role": "agent"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLogin_IssuesUsableTokens(t *testing.T) {
	s := newTestServer(t, true)
	w := s.do(t, http.MethodPost, "/v1/auth/login", "", map[string]any{"userId": "u-1", "organizationId": "org-1", "role": "manager"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	tokens := decode(t, w)

	w = s.do(t, http.MethodGet, "/v1/me", tokens["accessToken"].(string), nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode(t, w)
	assert.Equal(t, "org-1", me["organizationId"])
	assert.Equal(t, true, me["canOverrideGates"])

	w = s.do(t, http.MethodPost, "/v1/auth/refresh", "", map[string]any{"refreshToken": tokens["refreshToken"], "role": "manager"})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestCreateProspect_ValidationEnvelope(t *testing.T) {
	s := newTestServer(t, false)
	w := s.do(t, http.MethodPost, "/v1/prospects", s.token(t, "agent-1", "agent"), map[string]any{"company": "no name"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	e := body["error"].(map[string]any)
	assert.Equal(t, "VALIDATION_ERROR", e["code"])
	details := e["details"].(map[string]any)
	assert.Contains(t, details["fields"], "Name is required")
}

func TestStartCall_ChecklistIncompleteEnvelope(t *testing.T) {
	s := newTestServer(t, false)
	tok := s.token(t, "agent-1", "agent")
	callID := s.createCall(t, tok, 800)

	w := s.do(t, http.MethodPost, "/v1/calls/"+callID+"/start", tok, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "CHECKLIST_INCOMPLETE", errorCode(t, w))
}

func TestStartCall_GateOverrideNeedsManager(t *testing.T) {
	s := newTestServer(t, false)
	agent := s.token(t, "agent-1", "agent")
	callID := s.createCall(t, agent, 100)
	s.tickChecklist(t, agent, callID)

	w := s.do(t, http.MethodPost, "/v1/calls/"+callID+"/start", agent, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "QUALIFICATION_GATE_FAILED", errorCode(t, w))

	w = s.do(t, http.MethodPost, "/v1/calls/"+callID+"/start", agent, map[string]any{"overrideReason": "strong referral"})
	require.Equal(t, http.StatusForbidden, w.Code)

	mgr := s.token(t, "mgr-1", "manager")
	w = s.do(t, http.MethodPost, "/v1/calls/"+callID+"/start", mgr, map[string]any{"overrideReason": "strong referral"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	call := decode(t, w)["call"].(map[string]any)
	assert.Equal(t, "in_progress", call["status"])
	assert.Equal(t, "strong referral", call["gateOverrideReason"])
}

func TestCallLifecycle(t *testing.T) {
	s := newTestServer(t, false)
	agent := s.token(t, "agent-1", "agent")
	mgr := s.token(t, "mgr-1", "manager")

	w := s.do(t, http.MethodPut, "/v1/admin/milestones", mgr, map[string]any{
		"milestones": []map[string]any{
			{"number": 1, "title": "Rapport", "requiredQuestions": []map[string]any{{"id": "q1", "text": "How did you hear about us?", "required": true}}},
			{"number": 2, "title": "Discovery"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	items := decode(t, w)["items"].([]any)
	first := items[0].(map[string]any)["id"].(string)
	second := items[1].(map[string]any)["id"].(string)

	callID := s.createCall(t, agent, 800)
	s.tickChecklist(t, agent, callID)
	w = s.do(t, http.MethodPost, "/v1/calls/"+callID+"/start", agent, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/v1/calls/"+callID+"/milestones/"+second+"/start", agent, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "SEQUENTIAL_VIOLATION", errorCode(t, w))

	w = s.do(t, http.MethodPost, "/v1/calls/"+callID+"/milestones/"+first+"/start", agent, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rid := decode(t, w)["id"].(string)

	w = s.do(t, http.MethodPut, "/v1/milestone-responses/"+rid+"/items/q1", agent, map[string]any{"value": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(t, http.MethodPost, "/v1/milestone-responses/"+rid+"/complete", agent, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "completed", decode(t, w)["status"])

	w = s.do(t, http.MethodGet, "/v1/calls/"+callID+"/milestones/next", agent, nil)
	require.Equal(t, http.StatusOK, w.Code)
	next := decode(t, w)["milestone"].(map[string]any)
	assert.Equal(t, second, next["id"])

	w = s.do(t, http.MethodPost, "/v1/calls/"+callID+"/complete", agent, map[string]any{"outcomeType": "Disqualified"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))

	w = s.do(t, http.MethodPost, "/v1/calls/"+callID+"/complete", agent, map[string]any{"outcomeType": "Coaching_Client"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "completed", decode(t, w)["call"].(map[string]any)["status"])

	w = s.do(t, http.MethodPost, "/v1/calls/"+callID+"/complete", agent, map[string]any{"outcomeType": "Coaching_Client"})
	require.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodGet, "/v1/calls/"+callID+"/outcome", agent, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Coaching_Client", decode(t, w)["outcomeType"])

	w = s.do(t, http.MethodGet, "/v1/admin/audit-events?callId="+callID, mgr, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode(t, w)["items"])
}

func TestObjectionResponse_DisallowedOutcome(t *testing.T) {
	s := newTestServer(t, false)
	agent := s.token(t, "agent-1", "agent")
	mgr := s.token(t, "mgr-1", "manager")

	w := s.do(t, http.MethodPut, "/v1/admin/objections", mgr, map[string]any{
		"objections": []map[string]any{{
			"type":                "Skepticism",
			"diagnosticQuestions": []map[string]any{{"id": "d1", "text": "What would you need to see?"}},
			"allowedOutcomes":     []string{"Resolved", "Disqualified"},
		}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	objectionID := decode(t, w)["items"].([]any)[0].(map[string]any)["id"].(string)

	callID := s.createCall(t, agent, 800)
	s.tickChecklist(t, agent, callID)
	w = s.do(t, http.MethodPost, "/v1/calls/"+callID+"/start", agent, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/v1/objections/"+objectionID+"/next-question", agent, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/v1/calls/"+callID+"/objections", agent, map[string]any{
		"objectionId": objectionID,
		"outcome":     "Deferred",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))

	w = s.do(t, http.MethodGet, "/v1/calls/"+callID+"/objections", agent, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["items"])
}

func TestAdminRoutes_ForbiddenForAgents(t *testing.T) {
	s := newTestServer(t, false)
	agent := s.token(t, "agent-1", "agent")
	w := s.do(t, http.MethodPut, "/v1/admin/milestones", agent, map[string]any{"milestones": []map[string]any{{"number": 1, "title": "x"}}})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/v1/analytics/dashboard", agent, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAnalyticsExport(t *testing.T) {
	s := newTestServer(t, false)
	mgr := s.token(t, "mgr-1", "manager")
	s.createCall(t, mgr, 800)

	w := s.do(t, http.MethodGet, "/v1/analytics/dashboard", mgr, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/v1/analytics/export.xlsx", mgr, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
	assert.NotZero(t, w.Body.Len())

	w = s.do(t, http.MethodGet, "/v1/analytics/dashboard?from=yesterday", mgr, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
