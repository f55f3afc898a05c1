package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"callos/internal/apperr"
	"callos/internal/audit"
	"callos/internal/auth"
	"callos/internal/calls"
	"callos/internal/checklist"
	"callos/internal/milestones"
	"callos/internal/objections"
	"callos/internal/orchestration"
	"callos/internal/outcomes"
	"callos/internal/prospects"
	"callos/internal/rbac"
	"callos/internal/reporting"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth       *auth.Manager
	Prospects  *prospects.Service
	Calls      *calls.Service
	Checklist  *checklist.Service
	Milestones *milestones.Service
	Objections *objections.Service
	Outcomes   *outcomes.Service
	Engine     *orchestration.Engine
	Reporting  *reporting.Service
	Audit      *audit.Service

	// DevLogin enables POST /v1/auth/login, which issues tokens without
	// checking credentials. Never enable it in production.
	DevLogin bool
	Now      func() time.Time
}

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func principal(c *gin.Context) (auth.Principal, bool) {
	p, err := rbac.PrincipalFromContext(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return auth.Principal{}, false
	}
	return p, true
}

func queryInt(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		RespondError(c, apperr.Validation("%s must be a non-negative integer", key))
		return 0, false
	}
	return n, true
}

func queryTime(c *gin.Context, key string) (*time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		RespondError(c, apperr.Validation("%s must be an RFC3339 timestamp", key))
		return nil, false
	}
	return &t, true
}

// --- Auth ---

// Login issues a JWT token pair.
//
// NOTE: This is a development-only endpoint. Real deployments get tokens from the identity provider.
func (h Handlers) Login(c *gin.Context) {
	if !h.DevLogin {
		RespondError(c, apperr.NotFound("route"))
		return
	}
	var req loginRequest
	if !bind(c, &req) {
		return
	}
	pair, err := h.Auth.IssuePair(h.now(), auth.Identity{UserID: req.UserID, OrganizationID: req.OrganizationID, Role: req.Role})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accessToken": pair.AccessToken, "refreshToken": pair.RefreshToken})
}

func (h Handlers) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bind(c, &req) {
		return
	}
	pair, err := h.Auth.Refresh(req.RefreshToken, req.Role, h.now())
	if err != nil {
		RespondError(c, apperr.New(http.StatusUnauthorized, apperr.CodeUnauthorized, "invalid refresh token"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"accessToken": pair.AccessToken, "refreshToken": pair.RefreshToken})
}

func (h Handlers) Me(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"userId":           p.UserID,
		"organizationId":   p.OrganizationID,
		"role":             p.Role,
		"canOverrideGates": p.CanOverrideGates,
	})
}

// --- Prospects ---

func (h Handlers) CreateProspect(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req createProspectRequest
	if !bind(c, &req) {
		return
	}
	out, err := h.Prospects.Create(c.Request.Context(), p.OrganizationID, prospects.CreateInput{
		Name:        req.Name,
		Company:     req.Company,
		Email:       req.Email,
		Phone:       req.Phone,
		ClientCount: req.ClientCount,
		MainPain:    req.MainPain,
		Notes:       req.Notes,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h Handlers) ListProspects(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset")
	if !ok {
		return
	}
	out, err := h.Prospects.List(c.Request.Context(), p.OrganizationID, prospects.ListFilter{
		Search: c.Query("q"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}

func (h Handlers) GetProspect(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	out, err := h.Prospects.Get(c.Request.Context(), p.OrganizationID, c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) UpdateProspect(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req updateProspectRequest
	if !bind(c, &req) {
		return
	}
	out, err := h.Prospects.Update(c.Request.Context(), p.OrganizationID, c.Param("id"), prospects.UpdateInput{
		Name:        req.Name,
		Company:     req.Company,
		Email:       req.Email,
		Phone:       req.Phone,
		ClientCount: req.ClientCount,
		MainPain:    req.MainPain,
		Notes:       req.Notes,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
