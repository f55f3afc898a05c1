package httpapi

import (
	"callos/internal/rbac"

	"github.com/gin-gonic/gin"
)

// Register wires the /v1 API onto g. authMW guards everything except token
// issuance; extra middleware (rate limiting) runs after authentication so it
// can key on the caller.
func Register(g *gin.RouterGroup, h Handlers, authMW gin.HandlerFunc, extra ...gin.HandlerFunc) {
	authGroup := g.Group("/auth")
	{
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh", h.Refresh)
	}

	api := g.Group("")
	api.Use(authMW)
	api.Use(rbac.RequireOrganization())
	api.Use(extra...)

	api.GET("/me", h.Me)

	prospects := api.Group("/prospects")
	{
		prospects.POST("", h.CreateProspect)
		prospects.GET("", h.ListProspects)
		prospects.GET("/:id", h.GetProspect)
		prospects.PATCH("/:id", h.UpdateProspect)
	}

	calls := api.Group("/calls")
	{
		calls.POST("", h.CreateCall)
		calls.GET("", h.ListCalls)
		calls.GET("/:id", h.GetCall)
		calls.PATCH("/:id", h.UpdateCall)

		calls.GET("/:id/checklist", h.GetChecklist)
		calls.PUT("/:id/checklist/:item", h.SetChecklistItem)
		calls.POST("/:id/checklist/validate", h.ValidateChecklist)

		calls.POST("/:id/start", h.StartCall)
		calls.POST("/:id/cancel", h.CancelCall)
		calls.GET("/:id/can-complete", h.CanCompleteCall)
		calls.POST("/:id/complete", h.CompleteCall)
		calls.GET("/:id/outcome", h.GetOutcome)

		calls.GET("/:id/milestones", h.MilestoneProgress)
		calls.GET("/:id/milestones/next", h.NextMilestone)
		calls.GET("/:id/milestones/:mid/can-start", h.CanStartMilestone)
		calls.POST("/:id/milestones/:mid/start", h.StartMilestone)
		calls.POST("/:id/milestones/:mid/skip", h.SkipMilestoneForCall)

		calls.GET("/:id/objections", h.ListCallObjections)
		calls.POST("/:id/objections", h.CreateObjectionResponse)
	}

	responses := api.Group("/milestone-responses")
	{
		responses.PUT("/:rid/items/:item", h.CheckMilestoneItem)
		responses.PATCH("/:rid", h.UpdateMilestoneResponse)
		responses.POST("/:rid/complete", h.CompleteMilestone)
		responses.POST("/:rid/skip", h.SkipMilestone)
	}

	api.GET("/objections", h.ListObjections)
	api.POST("/objections/:oid/next-question", h.NextObjectionQuestion)
	api.PATCH("/objection-responses/:id", h.UpdateObjectionResponse)

	// Playbook edits and audit reads are manager-only.
	admin := api.Group("/admin")
	admin.Use(rbac.RequireAnyRole(rbac.Managers...))
	{
		admin.PUT("/milestones", h.UpsertMilestones)
		admin.PUT("/objections", h.UpsertObjections)
		admin.GET("/audit-events", h.ListAuditEvents)
	}

	analytics := api.Group("/analytics")
	analytics.Use(rbac.RequireAnyRole(rbac.Managers...))
	{
		analytics.GET("/dashboard", h.Dashboard)
		analytics.GET("/export.xlsx", h.ExportDashboard)
	}
}
