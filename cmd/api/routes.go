package main

import (
	"log/slog"
	"net/http"
	"time"

	"callos/internal/audit"
	"callos/internal/auth"
	"callos/internal/calls"
	"callos/internal/checklist"
	"callos/internal/config"
	"callos/internal/httpapi"
	"callos/internal/milestones"
	"callos/internal/objections"
	"callos/internal/observability"
	"callos/internal/orchestration"
	"callos/internal/outcomes"
	"callos/internal/prospects"
	"callos/internal/ratelimit"
	"callos/internal/rbac"
	"callos/internal/reporting"
	"callos/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// newHandlers wires the services over db. Engine metrics go to m.
func newHandlers(cfg config.Config, db *gorm.DB, am *auth.Manager, m *observability.Metrics) httpapi.Handlers {
	auditSvc := audit.NewService(audit.NewGormRepo(db))
	ps := prospects.NewService(db)
	cs := calls.NewService(db, ps)
	cls := checklist.NewService(db, cs, ps, cfg.Engine.QualificationThreshold)
	mss := milestones.NewService(db, cs, auditSvc, milestones.Policy{
		SkippedSatisfiesSequence: cfg.Engine.SkippedSatisfiesSequence,
	})
	outs := outcomes.NewService(db)

	obs := objections.NewService(db, cs, mss)
	obs.SetMetrics(m)

	engine := orchestration.NewEngine(db, cs, cls, mss, outs, auditSvc, orchestration.Policy{
		RequireMilestonesForCompletion: cfg.Engine.RequireMilestonesForCompletion,
	})
	engine.SetMetrics(m)

	return httpapi.Handlers{
		Auth:       am,
		Prospects:  ps,
		Calls:      cs,
		Checklist:  cls,
		Milestones: mss,
		Objections: obs,
		Outcomes:   outs,
		Engine:     engine,
		Reporting:  reporting.NewService(reporting.NewGormRepo(db)),
		Audit:      auditSvc,
		DevLogin:   !cfg.IsProduction(),
	}
}

// newRouter wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func newRouter(cfg config.Config, log *slog.Logger, h httpapi.Handlers, m *observability.Metrics, limiter ratelimit.Limiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	r.Use(m.Middleware())
	if len(cfg.CORS.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
			AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-Request-Id"},
			ExposeHeaders:    []string{"X-Request-Id", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After", "Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))

	var extra []gin.HandlerFunc
	if limiter != nil {
		extra = append(extra, ratelimit.Middleware(limiter, ratelimit.ByUserOrIP))
	}
	httpapi.Register(r.Group("/v1"), h, auth.RequireAccessToken(h.Auth, rbac.CanOverrideGates), extra...)
	return r
}
