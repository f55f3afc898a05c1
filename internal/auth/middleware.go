package auth

import (
	"net/http"
	"strings"
	"time"

	"callos/pkg/logger"

	"github.com/gin-gonic/gin"
)

const bearerPrefix = "Bearer "

// RequireAccessToken verifies the bearer token and stores the caller's Principal on the
// request context. canOverride decides gate-override authority from the verified role;
// role checks per route belong to internal/rbac.
func RequireAccessToken(m *Manager, canOverride func(role string) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			unauthorized(c, "missing bearer token")
			return
		}
		id, err := m.VerifyAccess(tok, time.Now())
		if err != nil {
			logger.FromGin(c).Debug("access token rejected", "err", err)
			unauthorized(c, "invalid token")
			return
		}

		p := Principal{
			UserID:         id.UserID,
			OrganizationID: id.OrganizationID,
			Role:           id.Role,
			IPAddress:      c.ClientIP(),
		}
		if canOverride != nil {
			p.CanOverrideGates = canOverride(p.Role)
		}

		// Tag the request logger with the tenant so the request summary carries it.
		logger.SetGin(c, logger.FromGin(c).With("user_id", p.UserID, "organization_id", p.OrganizationID))
		c.Request = c.Request.WithContext(WithPrincipal(c.Request.Context(), p))
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	raw := strings.TrimSpace(header)
	if !strings.HasPrefix(raw, bearerPrefix) {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(raw, bearerPrefix))
	return tok, tok != ""
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{"code": "UNAUTHORIZED", "message": msg}})
}
