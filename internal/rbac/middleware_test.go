package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"callos/internal/auth"

	"github.com/gin-gonic/gin"
)

func serveAs(t *testing.T, org, role string, allowed ...string) int {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), "u", org, role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}, RequireOrganization(), RequireAnyRole(allowed...), func(c *gin.Context) {
		c.Status(200)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRequireAnyRole_SuperAdminBypasses(t *testing.T) {
	if code := serveAs(t, "o", RoleSuperAdmin, RoleOwner); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_AgentDeniedOnManagerRoute(t *testing.T) {
	if code := serveAs(t, "o", RoleAgent, Managers...); code != 403 {
		t.Fatalf("expected 403, got %d", code)
	}
	if code := serveAs(t, "o", RoleManager, Managers...); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_UnknownRoleDenied(t *testing.T) {
	if code := serveAs(t, "o", "intern", "intern"); code != 403 {
		t.Fatalf("expected 403, got %d", code)
	}
}

func TestRequireAnyRole_OrganizationRequired(t *testing.T) {
	if code := serveAs(t, "", RoleOwner, RoleOwner); code != 401 {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestCanOverrideGates(t *testing.T) {
	for _, r := range []string{RoleOwner, RoleAdmin, RoleManager, RoleSuperAdmin} {
		if !CanOverrideGates(r) {
			t.Fatalf("expected %s to override", r)
		}
	}
	for _, r := range []string{RoleAgent, RoleAnalyst, ""} {
		if CanOverrideGates(r) {
			t.Fatalf("expected %s not to override", r)
		}
	}
}

func TestPrincipalFromContext(t *testing.T) {
	ctx := auth.WithIdentity(context.Background(), "u1", "o1", RoleManager)
	ctx = auth.WithClientIP(ctx, "10.0.0.1")
	p, err := PrincipalFromContext(ctx)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !p.CanOverrideGates || p.IPAddress != "10.0.0.1" || p.OrganizationID != "o1" {
		t.Fatalf("unexpected principal: %+v", p)
	}
	if _, err := PrincipalFromContext(context.Background()); err == nil {
		t.Fatalf("expected error without identity")
	}
}

func TestPrincipalFromContext_PrefersStoredPrincipal(t *testing.T) {
	stored := auth.Principal{UserID: "u1", OrganizationID: "o1", Role: RoleAgent, IPAddress: "10.0.0.2"}
	p, err := PrincipalFromContext(auth.WithPrincipal(context.Background(), stored))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if p != stored {
		t.Fatalf("expected stored principal, got %+v", p)
	}
}
