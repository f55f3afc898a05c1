package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"callos/internal/auth"
	"callos/internal/config"
	"callos/internal/observability"
	"callos/internal/ratelimit"
	"callos/internal/store"
	"callos/pkg/logger"
	"callos/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCmd(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "callos dev")
}

func setSQLiteEnv(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "callos.db")
	t.Setenv("APP_ENV", "local")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_SQLITE_PATH", path)
	t.Setenv("JWT_SECRET", "secret")
	return path
}

func repoPlaybook(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), "..", "..", "configs", "playbook.yaml")
}

func TestMigrateAndSeedCmds(t *testing.T) {
	setSQLiteEnv(t)

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"migrate"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Migrated")

	cmd = newRootCmd()
	buf.Reset()
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"seed", "--file", repoPlaybook(t), "--org", "org-test"})
	require.NoError(t, cmd.Execute())
	out := buf.String()
	assert.Contains(t, out, "Seeded 5 milestones and 6 objections for org-test")
}

func TestSeedCmd_RequiresPath(t *testing.T) {
	setSQLiteEnv(t)
	t.Setenv("PLAYBOOK_PATH", "")
	cmd := newRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetArgs([]string{"seed"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "playbook path"))
}

func newTestRouter(t *testing.T, limiter ratelimit.Limiter) (*gin.Engine, *auth.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		App:    config.AppConfig{Env: "local", Port: 8080},
		Auth:   config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour},
		Engine: config.EngineConfig{QualificationThreshold: config.DefaultQualificationThreshold, SkippedSatisfiesSequence: true},
		CORS:   config.CORSConfig{AllowedOrigins: []string{"http://localhost:5173"}},
	}
	db, err := utils.OpenSQLite(":memory:", false)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(db))

	am, err := auth.NewManager(cfg.Auth)
	require.NoError(t, err)
	m := observability.New()
	h := newHandlers(cfg, db, am, m)
	return newRouter(cfg, logger.New("test"), h, m, limiter), am
}

func TestRouter_PublicEndpoints(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestRouter_CORSPreflight(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/v1/calls", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_RateLimitsAuthenticatedCalls(t *testing.T) {
	r, am := newTestRouter(t, ratelimit.NewMemoryStore(2, time.Minute))
	pair, err := am.IssuePair(time.Now(), auth.Identity{UserID: "agent-1", OrganizationID: "org-1", Role: "agent"})
	require.NoError(t, err)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
