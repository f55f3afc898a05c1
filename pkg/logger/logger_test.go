package logger

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestFromFallsBackToDefault(t *testing.T) {
	if From(context.Background()) == nil {
		t.Fatalf("expected default logger")
	}
}

func TestWithRoundTrip(t *testing.T) {
	l := New("local")
	ctx := With(context.Background(), l)
	if From(ctx) != l {
		t.Fatalf("expected stored logger")
	}
}

func TestNewWithOptions_FileSinkClosesOnFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "callos.log")
	l := NewWithOptions("production", Options{File: path})
	l.Info("hello")
	if err := ShutdownFlush(context.Background(), 0); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

func TestMiddleware_SetsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(New("local")))
	r.GET("/x", func(c *gin.Context) {
		if From(c.Request.Context()) == nil {
			t.Fatalf("expected request logger in context")
		}
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-Id", "rid-1")
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-Id"); got != "rid-1" {
		t.Fatalf("expected propagated request id, got %q", got)
	}
}

func TestSetGin_ReplacesRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	base := New("local")
	tagged := base.With("organization_id", "org-1")

	r := gin.New()
	r.Use(Middleware(base))
	r.GET("/x", func(c *gin.Context) {
		SetGin(c, tagged)
		c.Next()
	}, func(c *gin.Context) {
		if FromGin(c) != tagged || From(c.Request.Context()) != tagged {
			t.Fatalf("expected tagged logger on both contexts")
		}
		c.Status(http.StatusOK)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestSummaryLevel(t *testing.T) {
	cases := []struct {
		status int
		errs   bool
		want   slog.Level
	}{
		{200, false, slog.LevelInfo},
		{404, false, slog.LevelWarn},
		{200, true, slog.LevelError},
		{503, false, slog.LevelError},
	}
	for _, tc := range cases {
		if got := summaryLevel(tc.status, tc.errs); got != tc.want {
			t.Fatalf("status %d errs %v: got %v want %v", tc.status, tc.errs, got, tc.want)
		}
	}
}
