package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medimaging/backend/internal/domain/clinic"
	"github.com/medimaging/backend/internal/domain/shared"
	"github.com/medimaging/backend/internal/infrastructure/auth"
	"github.com/medimaging/backend/internal/infrastructure/config"
	"github.com/medimaging/backend/internal/interfaces/http/handler"
	"github.com/medimaging/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()

	group := NewDomainGroup("test", "/test")
	group.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	group.DELETE("/items/:id", func(c *gin.Context) {
		c.String(http.StatusOK, c.Param("id"))
	})

	NewRouter(engine, WithBasePath("/api")).Register(group).Setup()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/test/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/test/items/42", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "42", w.Body.String())
}

func TestRouterMiddlewareOrder(t *testing.T) {
	engine := gin.New()
	var order []string
	mark := func(name string) gin.HandlerFunc {
		return func(c *gin.Context) {
			order = append(order, name)
			c.Next()
		}
	}

	group := NewDomainGroup("reports", "").Use(mark("group"))
	group.GET("/reports", mark("route"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	NewRouter(engine).Use(mark("router")).Register(group).Setup()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/reports", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"router", "group", "route"}, order)
}

func TestDomainGroupAccessors(t *testing.T) {
	group := NewDomainGroup("settings", "/settings")
	assert.Equal(t, "settings", group.Name())
	assert.Equal(t, "/settings", group.Prefix())
}

func TestServerTimeouts(t *testing.T) {
	read, write, idle := ServerTimeouts(config.HTTPConfig{})
	assert.Equal(t, 30*time.Second, read)
	assert.Equal(t, 120*time.Second, write)
	assert.Equal(t, 120*time.Second, idle)

	read, write, idle = ServerTimeouts(config.HTTPConfig{
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  time.Minute,
	})
	assert.Equal(t, 5*time.Second, read)
	assert.Equal(t, 90*time.Second, write)
	assert.Equal(t, time.Minute, idle)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type rejectingAuthenticator struct{ calls int }

func (a *rejectingAuthenticator) Authenticate(context.Context, string) (*clinic.Clinic, *auth.Claims, error) {
	a.calls++
	return nil, nil, shared.NewDomainError(shared.CodeUnauthorized, "token revoked")
}

func newTestEngine(t *testing.T, db handler.Pinger, authn middleware.Authenticator) *gin.Engine {
	t.Helper()
	engine, stop := NewEngine(EngineConfig{
		HTTP: config.HTTPConfig{
			MaxBodySize:           1 << 20,
			AuthRateLimitEnabled:  true,
			AuthRateLimitRequests: 2,
			AuthRateLimitWindow:   time.Minute,
		},
		Authenticator: authn,
		Handlers: Handlers{
			Auth:     handler.NewAuthHandler(nil),
			Settings: handler.NewSettingsHandler(nil),
			Reports:  handler.NewReportHandler(nil),
			System:   handler.NewSystemHandler(db, "test"),
		},
	})
	t.Cleanup(stop)
	return engine
}

func TestNewEngine_Health(t *testing.T) {
	t.Run("database reachable", func(t *testing.T) {
		engine := newTestEngine(t, stubPinger{}, &rejectingAuthenticator{})

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	})

	t.Run("database unreachable", func(t *testing.T) {
		engine := newTestEngine(t, stubPinger{err: errors.New("connection refused")}, &rejectingAuthenticator{})

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestNewEngine_ProtectedRoutes(t *testing.T) {
	authn := &rejectingAuthenticator{}
	engine := newTestEngine(t, stubPinger{}, authn)

	routes := []struct{ method, path string }{
		{http.MethodGet, "/settings"},
		{http.MethodPost, "/settings"},
		{http.MethodPost, "/generate-pdf"},
		{http.MethodPost, "/save-report"},
		{http.MethodGet, "/reports"},
		{http.MethodGet, "/reports/report-1.pdf"},
		{http.MethodPost, "/generate-from-saved/1"},
		{http.MethodDelete, "/reports/1"},
		{http.MethodDelete, "/delete-report/1"},
		{http.MethodPost, "/api/logout"},
	}
	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(rt.method, rt.path, nil))
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
	assert.Zero(t, authn.calls, "requests without a bearer token never reach the authenticator")

	req := httptest.NewRequest(http.MethodGet, "/reports", nil)
	req.Header.Set("Authorization", "Bearer revoked")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 1, authn.calls)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
}

func TestNewEngine_UnknownRoute(t *testing.T) {
	engine := newTestEngine(t, stubPinger{}, &rejectingAuthenticator{})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
