package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/ncobase/spacearc/config"
	"github.com/ncobase/spacearc/consts"
	"github.com/ncobase/spacearc/logging/logger"
)

func newMiddlewareServer(adminToken string) *Server {
	return &Server{
		cfg:    &config.Config{Admin: &config.Admin{Token: adminToken}},
		logger: logger.StdLogger(),
	}
}

func adminRouter(s *Server) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/admin/ping", s.adminAuthMiddleware(), func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	return r
}

func TestAdminAuthDisabledWithoutToken(t *testing.T) {
	r := adminRouter(newMiddlewareServer(""))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/admin/ping", nil)
	req.Header.Set(consts.AdminTokenHeader, "anything")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when no admin token is configured", w.Code)
	}
}

func TestAdminAuthRejectsWrongToken(t *testing.T) {
	r := adminRouter(newMiddlewareServer("secret"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/admin/ping", nil)
	req.Header.Set(consts.AdminTokenHeader, "wrong")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}

	// A missing header is rejected the same way.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admin/ping", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status without header = %d, want 401", w.Code)
	}
}

func TestAdminAuthAcceptsToken(t *testing.T) {
	r := adminRouter(newMiddlewareServer("secret"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/admin/ping", nil)
	req.Header.Set(consts.AdminTokenHeader, "secret")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK || w.Body.String() != "pong" {
		t.Errorf("status = %d body = %q", w.Code, w.Body.String())
	}
}

func TestTraceMiddlewareEchoesTraceID(t *testing.T) {
	s := newMiddlewareServer("")
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(s.traceMiddleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Header().Get(consts.TraceKey) == "" {
		t.Error("trace header missing from response")
	}
}
