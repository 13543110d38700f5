package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/medcrew/backend/config"
	"github.com/medcrew/backend/internal/handler"
	"github.com/medcrew/backend/internal/pkg/pipeline"
	"github.com/medcrew/backend/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	svc := service.NewConsultationService(cfg, pipeline.NewRunner(pipeline.ExecutorFunc(nil), nil), nil)
	return Setup(cfg, handler.NewConsultationHandler(svc, nil))
}

func TestSetupRoutes(t *testing.T) {
	r := setupTestRouter()

	routes := make(map[string]bool)
	for _, route := range r.Routes() {
		routes[route.Method+" "+route.Path] = true
	}

	for _, want := range []string{
		"GET /",
		"POST /consult",
		"GET /healthz",
		"POST /api/consultations",
		"POST /api/documents/export",
		"GET /api/stages",
		"GET /static/*filepath",
	} {
		assert.True(t, routes[want], "missing route %s", want)
	}
}

func TestSetupServesPageAndStatic(t *testing.T) {
	r := setupTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<h1>Healthcare AI Assistant</h1>")

	req = httptest.NewRequest(http.MethodGet, "/static/style.css", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/unknown", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "not found")
}

func TestSetupGzip(t *testing.T) {
	r := setupTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
}
