package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeforge/execd/internal/config"
	"github.com/codeforge/execd/internal/logging"
	"github.com/codeforge/execd/internal/service"
	"github.com/codeforge/execd/internal/session"
	"github.com/codeforge/execd/internal/types"
)

type echoProvider struct{}

func (echoProvider) Definition() types.Service {
	return types.Service{
		ID:       "echo",
		Name:     "Echo",
		Category: types.CategoryShell,
		Tools:    []types.Tool{{ID: "echo.say", Name: "Say"}},
	}
}

func (echoProvider) Execute(ctx context.Context, toolID string, params map[string]interface{}, opCtx *types.Context) (*types.Result, error) {
	return &types.Result{
		Success: true,
		Data: map[string]interface{}{
			"tool":   toolID,
			"params": params,
		},
	}, nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *session.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.Sessions.WorkspaceRoot = t.TempDir()

	sessions := session.NewManager(cfg.Sessions, logging.NewNop())
	t.Cleanup(sessions.Shutdown)

	registry := service.NewRegistry()
	require.NoError(t, registry.Register(echoProvider{}))

	h := NewHandlers(registry, sessions, logging.NewNop())

	router := gin.New()
	router.GET("/", h.Root)
	router.GET("/health", h.Health)
	router.GET("/services", h.ListServices)
	router.POST("/services/execute", h.ExecuteService)
	router.GET("/sessions", h.ListSessions)
	router.GET("/sessions/:id", h.GetSession)
	router.DELETE("/sessions/:id", h.DeleteSession)
	return router, sessions
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var parsed map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	}
	return w, parsed
}

// TestRootAndHealth tests the identification and health endpoints
func TestRootAndHealth(t *testing.T) {
	router, _ := newTestRouter(t)

	w, body := doJSON(t, router, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "execd", body["service"])

	w, body = doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(0), body["active_sessions"])
}

// TestListServices tests service discovery
func TestListServices(t *testing.T) {
	router, _ := newTestRouter(t)

	w, body := doJSON(t, router, http.MethodGet, "/services", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	services, ok := body["services"].([]interface{})
	require.True(t, ok)
	require.Len(t, services, 1)
}

// TestExecuteService tests tool dispatch through the HTTP surface
func TestExecuteService(t *testing.T) {
	router, _ := newTestRouter(t)

	w, body := doJSON(t, router, http.MethodPost, "/services/execute", map[string]interface{}{
		"tool_id":    "echo.say",
		"params":     map[string]interface{}{"msg": "hi"},
		"session_id": "sess-1",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, body["request_id"])

	result, ok := body["result"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, result["success"])

	data := result["data"].(map[string]interface{})
	assert.Equal(t, "echo.say", data["tool"])

	// The top-level session id is injected into params.
	params := data["params"].(map[string]interface{})
	assert.Equal(t, "sess-1", params["session_id"])
}

// TestExecuteServiceValidation tests rejected request shapes
func TestExecuteServiceValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	// Missing tool_id.
	w, body := doJSON(t, router, http.MethodPost, "/services/execute", map[string]interface{}{
		"params": map[string]interface{}{},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["error"], "invalid request")

	// Unknown service surfaces as a server-side failure.
	w, _ = doJSON(t, router, http.MethodPost, "/services/execute", map[string]interface{}{
		"tool_id": "ghost.walk",
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

// TestSessionEndpoints tests session listing, lookup, and deletion
func TestSessionEndpoints(t *testing.T) {
	router, sessions := newTestRouter(t)

	_, err := sessions.Resolve("visible")
	require.NoError(t, err)

	w, body := doJSON(t, router, http.MethodGet, "/sessions", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["count"])

	w, body = doJSON(t, router, http.MethodGet, "/sessions/visible", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "visible", body["session_id"])

	w, _ = doJSON(t, router, http.MethodGet, "/sessions/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body = doJSON(t, router, http.MethodDelete, "/sessions/visible", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "visible", body["deleted"])
	assert.Equal(t, 0, sessions.Count())

	w, _ = doJSON(t, router, http.MethodDelete, "/sessions/visible", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
