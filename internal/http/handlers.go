// Package http provides the JSON request handlers for the service
// surface. Handlers are thin adapters: they coerce input, dispatch to the
// service registry, and shape responses.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/codeforge/execd/internal/logging"
	"github.com/codeforge/execd/internal/service"
	"github.com/codeforge/execd/internal/session"
	"github.com/codeforge/execd/internal/shared/id"
	"github.com/codeforge/execd/internal/types"
)

// Handlers holds handler dependencies
type Handlers struct {
	registry *service.Registry
	sessions *session.Manager
	logger   *logging.Logger
}

// NewHandlers creates the handler set
func NewHandlers(registry *service.Registry, sessions *session.Manager, logger *logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handlers{
		registry: registry,
		sessions: sessions,
		logger:   logger.Component("http"),
	}
}

// Root serves service identification
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "execd",
		"status":  "running",
	})
}

// Health serves the health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "healthy",
		"active_sessions": h.sessions.Count(),
	})
}

// ListServices returns all registered service definitions
func (h *Handlers) ListServices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"services": h.registry.List(),
		"stats":    h.registry.Stats(),
	})
}

// executeRequest is the one accepted input shape: a tool id plus a typed
// parameter map. Free-form payload coercion happens inside providers for
// the few string fields that accept fenced code.
type executeRequest struct {
	ToolID    string                 `json:"tool_id" binding:"required"`
	Params    map[string]interface{} `json:"params"`
	SessionID string                 `json:"session_id"`
}

// ExecuteService dispatches one tool call
func (h *Handlers) ExecuteService(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	if req.Params == nil {
		req.Params = map[string]interface{}{}
	}
	if req.SessionID != "" {
		req.Params["session_id"] = req.SessionID
	}

	reqID := id.NewRequestID().String()
	opCtx := &types.Context{RequestID: &reqID}
	if req.SessionID != "" {
		opCtx.SessionID = &req.SessionID
	}

	result, err := h.registry.Execute(c.Request.Context(), req.ToolID, req.Params, opCtx)
	if err != nil {
		h.logger.Error("tool execution failed",
			zap.String("tool_id", req.ToolID),
			zap.String("request_id", reqID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      err.Error(),
			"request_id": reqID,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result":     result,
		"request_id": reqID,
	})
}

// ListSessions returns ids of all live sessions
func (h *Handlers) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"sessions": h.sessions.List(),
		"count":    h.sessions.Count(),
	})
}

// GetSession returns one session's bookkeeping
func (h *Handlers) GetSession(c *gin.Context) {
	sid := c.Param("id")
	sess, ok := h.sessions.Get(sid)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found: " + sid})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id":  sess.ID,
		"created_at":  sess.CreatedAt,
		"executions":  sess.ExecutionCount(),
		"files":       sess.ListFiles(),
		"workspace":   sess.WorkspacePath(),
		"last_access": sess.LastAccessedAt(),
	})
}

// DeleteSession destroys a session and its workspace
func (h *Handlers) DeleteSession(c *gin.Context) {
	sid := c.Param("id")
	if err := h.sessions.Remove(sid); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": sid})
}
