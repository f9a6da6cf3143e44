package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/carebridge-ai/companion/internal/agent"
	"github.com/carebridge-ai/companion/internal/session"
	"github.com/carebridge-ai/companion/internal/telemetry"
)

const maxMessageLen = 2000

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message        string `json:"message"`
	SessionID      string `json:"session_id"`
	UserID         string `json:"user_id"`
	IncludeSources *bool  `json:"include_sources"`
}

// ChatHandler serves the conversation endpoints.
type ChatHandler struct {
	Agent    *agent.Agent
	Sessions session.Store
	Metrics  *telemetry.Metrics
}

func (h *ChatHandler) Register(g *echo.Group) {
	g.POST("", h.chat)
	g.DELETE("/session/:session_id", h.clearSession)
}

func (h *ChatHandler) chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	if len(req.Message) > maxMessageLen {
		return echo.NewHTTPError(http.StatusBadRequest, "message exceeds maximum length")
	}
	includeSources := true
	if req.IncludeSources != nil {
		includeSources = *req.IncludeSources
	}

	start := time.Now()
	resp, err := h.Agent.Chat(c.Request().Context(), req.Message, req.SessionID, req.UserID, includeSources)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError,
			"An error occurred while processing your request. Please try again.").SetInternal(err)
	}
	if h.Metrics != nil {
		h.Metrics.GenerationDuration.Observe(time.Since(start).Seconds())
		h.Metrics.GenerationConf.Observe(resp.ConfidenceScore)
		if req.SessionID == "" || req.SessionID != resp.SessionID {
			h.Metrics.ActiveSessions.Inc()
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *ChatHandler) clearSession(c echo.Context) error {
	sessionID := c.Param("session_id")
	existed, err := h.Sessions.Clear(c.Request().Context(), sessionID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Error clearing session").SetInternal(err)
	}
	// Only sessions that actually existed move the gauge; repeated or
	// unknown-id deletes must not drift it negative.
	if h.Metrics != nil && existed {
		h.Metrics.ActiveSessions.Dec()
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message":    "Session cleared successfully",
		"session_id": sessionID,
	})
}
