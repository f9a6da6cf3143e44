package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/carebridge-ai/companion/internal/index"
	"github.com/carebridge-ai/companion/provider"
)

// HealthHandler reports readiness of the services the companion depends on.
type HealthHandler struct {
	Index     index.Index
	Generator provider.Generator
	Embedder  provider.Embedder
}

func (h *HealthHandler) Register(g *echo.Group) {
	g.GET("", h.health)
	g.GET("/ping", h.ping)
}

func (h *HealthHandler) health(c echo.Context) error {
	services := map[string]string{}
	healthy := true

	if h.Generator != nil {
		services["generation"] = "available"
	} else {
		services["generation"] = "unavailable"
		healthy = false
	}

	if h.Embedder != nil {
		services["embedding"] = "available"
	} else {
		services["embedding"] = "unavailable (keyword search only)"
	}

	if err := h.Index.Ping(c.Request().Context()); err != nil {
		services["knowledge_index"] = "unavailable"
		healthy = false
	} else {
		services["knowledge_index"] = "available"
	}

	status := "healthy"
	if !healthy {
		status = "degraded"
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services":  services,
	})
}

func (h *HealthHandler) ping(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
