package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/carebridge-ai/companion/models"
)

// CategoriesHandler exposes the fixed query-category and content-type
// vocabularies so clients can populate pickers without hardcoding them.
type CategoriesHandler struct{}

type categoryEntry struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

func (h *CategoriesHandler) Register(g *echo.Group) {
	g.GET("/query", h.queryCategories)
	g.GET("/content", h.contentTypes)
}

func (h *CategoriesHandler) queryCategories(c echo.Context) error {
	entries := make([]categoryEntry, 0, len(models.QueryCategories))
	for _, cat := range models.QueryCategories {
		entries = append(entries, categoryEntry{Value: string(cat), Label: label(string(cat))})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"categories": entries})
}

func (h *CategoriesHandler) contentTypes(c echo.Context) error {
	entries := make([]categoryEntry, 0, len(models.ContentTypes))
	for _, ct := range models.ContentTypes {
		entries = append(entries, categoryEntry{Value: string(ct), Label: label(string(ct))})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"content_types": entries})
}

// label turns "side_effects" into "Side Effects".
func label(value string) string {
	words := strings.Split(value, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
