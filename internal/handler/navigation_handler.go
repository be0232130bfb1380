package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/libris-backend/internal/guard"
	"github.com/stemsi/libris-backend/internal/middleware"
	"github.com/stemsi/libris-backend/internal/response"
)

// NavigationHandler lets single-page clients ask the server-side guard
// where a route transition should land.
type NavigationHandler struct {
	newGuard middleware.GuardFactory
	routes   []guard.Route
}

// NewNavigationHandler creates a new NavigationHandler.
func NewNavigationHandler(newGuard middleware.GuardFactory, routes []guard.Route) *NavigationHandler {
	return &NavigationHandler{newGuard: newGuard, routes: routes}
}

// Resolve godoc
// GET /api/v1/navigation/resolve?path=/dashboard
func (h *NavigationHandler) Resolve(c *gin.Context) {
	path := c.DefaultQuery("path", guard.PathHome)
	route := guard.Lookup(h.routes, path)
	decision := h.newGuard(middleware.GetToken(c)).Evaluate(c.Request.Context(), route)

	response.Success(c, http.StatusOK, gin.H{
		"path":     path,
		"decision": decision,
		"location": decision.Location(),
	})
}
