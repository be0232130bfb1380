package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/libris-backend/internal/guard"
)

// GuardFactory builds a navigation guard bound to one caller's token.
type GuardFactory func(token string) *guard.Guard

// NavigationGuard evaluates page requests against the route table and
// redirects when the guard does not let the caller through.
func NavigationGuard(newGuard GuardFactory, routes []guard.Route) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := guard.Lookup(routes, c.Request.URL.Path)
		decision := newGuard(ExtractToken(c, false)).Evaluate(c.Request.Context(), route)
		if !decision.Proceed {
			c.Redirect(http.StatusFound, decision.Location())
			c.Abort()
			return
		}
		c.Next()
	}
}
