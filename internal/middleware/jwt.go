package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// SessionCookie carries the session token for browser page routes.
const SessionCookie = "libris_session"

// ExtractToken returns the caller's session token from, in order, the
// Authorization bearer header, the session cookie, or the token query
// parameter when allowQuery is set. It returns "" when none is present.
func ExtractToken(c *gin.Context, allowQuery bool) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil && cookie != "" {
		return cookie
	}
	if allowQuery {
		return c.Query("token")
	}
	return ""
}
