package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/libris-backend/internal/model"
	"github.com/stemsi/libris-backend/internal/response"
)

// RequireAdminTier admits admin and super-admin accounts.
func RequireAdminTier(resolver SessionResolver) gin.HandlerFunc {
	return requireTier(resolver, model.RoleTier.IsAdminTier, response.ErrAdminTierOnly)
}

// RequireSuperAdmin admits only the super-admin account.
func RequireSuperAdmin(resolver SessionResolver) gin.HandlerFunc {
	return requireTier(resolver, model.RoleTier.IsSuperAdminTier, response.ErrSuperAdminOnly)
}

// requireTier re-reads the account so role changes apply to sessions
// issued before them.
func requireTier(resolver SessionResolver, allowed func(model.RoleTier) bool, code response.ErrCode) gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetSession(c) == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrSessionRequired)
			return
		}

		account, err := resolver.Account(c.Request.Context(), GetToken(c))
		if err != nil {
			_ = c.Error(err)
			response.AbortFail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}
		if account == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrSessionRequired)
			return
		}
		if !allowed(account.Role) {
			response.AbortFail(c, http.StatusForbidden, code)
			return
		}

		c.Set(ContextKeyAccount, account)
		c.Next()
	}
}
