package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/libris-backend/internal/model"
	"github.com/stemsi/libris-backend/internal/response"
)

// Gin context keys set by the session middleware.
const (
	ContextKeySession = "session"
	ContextKeyToken   = "session_token"
	ContextKeyAccount = "account"
)

// SessionResolver looks up live sessions and their accounts.
type SessionResolver interface {
	Session(ctx context.Context, token string) (*model.Session, error)
	Account(ctx context.Context, token string) (*model.Account, error)
}

// LoadSession resolves the caller's session, if any, into the context.
// Anonymous requests pass through; only a storage failure aborts.
func LoadSession(resolver SessionResolver, allowQueryToken bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c, allowQueryToken)
		c.Set(ContextKeyToken, token)
		if token == "" {
			c.Next()
			return
		}

		session, err := resolver.Session(c.Request.Context(), token)
		if err != nil {
			_ = c.Error(err)
			response.AbortFail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}
		if session != nil {
			c.Set(ContextKeySession, session)
		}
		c.Next()
	}
}

// GetSession retrieves the caller's session from the Gin context.
func GetSession(c *gin.Context) *model.Session {
	val, exists := c.Get(ContextKeySession)
	if !exists {
		return nil
	}
	session, ok := val.(*model.Session)
	if !ok {
		return nil
	}
	return session
}

// GetToken retrieves the caller's raw session token from the Gin context.
func GetToken(c *gin.Context) string {
	return c.GetString(ContextKeyToken)
}

// GetAccount retrieves the account loaded by a tier gate.
func GetAccount(c *gin.Context) *model.Account {
	val, exists := c.Get(ContextKeyAccount)
	if !exists {
		return nil
	}
	account, ok := val.(*model.Account)
	if !ok {
		return nil
	}
	return account
}
