package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/libris-backend/internal/middleware"
	"github.com/stemsi/libris-backend/internal/model"
	"github.com/stemsi/libris-backend/internal/response"
	"github.com/stemsi/libris-backend/internal/service"
	"github.com/stemsi/libris-backend/internal/validator"
)

// AuthHandler handles the identity endpoints: registration, sign-in,
// sign-out, session reads, and credential resets.
type AuthHandler struct {
	identity     *service.IdentityService
	secureCookie bool
}

// NewAuthHandler creates a new AuthHandler. Session cookies are marked
// Secure when the public base URL is served over HTTPS.
func NewAuthHandler(identity *service.IdentityService, publicBaseURL string) *AuthHandler {
	return &AuthHandler{
		identity:     identity,
		secureCookie: strings.HasPrefix(publicBaseURL, "https://"),
	}
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, session *model.Session) {
	maxAge := int(time.Until(session.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, session.Token, maxAge, "/", "", h.secureCookie, true)
}

func (h *AuthHandler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", h.secureCookie, true)
}

// SignUp godoc
// POST /api/v1/auth/signup
// Registers an account. The requested role is capped by the role policy.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req model.SignUpRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.identity.SignUp(c.Request.Context(), req.Email, req.Password, req.Metadata)
	if err != nil {
		failWith(c, err)
		return
	}
	if result.Session != nil {
		h.setSessionCookie(c, result.Session)
	}

	response.Success(c, http.StatusCreated, result)
}

// SignIn godoc
// POST /api/v1/auth/signin
// Verifies credentials and issues a session.
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req model.SignInRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, account, err := h.identity.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		failWith(c, err)
		return
	}
	h.setSessionCookie(c, session)

	response.Success(c, http.StatusOK, model.SignInResponse{Session: session, Account: account})
}

// SignOut godoc
// POST /api/v1/auth/signout
// Revokes the caller's session. Signing out without a session succeeds.
func (h *AuthHandler) SignOut(c *gin.Context) {
	if token := middleware.GetToken(c); token != "" {
		if err := h.identity.SignOut(c.Request.Context(), token); err != nil {
			failWith(c, err)
			return
		}
	}
	h.clearSessionCookie(c)
	response.NoContent(c)
}

// Session godoc
// GET /api/v1/auth/session
// Returns the caller's live session, or null.
func (h *AuthHandler) Session(c *gin.Context) {
	response.Success(c, http.StatusOK, middleware.GetSession(c))
}

// Account godoc
// GET /api/v1/auth/account
// Returns the caller's account, or null.
func (h *AuthHandler) Account(c *gin.Context) {
	if middleware.GetSession(c) == nil {
		response.Success(c, http.StatusOK, nil)
		return
	}
	account, err := h.identity.Account(c.Request.Context(), middleware.GetToken(c))
	if err != nil {
		failWith(c, err)
		return
	}
	response.Success(c, http.StatusOK, account)
}

// RequestPasswordReset godoc
// POST /api/v1/auth/password-reset
// Queues a reset link. The response does not reveal whether the email exists.
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req model.PasswordResetRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.identity.RequestPasswordReset(c.Request.Context(), req.Email, req.CallbackPath); err != nil {
		failWith(c, err)
		return
	}
	response.Success(c, http.StatusAccepted, nil)
}

// ConfirmPasswordReset godoc
// POST /api/v1/auth/password-reset/confirm
// Sets a new password with a reset token and signs the account out everywhere.
func (h *AuthHandler) ConfirmPasswordReset(c *gin.Context) {
	var req model.PasswordResetConfirmRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.identity.ConfirmPasswordReset(c.Request.Context(), req.Token, req.Password); err != nil {
		failWith(c, err)
		return
	}
	h.clearSessionCookie(c)
	response.NoContent(c)
}

// HasAdminTier godoc
// GET /api/v1/rpc/has-admin-tier
func (h *AuthHandler) HasAdminTier(c *gin.Context) {
	exists, err := h.identity.HasAdminTier(c.Request.Context())
	if err != nil {
		failWith(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": exists})
}

// CountAccounts godoc
// GET /api/v1/rpc/count-accounts
func (h *AuthHandler) CountAccounts(c *gin.Context) {
	n, err := h.identity.CountAccounts(c.Request.Context())
	if err != nil {
		failWith(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": n})
}

// CountAdminTier godoc
// GET /api/v1/rpc/count-admin-tier
func (h *AuthHandler) CountAdminTier(c *gin.Context) {
	n, err := h.identity.CountAdminTier(c.Request.Context())
	if err != nil {
		failWith(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": n})
}
