package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/libris-backend/internal/middleware"
	"github.com/stemsi/libris-backend/internal/model"
	"github.com/stemsi/libris-backend/internal/response"
	"github.com/stemsi/libris-backend/internal/service"
	"github.com/stemsi/libris-backend/internal/validator"
)

// AccountAdminHandler handles super-admin account management. Routes are
// mounted behind middleware.RequireSuperAdmin, which loads the actor.
type AccountAdminHandler struct {
	identity *service.IdentityService
}

// NewAccountAdminHandler creates a new AccountAdminHandler.
func NewAccountAdminHandler(identity *service.IdentityService) *AccountAdminHandler {
	return &AccountAdminHandler{identity: identity}
}

// ListAdminTier godoc
// GET /api/v1/admin/accounts
// Lists admin-tier accounts, super admin first.
func (h *AccountAdminHandler) ListAdminTier(c *gin.Context) {
	accounts, err := h.identity.ListAdminTier(c.Request.Context())
	if err != nil {
		failWith(c, err)
		return
	}
	if accounts == nil {
		accounts = []model.Account{}
	}
	response.Success(c, http.StatusOK, accounts)
}

// UpdateRole godoc
// PATCH /api/v1/admin/accounts/:id/role
func (h *AccountAdminHandler) UpdateRole(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateRoleRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	actor := middleware.GetAccount(c)
	account, err := h.identity.UpdateRole(c.Request.Context(), actor.ID, id, req.Role)
	if err != nil {
		failWith(c, err)
		return
	}
	response.Success(c, http.StatusOK, account)
}

// UpdateEmail godoc
// PATCH /api/v1/admin/accounts/:id/email
func (h *AccountAdminHandler) UpdateEmail(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateEmailRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	account, err := h.identity.UpdateEmail(c.Request.Context(), id, req.Email)
	if err != nil {
		failWith(c, err)
		return
	}
	response.Success(c, http.StatusOK, account)
}

// Delete godoc
// DELETE /api/v1/admin/accounts/:id
func (h *AccountAdminHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	actor := middleware.GetAccount(c)
	if err := h.identity.DeleteAccount(c.Request.Context(), actor.ID, id); err != nil {
		failWith(c, err)
		return
	}
	response.NoContent(c)
}

// RequestPasswordReset godoc
// POST /api/v1/admin/accounts/password-reset
// Sends a reset link to any account's email on the super admin's behalf.
func (h *AccountAdminHandler) RequestPasswordReset(c *gin.Context) {
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
