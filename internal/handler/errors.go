package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/libris-backend/internal/repository"
	"github.com/stemsi/libris-backend/internal/response"
	"github.com/stemsi/libris-backend/internal/service"
)

// failWith maps a service or repository error to its API error. Unknown
// errors are attached to the context for the logger and reported as 500.
func failWith(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
	case errors.Is(err, service.ErrInvalidResetToken):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidResetToken)
	case errors.Is(err, service.ErrInvalidRole):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{"role": err.Error()})
	case errors.Is(err, service.ErrNotSuperAdmin):
		response.Fail(c, http.StatusForbidden, response.ErrSuperAdminOnly)
	case errors.Is(err, service.ErrCannotModifySelf):
		response.Fail(c, http.StatusForbidden, response.ErrCannotModifySelf)
	case errors.Is(err, repository.ErrDuplicateEmail):
		response.Fail(c, http.StatusConflict, response.ErrEmailTaken)
	case errors.Is(err, repository.ErrSuperAdminExists):
		response.Fail(c, http.StatusConflict, response.ErrSuperAdminExists)
	case errors.Is(err, repository.ErrDuplicateLRN):
		response.Fail(c, http.StatusConflict, response.ErrDuplicateLRN)
	case errors.Is(err, repository.ErrAccountNotFound),
		errors.Is(err, repository.ErrBookNotFound),
		errors.Is(err, repository.ErrStudentNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	default:
		_ = c.Error(err)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// paramID parses a positive integer path parameter, failing the request
// when it is malformed.
func paramID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id < 1 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return id, true
}
