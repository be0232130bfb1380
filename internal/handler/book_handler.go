package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/libris-backend/internal/model"
	"github.com/stemsi/libris-backend/internal/response"
	"github.com/stemsi/libris-backend/internal/service"
	"github.com/stemsi/libris-backend/internal/validator"
)

// BookHandler handles catalog endpoints.
type BookHandler struct {
	bookService *service.BookService
}

// NewBookHandler creates a new BookHandler.
func NewBookHandler(bookService *service.BookService) *BookHandler {
	return &BookHandler{bookService: bookService}
}

// List godoc
// GET /api/v1/books?q=
// Lists the catalog. A numeric q selects a shelf; any other q matches
// title or author.
func (h *BookHandler) List(c *gin.Context) {
	books, err := h.bookService.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		failWith(c, err)
		return
	}
	response.Success(c, http.StatusOK, books)
}

// Create godoc
// POST /api/v1/books
func (h *BookHandler) Create(c *gin.Context) {
	var req model.CreateBookRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	book, err := h.bookService.Create(c.Request.Context(), req)
	if err != nil {
		failWith(c, err)
		return
	}
	response.Success(c, http.StatusCreated, book)
}

// Delete godoc
// DELETE /api/v1/books/:id
func (h *BookHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.bookService.Delete(c.Request.Context(), id); err != nil {
		failWith(c, err)
		return
	}
	response.NoContent(c)
}

// ToggleAvailability godoc
// POST /api/v1/books/:id/toggle
func (h *BookHandler) ToggleAvailability(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	book, err := h.bookService.ToggleAvailability(c.Request.Context(), id)
	if err != nil {
		failWith(c, err)
		return
	}
	response.Success(c, http.StatusOK, book)
}
