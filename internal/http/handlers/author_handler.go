// Author HTTP handlers.
//
// This file exposes the admin author endpoints:
//   - GET  /api/admin/authors   (list, sorted by name)
//   - POST /api/admin/authors   (create)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/hesapla-backend/internal/domain"
	"github.com/tbourn/hesapla-backend/internal/services"
)

// ListAuthors godoc
// @ID          listAuthors
// @Summary     List authors
// @Description Returns every author sorted by name ascending.
// @Tags        Admin authors
// @Produce     json
// @Success     200  {object} handlers.ListAuthorsResponse
// @Failure     401  {object} handlers.ErrorResponse "Authentication required"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /admin/authors [get]
func (h *Handlers) ListAuthors(c *gin.Context) {
	if _, authed := actor(c); !authed {
		return
	}
	items, err := h.d.Authors.List(c.Request.Context())
	if err != nil {
		internalError(c, "list_authors", err)
		return
	}
	if items == nil {
		items = []domain.Author{}
	}
	ok(c, http.StatusOK, ListAuthorsResponse{Authors: items})
}

// CreateAuthor godoc
// @ID          createAuthor
// @Summary     Create an author
// @Tags        Admin authors
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.CreateAuthorRequest  true  "Author"
// @Success     201   {object}  handlers.AuthorResponse
// @Failure     400   {object}  handlers.ErrorResponse "Bad request"
// @Failure     401   {object}  handlers.ErrorResponse "Authentication required"
// @Failure     500   {object}  handlers.ErrorResponse "Internal error"
// @Router      /admin/authors [post]
func (h *Handlers) CreateAuthor(c *gin.Context) {
	id, authed := actor(c)
	if !authed {
		return
	}
	var req CreateAuthorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgBadJSON)
		return
	}
	if err := req.Validate(); err != nil {
		invalid(c, err)
		return
	}

	a, err := h.d.Authors.Create(c.Request.Context(), id, req.input())
	switch {
	case err == nil:
		ok(c, http.StatusCreated, AuthorResponse{Author: a})
	case errors.Is(err, services.ErrInvalidInput):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name is required")
	default:
		internalError(c, "create_author", err)
	}
}
