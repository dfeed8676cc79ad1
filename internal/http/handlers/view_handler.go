package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/hesapla-backend/internal/http/middleware"
	"github.com/tbourn/hesapla-backend/internal/services"
)

// RecordView godoc
// @ID          recordView
// @Summary     Count a page view
// @Description Increments the post's view counter. Repeats carrying the same Idempotency-Key inside the dedup window count once.
// @Tags        Blog
// @Produce     json
// @Param       slug             path    string  true   "Post slug"
// @Param       Idempotency-Key  header  string  false  "Per page-load key"
// @Success     200  {object} handlers.ViewResponse
// @Failure     400  {object} handlers.ErrorResponse "Invalid Idempotency-Key"
// @Failure     404  {object} handlers.ErrorResponse "Post not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /posts/{slug}/view [post]
func (h *Handlers) RecordView(c *gin.Context) {
	// Receipt already seen by the idempotency middleware.
	if middleware.IsReplay(c) {
		ok(c, http.StatusOK, ViewResponse{Success: true})
		return
	}

	key, _ := middleware.GetIdempotencyKey(c)
	replayed, err := h.d.Views.Record(c.Request.Context(), c.Param("slug"), key)
	switch {
	case errors.Is(err, services.ErrPostNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "post not found")
	case err != nil:
		internalError(c, "record_view", err)
	default:
		if replayed {
			c.Header("Idempotent-Replay", "true")
		}
		ok(c, http.StatusOK, ViewResponse{Success: true})
	}
}
