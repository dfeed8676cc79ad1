package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/hesapla-backend/internal/storage"
)

// UploadImage godoc
// @ID          uploadImage
// @Summary     Upload an image
// @Description Accepts jpeg, png or gif, shrinks it to the configured width, re-encodes JPEG and stores it on the CDN origin.
// @Tags        Admin uploads
// @Accept      multipart/form-data
// @Produce     json
// @Param       file  formData  file  true  "Image"
// @Success     201   {object}  handlers.UploadResponse
// @Failure     400   {object}  handlers.ErrorResponse "Missing or unsupported file"
// @Failure     401   {object}  handlers.ErrorResponse "Authentication required"
// @Failure     413   {object}  handlers.ErrorResponse "File too large"
// @Failure     503   {object}  handlers.ErrorResponse "Storage not configured"
// @Router      /admin/uploads [post]
func (h *Handlers) UploadImage(c *gin.Context) {
	if _, authed := actor(c); !authed {
		return
	}
	if h.d.Uploader == nil || h.d.Images == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "image storage is not configured")
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "file is required")
		return
	}
	if fh.Size > h.d.MaxUploadSize {
		fail(c, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "file too large")
		return
	}
	f, err := fh.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "file is unreadable")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.d.MaxUploadSize+1))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "file is unreadable")
		return
	}

	out, err := h.d.Images.Optimize(data)
	switch {
	case errors.Is(err, storage.ErrTooLarge):
		fail(c, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "file too large")
		return
	case errors.Is(err, storage.ErrUnsupportedFormat):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "only jpeg, png and gif images are accepted")
		return
	case err != nil:
		internalError(c, "optimize_image", err)
		return
	}

	url, err := h.d.Uploader.UploadImage(c.Request.Context(), out)
	if err != nil {
		internalError(c, "upload_image", err)
		return
	}
	ok(c, http.StatusCreated, UploadResponse{URL: url})
}
