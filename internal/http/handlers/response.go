package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/tbourn/hesapla-backend/internal/http/middleware"
)

// ErrorResponse is the error envelope of every endpoint.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Code is one of the ErrCode* constants.
	Code    string `json:"code" example:"not_found"`
	Message string `json:"message" example:"post not found"`
	// Fields maps JSON field names to validation messages on 400s.
	Fields map[string]string `json:"fields,omitempty"`
}

func fail(c *gin.Context, status int, code, msg string) {
	abortWith(c, status, ErrorResponse{Code: code, Message: msg})
}

// Fail writes the error envelope for callers outside this package, such as
// the router's 404 and 405 handlers.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func abortWith(c *gin.Context, status int, resp ErrorResponse) {
	resp.RequestID = middleware.RequestIDFrom(c)
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", resp.Code).
			Str("message", resp.Message).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, resp)
}

// invalid answers 400 for a failed DTO Validate. Message always carries the
// readable cause; ozzo-validation field errors are also listed per field.
func invalid(c *gin.Context, err error) {
	resp := ErrorResponse{Code: ErrCodeBadRequest, Message: err.Error()}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		// Filter drops nil entries, which Errors.Error cannot format.
		if ferr := verrs.Filter(); ferr != nil {
			resp.Message = ferr.Error()
		}
		resp.Fields = make(map[string]string, len(verrs))
		for field, ferr := range verrs {
			if ferr != nil {
				resp.Fields[field] = ferr.Error()
			}
		}
	}
	abortWith(c, http.StatusBadRequest, resp)
}

// internalError logs err and answers 500 with a generic message. The cause
// never reaches the client.
func internalError(c *gin.Context, op string, err error) {
	middleware.LoggerFrom(c).Error().Err(err).Str("op", op).Msg("request failed")
	fail(c, http.StatusInternalServerError, ErrCodeInternal, msgInternal)
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
