package handlers

// Error codes carried in ErrorResponse.Code. A duplicate slug answers 400
// with ErrCodeConflict so the admin UI can tell it apart from a validation
// failure.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeTooLarge     = "payload_too_large"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"
	ErrCodeUnavailable  = "service_unavailable"

	ErrCodeMethodNotAllowed = "method_not_allowed"
)

const (
	msgInternal = "internal server error"
	msgAuth     = "authentication required"
	msgBadJSON  = "invalid JSON body"
)
