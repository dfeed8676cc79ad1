// Admin session HTTP handlers.
//
// This file exposes:
//   - POST /api/admin/login    (verify credentials, set session cookie)
//   - POST /api/admin/logout   (clear session cookie)
//   - GET  /api/admin/session  (describe the current session)
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/hesapla-backend/internal/auth"
	"github.com/tbourn/hesapla-backend/internal/http/middleware"
)

// Login godoc
// @ID          adminLogin
// @Summary     Sign in to the admin panel
// @Description Verifies the admin credential and sets an HttpOnly session cookie.
// @Tags        Admin session
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.LoginRequest  true  "Credentials"
// @Success     200   {object}  handlers.SessionResponse
// @Failure     400   {object}  handlers.ErrorResponse "Bad request"
// @Failure     401   {object}  handlers.ErrorResponse "Invalid credentials"
// @Failure     500   {object}  handlers.ErrorResponse "Internal error"
// @Router      /admin/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgBadJSON)
		return
	}
	if err := req.Validate(); err != nil {
		invalid(c, err)
		return
	}

	if err := h.d.Credentials.Verify(req.Email, req.Password); err != nil {
		middleware.LoggerFrom(c).Warn().Msg("admin login rejected")
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid email or password")
		return
	}

	token, exp, err := h.d.Sessions.Issue(req.Email)
	if err != nil {
		internalError(c, "issue_session", err)
		return
	}

	h.setSessionCookie(c, token, int(time.Until(exp).Seconds()))
	c.Header("Cache-Control", "no-store")
	ok(c, http.StatusOK, sessionResponse(auth.Identity{Email: req.Email, ExpiresAt: exp}))
}

// Logout godoc
// @ID          adminLogout
// @Summary     Sign out
// @Description Clears the session cookie. Always succeeds.
// @Tags        Admin session
// @Success     204  {string} string "No Content"
// @Router      /admin/logout [post]
func (h *Handlers) Logout(c *gin.Context) {
	h.setSessionCookie(c, "", -1)
	noContent(c)
}

// Session godoc
// @ID          adminSession
// @Summary     Current admin session
// @Tags        Admin session
// @Produce     json
// @Success     200  {object} handlers.SessionResponse
// @Failure     401  {object} handlers.ErrorResponse "Authentication required"
// @Router      /admin/session [get]
func (h *Handlers) Session(c *gin.Context) {
	id, authed := actor(c)
	if !authed {
		return
	}
	c.Header("Cache-Control", "no-store")
	ok(c, http.StatusOK, sessionResponse(id))
}

// setSessionCookie writes the HttpOnly, SameSite=Lax session cookie.
// maxAge < 0 deletes it.
func (h *Handlers) setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, token, maxAge, "/", "", h.d.CookieSecure, true)
}

func sessionResponse(id auth.Identity) SessionResponse {
	return SessionResponse{
		Email:     id.Email,
		ExpiresAt: id.ExpiresAt.UTC().Format(time.RFC3339),
	}
}
