package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/hesapla-backend/internal/http/middleware"
	"github.com/tbourn/hesapla-backend/internal/rates"
)

// GetRates godoc
// @ID          getRates
// @Summary     Current TRY exchange rates
// @Description Cached for one hour. source=FALLBACK means the central bank could not be reached and static rates are served.
// @Tags        Calculators
// @Produce     json
// @Success     200  {object} handlers.RatesResponse
// @Router      /rates [get]
func (h *Handlers) GetRates(c *gin.Context) {
	snap := h.d.Rates.Get(c.Request.Context())
	if snap.Source == rates.SourcePrimary {
		c.Header("Cache-Control", "public, max-age=300")
	} else {
		c.Header("Cache-Control", "no-cache")
	}
	ok(c, http.StatusOK, snap)
}

// InvalidateRates godoc
// @ID          invalidateRates
// @Summary     Drop the cached exchange rates
// @Description The next read refetches from the central bank.
// @Tags        Admin rates
// @Success     204  {string} string "No Content"
// @Failure     401  {object} handlers.ErrorResponse "Authentication required"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /admin/rates/invalidate [post]
func (h *Handlers) InvalidateRates(c *gin.Context) {
	id, authed := actor(c)
	if !authed {
		return
	}
	n, err := h.d.Rates.Invalidate(c.Request.Context(), rates.DefaultTag)
	if err != nil {
		internalError(c, "invalidate_rates", err)
		return
	}
	middleware.LoggerFrom(c).Info().Str("tag", rates.DefaultTag).Int("keys", n).Str("by", id.Email).Msg("rates cache invalidated")
	noContent(c)
}
