// Package httpapi assembles the Gin engine: host policy, observability,
// abuse control, CORS and security headers, then the three surfaces (public
// API under /api, admin API under /api/admin, admin UI under /admin).
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/hesapla-backend/docs" // swagger spec
	"github.com/tbourn/hesapla-backend/internal/auth"
	"github.com/tbourn/hesapla-backend/internal/config"
	"github.com/tbourn/hesapla-backend/internal/domain"
	"github.com/tbourn/hesapla-backend/internal/http/handlers"
	"github.com/tbourn/hesapla-backend/internal/http/middleware"
	"github.com/tbourn/hesapla-backend/internal/repo"
	"github.com/tbourn/hesapla-backend/internal/services"
	"github.com/tbourn/hesapla-backend/internal/storage"
)

// jsonBodyLimit caps JSON request bodies.
const jsonBodyLimit = 1 << 20

// authorRepoShim adapts the repository free functions to the
// services.AuthorRepo interface expected by the AuthorService. This keeps
// services decoupled from the concrete repo package while reusing existing
// functions.
type authorRepoShim struct{}

// CreateAuthor proxies repo.CreateAuthor.
func (authorRepoShim) CreateAuthor(ctx context.Context, db *gorm.DB, a *domain.Author) error {
	return repo.CreateAuthor(ctx, db, a)
}

// ListAuthors proxies repo.ListAuthors.
func (authorRepoShim) ListAuthors(ctx context.Context, db *gorm.DB) ([]domain.Author, error) {
	return repo.ListAuthors(ctx, db)
}

// Deps carries collaborators that own network clients or background work and
// are therefore built by the caller.
type Deps struct {
	// Rates serves GET /api/rates and the admin invalidation endpoint.
	Rates handlers.RateSource
	// Uploader stores admin images; nil disables uploads (503).
	Uploader handlers.ImageUploader
}

// RegisterRoutes installs middleware and routes on r.
//
// Middleware order matters:
//  1. CanonicalHost, so preview hosts redirect before anything else runs
//  2. otelgin, RequestID, RedactingLogger, Recovery
//  3. Metrics
//  4. IdempotencyValidator, ahead of the limiter so view replays bypass it
//  5. the global rate limiter, per client IP
//  6. CORS, gzip and baseline security headers
//
// Body limits are set per group so that image uploads can exceed the JSON cap.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(
		middleware.CanonicalHost(cfg.Hosts.CanonicalOrigin, cfg.Hosts.PreviewHosts),
		otelgin.Middleware(cfg.OTEL.ServiceName),
		middleware.RequestID(),
		middleware.RedactingLogger(middleware.RedactOptions{MaskHeaders: []string{middleware.HeaderIdempotencyKey}}),
		middleware.Recovery(),
		middleware.Metrics(middleware.MetricsOptions{SkipPaths: []string{"/metrics", "/health"}}),
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200, ScopeParam: "slug"}, viewReceiptLookup(db)),
		middleware.NewRateLimiter("global", cfg.RateRPS, cfg.RateBurst, middleware.KeyByIP()).Handler(),
	)
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(
		gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})),
		middleware.SecurityHeaders(middleware.SecurityOptions{
			EnableHSTS: cfg.Security.EnableHSTS,
			HSTSMaxAge: cfg.Security.HSTSMaxAge,
		}),
	)

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	sessions := auth.NewSessions(cfg.Session.Secret, cfg.Session.TTL)
	h := handlers.New(handlers.Deps{
		Authors:       services.NewAuthorService(db, authorRepoShim{}),
		Posts:         services.NewPostService(db, cfg.Content.ReadingWPM),
		Views:         services.NewViewService(db, cfg.Content.ViewDedupTTL),
		Sessions:      sessions,
		Credentials:   auth.Credentials{Email: cfg.Session.AdminEmail, PasswordHash: cfg.Session.AdminPasswordHash},
		Rates:         deps.Rates,
		Images:        storage.NewOptimizer(cfg.Storage.MaxUploadSize, cfg.Storage.MaxWidth),
		Uploader:      deps.Uploader,
		CookieSecure:  cfg.Session.CookieSecure,
		MaxUploadSize: cfg.Storage.MaxUploadSize,
	})

	api := r.Group("/api", middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:            cfg.Security.EnableHSTS,
		HSTSMaxAge:            cfg.Security.HSTSMaxAge,
		ContentSecurityPolicy: middleware.APICSP,
	}))
	pub := api.Group("", limitBody(jsonBodyLimit))
	{
		pub.GET("/rates", h.GetRates)
		pub.GET("/posts", h.ListPublishedPosts)
		pub.GET("/posts/:slug", h.GetPublishedPost)
		pub.POST("/posts/:slug/view", h.RecordView)
	}

	adminHeaders := middleware.SecurityOptions{
		EnableHSTS:     cfg.Security.EnableHSTS,
		HSTSMaxAge:     cfg.Security.HSTSMaxAge,
		NoStore:        true,
		ReferrerPolicy: "no-referrer",
	}
	loginRL := middleware.NewRateLimiter("login", loginRPS, loginBurst, middleware.KeyByIP())
	adm := api.Group("/admin", middleware.SecurityHeaders(withCSP(adminHeaders, middleware.APICSP)))
	{
		adm.POST("/login", limitBody(jsonBodyLimit), loginRL.Handler(), h.Login)
		adm.POST("/logout", h.Logout)

		// Keyed by admin subject, so it has to run after RequireSession.
		adminRL := middleware.NewRateLimiter("admin", cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
		sec := adm.Group("", middleware.RequireSession(sessions), adminRL.Handler())
		sec.POST("/uploads", limitBody(cfg.Storage.MaxUploadSize+jsonBodyLimit), h.UploadImage)

		js := sec.Group("", limitBody(jsonBodyLimit))
		js.GET("/session", h.Session)
		js.GET("/authors", h.ListAuthors)
		js.POST("/authors", h.CreateAuthor)
		js.GET("/posts", h.ListPosts)
		js.POST("/posts", h.CreatePost)
		js.PUT("/posts/:id", h.UpdatePost)
		js.DELETE("/posts/:id", h.DeletePost)
		js.POST("/rates/invalidate", h.InvalidateRates)
	}

	ui := r.Group("/admin",
		middleware.SessionGate(sessions, middleware.GateOptions{Prefix: "/admin", AllowPrefixes: []string{"/admin/assets/"}}),
		middleware.SecurityHeaders(withCSP(adminHeaders, middleware.AdminCSP)),
	)
	ui.GET("/*filepath", adminUI(cfg.Hosts.AdminUIDir))
}

// Login attempts per client IP: a burst of 5, then one every 5s.
const (
	loginRPS   = 0.2
	loginBurst = 5
)

func withCSP(o middleware.SecurityOptions, csp string) middleware.SecurityOptions {
	o.ContentSecurityPolicy = csp
	return o
}

// viewReceiptLookup reports whether a view beacon key was already counted
// for slug inside the dedup window.
func viewReceiptLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, slug, key string, now time.Time) (bool, error) {
		_, err := repo.GetViewReceipt(ctx, db, slug, key, now)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, repo.ErrNotFound):
			return false, nil
		default:
			return false, err
		}
	}
}

// corsMiddleware allows any origin without credentials when origins is
// empty. Otherwise only the listed origins are allowed, with credentials so
// the admin UI can send its session cookie.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", middleware.HeaderIdempotencyKey, "If-None-Match"},
		ExposeHeaders: []string{"X-Request-ID", "Content-Length", "ETag", "Idempotent-Replay", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		base.AllowAllOrigins = true
		return []gin.HandlerFunc{
			// ACAO: * even without an Origin header, for curl and uptime checks.
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}
	base.AllowOrigins = origins
	base.AllowCredentials = true
	return []gin.HandlerFunc{cors.New(base)}
}

// adminUI serves the static admin bundle from dir. Unknown paths fall back to
// index.html so client-side routes resolve. Without a bundle it answers 404.
func adminUI(dir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if dir == "" {
			handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "admin UI not deployed")
			return
		}
		rel := path.Clean("/" + c.Param("filepath"))
		full := filepath.Join(dir, filepath.FromSlash(rel))
		if !strings.HasPrefix(full, filepath.Clean(dir)) {
			handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "not found")
			return
		}
		if st, err := os.Stat(full); err == nil && !st.IsDir() {
			c.File(full)
			return
		}
		c.File(filepath.Join(dir, "index.html"))
	}
}

// limitBody returns a Gin middleware that caps the request body size to
// maxBytes using http.MaxBytesReader. Requests exceeding the cap will cause
// downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
