// Package handlers provides HTTP handler implementations for the public API
// and the admin content API.
//
// Handlers are transport-thin: they validate input, call application
// services through the narrow interfaces declared below, and translate
// results into HTTP responses (including conditional responses).
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/hesapla-backend/internal/auth"
	"github.com/tbourn/hesapla-backend/internal/domain"
	"github.com/tbourn/hesapla-backend/internal/http/middleware"
	"github.com/tbourn/hesapla-backend/internal/rates"
	"github.com/tbourn/hesapla-backend/internal/services"
	"github.com/tbourn/hesapla-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// AuthorService defines author operations consumed by HTTP handlers.
type AuthorService interface {
	// List returns every author sorted by name.
	List(ctx context.Context) ([]domain.Author, error)
	// Create validates and stores a new author on behalf of actor.
	Create(ctx context.Context, actor auth.Identity, in services.AuthorInput) (*domain.Author, error)
}

// PostService defines post operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type PostService interface {
	Create(ctx context.Context, actor auth.Identity, in services.CreatePostInput) (*domain.Post, error)
	Update(ctx context.Context, actor auth.Identity, id string, in services.UpdatePostInput) (*domain.Post, error)
	Delete(ctx context.Context, actor auth.Identity, id string) error
	// ListAll returns every post, newest first, for the admin list.
	ListAll(ctx context.Context) ([]domain.Post, error)
	// ListPublished returns a page of published posts and the total count.
	ListPublished(ctx context.Context, page, pageSize int) ([]domain.Post, int64, error)
	GetPublished(ctx context.Context, slug string) (*domain.Post, error)
	// PublishedStats returns the number of published posts and the latest
	// update time, used to build list ETags.
	PublishedStats(ctx context.Context) (int64, *time.Time, error)
}

// ViewService records page views.
type ViewService interface {
	// Record increments the view count of slug; replayed reports a deduped key.
	Record(ctx context.Context, slug, key string) (replayed bool, err error)
}

// SessionIssuer mints admin session tokens.
type SessionIssuer interface {
	Issue(email string) (token string, expiresAt time.Time, err error)
}

// CredentialVerifier checks an admin login.
type CredentialVerifier interface {
	Verify(email, password string) error
}

// RateSource serves the cached exchange-rate snapshot.
type RateSource interface {
	Get(ctx context.Context) rates.Snapshot
	Invalidate(ctx context.Context, tag string) (int, error)
}

// ImageOptimizer validates and re-encodes uploaded images.
type ImageOptimizer interface {
	Optimize(data []byte) ([]byte, error)
}

// ImageUploader stores an optimized image and returns its public URL.
type ImageUploader interface {
	UploadImage(ctx context.Context, data []byte) (string, error)
}

//
// Handler wiring
//

// Deps lists the collaborators of Handlers. Uploader may be nil when object
// storage is not configured; the upload endpoint then answers 503.
type Deps struct {
	Authors     AuthorService
	Posts       PostService
	Views       ViewService
	Sessions    SessionIssuer
	Credentials CredentialVerifier
	Rates       RateSource
	Images      ImageOptimizer
	Uploader    ImageUploader

	// CookieSecure marks the session cookie Secure (HTTPS only).
	CookieSecure bool
	// MaxUploadSize caps multipart uploads in bytes.
	MaxUploadSize int64
}

// Handlers groups HTTP endpoints for sessions, authors, posts, views,
// uploads and exchange rates.
type Handlers struct {
	d Deps
}

// New constructs and returns a Handlers instance bound to the given services.
func New(d Deps) *Handlers {
	if d.MaxUploadSize <= 0 {
		d.MaxUploadSize = 8 << 20
	}
	return &Handlers{d: d}
}

//
// Helpers
//

// actor returns the admin identity verified by middleware.RequireSession.
// When the route was mounted without the gate it answers 401 itself.
func actor(c *gin.Context) (auth.Identity, bool) {
	id, ok := middleware.SessionFrom(c)
	if !ok {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, msgAuth)
		return auth.Identity{}, false
	}
	return id, true
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
}

// clampPagination reads page and page_size, bounded by utils.ParseWindow.
func clampPagination(c *gin.Context) (page, pageSize int) {
	w := utils.ParseWindow(c.Query("page"), c.Query("page_size"))
	return w.Page, w.PageSize
}

func newPagination(page, pageSize int, total int64) Pagination {
	w := utils.NewWindow(page, pageSize)
	totalPages := w.TotalPages(total)
	return Pagination{
		Page:       w.Page,
		PageSize:   w.PageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    w.Page < totalPages,
	}
}
