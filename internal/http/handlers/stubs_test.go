package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/hesapla-backend/internal/auth"
	"github.com/tbourn/hesapla-backend/internal/domain"
	"github.com/tbourn/hesapla-backend/internal/http/middleware"
	"github.com/tbourn/hesapla-backend/internal/rates"
	"github.com/tbourn/hesapla-backend/internal/services"
)

const goodToken = "good-token"

var testAdmin = auth.Identity{
	Subject:   "admin@example.com",
	Email:     "admin@example.com",
	ExpiresAt: time.Date(2026, 10, 26, 12, 0, 0, 0, time.UTC),
}

// stubVerifier accepts "Authorization: Bearer good-token".
type stubVerifier struct{}

func (stubVerifier) FromRequest(r *http.Request) (auth.Identity, error) {
	if r.Header.Get("Authorization") == "Bearer "+goodToken {
		return testAdmin, nil
	}
	return auth.Identity{}, auth.ErrUnauthorized
}

// ---------- service stubs ----------

type stubAuthors struct {
	list   func(context.Context) ([]domain.Author, error)
	create func(context.Context, auth.Identity, services.AuthorInput) (*domain.Author, error)
}

func (s stubAuthors) List(ctx context.Context) ([]domain.Author, error) {
	if s.list != nil {
		return s.list(ctx)
	}
	return nil, nil
}

func (s stubAuthors) Create(ctx context.Context, a auth.Identity, in services.AuthorInput) (*domain.Author, error) {
	if s.create != nil {
		return s.create(ctx, a, in)
	}
	return &domain.Author{ID: "a1", Name: in.Name}, nil
}

type stubPosts struct {
	create    func(context.Context, auth.Identity, services.CreatePostInput) (*domain.Post, error)
	update    func(context.Context, auth.Identity, string, services.UpdatePostInput) (*domain.Post, error)
	del       func(context.Context, auth.Identity, string) error
	listAll   func(context.Context) ([]domain.Post, error)
	listPub   func(context.Context, int, int) ([]domain.Post, int64, error)
	getPub    func(context.Context, string) (*domain.Post, error)
	pubStats  func(context.Context) (int64, *time.Time, error)
	listCalls int
}

func (s *stubPosts) Create(ctx context.Context, a auth.Identity, in services.CreatePostInput) (*domain.Post, error) {
	if s.create != nil {
		return s.create(ctx, a, in)
	}
	return &domain.Post{ID: "p1", Title: in.Title, Slug: in.Slug}, nil
}

func (s *stubPosts) Update(ctx context.Context, a auth.Identity, id string, in services.UpdatePostInput) (*domain.Post, error) {
	if s.update != nil {
		return s.update(ctx, a, id, in)
	}
	return &domain.Post{ID: id}, nil
}

func (s *stubPosts) Delete(ctx context.Context, a auth.Identity, id string) error {
	if s.del != nil {
		return s.del(ctx, a, id)
	}
	return nil
}

func (s *stubPosts) ListAll(ctx context.Context) ([]domain.Post, error) {
	if s.listAll != nil {
		return s.listAll(ctx)
	}
	return nil, nil
}

func (s *stubPosts) ListPublished(ctx context.Context, page, size int) ([]domain.Post, int64, error) {
	s.listCalls++
	if s.listPub != nil {
		return s.listPub(ctx, page, size)
	}
	return nil, 0, nil
}

func (s *stubPosts) GetPublished(ctx context.Context, slug string) (*domain.Post, error) {
	if s.getPub != nil {
		return s.getPub(ctx, slug)
	}
	return nil, services.ErrPostNotFound
}

func (s *stubPosts) PublishedStats(ctx context.Context) (int64, *time.Time, error) {
	if s.pubStats != nil {
		return s.pubStats(ctx)
	}
	return 0, nil, errors.New("no stats")
}

type stubViews struct {
	record func(context.Context, string, string) (bool, error)
	calls  int
}

func (s *stubViews) Record(ctx context.Context, slug, key string) (bool, error) {
	s.calls++
	if s.record != nil {
		return s.record(ctx, slug, key)
	}
	return false, nil
}

type stubRates struct {
	snap        rates.Snapshot
	invalidated []string
	err         error
}

func (s *stubRates) Get(context.Context) rates.Snapshot { return s.snap }

func (s *stubRates) Invalidate(_ context.Context, tag string) (int, error) {
	s.invalidated = append(s.invalidated, tag)
	return 1, s.err
}

// ---------- router + request helpers ----------

// newTestRouter mounts the handlers the way the real router does, minus the
// cross-cutting middleware.
func newTestRouter(t *testing.T, d Deps) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := New(d)
	r := gin.New()
	r.Use(middleware.RequestID())

	api := r.Group("/api")
	api.GET("/rates", h.GetRates)
	api.GET("/posts", h.ListPublishedPosts)
	api.GET("/posts/:slug", h.GetPublishedPost)
	api.POST("/posts/:slug/view",
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, nil),
		h.RecordView)

	adm := api.Group("/admin")
	adm.POST("/login", h.Login)
	adm.POST("/logout", h.Logout)

	sec := adm.Group("", middleware.RequireSession(stubVerifier{}))
	sec.GET("/session", h.Session)
	sec.GET("/authors", h.ListAuthors)
	sec.POST("/authors", h.CreateAuthor)
	sec.GET("/posts", h.ListPosts)
	sec.POST("/posts", h.CreatePost)
	sec.PUT("/posts/:id", h.UpdatePost)
	sec.DELETE("/posts/:id", h.DeletePost)
	sec.POST("/uploads", h.UploadImage)
	sec.POST("/rates/invalidate", h.InvalidateRates)
	return r
}

func do(r http.Handler, method, path string, body any, authed bool) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+goodToken)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeErr(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return er
}
