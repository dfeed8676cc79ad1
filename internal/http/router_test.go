package httpapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/hesapla-backend/internal/auth"
	"github.com/tbourn/hesapla-backend/internal/config"
	"github.com/tbourn/hesapla-backend/internal/domain"
	"github.com/tbourn/hesapla-backend/internal/http/middleware"
	"github.com/tbourn/hesapla-backend/internal/rates"
	"github.com/tbourn/hesapla-backend/internal/repo"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// --- tiny fake rate source ---
type fakeRates struct{}

func (fakeRates) Get(context.Context) rates.Snapshot {
	return rates.Snapshot{
		EUR:    decimal.RequireFromString("48.2"),
		USD:    decimal.RequireFromString("41.5"),
		Date:   "19.10.2026",
		Source: rates.SourceFallback,
	}
}

func (fakeRates) Invalidate(context.Context, string) (int, error) { return 1, nil }

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:router_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
		t.Cleanup(func() { _ = sqlDB.Close() })
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{
		RateRPS:   100,
		RateBurst: 50,
		CORS:      config.CORSConfig{AllowedOrigins: nil}, // triggers AllowAllOrigins branch
		Security:  config.SecurityConfig{EnableHSTS: false, HSTSMaxAge: 0},
		OTEL:      config.OTELConfig{ServiceName: "test-svc"},
		Session:   config.SessionConfig{Secret: testSecret, TTL: time.Hour},
		Content:   config.ContentConfig{ReadingWPM: 200, ViewDedupTTL: 30 * time.Minute},
		Storage:   config.StorageConfig{MaxUploadSize: 8 << 20, MaxWidth: 1600},
	}
}

func newRouter(t *testing.T, cfg config.Config) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	db := newTestDB(t)
	RegisterRoutes(r, db, Deps{Rates: fakeRates{}}, cfg)
	return r, db
}

func sessionCookie(t *testing.T) *http.Cookie {
	t.Helper()
	tok, _, err := auth.NewSessions(testSecret, time.Hour).Issue("admin@example.com")
	if err != nil {
		t.Fatal(err)
	}
	return &http.Cookie{Name: auth.CookieName, Value: tok}
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	r, _ := newRouter(t, testConfig())

	// /health works
	w := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	// CORS (AllowAllOrigins) → header "*"
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	// /metrics is wired
	w = serve(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || len(w.Body.Bytes()) == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// NoRoute → 404
	if w = serve(r, httptest.NewRequest(http.MethodGet, "/nope", nil)); w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}

	// NoMethod → 405 (POST /health)
	if w = serve(r, httptest.NewRequest(http.MethodPost, "/health", nil)); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}

	// swagger is opt-in
	if w = serve(r, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil)); w.Code != http.StatusNotFound {
		t.Fatalf("swagger should be disabled, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEchoAndCredentials(t *testing.T) {
	cfg := testConfig()
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"https://panel.example.com.tr"}}
	r, _ := newRouter(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://panel.example.com.tr")
	w := serve(r, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://panel.example.com.tr" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Fatalf("expected credentials allowed for listed origin, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.net")
	if w = serve(r, req); w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("unlisted origin was allowed")
	}
}

func TestRegisterRoutes_PreviewHostRedirectsFirst(t *testing.T) {
	cfg := testConfig()
	cfg.Hosts = config.HostConfig{CanonicalOrigin: "https://www.example.com.tr", PreviewHosts: []string{"*.vercel.app"}}
	r, _ := newRouter(t, cfg)

	// even an admin path is redirected without a session check
	req := httptest.NewRequest(http.MethodGet, "/admin/posts?draft=1", nil)
	req.Host = "hesapla-git-main.vercel.app"
	w := serve(r, req)
	if w.Code != http.StatusMovedPermanently {
		t.Fatalf("status=%d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "https://www.example.com.tr/admin/posts?draft=1" {
		t.Fatalf("location=%q", loc)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Host = "www.example.com.tr"
	if w = serve(r, req); w.Code != http.StatusOK {
		t.Fatalf("canonical host should pass, got %d", w.Code)
	}
}

func TestRegisterRoutes_AdminGateAndUI(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>admin</html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "assets"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "assets", "app.js"), []byte("console.log(1)"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := testConfig()
	cfg.Hosts.AdminUIDir = dir
	r, _ := newRouter(t, cfg)

	// unauthenticated → login with callback
	w := serve(r, httptest.NewRequest(http.MethodGet, "/admin/posts?draft=1", nil))
	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status=%d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/admin/login?callbackUrl=%2Fadmin%2Fposts%3Fdraft%3D1" {
		t.Fatalf("location=%q", loc)
	}

	// login page and its assets are public
	w = serve(r, httptest.NewRequest(http.MethodGet, "/admin/login", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "admin") {
		t.Fatalf("login page status=%d body=%q", w.Code, w.Body.String())
	}
	if csp := w.Header().Get("Content-Security-Policy"); csp != middleware.AdminCSP {
		t.Fatalf("admin CSP missing: %q", csp)
	}
	if w = serve(r, httptest.NewRequest(http.MethodGet, "/admin/assets/app.js", nil)); w.Code != http.StatusOK {
		t.Fatalf("asset status=%d", w.Code)
	}

	// with a session the SPA index is served for client routes
	req := httptest.NewRequest(http.MethodGet, "/admin/posts/new", nil)
	req.AddCookie(sessionCookie(t))
	w = serve(r, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "admin") {
		t.Fatalf("authed status=%d", w.Code)
	}
	if w.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("admin pages must not be cached")
	}
}

func TestRegisterRoutes_AdminAPIRequiresSession(t *testing.T) {
	r, _ := newRouter(t, testConfig())

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/admin/authors", nil))
	if w.Code != http.StatusUnauthorized || !strings.Contains(w.Body.String(), `"code":"unauthorized"`) {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if w.Header().Get("Cache-Control") != "no-store" || w.Header().Get("Content-Security-Policy") != middleware.APICSP {
		t.Fatalf("admin API headers: %v", w.Header())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/authors", nil)
	req.AddCookie(sessionCookie(t))
	if w = serve(r, req); w.Code != http.StatusOK {
		t.Fatalf("authed status=%d body=%s", w.Code, w.Body.String())
	}

	// uploads answer 503 when no object store is configured
	req = httptest.NewRequest(http.MethodPost, "/api/admin/uploads", bytes.NewBufferString(""))
	req.AddCookie(sessionCookie(t))
	if w = serve(r, req); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("upload status=%d", w.Code)
	}
}

func TestRegisterRoutes_LoginIsRateLimitedPerIP(t *testing.T) {
	r, _ := newRouter(t, testConfig())

	var last int
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/login", strings.NewReader(`{"email":"a@b.co","password":"x"}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "198.51.100.7:5555"
		last = serve(r, req).Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("6th login attempt expected 429, got %d", last)
	}
}

func TestRegisterRoutes_AdminLimiterKeysBySession(t *testing.T) {
	cfg := testConfig()
	cfg.RateRPS, cfg.RateBurst = 0.001, 1
	r, _ := newRouter(t, cfg)
	cookie := sessionCookie(t)

	get := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/session", nil)
		req.RemoteAddr = ip + ":443"
		req.AddCookie(cookie)
		return serve(r, req)
	}

	if w := get("198.51.100.20"); w.Code != http.StatusOK {
		t.Fatalf("first admin call = %d", w.Code)
	}
	// Fresh IP, so the global bucket is full; the admin bucket is shared by session.
	w := get("198.51.100.21")
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") == "" {
		t.Fatalf("same session from a new IP: status=%d retry=%q", w.Code, w.Header().Get("Retry-After"))
	}
}

func TestRegisterRoutes_ViewBeaconDedupThroughLookup(t *testing.T) {
	r, db := newRouter(t, testConfig())
	ctx := t.Context()

	a := &domain.Author{Name: "Elif"}
	if err := repo.CreateAuthor(ctx, db, a); err != nil {
		t.Fatal(err)
	}
	now := time.Now().UTC()
	p := &domain.Post{Title: "t", Slug: "kidem", Content: "c", AuthorID: a.ID, Published: true, PublishedAt: &now, CTAType: domain.CTANone}
	if err := repo.CreatePost(ctx, db, p); err != nil {
		t.Fatal(err)
	}

	fire := func(key string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/posts/kidem/view", nil)
		if key != "" {
			req.Header.Set(middleware.HeaderIdempotencyKey, key)
		}
		return serve(r, req).Code
	}
	for _, key := range []string{"load-1", "load-1", "load-1", "load-2", ""} {
		if code := fire(key); code != http.StatusOK {
			t.Fatalf("beacon %q status=%d", key, code)
		}
	}

	got, err := repo.GetPublishedPost(ctx, db, "kidem")
	if err != nil {
		t.Fatal(err)
	}
	if got.Views != 3 {
		t.Fatalf("views=%d want 3 (load-1 once, load-2 once, keyless once)", got.Views)
	}

	if code := fire(""); code != http.StatusOK {
		t.Fatalf("status=%d", code)
	}
	if w := serve(r, httptest.NewRequest(http.MethodPost, "/api/posts/yok/view", nil)); w.Code != http.StatusNotFound {
		t.Fatalf("unknown slug status=%d", w.Code)
	}
}

func TestRegisterRoutes_RatesAndGzip(t *testing.T) {
	r, _ := newRouter(t, testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/rates", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := serve(r, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip encoding, got %q", w.Header().Get("Content-Encoding"))
	}
	if w.Header().Get("Content-Security-Policy") != middleware.APICSP {
		t.Fatalf("public API CSP = %q", w.Header().Get("Content-Security-Policy"))
	}
	if w.Header().Get("Referrer-Policy") != "strict-origin-when-cross-origin" {
		t.Fatalf("Referrer-Policy = %q", w.Header().Get("Referrer-Policy"))
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// tiny cap to trigger MaxBytesReader
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := serve(r, httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB"))) // 12 bytes
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_authorRepoShim_Proxies(t *testing.T) {
	db := newTestDB(t)
	shim := authorRepoShim{}
	ctx := t.Context()

	for _, name := range []string{"Zeynep", "Ayşe"} {
		if err := shim.CreateAuthor(ctx, db, &domain.Author{Name: name}); err != nil {
			t.Fatalf("CreateAuthor: %v", err)
		}
	}
	all, err := shim.ListAuthors(ctx, db)
	if err != nil {
		t.Fatalf("ListAuthors: %v", err)
	}
	if len(all) != 2 || all[0].Name != "Ayşe" {
		t.Fatalf("ListAuthors unexpected: %+v", all)
	}
}
