package config

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// setRequired sets the variables without which Load refuses to start.
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("SESSION_SECRET", testSecret)
	t.Setenv("ADMIN_EMAIL", "admin@example.com")
	t.Setenv("ADMIN_PASSWORD_HASH", "$2a$10$abcdefghijklmnopqrstuv")
}

// --- MustLoad ---

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	setRequired(t)
	t.Setenv("LOG_LEVEL", "verbose") // invalid -> Load() error
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

// --- Load success + normalization + parsing ---

func TestLoad_Success_DefaultsAndOverrides(t *testing.T) {
	setRequired(t)

	// Server
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("READ_HEADER_TIMEOUT", "1s")
	t.Setenv("WRITE_TIMEOUT", "3s")
	t.Setenv("IDLE_TIMEOUT", "4s")
	t.Setenv("MAX_HEADER_BYTES", "8192")
	t.Setenv("GIN_MODE", "weird") // will normalize to "release"

	// Logging / Docs
	t.Setenv("LOG_LEVEL", "warning") // will normalize to "warn"
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("SWAGGER_ENABLED", "on")

	// Database
	t.Setenv("DB_DRIVER", "PG")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/app")

	// Host policy
	t.Setenv("CANONICAL_ORIGIN", "https://www.example.com.tr/")
	t.Setenv("PREVIEW_HOSTS", "*.vercel.app, preview.example.com")

	// Rates
	t.Setenv("RATES_TIMEOUT", "3s")
	t.Setenv("RATES_FALLBACK_USD", "40.1")
	t.Setenv("RATES_FALLBACK_EUR", "oops") // -> default 48.20
	t.Setenv("RATES_REFRESH_CRON", "@every 30m")

	// Content
	t.Setenv("READING_WPM", "250")
	t.Setenv("VIEW_DEDUP_TTL", "1h")

	// Rate limiting (use invalids for parse to fall back to defaults)
	t.Setenv("RATE_RPS", "x")      // -> default 5.0
	t.Setenv("RATE_BURST", "nope") // -> default 10

	// Web protection
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("ENABLE_HSTS", "TRUE")
	t.Setenv("HSTS_MAX_AGE", "24h")

	// OTEL
	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "0")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// Server
	if cfg.Port != "8088" ||
		cfg.ReadTimeout != 2*time.Second ||
		cfg.ReadHeaderTimeout != 1*time.Second ||
		cfg.WriteTimeout != 3*time.Second ||
		cfg.IdleTimeout != 4*time.Second ||
		cfg.MaxHeaderBytes != 8192 ||
		cfg.GinMode != "release" {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}

	if cfg.LogLevel != "warn" || !cfg.LogPretty || !cfg.SwaggerEnabled {
		t.Fatalf("logging/docs unexpected: %+v", cfg)
	}

	if cfg.DB.Driver != "postgres" || cfg.DB.URL == "" {
		t.Fatalf("db unexpected: %+v", cfg.DB)
	}

	if cfg.Hosts.CanonicalOrigin != "https://www.example.com.tr" {
		t.Fatalf("canonical origin should drop trailing slash: %q", cfg.Hosts.CanonicalOrigin)
	}
	if !reflect.DeepEqual(cfg.Hosts.PreviewHosts, []string{"*.vercel.app", "preview.example.com"}) {
		t.Fatalf("preview hosts unexpected: %#v", cfg.Hosts.PreviewHosts)
	}

	if cfg.Rates.Timeout != 3*time.Second || cfg.Rates.TTL != time.Hour || cfg.Rates.RefreshCron != "@every 30m" {
		t.Fatalf("rates unexpected: %+v", cfg.Rates)
	}
	if cfg.Rates.FallbackUSD.String() != "40.1" || cfg.Rates.FallbackEUR.String() != "48.2" {
		t.Fatalf("fallbacks unexpected: usd=%s eur=%s", cfg.Rates.FallbackUSD, cfg.Rates.FallbackEUR)
	}

	if cfg.Content.ReadingWPM != 250 || cfg.Content.ViewDedupTTL != time.Hour {
		t.Fatalf("content unexpected: %+v", cfg.Content)
	}

	if cfg.RateRPS != 5.0 || cfg.RateBurst != 10 {
		t.Fatalf("rate limiting unexpected: %+v", cfg)
	}

	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("cors origins unexpected: %#v", cfg.CORS.AllowedOrigins)
	}
	if !cfg.Security.EnableHSTS || cfg.Security.HSTSMaxAge != 24*time.Hour {
		t.Fatalf("security unexpected: %+v", cfg.Security)
	}

	if !cfg.OTEL.Enabled || cfg.OTEL.Endpoint != "otel:4317" || cfg.OTEL.Insecure || cfg.OTEL.ServiceName != "svc" || cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("otel unexpected: %+v", cfg.OTEL)
	}
	if cfg.Storage.Enabled() {
		t.Fatalf("storage should be disabled without STORAGE_ENDPOINT")
	}
}

// --- Load validations (each case triggers exactly one validation error) ---

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"invalid LOG_LEVEL", map[string]string{"LOG_LEVEL": "verbose"}, "LOG_LEVEL"},
		{"non-positive timeout", map[string]string{"READ_TIMEOUT": "0s"}, "timeouts"},
		{"bad MAX_HEADER_BYTES", map[string]string{"MAX_HEADER_BYTES": "-1"}, "MAX_HEADER_BYTES"},
		{"unknown driver", map[string]string{"DB_DRIVER": "mongo"}, "DB_DRIVER"},
		{"postgres without url", map[string]string{"DB_DRIVER": "postgres"}, "DATABASE_URL"},
		{"short secret", map[string]string{"SESSION_SECRET": "short"}, "SESSION_SECRET"},
		{"preview without canonical", map[string]string{"PREVIEW_HOSTS": "*.vercel.app"}, "CANONICAL_ORIGIN"},
		{"negative fallback", map[string]string{"RATES_FALLBACK_USD": "-3"}, "RATES_FALLBACK"},
		{"zero wpm", map[string]string{"READING_WPM": "0"}, "READING_WPM"},
		{"storage without public url", map[string]string{"STORAGE_ENDPOINT": "minio:9000"}, "STORAGE_PUBLIC_BASE_URL"},
		{"negative RATE_RPS", map[string]string{"RATE_RPS": "-1"}, "RATE_RPS"},
		{"zero RATE_BURST", map[string]string{"RATE_BURST": "0"}, "RATE_BURST"},
		{"sample ratio out of range", map[string]string{"OTEL_TRACES_SAMPLER_ARG": "1.5"}, "OTEL_TRACES_SAMPLER_ARG"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatalf("expected error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoad_MissingAdminCredentials(t *testing.T) {
	t.Setenv("SESSION_SECRET", testSecret)
	t.Setenv("ADMIN_EMAIL", "")
	t.Setenv("ADMIN_PASSWORD_HASH", "")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "ADMIN_EMAIL") {
		t.Fatalf("expected admin credential error, got %v", err)
	}
}

// --- helpers ---

func TestSplitCSV(t *testing.T) {
	if got := splitCSV(""); got != nil {
		t.Fatalf("empty input should yield nil, got %#v", got)
	}
	if got := splitCSV(" a, ,b ,"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("splitCSV mismatch: %#v", got)
	}
}

func TestGetbool_UnknownFallsBack(t *testing.T) {
	t.Setenv("X_FLAG", "maybe")
	if !getbool("X_FLAG", true) || getbool("X_FLAG", false) {
		t.Fatalf("unrecognized values must return the default")
	}
}
