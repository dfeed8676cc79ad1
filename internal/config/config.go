// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database access, admin sessions, host
// policy, exchange-rate caching, object storage, rate limiting, and
// observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "hesapla-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DatabaseConfig selects the relational store.
type DatabaseConfig struct {
	Driver string // sqlite|postgres
	Path   string // SQLite file path
	URL    string // Postgres DSN
}

// SessionConfig defines admin session signing and the single admin credential.
type SessionConfig struct {
	Secret            string        // SESSION_SECRET (HMAC key)
	TTL               time.Duration // SESSION_TTL
	CookieSecure      bool          // SESSION_COOKIE_SECURE
	AdminEmail        string        // ADMIN_EMAIL
	AdminPasswordHash string        // ADMIN_PASSWORD_HASH (bcrypt)
}

// HostConfig defines the canonical origin and the preview hosts that must be
// redirected to it.
type HostConfig struct {
	CanonicalOrigin string   // e.g. https://www.example.com.tr
	PreviewHosts    []string // exact hosts or "*.suffix" patterns
	AdminUIDir      string   // static admin UI bundle served under /admin
}

// RatesConfig defines the exchange-rate source, cache policy and fallback.
type RatesConfig struct {
	URL         string
	Timeout     time.Duration
	TTL         time.Duration
	RefreshCron string // empty disables scheduled refresh
	FallbackUSD decimal.Decimal
	FallbackEUR decimal.Decimal

	RedisAddr     string // empty keeps the cache in process memory
	RedisPassword string
	RedisDB       int
}

// ContentConfig holds blog content tunables.
type ContentConfig struct {
	ReadingWPM   int           // words per minute for reading time
	ViewDedupTTL time.Duration // how long a view Idempotency-Key is remembered
}

// StorageConfig defines the S3-compatible bucket fronted by the CDN.
type StorageConfig struct {
	Endpoint      string // empty disables uploads
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PublicBaseURL string // CDN base URL used to build returned links
	MaxUploadSize int64
	MaxWidth      int
}

// Enabled reports whether object storage is configured.
func (s StorageConfig) Enabled() bool { return strings.TrimSpace(s.Endpoint) != "" }

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route

	DB      DatabaseConfig
	Session SessionConfig
	Hosts   HostConfig
	Rates   RatesConfig
	Content ContentConfig
	Storage StorageConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),

		DB: DatabaseConfig{
			Driver: strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			Path:   getenv("DB_PATH", "app.db"),
			URL:    getenv("DATABASE_URL", ""),
		},

		Session: SessionConfig{
			Secret:            getenv("SESSION_SECRET", ""),
			TTL:               getdur("SESSION_TTL", 7*24*time.Hour),
			CookieSecure:      getbool("SESSION_COOKIE_SECURE", true),
			AdminEmail:        strings.TrimSpace(getenv("ADMIN_EMAIL", "")),
			AdminPasswordHash: getenv("ADMIN_PASSWORD_HASH", ""),
		},

		Hosts: HostConfig{
			CanonicalOrigin: strings.TrimRight(getenv("CANONICAL_ORIGIN", ""), "/"),
			PreviewHosts:    splitCSV(getenv("PREVIEW_HOSTS", "")),
			AdminUIDir:      getenv("ADMIN_UI_DIR", ""),
		},

		Rates: RatesConfig{
			URL:         getenv("RATES_URL", "https://www.tcmb.gov.tr/kurlar/today.xml"),
			Timeout:     getdur("RATES_TIMEOUT", 8*time.Second),
			TTL:         getdur("RATES_TTL", time.Hour),
			RefreshCron: getenv("RATES_REFRESH_CRON", "@every 1h"),
			FallbackUSD: getdecimal("RATES_FALLBACK_USD", decimal.RequireFromString("41.50")),
			FallbackEUR: getdecimal("RATES_FALLBACK_EUR", decimal.RequireFromString("48.20")),

			RedisAddr:     getenv("REDIS_ADDR", ""),
			RedisPassword: getenv("REDIS_PASSWORD", ""),
			RedisDB:       getint("REDIS_DB", 0),
		},

		Content: ContentConfig{
			ReadingWPM:   getint("READING_WPM", 200),
			ViewDedupTTL: getdur("VIEW_DEDUP_TTL", 30*time.Minute),
		},

		Storage: StorageConfig{
			Endpoint:      getenv("STORAGE_ENDPOINT", ""),
			AccessKey:     getenv("STORAGE_ACCESS_KEY", ""),
			SecretKey:     getenv("STORAGE_SECRET_KEY", ""),
			Bucket:        getenv("STORAGE_BUCKET", "media"),
			UseSSL:        getbool("STORAGE_USE_SSL", true),
			PublicBaseURL: strings.TrimRight(getenv("STORAGE_PUBLIC_BASE_URL", ""), "/"),
			MaxUploadSize: int64(getint("STORAGE_MAX_UPLOAD_BYTES", 8<<20)),
			MaxWidth:      getint("STORAGE_MAX_WIDTH", 1600),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "hesapla-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.DB.Driver == "postgresql" || cfg.DB.Driver == "pg" {
		cfg.DB.Driver = "postgres"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DB.Driver {
	case "sqlite":
		if strings.TrimSpace(cfg.DB.Path) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DB.URL) == "" {
			return cfg, errors.New("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	if len(cfg.Session.Secret) < 32 {
		return cfg, errors.New("SESSION_SECRET must be at least 32 bytes")
	}
	if cfg.Session.TTL <= 0 {
		return cfg, errors.New("SESSION_TTL must be > 0")
	}
	if cfg.Session.AdminEmail == "" || cfg.Session.AdminPasswordHash == "" {
		return cfg, errors.New("ADMIN_EMAIL and ADMIN_PASSWORD_HASH must be set")
	}
	if len(cfg.Hosts.PreviewHosts) > 0 && cfg.Hosts.CanonicalOrigin == "" {
		return cfg, errors.New("CANONICAL_ORIGIN is required when PREVIEW_HOSTS is set")
	}
	if strings.TrimSpace(cfg.Rates.URL) == "" {
		return cfg, errors.New("RATES_URL must not be empty")
	}
	if cfg.Rates.Timeout <= 0 || cfg.Rates.TTL <= 0 {
		return cfg, errors.New("RATES_TIMEOUT and RATES_TTL must be > 0")
	}
	if !cfg.Rates.FallbackUSD.IsPositive() || !cfg.Rates.FallbackEUR.IsPositive() {
		return cfg, errors.New("RATES_FALLBACK_USD and RATES_FALLBACK_EUR must be positive")
	}
	if cfg.Content.ReadingWPM < 1 {
		return cfg, errors.New("READING_WPM must be >= 1")
	}
	if cfg.Content.ViewDedupTTL <= 0 {
		return cfg, errors.New("VIEW_DEDUP_TTL must be > 0")
	}
	if cfg.Storage.Enabled() {
		if cfg.Storage.Bucket == "" || cfg.Storage.PublicBaseURL == "" {
			return cfg, errors.New("STORAGE_BUCKET and STORAGE_PUBLIC_BASE_URL are required when STORAGE_ENDPOINT is set")
		}
		if cfg.Storage.MaxUploadSize <= 0 || cfg.Storage.MaxWidth <= 0 {
			return cfg, errors.New("STORAGE_MAX_UPLOAD_BYTES and STORAGE_MAX_WIDTH must be > 0")
		}
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getdecimal(k string, def decimal.Decimal) decimal.Decimal {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := decimal.NewFromString(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
