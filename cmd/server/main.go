// Command server runs the hesapla backend: exchange rates for the
// calculators, the public blog API and the admin content API.
//
// @title        Hesapla Backend API
// @version      1.0
// @description  Exchange rates for the labor-law calculators, the public blog and the admin content API.
// @BasePath     /api
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/hesapla-backend/internal/auth"
	"github.com/tbourn/hesapla-backend/internal/config"
	httpapi "github.com/tbourn/hesapla-backend/internal/http"
	"github.com/tbourn/hesapla-backend/internal/observability"
	"github.com/tbourn/hesapla-backend/internal/rates"
	"github.com/tbourn/hesapla-backend/internal/repo"
	"github.com/tbourn/hesapla-backend/internal/services"
	"github.com/tbourn/hesapla-backend/internal/storage"
	"github.com/tbourn/hesapla-backend/internal/sysutil"
)

const (
	shutdownTimeout = 15 * time.Second
	purgeSpec       = "@daily"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		if err := hashPassword(os.Stdin, os.Stdout); err != nil {
			log.Fatal().Err(err).Msg("hash-password")
		}
		return
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("could not read .env")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	sysutil.ConfigureLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty)
	version := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), "dev")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := openDB(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DB.Driver).Msg("database unavailable")
	}

	store := rateStore(ctx, cfg.Rates)
	fetcher := rates.NewFetcher(cfg.Rates.URL, cfg.Rates.Timeout, rates.Fallback{
		USD: cfg.Rates.FallbackUSD,
		EUR: cfg.Rates.FallbackEUR,
	})
	cache := rates.NewCache(fetcher, store, cfg.Rates.TTL)
	warm := cache.Get(ctx)
	log.Info().Str("source", string(warm.Source)).Str("date", warm.Date).Msg("rates: cache warmed")

	sched, err := rates.NewScheduler(
		rates.RefreshJob(cache, cfg.Rates.RefreshCron),
		purgeJob(services.NewViewService(db, cfg.Content.ViewDedupTTL), purgeSpec),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("scheduler setup failed")
	}
	sched.Start()

	deps := httpapi.Deps{Rates: cache}
	if cfg.Storage.Enabled() {
		up, err := storage.NewUploader(ctx, cfg.Storage)
		if err != nil {
			log.Fatal().Err(err).Str("bucket", cfg.Storage.Bucket).Msg("object storage unavailable")
		}
		deps.Uploader = up
	} else {
		log.Warn().Msg("STORAGE_ENDPOINT not set; image uploads disabled")
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, deps, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := sched.Stop(sctx); err != nil {
		log.Error().Err(err).Msg("scheduler shutdown")
	}
	if err := shutdownOTel(sctx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("server exited")
}

func openDB(cfg config.Config) (*gorm.DB, error) {
	db, err := repo.Open(cfg.DB)
	if err != nil {
		return nil, err
	}
	if cfg.OTEL.Enabled {
		if err := repo.UseTracing(db); err != nil {
			return nil, err
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// rateStore returns a Redis-backed store when configured and reachable,
// otherwise an in-process one.
func rateStore(ctx context.Context, cfg config.RatesConfig) rates.Store {
	if cfg.RedisAddr == "" {
		return rates.NewMemoryStore(time.Now)
	}
	rs := rates.NewRedisStore(rates.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB))

	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rs.Ping(pctx); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("rates: redis unreachable, using memory cache")
		_ = rs.Client.Close()
		return rates.NewMemoryStore(time.Now)
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("rates: redis cache connected")
	return rs
}

type viewPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// purgeJob deletes view receipts older than the dedup window.
func purgeJob(p viewPurger, spec string) rates.Job {
	return rates.Job{
		Name: "view-receipts-purge",
		Spec: spec,
		Run: func(ctx context.Context) {
			n, err := p.PurgeExpired(ctx)
			if err != nil {
				log.Error().Err(err).Msg("views: purge failed")
				return
			}
			log.Info().Int64("deleted", n).Msg("views: expired receipts purged")
		},
	}
}

// hashPassword reads one password line from r and writes its bcrypt hash,
// the value expected in ADMIN_PASSWORD_HASH.
func hashPassword(r io.Reader, w io.Writer) error {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return errors.New("empty password")
	}
	h, err := auth.HashPassword(pw)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, h)
	return err
}
