package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/clinic/registry/internal/config"
	"github.com/clinic/registry/internal/domain/patient"
	"github.com/clinic/registry/internal/platform/db"
	"github.com/clinic/registry/internal/platform/metrics"
	"github.com/clinic/registry/internal/platform/middleware"
)

const version = "0.1.0"

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger.Level(cfg.Level())
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, pool, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open store")
		return err
	}
	if pool != nil {
		defer pool.Close()
	}
	logger.Info().Str("driver", cfg.StoreDriver).Msg("store ready")

	policy, err := patient.ParseMismatchPolicy(cfg.AgeMismatchPolicy)
	if err != nil {
		return err
	}
	m := metrics.New()
	svc := patient.NewService(repo, patient.NewEngine(patient.WithMismatchPolicy(policy)),
		patient.WithLogger(logger.With().Str("component", "registry").Logger()),
		patient.WithMetrics(m),
	)

	if cfg.SeedSampleData {
		n, err := svc.Seed(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("failed to seed sample patients")
			return err
		}
		logger.Info().Int("created", n).Msg("sample patients seeded")
	}
	if err := svc.SyncRecordGauge(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to read initial record count")
	}

	e := newServer(cfg, logger, svc, m, pool)

	addr := fmt.Sprintf(":%s", cfg.Port)
	go func() {
		logger.Info().Str("addr", addr).Str("version", version).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server failed")
			stop()
		}
	}()

	<-ctx.Done()

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// openStore returns the configured repository. The pool is nil for the
// in-memory store.
func openStore(ctx context.Context, cfg *config.Config) (patient.Repository, *pgxpool.Pool, error) {
	if cfg.StoreDriver != config.StorePostgres {
		return patient.NewMemoryRepo(), nil, nil
	}
	pool, err := db.NewPool(ctx, db.PoolConfig{
		URL:            cfg.DatabaseURL,
		MaxConns:       cfg.DBMaxConns,
		MinConns:       cfg.DBMinConns,
		ConnectTimeout: 10 * time.Second,
	})
	if err != nil {
		return nil, nil, err
	}
	return patient.NewPostgresRepo(pool), pool, nil
}

// newServer assembles the HTTP surface. pool may be nil, in which case
// /health/db is not registered.
func newServer(cfg *config.Config, logger zerolog.Logger, svc *patient.Service, m *metrics.Metrics, pool *pgxpool.Pool) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(m.Middleware())
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:  []string{echo.HeaderContentType, middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader, patient.AdvisoryHeader, patient.TotalHeader, patient.LinkHeader},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout, "/metrics"))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	if pool != nil {
		e.GET("/health/db", db.HealthHandler(pool, func() db.PoolStats { return db.GetPoolStats(pool) }))
	}
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	api := e.Group(cfg.APIPrefix)
	api.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))
	api.Use(middleware.Audit(cfg.APIPrefix+"/patients", "hn",
		middleware.LogRecorder(logger.With().Str("component", "audit").Logger())))

	patient.NewHandler(svc, cfg.MaxPhotoBytes).RegisterRoutes(api)
	return e
}
