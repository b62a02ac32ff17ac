package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bryanwahyu/saqr/internal/application"
	aiapp "github.com/bryanwahyu/saqr/internal/application/ai"
	appinspections "github.com/bryanwahyu/saqr/internal/application/inspections"
	"github.com/bryanwahyu/saqr/internal/bootstrap"
	"github.com/bryanwahyu/saqr/internal/config"
	"github.com/bryanwahyu/saqr/internal/domain/inspection"
	"github.com/bryanwahyu/saqr/internal/domain/zones"
	mysqlp "github.com/bryanwahyu/saqr/internal/infra/db/mysql"
	pgp "github.com/bryanwahyu/saqr/internal/infra/db/postgres"
	"github.com/bryanwahyu/saqr/internal/infra/httpserver"
	"github.com/bryanwahyu/saqr/internal/infra/metrics"
	minioStore "github.com/bryanwahyu/saqr/internal/infra/storage"
	"github.com/bryanwahyu/saqr/internal/middleware"
)

type schemaRepository interface {
	inspection.Repository
	EnsureSchema(ctx context.Context) error
}

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("config load error")
	}
	bootstrap.SetupLogger(cfg, os.Stdout)

	ctx := context.Background()
	checkers := map[string]middleware.HealthChecker{}

	svc := &appinspections.Service{
		Zones: zones.NewCache(),
		Clock: application.SystemClock{},
		Deadlines: appinspections.Deadlines{
			Min:   cfg.Analysis.MinDeadline,
			Max:   cfg.Analysis.MaxDeadline,
			PerMB: cfg.Analysis.DeadlinePerMB,
		},
		Metrics: metrics.Recorder{},
	}

	// persistence is optional
	if cfg.Database.Driver != "" {
		db, repo, err := openRepository(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("database init error")
		}
		defer db.Close()
		svc.Repo = repo
		checkers["database"] = &middleware.DatabaseHealthChecker{DB: db}
	} else {
		log.Warn().Msg("database driver not set, analyses are not persisted")
	}

	// evidence storage is optional
	if cfg.Minio.Endpoint != "" {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("minio init error")
		}
		svc.Evidence = store
		checkers["evidence"] = middleware.CheckerFunc(store.Ping)
	}

	registry := bootstrap.Registry(cfg)
	providers := registry.Names()
	if len(providers) == 0 {
		log.Warn().Msg("no ai provider configured, every analysis will be degraded")
	}
	svc.Analyzer = aiapp.NewOrchestrator(registry, metrics.Recorder{})

	limiter := middleware.NewRateLimiter(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSecond)
	defer limiter.Stop()

	handler := httpserver.NewRouter(svc, httpserver.Options{
		APIKeys:        cfg.Auth.APIKeys,
		RateLimiter:    limiter,
		CORSOrigins:    cfg.Server.CORSOrigins,
		MaxBodyBytes:   cfg.MaxBodyBytes(),
		HealthCheckers: checkers,
		Providers:      providers,
	})
	if len(cfg.Auth.APIKeys) == 0 {
		log.Warn().Msg("auth.apiKeys is empty, API key auth disabled")
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Info().Str("addr", addr).Strs("providers", providers).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info().Msg("shutting down server...")

	// in-flight analyses may run up to the deadline ceiling
	ctx2, cancel := context.WithTimeout(context.Background(), cfg.Analysis.MaxDeadline+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}

func openRepository(ctx context.Context, cfg *config.Config) (*sql.DB, schemaRepository, error) {
	var (
		db   *sql.DB
		repo schemaRepository
		err  error
	)
	switch cfg.Database.Driver {
	case "postgres":
		if db, err = pgp.Connect(ctx, cfg.DSN()); err != nil {
			return nil, nil, err
		}
		repo = pgp.NewAnalysisRepository(db)
	default:
		if db, err = mysqlp.Connect(ctx, cfg.DSN()); err != nil {
			return nil, nil, err
		}
		repo = mysqlp.NewAnalysisRepository(db)
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, repo, nil
}
