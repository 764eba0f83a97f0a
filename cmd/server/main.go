// Package main is the entry point for the dandi-sql API server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"github.com/bendichter/dandi-sql/internal/api"
	"github.com/bendichter/dandi-sql/internal/catalog"
	"github.com/bendichter/dandi-sql/internal/complexity"
	"github.com/bendichter/dandi-sql/internal/config"
	"github.com/bendichter/dandi-sql/internal/db"
	"github.com/bendichter/dandi-sql/internal/executor"
	"github.com/bendichter/dandi-sql/internal/jsonquery"
	"github.com/bendichter/dandi-sql/internal/middleware"
	"github.com/bendichter/dandi-sql/internal/schema"
	"github.com/bendichter/dandi-sql/internal/service"
	"github.com/bendichter/dandi-sql/internal/sqlguard"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file (if present)
	if err := config.LoadDotEnv(".env"); err != nil {
		slog.Warn("could not load .env", "error", err)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required to serve queries (the CLI validates offline)")
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}
	logger.Info("schema registry loaded",
		"entities", len(registry.Entities()),
		"tables", len(registry.AllowedTables()),
		"max_depth", registry.MaxDepth())

	pool, err := db.OpenPostgres(cfg.DatabaseURL, 0)
	if err != nil {
		return err
	}
	defer pool.Close()

	logger.Info("running catalog migrations")
	if err := db.RunMigrations(pool); err != nil {
		return err
	}

	scorer := complexity.NewScorer(complexity.DefaultWeights(), complexity.Limits{
		MaxScore:       cfg.Limits.MaxScore,
		MaxFilters:     cfg.Limits.MaxFilters,
		MaxAnnotations: cfg.Limits.MaxAnnotations,
		MaxFields:      cfg.Limits.MaxFields,
		MaxJoinDepth:   cfg.Limits.MaxJoinDepth,
	})
	queries := service.New(
		sqlguard.NewValidator(registry, scorer, sqlguard.Config{
			MaxQueryLength: cfg.Limits.MaxQueryLength,
			MaxRows:        cfg.Limits.MaxRows,
		}),
		jsonquery.NewCompiler(registry, scorer, jsonquery.Config{
			DefaultLimit: cfg.Limits.DefaultLimit,
			MaxLimit:     cfg.Limits.MaxRows,
		}),
		executor.New(pool, cfg.Limits.QueryTimeout, logger),
		logger,
	)
	handler := api.NewHandler(queries, catalog.New(queries), registry, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(middleware.RateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
	}))
	r.Mount("/", handler.Routes())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http api listening", "addr", cfg.ListenAddr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// buildRegistry loads the schema registry from SCHEMA_FILE when set, falling
// back to the built-in DANDI catalog with the configured traversal depth.
func buildRegistry(cfg *config.Config) (*schema.Registry, error) {
	if cfg.SchemaFile != "" {
		return schema.LoadYAML(cfg.SchemaFile)
	}
	return schema.Default(schema.WithMaxDepth(cfg.Limits.MaxJoinDepth)), nil
}
