// Command main is the entry point for the Nexify backend server.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nexify/internal/bootstrap"
	"nexify/internal/config"
	"nexify/internal/jobs"
	"nexify/internal/mailer"
	"nexify/internal/middleware"
	"nexify/internal/observability"
	"nexify/internal/server"
	"nexify/internal/storage"

	"golang.org/x/sync/errgroup"
)

// @title Nexify API
// @version 1.0
// @description Social network API with posts, comments, likes, follows, moderation and recommendations
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@nexify.local

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8375
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	stopTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "nexify-api",
		ServiceVersion: "1.0.0",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRatio:    cfg.TracingSampleRatio,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, rdb, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{
		SeedDemo: os.Getenv("SEED_DEMO") == "true",
	})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	store, err := storage.FromConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	srv, err := server.NewServerWithDeps(cfg, db, rdb, server.Deps{
		Storage: store,
		Mailer:  mailer.FromConfig(cfg),
	})
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	var scheduler *jobs.Scheduler
	if cfg.SchedulerEnabled {
		scheduler = jobs.NewScheduler(30 * time.Minute)
		if err := scheduler.Add("recommendations", cfg.RecommendationSchedule, srv.RecommendationJob()); err != nil {
			log.Fatalf("Failed to schedule recommendations: %v", err)
		}
		if err := scheduler.Add("reconcile_counters", cfg.ReconcileSchedule, srv.CounterReconciler()); err != nil {
			log.Fatalf("Failed to schedule counter reconcile: %v", err)
		}
		scheduler.Start()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		middleware.Logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if scheduler != nil {
			if err := scheduler.Stop(shutdownCtx); err != nil {
				middleware.Logger.Error("scheduler shutdown error", slog.String("error", err.Error()))
			}
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			middleware.Logger.Error("server shutdown error", slog.String("error", err.Error()))
		}
		return stopTracing(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Server exited: %v", err)
	}
}
