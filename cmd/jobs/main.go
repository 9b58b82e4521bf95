// Command jobs runs a maintenance job once and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"nexify/internal/cache"
	"nexify/internal/config"
	"nexify/internal/database"
	"nexify/internal/jobs"
	"nexify/internal/repository"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	timeout := flag.Duration("timeout", 30*time.Minute, "Maximum run time")
	flag.Parse()
	if flag.NArg() != 1 {
		return fmt.Errorf("usage: jobs [-timeout 30m] <recommendations|reconcile>")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// cached feeds are invalidated when Redis is reachable
	if rdb := cache.InitRedis(ctx, cfg.RedisURL); rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	switch flag.Arg(0) {
	case "recommendations":
		job := jobs.NewRecommendationJob(repository.NewRecommendationRepository(db), cfg.RecommendPostSize)
		result, err := job.Run(ctx)
		if err != nil {
			return fmt.Errorf("recommendation job: %w", err)
		}
		log.Printf("rebuilt recommendations for %d users (%d items)", result.Users, result.Items)
	case "reconcile":
		fixed, err := jobs.NewCounterReconciler(repository.NewPostRepository(db)).Run(ctx)
		if err != nil {
			return fmt.Errorf("reconcile job: %w", err)
		}
		log.Printf("corrected counters: %v", fixed)
	default:
		return fmt.Errorf("unknown job %q", flag.Arg(0))
	}
	return nil
}
