// Command main runs the database seeder for Nexify.
package main

import (
	"context"
	"flag"
	"log"

	"nexify/internal/config"
	"nexify/internal/database"
	"nexify/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()

	users := flag.Int("users", defaults.Users, "Number of users to create")
	posts := flag.Int("posts-per-user", defaults.PostsPerUser, "Posts authored by each user")
	likes := flag.Int("likes-per-post", defaults.LikesPerPost, "Likes on each post")
	comments := flag.Int("comments-per-post", defaults.CommentsPerPost, "Comments on each post")
	follows := flag.Int("follows-per-user", defaults.FollowsPerUser, "Accounts each user follows or requests")
	days := flag.Int("days", defaults.MaxDays, "Spread content over this many past days")
	randomSeed := flag.Int64("seed", 0, "Random seed, 0 for a time based seed")
	clean := flag.Bool("clean", false, "Delete existing social data before seeding")
	fast := flag.Bool("fast", false, "Skip bcrypt and store the demo password in plain text")
	dryRun := flag.Bool("dry-run", false, "Generate data without writing it")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	if err := database.ApplySchema(ctx, db, cfg); err != nil {
		log.Fatalf("Schema setup failed: %v", err)
	}

	if *clean && !*dryRun {
		if err := seed.Clear(ctx, db); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
		log.Println("Existing social data removed")
	}

	summary, err := seed.Run(ctx, db, seed.Options{
		Users:           *users,
		PostsPerUser:    *posts,
		LikesPerPost:    *likes,
		CommentsPerPost: *comments,
		FollowsPerUser:  *follows,
		MaxDays:         *days,
		RandomSeed:      *randomSeed,
		SkipBcrypt:      *fast,
		DryRun:          *dryRun,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeded %s", summary)
	log.Printf("All demo users share the password: %s", seed.DemoPassword)
}
