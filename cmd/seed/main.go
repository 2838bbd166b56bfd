// Command seed populates a development database with demo prompts.
package main

import (
	"context"
	"flag"
	"log"

	"promptguy/internal/bootstrap"
	"promptguy/internal/config"
	"promptguy/internal/middleware"
	"promptguy/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 25, "Number of users to create")
	numPosts := flag.Int("posts", 100, "Number of prompts to create")
	shouldClean := flag.Bool("clean", false, "Delete existing rows before seeding")
	maxDays := flag.Int("days", 90, "Spread prompt creation times over this many days")
	randSeed := flag.Int64("rand-seed", 0, "Fixed random seed for reproducible data (0 = clock)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}
	middleware.ConfigureLogger(cfg.Env, cfg.LogLevel)

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{SkipRedis: true, SkipReplica: true})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer func() { _ = rt.Close() }()

	res, err := seed.Seed(ctx, rt.DB, seed.Options{
		NumUsers:    *numUsers,
		NumPosts:    *numPosts,
		ShouldClean: *shouldClean,
		MaxDays:     *maxDays,
		RandSeed:    *randSeed,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeded %d users, %d prompts, %d likes, %d bookmarks, %d follows, %d views",
		res.Users, res.Posts, res.Likes, res.Bookmarks, res.Follows, res.Views)
}
