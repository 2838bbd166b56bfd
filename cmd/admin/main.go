// Package main provides operator utilities for PromptGuy.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"promptguy/internal/config"
	"promptguy/internal/database"
	"promptguy/internal/middleware"
	"promptguy/internal/repository"
	"promptguy/internal/service"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin promote <user_id>     - Promote user to admin")
	fmt.Println("  go run ./cmd/admin demote <user_id>      - Demote user from admin")
	fmt.Println("  go run ./cmd/admin list-admins           - List all admins")
	fmt.Println("  go run ./cmd/admin reconcile [post_id]   - Recompute post counters")
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	middleware.ConfigureLogger(cfg.Env, cfg.LogLevel)

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close(db) }()

	ctx := context.Background()
	users := service.NewUserService(repository.NewUserRepository(db))

	switch os.Args[1] {
	case "promote", "demote":
		if len(os.Args) < 3 {
			usage()
		}
		id := parseID(os.Args[2])
		if err := users.SetAdmin(ctx, id, os.Args[1] == "promote"); err != nil {
			log.Fatalf("Failed to %s user %d: %v", os.Args[1], id, err)
		}
		fmt.Printf("User %d %sd\n", id, os.Args[1])

	case "list-admins":
		admins, err := users.ListAdmins(ctx)
		if err != nil {
			log.Fatalf("Failed to fetch admins: %v", err)
		}
		if len(admins) == 0 {
			fmt.Println("No admins found")
			return
		}
		for _, admin := range admins {
			fmt.Printf("ID: %d | Username: %s | Email: %s\n", admin.ID, admin.Username, admin.Email)
		}

	case "reconcile":
		var postID *uint
		if len(os.Args) >= 3 {
			id := parseID(os.Args[2])
			postID = &id
		}
		counters := service.NewCounterService(repository.NewCounterRepository(db))
		res, err := counters.ReconcileCounters(ctx, postID)
		if err != nil {
			log.Fatalf("Reconcile failed: %v", err)
		}
		fmt.Printf("Scanned %d posts, repaired %d\n", res.Scanned, res.Repaired)
		for _, id := range res.RepairedIDs {
			fmt.Printf("  repaired post %d\n", id)
		}

	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		usage()
	}
}

func parseID(raw string) uint {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		log.Fatalf("Invalid id %q", raw)
	}
	return uint(id)
}
