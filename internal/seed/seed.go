package seed

import (
	"context"
	"fmt"
	"log/slog"

	"promptguy/internal/middleware"
	"promptguy/internal/models"
	"promptguy/internal/repository"

	"gorm.io/gorm"
)

// Options configures the seeder.
type Options struct {
	NumUsers    int
	NumPosts    int
	ShouldClean bool
	// MaxDays bounds how far back post creation times are spread.
	MaxDays int
	// RandSeed makes a run reproducible when non-zero.
	RandSeed int64
}

// Result reports what a seeding run created.
type Result struct {
	Users     int
	Posts     int
	Likes     int
	Bookmarks int
	Follows   int
	Views     int
	Repaired  int
}

// seededTables are cleared child-first so foreign keys never block the delete.
var seededTables = []string{
	"notifications", "views", "shares", "follows", "bookmarks", "likes",
	"post_tags", "posts", "users",
}

// Seed populates the database with demo users, prompts and interactions, then
// recomputes post counters from the relation tables.
func Seed(ctx context.Context, db *gorm.DB, opts Options) (*Result, error) {
	log := middleware.Logger.With(slog.String("component", "seed"))
	log.Info("starting database seeding", slog.Int("users", opts.NumUsers), slog.Int("posts", opts.NumPosts))

	if opts.ShouldClean {
		if err := Clean(ctx, db); err != nil {
			return nil, fmt.Errorf("clean: %w", err)
		}
		log.Info("existing data cleared")
	}

	f := NewFactory(db.WithContext(ctx), opts)
	res := &Result{}

	users := make([]*models.User, 0, opts.NumUsers)
	for i := 0; i < opts.NumUsers; i++ {
		u, err := f.CreateUser()
		if err != nil {
			log.Warn("skipping user", slog.String("error", err.Error()))
			continue
		}
		users = append(users, u)
	}
	res.Users = len(users)
	if len(users) == 0 {
		return res, nil
	}

	posts := make([]*models.Post, 0, opts.NumPosts)
	for i := 0; i < opts.NumPosts; i++ {
		p, err := f.CreatePost(users[f.rng.Intn(len(users))])
		if err != nil {
			return nil, fmt.Errorf("create post: %w", err)
		}
		posts = append(posts, p)
	}
	res.Posts = len(posts)

	for _, u := range users {
		for _, p := range posts {
			if !p.IsPublic && p.AuthorID != u.ID {
				continue
			}
			if f.rng.Float32() < 0.3 {
				if err := f.CreateLike(u, p); err != nil {
					return nil, fmt.Errorf("create like: %w", err)
				}
				res.Likes++
			}
			if f.rng.Float32() < 0.1 {
				if err := f.CreateBookmark(u, p); err != nil {
					return nil, fmt.Errorf("create bookmark: %w", err)
				}
				res.Bookmarks++
			}
			if n := f.rng.Intn(3); n > 0 {
				if err := f.CreateViews(u, p, n); err != nil {
					return nil, fmt.Errorf("create views: %w", err)
				}
				res.Views += n
			}
		}
		for _, other := range users {
			if other.ID == u.ID || f.rng.Float32() >= 0.2 {
				continue
			}
			if err := f.CreateFollow(u, other); err != nil {
				return nil, fmt.Errorf("create follow: %w", err)
			}
			res.Follows++
		}
	}

	reconciled, err := repository.NewCounterRepository(db).Reconcile(ctx, nil, repository.DefaultReconcileBatch)
	if err != nil {
		return nil, fmt.Errorf("reconcile counters: %w", err)
	}
	res.Repaired = reconciled.Repaired

	log.Info("database seeding completed",
		slog.Int("users", res.Users),
		slog.Int("posts", res.Posts),
		slog.Int("likes", res.Likes),
		slog.Int("follows", res.Follows),
		slog.Int("views", res.Views),
	)
	return res, nil
}

// Clean deletes every seeded row. The anonymous visitor is removed too and is
// recreated on the next anonymous view.
func Clean(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range seededTables {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
}
