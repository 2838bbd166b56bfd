// Package bootstrap wires the runtime dependencies shared by the server and
// the operator commands.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"promptguy/internal/cache"
	"promptguy/internal/config"
	"promptguy/internal/database"
	"promptguy/internal/middleware"
	"promptguy/internal/models"
	"promptguy/internal/repository"
	"promptguy/internal/service"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SkipSchema connects without applying migrations.
	SkipSchema bool
	// SkipRedis leaves the cache disabled.
	SkipRedis bool
	// SkipReplica keeps every query on the primary.
	SkipReplica bool
}

// Runtime holds the connections the binaries share.
type Runtime struct {
	DB *gorm.DB
	// ReadDB is the read replica, nil when none is configured.
	ReadDB *gorm.DB
	// Redis is nil when Redis is skipped or unreachable.
	Redis *redis.Client
}

// Close releases every connection held by rt.
func (rt *Runtime) Close() error {
	if rt.Redis != nil {
		_ = rt.Redis.Close()
	}
	if err := database.Close(rt.ReadDB); err != nil {
		middleware.Logger.Warn("closing read replica failed", slog.String("error", err.Error()))
	}
	return database.Close(rt.DB)
}

// InitRuntime connects to the database, the optional read replica and Redis,
// makes sure the anonymous visitor exists and promotes configured admins.
// An unreachable replica or Redis degrades to the primary and no cache.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: !opts.SkipSchema})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	rt := &Runtime{DB: db}

	if !opts.SkipReplica {
		replica, err := database.ConnectReadReplica(cfg)
		if err != nil {
			middleware.Logger.Warn("Read replica unavailable, reads will use the primary", slog.String("error", err.Error()))
		}
		rt.ReadDB = replica
	}

	if !opts.SkipRedis {
		rt.Redis = cache.InitRedis(cfg.RedisURL)
	}

	users := repository.NewUserRepository(db)
	if _, err := service.EnsureAnonymousUser(ctx, users); err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("ensure anonymous visitor: %w", err)
	}

	if err := promoteAdmins(ctx, db, cfg.AdminIDs()); err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("promote configured admins: %w", err)
	}

	return rt, nil
}

// promoteAdmins flags already-provisioned users listed by external id.
// Users that have not signed in yet are promoted on the next startup.
func promoteAdmins(ctx context.Context, db *gorm.DB, externalIDs []string) error {
	if len(externalIDs) == 0 {
		return nil
	}
	res := db.WithContext(ctx).Model(&models.User{}).
		Where("external_id IN ? AND is_admin = ?", externalIDs, false).
		Update("is_admin", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		middleware.Logger.Info("promoted configured admins", slog.Int64("count", res.RowsAffected))
	}
	return nil
}
