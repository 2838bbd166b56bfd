package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"promptguy/internal/config"
	"promptguy/internal/middleware"

	"gorm.io/gorm"
)

// Schema modes selected by DB_SCHEMA_MODE.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// SchemaPlan is what ApplySchema will do for a given configuration.
type SchemaPlan struct {
	Mode        string
	Environment string
	SQL         bool
	AutoMigrate bool
}

// SchemaStatus is a SchemaPlan plus the migration ledger state.
type SchemaStatus struct {
	SchemaPlan
	AppliedVersions   []int
	PendingMigrations []Migration
}

var prodLikeEnvs = map[string]bool{"production": true, "prod": true, "staging": true, "stage": true}

func normalizedSchemaMode(cfg *config.Config) string {
	// The SQL migrations target PostgreSQL; sqlite always builds from the models.
	if driverName(cfg) == "sqlite" {
		return SchemaModeAuto
	}
	if mode := strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode)); mode != "" {
		return mode
	}
	return SchemaModeHybrid
}

// PlanSchema resolves DB_SCHEMA_MODE against the environment. Hybrid runs
// the SQL migrations everywhere and AutoMigrate only outside prod-like
// environments; auto is refused there unless explicitly allowed.
func PlanSchema(cfg *config.Config) (SchemaPlan, error) {
	plan := SchemaPlan{Mode: normalizedSchemaMode(cfg), Environment: cfg.Env}
	prodLike := prodLikeEnvs[strings.ToLower(strings.TrimSpace(cfg.Env))]

	switch plan.Mode {
	case SchemaModeSQL:
		plan.SQL = true
	case SchemaModeHybrid:
		plan.SQL, plan.AutoMigrate = true, !prodLike
	case SchemaModeAuto:
		if prodLike && driverName(cfg) != "sqlite" && !cfg.DBAutoMigrateAllowDestructive {
			return plan, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q without DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		plan.AutoMigrate = true
	default:
		return plan, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", plan.Mode)
	}
	return plan, nil
}

// ApplySchema brings the database schema up to date according to the schema mode.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return err
	}

	if plan.SQL {
		ran, err := NewMigrator(db).Up(ctx)
		if err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
		middleware.Logger.Info("sql migrations up to date", slog.Int("applied", ran))
	}

	if plan.AutoMigrate {
		if plan.Mode == SchemaModeAuto && cfg.DBAutoMigrateAllowDestructive {
			middleware.Logger.Warn("DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true with DB_SCHEMA_MODE=auto; review schema diffs before deploying")
		}
		middleware.Logger.Info("running gorm automigrate", slog.String("mode", plan.Mode), slog.String("env", cfg.Env))
		if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}

	return nil
}

// GetSchemaStatus reports the schema plan and pending migrations without changing anything.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return nil, err
	}
	status := &SchemaStatus{SchemaPlan: plan}
	if !plan.SQL {
		return status, nil
	}

	pending, applied, err := NewMigrator(db).Pending(ctx)
	if err != nil {
		return nil, err
	}
	status.AppliedVersions = applied
	status.PendingMigrations = pending
	return status, nil
}
