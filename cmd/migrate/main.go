// Command migrate applies, inspects and reverts the embedded schema migrations.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"

	"promptguy/internal/config"
	"promptguy/internal/database"
	"promptguy/internal/middleware"

	"gorm.io/gorm"
)

const usage = "usage: migrate <up|auto|status|ledger|down <version>>"

type command func(ctx context.Context, db *gorm.DB, cfg *config.Config, args []string) error

var commands = map[string]command{
	"up":     runUp,
	"auto":   runAuto,
	"status": runStatus,
	"ledger": runLedger,
	"down":   runDown,
}

func main() {
	flag.Parse()
	if err := run(flag.Args()); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf(usage)
	}
	cmd, ok := commands[strings.ToLower(strings.TrimSpace(args[0]))]
	if !ok {
		return fmt.Errorf("unknown command %q; %s", args[0], usage)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	middleware.ConfigureLogger(cfg.Env, cfg.LogLevel)

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = database.Close(db) }()

	return cmd(context.Background(), db, cfg, args[1:])
}

func runUp(ctx context.Context, db *gorm.DB, _ *config.Config, _ []string) error {
	ran, err := database.NewMigrator(db).Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	log.Printf("applied %d migration(s)", ran)
	return nil
}

func runAuto(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
	cfg.DBSchemaMode = database.SchemaModeAuto
	if err := database.ApplySchema(ctx, db, cfg); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	log.Printf("models automigrated (%d tables)", len(database.PersistentModels()))
	return nil
}

func runStatus(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
	status, err := database.GetSchemaStatus(ctx, db, cfg)
	if err != nil {
		return fmt.Errorf("schema status: %w", err)
	}
	log.Printf("mode=%s env=%s sql=%t automigrate=%t applied=%d pending=%d",
		status.Mode, status.Environment, status.SQL, status.AutoMigrate,
		len(status.AppliedVersions), len(status.PendingMigrations))
	for _, m := range status.PendingMigrations {
		log.Printf("pending %s", m.String())
	}
	return nil
}

// runLedger prints schema_migrations and flags rows whose checksum no longer
// matches the embedded script.
func runLedger(ctx context.Context, db *gorm.DB, _ *config.Config, _ []string) error {
	rows, err := database.NewMigrator(db).Applied(ctx)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		log.Println("no migrations recorded")
		return nil
	}
	for _, row := range rows {
		state := "ok"
		if mig := database.GetMigrationByVersion(row.Version); mig == nil {
			state = "unknown to this build"
		} else if row.Checksum != mig.Checksum() {
			state = "checksum drift"
		}
		log.Printf("%06d %-32s %s %s", row.Version, row.Name, row.AppliedAt.Format("2006-01-02 15:04:05"), state)
	}
	return nil
}

func runDown(ctx context.Context, db *gorm.DB, _ *config.Config, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: migrate down <version>")
	}
	version, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid version %q: %w", args[0], err)
	}
	if err := database.NewMigrator(db).Down(ctx, version); err != nil {
		return fmt.Errorf("revert migration %d: %w", version, err)
	}
	log.Printf("reverted migration %06d", version)
	return nil
}
