package database

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"promptguy/internal/middleware"

	"github.com/cespare/xxhash/v2"
	"gorm.io/gorm"
)

const schemaMigrationsDDL = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version BIGINT PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	checksum VARCHAR(16) NOT NULL DEFAULT '',
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// migrationLockID is the PostgreSQL advisory lock key held while a
// migration is applied or rolled back.
const migrationLockID int64 = 0x7072_6f6d_7074

// AppliedMigration is one row of the schema_migrations ledger.
type AppliedMigration struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255"`
	Checksum  string    `gorm:"size:16"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

func (AppliedMigration) TableName() string {
	return "schema_migrations"
}

// Checksum fingerprints the up script so edits to applied migrations are noticed.
func (m *Migration) Checksum() string {
	return strconv.FormatUint(xxhash.Sum64String(m.UpScript), 16)
}

// Migrator applies and reverts the embedded SQL migrations.
type Migrator struct {
	db         *gorm.DB
	migrations []Migration
}

func NewMigrator(db *gorm.DB) *Migrator {
	return &Migrator{db: db, migrations: migrations}
}

// Applied returns the ledger in version order, or nothing when the ledger
// table has not been created yet.
func (m *Migrator) Applied(ctx context.Context) ([]AppliedMigration, error) {
	var rows []AppliedMigration
	if err := m.db.WithContext(ctx).Order("version").Find(&rows).Error; err != nil {
		if isMissingTableError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	return rows, nil
}

// Pending lists registered migrations not yet in the ledger. It fails when
// the ledger holds versions this build does not know about.
func (m *Migrator) Pending(ctx context.Context) ([]Migration, []int, error) {
	rows, err := m.Applied(ctx)
	if err != nil {
		return nil, nil, err
	}
	versions := make([]int, 0, len(rows))
	for _, r := range rows {
		versions = append(versions, r.Version)
	}
	if err := validateAppliedVersions(versions, m.migrations); err != nil {
		return nil, versions, err
	}

	done := make(map[int]AppliedMigration, len(rows))
	for _, r := range rows {
		done[r.Version] = r
	}
	var pending []Migration
	for i := range m.migrations {
		mig := &m.migrations[i]
		row, ok := done[mig.Version]
		if !ok {
			pending = append(pending, *mig)
			continue
		}
		if row.Checksum != "" && row.Checksum != mig.Checksum() {
			middleware.Logger.Warn("applied migration differs from embedded script",
				slog.String("migration", mig.String()))
		}
	}
	return pending, versions, nil
}

// Up creates the ledger if needed and applies every pending migration,
// returning how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	if err := m.db.WithContext(ctx).Exec(schemaMigrationsDDL).Error; err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}
	pending, _, err := m.Pending(ctx)
	if err != nil {
		return 0, err
	}

	ran := 0
	for _, mig := range pending {
		applied, err := m.apply(ctx, mig)
		if err != nil {
			return ran, err
		}
		if applied {
			ran++
		}
	}
	return ran, nil
}

func (m *Migrator) apply(ctx context.Context, mig Migration) (bool, error) {
	applied := false
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockMigrations(tx); err != nil {
			return err
		}
		// Another instance may have applied it while this one waited on the lock.
		var n int64
		if err := tx.Model(&AppliedMigration{}).Where("version = ?", mig.Version).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		if err := tx.Exec(mig.UpScript).Error; err != nil {
			return fmt.Errorf("apply migration %s: %w", mig.String(), err)
		}
		row := AppliedMigration{Version: mig.Version, Name: mig.Name, Checksum: mig.Checksum()}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("record migration %s: %w", mig.String(), err)
		}
		applied = true
		return nil
	})
	if err == nil && applied {
		middleware.Logger.Info("migration applied", slog.String("migration", mig.String()))
	}
	return applied, err
}

// Down runs the rollback script of an applied migration and removes it from the ledger.
func (m *Migrator) Down(ctx context.Context, version int) error {
	mig := GetMigrationByVersion(version)
	if mig == nil {
		return fmt.Errorf("migration version %d not found", version)
	}

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockMigrations(tx); err != nil {
			return err
		}
		res := tx.Where("version = ?", version).Delete(&AppliedMigration{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("migration %d has not been applied", version)
		}
		if err := tx.Exec(mig.DownScript).Error; err != nil {
			return fmt.Errorf("roll back migration %s: %w", mig.String(), err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	middleware.Logger.Info("migration rolled back", slog.String("migration", mig.String()))
	return nil
}

func lockMigrations(tx *gorm.DB) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", migrationLockID).Error; err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	return nil
}

func isMissingTableError(err error) bool {
	msg := err.Error()
	return (strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist")) ||
		strings.Contains(msg, "no such table")
}

func validateAppliedVersions(applied []int, registered []Migration) error {
	known := make(map[int]struct{}, len(registered))
	for _, m := range registered {
		known[m.Version] = struct{}{}
	}
	var unknown []string
	sorted := append([]int(nil), applied...)
	sort.Ints(sorted)
	for _, v := range sorted {
		if _, ok := known[v]; !ok {
			unknown = append(unknown, fmt.Sprintf("%06d", v))
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("schema_migrations holds versions unknown to this build: %s (roll them back with the newer build first)",
			strings.Join(unknown, ", "))
	}
	return nil
}
