package database

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"nexify/internal/middleware"

	"gorm.io/gorm"
)

// MigrationLog records one applied migration.
type MigrationLog struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255;not null"`
	Checksum  string    `gorm:"size:64;not null;default:''"`
	AppliedAt time.Time `gorm:"autoCreateTime;index"`
}

// TableName pins the log table name.
func (MigrationLog) TableName() string {
	return "migration_logs"
}

// Migrator applies a fixed migration history to one database.
type Migrator struct {
	db         *gorm.DB
	migrations []Migration
}

// NewMigrator returns a migrator over ms, which must be ordered by version.
func NewMigrator(db *gorm.DB, ms []Migration) *Migrator {
	return &Migrator{db: db, migrations: ms}
}

func (m *Migrator) ensureLog(ctx context.Context) error {
	if err := m.db.WithContext(ctx).AutoMigrate(&MigrationLog{}); err != nil {
		return fmt.Errorf("ensure migration_logs: %w", err)
	}
	return nil
}

// Applied lists logged migrations, oldest first. A missing log table reads as empty.
func (m *Migrator) Applied(ctx context.Context) ([]MigrationLog, error) {
	if !m.db.Migrator().HasTable(&MigrationLog{}) {
		return nil, nil
	}
	var logs []MigrationLog
	if err := m.db.WithContext(ctx).Order("version ASC").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("read migration_logs: %w", err)
	}
	return logs, nil
}

// Pending lists migrations not yet logged.
func (m *Migrator) Pending(ctx context.Context) ([]Migration, error) {
	logs, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}
	done := make(map[int]bool, len(logs))
	for _, l := range logs {
		done[l.Version] = true
	}
	var pending []Migration
	for _, mig := range m.migrations {
		if !done[mig.Version] {
			pending = append(pending, mig)
		}
	}
	return pending, nil
}

// Up applies every pending migration, each in its own transaction with its log row.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	if err := m.ensureLog(ctx); err != nil {
		return 0, err
	}
	logs, err := m.Applied(ctx)
	if err != nil {
		return 0, err
	}
	if err := validateApplied(logs, m.migrations); err != nil {
		return 0, err
	}
	pending, err := m.Pending(ctx)
	if err != nil {
		return 0, err
	}

	for _, mig := range pending {
		middleware.Logger.InfoContext(ctx, "Applying migration", slog.String("migration", mig.String()))
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(mig.Up).Error; err != nil {
				return fmt.Errorf("apply %s: %w", mig, err)
			}
			return tx.Create(&MigrationLog{Version: mig.Version, Name: mig.Name, Checksum: mig.Checksum}).Error
		})
		if err != nil {
			return 0, err
		}
	}
	return len(pending), nil
}

// Verify checks the log against the registered migrations without changing anything.
func (m *Migrator) Verify(ctx context.Context) error {
	logs, err := m.Applied(ctx)
	if err != nil {
		return err
	}
	return validateApplied(logs, m.migrations)
}

// Down reverts one applied migration.
func (m *Migrator) Down(ctx context.Context, version int) error {
	mig := findMigration(m.migrations, version)
	if mig == nil {
		return fmt.Errorf("migration version %d not found", version)
	}
	logs, err := m.Applied(ctx)
	if err != nil {
		return err
	}
	applied := false
	for _, l := range logs {
		applied = applied || l.Version == version
	}
	if !applied {
		return fmt.Errorf("migration %s has not been applied", mig)
	}

	middleware.Logger.InfoContext(ctx, "Rolling back migration", slog.String("migration", mig.String()))
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(mig.Down).Error; err != nil {
			return fmt.Errorf("roll back %s: %w", mig, err)
		}
		return tx.Where("version = ?", version).Delete(&MigrationLog{}).Error
	})
}

// validateApplied rejects logs for versions this binary does not know and
// migrations whose script changed after being applied.
func validateApplied(logs []MigrationLog, registered []Migration) error {
	var unknown, edited []string
	for _, l := range logs {
		mig := findMigration(registered, l.Version)
		switch {
		case mig == nil:
			unknown = append(unknown, fmt.Sprintf("%06d", l.Version))
		case l.Checksum != "" && l.Checksum != mig.Checksum:
			edited = append(edited, mig.String())
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("migration_logs contains versions unknown to this build: %s", strings.Join(unknown, ", "))
	}
	if len(edited) > 0 {
		return fmt.Errorf("applied migrations were edited afterwards: %s", strings.Join(edited, ", "))
	}
	return nil
}

// RunMigrations applies the embedded migrations.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	n, err := NewMigrator(db, embedded).Up(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		middleware.Logger.InfoContext(ctx, "Migrations applied", slog.Int("count", n))
	}
	return nil
}

// VerifyMigrations checks the database against the embedded migrations.
func VerifyMigrations(ctx context.Context, db *gorm.DB) error {
	return NewMigrator(db, embedded).Verify(ctx)
}

// RollbackMigration reverts one embedded migration by version.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	return NewMigrator(db, embedded).Down(ctx, version)
}
