package repo

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"gorm.io/gorm"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// MigrationStatus is one row of `migrate status` output.
type MigrationStatus struct {
	Version int64
	Path    string
	Applied bool
}

// NewMigrator returns a goose provider over the embedded migrations that
// match db's dialect.
func NewMigrator(db *gorm.DB) (*goose.Provider, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	var (
		dialect goose.Dialect
		dir     string
	)
	switch name := db.Dialector.Name(); name {
	case "postgres":
		dialect, dir = goose.DialectPostgres, "migrations/postgres"
	case "sqlite":
		dialect, dir = goose.DialectSQLite3, "migrations/sqlite"
	default:
		return nil, fmt.Errorf("no migrations for dialect %q", name)
	}

	sub, err := fs.Sub(migrationsFS, dir)
	if err != nil {
		return nil, err
	}
	return goose.NewProvider(dialect, sqlDB, sub)
}

// Migrate applies all pending migrations and returns the number applied.
func Migrate(ctx context.Context, db *gorm.DB) (int, error) {
	p, err := NewMigrator(db)
	if err != nil {
		return 0, err
	}
	res, err := p.Up(ctx)
	if err != nil {
		return len(res), fmt.Errorf("migrate up: %w", err)
	}
	return len(res), nil
}

// MigrateDown rolls back the most recent migration.
func MigrateDown(ctx context.Context, db *gorm.DB) (int64, error) {
	p, err := NewMigrator(db)
	if err != nil {
		return 0, err
	}
	res, err := p.Down(ctx)
	if err != nil {
		return 0, fmt.Errorf("migrate down: %w", err)
	}
	return res.Source.Version, nil
}

// MigrationsStatus lists every known migration and whether it is applied.
func MigrationsStatus(ctx context.Context, db *gorm.DB) ([]MigrationStatus, error) {
	p, err := NewMigrator(db)
	if err != nil {
		return nil, err
	}
	st, err := p.Status(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]MigrationStatus, 0, len(st))
	for _, s := range st {
		out = append(out, MigrationStatus{
			Version: s.Source.Version,
			Path:    s.Source.Path,
			Applied: s.State == goose.StateApplied,
		})
	}
	return out, nil
}
