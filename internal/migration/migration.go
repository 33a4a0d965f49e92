package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/meiwatch/internal/audit/domain"
	ceilingdomain "github.com/smallbiznis/meiwatch/internal/ceiling/domain"
	entitydomain "github.com/smallbiznis/meiwatch/internal/entity/domain"
	invoicedomain "github.com/smallbiznis/meiwatch/internal/invoice/domain"
	notificationdomain "github.com/smallbiznis/meiwatch/internal/notification/domain"
	obligationdomain "github.com/smallbiznis/meiwatch/internal/obligation/domain"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// RunMigrations applies the embedded postgres migrations.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// Models lists every persisted domain model.
func Models() []any {
	return []any{
		&entitydomain.Entity{},
		&invoicedomain.Invoice{},
		&ceilingdomain.Observation{},
		&obligationdomain.DASGuide{},
		&obligationdomain.AnnualDeclaration{},
		&notificationdomain.Notification{},
		&notificationdomain.Marker{},
		&auditdomain.AuditLog{},
	}
}

// AutoMigrate creates the schema from the models. It backs the sqlite and
// mysql dialects and the test suites.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
