package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	auditdomain "github.com/emadn88/elmcorner/internal/audit/domain"
	billdomain "github.com/emadn88/elmcorner/internal/bill/domain"
	consumptiondomain "github.com/emadn88/elmcorner/internal/consumption/domain"
	notificationdomain "github.com/emadn88/elmcorner/internal/notification/domain"
	paymentlinkdomain "github.com/emadn88/elmcorner/internal/paymentlink/domain"
	rosterdomain "github.com/emadn88/elmcorner/internal/roster/domain"
	packagedomain "github.com/emadn88/elmcorner/internal/studentpackage/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"
)

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

// Models lists every table owned by the service, parents first.
func Models() []any {
	return []any{
		&rosterdomain.Student{},
		&rosterdomain.Teacher{},
		&packagedomain.Package{},
		&consumptiondomain.ClassRecord{},
		&billdomain.Bill{},
		&notificationdomain.Record{},
		&notificationdomain.Dispatch{},
		&paymentlinkdomain.Token{},
		&auditdomain.AuditLog{},
	}
}

// AutoMigrate creates the schema on dialects without SQL migrations.
// Partial unique indexes are postgres-only; elsewhere the service-level
// locks enforce one active package per student.
func AutoMigrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
