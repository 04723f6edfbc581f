package database

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Migrator owns the pgstore schema: the records table and the change-notify
// trigger that drives its subscriptions, versioned in the migrations
// directory.
type Migrator struct {
	m *migrate.Migrate
}

func NewMigrator(dsn, migrationsPath string) (*Migrator, error) {
	m, err := migrate.New(
		fmt.Sprintf("file://%s", migrationsPath),
		dsn,
	)
	if err != nil {
		return nil, fmt.Errorf("creating migrator: %w", err)
	}

	return &Migrator{m: m}, nil
}

// Up applies pending migrations. An already-current schema is not an error.
func (m *Migrator) Up() error {
	err := m.m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Down rolls the schema back, dropping the records table and its trigger.
// Subscriptions opened against the database stop delivering once the trigger
// is gone.
func (m *Migrator) Down() error {
	err := m.m.Down()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("rolling back migrations: %w", err)
	}
	return nil
}

func (m *Migrator) Version() (uint, bool, error) {
	return m.m.Version()
}

func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	if srcErr != nil {
		return srcErr
	}
	return dbErr
}

// MigrateRecords brings the records schema up to date and releases the
// migrator. Run before opening the pgstore pool.
func MigrateRecords(dsn, migrationsPath string) error {
	m, err := NewMigrator(dsn, migrationsPath)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil {
		m.Close()
		return err
	}
	return m.Close()
}
