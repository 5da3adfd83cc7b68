// Package migrations holds the embedded schema migrations of the operation
// log and applies them with golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/*.sql
var migrationFiles embed.FS

// ErrNoVersion means the database has never been migrated.
var ErrNoVersion = errors.New("database has no schema version (needs migration)")

// Status reports the schema version of db and the newest version this
// binary ships. The caller keeps ownership of db.
func Status(db *sql.DB) (current, latest uint, err error) {
	m, err := newMigrate(db)
	if err != nil {
		return 0, 0, err
	}

	current, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			err = ErrNoVersion
		} else {
			err = fmt.Errorf("failed to get database version: %w", err)
		}
		return 0, 0, err
	}
	if dirty {
		return current, 0, fmt.Errorf("database is in dirty state at version %d (migration failed previously)", current)
	}

	src, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return current, 0, fmt.Errorf("failed to read migration files: %w", err)
	}
	defer src.Close()

	latest, err = lastVersion(src)
	if err != nil {
		return current, 0, fmt.Errorf("failed to determine latest version: %w", err)
	}
	return current, latest, nil
}

// CheckDBMigrationStatus returns nil if db is at the latest schema version.
func CheckDBMigrationStatus(db *sql.DB) error {
	current, latest, err := Status(db)
	if err != nil {
		return err
	}

	switch {
	case current < latest:
		return fmt.Errorf("database is at version %d but latest is %d (%d migrations behind)",
			current, latest, latest-current)
	case current > latest:
		return fmt.Errorf("database version %d is ahead of binary version %d (binary needs update)",
			current, latest)
	}
	return nil
}

// MigrateUp applies all pending migrations. An up-to-date database is not
// an error.
func MigrateUp(db *sql.DB) error {
	m, err := newMigrate(db)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// newMigrate builds a migrate instance over db. It is never closed because
// closing it would close db.
func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return nil, fmt.Errorf("failed to create source driver: %w", err)
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

// lastVersion walks the source to its newest migration.
func lastVersion(src source.Driver) (uint, error) {
	v, err := src.First()
	if err != nil {
		return 0, err
	}
	for {
		next, err := src.Next(v)
		if err != nil {
			return v, nil
		}
		v = next
	}
}
