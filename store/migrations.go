package store

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationsFS embed.FS

// RunMigrations applies the embedded schema for the store's dialect.
// The migrate instance is not closed: closing it would close s.DB.
func (s *SQLStore) RunMigrations() error {
	src, err := iofs.New(migrationsFS, "migrations/"+string(s.Dialect))
	if err != nil {
		return fmt.Errorf("could not open migration source: %w", err)
	}

	var driver database.Driver
	switch s.Dialect {
	case MySQL:
		driver, err = migratemysql.WithInstance(s.DB, &migratemysql.Config{})
	case Postgres:
		driver, err = postgres.WithInstance(s.DB, &postgres.Config{})
	case SQLite:
		driver, err = sqlite.WithInstance(s.DB, &sqlite.Config{})
	default:
		err = fmt.Errorf("unsupported database driver %q", s.Dialect)
	}
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, string(s.Dialect), driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}
