// Package migrations embeds the SQL schema and applies it with golang-migrate.
package migrations

import (
	"embed"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"
)

//go:embed sql/*.sql
var files embed.FS

// New opens a migrator for a postgres:// DSN.
func New(dsn string) (*migrate.Migrate, error) {
	src, err := iofs.New(files, "sql")
	if err != nil {
		return nil, errors.Wrap(err, "open embedded migrations")
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, DatabaseURL(dsn))
	if err != nil {
		return nil, errors.Wrap(err, "init migrator")
	}
	return m, nil
}

func Up(dsn string) error {
	return run(dsn, func(m *migrate.Migrate) error { return m.Up() })
}

// Down reverts the last n migrations, or all of them when n <= 0.
func Down(dsn string, n int) error {
	return run(dsn, func(m *migrate.Migrate) error {
		if n > 0 {
			return m.Steps(-n)
		}
		return m.Down()
	})
}

func run(dsn string, fn func(*migrate.Migrate) error) error {
	m, err := New(dsn)
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()
	if err := fn(m); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "apply migrations")
	}
	return nil
}

// DatabaseURL rewrites the scheme for the pgx/v5 migrate driver.
func DatabaseURL(dsn string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix)
		}
	}
	return dsn
}
