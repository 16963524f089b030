// Package postgres implements a pricing.DataSource backed by PostgreSQL,
// the simulator's alternative to the CSV source for larger historical
// datasets, alongside the golang-migrate schema migrations it depends on.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	pgxv5 "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx driver for database/sql

	"github.com/nordlight/backtester/errs"
	"github.com/nordlight/backtester/internal/observability"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// ApplyMigrations ensures the daily_bars schema is present at dsn. It is
// safe to call on every startup: golang-migrate reports ErrNoChange once
// the schema is current rather than failing.
func ApplyMigrations(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return errs.New("pricesource/postgres", errs.KindConfiguration,
			errs.WithMessage("open migrations connection"), errs.WithCause(err))
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return errs.New("pricesource/postgres", errs.KindConfiguration,
			errs.WithMessage("ping migrations database"), errs.WithCause(err))
	}

	sourceDriver, err := iofs.New(embeddedMigrations, "migrations")
	if err != nil {
		return errs.New("pricesource/postgres", errs.KindConfiguration,
			errs.WithMessage("load embedded migrations"), errs.WithCause(err))
	}

	var driverConfig pgxv5.Config
	dbDriver, err := pgxv5.WithInstance(db, &driverConfig)
	if err != nil {
		return errs.New("pricesource/postgres", errs.KindConfiguration,
			errs.WithMessage("init pgx5 migrate driver"), errs.WithCause(err))
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "pgx5", dbDriver)
	if err != nil {
		return errs.New("pricesource/postgres", errs.KindConfiguration,
			errs.WithMessage("init migrate instance"), errs.WithCause(err))
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			observability.Log().Info("pricesource/postgres: schema up to date")
			return nil
		}
		return errs.New("pricesource/postgres", errs.KindConfiguration,
			errs.WithMessage("apply migrations"), errs.WithCause(err))
	}
	observability.Log().Info("pricesource/postgres: migrations applied")
	return nil
}
