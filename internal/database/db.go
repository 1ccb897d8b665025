// Package database provides the SQLite-backed conversation history store.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/edgard/langcoach/migrations"

	_ "modernc.org/sqlite" //revive:disable:blank-imports
)

// busyTimeoutMillis bounds how long a history write waits on a locked file,
// e.g. while the maintenance task runs VACUUM.
const busyTimeoutMillis = 5000

// Open opens the history database at path and brings its schema up to date.
// Pass ":memory:" for a throwaway database.
func Open(path string, log *slog.Logger) (*sqlx.DB, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "history_db")

	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database %q: %w", path, err)
	}

	// One connection: SQLite serialises writers anyway, and an in-memory
	// database only lives as long as its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeoutMillis)); err != nil {
		closeQuietly(db, log)
		return nil, fmt.Errorf("configure history database: %w", err)
	}

	version, err := Migrate(db.DB)
	if err != nil {
		closeQuietly(db, log)
		return nil, err
	}

	log.Info("History database ready", "path", path, "schema_version", version)
	return db, nil
}

// Close closes db, logging rather than returning the error so it can be deferred.
func Close(db *sqlx.DB, log *slog.Logger) {
	if db == nil {
		return
	}
	if log == nil {
		log = slog.Default()
	}
	if err := db.Close(); err != nil {
		log.Error("Closing history database failed", "component", "history_db", "error", err)
		return
	}
	log.Info("History database closed", "component", "history_db")
}

// Migrate applies the embedded turn-history migrations and reports the
// resulting schema version. Running it on an up-to-date database is a no-op.
func Migrate(db *sql.DB) (uint, error) {
	if db == nil {
		return 0, errors.New("migrate history schema: nil database")
	}

	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return 0, fmt.Errorf("load history migrations: %w", err)
	}
	target, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return 0, fmt.Errorf("prepare history schema driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", target)
	if err != nil {
		return 0, fmt.Errorf("prepare history migrations: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migrate history schema: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("read history schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("history schema version %d is dirty", version)
	}
	return version, nil
}

func closeQuietly(db *sqlx.DB, log *slog.Logger) {
	if err := db.Close(); err != nil {
		log.Error("Closing history database after setup failure", "error", err)
	}
}
