package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3" // Required by the library implementation.
)

// busyTimeout lets concurrent request handlers wait for the write lock
// instead of failing with SQLITE_BUSY.
const busyTimeout = 5 * time.Second

// Database stores the query log.
type Database struct {
	db  *sql.DB
	log *slog.Logger
}

//go:embed migrations/*.sql
var migrationsFS embed.FS

func New(ctx context.Context, dbPath string, log *slog.Logger) (*Database, error) {
	dbFile, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open DB file: %w", err)
	}

	if err = dbFile.PingContext(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("ping DB: %w", err), dbFile.Close())
	}

	version, applied, err := migrateUp(dbFile)
	if err != nil {
		return nil, errors.Join(err, dbFile.Close())
	}

	log.InfoContext(ctx, "Query log schema is ready",
		"dbPath", dbPath,
		"version", version,
		"migrated", applied)

	return &Database{db: dbFile, log: log}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func dsn(dbPath string) string {
	params := url.Values{}
	params.Set("_busy_timeout", fmt.Sprint(busyTimeout.Milliseconds()))
	params.Set("_journal_mode", "WAL")

	return "file:" + dbPath + "?" + params.Encode()
}

// migrateUp applies pending migrations and reports the resulting schema
// version and whether anything was applied.
func migrateUp(dbFile *sql.DB) (uint, bool, error) {
	dbInstance, err := sqlite3.WithInstance(dbFile, &sqlite3.Config{})
	if err != nil {
		return 0, false, fmt.Errorf("create DB instance: %w", err)
	}

	srcInstance, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return 0, false, fmt.Errorf("create source instance: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", srcInstance, "sqlite3", dbInstance)
	if err != nil {
		return 0, false, fmt.Errorf("create migrate instance: %w", err)
	}

	applied := true
	if err = m.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return 0, false, fmt.Errorf("apply migrations: %w", err)
		}

		applied = false
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, applied, fmt.Errorf("read migration version: %w", err)
	}

	if dirty {
		return version, applied, fmt.Errorf("migration version %d is dirty", version)
	}

	return version, applied, nil
}
