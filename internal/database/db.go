// Package database opens the relational store and creates its schema.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/iliyamo/moviestore/internal/query"
)

// Supported driver names.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Options selects the backend.  DSN is a file path or ":memory:" for
// SQLite and a go-sql-driver DSN for MySQL.
type Options struct {
	Driver string
	DSN    string
}

// Open connects to the configured backend, applies connection settings,
// verifies the connection and runs migrations.  The returned dialect is
// what the query planner renders for.
func Open(ctx context.Context, opts Options, log zerolog.Logger) (*sql.DB, query.Dialect, error) {
	switch opts.Driver {
	case DriverSQLite, "":
		db, err := openSQLite(ctx, opts.DSN, log)
		return db, query.SQLite, err
	case DriverMySQL:
		db, err := openMySQL(ctx, opts.DSN)
		return db, query.MySQL, err
	}
	return nil, 0, fmt.Errorf("database: unsupported driver %q", opts.Driver)
}

func openSQLite(ctx context.Context, dsn string, log zerolog.Logger) (*sql.DB, error) {
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", sqliteDSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: an in-memory database exists per connection, and
	// SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			closeQuietly(db, log)
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		closeQuietly(db, log)
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	if err := Migrate(ctx, db, query.SQLite); err != nil {
		closeQuietly(db, log)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// sqliteDSN adds the pragmas as connection parameters so that a
// reconnected handle keeps enforcing foreign keys.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	if dsn == ":memory:" {
		dsn = "file::memory:"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func openMySQL(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := Migrate(ctx, db, query.MySQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

func closeQuietly(db *sql.DB, log zerolog.Logger) {
	if err := db.Close(); err != nil {
		log.Error().Err(err).Msg("error closing db")
	}
}
