package database

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/moviestore/internal/query"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		is_admin INTEGER NOT NULL DEFAULT 0,
		password TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS comments (
		comment_id INTEGER PRIMARY KEY AUTOINCREMENT,
		payload TEXT NOT NULL,
		user_id INTEGER NOT NULL REFERENCES users(user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS movies (
		movie_id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT,
		original_title TEXT,
		original_language TEXT,
		overview TEXT,
		release_date INTEGER,
		revenue INTEGER,
		budget INTEGER,
		homepage TEXT,
		runtime INTEGER,
		rating REAL,
		status TEXT,
		country TEXT,
		genres TEXT,
		director TEXT,
		spoken_languages TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_release_rating ON movies(release_date, rating)`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		username VARCHAR(64) NOT NULL UNIQUE,
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		password VARCHAR(255) NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS comments (
		comment_id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		payload TEXT NOT NULL,
		user_id BIGINT NOT NULL,
		CONSTRAINT fk_comments_user FOREIGN KEY (user_id) REFERENCES users(user_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS movies (
		movie_id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		title TEXT NULL,
		original_title TEXT NULL,
		original_language VARCHAR(16) NULL,
		overview TEXT NULL,
		release_date BIGINT NULL,
		revenue BIGINT NULL,
		budget BIGINT NULL,
		homepage TEXT NULL,
		runtime BIGINT NULL,
		rating DOUBLE NULL,
		status VARCHAR(32) NULL,
		country TEXT NULL,
		genres TEXT NULL,
		director TEXT NULL,
		spoken_languages TEXT NULL,
		INDEX idx_release_rating (release_date, rating)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the users, comments and movies tables and the
// (release_date, rating) index when they do not exist.
func Migrate(ctx context.Context, db *sql.DB, d query.Dialect) error {
	stmts := sqliteSchema
	if d == query.MySQL {
		stmts = mysqlSchema
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return &migrationError{stmt: firstLine(s), err: err}
		}
	}
	return nil
}

type migrationError struct {
	stmt string
	err  error
}

func (e *migrationError) Error() string { return e.stmt + ": " + e.err.Error() }
func (e *migrationError) Unwrap() error { return e.err }

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSuffix(strings.TrimSpace(s[:i]), "(")
	}
	return s
}
