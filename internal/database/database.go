// Package database opens the sqlite store and keeps its schema
// current.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// compatStatements add columns that did not exist in early schema
// versions. They run outside goose so a database created before the
// columns existed upgrades in place; duplicate-column errors from
// already-upgraded databases are expected and ignored.
var compatStatements = []string{
	`ALTER TABLE manual_jobs ADD COLUMN metadata_dir TEXT`,
	`ALTER TABLE manual_jobs ADD COLUMN source TEXT NOT NULL DEFAULT 'manual'`,
	`ALTER TABLE manual_jobs ADD COLUMN advanced_settings TEXT`,
	`ALTER TABLE manual_jobs ADD COLUMN target_folder TEXT`,
	`ALTER TABLE manual_jobs ADD COLUMN delete_empty_parent INTEGER NOT NULL DEFAULT 0`,
	`ALTER TABLE manual_jobs ADD COLUMN config_reuse_id INTEGER`,
	`ALTER TABLE manual_jobs ADD COLUMN skip_count INTEGER NOT NULL DEFAULT 0`,
	`ALTER TABLE manual_jobs ADD COLUMN error_count INTEGER NOT NULL DEFAULT 0`,
}

// DB wraps the database connection and provides query methods.
type DB struct {
	conn *sql.DB
	path string
}

// New creates a new database connection with SQLite.
func New(path string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open SQLite connection with WAL mode and other optimizations
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)", path)

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	conn.SetMaxOpenConns(1) // SQLite only supports one writer
	conn.SetMaxIdleConns(1)

	// Verify connection
	if err := conn.PingContext(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{
		conn: conn,
		path: path,
	}, nil
}

// Conn returns the underlying database connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Migrate runs all pending migrations from the embedded SQL files,
// then applies the additive column upgrades. Compat errors are
// swallowed: either the column already exists or a later query will
// surface the real problem with better context.
func (db *DB) Migrate() error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db.conn, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	for _, stmt := range compatStatements {
		_, _ = db.conn.Exec(stmt)
	}

	return nil
}
