// Package db provides the relational storage layer for TaskFlow.
//
// The default backend is embedded SQLite (ncruces/go-sqlite3, WAL mode).
// DSNs that point at a Turso/libSQL server (libsql://, http://, https://)
// are opened through go-libsql instead, so the same schema and queries run
// against a hosted database.
//
// Every write that the GitHub reconciler performs is a single-statement
// upsert keyed by a UNIQUE index, so concurrent syncs of one repository
// converge on one row per remote issue (last writer wins).
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// timeFormat is fixed-width so that text comparison orders rows chronologically.
const timeFormat = "2006-01-02T15:04:05.000000Z"

// DB wraps the database connection with TaskFlow-specific queries.
type DB struct {
	conn   *sql.DB
	path   string
	remote bool
}

// IsRemote reports whether dsn addresses a libSQL server rather than a local file.
func IsRemote(dsn string) bool {
	for _, prefix := range []string{"libsql://", "http://", "https://"} {
		if strings.HasPrefix(dsn, prefix) {
			return true
		}
	}
	return false
}

// Open creates a new database connection for dsn.
//
// A plain path (or file: URI) opens embedded SQLite, creating the parent
// directory when needed. Remote DSNs are handed to the libsql driver as-is.
//
// The caller MUST call Close() when done.
//
// Example:
//
//	database, err := db.Open("data/taskflow.db")
//	if err != nil {
//	    return err
//	}
//	defer database.Close()
func Open(dsn string) (*DB, error) {
	if IsRemote(dsn) {
		return openRemote(dsn)
	}

	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn, path: path}

	pragmas := []struct{ stmt, what string }{
		{"PRAGMA journal_mode=WAL", "enable WAL mode"},
		{"PRAGMA busy_timeout=5000", "set busy timeout"},
		{"PRAGMA foreign_keys=ON", "enable foreign keys"},
	}
	for _, p := range pragmas {
		if _, err := db.conn.Exec(p.stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to %s: %w", p.what, err)
		}
	}

	return db, nil
}

func openRemote(dsn string) (*DB, error) {
	conn, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open libsql database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping libsql database: %w", err)
	}
	return &DB{conn: conn, path: dsn, remote: true}, nil
}

// Close closes the database connection, checkpointing the WAL for local files.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if !db.remote {
		if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
		}
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates the database schema if it doesn't exist.
// Safe to call multiple times.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the database schema with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'OPEN',
			priority INTEGER NOT NULL DEFAULT 2,
			creator_id TEXT NOT NULL REFERENCES users(id),
			assignee_id TEXT REFERENCES users(id),
			due_at TEXT,
			external_source TEXT,
			external_repo TEXT COLLATE NOCASE,
			external_number INTEGER,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		// At most one local task per remote issue.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_tasks_external
			ON tasks(external_source, external_repo, external_number)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_creator ON tasks(creator_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_assignee ON tasks(assignee_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
		`CREATE TABLE IF NOT EXISTS task_events (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
			type TEXT NOT NULL,
			old_status TEXT,
			new_status TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_task_events_task ON task_events(task_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
			message TEXT NOT NULL DEFAULT '',
			read INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_user
			ON notifications(user_id, read, created_at)`,
		`CREATE TABLE IF NOT EXISTS credentials (
			user_id TEXT NOT NULL,
			provider TEXT NOT NULL,
			encrypted_token TEXT NOT NULL,
			scope TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL,
			PRIMARY KEY (user_id, provider)
		)`,
		`CREATE TABLE IF NOT EXISTS slack_installations (
			team_id TEXT PRIMARY KEY,
			team_name TEXT NOT NULL DEFAULT '',
			enterprise_id TEXT NOT NULL DEFAULT '',
			installer_user_id TEXT NOT NULL DEFAULT '',
			bot_user_id TEXT NOT NULL DEFAULT '',
			encrypted_bot_token TEXT NOT NULL,
			encrypted_user_token TEXT NOT NULL DEFAULT '',
			scope TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	return nil
}

// formatTime renders t in the fixed-width storage format.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

// parseTime accepts the storage format and falls back to RFC3339.
func parseTime(s string) time.Time {
	if t, err := time.Parse(timeFormat, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

// timeToNullString converts a time pointer to a nullable string for SQL.
func timeToNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

// nullStringToTime converts a nullable SQL string to a time pointer.
func nullStringToTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	if t.IsZero() {
		return nil
	}
	return &t
}

func stringToNull(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
