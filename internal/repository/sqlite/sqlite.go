// Package sqlite stores users, their linked provider accounts and their
// contacts in a single SQLite file (or ":memory:" in tests).
//
// modernc.org/sqlite is a pure Go build of SQLite, so the binary needs no C
// toolchain. Access goes through database/sql:
//   - sql.DB   the pool (capped at one connection, see New)
//   - sql.Tx   user and contact writes touch two tables, so they run in one
//   - sql.Rows must be closed before the next query on the same connection
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and hands out the per-table stores.
//
// WHY WRAP sql.DB IN A STRUCT?
// 1. One pool is shared by UserDB and ContactDB (see Users/Contacts)
// 2. We control the lifecycle (New creates it, Close destroys it)
// 3. Migrations run exactly once, in New
type DB struct {
	conn *sql.DB
}

// Users returns the repository.UserRepository backed by this database.
func (db *DB) Users() *UserDB {
	return &UserDB{conn: db.conn}
}

// Contacts returns the repository.ContactRepository backed by this database.
func (db *DB) Contacts() *ContactDB {
	return &ContactDB{conn: db.conn}
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/unify.db"  → file-based database (persistent)
//   - ":memory:"       → in-memory database (great for tests, lost on close)
//
// CONNECTION POOL:
// sql.Open() does NOT actually open a connection — it just creates a pool manager.
// The first real connection happens when you run your first query.
// We call db.Ping() to force an immediate connection and verify it works.
func New(dbPath string) (*DB, error) {
	// Open a connection pool to the SQLite database.
	// "sqlite" is the driver name registered by the blank import above.
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// ONE CONNECTION:
	// PRAGMAs are per connection, and every connection to ":memory:" is its
	// own empty database. A single connection keeps foreign keys on for every
	// query and lets tests share one in-memory database. SQLite serializes
	// writers anyway.
	conn.SetMaxOpenConns(1)

	// Ping verifies the connection actually works.
	// Without this, a bad path or permissions issue would only surface
	// on the first query — which is much harder to debug.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// PRAGMA STATEMENTS:
	// SQLite has special "PRAGMA" commands that configure its behaviour.
	// These run once at connection time.

	// WAL (Write-Ahead Logging) mode:
	// Default SQLite locks the entire database during writes.
	// WAL mode allows concurrent reads WHILE a write is happening.
	// This is critical for a web server where multiple requests hit the DB.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite (for backwards compatibility).
	// We need them ON: deleting a user cascades to accounts, contacts and
	// contact accounts through ON DELETE CASCADE.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	// Run database migrations to create/update tables
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
//
// ALWAYS DEFER CLOSE:
// Wherever you call New(), immediately defer Close():
//
//	db, err := sqlite.New("data/unify.db")
//	if err != nil { ... }
//	defer db.Close()
//
// This ensures the connection is cleaned up even if a panic occurs.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate runs all database migrations.
//
// MIGRATIONS IN PRODUCTION:
// For a project this size, embedding SQL as string constants is fine.
// CREATE TABLE IF NOT EXISTS is safe to run on every start.
//
// SCHEMA NOTES:
//   - users.email is nullable and UNIQUE. Users without an email (Twitter or
//     Instagram signups) store NULL, and SQLite allows any number of NULLs.
//   - user_accounts is keyed by (user_id, provider): one account per provider.
//     The (provider, external_id) index is deliberately NOT unique; the
//     account linker checks for an existing holder before attaching.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id               TEXT PRIMARY KEY,
			name             TEXT NOT NULL DEFAULT '',
			email            TEXT UNIQUE,
			password_hash    TEXT NOT NULL DEFAULT '',
			verified         INTEGER NOT NULL DEFAULT 0,
			valid_local_user INTEGER NOT NULL DEFAULT 0,
			created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// Added after the first release; older databases lack it.
	if err := db.addColumnIfNotExists("users", "main_circle_id",
		"TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("adding main_circle_id to users: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS user_accounts (
			user_id       TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			provider      TEXT NOT NULL,
			external_id   TEXT NOT NULL,
			access_token  TEXT NOT NULL DEFAULT '',
			secret        TEXT NOT NULL DEFAULT '',
			refresh_token TEXT NOT NULL DEFAULT '',
			display_name  TEXT NOT NULL DEFAULT '',
			picture       TEXT NOT NULL DEFAULT '',
			email         TEXT NOT NULL DEFAULT '',
			valid         INTEGER NOT NULL DEFAULT 1,
			PRIMARY KEY (user_id, provider)
		);
		CREATE INDEX IF NOT EXISTS idx_user_accounts_external
			ON user_accounts(provider, external_id);
	`)
	if err != nil {
		return fmt.Errorf("creating user_accounts table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS contacts (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name       TEXT NOT NULL DEFAULT '',
			email      TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_contacts_user_id ON contacts(user_id);

		CREATE TABLE IF NOT EXISTS contact_accounts (
			contact_id  TEXT NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
			provider    TEXT NOT NULL,
			external_id TEXT NOT NULL DEFAULT '',
			username    TEXT NOT NULL DEFAULT '',
			valid       INTEGER NOT NULL DEFAULT 1,
			PRIMARY KEY (contact_id, provider)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating contacts tables: %w", err)
	}

	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already exist.
// Makes ALTER TABLE migrations idempotent — safe to run multiple times.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil // column already exists
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// nullString maps "" to SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
