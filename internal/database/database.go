package database

import (
	"database/sql"

	_ "modernc.org/sqlite" // SQLite driver
)

// New creates a new database connection pool.
func New(dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, err
	}
	// SQLite handles a single writer; one connection also keeps the
	// foreign_keys pragma in effect for every statement.
	db.SetMaxOpenConns(1)
	if _, err = db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate runs the SQL statements to set up the database schema.
func Migrate(db *sql.DB) error {
	const sqlStmt = `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT NOT NULL PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		first_name TEXT,
		last_name TEXT,
		role TEXT NOT NULL DEFAULT 'User',
		is_admin INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS recurrences (
		id TEXT NOT NULL PRIMARY KEY,
		pattern TEXT NOT NULL DEFAULT 'None' CHECK (pattern IN ('None', 'Weekly', 'Monthly')),
		interval INTEGER NOT NULL DEFAULT 1 CHECK (interval >= 1)
	);

	CREATE TABLE IF NOT EXISTS meetings (
		id TEXT NOT NULL PRIMARY KEY,
		title TEXT NOT NULL,
		date TEXT NOT NULL,           -- YYYY-MM-DD
		start_time TEXT NOT NULL,     -- HH:MM
		end_time TEXT NOT NULL,
		end_date TEXT,
		color_hex TEXT,
		is_regular INTEGER NOT NULL DEFAULT 0,
		interval INTEGER NOT NULL DEFAULT 1,
		recurrence_id TEXT REFERENCES recurrences(id) ON DELETE SET NULL,
		created_by_user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME,
		CHECK (end_time > start_time),
		CHECK (end_date IS NULL OR end_date >= date)
	);

	CREATE TABLE IF NOT EXISTS meeting_participants (
		meeting_id TEXT NOT NULL REFERENCES meetings(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
		PRIMARY KEY (meeting_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT NOT NULL PRIMARY KEY,
		type TEXT NOT NULL,
		level TEXT NOT NULL,
		message TEXT NOT NULL,
		meeting_id TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(sqlStmt)
	return err
}
