package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver
)

// busyTimeoutMS bounds how long a connection waits on another writer's lock.
const busyTimeoutMS = 10000

// New opens a single-connection handle on the SQLite file at path with
// write-ahead logging enabled. Callers own the handle and must Close it.
func New(ctx context.Context, path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", path, busyTimeoutMS)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureDir creates the directory that will hold the database file.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}

// Migrate runs the SQL statements to set up the database schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	const sqlStmt = `
	CREATE TABLE IF NOT EXISTS logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT,
		event_type TEXT,
		details TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON logs(timestamp);
	`
	_, err := db.ExecContext(ctx, sqlStmt)
	return err
}

// CompanionFiles returns the base names of the database file and the
// journal, shared-memory and write-ahead-log files SQLite keeps beside it.
func CompanionFiles(path string) []string {
	base := filepath.Base(path)
	return []string{base, base + "-journal", base + "-shm", base + "-wal"}
}
