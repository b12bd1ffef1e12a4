package storage

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 database/sql driver
)

// OpenDatabase opens (creating if necessary) the SQLite file at dbPath.
//
// The DSN pragmas match the application's contract:
//   - foreign_keys: referential integrity is always on for application
//     connections (schema resets switch it off explicitly, see
//     InitializeDatabase)
//   - busy_timeout: wait up to 5s instead of failing on lock contention
func OpenDatabase(dbPath string) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_busy_timeout=5000", dbPath)

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Open is lazy; Ping actually creates the file / opens the connection.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Single-writer model: one connection, SQLite's own file lock is the
	// only coordination this application needs.
	db.SetMaxOpenConns(1)

	return db, nil
}
