// Package db stores analysis runs in a SQLite archive. The schema is owned by
// the embedded migrations; OpenDB never creates tables itself.
package db

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationsDir is the directory of migrationsFS holding the migration files.
const MigrationsDir = "migrations"

// DB wraps the archive connection.
type DB struct {
	*sql.DB
}

var pragmas = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 5000",
}

// OpenDB opens the archive at path and applies connection pragmas. It does
// not migrate; call MigrateUp for that.
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	// Pragmas are per connection; a single connection keeps them in force.
	conn.SetMaxOpenConns(1)
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	return &DB{conn}, nil
}

// OpenArchive opens the archive at path and brings its schema up to date.
func OpenArchive(path string) (*DB, error) {
	database, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := database.MigrateUp(Migrations()); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

// Migrations returns the embedded migrations, rooted at the migration files.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationsFS, MigrationsDir)
	if err != nil {
		panic(err)
	}
	return sub
}
