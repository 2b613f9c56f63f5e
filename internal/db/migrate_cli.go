package db

import (
	"fmt"
	"io"
	"io/fs"
	"strconv"
)

// RunMigrateCommand handles the 'migrate' subcommand against the archive at
// dbPath. Status output goes to w.
func RunMigrateCommand(args []string, dbPath string, w io.Writer) error {
	if len(args) < 1 {
		PrintMigrateHelp(w)
		return fmt.Errorf("missing migrate action")
	}
	action := args[0]
	if action == "help" {
		PrintMigrateHelp(w)
		return nil
	}

	// Migrations manage the schema, so the database is opened bare.
	database, err := OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()
	migrations := Migrations()

	switch action {
	case "up":
		if err := database.MigrateUp(migrations); err != nil {
			return err
		}
		return printVersion(w, database, migrations)

	case "down":
		if err := database.MigrateDown(migrations); err != nil {
			return err
		}
		return printVersion(w, database, migrations)

	case "status":
		return printVersion(w, database, migrations)

	case "version", "force":
		if len(args) < 2 {
			return fmt.Errorf("usage: urbansnails migrate %s <version_number>", action)
		}
		v, err := strconv.Atoi(args[1])
		if err != nil || v < 0 {
			return fmt.Errorf("invalid version number: %s", args[1])
		}
		if action == "version" {
			err = database.MigrateTo(migrations, uint(v))
		} else {
			err = database.MigrateForce(migrations, v)
		}
		if err != nil {
			return err
		}
		return printVersion(w, database, migrations)

	default:
		PrintMigrateHelp(w)
		return fmt.Errorf("unknown migrate action: %s", action)
	}
}

func printVersion(w io.Writer, database *DB, migrations fs.FS) error {
	version, dirty, err := database.MigrateVersion(migrations)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	fmt.Fprintf(w, "Current version: %d (dirty: %v)\n", version, dirty)
	if dirty {
		fmt.Fprintln(w, "A migration failed mid-execution. Inspect the archive, then run: urbansnails migrate force <version>")
	}
	return nil
}

// PrintMigrateHelp writes the migrate subcommand usage.
func PrintMigrateHelp(w io.Writer) {
	fmt.Fprint(w, `Usage: urbansnails migrate <action> [args]

Actions:
  up               apply all pending migrations
  down             roll back the most recent migration
  status           show the current version
  version <N>      migrate up or down to version N
  force <N>        set the recorded version without running migrations
  help             show this message
`)
}
