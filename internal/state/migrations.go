package state

import "fmt"

// migration represents a database schema migration.
type migration struct {
	version int
	name    string
	up      string
}

// migrations contains all database migrations in order.
// Add new migrations to the end of this slice.
var migrations = []migration{
	{
		version: 1,
		name:    "create_runs_table",
		up: `
CREATE TABLE runs (
    id            TEXT PRIMARY KEY,
    kind          TEXT NOT NULL,
    program_path  TEXT NOT NULL,
    program_hash  TEXT NOT NULL,
    metadata_path TEXT,
    created_at    TEXT NOT NULL,
    finished_at   TEXT,
    outcome       TEXT NOT NULL,
    detail        TEXT
);

CREATE INDEX idx_runs_kind ON runs(kind);
CREATE INDEX idx_runs_outcome ON runs(outcome);
CREATE INDEX idx_runs_program_hash ON runs(program_hash);
`,
	},
	{
		version: 2,
		name:    "create_executions_table",
		up: `
CREATE TABLE executions (
    run_id       TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    config       TEXT NOT NULL,
    outcome      TEXT NOT NULL,
    output       BLOB,
    diagnostic   TEXT,
    duration_ms  INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (run_id, config)
);
`,
	},
}

// migrate brings the schema up to date. The applied version is kept in
// SQLite's user_version pragma, so a database written by a newer binary is
// rejected instead of silently misread.
func (db *DB) migrate() error {
	current, err := db.SchemaVersion()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	latest := migrations[len(migrations)-1].version
	if current > latest {
		return fmt.Errorf("database schema version %d is newer than supported version %d", current, latest)
	}

	for i, m := range migrations {
		if m.version != i+1 {
			return fmt.Errorf("migration %q has version %d, expected %d", m.name, m.version, i+1)
		}
		if m.version <= current {
			continue
		}
		if err := db.apply(m); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.name, err)
		}
	}
	return nil
}

// apply runs one migration and bumps user_version in the same transaction.
func (db *DB) apply(m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.up); err != nil {
		return err
	}
	// PRAGMA does not accept bound parameters.
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return tx.Commit()
}

// SchemaVersion returns the version of the last applied migration, or 0
// for a fresh database.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}
