// Package persistence provides SQLite-based audit storage for correction
// cycles: every iteration, fix, and outcome is recorded so a run can be
// reconstructed after the fact.
package persistence

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver

	"autoqa/pkg/logx"
)

// CurrentSchemaVersion defines the current schema version for migration support.
const CurrentSchemaVersion = 1

// Store is the audit database. SQLite supports one writer, so the
// connection pool is pinned to a single connection.
type Store struct {
	db     *sql.DB
	logger *logx.Logger
}

// Open creates or opens the audit database at dbPath and brings the schema
// to the current version. Safe to call on an existing database.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf(
		"file:%s?_foreign_keys=ON&_journal_mode=WAL&_busy_timeout=5000",
		dbPath,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initializeSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)

	logger := logx.NewLogger("persistence")
	logger.Info("audit database ready: %s", dbPath)

	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// initializeSchema ensures the schema is at the current version.
func initializeSchema(db *sql.DB) error {
	version, err := schemaVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	if version == 0 {
		return createSchema(db)
	}
	if version == CurrentSchemaVersion {
		return nil
	}
	if version > CurrentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, CurrentSchemaVersion)
	}
	// No migrations yet; the first schema change adds them here.
	return fmt.Errorf("no migration path from schema version %d", version)
}

func schemaVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow("PRAGMA user_version").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read user_version: %w", err)
	}
	return version, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS cycles (
		id               TEXT PRIMARY KEY,
		language         TEXT NOT NULL,
		framework        TEXT NOT NULL,
		started_at       TIMESTAMP NOT NULL,
		finished_at      TIMESTAMP,
		termination      TEXT,
		iterations       INTEGER NOT NULL DEFAULT 0,
		initial_failures INTEGER NOT NULL DEFAULT 0,
		final_failures   INTEGER NOT NULL DEFAULT 0,
		final_version_id TEXT
	);

	CREATE TABLE IF NOT EXISTS iterations (
		cycle_id          TEXT NOT NULL REFERENCES cycles(id),
		num               INTEGER NOT NULL,
		version_id        TEXT NOT NULL,
		parent_version_id TEXT,
		total             INTEGER NOT NULL,
		passed            INTEGER NOT NULL,
		failed            INTEGER NOT NULL,
		improvement_pct   REAL NOT NULL,
		duration_ms       INTEGER NOT NULL,
		PRIMARY KEY (cycle_id, num)
	);

	CREATE TABLE IF NOT EXISTS fixes (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		cycle_id    TEXT NOT NULL REFERENCES cycles(id),
		iteration   INTEGER NOT NULL,
		target_file TEXT NOT NULL,
		strategy    TEXT NOT NULL,
		confidence  REAL NOT NULL,
		applied     INTEGER NOT NULL,
		reason      TEXT,
		rationale   TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_iterations_cycle ON iterations(cycle_id);
	CREATE INDEX IF NOT EXISTS idx_fixes_cycle ON fixes(cycle_id);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", CurrentSchemaVersion)); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}
	return nil
}
