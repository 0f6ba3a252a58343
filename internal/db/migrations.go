package db

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// Migration is a single versioned, transactional schema change applied
// after the baseline schema.
type Migration struct {
	Version     int
	Description string
	Up          string
	Down        string
}

// MigrationRunner advances a database through the linear version sequence,
// atomically, against one connection at a time.
type MigrationRunner struct {
	logger zerolog.Logger
}

// NewMigrationRunner constructs a MigrationRunner.
func NewMigrationRunner(logger zerolog.Logger) *MigrationRunner {
	return &MigrationRunner{logger: logger.With().Str("component", "migrations").Logger()}
}

// GetCurrentVersion returns the maximum applied version, or 0 if the
// schema_migrations table does not exist yet (the very first run).
func (r *MigrationRunner) GetCurrentVersion(sqlDB *sql.DB) (int, error) {
	var version sql.NullInt64
	err := sqlDB.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version)
	if err != nil {
		if isNoSuchTable(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("db: get current version: %w", err)
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}

func isNoSuchTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

// InitializeSchema applies the full v1 DDL inside a single transaction and
// stamps (SchemaVersion, "Initial schema") if, and only if, the database
// is currently unversioned. A second call is a no-op.
func (r *MigrationRunner) InitializeSchema(sqlDB *sql.DB) error {
	version, err := r.GetCurrentVersion(sqlDB)
	if err != nil {
		return err
	}
	if version != 0 {
		r.logger.Debug().Int("version", version).Msg("schema already initialized")
		return nil
	}

	tx, err := sqlDB.Begin()
	if err != nil {
		return fmt.Errorf("db: begin schema init: %w", err)
	}
	if _, err := tx.Exec(schemaV1); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%w: apply baseline schema: %v", ErrMigrationFailed, err)
	}
	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
		SchemaVersion, "Initial schema",
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%w: record initial schema: %v", ErrMigrationFailed, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit schema init: %v", ErrMigrationFailed, err)
	}
	r.logger.Info().Int("version", SchemaVersion).Msg("schema initialized")
	return nil
}

// ApplyMigration runs m.Up and records the version inside one transaction.
func (r *MigrationRunner) ApplyMigration(sqlDB *sql.DB, m Migration) error {
	tx, err := sqlDB.Begin()
	if err != nil {
		return fmt.Errorf("db: begin migration %d: %w", m.Version, err)
	}
	if _, err := tx.Exec(m.Up); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%w: version %d (%s): %v", ErrMigrationFailed, m.Version, m.Description, err)
	}
	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
		m.Version, m.Description,
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%w: record version %d: %v", ErrMigrationFailed, m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit version %d: %v", ErrMigrationFailed, m.Version, err)
	}
	r.logger.Info().Int("version", m.Version).Str("description", m.Description).Msg("migration applied")
	return nil
}

// RollbackMigration executes m.Down and deletes its schema_migrations row
// inside one transaction.
func (r *MigrationRunner) RollbackMigration(sqlDB *sql.DB, m Migration) error {
	if strings.TrimSpace(m.Down) == "" {
		return errors.New("db: migration has no down statement")
	}
	tx, err := sqlDB.Begin()
	if err != nil {
		return fmt.Errorf("db: begin rollback %d: %w", m.Version, err)
	}
	if _, err := tx.Exec(m.Down); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("db: rollback %d: %w", m.Version, err)
	}
	if _, err := tx.Exec("DELETE FROM schema_migrations WHERE version = ?", m.Version); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("db: unrecord version %d: %w", m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("db: commit rollback %d: %w", m.Version, err)
	}
	r.logger.Info().Int("version", m.Version).Msg("migration rolled back")
	return nil
}

// RunMigrations applies every migration in list whose version exceeds the
// current version, ascending, stopping at the first failure and leaving
// the already-committed prefix intact.
func (r *MigrationRunner) RunMigrations(sqlDB *sql.DB, list []Migration) error {
	current, err := r.GetCurrentVersion(sqlDB)
	if err != nil {
		return err
	}

	pending := make([]Migration, 0, len(list))
	for _, m := range list {
		if m.Version > current {
			pending = append(pending, m)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Version < pending[j].Version })

	for _, m := range pending {
		if err := r.ApplyMigration(sqlDB, m); err != nil {
			return err
		}
	}
	return nil
}
