package database

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered schema history. New schema changes append a
// new entry; applied versions are never edited.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		SQL: `
			CREATE TABLE IF NOT EXISTS workflow_definitions (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				workflow_type TEXT NOT NULL DEFAULT '',
				body TEXT NOT NULL,
				created_at DATETIME NOT NULL
			);

			CREATE TABLE IF NOT EXISTS workflow_instances (
				id TEXT PRIMARY KEY,
				definition_id TEXT NOT NULL REFERENCES workflow_definitions(id),
				initiator TEXT NOT NULL,
				attributes TEXT NOT NULL DEFAULT '{}',
				priority INTEGER NOT NULL DEFAULT 0,
				status TEXT NOT NULL,
				parallel INTEGER NOT NULL DEFAULT 0,
				applicable TEXT NOT NULL,
				current_stage_index INTEGER NOT NULL DEFAULT 0,
				stages TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				terminal_at DATETIME
			);

			CREATE INDEX IF NOT EXISTS idx_instances_status
				ON workflow_instances(status);
			CREATE INDEX IF NOT EXISTS idx_instances_definition
				ON workflow_instances(definition_id);

			CREATE TABLE IF NOT EXISTS audit_log (
				id TEXT PRIMARY KEY,
				instance_id TEXT NOT NULL,
				action TEXT NOT NULL,
				actor TEXT NOT NULL DEFAULT '',
				details TEXT NOT NULL DEFAULT '{}',
				timestamp DATETIME NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_audit_instance
				ON audit_log(instance_id, timestamp);
		`,
	},
}

// Migrator handles database migrations
type Migrator struct {
	db     *DB
	logger *zap.Logger
}

// NewMigrator creates a new migrator
func NewMigrator(db *DB, logger *zap.Logger) *Migrator {
	return &Migrator{
		db:     db,
		logger: logger,
	}
}

func (m *Migrator) createMigrationsTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`
	_, err := m.db.Exec(query)
	return err
}

func (m *Migrator) getAppliedMigrations() (map[int]bool, error) {
	rows, err := m.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// RunMigrations executes all pending migrations
func (m *Migrator) RunMigrations() error {
	m.logger.Info("Starting database migrations")

	if err := m.createMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := m.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range migrations {
		if applied[migration.Version] {
			m.logger.Debug("Skipping applied migration",
				zap.Int("version", migration.Version),
				zap.String("name", migration.Name))
			continue
		}

		m.logger.Info("Applying migration",
			zap.Int("version", migration.Version),
			zap.String("name", migration.Name))

		if err := m.applyMigration(migration); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
		}
	}
	return nil
}

// applyMigration applies a single migration within a transaction
func (m *Migrator) applyMigration(migration Migration) error {
	return m.db.WithTransaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(migration.SQL); err != nil {
			return fmt.Errorf("failed to execute migration SQL: %w", err)
		}

		_, err := tx.Exec(
			"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
			migration.Version,
			migration.Name,
		)
		if err != nil {
			return fmt.Errorf("failed to record migration: %w", err)
		}

		return nil
	})
}
