// Package backends provides the SQLite and PostgreSQL implementations behind
// the Database Hub.
package backends

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration is one schema change. Versions start at 1 and increase by one.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrator applies a dialect's migrations and records them in
// schema_version.
type Migrator struct {
	db         *sql.DB
	migrations []Migration
	createSQL  string
	insertSQL  string
}

func newMigrator(db *sql.DB, migrations []Migration, createSQL, insertSQL string) *Migrator {
	return &Migrator{db: db, migrations: migrations, createSQL: createSQL, insertSQL: insertSQL}
}

// LatestVersion returns the newest known migration version.
func (m *Migrator) LatestVersion() int {
	if len(m.migrations) == 0 {
		return 0
	}
	return m.migrations[len(m.migrations)-1].Version
}

// CurrentVersion returns the highest applied version, or 0 when nothing
// was applied yet.
func (m *Migrator) CurrentVersion(ctx context.Context) (int, error) {
	if _, err := m.db.ExecContext(ctx, m.createSQL); err != nil {
		return 0, fmt.Errorf("create schema_version table: %w", err)
	}
	var version int
	if err := m.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

// NeedsMigration reports whether migrations are pending.
func (m *Migrator) NeedsMigration(ctx context.Context) (bool, error) {
	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return false, err
	}
	return current < m.LatestVersion(), nil
}

// Migrate applies pending migrations up to target (0 means latest). Each
// migration runs in its own transaction together with its schema_version row.
func (m *Migrator) Migrate(ctx context.Context, target int) error {
	if target <= 0 || target > m.LatestVersion() {
		target = m.LatestVersion()
	}
	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if mig.Version <= current || mig.Version > target {
			continue
		}
		if err := m.apply(ctx, mig); err != nil {
			return fmt.Errorf("migration %d (%s): %w", mig.Version, mig.Description, err)
		}
	}
	return nil
}

func (m *Migrator) apply(ctx context.Context, mig Migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, mig.SQL); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, m.insertSQL, mig.Version); err != nil {
		return fmt.Errorf("record version: %w", err)
	}
	return tx.Commit()
}
