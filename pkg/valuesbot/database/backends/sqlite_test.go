package backends

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestSQLite(t *testing.T) *SQLiteBackend {
	t.Helper()
	backend, err := OpenSQLite(context.Background(), SQLiteConfig{
		Path: filepath.Join(t.TempDir(), "data", "test.db"),
	})
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	t.Cleanup(func() { backend.Close() })
	return backend
}

func TestOpenSQLite(t *testing.T) {
	backend := openTestSQLite(t)

	if backend.DB == nil {
		t.Fatal("DB is nil")
	}
	if backend.Config.JournalMode != "WAL" {
		t.Errorf("JournalMode = %q, want WAL", backend.Config.JournalMode)
	}
	if err := backend.Health.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

func TestSQLiteMigrator(t *testing.T) {
	ctx := context.Background()
	backend := openTestSQLite(t)

	needs, err := backend.Migrator.NeedsMigration(ctx)
	if err != nil {
		t.Fatalf("NeedsMigration failed: %v", err)
	}
	if !needs {
		t.Error("fresh database should need migration")
	}

	// Twice: the second run must be a no-op.
	for i := 0; i < 2; i++ {
		if err := backend.Migrator.Migrate(ctx, 0); err != nil {
			t.Fatalf("Migrate #%d failed: %v", i+1, err)
		}
	}

	version, err := backend.Migrator.CurrentVersion(ctx)
	if err != nil {
		t.Fatalf("CurrentVersion failed: %v", err)
	}
	if version != backend.Migrator.LatestVersion() {
		t.Errorf("version = %d, want %d", version, backend.Migrator.LatestVersion())
	}

	var name string
	err = backend.DB.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='user_values'").Scan(&name)
	if err != nil {
		t.Fatalf("user_values table missing: %v", err)
	}

	if needs, _ := backend.Migrator.NeedsMigration(ctx); needs {
		t.Error("migrated database should not need migration")
	}
}

func TestSQLiteHealthStatus(t *testing.T) {
	backend := openTestSQLite(t)

	st := backend.Health.Status(context.Background())
	if !st.Healthy {
		t.Fatalf("expected healthy, got error %q", st.Error)
	}
	if st.Version == "" || st.Version == "unknown" {
		t.Errorf("Version = %q", st.Version)
	}
}

func TestMigratorTarget(t *testing.T) {
	ctx := context.Background()
	backend := openTestSQLite(t)
	m := newMigrator(backend.DB, []Migration{
		{Version: 1, Description: "a", SQL: "CREATE TABLE a (id INTEGER)"},
		{Version: 2, Description: "b", SQL: "CREATE TABLE b (id INTEGER)"},
	}, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)`,
		"INSERT INTO schema_version (version) VALUES (?)")

	if err := m.Migrate(ctx, 1); err != nil {
		t.Fatalf("Migrate(1) failed: %v", err)
	}
	if v, _ := m.CurrentVersion(ctx); v != 1 {
		t.Fatalf("version = %d, want 1", v)
	}
	if err := m.Migrate(ctx, 0); err != nil {
		t.Fatalf("Migrate(0) failed: %v", err)
	}
	if v, _ := m.CurrentVersion(ctx); v != 2 {
		t.Fatalf("version = %d, want 2", v)
	}
}

func TestMigratorRollsBackFailedMigration(t *testing.T) {
	ctx := context.Background()
	backend := openTestSQLite(t)
	m := newMigrator(backend.DB, []Migration{
		{Version: 1, Description: "broken", SQL: "CREATE TABLE"},
	}, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)`,
		"INSERT INTO schema_version (version) VALUES (?)")

	if err := m.Migrate(ctx, 0); err == nil {
		t.Fatal("expected error for invalid migration")
	}
	if v, _ := m.CurrentVersion(ctx); v != 0 {
		t.Errorf("version = %d, want 0 after failed migration", v)
	}
}
