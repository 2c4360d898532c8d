package backends

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteConfig holds SQLite-specific configuration.
type SQLiteConfig struct {
	Path        string
	JournalMode string
	BusyTimeout int
}

// SQLiteBackend is an open SQLite database.
type SQLiteBackend struct {
	DB       *sql.DB
	Config   SQLiteConfig
	Migrator *Migrator
	Health   *HealthChecker
}

// SQLiteMigrations is the SQLite schema history.
var SQLiteMigrations = []Migration{
	{
		Version:     1,
		Description: "user values",
		SQL: `
CREATE TABLE IF NOT EXISTS user_values (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id    INTEGER NOT NULL UNIQUE,
    key_values TEXT    NOT NULL DEFAULT '',
    updated_at INTEGER NOT NULL
);`,
	},
}

// OpenSQLite opens or creates a SQLite database.
func OpenSQLite(ctx context.Context, config SQLiteConfig) (*SQLiteBackend, error) {
	if config.Path == "" {
		config.Path = "./data/valuesbot.db"
	}
	if config.JournalMode == "" {
		config.JournalMode = "WAL"
	}
	if config.BusyTimeout == 0 {
		config.BusyTimeout = 5000
	}

	if config.Path != ":memory:" {
		dir := filepath.Dir(config.Path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=%s&_busy_timeout=%d&_foreign_keys=ON",
		config.Path, config.JournalMode, config.BusyTimeout)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", config.Path, err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY under WAL.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteBackend{
		DB:     db,
		Config: config,
		Migrator: newMigrator(db, SQLiteMigrations,
			`CREATE TABLE IF NOT EXISTS schema_version (
				version    INTEGER PRIMARY KEY,
				applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)`,
			"INSERT INTO schema_version (version) VALUES (?)"),
		Health: newHealthChecker(db, "SELECT sqlite_version()"),
	}, nil
}

// Close closes the database.
func (b *SQLiteBackend) Close() error {
	return b.DB.Close()
}
