package backends

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
)

// PostgreSQLConfig holds PostgreSQL-specific configuration.
type PostgreSQLConfig struct {
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// PostgreSQLBackend is an open PostgreSQL connection pool.
type PostgreSQLBackend struct {
	DB       *sql.DB
	Config   PostgreSQLConfig
	Migrator *Migrator
	Health   *HealthChecker
}

// PostgreSQLMigrations is the PostgreSQL schema history.
var PostgreSQLMigrations = []Migration{
	{
		Version:     1,
		Description: "user values",
		SQL: `
CREATE TABLE IF NOT EXISTS user_values (
    id         BIGSERIAL PRIMARY KEY,
    user_id    BIGINT NOT NULL UNIQUE,
    key_values TEXT   NOT NULL DEFAULT '',
    updated_at BIGINT NOT NULL
);`,
	},
}

// OpenPostgreSQL opens a PostgreSQL connection pool and verifies it.
func OpenPostgreSQL(ctx context.Context, config PostgreSQLConfig, logger *slog.Logger) (*PostgreSQLBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Host == "" {
		config.Host = "localhost"
	}
	if config.Port == 0 {
		config.Port = 5432
	}
	if config.SSLMode == "" {
		config.SSLMode = "disable"
	}
	if config.MaxOpenConns == 0 {
		config.MaxOpenConns = 10
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 5
	}
	if config.ConnMaxLifetime == 0 {
		config.ConnMaxLifetime = 30 * time.Minute
	}

	db, err := sql.Open("pgx", PostgreSQLDSN(config))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Debug("postgresql connected", "host", config.Host, "database", config.Database)

	return &PostgreSQLBackend{
		DB:     db,
		Config: config,
		Migrator: newMigrator(db, PostgreSQLMigrations,
			`CREATE TABLE IF NOT EXISTS schema_version (
				version    INTEGER PRIMARY KEY,
				applied_at TIMESTAMPTZ DEFAULT NOW()
			)`,
			"INSERT INTO schema_version (version) VALUES ($1)"),
		Health: newHealthChecker(db, "SELECT version()"),
	}, nil
}

// PostgreSQLDSN builds a postgres:// URL, escaping credentials.
func PostgreSQLDSN(config PostgreSQLConfig) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   config.Host + ":" + strconv.Itoa(config.Port),
		Path:   "/" + config.Database,
	}
	if config.User != "" {
		if config.Password != "" {
			u.User = url.UserPassword(config.User, config.Password)
		} else {
			u.User = url.User(config.User)
		}
	}
	q := url.Values{}
	q.Set("sslmode", config.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Close closes the pool.
func (b *PostgreSQLBackend) Close() error {
	return b.DB.Close()
}
