// Package database provides the Database Hub used to store user key values.
// SQLite is the default backend and needs no configuration; PostgreSQL is
// supported for shared deployments.
package database

import (
	"context"
	"database/sql"
	"time"
)

// BackendType identifies the type of database backend.
type BackendType string

const (
	BackendSQLite     BackendType = "sqlite"
	BackendPostgreSQL BackendType = "postgresql"
)

// Backend is an open database connection with its capabilities.
type Backend struct {
	// Name is the identifier for this backend (e.g., "primary").
	Name string

	Type BackendType

	DB *sql.DB

	Config Config

	// Migrator applies schema migrations.
	Migrator Migrator

	// Health monitors database health.
	Health HealthChecker
}

// Migrator applies versioned schema migrations.
type Migrator interface {
	// CurrentVersion returns the highest applied migration version.
	CurrentVersion(ctx context.Context) (int, error)

	// Migrate applies pending migrations up to target.
	// If target is 0, migrates to the latest version.
	Migrate(ctx context.Context, target int) error

	// NeedsMigration reports whether migrations are pending.
	NeedsMigration(ctx context.Context) (bool, error)

	// LatestVersion returns the newest known migration version.
	LatestVersion() int
}

// HealthChecker monitors database health.
type HealthChecker interface {
	Ping(ctx context.Context) error
	Status(ctx context.Context) HealthStatus
}

// HealthStatus is the health state of a database backend.
type HealthStatus struct {
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
	Version string        `json:"version"`
	Error   string        `json:"error,omitempty"`

	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
	MaxOpenConns    int   `json:"max_open_conns"`
}

// BackendFactory creates database backends from configuration.
type BackendFactory interface {
	Create(ctx context.Context, config Config) (*Backend, error)
	Supports(backendType BackendType) bool
}
