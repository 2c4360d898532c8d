package database

import (
	"time"
)

// HubConfig is the database section of the configuration file.
type HubConfig struct {
	// Backend is the primary backend type (default: "sqlite").
	Backend BackendType `yaml:"backend"`

	SQLite SQLiteConfig `yaml:"sqlite"`

	PostgreSQL PostgreSQLConfig `yaml:"postgresql"`

	// AutoMigrate applies pending migrations when the hub opens
	// (default: true).
	AutoMigrate *bool `yaml:"auto_migrate"`
}

// Config is a backend-agnostic connection configuration.
type Config struct {
	Type BackendType `yaml:"type"`

	// Path is the SQLite database file.
	Path string `yaml:"path"`

	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`

	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`

	JournalMode string `yaml:"journal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// SQLiteConfig holds SQLite-specific configuration.
type SQLiteConfig struct {
	// Path to the database file (default: "./data/valuesbot.db").
	Path string `yaml:"path"`

	// JournalMode (default: WAL).
	JournalMode string `yaml:"journal_mode"`

	// BusyTimeout in milliseconds (default: 5000).
	BusyTimeout int `yaml:"busy_timeout"`
}

// PostgreSQLConfig holds PostgreSQL configuration.
type PostgreSQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`

	// Password supports ${VAR} expansion and keyring lookup.
	Password string `yaml:"password"`

	// SSLMode: disable, require, verify-ca, verify-full.
	SSLMode string `yaml:"ssl_mode"`

	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DefaultHubConfig returns the default hub configuration (SQLite).
func DefaultHubConfig() HubConfig {
	return HubConfig{Backend: BackendSQLite}.Effective()
}

// ToConfig converts SQLiteConfig to a generic Config.
func (s SQLiteConfig) ToConfig() Config {
	return Config{
		Type:        BackendSQLite,
		Path:        s.Path,
		JournalMode: s.JournalMode,
		BusyTimeout: s.BusyTimeout,
	}
}

// ToConfig converts PostgreSQLConfig to a generic Config.
func (p PostgreSQLConfig) ToConfig() Config {
	return Config{
		Type:            BackendPostgreSQL,
		Host:            p.Host,
		Port:            p.Port,
		Database:        p.Database,
		User:            p.User,
		Password:        p.Password,
		SSLMode:         p.SSLMode,
		MaxOpenConns:    p.MaxOpenConns,
		MaxIdleConns:    p.MaxIdleConns,
		ConnMaxLifetime: p.ConnMaxLifetime,
	}
}

// MigrateOnOpen reports whether migrations run when the hub opens.
func (c HubConfig) MigrateOnOpen() bool {
	return c.AutoMigrate == nil || *c.AutoMigrate
}

// Effective returns a copy with defaults applied for zero fields.
func (c HubConfig) Effective() HubConfig {
	out := c

	if out.Backend == "" {
		out.Backend = BackendSQLite
	}

	if out.SQLite.Path == "" {
		out.SQLite.Path = "./data/valuesbot.db"
	}
	if out.SQLite.JournalMode == "" {
		out.SQLite.JournalMode = "WAL"
	}
	if out.SQLite.BusyTimeout == 0 {
		out.SQLite.BusyTimeout = 5000
	}

	if out.PostgreSQL.Host == "" {
		out.PostgreSQL.Host = "localhost"
	}
	if out.PostgreSQL.Port == 0 {
		out.PostgreSQL.Port = 5432
	}
	if out.PostgreSQL.SSLMode == "" {
		out.PostgreSQL.SSLMode = "disable"
	}

	return out
}
