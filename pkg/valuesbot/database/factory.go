package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jholhewres/valuesbot/pkg/valuesbot/database/backends"
)

// SQLiteFactory creates SQLite backends.
type SQLiteFactory struct{}

func (f *SQLiteFactory) Create(ctx context.Context, config Config) (*Backend, error) {
	if config.Type != BackendSQLite {
		return nil, fmt.Errorf("sqlite factory cannot create %s backend", config.Type)
	}
	b, err := backends.OpenSQLite(ctx, backends.SQLiteConfig{
		Path:        config.Path,
		JournalMode: config.JournalMode,
		BusyTimeout: config.BusyTimeout,
	})
	if err != nil {
		return nil, err
	}
	return &Backend{
		Type:     BackendSQLite,
		DB:       b.DB,
		Config:   config,
		Migrator: b.Migrator,
		Health:   healthAdapter{b.Health},
	}, nil
}

func (f *SQLiteFactory) Supports(backendType BackendType) bool {
	return backendType == BackendSQLite
}

// PostgreSQLFactory creates PostgreSQL backends.
type PostgreSQLFactory struct {
	logger *slog.Logger
}

// NewPostgreSQLFactory creates a PostgreSQL factory.
func NewPostgreSQLFactory(logger *slog.Logger) *PostgreSQLFactory {
	return &PostgreSQLFactory{logger: logger}
}

func (f *PostgreSQLFactory) Create(ctx context.Context, config Config) (*Backend, error) {
	if config.Type != BackendPostgreSQL {
		return nil, fmt.Errorf("postgresql factory cannot create %s backend", config.Type)
	}
	b, err := backends.OpenPostgreSQL(ctx, backends.PostgreSQLConfig{
		Host:            config.Host,
		Port:            config.Port,
		Database:        config.Database,
		User:            config.User,
		Password:        config.Password,
		SSLMode:         config.SSLMode,
		MaxOpenConns:    config.MaxOpenConns,
		MaxIdleConns:    config.MaxIdleConns,
		ConnMaxLifetime: config.ConnMaxLifetime,
	}, f.logger)
	if err != nil {
		return nil, err
	}
	return &Backend{
		Type:     BackendPostgreSQL,
		DB:       b.DB,
		Config:   config,
		Migrator: b.Migrator,
		Health:   healthAdapter{b.Health},
	}, nil
}

func (f *PostgreSQLFactory) Supports(backendType BackendType) bool {
	return backendType == BackendPostgreSQL
}

// healthAdapter converts backend health reports to HealthStatus.
type healthAdapter struct {
	h *backends.HealthChecker
}

func (a healthAdapter) Ping(ctx context.Context) error {
	return a.h.Ping(ctx)
}

func (a healthAdapter) Status(ctx context.Context) HealthStatus {
	st := a.h.Status(ctx)
	return HealthStatus{
		Healthy:         st.Healthy,
		Latency:         st.Latency,
		Version:         st.Version,
		Error:           st.Error,
		OpenConnections: st.Stats.OpenConnections,
		InUse:           st.Stats.InUse,
		Idle:            st.Stats.Idle,
		WaitCount:       st.Stats.WaitCount,
		MaxOpenConns:    st.Stats.MaxOpenConnections,
	}
}

var (
	_ BackendFactory = (*SQLiteFactory)(nil)
	_ BackendFactory = (*PostgreSQLFactory)(nil)
	_ Migrator       = (*backends.Migrator)(nil)
	_ HealthChecker  = healthAdapter{}
)
