package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Hub owns the database backends of the process. The "primary" backend
// holds user key values.
type Hub struct {
	backends  map[string]*Backend
	primary   string
	factories map[BackendType]BackendFactory
	logger    *slog.Logger
	mu        sync.RWMutex
}

// NewHub opens the primary backend described by config and, unless
// disabled, applies pending migrations.
func NewHub(ctx context.Context, config HubConfig, logger *slog.Logger) (*Hub, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "database")

	hub := &Hub{
		backends:  make(map[string]*Backend),
		factories: make(map[BackendType]BackendFactory),
		logger:    logger,
	}
	hub.RegisterFactory(BackendSQLite, &SQLiteFactory{})
	hub.RegisterFactory(BackendPostgreSQL, NewPostgreSQLFactory(logger))

	cfg := config.Effective()
	primaryConfig, err := primaryConfig(cfg)
	if err != nil {
		return nil, err
	}
	if err := hub.AddBackend(ctx, "primary", primaryConfig); err != nil {
		return nil, fmt.Errorf("create primary backend: %w", err)
	}
	hub.primary = "primary"

	if cfg.MigrateOnOpen() {
		if err := hub.Migrate(ctx, "", 0); err != nil {
			hub.Close()
			return nil, fmt.Errorf("migrate primary backend: %w", err)
		}
	}
	return hub, nil
}

func primaryConfig(cfg HubConfig) (Config, error) {
	switch cfg.Backend {
	case BackendSQLite:
		return cfg.SQLite.ToConfig(), nil
	case BackendPostgreSQL:
		return cfg.PostgreSQL.ToConfig(), nil
	default:
		return Config{}, fmt.Errorf("unsupported backend type: %s", cfg.Backend)
	}
}

// RegisterFactory registers a backend factory for a backend type.
func (h *Hub) RegisterFactory(backendType BackendType, factory BackendFactory) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.factories[backendType] = factory
}

// AddBackend opens and registers a backend under name.
func (h *Hub) AddBackend(ctx context.Context, name string, config Config) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.backends[name]; exists {
		return fmt.Errorf("backend %q already exists", name)
	}
	factory, ok := h.factories[config.Type]
	if !ok {
		return fmt.Errorf("no factory registered for backend type: %s", config.Type)
	}

	backend, err := factory.Create(ctx, config)
	if err != nil {
		return fmt.Errorf("create backend %q: %w", name, err)
	}
	backend.Name = name
	h.backends[name] = backend

	h.logger.Info("database backend registered", "name", name, "type", config.Type)
	return nil
}

// GetBackend returns a backend by name, or the primary backend if name is
// empty.
func (h *Hub) GetBackend(name string) (*Backend, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if name == "" {
		name = h.primary
	}
	backend, ok := h.backends[name]
	if !ok {
		return nil, fmt.Errorf("backend %q not found", name)
	}
	return backend, nil
}

// Primary returns the primary backend.
func (h *Hub) Primary() *Backend {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.backends[h.primary]
}

// DB returns the primary *sql.DB.
func (h *Hub) DB() *sql.DB {
	if b := h.Primary(); b != nil {
		return b.DB
	}
	return nil
}

// Ping checks the primary backend.
func (h *Hub) Ping(ctx context.Context) error {
	b := h.Primary()
	if b == nil {
		return errors.New("no primary backend")
	}
	return b.Health.Ping(ctx)
}

// Status returns the health of every backend.
func (h *Hub) Status(ctx context.Context) map[string]HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := make(map[string]HealthStatus, len(h.backends))
	for name, b := range h.backends {
		if b.Health == nil {
			status[name] = HealthStatus{Error: "health checker not available"}
			continue
		}
		status[name] = b.Health.Status(ctx)
	}
	return status
}

// Migrate applies migrations on the named backend (primary if empty) up to
// target (latest if 0).
func (h *Hub) Migrate(ctx context.Context, backendName string, target int) error {
	b, err := h.GetBackend(backendName)
	if err != nil {
		return err
	}
	if b.Migrator == nil {
		return fmt.Errorf("migrator not available for backend %q", b.Name)
	}

	before, err := b.Migrator.CurrentVersion(ctx)
	if err != nil {
		return err
	}
	if err := b.Migrator.Migrate(ctx, target); err != nil {
		return err
	}
	after, err := b.Migrator.CurrentVersion(ctx)
	if err != nil {
		return err
	}
	if after != before {
		h.logger.Info("database migrated", "backend", b.Name, "from", before, "to", after)
	}
	return nil
}

// Close closes all backends.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var errs []error
	for name, b := range h.backends {
		if err := b.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close backend %q: %w", name, err))
		}
		h.logger.Debug("database backend closed", "name", name)
	}
	h.backends = make(map[string]*Backend)
	return errors.Join(errs...)
}
