package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHubMigratesSQLite(t *testing.T) {
	hub := newTestHub(t)
	ctx := context.Background()

	primary := hub.Primary()
	require.NotNil(t, primary)
	assert.Equal(t, "primary", primary.Name)
	assert.Equal(t, BackendSQLite, primary.Type)

	needs, err := primary.Migrator.NeedsMigration(ctx)
	require.NoError(t, err)
	assert.False(t, needs)

	require.NoError(t, hub.Ping(ctx))
	status := hub.Status(ctx)
	require.Contains(t, status, "primary")
	assert.True(t, status["primary"].Healthy)
}

func TestNewHubWithoutAutoMigrate(t *testing.T) {
	off := false
	hub, err := NewHub(context.Background(), HubConfig{
		SQLite:      SQLiteConfig{Path: filepath.Join(t.TempDir(), "v.db")},
		AutoMigrate: &off,
	}, nil)
	require.NoError(t, err)
	defer hub.Close()

	needs, err := hub.Primary().Migrator.NeedsMigration(context.Background())
	require.NoError(t, err)
	assert.True(t, needs)

	require.NoError(t, hub.Migrate(context.Background(), "", 0))
	needs, _ = hub.Primary().Migrator.NeedsMigration(context.Background())
	assert.False(t, needs)
}

func TestNewHubUnsupportedBackend(t *testing.T) {
	_, err := NewHub(context.Background(), HubConfig{Backend: "mysql"}, nil)
	assert.Error(t, err)
}

func TestHubAddBackendDuplicate(t *testing.T) {
	hub := newTestHub(t)
	err := hub.AddBackend(context.Background(), "primary", Config{Type: BackendSQLite})
	assert.Error(t, err)

	_, err = hub.GetBackend("missing")
	assert.Error(t, err)
}

func TestHubConfigEffective(t *testing.T) {
	cfg := HubConfig{}.Effective()
	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, "./data/valuesbot.db", cfg.SQLite.Path)
	assert.Equal(t, "WAL", cfg.SQLite.JournalMode)
	assert.Equal(t, 5432, cfg.PostgreSQL.Port)
	assert.True(t, cfg.MigrateOnOpen())
}
