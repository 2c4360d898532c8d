//go:build integration

package backends

import (
	"context"
	"os"
	"strconv"
	"testing"
)

// Run with a local server:
//
//	docker run -d -e POSTGRES_USER=test -e POSTGRES_PASSWORD=test -e POSTGRES_DB=valuesbot_test -p 5432:5432 postgres:16
//	go test -tags=integration ./pkg/valuesbot/database/...
func postgreSQLTestConfig() PostgreSQLConfig {
	port, _ := strconv.Atoi(getEnv("PGPORT", "5432"))
	return PostgreSQLConfig{
		Host:     getEnv("PGHOST", "localhost"),
		Port:     port,
		User:     getEnv("PGUSER", "test"),
		Password: getEnv("PGPASSWORD", "test"),
		Database: getEnv("PGDATABASE", "valuesbot_test"),
		SSLMode:  "disable",
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func TestPostgreSQLBackend_Migrate(t *testing.T) {
	ctx := context.Background()
	backend, err := OpenPostgreSQL(ctx, postgreSQLTestConfig(), nil)
	if err != nil {
		t.Skipf("PostgreSQL not available: %v", err)
	}
	defer backend.Close()

	if err := backend.Migrator.Migrate(ctx, 0); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if err := backend.Migrator.Migrate(ctx, 0); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}
	st := backend.Health.Status(ctx)
	if !st.Healthy {
		t.Fatalf("unhealthy: %s", st.Error)
	}
}
