package backends

import (
	"context"
	"database/sql"
	"time"
)

// Status is a point-in-time health report.
type Status struct {
	Healthy bool
	Latency time.Duration
	Version string
	Error   string
	Stats   sql.DBStats
}

// HealthChecker pings a database and reports pool statistics.
type HealthChecker struct {
	db           *sql.DB
	versionQuery string
}

func newHealthChecker(db *sql.DB, versionQuery string) *HealthChecker {
	return &HealthChecker{db: db, versionQuery: versionQuery}
}

// Ping checks connectivity.
func (h *HealthChecker) Ping(ctx context.Context) error {
	return h.db.PingContext(ctx)
}

// Status pings the database and collects its version and pool stats.
func (h *HealthChecker) Status(ctx context.Context) Status {
	start := time.Now()
	err := h.db.PingContext(ctx)
	st := Status{Latency: time.Since(start), Stats: h.db.Stats()}
	if err != nil {
		st.Error = err.Error()
		return st
	}
	st.Healthy = true

	if err := h.db.QueryRowContext(ctx, h.versionQuery).Scan(&st.Version); err != nil {
		st.Version = "unknown"
	}
	return st
}
