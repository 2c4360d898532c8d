// Package gateway serves the operational HTTP endpoints: health, Prometheus
// metrics and a token-protected status report.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jholhewres/valuesbot/pkg/valuesbot/channels"
	"github.com/jholhewres/valuesbot/pkg/valuesbot/database"
)

const version = "1.0.0"

// Config configures the HTTP gateway.
type Config struct {
	// Enabled starts the gateway with `serve` (default: false).
	Enabled bool `yaml:"enabled"`

	// Address to listen on (default: ":8085").
	Address string `yaml:"address"`

	// AuthToken protects /api/* with a bearer token. /health and /metrics
	// stay public.
	AuthToken string `yaml:"auth_token"`
}

// Database is the health surface of the database hub.
type Database interface {
	Ping(ctx context.Context) error
	Status(ctx context.Context) map[string]database.HealthStatus
}

// SourceLister reports the knowledge sources attached to the assistant.
type SourceLister interface {
	ActiveSources() []string
}

// EventStats reports analytics delivery counters.
type EventStats interface {
	Stats() (sent, failed, dropped uint64)
}

// Deps are the components the gateway reports on. Any of them may be nil.
type Deps struct {
	Database  Database
	Channels  []channels.Channel
	Sources   SourceLister
	Analytics EventStats
	Gatherer  prometheus.Gatherer
	Logger    *slog.Logger
}

// Gateway is the HTTP server.
type Gateway struct {
	config    Config
	deps      Deps
	server    *http.Server
	logger    *slog.Logger
	startedAt time.Time
}

// New creates a new Gateway.
func New(cfg Config, deps Deps) *Gateway {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Address == "" {
		cfg.Address = ":8085"
	}
	return &Gateway{
		config:    cfg,
		deps:      deps,
		logger:    deps.Logger.With("component", "gateway"),
		startedAt: time.Now(),
	}
}

// Handler returns the gateway's routes wrapped in its middleware.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", g.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(g.deps.Gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/api/status", g.handleStatus)
	return g.securityHeadersMiddleware(g.authMiddleware(mux))
}

// Start binds the listener and serves in the background.
func (g *Gateway) Start(ctx context.Context) error {
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", g.config.Address)
	if err != nil {
		return fmt.Errorf("gateway: listen %s: %w", g.config.Address, err)
	}
	g.startedAt = time.Now()
	g.server = &http.Server{
		Handler:           g.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if g.config.AuthToken == "" {
		g.logger.Warn("gateway has no auth token, /api/status is public", "address", g.config.Address)
	}

	go func() {
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway server error", "error", err)
		}
	}()
	g.logger.Info("gateway started", "address", ln.Addr().String())
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	g.logger.Info("gateway stopping...")
	return g.server.Shutdown(ctx)
}
