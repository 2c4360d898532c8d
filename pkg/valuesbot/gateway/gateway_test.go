package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jholhewres/valuesbot/pkg/valuesbot/channels"
	"github.com/jholhewres/valuesbot/pkg/valuesbot/database"
)

type fakeDB struct{ err error }

func (f fakeDB) Ping(context.Context) error { return f.err }

func (f fakeDB) Status(context.Context) map[string]database.HealthStatus {
	return map[string]database.HealthStatus{"primary": {Healthy: f.err == nil, Version: "3.45.1"}}
}

type fakeChannel struct {
	channels.Channel
	connected bool
}

func (f fakeChannel) Name() string { return "telegram" }

func (f fakeChannel) Health() channels.HealthStatus {
	return channels.HealthStatus{Connected: f.connected}
}

type fakeSources []string

func (f fakeSources) ActiveSources() []string { return f }

type fakeStats struct{}

func (fakeStats) Stats() (uint64, uint64, uint64) { return 5, 1, 2 }

func newGateway(cfg Config, deps Deps) http.Handler {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "valuesbot_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()
	deps.Gatherer = reg
	deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg, deps).Handler()
}

func get(t *testing.T, h http.Handler, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthOK(t *testing.T) {
	h := newGateway(Config{}, Deps{
		Database: fakeDB{},
		Channels: []channels.Channel{fakeChannel{connected: true}},
	})

	rec := get(t, h, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["database"])
	assert.Equal(t, map[string]any{"telegram": "connected"}, body["channels"])
}

func TestHealthDegraded(t *testing.T) {
	tests := []struct {
		name string
		deps Deps
	}{
		{"database down", Deps{Database: fakeDB{err: errors.New("connection refused")}}},
		{"channel disconnected", Deps{Channels: []channels.Channel{fakeChannel{}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, newGateway(Config{}, tt.deps), "/health", "")
			assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
			assert.Contains(t, rec.Body.String(), `"degraded"`)
		})
	}
}

func TestHealthMethodNotAllowed(t *testing.T) {
	h := newGateway(Config{}, Deps{})
	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetrics(t *testing.T) {
	rec := get(t, newGateway(Config{AuthToken: "secret"}, Deps{}), "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "valuesbot_test_total 1")
}

func TestStatusRequiresToken(t *testing.T) {
	h := newGateway(Config{AuthToken: "secret"}, Deps{
		Database:  fakeDB{},
		Sources:   fakeSources{"Values"},
		Analytics: fakeStats{},
	})

	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/api/status", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/api/status", "wrong").Code)

	rec := get(t, h, "/api/status", "secret")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		KnowledgeSources []string                         `json:"knowledge_sources"`
		Analytics        map[string]uint64                `json:"analytics"`
		Database         map[string]database.HealthStatus `json:"database"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"Values"}, body.KnowledgeSources)
	assert.Equal(t, map[string]uint64{"sent": 5, "failed": 1, "dropped": 2}, body.Analytics)
	assert.True(t, body.Database["primary"].Healthy)
}

func TestStartStop(t *testing.T) {
	g := New(Config{Address: "127.0.0.1:0"}, Deps{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, g.Start(context.Background()))
	require.NoError(t, g.Stop(context.Background()))
}
