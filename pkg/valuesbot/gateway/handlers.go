package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (g *Gateway) writeError(w http.ResponseWriter, msg string, code int) {
	var resp errorResponse
	resp.Error.Message = msg
	resp.Error.Code = code
	g.writeJSON(w, code, resp)
}

func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (g *Gateway) uptime() string {
	uptime := time.Since(g.startedAt).Round(time.Second).String()
	if uptime == "0s" {
		uptime = "<1s"
	}
	return uptime
}

// handleHealth implements GET /health. It answers 503 when the database
// does not respond or a channel is disconnected.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		g.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	healthy := true
	dbState := "not configured"
	if g.deps.Database != nil {
		dbState = "ok"
		if err := g.deps.Database.Ping(ctx); err != nil {
			healthy = false
			dbState = err.Error()
		}
	}

	channelsMap := make(map[string]string, len(g.deps.Channels))
	for _, ch := range g.deps.Channels {
		if ch.Health().Connected {
			channelsMap[ch.Name()] = "connected"
		} else {
			healthy = false
			channelsMap[ch.Name()] = "disconnected"
		}
	}

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	g.writeJSON(w, code, map[string]any{
		"status":   status,
		"version":  version,
		"uptime":   g.uptime(),
		"database": dbState,
		"channels": channelsMap,
	})
}

// handleStatus implements GET /api/status.
func (g *Gateway) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		g.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := map[string]any{
		"version": version,
		"uptime":  g.uptime(),
	}
	if g.deps.Database != nil {
		resp["database"] = g.deps.Database.Status(r.Context())
	}
	if len(g.deps.Channels) > 0 {
		chans := make(map[string]any, len(g.deps.Channels))
		for _, ch := range g.deps.Channels {
			chans[ch.Name()] = ch.Health()
		}
		resp["channels"] = chans
	}
	if g.deps.Sources != nil {
		resp["knowledge_sources"] = g.deps.Sources.ActiveSources()
	}
	if g.deps.Analytics != nil {
		sent, failed, dropped := g.deps.Analytics.Stats()
		resp["analytics"] = map[string]uint64{"sent": sent, "failed": failed, "dropped": dropped}
	}
	g.writeJSON(w, http.StatusOK, resp)
}
