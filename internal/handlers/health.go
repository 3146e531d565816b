package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const version = "0.1.0"

// Check is the outcome of pinging one dependency.
type Check struct {
	Status  string `json:"status"` // "pass" or "fail"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string           `json:"status"` // "healthy" or "degraded"
	Version   string           `json:"version"`
	Checks    map[string]Check `json:"checks"`
	Timestamp string           `json:"timestamp"`
}

type dependency struct {
	name string
	ping func(ctx context.Context) error
}

// dependencies lists what to ping. Redis is optional and only pinged when
// configured.
func (h *Handler) dependencies() []dependency {
	var ps []dependency
	if h.store != nil {
		ps = append(ps, dependency{"store", h.store.Ping})
	}
	if h.redis != nil {
		ps = append(ps, dependency{"redis", h.redis.Ping})
	}
	return ps
}

// Health pings every dependency concurrently. Any failure, a missing store
// or a missing model reports the service as degraded with 503.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]Check{
		"store": {Status: "fail", Message: "not configured"},
		"model": {Status: "fail", Message: "not configured"},
	}
	if h.modelName != "" {
		checks["model"] = Check{Status: "pass", Message: h.modelName}
	}

	var mu sync.Mutex
	var g errgroup.Group
	for _, p := range h.dependencies() {
		g.Go(func() error {
			start := time.Now()
			check := Check{Status: "pass"}
			if err := p.ping(ctx); err != nil {
				h.logger.Warn().Err(err).Str("check", p.name).Msg("health check failed")
				check = Check{Status: "fail", Message: "connection failed"}
			} else {
				check.Latency = time.Since(start).String()
			}
			mu.Lock()
			checks[p.name] = check
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	resp := HealthResponse{
		Status:    "healthy",
		Version:   version,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK
	for _, c := range checks {
		if c.Status != "pass" {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			break
		}
	}

	h.JSON(w, status, resp)
}

// RootResponse describes the API.
type RootResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	WebSocket string `json:"websocket"`
}

// Root handles the API info endpoint.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, RootResponse{
		Name:      "AI Todo Agent",
		Version:   version,
		WebSocket: "/ws?token=<access_token>",
	})
}
