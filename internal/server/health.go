// health.go - Liveness, readiness and component health endpoints
package server

import (
	"context"
	"net/http"
	"time"
)

// HealthStatus represents the overall health of the system
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentStatus represents the health of an individual component
type ComponentStatus string

const (
	ComponentStatusUp       ComponentStatus = "up"
	ComponentStatusDown     ComponentStatus = "down"
	ComponentStatusDegraded ComponentStatus = "degraded"
)

// Health is the body of GET /health.
type Health struct {
	Success    bool                       `json:"success"`
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents the health of a single system component
type ComponentHealth struct {
	Status    ComponentStatus `json:"status"`
	Message   string          `json:"message,omitempty"`
	LatencyMs float64         `json:"latency_ms,omitempty"`
}

const (
	healthCheckTimeout = 2 * time.Second
	slowCheck          = time.Second
)

func (cfg Config) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := cfg.checkHealth(r.Context())

		status := http.StatusOK
		if h.Status == HealthStatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, h)
	}
}

// readyHandler reports whether the metadata and blob stores answer.
func (cfg Config) readyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := cfg.checkHealth(r.Context())
		if h.Status == HealthStatusUnhealthy {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status":     "not_ready",
				"components": h.Components,
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}

// liveHandler always answers while the process is running.
func liveHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (cfg Config) checkHealth(ctx context.Context) Health {
	h := Health{
		Timestamp:  time.Now().UTC(),
		Version:    cfg.Version,
		Components: make(map[string]ComponentHealth, 2),
	}

	if cfg.DB == nil {
		h.Components["database"] = ComponentHealth{Status: ComponentStatusUp, Message: "in-memory"}
	} else {
		h.Components["database"] = probe(ctx, "database", cfg.DB.Ping)
	}

	if cfg.Files != nil {
		h.Components["storage"] = probe(ctx, "storage", cfg.Files.BlobStore().Ping)
	}

	h.Status = determineOverallHealth(h.Components)
	h.Success = h.Status != HealthStatusUnhealthy
	return h
}

// probe runs one ping under a timeout and grades it by latency.
func probe(ctx context.Context, name string, ping func(context.Context) error) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	start := time.Now()
	if err := ping(ctx); err != nil {
		return ComponentHealth{
			Status:  ComponentStatusDown,
			Message: name + " check failed: " + err.Error(),
		}
	}
	latency := time.Since(start)

	c := ComponentHealth{
		Status:    ComponentStatusUp,
		Message:   name + " healthy",
		LatencyMs: float64(latency.Microseconds()) / 1000,
	}
	if latency > slowCheck {
		c.Status = ComponentStatusDegraded
		c.Message = name + " latency high"
	}
	return c
}

// determineOverallHealth calculates overall health from component statuses
func determineOverallHealth(components map[string]ComponentHealth) HealthStatus {
	var down, degraded int
	for _, c := range components {
		switch c.Status {
		case ComponentStatusDown:
			down++
		case ComponentStatusDegraded:
			degraded++
		}
	}

	if down > 0 {
		return HealthStatusUnhealthy
	}
	if degraded > 0 {
		return HealthStatusDegraded
	}
	return HealthStatusHealthy
}
