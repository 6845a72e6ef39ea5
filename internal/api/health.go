package api

import (
	"context"
	"net/http"
	"time"
)

// healthCheckTimeout bounds each dependency check.
const healthCheckTimeout = 2 * time.Second

// Component states reported by the health endpoint.
const (
	componentOK       = "ok"
	componentDown     = "down"
	componentDisabled = "disabled"
)

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components"`
}

// handleHealth reports the service and its dependencies. Only the
// database is critical: when it fails the response is 503. Relay, MQTT
// and InfluxDB failures degrade the status but keep a 200.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{
		Status:     "ok",
		Version:    s.version,
		Components: make(map[string]string, 4),
	}

	if err := s.db.HealthCheck(ctx); err != nil {
		s.logger.Error("database health check failed", "error", err)
		resp.Components["database"] = componentDown
		resp.Status = "unhealthy"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp.Components["database"] = componentOK

	resp.Components["relay"] = componentDisabled
	if s.relay != nil {
		resp.Components["relay"] = componentOK
		if err := s.relay.HealthCheck(ctx); err != nil {
			s.logger.Warn("relay health check failed", "error", err)
			resp.Components["relay"] = componentDown
			resp.Status = "degraded"
		}
	}

	resp.Components["mqtt"] = componentDisabled
	if s.mqtt != nil {
		resp.Components["mqtt"] = componentOK
		if err := s.mqtt.HealthCheck(ctx); err != nil {
			resp.Components["mqtt"] = componentDown
			resp.Status = "degraded"
		}
	}

	resp.Components["influxdb"] = componentDisabled
	if s.influx != nil {
		resp.Components["influxdb"] = componentOK
		if err := s.influx.HealthCheck(ctx); err != nil {
			resp.Components["influxdb"] = componentDown
			resp.Status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
