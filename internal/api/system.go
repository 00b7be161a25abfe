package api

import (
	"context"
	"net/http"
	"time"
)

// componentCheckTimeout bounds each infrastructure health probe.
const componentCheckTimeout = 3 * time.Second

// handleSystemStatus reports the health of each infrastructure component
// and a snapshot of arbiter occupancy. Degraded components do not fail
// the endpoint; they are reported so operators can see what is down.
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	components := map[string]string{}
	overall := "ok"

	check := func(name string, hc HealthChecker) {
		if hc == nil {
			components[name] = "not configured"
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), componentCheckTimeout)
		defer cancel()
		if err := hc.HealthCheck(ctx); err != nil {
			components[name] = err.Error()
			overall = "degraded"
			return
		}
		components[name] = "ok"
	}

	check("database", s.database)
	check("mqtt", s.broker)

	status := map[string]any{
		"status":     overall,
		"version":    s.version,
		"components": components,
	}

	if s.arbiter != nil {
		arb := s.arbiter.GetStats()
		status["dispatch"] = map[string]any{
			"active_slots":     arb.ActiveSlots,
			"pending_commands": arb.PendingCommands,
		}
	}
	if s.registry != nil {
		status["devices"] = s.registry.GetStats()
	}
	if s.hub != nil {
		status["websocket_clients"] = s.hub.ClientCount()
	}

	writeJSON(w, http.StatusOK, status)
}
