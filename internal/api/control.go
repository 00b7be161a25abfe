package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/veralux-systems/dispatch-core/internal/device"
	"github.com/veralux-systems/dispatch-core/internal/dispatch"
)

// controlRequest is the body of POST /control.
type controlRequest struct {
	Target     device.Target  `json:"target"`
	Action     string         `json:"action"`
	Params     map[string]any `json:"params,omitempty"`
	Priority   string         `json:"priority"`
	Override   bool           `json:"override,omitempty"`
	DurationMS int            `json:"duration_ms,omitempty"`
	Reason     string         `json:"reason,omitempty"`
}

// controlResponse reports the per-device results of a control request.
type controlResponse struct {
	Results []dispatch.DeviceResult `json:"results"`
}

// handleControl accepts a command request, dispatches it through the
// arbiter, and waits a bounded window for the outcomes. Devices still
// executing when the window closes are reported pending; their terminal
// outcome lands in the audit trail and on the WebSocket stream.
func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	priority := dispatch.PriorityRoutine
	if req.Priority != "" {
		var err error
		priority, err = dispatch.ParsePriority(req.Priority)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
	}

	results, err := s.dispatcher.SubmitAndWait(r.Context(), dispatch.Request{
		Target:    req.Target,
		Action:    req.Action,
		Params:    req.Params,
		Priority:  priority,
		Override:  req.Override,
		Duration:  time.Duration(req.DurationMS) * time.Millisecond,
		Requester: requesterFrom(r.Context()),
		Reason:    req.Reason,
	})
	if err != nil {
		writeDispatchError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, controlResponse{Results: results})
}

// stopRequest is the body of POST /emergency-stop.
type stopRequest struct {
	DeviceIDs []string `json:"device_ids,omitempty"`
	ZoneIDs   []string `json:"zone_ids,omitempty"`
	All       bool     `json:"all,omitempty"`
	Reason    string   `json:"reason,omitempty"`
}

// handleEmergencyStop triggers an emergency stop episode over any mix of
// devices, zones, or the whole site. The authenticated identity is
// recorded as the operator. A resolution failure rejects the whole
// request; a device that cannot be reached degrades the episode to
// partial instead.
func (s *Server) handleEmergencyStop(w http.ResponseWriter, r *http.Request) {
	var req stopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	episode, err := s.coordinator.Trigger(r.Context(), dispatch.StopRequest{
		DeviceIDs: req.DeviceIDs,
		ZoneIDs:   req.ZoneIDs,
		All:       req.All,
		Operator:  requesterFrom(r.Context()),
		Reason:    req.Reason,
	})
	if err != nil {
		writeDispatchError(w, err)
		return
	}

	status := http.StatusOK
	if episode.Status == dispatch.EpisodePartial {
		// Partial stops need operator attention; 207 keeps the episode
		// payload while signalling the degradation.
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, episode)
}
