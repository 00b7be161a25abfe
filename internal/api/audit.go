package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/veralux-systems/dispatch-core/internal/audit"
)

// handleListAudit queries the audit trail, newest first.
//
// Query parameters:
//   - device_id: filter by device
//   - command_id: filter by command
//   - episode_id: filter by emergency stop episode
//   - from, to: RFC 3339 time range on entry creation
//   - limit: maximum entries to return (default 100)
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeInternalError(w, "audit store not configured")
		return
	}

	filter := audit.Filter{
		DeviceID:  r.URL.Query().Get("device_id"),
		CommandID: r.URL.Query().Get("command_id"),
		EpisodeID: r.URL.Query().Get("episode_id"),
	}

	if fromStr := r.URL.Query().Get("from"); fromStr != "" {
		from, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			writeBadRequest(w, "invalid from timestamp, want RFC 3339")
			return
		}
		filter.From = from
	}
	if toStr := r.URL.Query().Get("to"); toStr != "" {
		to, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			writeBadRequest(w, "invalid to timestamp, want RFC 3339")
			return
		}
		filter.To = to
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			writeBadRequest(w, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	entries, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		writeInternalError(w, "failed to query audit trail")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}
