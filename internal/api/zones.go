package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/veralux-systems/dispatch-core/internal/zone"
)

// handleListZones returns all zones.
func (s *Server) handleListZones(w http.ResponseWriter, r *http.Request) {
	zones, err := s.zones.ListZones(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list zones")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"zones": zones, "count": len(zones)})
}

// handleGetZone returns a single zone by ID.
func (s *Server) handleGetZone(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	z, err := s.zones.GetZone(r.Context(), id)
	if err != nil {
		if errors.Is(err, zone.ErrZoneNotFound) {
			writeNotFound(w, "zone not found")
			return
		}
		writeInternalError(w, "failed to get zone")
		return
	}

	writeJSON(w, http.StatusOK, z)
}

// handleCreateZone creates a new zone.
func (s *Server) handleCreateZone(w http.ResponseWriter, r *http.Request) {
	var z zone.Zone
	if err := json.NewDecoder(r.Body).Decode(&z); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.zones.CreateZone(r.Context(), &z); err != nil {
		if errors.Is(err, zone.ErrZoneExists) {
			writeError(w, http.StatusConflict, ErrCodeConflict, "zone already exists")
			return
		}
		if errors.Is(err, zone.ErrInvalidZone) {
			writeBadRequest(w, err.Error())
			return
		}
		writeInternalError(w, "failed to create zone")
		return
	}

	writeJSON(w, http.StatusCreated, z)
}

// handleUpdateZone partially updates a zone, including its ordered
// member list.
func (s *Server) handleUpdateZone(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := s.zones.GetZone(r.Context(), id)
	if err != nil {
		if errors.Is(err, zone.ErrZoneNotFound) {
			writeNotFound(w, "zone not found")
			return
		}
		writeInternalError(w, "failed to get zone")
		return
	}

	if err := json.NewDecoder(r.Body).Decode(existing); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	existing.ID = id // Ensure ID cannot be changed

	if err := s.zones.UpdateZone(r.Context(), existing); err != nil {
		if errors.Is(err, zone.ErrInvalidZone) {
			writeBadRequest(w, err.Error())
			return
		}
		writeInternalError(w, "failed to update zone")
		return
	}

	writeJSON(w, http.StatusOK, existing)
}

// handleDeleteZone removes a zone. Member devices are untouched; only
// the grouping disappears.
func (s *Server) handleDeleteZone(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.zones.DeleteZone(r.Context(), id); err != nil {
		if errors.Is(err, zone.ErrZoneNotFound) {
			writeNotFound(w, "zone not found")
			return
		}
		writeInternalError(w, "failed to delete zone")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleZoneDevices returns the zone's member devices in zone order.
func (s *Server) handleZoneDevices(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ids, err := s.zones.MemberDeviceIDs(r.Context(), id)
	if err != nil {
		if errors.Is(err, zone.ErrZoneNotFound) {
			writeNotFound(w, "zone not found")
			return
		}
		writeInternalError(w, "failed to resolve zone members")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"zone_id": id, "device_ids": ids, "count": len(ids)})
}
