package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/veralux-systems/dispatch-core/internal/device"
	"github.com/veralux-systems/dispatch-core/internal/dispatch"
	"github.com/veralux-systems/dispatch-core/internal/zone"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeConflict     = "conflict"
	ErrCodeInternal     = "internal_error"
	ErrCodeValidation   = "validation_error"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDispatchError maps a synchronous dispatch rejection onto an HTTP
// status and the stable error codes callers key retries and UI copy on.
func writeDispatchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, device.ErrDeviceNotFound):
		writeError(w, http.StatusNotFound, dispatch.CodeUnknownDevice, err.Error())
	case errors.Is(err, zone.ErrZoneNotFound), errors.Is(err, device.ErrZoneNotFound):
		writeError(w, http.StatusNotFound, dispatch.CodeUnknownZone, err.Error())
	case errors.Is(err, device.ErrInvalidAction):
		writeError(w, http.StatusBadRequest, dispatch.CodeInvalidParameters, err.Error())
	case errors.Is(err, dispatch.ErrMissingRequester),
		errors.Is(err, dispatch.ErrMissingReason),
		errors.Is(err, dispatch.ErrMissingOperator),
		errors.Is(err, dispatch.ErrInvalidPriority),
		errors.Is(err, dispatch.ErrEmptyTargets):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	default:
		writeInternalError(w, "command dispatch failed")
	}
}
