// Package api implements the HTTP REST API and WebSocket server for the
// dispatch core.
//
// This package provides:
//   - POST /control for command dispatch with bounded-wait outcomes
//   - POST /emergency-stop for coordinated stop episodes
//   - REST endpoints for device and zone registry management
//   - Audit trail queries by device, command, episode, and time range
//   - WebSocket hub broadcasting arbitration decisions and outcomes
//   - Middleware stack (request ID, logging, recovery, identity)
//
// # Architecture
//
// The server sits between callers (wall panels, schedulers, operator
// consoles) and the dispatch pipeline. Control requests flow through the
// dispatcher into the arbiter; every decision and terminal outcome is
// fanned out to the audit sink and to WebSocket subscribers.
//
// # Identity
//
// Callers authenticate with an HMAC-signed JWT whose subject becomes the
// requester identity recorded on every command. Token issuance is an
// external collaborator's concern. Without a configured secret the
// X-Requester header is accepted for local development.
package api
