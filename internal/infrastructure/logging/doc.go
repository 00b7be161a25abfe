// Package logging provides structured logging for the dispatch core.
//
// It wraps log/slog with configuration-driven format and level selection,
// and stamps every record with the service name and version. Components
// that need logging accept a narrow Logger interface locally so they can
// be tested without this package.
//
// Usage:
//
//	log := logging.New(cfg.Logging, version)
//	log.Info("command applied", "device_id", id, "action", action)
//
//	arbLog := log.With("component", "arbiter")
package logging
