package dispatch

import (
	"context"
	"errors"
	"fmt"
)

// Transport is the external device-communication collaborator. Concrete
// adapters (MQTT, BACnet, Modbus) live outside the dispatch core.
//
// Send must be idempotent-safe: the executor performs a single automatic
// retry after a transient failure, so delivering the same action twice
// must not change the device beyond the first delivery.
//
// Implementations classify failures by wrapping ErrTransportTransient
// (connectivity, broker unavailable, ack timeout) or
// ErrTransportPermanent (device rejected the command). An unclassified
// error is treated as permanent.
type Transport interface {
	Send(ctx context.Context, deviceID, action string, params map[string]any) error
}

// Transient wraps err as a retryable transport failure.
func Transient(err error) error {
	return fmt.Errorf("%w: %w", ErrTransportTransient, err)
}

// Permanent wraps err as a non-retryable transport failure.
func Permanent(err error) error {
	return fmt.Errorf("%w: %w", ErrTransportPermanent, err)
}

// IsTransient reports whether err is a retryable transport failure.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransportTransient)
}
