package device

import (
	"context"
	"fmt"
	"sort"
)

// Target identifies the devices a command request addresses: a single
// device, every member of a zone, or every registered device.
type Target struct {
	DeviceID string `json:"device_id,omitempty"`
	ZoneID   string `json:"zone_id,omitempty"`
	All      bool   `json:"all,omitempty"`
}

// IsZero reports whether no target was specified at all.
func (t Target) IsZero() bool {
	return t.DeviceID == "" && t.ZoneID == "" && !t.All
}

// ZoneLookup is the interface the resolver needs from the zone registry.
// It returns the ordered member device IDs of a zone, or the zone
// package's not-found error for unknown zones.
type ZoneLookup interface {
	MemberDeviceIDs(ctx context.Context, zoneID string) ([]string, error)
}

// Resolver expands command targets into concrete device ID sets using the
// device registry and the zone registry.
//
// Resolution is read-only and touches no device; callers get target
// errors synchronously before any arbitration happens.
type Resolver struct {
	registry *Registry
	zones    ZoneLookup
}

// NewResolver creates a target resolver.
func NewResolver(registry *Registry, zones ZoneLookup) *Resolver {
	return &Resolver{registry: registry, zones: zones}
}

// ResolveTargets expands a single target into a device ID list.
//
// Device targets resolve to exactly one ID and fail with ErrDeviceNotFound
// for unknown devices. Zone targets resolve to the zone's ordered member
// list; zone membership is verified against the registry so a stale member
// row never produces a dispatch to a nonexistent device. The all-devices
// sentinel resolves to every registered device sorted by ID.
func (r *Resolver) ResolveTargets(ctx context.Context, target Target) ([]string, error) {
	switch {
	case target.DeviceID != "":
		if _, err := r.registry.GetDevice(ctx, target.DeviceID); err != nil {
			return nil, fmt.Errorf("resolving device %q: %w", target.DeviceID, err)
		}
		return []string{target.DeviceID}, nil

	case target.ZoneID != "":
		return r.resolveZone(ctx, target.ZoneID)

	case target.All:
		ids := r.registry.DeviceIDs()
		sort.Strings(ids)
		return ids, nil

	default:
		return nil, fmt.Errorf("%w: empty target", ErrDeviceNotFound)
	}
}

// ResolveUnion expands a combination of explicit device IDs, zone IDs and
// an all-devices flag into a deduplicated device ID list. Used by the
// emergency stop coordinator, which accepts any mix of the three.
//
// Order is deterministic: explicit devices first in the order given, then
// zone members in zone order, then (for all) the remaining registered
// devices sorted by ID. Duplicates keep their first position.
func (r *Resolver) ResolveUnion(ctx context.Context, deviceIDs, zoneIDs []string, all bool) ([]string, error) {
	seen := make(map[string]struct{})
	var result []string

	add := func(ids []string) {
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			result = append(result, id)
		}
	}

	for _, id := range deviceIDs {
		resolved, err := r.ResolveTargets(ctx, Target{DeviceID: id})
		if err != nil {
			return nil, err
		}
		add(resolved)
	}

	for _, zoneID := range zoneIDs {
		members, err := r.resolveZone(ctx, zoneID)
		if err != nil {
			return nil, err
		}
		add(members)
	}

	if all {
		ids := r.registry.DeviceIDs()
		sort.Strings(ids)
		add(ids)
	}

	return result, nil
}

// resolveZone returns a zone's member device IDs, filtered to devices the
// registry actually knows.
func (r *Resolver) resolveZone(ctx context.Context, zoneID string) ([]string, error) {
	members, err := r.zones.MemberDeviceIDs(ctx, zoneID)
	if err != nil {
		return nil, fmt.Errorf("resolving zone %q: %w", zoneID, err)
	}

	resolved := make([]string, 0, len(members))
	for _, id := range members {
		if _, err := r.registry.GetDevice(ctx, id); err != nil {
			// Stale membership rows are skipped, not fatal: the zone
			// still resolves to its live devices.
			continue
		}
		resolved = append(resolved, id)
	}
	return resolved, nil
}
