package device

import "time"

// Device represents a controllable or monitorable piece of equipment.
// This matches the database schema in migrations/20260301_100000_initial_schema.up.sql.
type Device struct {
	// Identity
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`

	// Classification. The kind determines which command actions the
	// Execution Engine will accept for this device.
	Kind Kind `json:"kind"`

	// Zone membership. ZoneID is the primary zone (nil for unzoned
	// plant equipment); multi-zone fixtures carry additional membership
	// in the zone_members relation, resolved through the zone registry.
	ZoneID *string `json:"zone_id,omitempty"`

	// CommittedState is the last state confirmed applied by the
	// Execution Engine. It is mutated only on confirmed outcomes.
	CommittedState State      `json:"committed_state"`
	StateUpdatedAt *time.Time `json:"state_updated_at,omitempty"`

	// Health monitoring
	HealthStatus   HealthStatus `json:"health_status"`
	HealthLastSeen *time.Time   `json:"health_last_seen,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy creates a complete independent copy of the Device.
// All map fields are cloned so modifications to the copy do not affect
// the original. This is essential for cache isolation.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}

	cpy := *d // Shallow copy of value fields
	cpy.CommittedState = deepCopyMap(d.CommittedState)

	// Pointer fields (*string, *time.Time) don't need deep copy
	// because strings and time.Time are immutable in Go

	return &cpy
}

// deepCopyMap creates a deep copy of a map[string]any.
// Nested maps and slices are recursively copied.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		// Primitives (string, bool, int, float64, etc.) are safe to copy by value
		return v
	}
}

// State holds a device state as a JSON map.
//
// Examples:
//   - Ballast: {"on": true, "level": 75}
//   - HVAC unit: {"mode": "cool", "setpoint": 21.5}
//   - Irrigation valve: {"open": false}
type State map[string]any

// Kind represents the actuator class of a device. It drives command
// validation: each kind accepts a fixed set of actions.
type Kind string

// Kind constants.
const (
	KindLightingBallast Kind = "lighting_ballast"
	KindLightingDimmer  Kind = "lighting_dimmer"
	KindHVACUnit        Kind = "hvac_unit"
	KindIrrigationValve Kind = "irrigation_valve"
	KindPump            Kind = "pump"
	KindFan             Kind = "fan"
	KindRelay           Kind = "relay"
	KindSensor          Kind = "sensor"
)

// AllKinds returns all valid device kind values.
func AllKinds() []Kind {
	return []Kind{
		KindLightingBallast, KindLightingDimmer, KindHVACUnit,
		KindIrrigationValve, KindPump, KindFan, KindRelay, KindSensor,
	}
}

// Command actions understood by the dispatch core. The parameter payload
// itself is opaque here; per-action shape checks live in validation.go.
const (
	ActionOn          = "on"
	ActionOff         = "off"
	ActionSetLevel    = "set_level"
	ActionSetSetpoint = "set_setpoint"
	ActionSetMode     = "set_mode"
	ActionOpen        = "open"
	ActionClose       = "close"
	ActionRun         = "run"
	ActionStop        = "stop"
	ActionRead        = "read"

	// ActionRevert returns a device to an earlier committed state. It is
	// issued by the Execution Engine when a duration-bounded command
	// expires, and is accepted by every kind.
	ActionRevert = "revert"
)

// kindActions maps each kind to its accepted action set. Every kind
// accepts "stop" so that an emergency stop can always be dispatched
// without per-kind special cases, and "revert" for duration expiry.
var kindActions = map[Kind]map[string]struct{}{
	KindLightingBallast: actionSet(ActionOn, ActionOff, ActionStop, ActionRead, ActionRevert),
	KindLightingDimmer:  actionSet(ActionOn, ActionOff, ActionSetLevel, ActionStop, ActionRead, ActionRevert),
	KindHVACUnit:        actionSet(ActionOn, ActionOff, ActionSetSetpoint, ActionSetMode, ActionStop, ActionRead, ActionRevert),
	KindIrrigationValve: actionSet(ActionOpen, ActionClose, ActionStop, ActionRead, ActionRevert),
	KindPump:            actionSet(ActionRun, ActionStop, ActionSetLevel, ActionRead, ActionRevert),
	KindFan:             actionSet(ActionRun, ActionStop, ActionSetLevel, ActionRead, ActionRevert),
	KindRelay:           actionSet(ActionOn, ActionOff, ActionStop, ActionRead, ActionRevert),
	KindSensor:          actionSet(ActionRead, ActionStop, ActionRevert),
}

func actionSet(actions ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(actions))
	for _, a := range actions {
		s[a] = struct{}{}
	}
	return s
}

// Accepts reports whether the kind accepts the given action.
func (k Kind) Accepts(action string) bool {
	actions, ok := kindActions[k]
	if !ok {
		return false
	}
	_, ok = actions[action]
	return ok
}

// HealthStatus represents the device reachability state.
type HealthStatus string

// HealthStatus constants.
const (
	HealthStatusOnline  HealthStatus = "online"
	HealthStatusOffline HealthStatus = "offline"
	HealthStatusUnknown HealthStatus = "unknown"
)

// AllHealthStatuses returns all valid health status values.
func AllHealthStatuses() []HealthStatus {
	return []HealthStatus{HealthStatusOnline, HealthStatusOffline, HealthStatusUnknown}
}
