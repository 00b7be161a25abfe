// Package device provides the Device Registry for the dispatch core.
//
// The registry is the catalogue of all controllable equipment a site
// exposes to the command dispatcher: lighting ballasts, HVAC units,
// irrigation valves, pumps, fans, relays and sensors. It owns device
// identity, kind, primary zone membership, committed state and health,
// and expands command targets into concrete device sets.
//
// # Architecture
//
//	┌───────────────────────────────────────────────────────────────────┐
//	│                         Device Registry                           │
//	│                                                                   │
//	│  ┌──────────────┐   ┌────────────────┐   ┌────────────────────┐   │
//	│  │   Registry   │   │   Repository   │   │      Resolver      │   │
//	│  │ (registry.go)│──▶│ (repository.go)│   │   (resolver.go)    │   │
//	│  │              │   │                │   │                    │   │
//	│  │ • CRUD ops   │   │ • SQLite       │   │ • device / zone /  │   │
//	│  │ • state cache│   │ • JSON state   │   │   all expansion    │   │
//	│  │ • health     │   │                │   │ • union resolution │   │
//	│  └──────────────┘   └────────────────┘   └────────────────────┘   │
//	└───────────────────────────────────────────────────────────────────┘
//	          ▲                                        ▲
//	          │ committed state on confirmed outcome   │ targets
//	   Execution Engine                         Arbiter / EStop
//
// # Key Types
//
//   - Device: equipment entity with kind, zone, committed state and health
//   - Kind: actuator class, drives per-action command validation
//   - Target: device ID, zone ID or all-devices sentinel
//   - Resolver: expands targets before arbitration
//
// # Committed State
//
// CommittedState is the last state confirmed applied by the Execution
// Engine. Only SetCommittedState mutates it, and only after transport
// confirmation. Duration-bounded commands revert to the committed state
// captured at activation.
//
// # Thread Safety
//
// The Registry is safe for concurrent use. Reads come from an RWMutex-
// guarded cache of deep copies; the Repository implementation must also
// be thread-safe.
package device
