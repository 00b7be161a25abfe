// Package zone manages named groupings of devices for bulk command
// targeting.
//
// A zone is an ordered list of member devices. Order matters: when a
// command targets a zone, the dispatcher fans out to members in the
// order they were commissioned, so staged sequences (lights down a
// corridor, valves along a pipe run) behave predictably.
//
// # Architecture
//
//	┌──────────────┐     ┌──────────────┐     ┌──────────────┐
//	│   Registry    │────▶│  Repository  │────▶│    SQLite    │
//	│  (cache+API)  │     │ (interface)  │     │ zones +      │
//	└──────────────┘     └──────────────┘     │ zone_members │
//	                                          └──────────────┘
//
// The Registry satisfies the device package's ZoneLookup interface via
// MemberDeviceIDs, which is how zone-targeted commands resolve to a
// concrete device list. Membership may reference devices that have
// since been deleted; the resolver skips those rows rather than
// failing the whole command.
package zone
