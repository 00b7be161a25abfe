// Package dispatch is the command dispatch core: it turns operator and
// automation requests into safely-ordered, safely-overridable actions
// against physical equipment.
//
// # Architecture
//
//	            ┌──────────────┐
//	 request ──▶│  Dispatcher  │── validate, resolve targets
//	            └──────┬───────┘
//	                   │ one Command per device
//	            ┌──────▼───────┐
//	            │   Arbiter    │── per-device lane: one active slot,
//	            └──────┬───────┘   one pending, priority preemption
//	                   │ slot won
//	            ┌──────▼───────┐      ┌───────────┐
//	            │   Executor   │─────▶│ Transport  │ (MQTT adapter)
//	            └──────┬───────┘      └───────────┘
//	                   │ outcome
//	            ┌──────▼───────┐
//	            │   Recorder   │──▶ audit sink, websocket hub, telemetry
//	            └──────────────┘
//
// The Coordinator sits beside the Dispatcher and drives emergency
// stops: it resolves the union of explicit devices, zones, and the
// stop-all flag, then fans synthetic stop commands at emergency
// priority with override through the same arbiter.
//
// # Arbitration
//
// Each device has exactly one active arbitration slot. A new command
// either wins the free slot, preempts the holder, queues in the single
// pending position, or is rejected with a priority conflict. Preemption
// requires either the override flag and any strictly higher priority,
// or a priority gap of at least two levels; adjacent-priority commands
// queue instead of interrupting running work.
//
// Preemption is cooperative. The preempted command's context is
// cancelled and the slot reassigned immediately; if its transport call
// cannot be cancelled and returns later, the completion is reconciled
// against a per-lane commit sequence so the newer command's state
// always wins.
//
// # Ordering
//
// Per device, outcomes are reported in completion order, not submission
// order. A preempted command can never report a state change after the
// command that displaced it: its late confirmation is discarded by the
// commit gate and its outcome stays preempted. Lanes are independent;
// unrelated devices never contend on a shared lock.
package dispatch
