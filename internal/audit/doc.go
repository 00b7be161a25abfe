// Package audit keeps the authoritative record of every attempted
// command: its snapshot, its arbitration decision, and its terminal
// outcome, independent of whether the device transport succeeded.
//
// # Architecture
//
//	dispatch events ──▶ Recorder ──▶ Sink (bounded queue) ──▶ SQLite
//
// The sink decouples dispatch from storage: Record never blocks, the
// background flusher batches writes, and a transiently unavailable
// store only consumes buffer space. When the buffer saturates the
// oldest unflushed entries are dropped rather than stalling dispatch,
// and every drop is surfaced as a distinct audit-loss entry so the gap
// in the record is itself recorded.
//
// The log is append-only and queryable by device, command, episode,
// and time range. Retention is an external policy.
package audit
