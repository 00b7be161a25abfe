// Package tsdb writes command telemetry to InfluxDB.
//
// Client wraps the InfluxDB v2 client with non-blocking batched writes.
// Recorder adapts dispatch events into two measurements:
//
//	command_resolutions  arbitration decisions (accepted/queued/rejected)
//	command_outcomes     terminal outcomes with end-to-end latency
//
// Telemetry is optional and disabled by default; when disabled the
// recorder is simply not wired into the dispatch fan-out.
package tsdb
