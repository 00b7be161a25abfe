package tsdb

import (
	"time"

	"github.com/veralux-systems/dispatch-core/internal/dispatch"
)

// pointWriter is the subset of Client the recorder needs. Narrowed for tests.
type pointWriter interface {
	WritePoint(measurement string, tags map[string]string, fields map[string]any, ts time.Time)
}

// Recorder writes command telemetry points to InfluxDB. It implements
// dispatch.Recorder.
//
// Resolution events become command_resolutions points; terminal outcomes
// become command_outcomes points carrying end-to-end latency. Writes are
// buffered by the client so recording never blocks dispatch.
type Recorder struct {
	writer pointWriter
}

// NewRecorder creates a telemetry recorder over the given client.
func NewRecorder(client *Client) *Recorder {
	return &Recorder{writer: client}
}

// Record writes one telemetry point for the event.
func (r *Recorder) Record(e dispatch.Event) {
	tags := map[string]string{
		"device_id": e.DeviceID,
		"action":    e.Action,
		"priority":  e.Priority.String(),
	}

	if e.Outcome == "" {
		r.writer.WritePoint("command_resolutions", tags, map[string]any{
			"command_id": e.CommandID,
			"resolution": string(e.Resolution),
			"override":   e.Override,
		}, e.DecidedAt)
		return
	}

	tags["outcome"] = string(e.Outcome)
	fields := map[string]any{
		"command_id": e.CommandID,
		"override":   e.Override,
	}
	if e.ErrorCode != "" {
		fields["error_code"] = e.ErrorCode
	}
	if !e.CompletedAt.IsZero() && !e.SubmittedAt.IsZero() {
		fields["latency_ms"] = float64(e.CompletedAt.Sub(e.SubmittedAt)) / float64(time.Millisecond)
	}

	ts := e.CompletedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	r.writer.WritePoint("command_outcomes", tags, fields, ts)
}
