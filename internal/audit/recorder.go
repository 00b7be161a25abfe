package audit

import (
	"github.com/veralux-systems/dispatch-core/internal/dispatch"
)

// Recorder adapts the sink to the dispatch core's audit interface,
// converting command transition events into audit entries.
type Recorder struct {
	sink *Sink
}

// NewRecorder creates a dispatch-facing recorder over the sink.
func NewRecorder(sink *Sink) *Recorder {
	return &Recorder{sink: sink}
}

// Record converts a dispatch event into an entry and queues it.
func (r *Recorder) Record(e dispatch.Event) {
	entry := Entry{
		CommandID:   e.CommandID,
		EpisodeID:   e.EpisodeID,
		DeviceID:    e.DeviceID,
		Action:      e.Action,
		Priority:    e.Priority.String(),
		Override:    e.Override,
		Requester:   e.Requester,
		Reason:      e.Reason,
		Arbitration: string(e.Resolution),
		Outcome:     string(e.Outcome),
		ErrorCode:   e.ErrorCode,
		SubmittedAt: e.SubmittedAt,
	}
	if !e.DecidedAt.IsZero() {
		decidedAt := e.DecidedAt
		entry.DecidedAt = &decidedAt
	}
	if !e.CompletedAt.IsZero() {
		completedAt := e.CompletedAt
		entry.CompletedAt = &completedAt
	}
	r.sink.Record(entry)
}
