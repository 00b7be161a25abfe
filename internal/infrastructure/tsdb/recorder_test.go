package tsdb

import (
	"testing"
	"time"

	"github.com/veralux-systems/dispatch-core/internal/dispatch"
)

type capturedPoint struct {
	measurement string
	tags        map[string]string
	fields      map[string]any
	ts          time.Time
}

type fakeWriter struct {
	points []capturedPoint
}

func (w *fakeWriter) WritePoint(measurement string, tags map[string]string, fields map[string]any, ts time.Time) {
	w.points = append(w.points, capturedPoint{measurement, tags, fields, ts})
}

func TestRecorder_ResolutionPoint(t *testing.T) {
	w := &fakeWriter{}
	r := &Recorder{writer: w}

	decided := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.Record(dispatch.Event{
		CommandID:  "c1",
		DeviceID:   "d1",
		Action:     "on",
		Priority:   dispatch.PriorityOperator,
		Resolution: dispatch.ResolutionAccepted,
		DecidedAt:  decided,
	})

	if len(w.points) != 1 {
		t.Fatalf("points = %d, want 1", len(w.points))
	}
	p := w.points[0]
	if p.measurement != "command_resolutions" {
		t.Errorf("measurement = %q, want command_resolutions", p.measurement)
	}
	if p.tags["priority"] != "operator" {
		t.Errorf("priority tag = %q, want operator", p.tags["priority"])
	}
	if p.fields["resolution"] != "accepted" {
		t.Errorf("resolution field = %v, want accepted", p.fields["resolution"])
	}
	if !p.ts.Equal(decided) {
		t.Errorf("timestamp = %v, want %v", p.ts, decided)
	}
}

func TestRecorder_OutcomePointCarriesLatency(t *testing.T) {
	w := &fakeWriter{}
	r := &Recorder{writer: w}

	submitted := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.Record(dispatch.Event{
		CommandID:   "c1",
		DeviceID:    "d1",
		Action:      "set_level",
		Priority:    dispatch.PriorityRoutine,
		Outcome:     dispatch.OutcomeApplied,
		SubmittedAt: submitted,
		CompletedAt: submitted.Add(250 * time.Millisecond),
	})

	if len(w.points) != 1 {
		t.Fatalf("points = %d, want 1", len(w.points))
	}
	p := w.points[0]
	if p.measurement != "command_outcomes" {
		t.Errorf("measurement = %q, want command_outcomes", p.measurement)
	}
	if p.tags["outcome"] != "applied" {
		t.Errorf("outcome tag = %q, want applied", p.tags["outcome"])
	}
	if lat, ok := p.fields["latency_ms"].(float64); !ok || lat != 250 {
		t.Errorf("latency_ms = %v, want 250", p.fields["latency_ms"])
	}
	if _, ok := p.fields["error_code"]; ok {
		t.Error("error_code present on a clean outcome")
	}
}

func TestRecorder_FailedOutcomeCarriesErrorCode(t *testing.T) {
	w := &fakeWriter{}
	r := &Recorder{writer: w}

	r.Record(dispatch.Event{
		CommandID:   "c1",
		DeviceID:    "d1",
		Action:      "on",
		Priority:    dispatch.PriorityEmergency,
		Outcome:     dispatch.OutcomeFailedTimeout,
		ErrorCode:   dispatch.CodeTimeout,
		CompletedAt: time.Now().UTC(),
	})

	p := w.points[0]
	if p.fields["error_code"] != dispatch.CodeTimeout {
		t.Errorf("error_code = %v, want %q", p.fields["error_code"], dispatch.CodeTimeout)
	}
}
