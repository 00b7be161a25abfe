package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/veralux-systems/dispatch-core/internal/device"
)

func newTestDispatcher(resolver TargetResolver, dir *mockDirectory, tr *mockTransport) *Dispatcher {
	arb := newTestArbiter(dir, tr)
	return NewDispatcher(resolver, dir, arb, time.Second)
}

func TestDispatcher_SubmitAndWait(t *testing.T) {
	dir := newMockDirectory()
	dir.add("d1", device.KindLightingDimmer, device.State{"on": false})
	tr := newMockTransport()
	disp := newTestDispatcher(&stubResolver{devices: []string{"d1"}}, dir, tr)

	results, err := disp.SubmitAndWait(context.Background(), Request{
		Target:    device.Target{DeviceID: "d1"},
		Action:    device.ActionOn,
		Priority:  PriorityOperator,
		Requester: "alice",
	})
	if err != nil {
		t.Fatalf("SubmitAndWait() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].Outcome != OutcomeApplied {
		t.Errorf("outcome = %q, want applied", results[0].Outcome)
	}
	if results[0].Resolution != ResolutionAccepted {
		t.Errorf("resolution = %q, want accepted", results[0].Resolution)
	}
}

func TestDispatcher_RequesterRequired(t *testing.T) {
	dir := newMockDirectory()
	tr := newMockTransport()
	disp := newTestDispatcher(&stubResolver{devices: []string{"d1"}}, dir, tr)

	_, err := disp.Submit(context.Background(), Request{
		Target:   device.Target{DeviceID: "d1"},
		Action:   device.ActionOn,
		Priority: PriorityRoutine,
	})
	if !errors.Is(err, ErrMissingRequester) {
		t.Errorf("Submit() error = %v, want ErrMissingRequester", err)
	}
}

func TestDispatcher_ReasonRequiredForOverride(t *testing.T) {
	dir := newMockDirectory()
	tr := newMockTransport()
	disp := newTestDispatcher(&stubResolver{devices: []string{"d1"}}, dir, tr)

	tests := []struct {
		name     string
		priority Priority
		override bool
	}{
		{"override flag", PriorityOperator, true},
		{"override priority", PriorityOverride, false},
		{"emergency priority", PriorityEmergency, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := disp.Submit(context.Background(), Request{
				Target:    device.Target{DeviceID: "d1"},
				Action:    device.ActionOn,
				Priority:  tt.priority,
				Override:  tt.override,
				Requester: "alice",
			})
			if !errors.Is(err, ErrMissingReason) {
				t.Errorf("Submit() error = %v, want ErrMissingReason", err)
			}
		})
	}
}

func TestDispatcher_InvalidParametersRejectedBeforeTransport(t *testing.T) {
	dir := newMockDirectory()
	dir.add("d1", device.KindLightingBallast, device.State{"on": false})
	tr := newMockTransport()
	disp := newTestDispatcher(&stubResolver{devices: []string{"d1"}}, dir, tr)

	// Ballasts are on/off only; set_level must be rejected synchronously.
	_, err := disp.Submit(context.Background(), Request{
		Target:    device.Target{DeviceID: "d1"},
		Action:    device.ActionSetLevel,
		Params:    map[string]any{"level": 50.0},
		Priority:  PriorityOperator,
		Requester: "alice",
	})
	if !errors.Is(err, device.ErrInvalidAction) {
		t.Fatalf("Submit() error = %v, want ErrInvalidAction", err)
	}
	if n := tr.callCount("d1"); n != 0 {
		t.Errorf("transport calls = %d, want 0", n)
	}
}

func TestDispatcher_MixedZoneRejectsWholeRequest(t *testing.T) {
	dir := newMockDirectory()
	dir.add("d1", device.KindLightingDimmer, device.State{})
	dir.add("d2", device.KindLightingBallast, device.State{})
	tr := newMockTransport()
	disp := newTestDispatcher(&stubResolver{devices: []string{"d1", "d2"}}, dir, tr)

	_, err := disp.Submit(context.Background(), Request{
		Target:    device.Target{ZoneID: "z1"},
		Action:    device.ActionSetLevel,
		Params:    map[string]any{"level": 50.0},
		Priority:  PriorityOperator,
		Requester: "alice",
	})
	if !errors.Is(err, device.ErrInvalidAction) {
		t.Fatalf("Submit() error = %v, want ErrInvalidAction", err)
	}
	// Neither device was touched, including the one that would accept
	// the action.
	if n := tr.callCount("d1") + tr.callCount("d2"); n != 0 {
		t.Errorf("transport calls = %d, want 0", n)
	}
}

func TestDispatcher_ResolutionErrorPropagates(t *testing.T) {
	dir := newMockDirectory()
	tr := newMockTransport()
	disp := newTestDispatcher(&stubResolver{err: device.ErrDeviceNotFound}, dir, tr)

	_, err := disp.Submit(context.Background(), Request{
		Target:    device.Target{DeviceID: "ghost"},
		Action:    device.ActionOn,
		Priority:  PriorityRoutine,
		Requester: "alice",
	})
	if !errors.Is(err, device.ErrDeviceNotFound) {
		t.Errorf("Submit() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestDispatcher_EmptyResolutionRejected(t *testing.T) {
	dir := newMockDirectory()
	tr := newMockTransport()
	disp := newTestDispatcher(&stubResolver{}, dir, tr)

	_, err := disp.Submit(context.Background(), Request{
		Target:    device.Target{All: true},
		Action:    device.ActionOn,
		Priority:  PriorityRoutine,
		Requester: "alice",
	})
	if !errors.Is(err, ErrEmptyTargets) {
		t.Errorf("Submit() error = %v, want ErrEmptyTargets", err)
	}
}

func TestDispatcher_BulkFanOut(t *testing.T) {
	dir := newMockDirectory()
	for _, id := range []string{"d1", "d2", "d3"} {
		dir.add(id, device.KindRelay, device.State{"on": true})
	}
	tr := newMockTransport()
	disp := newTestDispatcher(&stubResolver{devices: []string{"d1", "d2", "d3"}}, dir, tr)

	results, err := disp.SubmitAndWait(context.Background(), Request{
		Target:    device.Target{ZoneID: "z1"},
		Action:    device.ActionOff,
		Priority:  PriorityScheduled,
		Requester: "scheduler",
	})
	if err != nil {
		t.Fatalf("SubmitAndWait() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	for _, r := range results {
		if r.Outcome != OutcomeApplied {
			t.Errorf("device %s outcome = %q, want applied", r.DeviceID, r.Outcome)
		}
	}
}

func TestParsePriority(t *testing.T) {
	tests := []struct {
		input   string
		want    Priority
		wantErr bool
	}{
		{"routine", PriorityRoutine, false},
		{"scheduled", PriorityScheduled, false},
		{"operator", PriorityOperator, false},
		{"override", PriorityOverride, false},
		{"emergency", PriorityEmergency, false},
		{"urgent", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := ParsePriority(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePriority(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParsePriority(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
