package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/veralux-systems/dispatch-core/internal/device"
)

// runExecutor drives a command through the executor with a direct
// commit into the directory, returning the reported result.
func runExecutor(t *testing.T, dir *mockDirectory, tr *mockTransport, cmd *Command) Result {
	t.Helper()

	exec := NewExecutor(dir, tr, 5*time.Millisecond, 250*time.Millisecond)
	commit := func(state device.State) error {
		return dir.SetCommittedState(context.Background(), cmd.DeviceID, state)
	}

	results := make(chan Result, 1)
	done := make(chan struct{})
	go func() {
		exec.Execute(context.Background(), cmd, commit, func(r Result) { results <- r })
		close(done)
	}()

	select {
	case r := <-results:
		t.Cleanup(func() {
			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Error("executor did not return")
			}
		})
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for executor result")
		return Result{}
	}
}

func TestExecutor_TransientFailureRetriesOnce(t *testing.T) {
	dir := newMockDirectory()
	dir.add("d1", device.KindRelay, device.State{"on": false})
	tr := newMockTransport()
	tr.queueErrors("d1", Transient(errors.New("broker unavailable")))

	res := runExecutor(t, dir, tr, testCommand("d1", device.ActionOn, PriorityRoutine))
	if res.Outcome != OutcomeApplied {
		t.Fatalf("outcome = %q, want applied after retry (err %v)", res.Outcome, res.Err)
	}
	if n := tr.callCount("d1"); n != 2 {
		t.Errorf("transport calls = %d, want 2", n)
	}
}

func TestExecutor_TransientFailureExhaustsRetry(t *testing.T) {
	dir := newMockDirectory()
	dir.add("d1", device.KindRelay, device.State{"on": false})
	tr := newMockTransport()
	tr.queueErrors("d1",
		Transient(errors.New("broker unavailable")),
		Transient(errors.New("broker unavailable")))

	res := runExecutor(t, dir, tr, testCommand("d1", device.ActionOn, PriorityRoutine))
	if res.Outcome != OutcomeFailed {
		t.Fatalf("outcome = %q, want failed", res.Outcome)
	}
	if res.ErrorCode != CodeFailed {
		t.Errorf("error code = %q, want %q", res.ErrorCode, CodeFailed)
	}
	if n := tr.callCount("d1"); n != 2 {
		t.Errorf("transport calls = %d, want 2 (single retry)", n)
	}
	// Committed state untouched on failure.
	if dir.state("d1")["on"] != false {
		t.Error("failed command must not commit state")
	}
}

func TestExecutor_PermanentFailureNoRetry(t *testing.T) {
	dir := newMockDirectory()
	dir.add("d1", device.KindHVACUnit, device.State{})
	tr := newMockTransport()
	tr.queueErrors("d1", Permanent(errors.New("unsupported register")))

	cmd := testCommand("d1", device.ActionSetSetpoint, PriorityOperator)
	cmd.Params = map[string]any{"setpoint": 21.5}

	res := runExecutor(t, dir, tr, cmd)
	if res.Outcome != OutcomeFailed {
		t.Fatalf("outcome = %q, want failed", res.Outcome)
	}
	if n := tr.callCount("d1"); n != 1 {
		t.Errorf("transport calls = %d, want 1 (no retry on permanent)", n)
	}
}

func TestExecutor_UnknownDevice(t *testing.T) {
	dir := newMockDirectory()
	tr := newMockTransport()

	res := runExecutor(t, dir, tr, testCommand("ghost", device.ActionOn, PriorityRoutine))
	if res.Outcome != OutcomeFailed || res.ErrorCode != CodeUnknownDevice {
		t.Fatalf("result = %+v, want failed with unknown_device", res)
	}
	if n := tr.callCount("ghost"); n != 0 {
		t.Errorf("transport calls = %d, want 0", n)
	}
}

func TestExecutor_DurationRevertsToPriorState(t *testing.T) {
	dir := newMockDirectory()
	dir.add("d1", device.KindLightingDimmer, device.State{"on": false, "level": 0})
	tr := newMockTransport()

	cmd := testCommand("d1", device.ActionSetLevel, PriorityOperator)
	cmd.Params = map[string]any{"level": 80.0}
	cmd.Duration = 50 * time.Millisecond

	res := runExecutor(t, dir, tr, cmd)
	if res.Outcome != OutcomeApplied {
		t.Fatalf("outcome = %q, want applied", res.Outcome)
	}
	// Applied state is visible during the bounded window.
	if dir.state("d1")["on"] != true {
		t.Error("state not committed at apply time")
	}

	// After expiry the device returns to its pre-command state.
	deadline := time.After(time.Second)
	for dir.state("d1")["on"] != false {
		select {
		case <-deadline:
			t.Fatal("device did not revert after duration expiry")
		case <-time.After(10 * time.Millisecond):
		}
	}

	actions := tr.actions("d1")
	if len(actions) != 2 || actions[0] != device.ActionSetLevel || actions[1] != device.ActionRevert {
		t.Errorf("actions = %v, want [set_level revert]", actions)
	}
	if dir.state("d1")["level"] != 0 {
		t.Errorf("level = %v, want reverted to 0", dir.state("d1")["level"])
	}
}

func TestExecutor_CancelledDuringSendIsPreempted(t *testing.T) {
	dir := newMockDirectory()
	dir.add("d1", device.KindFan, device.State{"on": true})
	tr := newMockTransport()
	tr.block("d1", false)

	exec := NewExecutor(dir, tr, 5*time.Millisecond, 250*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	results := make(chan Result, 1)
	go exec.Execute(ctx, testCommand("d1", device.ActionOff, PriorityRoutine),
		func(device.State) error { return nil },
		func(r Result) { results <- r })

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case res := <-results:
		if res.Outcome != OutcomePreempted {
			t.Fatalf("outcome = %q, want preempted", res.Outcome)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for preempted result")
	}
}

func TestExecutor_MarksDeviceHealth(t *testing.T) {
	dir := newMockDirectory()
	dir.add("d1", device.KindSensor, device.State{})
	tr := newMockTransport()

	runExecutor(t, dir, tr, testCommand("d1", device.ActionRead, PriorityRoutine))
	dir.mu.Lock()
	status := dir.health["d1"]
	dir.mu.Unlock()
	if status != device.HealthStatusOnline {
		t.Errorf("health = %q, want online after successful send", status)
	}

	tr.queueErrors("d1",
		Transient(errors.New("down")), Transient(errors.New("down")))
	runExecutor(t, dir, tr, testCommand("d1", device.ActionRead, PriorityRoutine))
	dir.mu.Lock()
	status = dir.health["d1"]
	dir.mu.Unlock()
	if status != device.HealthStatusOffline {
		t.Errorf("health = %q, want offline after transport exhaustion", status)
	}
}
