package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/veralux-systems/dispatch-core/internal/device"
)

// mockDirectory is a test implementation of DeviceDirectory.
type mockDirectory struct {
	mu     sync.Mutex
	kinds  map[string]device.Kind
	states map[string]device.State
	health map[string]device.HealthStatus
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{
		kinds:  make(map[string]device.Kind),
		states: make(map[string]device.State),
		health: make(map[string]device.HealthStatus),
	}
}

func (m *mockDirectory) add(id string, kind device.Kind, state device.State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kinds[id] = kind
	m.states[id] = copyState(state)
}

func (m *mockDirectory) GetDevice(_ context.Context, id string) (*device.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kind, ok := m.kinds[id]
	if !ok {
		return nil, device.ErrDeviceNotFound
	}
	return &device.Device{
		ID:             id,
		Kind:           kind,
		CommittedState: copyState(m.states[id]),
	}, nil
}

func (m *mockDirectory) Kind(_ context.Context, id string) (device.Kind, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kind, ok := m.kinds[id]
	if !ok {
		return "", device.ErrDeviceNotFound
	}
	return kind, nil
}

func (m *mockDirectory) SetCommittedState(_ context.Context, id string, state device.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.kinds[id]; !ok {
		return device.ErrDeviceNotFound
	}
	m.states[id] = copyState(state)
	return nil
}

func (m *mockDirectory) SetDeviceHealth(_ context.Context, id string, status device.HealthStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.kinds[id]; !ok {
		return device.ErrDeviceNotFound
	}
	m.health[id] = status
	return nil
}

func (m *mockDirectory) state(id string) device.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyState(m.states[id])
}

func copyState(s device.State) device.State {
	out := make(device.State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// mockTransport is a scriptable Transport. Per device it can queue
// errors for successive calls, block until a channel closes, and
// optionally ignore cancellation to model an unkillable in-flight call.
type mockTransport struct {
	mu           sync.Mutex
	calls        []sendRecord
	errQueue     map[string][]error
	blockOn      map[string]chan struct{}
	ignoreCancel map[string]bool
}

type sendRecord struct {
	DeviceID string
	Action   string
}

func newMockTransport() *mockTransport {
	return &mockTransport{
		errQueue:     make(map[string][]error),
		blockOn:      make(map[string]chan struct{}),
		ignoreCancel: make(map[string]bool),
	}
}

func (m *mockTransport) Send(ctx context.Context, deviceID, action string, _ map[string]any) error {
	m.mu.Lock()
	m.calls = append(m.calls, sendRecord{DeviceID: deviceID, Action: action})
	var err error
	if q := m.errQueue[deviceID]; len(q) > 0 {
		err = q[0]
		m.errQueue[deviceID] = q[1:]
	}
	block := m.blockOn[deviceID]
	ignore := m.ignoreCancel[deviceID]
	m.mu.Unlock()

	if block != nil {
		if ignore {
			<-block
		} else {
			select {
			case <-block:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return err
}

func (m *mockTransport) queueErrors(deviceID string, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errQueue[deviceID] = append(m.errQueue[deviceID], errs...)
}

func (m *mockTransport) block(deviceID string, ignoreCancel bool) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan struct{})
	m.blockOn[deviceID] = ch
	m.ignoreCancel[deviceID] = ignoreCancel
	return ch
}

func (m *mockTransport) callCount(deviceID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.DeviceID == deviceID {
			n++
		}
	}
	return n
}

func (m *mockTransport) actions(deviceID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.calls {
		if c.DeviceID == deviceID {
			out = append(out, c.Action)
		}
	}
	return out
}

// eventRecorder captures audit events for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) Record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) outcomes(commandID string) []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Outcome
	for _, e := range r.events {
		if e.CommandID == commandID && e.Outcome != "" {
			out = append(out, e.Outcome)
		}
	}
	return out
}

// stubResolver is a fixed-answer TargetResolver.
type stubResolver struct {
	devices []string
	err     error
}

func (s *stubResolver) ResolveTargets(context.Context, device.Target) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.devices, nil
}

func (s *stubResolver) ResolveUnion(context.Context, []string, []string, bool) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.devices, nil
}

func newTestArbiter(dir *mockDirectory, tr *mockTransport) *Arbiter {
	exec := NewExecutor(dir, tr, 10*time.Millisecond, 250*time.Millisecond)
	return NewArbiter(exec, dir)
}

func testCommand(deviceID, action string, priority Priority) *Command {
	return &Command{
		ID:          NewCommandID(),
		DeviceID:    deviceID,
		Action:      action,
		Priority:    priority,
		Requester:   "test-user",
		SubmittedAt: time.Now().UTC(),
	}
}

func waitResult(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for result")
		return Result{}
	}
}
