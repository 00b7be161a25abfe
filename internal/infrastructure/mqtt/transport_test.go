package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/veralux-systems/dispatch-core/internal/device"
	"github.com/veralux-systems/dispatch-core/internal/dispatch"
)

// fakeBroker captures publishes and lets tests deliver acks by hand.
type fakeBroker struct {
	mu         sync.Mutex
	published  []publishRecord
	publishErr error
	handler    MessageHandler
}

type publishRecord struct {
	topic   string
	payload []byte
}

func (b *fakeBroker) Publish(topic string, payload []byte, _ byte, _ bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.publishErr != nil {
		return b.publishErr
	}
	b.published = append(b.published, publishRecord{topic: topic, payload: payload})
	return nil
}

func (b *fakeBroker) Subscribe(_ string, _ byte, handler MessageHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = handler
	return nil
}

func (b *fakeBroker) lastCommand(t *testing.T) commandMessage {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.published) == 0 {
		t.Fatal("no command published")
	}
	var msg commandMessage
	if err := json.Unmarshal(b.published[len(b.published)-1].payload, &msg); err != nil {
		t.Fatalf("decoding published command: %v", err)
	}
	return msg
}

func (b *fakeBroker) deliverAck(t *testing.T, ack ackMessage) {
	t.Helper()
	payload, err := json.Marshal(ack)
	if err != nil {
		t.Fatalf("encoding ack: %v", err)
	}
	b.mu.Lock()
	handler := b.handler
	b.mu.Unlock()
	if handler == nil {
		t.Fatal("transport never subscribed to acks")
	}
	if err := handler(Topics{}.DeviceAck(ack.DeviceID), payload); err != nil {
		t.Fatalf("handleAck() error = %v", err)
	}
}

func newTestTransport(t *testing.T) (*Transport, *fakeBroker) {
	t.Helper()
	b := &fakeBroker{}
	tr := &Transport{
		broker:  b,
		qos:     1,
		waiters: make(map[string]chan ackMessage),
	}
	if err := b.Subscribe(tr.topics.AckWildcard(), 1, tr.handleAck); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	return tr, b
}

func TestTransport_SendAppliedAck(t *testing.T) {
	tr, broker := newTestTransport(t)

	errCh := make(chan error, 1)
	go func() {
		errCh <- tr.Send(context.Background(), "hvac-1", device.ActionSetLevel, map[string]any{"level": 60})
	}()

	// Wait for the command to be published, then ack it.
	var msg commandMessage
	deadline := time.After(2 * time.Second)
	for {
		broker.mu.Lock()
		n := len(broker.published)
		broker.mu.Unlock()
		if n > 0 {
			msg = broker.lastCommand(t)
			break
		}
		select {
		case <-deadline:
			t.Fatal("command never published")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if msg.DeviceID != "hvac-1" || msg.Action != device.ActionSetLevel {
		t.Errorf("published command = %+v, want hvac-1 set_level", msg)
	}
	if msg.RequestID == "" {
		t.Error("command missing request ID")
	}

	broker.deliverAck(t, ackMessage{RequestID: msg.RequestID, DeviceID: "hvac-1", Status: ackApplied})

	if err := <-errCh; err != nil {
		t.Errorf("Send() error = %v, want nil", err)
	}
}

func TestTransport_RejectionAckIsPermanent(t *testing.T) {
	tr, broker := newTestTransport(t)

	errCh := make(chan error, 1)
	go func() {
		errCh <- tr.Send(context.Background(), "relay-1", device.ActionOn, nil)
	}()

	deadline := time.After(2 * time.Second)
	for {
		broker.mu.Lock()
		n := len(broker.published)
		broker.mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("command never published")
		case <-time.After(5 * time.Millisecond):
		}
	}
	msg := broker.lastCommand(t)
	broker.deliverAck(t, ackMessage{
		RequestID: msg.RequestID,
		DeviceID:  "relay-1",
		Status:    ackRejected,
		Error:     "unsupported action",
	})

	err := <-errCh
	if err == nil {
		t.Fatal("Send() error = nil, want rejection")
	}
	if !errors.Is(err, ErrAckRejected) {
		t.Errorf("error = %v, want ErrAckRejected", err)
	}
	if dispatch.IsTransient(err) {
		t.Error("rejection classified transient, want permanent")
	}
}

func TestTransport_NoAckBeforeContextIsTransient(t *testing.T) {
	tr, _ := newTestTransport(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := tr.Send(ctx, "hvac-1", device.ActionOff, nil)
	if err == nil {
		t.Fatal("Send() error = nil, want timeout")
	}
	if !dispatch.IsTransient(err) {
		t.Errorf("error = %v, want transient", err)
	}
}

func TestTransport_PublishFailureIsTransient(t *testing.T) {
	tr, broker := newTestTransport(t)
	broker.publishErr = ErrNotConnected

	err := tr.Send(context.Background(), "hvac-1", device.ActionOn, nil)
	if err == nil {
		t.Fatal("Send() error = nil, want publish failure")
	}
	if !dispatch.IsTransient(err) {
		t.Errorf("error = %v, want transient", err)
	}

	// No waiter should linger after a failed send.
	tr.mu.Lock()
	remaining := len(tr.waiters)
	tr.mu.Unlock()
	if remaining != 0 {
		t.Errorf("waiters = %d, want 0", remaining)
	}
}

func TestTransport_LateAckIsDropped(t *testing.T) {
	tr, broker := newTestTransport(t)

	// An ack for an unknown request must not error or block.
	broker.deliverAck(t, ackMessage{RequestID: "stale", DeviceID: "d1", Status: ackApplied})

	tr.mu.Lock()
	remaining := len(tr.waiters)
	tr.mu.Unlock()
	if remaining != 0 {
		t.Errorf("waiters = %d, want 0", remaining)
	}
}

func TestTopics_DeviceFromAckTopic(t *testing.T) {
	tests := []struct {
		topic string
		want  string
	}{
		{"dispatch/ack/hvac-1", "hvac-1"},
		{"dispatch/command/hvac-1", ""},
		{"other/ack/hvac-1", ""},
		{"dispatch/ack", ""},
	}
	for _, tt := range tests {
		if got := (Topics{}).DeviceFromAckTopic(tt.topic); got != tt.want {
			t.Errorf("DeviceFromAckTopic(%q) = %q, want %q", tt.topic, got, tt.want)
		}
	}
}
