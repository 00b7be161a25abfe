package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veralux-systems/dispatch-core/internal/dispatch"
)

// broker is the subset of Client the transport needs. Narrowed for tests.
type broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler MessageHandler) error
}

// commandMessage is the wire format published to device adapters.
type commandMessage struct {
	RequestID string         `json:"request_id"`
	DeviceID  string         `json:"device_id"`
	Action    string         `json:"action"`
	Params    map[string]any `json:"params,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// ackMessage is the wire format device adapters publish in response.
// Status is "applied" or "rejected".
type ackMessage struct {
	RequestID string `json:"request_id"`
	DeviceID  string `json:"device_id"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

const (
	ackApplied  = "applied"
	ackRejected = "rejected"
)

// Transport delivers commands to device adapters over MQTT and waits for
// per-request acknowledgments. It implements dispatch.Transport.
//
// Each Send publishes a commandMessage carrying a fresh request ID and
// blocks until the matching ackMessage arrives or the context expires.
// Acks for all devices arrive on a single wildcard subscription and are
// correlated back to the waiting Send by request ID.
type Transport struct {
	broker broker
	topics Topics
	qos    byte

	mu      sync.Mutex
	waiters map[string]chan ackMessage

	logger Logger
}

// NewTransport creates a transport over the given client and subscribes
// to the acknowledgment wildcard topic.
func NewTransport(client *Client, qos byte, logger Logger) (*Transport, error) {
	t := &Transport{
		broker:  client,
		qos:     qos,
		waiters: make(map[string]chan ackMessage),
		logger:  logger,
	}
	if err := client.Subscribe(t.topics.AckWildcard(), qos, t.handleAck); err != nil {
		return nil, fmt.Errorf("subscribing to acks: %w", err)
	}
	return t, nil
}

// Send publishes a command to the device's command topic and waits for
// the adapter's acknowledgment. A broker failure or missing ack is
// reported as transient so the caller may retry; a rejection ack is
// permanent.
func (t *Transport) Send(ctx context.Context, deviceID, action string, params map[string]any) error {
	requestID := uuid.New().String()

	msg := commandMessage{
		RequestID: requestID,
		DeviceID:  deviceID,
		Action:    action,
		Params:    params,
		Timestamp: time.Now().UTC(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return dispatch.Permanent(fmt.Errorf("encoding command: %w", err))
	}

	ch := t.register(requestID)
	defer t.unregister(requestID)

	if err := t.broker.Publish(t.topics.DeviceCommand(deviceID), payload, t.qos, false); err != nil {
		return dispatch.Transient(err)
	}

	select {
	case ack := <-ch:
		if ack.Status == ackRejected {
			if ack.Error != "" {
				return dispatch.Permanent(fmt.Errorf("%w: %s", ErrAckRejected, ack.Error))
			}
			return dispatch.Permanent(ErrAckRejected)
		}
		return nil
	case <-ctx.Done():
		return dispatch.Transient(fmt.Errorf("waiting for ack from %s: %w", deviceID, ctx.Err()))
	}
}

// handleAck correlates an incoming acknowledgment with its waiting Send.
// Late acks, whose request ID is no longer registered, are dropped.
func (t *Transport) handleAck(topic string, payload []byte) error {
	var ack ackMessage
	if err := json.Unmarshal(payload, &ack); err != nil {
		return fmt.Errorf("decoding ack on %s: %w", topic, err)
	}
	if ack.RequestID == "" {
		return fmt.Errorf("ack on %s missing request_id", topic)
	}

	t.mu.Lock()
	ch, ok := t.waiters[ack.RequestID]
	t.mu.Unlock()
	if !ok {
		return nil
	}

	select {
	case ch <- ack:
	default:
	}
	return nil
}

func (t *Transport) register(requestID string) chan ackMessage {
	ch := make(chan ackMessage, 1)
	t.mu.Lock()
	t.waiters[requestID] = ch
	t.mu.Unlock()
	return ch
}

func (t *Transport) unregister(requestID string) {
	t.mu.Lock()
	delete(t.waiters, requestID)
	t.mu.Unlock()
}
