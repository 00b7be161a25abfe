package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/veralux-systems/dispatch-core/internal/device"
)

// defaultStopReason is recorded when the operator does not supply one.
// The operator identity itself is never defaulted.
const defaultStopReason = "emergency stop"

// StopRequest is an inbound emergency stop: any mix of explicit device
// IDs, zone IDs, and a stop-all flag.
type StopRequest struct {
	DeviceIDs []string
	ZoneIDs   []string
	All       bool
	Operator  string
	Reason    string
}

// EpisodeStatus is the aggregate outcome of an emergency stop.
type EpisodeStatus string

const (
	// EpisodeComplete means every targeted device reached applied.
	EpisodeComplete EpisodeStatus = "complete"
	// EpisodePartial means at least one device failed, expired, or
	// timed out while others stopped.
	EpisodePartial EpisodeStatus = "partial"
)

// DeviceStop is the per-device outcome within an episode.
type DeviceStop struct {
	DeviceID  string  `json:"device_id"`
	CommandID string  `json:"command_id"`
	Outcome   Outcome `json:"outcome"`
	ErrorCode string  `json:"error_code,omitempty"`
}

// Episode aggregates one emergency stop request across its resolved
// device set.
type Episode struct {
	ID          string        `json:"id"`
	Operator    string        `json:"operator"`
	Reason      string        `json:"reason"`
	Status      EpisodeStatus `json:"status"`
	Devices     []DeviceStop  `json:"devices"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
}

// Coordinator drives emergency stops: it resolves the target union,
// fans out one synthetic stop command per device at emergency priority
// with override set, and waits a bounded ceiling for the outcomes.
//
// The coordinator never retries a failed stop beyond the executor's
// single-retry policy. A stop that still failed needs operator
// awareness, so the residual failure is surfaced in the episode for
// manual escalation.
type Coordinator struct {
	resolver TargetResolver
	arbiter  *Arbiter
	ceiling  time.Duration
	logger   Logger
}

// NewCoordinator creates an emergency stop coordinator. ceiling bounds
// the overall episode wait; devices unresolved at the ceiling are
// marked failed-timeout rather than blocking the caller.
func NewCoordinator(resolver TargetResolver, arbiter *Arbiter, ceiling time.Duration) *Coordinator {
	return &Coordinator{
		resolver: resolver,
		arbiter:  arbiter,
		ceiling:  ceiling,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the coordinator.
func (c *Coordinator) SetLogger(logger Logger) {
	c.logger = logger
}

// Trigger executes an emergency stop. If target resolution fails (an
// unknown zone or device, or nothing to stop) the whole request fails
// and no episode is created.
func (c *Coordinator) Trigger(ctx context.Context, req StopRequest) (*Episode, error) {
	if req.Operator == "" {
		return nil, ErrMissingOperator
	}

	ids, err := c.resolver.ResolveUnion(ctx, req.DeviceIDs, req.ZoneIDs, req.All)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrEmptyTargets
	}

	reason := req.Reason
	if reason == "" {
		reason = defaultStopReason
	}

	now := time.Now().UTC()
	episode := &Episode{
		ID:        uuid.NewString(),
		Operator:  req.Operator,
		Reason:    reason,
		StartedAt: now,
	}

	c.logger.Warn("emergency stop triggered",
		"episode_id", episode.ID,
		"operator", req.Operator,
		"reason", reason,
		"devices", len(ids))

	subs := make([]Submission, 0, len(ids))
	for _, id := range ids {
		cmd := &Command{
			ID:          NewCommandID(),
			EpisodeID:   episode.ID,
			DeviceID:    id,
			Action:      device.ActionStop,
			Priority:    PriorityEmergency,
			Override:    true,
			Requester:   req.Operator,
			Reason:      reason,
			SubmittedAt: now,
		}
		resolution, done := c.arbiter.Submit(cmd)
		subs = append(subs, Submission{
			CommandID:  cmd.ID,
			DeviceID:   id,
			Resolution: resolution,
			Result:     done,
		})
	}

	episode.Devices = c.collect(ctx, subs)
	episode.CompletedAt = time.Now().UTC()
	episode.Status = episodeStatus(episode.Devices)

	c.logger.Warn("emergency stop completed",
		"episode_id", episode.ID,
		"status", string(episode.Status),
		"elapsed", episode.CompletedAt.Sub(episode.StartedAt).String())
	return episode, nil
}

// collect waits up to the ceiling for every stop outcome; devices still
// unresolved at the ceiling are marked failed-timeout.
func (c *Coordinator) collect(ctx context.Context, subs []Submission) []DeviceStop {
	timer := time.NewTimer(c.ceiling)
	defer timer.Stop()

	out := make([]DeviceStop, len(subs))
	expired := false
	for i := range subs {
		stop := DeviceStop{DeviceID: subs[i].DeviceID, CommandID: subs[i].CommandID}

		if !expired {
			select {
			case res := <-subs[i].Result:
				stop.Outcome = res.Outcome
				stop.ErrorCode = res.ErrorCode
				out[i] = stop
				continue
			case <-timer.C:
				expired = true
			case <-ctx.Done():
				expired = true
			}
		}

		select {
		case res := <-subs[i].Result:
			stop.Outcome = res.Outcome
			stop.ErrorCode = res.ErrorCode
		default:
			stop.Outcome = OutcomeFailedTimeout
			stop.ErrorCode = CodeTimeout
			c.logger.Error("device unresolved at episode ceiling",
				"device_id", stop.DeviceID, "command_id", stop.CommandID)
		}
		out[i] = stop
	}
	return out
}

// episodeStatus derives the aggregate status: complete only when every
// device applied its stop.
func episodeStatus(devices []DeviceStop) EpisodeStatus {
	for _, d := range devices {
		if d.Outcome != OutcomeApplied {
			return EpisodePartial
		}
	}
	return EpisodeComplete
}
