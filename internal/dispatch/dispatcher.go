package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/veralux-systems/dispatch-core/internal/device"
)

// TargetResolver expands command targets into concrete device ID sets.
type TargetResolver interface {
	ResolveTargets(ctx context.Context, target device.Target) ([]string, error)
	ResolveUnion(ctx context.Context, deviceIDs, zoneIDs []string, all bool) ([]string, error)
}

// Request is an inbound command submission before target resolution.
type Request struct {
	Target    device.Target
	Action    string
	Params    map[string]any
	Priority  Priority
	Override  bool
	Duration  time.Duration
	Requester string
	Reason    string
}

// Submission is the per-device acceptance of a request: one command per
// resolved target device, each with its own result channel.
type Submission struct {
	CommandID  string
	DeviceID   string
	Resolution Resolution
	Result     <-chan Result
}

// DeviceResult is the per-device report of a waited-on submission.
// Pending means the command had not reached a terminal outcome when the
// wait window closed; the command keeps running and its outcome lands
// in the audit log.
type DeviceResult struct {
	DeviceID   string     `json:"device_id"`
	CommandID  string     `json:"command_id"`
	Resolution Resolution `json:"resolution"`
	Outcome    Outcome    `json:"outcome,omitempty"`
	ErrorCode  string     `json:"error_code,omitempty"`
	Pending    bool       `json:"pending,omitempty"`
}

// Dispatcher is the inbound face of the dispatch core. It validates a
// request, resolves its targets, fans one command per device into the
// arbiter, and optionally waits a bounded time for the outcomes.
type Dispatcher struct {
	resolver   TargetResolver
	devices    DeviceDirectory
	arbiter    *Arbiter
	resultWait time.Duration
	logger     Logger
}

// NewDispatcher creates a dispatcher. resultWait bounds how long
// SubmitAndWait blocks for outcomes before reporting them pending.
func NewDispatcher(resolver TargetResolver, devices DeviceDirectory, arbiter *Arbiter, resultWait time.Duration) *Dispatcher {
	return &Dispatcher{
		resolver:   resolver,
		devices:    devices,
		arbiter:    arbiter,
		resultWait: resultWait,
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// Submit validates and resolves a request, then hands one command per
// target device to the arbiter. Validation and resolution failures are
// returned synchronously before any device is touched; after that every
// command resolves to a terminal Result on its channel.
func (d *Dispatcher) Submit(ctx context.Context, req Request) ([]Submission, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	ids, err := d.resolver.ResolveTargets(ctx, req.Target)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrEmptyTargets
	}

	// Every resolved device must accept the action before any command
	// is admitted; a zone containing one incompatible device rejects
	// the whole request rather than partially actuating.
	for _, id := range ids {
		kind, err := d.devices.Kind(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("resolving kind of %q: %w", id, err)
		}
		if err := device.ValidateAction(kind, req.Action, req.Params); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	subs := make([]Submission, 0, len(ids))
	for _, id := range ids {
		cmd := &Command{
			ID:          NewCommandID(),
			DeviceID:    id,
			Action:      req.Action,
			Params:      req.Params,
			Priority:    req.Priority,
			Override:    req.Override,
			Duration:    req.Duration,
			Requester:   req.Requester,
			Reason:      req.Reason,
			SubmittedAt: now,
		}
		resolution, done := d.arbiter.Submit(cmd)
		subs = append(subs, Submission{
			CommandID:  cmd.ID,
			DeviceID:   id,
			Resolution: resolution,
			Result:     done,
		})
	}

	d.logger.Info("request submitted",
		"action", req.Action,
		"priority", req.Priority.String(),
		"requester", req.Requester,
		"devices", len(subs))
	return subs, nil
}

// SubmitAndWait submits a request and waits up to the configured result
// window for per-device outcomes. Commands still running when the
// window closes are reported pending, not cancelled.
func (d *Dispatcher) SubmitAndWait(ctx context.Context, req Request) ([]DeviceResult, error) {
	subs, err := d.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	return collectResults(ctx, subs, d.resultWait), nil
}

// validateRequest applies the synchronous request checks: requester
// identity always, a reason for override and emergency work, and a
// known priority level.
func validateRequest(req Request) error {
	if req.Requester == "" {
		return ErrMissingRequester
	}
	if !req.Priority.Valid() {
		return ErrInvalidPriority
	}
	if (req.Override || req.Priority >= PriorityOverride) && req.Reason == "" {
		return ErrMissingReason
	}
	if req.Target.IsZero() {
		return ErrEmptyTargets
	}
	return nil
}

// collectResults gathers terminal results from the submissions until
// the wait window or ctx closes, marking the rest pending.
func collectResults(ctx context.Context, subs []Submission, wait time.Duration) []DeviceResult {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	out := make([]DeviceResult, len(subs))
	expired := false
	for i := range subs {
		dr := DeviceResult{
			DeviceID:   subs[i].DeviceID,
			CommandID:  subs[i].CommandID,
			Resolution: subs[i].Resolution,
		}

		if !expired {
			select {
			case res := <-subs[i].Result:
				dr.Outcome = res.Outcome
				dr.ErrorCode = res.ErrorCode
				out[i] = dr
				continue
			case <-timer.C:
				expired = true
			case <-ctx.Done():
				expired = true
			}
		}

		// Window closed: take a result only if it is already there.
		select {
		case res := <-subs[i].Result:
			dr.Outcome = res.Outcome
			dr.ErrorCode = res.ErrorCode
		default:
			dr.Pending = true
		}
		out[i] = dr
	}
	return out
}

// MultiRecorder fans audit events out to several recorders.
type MultiRecorder []Recorder

// Record forwards the event to every recorder in order.
func (m MultiRecorder) Record(e Event) {
	for _, r := range m {
		r.Record(e)
	}
}
