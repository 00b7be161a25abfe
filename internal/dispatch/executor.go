package dispatch

import (
	"context"
	"time"

	"github.com/veralux-systems/dispatch-core/internal/device"
)

// Executor turns an arbitrated command into a transport call and a
// typed outcome. It owns the retry policy, the duration countdown, and
// the only mutation paths for committed state and device health.
type Executor struct {
	devices      DeviceDirectory
	transport    Transport
	retryBackoff time.Duration
	ackTimeout   time.Duration
	logger       Logger
}

// NewExecutor creates an execution engine.
func NewExecutor(devices DeviceDirectory, transport Transport, retryBackoff, ackTimeout time.Duration) *Executor {
	return &Executor{
		devices:      devices,
		transport:    transport,
		retryBackoff: retryBackoff,
		ackTimeout:   ackTimeout,
		logger:       noopLogger{},
	}
}

// SetLogger sets the logger for the executor.
func (e *Executor) SetLogger(logger Logger) {
	e.logger = logger
}

// Execute drives cmd to a terminal outcome. commit is the arbiter's
// sequence-gated committed-state write; report delivers the command's
// one Result and may be invoked before Execute returns, since a
// duration-bounded command reports applied at the moment its action
// lands but holds the slot until the countdown expires.
//
// The countdown starts when the command becomes active, not when the
// transport call completes.
func (e *Executor) Execute(ctx context.Context, cmd *Command, commit func(device.State) error, report func(Result)) {
	var expiry *time.Timer
	if cmd.Duration > 0 {
		expiry = time.NewTimer(cmd.Duration)
		defer expiry.Stop()
	}

	dev, err := e.devices.GetDevice(ctx, cmd.DeviceID)
	if err != nil {
		report(Result{Outcome: OutcomeFailed, ErrorCode: CodeUnknownDevice, Err: err})
		return
	}
	prior := dev.CommittedState
	desired := projectState(prior, cmd.Action, cmd.Params)

	if err := e.send(ctx, cmd.DeviceID, cmd.Action, cmd.Params); err != nil {
		if ctx.Err() != nil {
			report(Result{Outcome: OutcomePreempted, Err: ctx.Err()})
			return
		}
		if IsTransient(err) {
			e.setHealth(cmd.DeviceID, device.HealthStatusOffline)
		}
		e.logger.Warn("transport send failed",
			"device_id", cmd.DeviceID, "command_id", cmd.ID, "action", cmd.Action, "error", err)
		report(Result{Outcome: OutcomeFailed, ErrorCode: CodeFailed, Err: err})
		return
	}
	e.setHealth(cmd.DeviceID, device.HealthStatusOnline)

	if err := commit(desired); err != nil {
		// A newer command already committed for this device; the stale
		// confirmation is discarded and the command stays preempted.
		report(Result{Outcome: OutcomePreempted, Err: err})
		return
	}
	if ctx.Err() != nil {
		report(Result{Outcome: OutcomePreempted, Err: ctx.Err()})
		return
	}
	report(Result{Outcome: OutcomeApplied})

	if expiry == nil {
		return
	}

	// Hold the slot for the bounded window, then revert the device to
	// its pre-command committed state. Preemption during the window
	// hands state authority to the new holder, so no revert is issued.
	select {
	case <-ctx.Done():
		return
	case <-expiry.C:
	}

	e.logger.Debug("duration expired, reverting",
		"device_id", cmd.DeviceID, "command_id", cmd.ID)
	rctx, cancel := context.WithTimeout(context.Background(), e.ackTimeout+e.retryBackoff+e.ackTimeout)
	defer cancel()
	if err := e.send(rctx, cmd.DeviceID, device.ActionRevert, map[string]any{"state": prior}); err != nil {
		e.logger.Error("revert after expiry failed",
			"device_id", cmd.DeviceID, "command_id", cmd.ID, "error", err)
		return
	}
	if err := commit(prior); err != nil {
		e.logger.Debug("revert commit superseded",
			"device_id", cmd.DeviceID, "command_id", cmd.ID)
	}
}

// send delivers one action, retrying once after a fixed backoff on a
// transient failure. Permanent failures are never retried.
func (e *Executor) send(ctx context.Context, deviceID, action string, params map[string]any) error {
	err := e.sendOnce(ctx, deviceID, action, params)
	if err == nil || !IsTransient(err) {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(e.retryBackoff):
	}
	return e.sendOnce(ctx, deviceID, action, params)
}

func (e *Executor) sendOnce(ctx context.Context, deviceID, action string, params map[string]any) error {
	sctx, cancel := context.WithTimeout(ctx, e.ackTimeout)
	defer cancel()
	return e.transport.Send(sctx, deviceID, action, params)
}

func (e *Executor) setHealth(deviceID string, status device.HealthStatus) {
	if err := e.devices.SetDeviceHealth(context.Background(), deviceID, status); err != nil {
		e.logger.Debug("health update failed", "device_id", deviceID, "error", err)
	}
}

// projectState derives the committed state a successful action leaves
// the device in, starting from the prior committed state.
func projectState(prior device.State, action string, params map[string]any) device.State {
	next := make(device.State, len(prior)+1)
	for k, v := range prior {
		next[k] = v
	}

	switch action {
	case device.ActionOn:
		next["on"] = true
	case device.ActionOff:
		next["on"] = false
	case device.ActionSetLevel:
		next["on"] = true
		next["level"] = params["level"]
	case device.ActionSetSetpoint:
		next["setpoint"] = params["setpoint"]
	case device.ActionSetMode:
		next["mode"] = params["mode"]
	case device.ActionOpen:
		next["open"] = true
	case device.ActionClose:
		next["open"] = false
	case device.ActionRun:
		next["running"] = true
	case device.ActionStop:
		// De-energise whatever actuation keys the device carries.
		deenergised := false
		for _, key := range []string{"on", "open", "running"} {
			if _, ok := next[key]; ok {
				next[key] = false
				deenergised = true
			}
		}
		if !deenergised {
			next["on"] = false
		}
	case device.ActionRead:
		// No state change.
	case device.ActionRevert:
		if state, ok := params["state"].(device.State); ok {
			return projectState(state, device.ActionRead, nil)
		}
		if state, ok := params["state"].(map[string]any); ok {
			return projectState(device.State(state), device.ActionRead, nil)
		}
	}
	return next
}
