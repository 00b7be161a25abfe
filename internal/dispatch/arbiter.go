package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/veralux-systems/dispatch-core/internal/device"
)

// Arbiter serialises command execution per device. Each device has a
// lane holding at most one active slot and one pending command; lanes
// are independent, so unrelated devices never contend.
//
// Preemption is cooperative: the preempted command's context is
// cancelled and the slot reassigned immediately. If the old transport
// call cannot be cancelled and eventually returns, its committed-state
// write is reconciled through a per-lane commit sequence so a newer
// completion always wins.
type Arbiter struct {
	exec     *Executor
	devices  DeviceDirectory
	recorder Recorder
	logger   Logger

	mu    sync.Mutex
	lanes map[string]*lane
}

// lane is the per-device arbitration state. All fields are guarded by mu.
type lane struct {
	mu        sync.Mutex
	deviceID  string
	active    *holder
	pending   *pendingEntry
	nextSeq   uint64
	commitSeq uint64
}

// holder is the command currently owning a lane's active slot.
type holder struct {
	cmd        *Command
	seq        uint64
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan Result
	resolution Resolution
	decidedAt  time.Time
	reported   sync.Once
}

// pendingEntry is a queued command waiting for the active slot.
type pendingEntry struct {
	cmd       *Command
	done      chan Result
	decidedAt time.Time
	expiry    *time.Timer
}

func (p *pendingEntry) stopExpiry() {
	if p.expiry != nil {
		p.expiry.Stop()
	}
}

// NewArbiter creates a command arbiter backed by the given executor.
func NewArbiter(exec *Executor, devices DeviceDirectory) *Arbiter {
	return &Arbiter{
		exec:     exec,
		devices:  devices,
		recorder: noopRecorder{},
		logger:   noopLogger{},
		lanes:    make(map[string]*lane),
	}
}

// SetRecorder sets the audit recorder for the arbiter.
func (a *Arbiter) SetRecorder(r Recorder) {
	a.recorder = r
}

// SetLogger sets the logger for the arbiter.
func (a *Arbiter) SetLogger(logger Logger) {
	a.logger = logger
}

// Submit hands a command to its device's lane. The returned channel is
// buffered and delivers exactly one terminal Result; the resolution
// tells the caller whether the command started, queued, or was rejected
// outright.
func (a *Arbiter) Submit(cmd *Command) (Resolution, <-chan Result) {
	ln := a.lane(cmd.DeviceID)
	done := make(chan Result, 1)
	now := time.Now().UTC()

	ln.mu.Lock()

	// Free slot: the command wins immediately.
	if ln.active == nil {
		h := a.activateLocked(ln, cmd, done, now)
		ln.mu.Unlock()
		a.recordResolution(cmd, ResolutionAccepted, now)
		go a.run(ln, h)
		return ResolutionAccepted, done
	}

	// Occupied slot: preempt if the newcomer outranks the holder.
	if preempts(cmd, ln.active.cmd) {
		old := ln.active
		old.cancel()
		ln.active = nil
		h := a.activateLocked(ln, cmd, done, now)
		ln.mu.Unlock()

		a.logger.Info("command preempted",
			"device_id", cmd.DeviceID,
			"preempted", old.cmd.ID,
			"by", cmd.ID,
			"priority", cmd.Priority.String())
		a.recordResolution(cmd, ResolutionAccepted, now)
		go a.run(ln, h)
		return ResolutionAccepted, done
	}

	// Queue behind the active command if the backlog slot is free.
	if ln.pending == nil {
		ln.pending = a.enqueueLocked(ln, cmd, done, now)
		ln.mu.Unlock()
		a.recordResolution(cmd, ResolutionQueued, now)
		return ResolutionQueued, done
	}

	// Backlog occupied: a strictly higher-priority newcomer evicts the
	// pending command; on ties the first-submitted command keeps the
	// slot and the newcomer is rejected.
	if cmd.Priority > ln.pending.cmd.Priority {
		evicted := ln.pending
		evicted.stopExpiry()
		ln.pending = a.enqueueLocked(ln, cmd, done, now)
		ln.mu.Unlock()

		a.deliver(evicted.cmd, evicted.done, ResolutionQueued, Result{
			Outcome:   OutcomeRejected,
			ErrorCode: CodePriorityConflict,
			Err:       ErrPriorityConflict,
		}, evicted.decidedAt)
		a.recordResolution(cmd, ResolutionQueued, now)
		return ResolutionQueued, done
	}

	ln.mu.Unlock()
	a.deliver(cmd, done, ResolutionRejected, Result{
		Outcome:   OutcomeRejected,
		ErrorCode: CodePriorityConflict,
		Err:       ErrPriorityConflict,
	}, now)
	return ResolutionRejected, done
}

// Stats returns a snapshot of arbiter occupancy for monitoring.
type Stats struct {
	ActiveSlots     int
	PendingCommands int
}

// GetStats returns current arbiter occupancy.
func (a *Arbiter) GetStats() Stats {
	a.mu.Lock()
	lanes := make([]*lane, 0, len(a.lanes))
	for _, ln := range a.lanes {
		lanes = append(lanes, ln)
	}
	a.mu.Unlock()

	var stats Stats
	for _, ln := range lanes {
		ln.mu.Lock()
		if ln.active != nil {
			stats.ActiveSlots++
		}
		if ln.pending != nil {
			stats.PendingCommands++
		}
		ln.mu.Unlock()
	}
	return stats
}

// lane returns the per-device lane, creating it on first use.
func (a *Arbiter) lane(deviceID string) *lane {
	a.mu.Lock()
	defer a.mu.Unlock()

	ln, ok := a.lanes[deviceID]
	if !ok {
		ln = &lane{deviceID: deviceID}
		a.lanes[deviceID] = ln
	}
	return ln
}

// activateLocked installs cmd as the lane's active slot holder.
// Caller must hold ln.mu and have verified the slot is free.
func (a *Arbiter) activateLocked(ln *lane, cmd *Command, done chan Result, decidedAt time.Time) *holder {
	if ln.active != nil {
		// Two active slots on one device is a programming defect,
		// not an operational error.
		panic("dispatch: arbitration slot already held for device " + ln.deviceID)
	}

	ln.nextSeq++
	ctx, cancel := context.WithCancel(context.Background())
	h := &holder{
		cmd:        cmd,
		seq:        ln.nextSeq,
		ctx:        ctx,
		cancel:     cancel,
		done:       done,
		resolution: ResolutionAccepted,
		decidedAt:  decidedAt,
	}
	ln.active = h
	return h
}

// enqueueLocked installs cmd in the lane's pending slot, arming the
// activation-deadline timer for duration-bounded commands.
// Caller must hold ln.mu.
func (a *Arbiter) enqueueLocked(ln *lane, cmd *Command, done chan Result, decidedAt time.Time) *pendingEntry {
	entry := &pendingEntry{cmd: cmd, done: done, decidedAt: decidedAt}
	if cmd.Duration > 0 {
		deadline := cmd.SubmittedAt.Add(cmd.Duration)
		entry.expiry = time.AfterFunc(time.Until(deadline), func() {
			a.expirePending(ln, cmd.ID)
		})
	}
	return entry
}

// expirePending removes a still-pending duration-bounded command whose
// deadline has passed. It never executes; the outcome is expired.
func (a *Arbiter) expirePending(ln *lane, commandID string) {
	ln.mu.Lock()
	if ln.pending == nil || ln.pending.cmd.ID != commandID {
		ln.mu.Unlock()
		return
	}
	entry := ln.pending
	ln.pending = nil
	ln.mu.Unlock()

	a.logger.Warn("pending command expired before activation",
		"device_id", entry.cmd.DeviceID, "command_id", entry.cmd.ID)
	a.deliver(entry.cmd, entry.done, ResolutionQueued, Result{
		Outcome:   OutcomeExpired,
		ErrorCode: CodeExpired,
		Err:       ErrExpired,
	}, entry.decidedAt)
}

// run drives an active slot holder through the executor, then releases
// the slot and promotes any pending command.
func (a *Arbiter) run(ln *lane, h *holder) {
	report := func(res Result) {
		h.reported.Do(func() {
			res.CommandID = h.cmd.ID
			res.DeviceID = h.cmd.DeviceID
			if res.CompletedAt.IsZero() {
				res.CompletedAt = time.Now().UTC()
			}
			h.done <- res
			a.recordOutcome(h.cmd, h.resolution, res, h.decidedAt)
		})
	}
	commit := func(state device.State) error {
		return a.commit(ln, h, state)
	}

	a.exec.Execute(h.ctx, h.cmd, commit, report)
	h.cancel()
	a.release(ln, h)
}

// commit records a completed command's resulting device state, gated by
// the lane's commit sequence so a stale completion cannot overwrite the
// state written by the command that superseded it.
func (a *Arbiter) commit(ln *lane, h *holder, state device.State) error {
	ln.mu.Lock()
	defer ln.mu.Unlock()

	if h.seq < ln.commitSeq {
		return ErrSuperseded
	}
	if err := a.devices.SetCommittedState(context.Background(), h.cmd.DeviceID, state); err != nil {
		return err
	}
	ln.commitSeq = h.seq
	return nil
}

// release frees the active slot held by h and promotes the pending
// command, unless preemption already reassigned the slot.
func (a *Arbiter) release(ln *lane, h *holder) {
	ln.mu.Lock()
	if ln.active != h {
		ln.mu.Unlock()
		return
	}
	ln.active = nil

	next := ln.pending
	ln.pending = nil

	var promoted *holder
	var expired *pendingEntry
	if next != nil {
		next.stopExpiry()
		if next.cmd.Duration > 0 && time.Now().After(next.cmd.SubmittedAt.Add(next.cmd.Duration)) {
			expired = next
		} else {
			promoted = a.activateLocked(ln, next.cmd, next.done, next.decidedAt)
			promoted.resolution = ResolutionQueued
		}
	}
	ln.mu.Unlock()

	if expired != nil {
		a.deliver(expired.cmd, expired.done, ResolutionQueued, Result{
			Outcome:   OutcomeExpired,
			ErrorCode: CodeExpired,
			Err:       ErrExpired,
		}, expired.decidedAt)
	}
	if promoted != nil {
		a.logger.Debug("pending command promoted",
			"device_id", promoted.cmd.DeviceID, "command_id", promoted.cmd.ID)
		go a.run(ln, promoted)
	}
}

// deliver reports a terminal result for a command that never reached
// the executor, recording both the resolution and the outcome.
func (a *Arbiter) deliver(cmd *Command, done chan Result, resolution Resolution, res Result, decidedAt time.Time) {
	res.CommandID = cmd.ID
	res.DeviceID = cmd.DeviceID
	res.CompletedAt = time.Now().UTC()
	done <- res
	a.recordOutcome(cmd, resolution, res, decidedAt)
}

// recordResolution emits the arbitration-decision audit event.
func (a *Arbiter) recordResolution(cmd *Command, resolution Resolution, decidedAt time.Time) {
	a.recorder.Record(Event{
		CommandID:   cmd.ID,
		EpisodeID:   cmd.EpisodeID,
		DeviceID:    cmd.DeviceID,
		Action:      cmd.Action,
		Priority:    cmd.Priority,
		Override:    cmd.Override,
		Requester:   cmd.Requester,
		Reason:      cmd.Reason,
		Resolution:  resolution,
		SubmittedAt: cmd.SubmittedAt,
		DecidedAt:   decidedAt,
	})
}

// recordOutcome emits the terminal-outcome audit event.
func (a *Arbiter) recordOutcome(cmd *Command, resolution Resolution, res Result, decidedAt time.Time) {
	a.recorder.Record(Event{
		CommandID:   cmd.ID,
		EpisodeID:   cmd.EpisodeID,
		DeviceID:    cmd.DeviceID,
		Action:      cmd.Action,
		Priority:    cmd.Priority,
		Override:    cmd.Override,
		Requester:   cmd.Requester,
		Reason:      cmd.Reason,
		Resolution:  resolution,
		Outcome:     res.Outcome,
		ErrorCode:   res.ErrorCode,
		SubmittedAt: cmd.SubmittedAt,
		DecidedAt:   decidedAt,
		CompletedAt: res.CompletedAt,
	})
}

// preempts reports whether an incoming command displaces the current
// slot holder. Override-flagged commands preempt any strictly lower
// priority; plain commands need a gap of at least two levels, so an
// adjacent-priority command queues instead of interrupting.
func preempts(incoming, current *Command) bool {
	if incoming.Override {
		return incoming.Priority > current.Priority
	}
	return incoming.Priority >= current.Priority+2
}
