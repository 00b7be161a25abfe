package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/veralux-systems/dispatch-core/internal/device"
)

// Priority orders commands for arbitration. Higher values win.
//
// Non-override commands need a priority gap of at least two levels to
// preempt a running command; adjacent priorities queue instead. An
// override-flagged command preempts any strictly lower priority.
type Priority int

const (
	PriorityRoutine Priority = iota
	PriorityScheduled
	PriorityOperator
	PriorityOverride
	PriorityEmergency
)

// String returns the wire name of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityRoutine:
		return "routine"
	case PriorityScheduled:
		return "scheduled"
	case PriorityOperator:
		return "operator"
	case PriorityOverride:
		return "override"
	case PriorityEmergency:
		return "emergency"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// Valid reports whether the priority is a known level.
func (p Priority) Valid() bool {
	return p >= PriorityRoutine && p <= PriorityEmergency
}

// ParsePriority converts a wire name into a Priority.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "routine":
		return PriorityRoutine, nil
	case "scheduled":
		return PriorityScheduled, nil
	case "operator":
		return PriorityOperator, nil
	case "override":
		return PriorityOverride, nil
	case "emergency":
		return PriorityEmergency, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidPriority, s)
	}
}

// Command is one arbitrated unit of work against a single device.
// Immutable once submitted; the arbiter and executor only read it.
type Command struct {
	ID          string
	EpisodeID   string // set for emergency stop synthetic commands
	DeviceID    string
	Action      string
	Params      map[string]any
	Priority    Priority
	Override    bool
	Duration    time.Duration // 0 means no auto-revert
	Requester   string
	Reason      string
	SubmittedAt time.Time
}

// NewCommandID generates a unique command identifier.
func NewCommandID() string {
	return uuid.NewString()
}

// Resolution is the arbitration decision for a submitted command.
type Resolution string

const (
	ResolutionAccepted Resolution = "accepted"
	ResolutionQueued   Resolution = "queued"
	ResolutionRejected Resolution = "rejected"
)

// Outcome is the terminal state of a command.
type Outcome string

const (
	OutcomeApplied       Outcome = "applied"
	OutcomeFailed        Outcome = "failed"
	OutcomePreempted     Outcome = "preempted"
	OutcomeExpired       Outcome = "expired"
	OutcomeRejected      Outcome = "rejected"
	OutcomeFailedTimeout Outcome = "failed-timeout"
)

// Stable error codes surfaced to callers alongside rejections and
// terminal failures.
const (
	CodeUnknownDevice     = "unknown_device"
	CodeUnknownZone       = "unknown_zone"
	CodeInvalidParameters = "invalid_parameters"
	CodePriorityConflict  = "priority_conflict"
	CodeExpired           = "expired"
	CodeFailed            = "failed"
	CodeTimeout           = "timeout"
	CodeAuditLoss         = "audit_loss"
)

// Result is the terminal report for one command on one device.
type Result struct {
	CommandID   string
	DeviceID    string
	Outcome     Outcome
	ErrorCode   string
	Err         error
	CompletedAt time.Time
}

// Event is the audit-facing snapshot of a command transition. The
// arbiter emits one event when a command is resolved and one when it
// reaches a terminal outcome.
type Event struct {
	CommandID   string
	EpisodeID   string
	DeviceID    string
	Action      string
	Priority    Priority
	Override    bool
	Requester   string
	Reason      string
	Resolution  Resolution
	Outcome     Outcome
	ErrorCode   string
	SubmittedAt time.Time
	DecidedAt   time.Time
	CompletedAt time.Time
}

// Recorder receives audit events. Implementations must never block the
// dispatch hot path.
type Recorder interface {
	Record(e Event)
}

// noopRecorder discards all events.
type noopRecorder struct{}

func (noopRecorder) Record(Event) {}

// Logger defines the logging interface used by the dispatch components.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// DeviceDirectory is the view of the device registry the dispatch core
// needs: kind lookup for validation, committed state for snapshots and
// reverts, and the two mutation paths owned by the execution engine.
type DeviceDirectory interface {
	GetDevice(ctx context.Context, id string) (*device.Device, error)
	Kind(ctx context.Context, id string) (device.Kind, error)
	SetCommittedState(ctx context.Context, id string, state device.State) error
	SetDeviceHealth(ctx context.Context, id string, status device.HealthStatus) error
}
