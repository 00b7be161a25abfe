package dispatch

import "errors"

// Domain errors for the dispatch package.
var (
	// ErrInvalidPriority is returned for an unrecognised priority name or level.
	ErrInvalidPriority = errors.New("dispatch: invalid priority")

	// ErrMissingRequester is returned when a command carries no requester identity.
	ErrMissingRequester = errors.New("dispatch: requester identity required")

	// ErrMissingReason is returned when an override or emergency command
	// carries no reason.
	ErrMissingReason = errors.New("dispatch: reason required for override and emergency commands")

	// ErrMissingOperator is returned when an emergency stop request carries
	// no operator identity. Never defaulted.
	ErrMissingOperator = errors.New("dispatch: operator identity required")

	// ErrPriorityConflict is returned when a command loses arbitration and
	// cannot be queued.
	ErrPriorityConflict = errors.New("dispatch: priority conflict")

	// ErrExpired is returned when a duration-bounded command's deadline
	// passes before it activates.
	ErrExpired = errors.New("dispatch: command expired before activation")

	// ErrSuperseded is returned when a completion arrives after a newer
	// command has already committed state for the same device.
	ErrSuperseded = errors.New("dispatch: superseded by newer command")

	// ErrEmptyTargets is returned when target resolution yields no devices.
	ErrEmptyTargets = errors.New("dispatch: no target devices resolved")

	// ErrTransportTransient marks a connectivity-class transport failure,
	// eligible for the single automatic retry.
	ErrTransportTransient = errors.New("dispatch: transient transport failure")

	// ErrTransportPermanent marks a device-rejected transport failure.
	// Never retried.
	ErrTransportPermanent = errors.New("dispatch: permanent transport failure")
)
