package audit

import "errors"

// Domain errors for the audit package.
var (
	// ErrSinkClosed is returned when recording to a stopped sink.
	ErrSinkClosed = errors.New("audit: sink closed")

	// ErrInvalidFilter is returned for an unusable query filter.
	ErrInvalidFilter = errors.New("audit: invalid filter")
)
