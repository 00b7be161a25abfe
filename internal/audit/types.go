package audit

import (
	"time"

	"github.com/google/uuid"
)

// Entry is one immutable audit record: a command snapshot with its
// arbitration decision and, on completion rows, its terminal outcome.
// Every command produces one row when it is resolved and one when it
// reaches a terminal state; emergency stop commands also carry their
// episode ID.
//
// Entries are append-only. The dispatcher never mutates or deletes
// them; retention is an external policy.
type Entry struct {
	ID          string         `json:"id"`
	CommandID   string         `json:"command_id"`
	EpisodeID   string         `json:"episode_id,omitempty"`
	DeviceID    string         `json:"device_id"`
	Action      string         `json:"action"`
	Priority    string         `json:"priority"`
	Override    bool           `json:"override"`
	Requester   string         `json:"requester"`
	Reason      string         `json:"reason,omitempty"`
	Arbitration string         `json:"arbitration"`
	Outcome     string         `json:"outcome,omitempty"`
	ErrorCode   string         `json:"error_code,omitempty"`
	SubmittedAt time.Time      `json:"submitted_at"`
	DecidedAt   *time.Time     `json:"decided_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// NewEntryID generates a unique audit entry identifier.
func NewEntryID() string {
	return uuid.NewString()
}

// Filter selects audit entries for queries. Zero fields match all.
type Filter struct {
	DeviceID  string
	CommandID string
	EpisodeID string
	From      time.Time
	To        time.Time
	Limit     int
}

// Logger defines the logging interface used by the audit sink.
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
