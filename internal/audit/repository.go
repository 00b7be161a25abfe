package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for audit persistence.
type Repository interface {
	// Append inserts an entry. The log is append-only; there is no
	// update or delete path.
	Append(ctx context.Context, entry *Entry) error

	// List retrieves entries matching the filter, newest first.
	List(ctx context.Context, filter Filter) ([]Entry, error)
}

const entryColumns = `id, command_id, episode_id, device_id, action, priority, override,
	requester, reason, arbitration, outcome, error_code,
	submitted_at, decided_at, completed_at, details, created_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed audit repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Append inserts an entry.
func (r *SQLiteRepository) Append(ctx context.Context, entry *Entry) error {
	detailsJSON, err := marshalDetails(entry.Details)
	if err != nil {
		return err
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO audit_entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.CommandID, nullable(entry.EpisodeID), entry.DeviceID,
		entry.Action, entry.Priority, boolToInt(entry.Override),
		entry.Requester, nullable(entry.Reason), entry.Arbitration,
		nullable(entry.Outcome), nullable(entry.ErrorCode),
		entry.SubmittedAt.Format(time.RFC3339Nano),
		formatNullableTime(entry.DecidedAt),
		formatNullableTime(entry.CompletedAt),
		detailsJSON,
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("appending audit entry: %w", err)
	}
	return nil
}

// List retrieves entries matching the filter, newest first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM audit_entries`
	var conds []string
	var args []any

	if filter.DeviceID != "" {
		conds = append(conds, "device_id = ?")
		args = append(args, filter.DeviceID)
	}
	if filter.CommandID != "" {
		conds = append(conds, "command_id = ?")
		args = append(args, filter.CommandID)
	}
	if filter.EpisodeID != "" {
		conds = append(conds, "episode_id = ?")
		args = append(args, filter.EpisodeID)
	}
	if !filter.From.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, filter.From.UTC().Format(time.RFC3339Nano))
	}
	if !filter.To.IsZero() {
		conds = append(conds, "created_at <= ?")
		args = append(args, filter.To.UTC().Format(time.RFC3339Nano))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}
	return entries, nil
}

func scanEntry(rows *sql.Rows) (*Entry, error) {
	var (
		e           Entry
		episodeID   sql.NullString
		reason      sql.NullString
		outcome     sql.NullString
		errorCode   sql.NullString
		override    int
		submittedAt string
		decidedAt   sql.NullString
		completedAt sql.NullString
		detailsJSON sql.NullString
		createdAt   string
	)

	if err := rows.Scan(&e.ID, &e.CommandID, &episodeID, &e.DeviceID,
		&e.Action, &e.Priority, &override,
		&e.Requester, &reason, &e.Arbitration, &outcome, &errorCode,
		&submittedAt, &decidedAt, &completedAt, &detailsJSON, &createdAt); err != nil {
		return nil, err
	}

	e.EpisodeID = episodeID.String
	e.Reason = reason.String
	e.Outcome = outcome.String
	e.ErrorCode = errorCode.String
	e.Override = override != 0

	var err error
	if e.SubmittedAt, err = parseTimestamp(submittedAt); err != nil {
		return nil, err
	}
	if e.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	if e.DecidedAt, err = parseNullableTime(decidedAt); err != nil {
		return nil, err
	}
	if e.CompletedAt, err = parseNullableTime(completedAt); err != nil {
		return nil, err
	}

	if detailsJSON.Valid && detailsJSON.String != "" {
		if err := json.Unmarshal([]byte(detailsJSON.String), &e.Details); err != nil {
			return nil, fmt.Errorf("unmarshalling details: %w", err)
		}
	}
	return &e, nil
}

func marshalDetails(details map[string]any) (any, error) {
	if details == nil {
		return nil, nil
	}
	b, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("marshalling details: %w", err)
	}
	return string(b), nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatNullableTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullableTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTimestamp(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
