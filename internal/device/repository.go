package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a device by its unique identifier.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// List retrieves all devices.
	List(ctx context.Context) ([]Device, error)

	// ListByZone retrieves all devices whose primary zone matches.
	ListByZone(ctx context.Context, zoneID string) ([]Device, error)

	// ListByKind retrieves all devices of a specific kind.
	ListByKind(ctx context.Context, kind Kind) ([]Device, error)

	// Create inserts a new device.
	// Returns ErrDeviceExists if a device with the same ID already exists.
	Create(ctx context.Context, device *Device) error

	// Update modifies an existing device.
	// Returns ErrDeviceNotFound if the device does not exist.
	Update(ctx context.Context, device *Device) error

	// Delete removes a device by ID.
	// Returns ErrDeviceNotFound if the device does not exist.
	Delete(ctx context.Context, id string) error

	// UpdateCommittedState updates only the committed state of a device.
	// Called by the Execution Engine on confirmed outcomes.
	UpdateCommittedState(ctx context.Context, id string, state State) error

	// UpdateHealth updates the health status and last seen timestamp.
	UpdateHealth(ctx context.Context, id string, status HealthStatus, lastSeen time.Time) error
}

const deviceColumns = `id, name, slug, kind, zone_id, committed_state,
	state_updated_at, health_status, health_last_seen, created_at, updated_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a device by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	device, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return device, nil
}

// List retrieves all devices ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	return r.queryDevices(ctx, `SELECT `+deviceColumns+` FROM devices ORDER BY name`)
}

// ListByZone retrieves all devices whose primary zone matches.
func (r *SQLiteRepository) ListByZone(ctx context.Context, zoneID string) ([]Device, error) {
	return r.queryDevices(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE zone_id = ? ORDER BY name`, zoneID)
}

// ListByKind retrieves all devices of a specific kind.
func (r *SQLiteRepository) ListByKind(ctx context.Context, kind Kind) ([]Device, error) {
	return r.queryDevices(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE kind = ? ORDER BY name`, string(kind))
}

// Create inserts a new device.
func (r *SQLiteRepository) Create(ctx context.Context, device *Device) error {
	stateJSON, err := marshalState(device.CommittedState)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if device.CreatedAt.IsZero() {
		device.CreatedAt = now
	}
	device.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO devices (id, name, slug, kind, zone_id, committed_state,
			state_updated_at, health_status, health_last_seen, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		device.ID, device.Name, device.Slug, string(device.Kind),
		device.ZoneID, stateJSON,
		formatNullableTime(device.StateUpdatedAt),
		string(healthOrUnknown(device.HealthStatus)),
		formatNullableTime(device.HealthLastSeen),
		device.CreatedAt.Format(time.RFC3339),
		device.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDeviceExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

// Update modifies an existing device.
func (r *SQLiteRepository) Update(ctx context.Context, device *Device) error {
	stateJSON, err := marshalState(device.CommittedState)
	if err != nil {
		return err
	}

	device.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE devices
		SET name = ?, slug = ?, kind = ?, zone_id = ?, committed_state = ?,
			state_updated_at = ?, health_status = ?, health_last_seen = ?, updated_at = ?
		WHERE id = ?`,
		device.Name, device.Slug, string(device.Kind), device.ZoneID, stateJSON,
		formatNullableTime(device.StateUpdatedAt),
		string(healthOrUnknown(device.HealthStatus)),
		formatNullableTime(device.HealthLastSeen),
		device.UpdatedAt.Format(time.RFC3339),
		device.ID,
	)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}
	return requireRowAffected(result)
}

// Delete removes a device by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	return requireRowAffected(result)
}

// UpdateCommittedState updates only the committed state of a device.
func (r *SQLiteRepository) UpdateCommittedState(ctx context.Context, id string, state State) error {
	stateJSON, err := marshalState(state)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx, `
		UPDATE devices SET committed_state = ?, state_updated_at = ?, updated_at = ?
		WHERE id = ?`,
		stateJSON, now, now, id,
	)
	if err != nil {
		return fmt.Errorf("updating committed state: %w", err)
	}
	return requireRowAffected(result)
}

// UpdateHealth updates the health status and last seen timestamp.
func (r *SQLiteRepository) UpdateHealth(ctx context.Context, id string, status HealthStatus, lastSeen time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE devices SET health_status = ?, health_last_seen = ?, updated_at = ?
		WHERE id = ?`,
		string(status),
		lastSeen.UTC().Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating device health: %w", err)
	}
	return requireRowAffected(result)
}

// queryDevices runs a multi-row device query.
func (r *SQLiteRepository) queryDevices(ctx context.Context, query string, args ...any) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// rowScanner abstracts sql.Row and sql.Rows for scanDevice.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDevice scans a single device row.
func scanDevice(row rowScanner) (*Device, error) {
	var (
		d              Device
		kind           string
		zoneID         sql.NullString
		stateJSON      string
		stateUpdatedAt sql.NullString
		healthStatus   string
		healthLastSeen sql.NullString
		createdAt      string
		updatedAt      string
	)

	if err := row.Scan(&d.ID, &d.Name, &d.Slug, &kind, &zoneID, &stateJSON,
		&stateUpdatedAt, &healthStatus, &healthLastSeen, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	d.Kind = Kind(kind)
	d.HealthStatus = HealthStatus(healthStatus)
	if zoneID.Valid {
		d.ZoneID = &zoneID.String
	}

	if err := json.Unmarshal([]byte(stateJSON), &d.CommittedState); err != nil {
		return nil, fmt.Errorf("unmarshalling committed state: %w", err)
	}

	var err error
	if d.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	if d.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, err
	}
	if d.StateUpdatedAt, err = parseNullableTime(stateUpdatedAt); err != nil {
		return nil, err
	}
	if d.HealthLastSeen, err = parseNullableTime(healthLastSeen); err != nil {
		return nil, err
	}

	return &d, nil
}

// marshalState serialises a state map, defaulting to an empty object.
func marshalState(s State) (string, error) {
	if s == nil {
		return "{}", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshalling state: %w", err)
	}
	return string(b), nil
}

// requireRowAffected converts a zero-row update/delete into ErrDeviceNotFound.
func requireRowAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// healthOrUnknown defaults an empty health status.
func healthOrUnknown(s HealthStatus) HealthStatus {
	if s == "" {
		return HealthStatusUnknown
	}
	return s
}

// parseTimestamp parses an RFC3339 timestamp column.
func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

// formatNullableTime formats an optional timestamp column, storing NULL
// for absent values.
func formatNullableTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// parseNullableTime parses an optional RFC3339 timestamp column.
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
