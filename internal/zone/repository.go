package zone

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for zone persistence operations.
type Repository interface {
	// GetByID retrieves a zone with its ordered membership.
	// Returns ErrZoneNotFound if the zone does not exist.
	GetByID(ctx context.Context, id string) (*Zone, error)

	// List retrieves all zones with their memberships.
	List(ctx context.Context) ([]Zone, error)

	// Create inserts a new zone and its membership rows.
	// Returns ErrZoneExists if a zone with the same ID already exists.
	Create(ctx context.Context, zone *Zone) error

	// Update modifies an existing zone, replacing its membership.
	// Returns ErrZoneNotFound if the zone does not exist.
	Update(ctx context.Context, zone *Zone) error

	// Delete removes a zone and its membership rows.
	// Returns ErrZoneNotFound if the zone does not exist.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
// Membership lives in zone_members with an explicit position column so
// the commissioning order survives round trips.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a zone with its ordered membership.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Zone, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, slug, created_at, updated_at FROM zones WHERE id = ?`, id)

	zone, err := scanZone(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrZoneNotFound
		}
		return nil, fmt.Errorf("querying zone by id: %w", err)
	}

	zone.MemberIDs, err = r.memberIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	return zone, nil
}

// List retrieves all zones with their memberships, ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Zone, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, slug, created_at, updated_at FROM zones ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying zones: %w", err)
	}
	defer rows.Close()

	var zones []Zone
	for rows.Next() {
		zone, err := scanZone(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning zone: %w", err)
		}
		zones = append(zones, *zone)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating zones: %w", err)
	}

	for i := range zones {
		zones[i].MemberIDs, err = r.memberIDs(ctx, zones[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return zones, nil
}

// Create inserts a new zone and its membership rows.
func (r *SQLiteRepository) Create(ctx context.Context, zone *Zone) error {
	now := time.Now().UTC()
	if zone.CreatedAt.IsZero() {
		zone.CreatedAt = now
	}
	zone.UpdatedAt = now

	return r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO zones (id, name, slug, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)`,
			zone.ID, zone.Name, zone.Slug,
			zone.CreatedAt.Format(time.RFC3339),
			zone.UpdatedAt.Format(time.RFC3339),
		)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed") {
				return ErrZoneExists
			}
			return fmt.Errorf("inserting zone: %w", err)
		}
		return insertMembers(ctx, tx, zone.ID, zone.MemberIDs)
	})
}

// Update modifies an existing zone, replacing its membership.
func (r *SQLiteRepository) Update(ctx context.Context, zone *Zone) error {
	zone.UpdatedAt = time.Now().UTC()

	return r.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE zones SET name = ?, slug = ?, updated_at = ? WHERE id = ?`,
			zone.Name, zone.Slug, zone.UpdatedAt.Format(time.RFC3339), zone.ID,
		)
		if err != nil {
			return fmt.Errorf("updating zone: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking rows affected: %w", err)
		}
		if affected == 0 {
			return ErrZoneNotFound
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM zone_members WHERE zone_id = ?`, zone.ID); err != nil {
			return fmt.Errorf("clearing zone members: %w", err)
		}
		return insertMembers(ctx, tx, zone.ID, zone.MemberIDs)
	})
}

// Delete removes a zone and its membership rows.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM zone_members WHERE zone_id = ?`, id); err != nil {
			return fmt.Errorf("clearing zone members: %w", err)
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM zones WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("deleting zone: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking rows affected: %w", err)
		}
		if affected == 0 {
			return ErrZoneNotFound
		}
		return nil
	})
}

// memberIDs loads the ordered member device IDs for a zone.
func (r *SQLiteRepository) memberIDs(ctx context.Context, zoneID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT device_id FROM zone_members
		WHERE zone_id = ? ORDER BY position`, zoneID)
	if err != nil {
		return nil, fmt.Errorf("querying zone members: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning zone member: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating zone members: %w", err)
	}
	return ids, nil
}

// withTx runs fn in a transaction, committing on success.
func (r *SQLiteRepository) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// insertMembers writes the membership rows with positional order.
func insertMembers(ctx context.Context, tx *sql.Tx, zoneID string, memberIDs []string) error {
	for i, deviceID := range memberIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO zone_members (zone_id, device_id, position)
			VALUES (?, ?, ?)`, zoneID, deviceID, i); err != nil {
			return fmt.Errorf("inserting zone member: %w", err)
		}
	}
	return nil
}

// rowScanner abstracts sql.Row and sql.Rows for scanZone.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanZone scans a single zone row (membership loaded separately).
func scanZone(row rowScanner) (*Zone, error) {
	var (
		z         Zone
		createdAt string
		updatedAt string
	)

	if err := row.Scan(&z.ID, &z.Name, &z.Slug, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if z.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
	}
	if z.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at %q: %w", updatedAt, err)
	}
	return &z, nil
}
