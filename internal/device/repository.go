package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/meshgate-core/internal/infrastructure/database"
)

// Repository defines the interface for device persistence operations.
type Repository interface {
	// FindByNaturalKey looks a device up by (name, type, gateway).
	// Returns ErrDeviceNotFound if no such device exists.
	FindByNaturalKey(ctx context.Context, gatewayID, name, deviceType string) (*Device, error)

	// InsertIfAbsent inserts the device unless one with the same natural
	// key already exists. It reports whether a row was inserted; a
	// conflict is not an error.
	InsertIfAbsent(ctx context.Context, d *Device) (bool, error)

	// GetByID retrieves a device joined with its gateway.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*View, error)

	// List retrieves all devices joined with their gateways, ordered by
	// gateway name, type, then name.
	List(ctx context.Context) ([]View, error)

	// ListByType retrieves all devices of one type, in List order.
	ListByType(ctx context.Context, deviceType string) ([]View, error)

	// ListByGateway retrieves the devices owned by one gateway.
	ListByGateway(ctx context.Context, gatewayID string) ([]Device, error)

	// UpdateDescription sets the description and returns the updated device.
	// Returns ErrDeviceNotFound if the device does not exist.
	UpdateDescription(ctx context.Context, id, description string, now time.Time) (*Device, error)

	// Delete removes a device by ID.
	// Returns ErrDeviceNotFound if the device does not exist.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = `id, name, type, description, gateway_id, created_at, updated_at`

const viewQuery = `
	SELECT d.id, d.name, d.type, d.description, d.gateway_id, d.created_at, d.updated_at,
		g.name, g.local_api_url
	FROM devices d
	JOIN gateways g ON g.id = d.gateway_id`

const viewOrder = ` ORDER BY g.name, d.type, d.name, d.id`

// FindByNaturalKey looks a device up by its natural key.
func (r *SQLiteRepository) FindByNaturalKey(ctx context.Context, gatewayID, name, deviceType string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices
		WHERE name = ? AND type = ? AND gateway_id = ?`

	d, err := scanDevice(r.db.QueryRowContext(ctx, query, name, deviceType, gatewayID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by natural key: %w", err)
	}
	return d, nil
}

// InsertIfAbsent inserts d, or does nothing if its natural key is taken.
// The UNIQUE constraint decides, so this is safe under concurrent callers.
func (r *SQLiteRepository) InsertIfAbsent(ctx context.Context, d *Device) (bool, error) {
	query := `
		INSERT INTO devices (` + deviceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name, type, gateway_id) DO NOTHING`

	result, err := r.db.ExecContext(ctx, query,
		d.ID,
		d.Name,
		d.Type,
		d.Description,
		d.GatewayID,
		database.FormatTime(d.CreatedAt),
		database.FormatTime(d.UpdatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("inserting device: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}
	return n == 1, nil
}

// GetByID retrieves a device joined with its gateway.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*View, error) {
	v, err := scanView(r.db.QueryRowContext(ctx, viewQuery+` WHERE d.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return v, nil
}

// List retrieves all devices joined with their gateways.
func (r *SQLiteRepository) List(ctx context.Context) ([]View, error) {
	return r.queryViews(ctx, viewQuery+viewOrder)
}

// ListByType retrieves all devices of one type joined with their gateways.
func (r *SQLiteRepository) ListByType(ctx context.Context, deviceType string) ([]View, error) {
	return r.queryViews(ctx, viewQuery+` WHERE d.type = ?`+viewOrder, deviceType)
}

// ListByGateway retrieves the devices owned by one gateway.
func (r *SQLiteRepository) ListByGateway(ctx context.Context, gatewayID string) ([]Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices
		WHERE gateway_id = ?
		ORDER BY type, name`

	rows, err := r.db.QueryContext(ctx, query, gatewayID)
	if err != nil {
		return nil, fmt.Errorf("querying devices by gateway: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// UpdateDescription sets a device's description.
func (r *SQLiteRepository) UpdateDescription(ctx context.Context, id, description string, now time.Time) (*Device, error) {
	query := `
		UPDATE devices SET description = ?, updated_at = ?
		WHERE id = ?
		RETURNING ` + deviceColumns

	d, err := scanDevice(r.db.QueryRowContext(ctx, query, description, database.FormatTime(now), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("updating device description: %w", err)
	}
	return d, nil
}

// Delete removes a device by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

func (r *SQLiteRepository) queryViews(ctx context.Context, query string, args ...any) ([]View, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var views []View
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		views = append(views, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return views, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (*Device, error) {
	var (
		d                    Device
		createdAt, updatedAt string
	)
	if err := row.Scan(&d.ID, &d.Name, &d.Type, &d.Description, &d.GatewayID, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := parseTimestamps(&d, createdAt, updatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

func scanView(row rowScanner) (*View, error) {
	var (
		v                    View
		createdAt, updatedAt string
		localURL             sql.NullString
	)
	if err := row.Scan(
		&v.ID, &v.Name, &v.Type, &v.Description, &v.GatewayID, &createdAt, &updatedAt,
		&v.GatewayName, &localURL,
	); err != nil {
		return nil, err
	}
	if err := parseTimestamps(&v.Device, createdAt, updatedAt); err != nil {
		return nil, err
	}
	v.GatewayLocalAPIURL = localURL.String
	v.Category = CategoryOf(v.Type)
	return &v, nil
}

func parseTimestamps(d *Device, createdAt, updatedAt string) error {
	var err error
	if d.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return fmt.Errorf("parsing created_at: %w", err)
	}
	if d.UpdatedAt, err = database.ParseTime(updatedAt); err != nil {
		return fmt.Errorf("parsing updated_at: %w", err)
	}
	return nil
}
