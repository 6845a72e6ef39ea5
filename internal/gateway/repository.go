package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/meshgate-core/internal/infrastructure/database"
)

// Repository defines the persistence operations for gateways.
type Repository interface {
	// Create inserts a new gateway.
	Create(ctx context.Context, g *Gateway) error

	// GetByID returns ErrGatewayNotFound if the gateway does not exist.
	GetByID(ctx context.Context, id string) (*Gateway, error)

	// GetByKeyHash looks a gateway up by the hash of its API key.
	// Returns ErrGatewayNotFound if no gateway holds that hash.
	GetByKeyHash(ctx context.Context, hash string) (*Gateway, error)

	// List returns every gateway, newest first.
	List(ctx context.Context) ([]Gateway, error)

	// ToggleActive flips the active flag atomically and returns the updated row.
	ToggleActive(ctx context.Context, id string, now time.Time) (*Gateway, error)

	// Delete removes a gateway. Owned devices go with it via ON DELETE CASCADE.
	Delete(ctx context.Context, id string) error

	// TouchLastSeen stamps last_seen_at.
	TouchLastSeen(ctx context.Context, id string, seen time.Time) error

	// SetLocalAPIURL overwrites the gateway's callback address.
	SetLocalAPIURL(ctx context.Context, id, url string, now time.Time) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectColumns = `
	SELECT id, name, organization_id, api_key_hash, api_key_prefix, active,
		last_seen_at, local_api_url, created_at, updated_at
	FROM gateways`

// Create inserts a new gateway.
func (r *SQLiteRepository) Create(ctx context.Context, g *Gateway) error {
	query := `
		INSERT INTO gateways (
			id, name, organization_id, api_key_hash, api_key_prefix, active,
			last_seen_at, local_api_url, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		g.ID,
		g.Name,
		database.NullString(g.OrganizationID),
		g.APIKeyHash,
		g.APIKeyPrefix,
		boolToInt(g.Active),
		database.NullTime(g.LastSeenAt),
		database.NullString(g.LocalAPIURL),
		database.FormatTime(g.CreatedAt),
		database.FormatTime(g.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting gateway: %w", err)
	}
	return nil
}

// GetByID retrieves a gateway by its identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Gateway, error) {
	g, err := scanGateway(r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGatewayNotFound
		}
		return nil, fmt.Errorf("querying gateway by id: %w", err)
	}
	return g, nil
}

// GetByKeyHash retrieves a gateway by API key hash. The column is UNIQUE
// so this is a single index lookup.
func (r *SQLiteRepository) GetByKeyHash(ctx context.Context, hash string) (*Gateway, error) {
	g, err := scanGateway(r.db.QueryRowContext(ctx, selectColumns+` WHERE api_key_hash = ?`, hash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGatewayNotFound
		}
		return nil, fmt.Errorf("querying gateway by key hash: %w", err)
	}
	return g, nil
}

// List retrieves all gateways, newest first.
func (r *SQLiteRepository) List(ctx context.Context) ([]Gateway, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+` ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("querying gateways: %w", err)
	}
	defer rows.Close()

	var gateways []Gateway
	for rows.Next() {
		g, err := scanGateway(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning gateway: %w", err)
		}
		gateways = append(gateways, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating gateways: %w", err)
	}
	return gateways, nil
}

// ToggleActive flips active in a single statement, so two concurrent
// toggles always cancel out.
func (r *SQLiteRepository) ToggleActive(ctx context.Context, id string, now time.Time) (*Gateway, error) {
	query := `
		UPDATE gateways SET active = 1 - active, updated_at = ?
		WHERE id = ?
		RETURNING id, name, organization_id, api_key_hash, api_key_prefix, active,
			last_seen_at, local_api_url, created_at, updated_at`

	g, err := scanGateway(r.db.QueryRowContext(ctx, query, database.FormatTime(now), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGatewayNotFound
		}
		return nil, fmt.Errorf("toggling gateway: %w", err)
	}
	return g, nil
}

// Delete removes a gateway and, through the foreign key, its devices.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM gateways WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting gateway: %w", err)
	}
	return requireRow(result)
}

// TouchLastSeen stamps last_seen_at.
func (r *SQLiteRepository) TouchLastSeen(ctx context.Context, id string, seen time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE gateways SET last_seen_at = ? WHERE id = ?`,
		database.FormatTime(seen), id)
	if err != nil {
		return fmt.Errorf("updating last seen: %w", err)
	}
	return requireRow(result)
}

// SetLocalAPIURL overwrites local_api_url. Last write wins.
func (r *SQLiteRepository) SetLocalAPIURL(ctx context.Context, id, url string, now time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE gateways SET local_api_url = ?, updated_at = ? WHERE id = ?`,
		database.NullString(url), database.FormatTime(now), id)
	if err != nil {
		return fmt.Errorf("updating local api url: %w", err)
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrGatewayNotFound
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanGateway(row rowScanner) (*Gateway, error) {
	var (
		g                    Gateway
		orgID, localURL      sql.NullString
		lastSeen             sql.NullString
		active               int
		createdAt, updatedAt string
	)

	if err := row.Scan(
		&g.ID, &g.Name, &orgID, &g.APIKeyHash, &g.APIKeyPrefix, &active,
		&lastSeen, &localURL, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	g.OrganizationID = orgID.String
	g.LocalAPIURL = localURL.String
	g.Active = active == 1

	if lastSeen.Valid {
		t, err := database.ParseTime(lastSeen.String)
		if err != nil {
			return nil, fmt.Errorf("parsing last_seen_at: %w", err)
		}
		g.LastSeenAt = &t
	}

	var err error
	if g.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if g.UpdatedAt, err = database.ParseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &g, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
