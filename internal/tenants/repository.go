package tenants

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alkesia/alkesia/internal/platform/db"
	"github.com/alkesia/alkesia/internal/platform/httpx"
	"github.com/alkesia/alkesia/internal/shared"
)

// Repository provides PostgreSQL backed persistence for tenants.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns all tenants ordered by name.
func (r *Repository) List(ctx context.Context) ([]Tenant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, kind, COALESCE(address, ''), is_active, created_at
		FROM tenants ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Tenant
	for rows.Next() {
		var t Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Kind, &t.Address, &t.IsActive, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Get fetches a tenant by id.
func (r *Repository) Get(ctx context.Context, id string) (*Tenant, error) {
	var t Tenant
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, kind, COALESCE(address, ''), is_active, created_at
		FROM tenants WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.Kind, &t.Address, &t.IsActive, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// Create inserts a tenant. Duplicate names surface as httpx.ErrDuplicate.
func (r *Repository) Create(ctx context.Context, name string, kind Kind, address string) (*Tenant, error) {
	var t Tenant
	err := r.pool.QueryRow(ctx, `
		INSERT INTO tenants (id, name, kind, address, is_active, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), TRUE, NOW())
		RETURNING id, name, kind, COALESCE(address, ''), is_active, created_at`,
		uuid.NewString(), name, kind, address).
		Scan(&t.ID, &t.Name, &t.Kind, &t.Address, &t.IsActive, &t.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("%w: tenant name already exists", httpx.ErrDuplicate)
		}
		return nil, err
	}
	return &t, nil
}

// Update changes name and address.
func (r *Repository) Update(ctx context.Context, id, name, address string) (*Tenant, error) {
	var t Tenant
	err := r.pool.QueryRow(ctx, `
		UPDATE tenants SET name = $2, address = NULLIF($3, '')
		WHERE id = $1
		RETURNING id, name, kind, COALESCE(address, ''), is_active, created_at`,
		id, name, address).
		Scan(&t.ID, &t.Name, &t.Kind, &t.Address, &t.IsActive, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// SetActive toggles the activation flag. Tenants are never deleted.
// Deactivation also deactivates every profile in the tenant, in one
// transaction, and returns their user ids so cached subjects can be
// invalidated. Reactivation leaves profiles untouched; accounts are
// re-enabled one by one.
func (r *Repository) SetActive(ctx context.Context, id string, active bool) ([]string, error) {
	var userIDs []string
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE tenants SET is_active = $2 WHERE id = $1`, id, active)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		if active {
			return nil
		}
		rows, err := tx.Query(ctx, `
			UPDATE profiles SET is_active = FALSE
			WHERE tenant_id = $1 AND is_active
			RETURNING user_id`, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var userID string
			if err := rows.Scan(&userID); err != nil {
				return err
			}
			userIDs = append(userIDs, userID)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return userIDs, nil
}
