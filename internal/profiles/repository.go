package profiles

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alkesia/alkesia/internal/platform/httpx"
	"github.com/alkesia/alkesia/internal/rbac"
	"github.com/alkesia/alkesia/internal/shared"
)

const profileColumns = `
	p.user_id, p.full_name, p.phone, p.role, p.tenant_id, COALESCE(t.name, ''),
	p.is_active, p.created_at, p.last_login_at`

// Repository provides PostgreSQL backed persistence for profiles.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns all profiles with their tenant names.
func (r *Repository) List(ctx context.Context) ([]Profile, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+profileColumns+`
		FROM profiles p
		LEFT JOIN tenants t ON t.id = p.tenant_id
		ORDER BY p.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProfiles(rows)
}

// ListByTenant returns profiles belonging to one tenant.
func (r *Repository) ListByTenant(ctx context.Context, tenantID string) ([]Profile, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+profileColumns+`
		FROM profiles p
		LEFT JOIN tenants t ON t.id = p.tenant_id
		WHERE p.tenant_id = $1
		ORDER BY p.created_at DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProfiles(rows)
}

// Get fetches one profile by identity id.
func (r *Repository) Get(ctx context.Context, userID string) (*Profile, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+profileColumns+`
		FROM profiles p
		LEFT JOIN tenants t ON t.id = p.tenant_id
		WHERE p.user_id = $1`, userID)
	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return profile, nil
}

// Insert provisions a new profile row.
func (r *Repository) Insert(ctx context.Context, np NewProfile) (*Profile, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO profiles (user_id, full_name, phone, role, tenant_id, is_active, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, TRUE, NOW())
		RETURNING user_id, full_name, COALESCE(phone, ''), role, tenant_id, '', is_active, created_at, last_login_at`,
		np.UserID, np.FullName, np.Phone, np.Role, np.TenantID)
	profile, err := scanProfile(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("%w: profile already exists", httpx.ErrDuplicate)
		}
		return nil, err
	}
	return profile, nil
}

// UpdateRole changes the stored role.
func (r *Repository) UpdateRole(ctx context.Context, userID, role string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE profiles SET role = $2 WHERE user_id = $1`, userID, role)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetActive toggles the activation flag.
func (r *Repository) SetActive(ctx context.Context, userID string, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE profiles SET is_active = $2 WHERE user_id = $1`, userID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// TouchLastLogin stamps the last successful login.
func (r *Repository) TouchLastLogin(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `UPDATE profiles SET last_login_at = NOW() WHERE user_id = $1`, userID)
	return err
}

// UpsertSuperAdmin promotes the identity in a single conditional write. The
// unique key on user_id makes concurrent invocations converge on one row;
// an existing display name is preserved, a fresh row falls back to email.
func (r *Repository) UpsertSuperAdmin(ctx context.Context, userID, email string) (*Profile, bool, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO profiles (user_id, full_name, role, is_active, created_at)
		VALUES ($1, $2, $3, TRUE, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			role = EXCLUDED.role,
			full_name = COALESCE(NULLIF(profiles.full_name, ''), EXCLUDED.full_name)
		RETURNING user_id, full_name, COALESCE(phone, ''), role, tenant_id, '', is_active, created_at, last_login_at,
			(xmax = 0) AS inserted`,
		userID, email, string(rbac.RoleSuperAdmin))

	var profile Profile
	var inserted bool
	err := row.Scan(&profile.UserID, &profile.FullName, &profile.Phone, &profile.Role, &profile.TenantID, &profile.TenantName,
		&profile.IsActive, &profile.CreatedAt, &profile.LastLoginAt, &inserted)
	if err != nil {
		return nil, false, err
	}
	return &profile, inserted, nil
}

func scanProfiles(rows pgx.Rows) ([]Profile, error) {
	var out []Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *profile)
	}
	return out, rows.Err()
}

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	var phone *string
	err := row.Scan(&p.UserID, &p.FullName, &phone, &p.Role, &p.TenantID, &p.TenantName, &p.IsActive, &p.CreatedAt, &p.LastLoginAt)
	if err != nil {
		return nil, err
	}
	if phone != nil {
		p.Phone = *phone
	}
	return &p, nil
}
