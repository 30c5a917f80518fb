package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alkesia/alkesia/internal/platform/httpx"
	"github.com/alkesia/alkesia/internal/shared"
)

// Repository defines persistence operations for the identity store.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	CreateIdentity(ctx context.Context, id, email, passwordHash string, confirmedAt time.Time) (*Identity, error)
	DeleteIdentity(ctx context.Context, id string) error
	CreateSession(ctx context.Context, id string, userID string, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByEmail fetches an identity by email, case-insensitively.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, email_confirmed_at, is_active, created_at, updated_at
		FROM identities
		WHERE lower(email) = lower($1)`, strings.TrimSpace(email))

	var ident Identity
	err := row.Scan(&ident.ID, &ident.Email, &ident.PasswordHash, &ident.EmailConfirmedAt, &ident.IsActive, &ident.CreatedAt, &ident.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &ident, nil
}

// CreateIdentity inserts a new identity. A duplicate email surfaces as
// httpx.ErrDuplicate so callers can report a provider-style message.
func (r *PGRepository) CreateIdentity(ctx context.Context, id, email, passwordHash string, confirmedAt time.Time) (*Identity, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO identities (id, email, password_hash, email_confirmed_at, is_active, created_at, updated_at)
		VALUES ($1, lower($2), $3, $4, TRUE, NOW(), NOW())
		RETURNING id, email, password_hash, email_confirmed_at, is_active, created_at, updated_at`,
		id, strings.TrimSpace(email), passwordHash, confirmedAt)

	var ident Identity
	err := row.Scan(&ident.ID, &ident.Email, &ident.PasswordHash, &ident.EmailConfirmedAt, &ident.IsActive, &ident.CreatedAt, &ident.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("%w: email already registered", httpx.ErrDuplicate)
		}
		return nil, err
	}
	return &ident, nil
}

// DeleteIdentity removes an identity record, used as compensation when the
// paired profile write fails.
func (r *PGRepository) DeleteIdentity(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM identities WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CreateSession persists a login session record for auditing.
func (r *PGRepository) CreateSession(ctx context.Context, id string, userID string, expiresAt time.Time, ip, ua string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO login_sessions (id, user_id, created_at, expires_at, ip, ua)
		VALUES ($1, $2, NOW(), $3, NULLIF($4, ''), NULLIF($5, ''))`,
		id, userID, expiresAt.UTC(), ip, ua)
	return err
}

// DeleteSession removes a session record.
func (r *PGRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM login_sessions WHERE id = $1`, id)
	return err
}

var _ Repository = (*PGRepository)(nil)
