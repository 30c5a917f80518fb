package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/alkesia/alkesia/internal/shared"
)

// Service wraps authentication and identity provisioning rules.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Identity, error) {
	ident, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !ident.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(ident.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return ident, nil
}

// ProvisionIdentity creates an identity with an auto-confirmed email, the
// way privileged user creation provisions accounts.
func (s *Service) ProvisionIdentity(ctx context.Context, email, password string) (*Identity, error) {
	if email == "" || password == "" {
		return nil, errors.New("auth: email and password required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return s.repo.CreateIdentity(ctx, uuid.NewString(), email, string(hash), time.Now().UTC())
}

// RemoveIdentity deletes an identity, used to roll back partial provisioning.
func (s *Service) RemoveIdentity(ctx context.Context, id string) error {
	return s.repo.DeleteIdentity(ctx, id)
}

// RegisterSession persists the session metadata for auditing.
func (s *Service) RegisterSession(ctx context.Context, id string, userID string, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}
