package profiles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/alkesia/alkesia/internal/platform/httpx"
	"github.com/alkesia/alkesia/internal/rbac"
	"github.com/alkesia/alkesia/internal/shared"
)

// RepositoryPort defines data access methods for profiles.
type RepositoryPort interface {
	List(ctx context.Context) ([]Profile, error)
	ListByTenant(ctx context.Context, tenantID string) ([]Profile, error)
	Get(ctx context.Context, userID string) (*Profile, error)
	Insert(ctx context.Context, np NewProfile) (*Profile, error)
	UpdateRole(ctx context.Context, userID, role string) error
	SetActive(ctx context.Context, userID string, active bool) error
	TouchLastLogin(ctx context.Context, userID string) error
	UpsertSuperAdmin(ctx context.Context, userID, email string) (*Profile, bool, error)
}

// SubjectInvalidator drops cached guard subjects after mutations.
type SubjectInvalidator interface {
	InvalidateSubject(ctx context.Context, userID string)
}

// Auditor records administrative actions.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles profile administration.
type Service struct {
	logger      *slog.Logger
	repo        RepositoryPort
	invalidator SubjectInvalidator
	audit       Auditor
	titler      cases.Caser
}

// NewService builds a Service instance. Invalidator and auditor are optional.
func NewService(logger *slog.Logger, repo RepositoryPort, invalidator SubjectInvalidator, audit Auditor) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		logger:      logger,
		repo:        repo,
		invalidator: invalidator,
		audit:       audit,
		titler:      cases.Title(language.Indonesian),
	}
}

// BindInvalidator attaches the guard cache invalidator. The guard resolves
// subjects through this service, so the two are wired in two steps.
func (s *Service) BindInvalidator(inv SubjectInvalidator) {
	s.invalidator = inv
}

// List returns profiles visible to the actor: super_admin sees every
// tenant, everyone else only their own.
func (s *Service) List(ctx context.Context, actor *rbac.Subject) ([]Profile, error) {
	if actor == nil {
		return nil, httpx.ErrForbidden
	}
	if actor.Role == rbac.RoleSuperAdmin {
		return s.repo.List(ctx)
	}
	if actor.TenantID == "" {
		return nil, nil
	}
	return s.repo.ListByTenant(ctx, actor.TenantID)
}

// Get fetches one profile.
func (s *Service) Get(ctx context.Context, userID string) (*Profile, error) {
	return s.repo.Get(ctx, userID)
}

// Create provisions a profile row with a normalized display name.
func (s *Service) Create(ctx context.Context, np NewProfile) (*Profile, error) {
	if _, ok := rbac.ParseRole(np.Role); !ok {
		return nil, fmt.Errorf("%w: unknown role %q", httpx.ErrValidation, np.Role)
	}
	np.FullName = s.NormalizeName(np.FullName)
	return s.repo.Insert(ctx, np)
}

// ChangeRole updates a profile's role after validating it against the
// enumerated set. Every change is audited and the guard cache invalidated.
func (s *Service) ChangeRole(ctx context.Context, actor *rbac.Subject, userID, newRole string) (*Profile, error) {
	role, ok := rbac.ParseRole(newRole)
	if !ok {
		return nil, fmt.Errorf("%w: unknown role %q", httpx.ErrValidation, newRole)
	}
	if err := s.repo.UpdateRole(ctx, userID, string(role)); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	s.afterMutation(ctx, actor, userID, "profile.role_changed", map[string]any{"role": string(role)})
	return s.repo.Get(ctx, userID)
}

// SetActive toggles activation. Profiles are deactivated, never deleted.
func (s *Service) SetActive(ctx context.Context, actor *rbac.Subject, userID string, active bool) (*Profile, error) {
	if err := s.repo.SetActive(ctx, userID, active); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	s.afterMutation(ctx, actor, userID, "profile.active_toggled", map[string]any{"active": active})
	return s.repo.Get(ctx, userID)
}

// ResolveSubject adapts the stored profile to the guard's view.
func (s *Service) ResolveSubject(ctx context.Context, userID string) (*rbac.Subject, error) {
	profile, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return profile.Subject(), nil
}

// TouchLastLogin stamps a successful login.
func (s *Service) TouchLastLogin(ctx context.Context, userID string) error {
	return s.repo.TouchLastLogin(ctx, userID)
}

// UpsertSuperAdmin exposes the atomic promotion write for the privileged
// procedure layer.
func (s *Service) UpsertSuperAdmin(ctx context.Context, userID, email string) (*Profile, bool, error) {
	profile, created, err := s.repo.UpsertSuperAdmin(ctx, userID, email)
	if err != nil {
		return nil, false, err
	}
	if s.invalidator != nil {
		s.invalidator.InvalidateSubject(ctx, userID)
	}
	return profile, created, nil
}

// NormalizeName trims and title-cases a display name.
func (s *Service) NormalizeName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return name
	}
	return s.titler.String(name)
}

func (s *Service) afterMutation(ctx context.Context, actor *rbac.Subject, userID, action string, meta map[string]any) {
	if s.invalidator != nil {
		s.invalidator.InvalidateSubject(ctx, userID)
	}
	if s.audit != nil {
		actorID := ""
		if actor != nil {
			actorID = actor.UserID
		}
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   action,
			Entity:   "profile",
			EntityID: userID,
			Meta:     meta,
		}); err != nil {
			s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
		}
	}
}
