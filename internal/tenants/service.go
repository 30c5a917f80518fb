package tenants

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alkesia/alkesia/internal/platform/httpx"
	"github.com/alkesia/alkesia/internal/rbac"
	"github.com/alkesia/alkesia/internal/shared"
)

// RepositoryPort defines data access methods for tenants.
type RepositoryPort interface {
	List(ctx context.Context) ([]Tenant, error)
	Get(ctx context.Context, id string) (*Tenant, error)
	Create(ctx context.Context, name string, kind Kind, address string) (*Tenant, error)
	Update(ctx context.Context, id, name, address string) (*Tenant, error)
	SetActive(ctx context.Context, id string, active bool) ([]string, error)
}

// Auditor records administrative actions.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// SubjectInvalidator drops cached guard subjects after mutations.
type SubjectInvalidator interface {
	InvalidateSubject(ctx context.Context, userID string)
}

// Service handles company administration.
type Service struct {
	logger      *slog.Logger
	repo        RepositoryPort
	audit       Auditor
	invalidator SubjectInvalidator
}

// NewService builds a Service instance. Auditor and invalidator are optional.
func NewService(logger *slog.Logger, repo RepositoryPort, audit Auditor, invalidator SubjectInvalidator) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, repo: repo, audit: audit, invalidator: invalidator}
}

// List returns all tenants.
func (s *Service) List(ctx context.Context) ([]Tenant, error) {
	return s.repo.List(ctx)
}

// Get fetches one tenant.
func (s *Service) Get(ctx context.Context, id string) (*Tenant, error) {
	return s.repo.Get(ctx, id)
}

// Create registers a company.
func (s *Service) Create(ctx context.Context, actor *rbac.Subject, name string, kind Kind, address string) (*Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: tenant name required", httpx.ErrValidation)
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: tenant kind must be mitra or klien", httpx.ErrValidation)
	}
	tenant, err := s.repo.Create(ctx, name, kind, strings.TrimSpace(address))
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, "tenant.created", tenant.ID, map[string]any{"name": name, "kind": string(kind)})
	return tenant, nil
}

// Update changes company details.
func (s *Service) Update(ctx context.Context, actor *rbac.Subject, id, name, address string) (*Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: tenant name required", httpx.ErrValidation)
	}
	tenant, err := s.repo.Update(ctx, id, name, strings.TrimSpace(address))
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, "tenant.updated", id, map[string]any{"name": name})
	return tenant, nil
}

// SetActive toggles activation; deactivation is the delete of this domain.
// Deactivating a tenant locks out its whole staff at once, so every cached
// subject in the tenant is invalidated.
func (s *Service) SetActive(ctx context.Context, actor *rbac.Subject, id string, active bool) (*Tenant, error) {
	affected, err := s.repo.SetActive(ctx, id, active)
	if err != nil {
		return nil, err
	}
	if s.invalidator != nil {
		for _, userID := range affected {
			s.invalidator.InvalidateSubject(ctx, userID)
		}
	}
	s.record(ctx, actor, "tenant.active_toggled", id, map[string]any{"active": active, "profiles_deactivated": len(affected)})
	return s.repo.Get(ctx, id)
}

func (s *Service) record(ctx context.Context, actor *rbac.Subject, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	actorID := ""
	if actor != nil {
		actorID = actor.UserID
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "tenant",
		EntityID: entityID,
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
