package functions

import (
	"context"
	"log/slog"
	"strings"

	"github.com/alkesia/alkesia/internal/auth"
	"github.com/alkesia/alkesia/internal/profiles"
	"github.com/alkesia/alkesia/internal/rbac"
	"github.com/alkesia/alkesia/internal/shared"
)

// IdentityProvisioner creates and deletes identity records. Implemented by
// the auth service.
type IdentityProvisioner interface {
	ProvisionIdentity(ctx context.Context, email, password string) (*auth.Identity, error)
	RemoveIdentity(ctx context.Context, id string) error
}

// ProfileStore writes profile rows. Implemented by the profiles service.
type ProfileStore interface {
	Create(ctx context.Context, np profiles.NewProfile) (*profiles.Profile, error)
	UpsertSuperAdmin(ctx context.Context, userID, email string) (*profiles.Profile, bool, error)
}

// Auditor records privileged actions.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service runs the privileged procedures.
type Service struct {
	logger         *slog.Logger
	identities     IdentityProvisioner
	profiles       ProfileStore
	audit          Auditor
	bootstrapEmail string
}

// NewService builds a Service. bootstrapEmail is the single address allowed
// to self-promote; empty disables the bootstrap path entirely.
func NewService(logger *slog.Logger, identities IdentityProvisioner, profileStore ProfileStore, audit Auditor, bootstrapEmail string) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		logger:         logger,
		identities:     identities,
		profiles:       profileStore,
		audit:          audit,
		bootstrapEmail: strings.ToLower(strings.TrimSpace(bootstrapEmail)),
	}
}

// CreateUserRequest is the create-user procedure payload.
type CreateUserRequest struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Role     string  `json:"role"`
	Phone    string  `json:"phone,omitempty"`
	TenantID *string `json:"tenant_id,omitempty"`
}

// CreateUserResult is returned on success.
type CreateUserResult struct {
	UserID  string            `json:"user_id"`
	Email   string            `json:"email"`
	Profile *profiles.Profile `json:"profile"`
}

// CreateUser provisions an identity and its profile as one logical unit.
// The identity write happens first; if the profile write fails the identity
// is deleted again so no orphaned login remains. The caller must already be
// authorized (the HTTP layer checks users.manage); this procedure does not
// re-derive caller identity from the payload.
func (s *Service) CreateUser(ctx context.Context, actorID string, req CreateUserRequest) (*CreateUserResult, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" || req.Role == "" {
		return nil, errf(KindValidation, "name, email, password and role are required")
	}
	role, ok := rbac.ParseRole(req.Role)
	if !ok {
		return nil, errf(KindValidation, "unknown role: "+req.Role)
	}

	ident, err := s.identities.ProvisionIdentity(ctx, req.Email, req.Password)
	if err != nil {
		return nil, errf(KindAuthProvider, err.Error())
	}

	profile, err := s.profiles.Create(ctx, profiles.NewProfile{
		UserID:   ident.ID,
		FullName: req.Name,
		Phone:    strings.TrimSpace(req.Phone),
		Role:     string(role),
		TenantID: req.TenantID,
	})
	if err != nil {
		// Compensate: remove the identity created in step 1 so no login
		// exists without a profile.
		if delErr := s.identities.RemoveIdentity(ctx, ident.ID); delErr != nil {
			s.logger.Error("create user rollback failed",
				slog.String("identity_id", ident.ID),
				slog.Any("profile_error", err),
				slog.Any("rollback_error", delErr),
			)
			return nil, errf(KindInconsistent, "profile write failed and identity cleanup failed, manual cleanup required: "+err.Error())
		}
		return nil, errf(KindProfileWrite, err.Error())
	}

	s.record(ctx, actorID, "user.created", ident.ID, map[string]any{"email": ident.Email, "role": string(role)})
	return &CreateUserResult{UserID: ident.ID, Email: ident.Email, Profile: profile}, nil
}

// PromoteResult is returned by PromoteSelfToSuperAdmin.
type PromoteResult struct {
	Created bool   `json:"created"`
	Message string `json:"message"`
}

// PromoteSelfToSuperAdmin elevates the configured bootstrap account. The
// allow-list holds exactly one email and is checked before any data access.
// The write is a single conditional upsert keyed on the identity id, so
// concurrent invocations for the same user converge on one profile row.
func (s *Service) PromoteSelfToSuperAdmin(ctx context.Context, userID, email string) (*PromoteResult, error) {
	userID = strings.TrimSpace(userID)
	email = strings.ToLower(strings.TrimSpace(email))
	if userID == "" || email == "" {
		return nil, errf(KindValidation, "user_id and email are required")
	}
	if s.bootstrapEmail == "" || email != s.bootstrapEmail {
		return nil, errf(KindUnauthorized, "email is not authorized for promotion")
	}

	_, created, err := s.profiles.UpsertSuperAdmin(ctx, userID, email)
	if err != nil {
		return nil, errf(KindOperation, err.Error())
	}

	s.record(ctx, userID, "user.promoted", userID, map[string]any{"email": email, "created": created})
	message := "role updated to super_admin"
	if created {
		message = "super_admin profile created"
	}
	return &PromoteResult{Created: created, Message: message}, nil
}

func (s *Service) record(ctx context.Context, actorID, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "identity",
		EntityID: entityID,
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
