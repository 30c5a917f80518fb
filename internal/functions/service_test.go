package functions

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alkesia/alkesia/internal/auth"
	"github.com/alkesia/alkesia/internal/profiles"
	"github.com/alkesia/alkesia/internal/rbac"
)

type stubIdentities struct {
	mu        sync.Mutex
	byID      map[string]*auth.Identity
	provErr   error
	deleteErr error
	deleted   []string
}

func newStubIdentities() *stubIdentities {
	return &stubIdentities{byID: make(map[string]*auth.Identity)}
}

func (s *stubIdentities) ProvisionIdentity(ctx context.Context, email, password string) (*auth.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.provErr != nil {
		return nil, s.provErr
	}
	ident := &auth.Identity{ID: uuid.NewString(), Email: email, IsActive: true}
	s.byID[ident.ID] = ident
	return ident, nil
}

func (s *stubIdentities) RemoveIdentity(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.byID, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubIdentities) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

type stubProfiles struct {
	mu        sync.Mutex
	rows      map[string]*profiles.Profile
	createErr error
	upsertErr error
	calls     int
}

func newStubProfiles() *stubProfiles {
	return &stubProfiles{rows: make(map[string]*profiles.Profile)}
}

func (s *stubProfiles) Create(ctx context.Context, np profiles.NewProfile) (*profiles.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return nil, s.createErr
	}
	p := &profiles.Profile{UserID: np.UserID, FullName: np.FullName, Role: np.Role, IsActive: true}
	s.rows[np.UserID] = p
	return p, nil
}

// UpsertSuperAdmin mimics the conditional insert: the map key acts as the
// unique constraint on user_id.
func (s *stubProfiles) UpsertSuperAdmin(ctx context.Context, userID, email string) (*profiles.Profile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.upsertErr != nil {
		return nil, false, s.upsertErr
	}
	if existing, ok := s.rows[userID]; ok {
		existing.Role = string(rbac.RoleSuperAdmin)
		if existing.FullName == "" {
			existing.FullName = email
		}
		return existing, false, nil
	}
	p := &profiles.Profile{UserID: userID, FullName: email, Role: string(rbac.RoleSuperAdmin), IsActive: true}
	s.rows[userID] = p
	return p, true, nil
}

func validCreateRequest() CreateUserRequest {
	return CreateUserRequest{
		Name:     "Dr. Ratna",
		Email:    "ratna@klinik.example",
		Password: "rahasia-sekali",
		Role:     "admin_klien",
	}
}

func TestCreateUserMissingFieldWritesNothing(t *testing.T) {
	ids := newStubIdentities()
	profs := newStubProfiles()
	svc := NewService(nil, ids, profs, nil, "")

	req := validCreateRequest()
	req.Password = ""
	_, err := svc.CreateUser(context.Background(), "actor", req)

	var procErr *Error
	require.ErrorAs(t, err, &procErr)
	assert.Equal(t, KindValidation, procErr.Kind)
	assert.Zero(t, ids.count(), "no identity may be created on validation failure")
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	svc := NewService(nil, newStubIdentities(), newStubProfiles(), nil, "")
	req := validCreateRequest()
	req.Role = "emperor"
	_, err := svc.CreateUser(context.Background(), "actor", req)

	var procErr *Error
	require.ErrorAs(t, err, &procErr)
	assert.Equal(t, KindValidation, procErr.Kind)
}

func TestCreateUserAuthProviderFailure(t *testing.T) {
	ids := newStubIdentities()
	ids.provErr = errors.New("email already registered")
	svc := NewService(nil, ids, newStubProfiles(), nil, "")

	_, err := svc.CreateUser(context.Background(), "actor", validCreateRequest())

	var procErr *Error
	require.ErrorAs(t, err, &procErr)
	assert.Equal(t, KindAuthProvider, procErr.Kind)
	assert.Contains(t, procErr.Message, "already registered")
}

func TestCreateUserCompensatesFailedProfileWrite(t *testing.T) {
	ids := newStubIdentities()
	profs := newStubProfiles()
	profs.createErr = errors.New("profiles table unavailable")
	svc := NewService(nil, ids, profs, nil, "")

	_, err := svc.CreateUser(context.Background(), "actor", validCreateRequest())

	var procErr *Error
	require.ErrorAs(t, err, &procErr)
	assert.Equal(t, KindProfileWrite, procErr.Kind)
	// The identity created in step 1 must be gone again.
	assert.Zero(t, ids.count())
	assert.Len(t, ids.deleted, 1)
}

func TestCreateUserSurfacesFailedCompensationDistinctly(t *testing.T) {
	ids := newStubIdentities()
	ids.deleteErr = errors.New("auth store unreachable")
	profs := newStubProfiles()
	profs.createErr = errors.New("profiles table unavailable")
	svc := NewService(nil, ids, profs, nil, "")

	_, err := svc.CreateUser(context.Background(), "actor", validCreateRequest())

	var procErr *Error
	require.ErrorAs(t, err, &procErr)
	assert.Equal(t, KindInconsistent, procErr.Kind)
	// Orphaned identity remains: that is exactly what the kind signals.
	assert.Equal(t, 1, ids.count())
}

func TestCreateUserSuccess(t *testing.T) {
	ids := newStubIdentities()
	profs := newStubProfiles()
	svc := NewService(nil, ids, profs, nil, "")

	result, err := svc.CreateUser(context.Background(), "actor", validCreateRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, result.UserID)
	assert.Equal(t, "ratna@klinik.example", result.Email)
	require.NotNil(t, result.Profile)
	assert.Equal(t, "admin_klien", result.Profile.Role)
}

func TestPromoteRejectsUnlistedEmailBeforeDataAccess(t *testing.T) {
	profs := newStubProfiles()
	svc := NewService(nil, newStubIdentities(), profs, nil, "owner@alkesia.example")

	_, err := svc.PromoteSelfToSuperAdmin(context.Background(), "u-1", "intruder@alkesia.example")

	var procErr *Error
	require.ErrorAs(t, err, &procErr)
	assert.Equal(t, KindUnauthorized, procErr.Kind)
	assert.Zero(t, profs.calls, "rejection must happen before any data access")
}

func TestPromoteMatchesEmailCaseInsensitively(t *testing.T) {
	svc := NewService(nil, newStubIdentities(), newStubProfiles(), nil, "Owner@Alkesia.Example")

	result, err := svc.PromoteSelfToSuperAdmin(context.Background(), "u-1", "owner@alkesia.example")
	require.NoError(t, err)
	assert.True(t, result.Created)
}

func TestPromoteDisabledWithoutConfiguredEmail(t *testing.T) {
	svc := NewService(nil, newStubIdentities(), newStubProfiles(), nil, "")
	_, err := svc.PromoteSelfToSuperAdmin(context.Background(), "u-1", "owner@alkesia.example")

	var procErr *Error
	require.ErrorAs(t, err, &procErr)
	assert.Equal(t, KindUnauthorized, procErr.Kind)
}

func TestPromotePreservesExistingDisplayName(t *testing.T) {
	profs := newStubProfiles()
	profs.rows["u-1"] = &profiles.Profile{UserID: "u-1", FullName: "Pak Owner", Role: "admin_mitra", IsActive: true}
	svc := NewService(nil, newStubIdentities(), profs, nil, "owner@alkesia.example")

	result, err := svc.PromoteSelfToSuperAdmin(context.Background(), "u-1", "owner@alkesia.example")
	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.Equal(t, "Pak Owner", profs.rows["u-1"].FullName)
	assert.Equal(t, string(rbac.RoleSuperAdmin), profs.rows["u-1"].Role)
}

func TestPromoteConcurrentInvocationsYieldOneProfile(t *testing.T) {
	profs := newStubProfiles()
	svc := NewService(nil, newStubIdentities(), profs, nil, "owner@alkesia.example")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.PromoteSelfToSuperAdmin(context.Background(), "u-1", "owner@alkesia.example")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Len(t, profs.rows, 1)
	assert.Equal(t, string(rbac.RoleSuperAdmin), profs.rows["u-1"].Role)
}
