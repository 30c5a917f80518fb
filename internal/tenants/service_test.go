package tenants

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alkesia/alkesia/internal/platform/httpx"
	"github.com/alkesia/alkesia/internal/rbac"
	"github.com/alkesia/alkesia/internal/shared"
)

type mockRepo struct {
	tenants map[string]*Tenant
	// staff maps tenant id to active profile user ids, mimicking the
	// cascade the real repository runs in one transaction.
	staff  map[string][]string
	nextID int
}

func newMockRepo() *mockRepo {
	return &mockRepo{tenants: make(map[string]*Tenant), staff: make(map[string][]string)}
}

func (m *mockRepo) seed(id, name string, kind Kind, staff ...string) {
	m.tenants[id] = &Tenant{ID: id, Name: name, Kind: kind, IsActive: true, CreatedAt: time.Now()}
	m.staff[id] = staff
}

func (m *mockRepo) List(ctx context.Context) ([]Tenant, error) {
	var out []Tenant
	for _, t := range m.tenants {
		out = append(out, *t)
	}
	return out, nil
}

func (m *mockRepo) Get(ctx context.Context, id string) (*Tenant, error) {
	t, ok := m.tenants[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockRepo) Create(ctx context.Context, name string, kind Kind, address string) (*Tenant, error) {
	m.nextID++
	t := &Tenant{ID: string(rune('a' + m.nextID)), Name: name, Kind: kind, Address: address, IsActive: true}
	m.tenants[t.ID] = t
	cp := *t
	return &cp, nil
}

func (m *mockRepo) Update(ctx context.Context, id, name, address string) (*Tenant, error) {
	t, ok := m.tenants[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	t.Name, t.Address = name, address
	cp := *t
	return &cp, nil
}

func (m *mockRepo) SetActive(ctx context.Context, id string, active bool) ([]string, error) {
	t, ok := m.tenants[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	t.IsActive = active
	if active {
		return nil, nil
	}
	affected := m.staff[id]
	m.staff[id] = nil
	return affected, nil
}

type recordingInvalidator struct {
	invalidated []string
}

func (r *recordingInvalidator) InvalidateSubject(ctx context.Context, userID string) {
	r.invalidated = append(r.invalidated, userID)
}

func admin() *rbac.Subject {
	return &rbac.Subject{UserID: "root", Role: rbac.RoleSuperAdmin, Active: true}
}

func TestCreateValidatesNameAndKind(t *testing.T) {
	svc := NewService(nil, newMockRepo(), nil, nil)

	_, err := svc.Create(context.Background(), admin(), "  ", KindMitra, "")
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Create(context.Background(), admin(), "CV Sehat", Kind("vendor"), "")
	require.ErrorIs(t, err, httpx.ErrValidation)

	tenant, err := svc.Create(context.Background(), admin(), " CV Sehat ", KindKlien, "Jl. Melati 1")
	require.NoError(t, err)
	assert.Equal(t, "CV Sehat", tenant.Name)
	assert.Equal(t, KindKlien, tenant.Kind)
}

func TestSetActiveDeactivationInvalidatesStaffSubjects(t *testing.T) {
	repo := newMockRepo()
	repo.seed("t-1", "RS Harapan", KindKlien, "u-1", "u-2")
	inv := &recordingInvalidator{}
	svc := NewService(nil, repo, nil, inv)

	tenant, err := svc.SetActive(context.Background(), admin(), "t-1", false)
	require.NoError(t, err)
	assert.False(t, tenant.IsActive)
	assert.ElementsMatch(t, []string{"u-1", "u-2"}, inv.invalidated)
}

func TestSetActiveReactivationTouchesNoProfiles(t *testing.T) {
	repo := newMockRepo()
	repo.seed("t-1", "RS Harapan", KindKlien, "u-1")
	inv := &recordingInvalidator{}
	svc := NewService(nil, repo, nil, inv)

	_, err := svc.SetActive(context.Background(), admin(), "t-1", true)
	require.NoError(t, err)
	assert.Empty(t, inv.invalidated)
}

func TestSetActiveUnknownTenant(t *testing.T) {
	svc := NewService(nil, newMockRepo(), nil, nil)
	_, err := svc.SetActive(context.Background(), admin(), "nope", false)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
