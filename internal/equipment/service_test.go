package equipment

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
	equipment    map[string]*Equipment
	maintenance  map[string][]MaintenanceRecord
	calibrations map[string][]CalibrationRecord
	due          []string
	nextID       int
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		equipment:    make(map[string]*Equipment),
		maintenance:  make(map[string][]MaintenanceRecord),
		calibrations: make(map[string][]CalibrationRecord),
	}
}

func (m *mockRepo) seed(id, tenantID string, status Status) {
	m.equipment[id] = &Equipment{ID: id, TenantID: tenantID, Name: "Infusion Pump", SerialNumber: "SN-" + id, Status: status}
}

func (m *mockRepo) List(ctx context.Context, tenantID string) ([]Equipment, error) {
	var out []Equipment
	for _, eq := range m.equipment {
		if tenantID == "" || eq.TenantID == tenantID {
			out = append(out, *eq)
		}
	}
	return out, nil
}

func (m *mockRepo) Get(ctx context.Context, id string) (*Equipment, error) {
	eq, ok := m.equipment[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *eq
	return &cp, nil
}

func (m *mockRepo) Create(ctx context.Context, ne NewEquipment) (*Equipment, error) {
	m.nextID++
	eq := &Equipment{ID: string(rune('a' + m.nextID)), TenantID: ne.TenantID, Name: ne.Name, SerialNumber: ne.SerialNumber, Status: StatusActive}
	m.equipment[eq.ID] = eq
	cp := *eq
	return &cp, nil
}

func (m *mockRepo) UpdateStatus(ctx context.Context, id string, status Status) error {
	eq, ok := m.equipment[id]
	if !ok {
		return shared.ErrNotFound
	}
	eq.Status = status
	return nil
}

func (m *mockRepo) ListMaintenance(ctx context.Context, equipmentID string) ([]MaintenanceRecord, error) {
	return m.maintenance[equipmentID], nil
}

func (m *mockRepo) AddMaintenance(ctx context.Context, rec MaintenanceRecord) (*MaintenanceRecord, error) {
	rec.CreatedAt = time.Now()
	m.maintenance[rec.EquipmentID] = append(m.maintenance[rec.EquipmentID], rec)
	return &rec, nil
}

func (m *mockRepo) ListCalibrations(ctx context.Context, equipmentID string) ([]CalibrationRecord, error) {
	return m.calibrations[equipmentID], nil
}

func (m *mockRepo) AddCalibration(ctx context.Context, rec CalibrationRecord) (*CalibrationRecord, error) {
	rec.CreatedAt = time.Now()
	m.calibrations[rec.EquipmentID] = append(m.calibrations[rec.EquipmentID], rec)
	return &rec, nil
}

func (m *mockRepo) DueForUpkeep(ctx context.Context, window time.Duration) ([]string, error) {
	return m.due, nil
}

func superAdmin() *rbac.Subject {
	return &rbac.Subject{UserID: "root", Role: rbac.RoleSuperAdmin, Active: true}
}

func klienOperator(tenantID string) *rbac.Subject {
	return &rbac.Subject{UserID: "op", Role: rbac.RoleOperatorKlien, TenantID: tenantID, Active: true}
}

func TestListScopesToTenant(t *testing.T) {
	repo := newMockRepo()
	repo.seed("e1", "t-1", StatusActive)
	repo.seed("e2", "t-2", StatusActive)
	svc := NewService(nil, repo, nil)

	all, err := svc.List(context.Background(), superAdmin())
	require.NoError(t, err)
	assert.Len(t, all, 2)

	scoped, err := svc.List(context.Background(), klienOperator("t-1"))
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "e1", scoped[0].ID)
}

func TestGetHidesOtherTenantsEquipment(t *testing.T) {
	repo := newMockRepo()
	repo.seed("e1", "t-1", StatusActive)
	svc := NewService(nil, repo, nil)

	_, err := svc.Get(context.Background(), klienOperator("t-2"), "e1")
	require.ErrorIs(t, err, shared.ErrNotFound)

	eq, err := svc.Get(context.Background(), klienOperator("t-1"), "e1")
	require.NoError(t, err)
	assert.Equal(t, "e1", eq.ID)
}

func TestRegisterForcesActorTenant(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(nil, repo, nil)

	actor := &rbac.Subject{UserID: "adm", Role: rbac.RoleAdminKlien, TenantID: "t-5", Active: true}
	eq, err := svc.Register(context.Background(), actor, NewEquipment{
		TenantID:     "t-elsewhere", // ignored for non-super_admin callers
		Name:         "Ventilator",
		SerialNumber: "VN-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "t-5", eq.TenantID)
}

func TestRegisterValidation(t *testing.T) {
	svc := NewService(nil, newMockRepo(), nil)
	_, err := svc.Register(context.Background(), superAdmin(), NewEquipment{Name: " ", SerialNumber: "SN"})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestChangeStatusRejectsUnknownStatus(t *testing.T) {
	repo := newMockRepo()
	repo.seed("e1", "t-1", StatusActive)
	svc := NewService(nil, repo, nil)

	_, err := svc.ChangeStatus(context.Background(), superAdmin(), "e1", "exploded")
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestLogCalibrationRequiresOrderedDates(t *testing.T) {
	repo := newMockRepo()
	repo.seed("e1", "t-1", StatusActive)
	svc := NewService(nil, repo, nil)

	now := time.Now()
	_, err := svc.LogCalibration(context.Background(), superAdmin(), "e1", "CERT-1", now, now.Add(-time.Hour))
	require.ErrorIs(t, err, httpx.ErrValidation)

	rec, err := svc.LogCalibration(context.Background(), superAdmin(), "e1", "CERT-1", now, now.AddDate(1, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, "root", rec.TechnicianID)
}

func TestFlagDueForUpkeep(t *testing.T) {
	repo := newMockRepo()
	repo.seed("e1", "t-1", StatusActive)
	repo.seed("e2", "t-1", StatusActive)
	repo.due = []string{"e1", "e2", "missing"}
	svc := NewService(nil, repo, nil)

	flagged, err := svc.FlagDueForUpkeep(context.Background(), 14*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, flagged)
	assert.Equal(t, StatusMaintenance, repo.equipment["e1"].Status)
	assert.Equal(t, StatusMaintenance, repo.equipment["e2"].Status)
}
