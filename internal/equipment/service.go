package equipment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alkesia/alkesia/internal/platform/httpx"
	"github.com/alkesia/alkesia/internal/rbac"
	"github.com/alkesia/alkesia/internal/shared"
)

// RepositoryPort defines data access methods for equipment.
type RepositoryPort interface {
	List(ctx context.Context, tenantID string) ([]Equipment, error)
	Get(ctx context.Context, id string) (*Equipment, error)
	Create(ctx context.Context, ne NewEquipment) (*Equipment, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
	ListMaintenance(ctx context.Context, equipmentID string) ([]MaintenanceRecord, error)
	AddMaintenance(ctx context.Context, m MaintenanceRecord) (*MaintenanceRecord, error)
	ListCalibrations(ctx context.Context, equipmentID string) ([]CalibrationRecord, error)
	AddCalibration(ctx context.Context, c CalibrationRecord) (*CalibrationRecord, error)
	DueForUpkeep(ctx context.Context, window time.Duration) ([]string, error)
}

// Auditor records administrative actions.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles equipment inventory business rules. Every read and write
// is scoped to the actor's tenant unless the actor is super_admin.
type Service struct {
	logger *slog.Logger
	repo   RepositoryPort
	audit  Auditor
}

// NewService builds a Service instance.
func NewService(logger *slog.Logger, repo RepositoryPort, audit Auditor) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, repo: repo, audit: audit}
}

// List returns equipment visible to the actor.
func (s *Service) List(ctx context.Context, actor *rbac.Subject) ([]Equipment, error) {
	if actor == nil {
		return nil, httpx.ErrForbidden
	}
	if actor.Role == rbac.RoleSuperAdmin {
		return s.repo.List(ctx, "")
	}
	if actor.TenantID == "" {
		return nil, nil
	}
	return s.repo.List(ctx, actor.TenantID)
}

// Get fetches one piece of equipment, enforcing tenant visibility.
func (s *Service) Get(ctx context.Context, actor *rbac.Subject, id string) (*Equipment, error) {
	eq, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.visible(actor, eq); err != nil {
		return nil, err
	}
	return eq, nil
}

// Register adds equipment to the actor's tenant. super_admin may register
// for any tenant; everyone else only for their own.
func (s *Service) Register(ctx context.Context, actor *rbac.Subject, ne NewEquipment) (*Equipment, error) {
	ne.Name = strings.TrimSpace(ne.Name)
	ne.SerialNumber = strings.TrimSpace(ne.SerialNumber)
	if ne.Name == "" || ne.SerialNumber == "" {
		return nil, fmt.Errorf("%w: name and serial number required", httpx.ErrValidation)
	}
	if actor == nil {
		return nil, httpx.ErrForbidden
	}
	if actor.Role != rbac.RoleSuperAdmin {
		if actor.TenantID == "" {
			return nil, httpx.ErrForbidden
		}
		ne.TenantID = actor.TenantID
	}
	if ne.TenantID == "" {
		return nil, fmt.Errorf("%w: tenant required", httpx.ErrValidation)
	}
	eq, err := s.repo.Create(ctx, ne)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, "equipment.registered", eq.ID, map[string]any{"serial_number": eq.SerialNumber})
	return eq, nil
}

// ChangeStatus moves equipment through its lifecycle.
func (s *Service) ChangeStatus(ctx context.Context, actor *rbac.Subject, id string, status Status) (*Equipment, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, status)
	}
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	s.record(ctx, actor, "equipment.status_changed", id, map[string]any{"status": string(status)})
	return s.repo.Get(ctx, id)
}

// Maintenance returns the maintenance history.
func (s *Service) Maintenance(ctx context.Context, actor *rbac.Subject, equipmentID string) ([]MaintenanceRecord, error) {
	if _, err := s.Get(ctx, actor, equipmentID); err != nil {
		return nil, err
	}
	return s.repo.ListMaintenance(ctx, equipmentID)
}

// LogMaintenance appends a maintenance record performed by the actor.
func (s *Service) LogMaintenance(ctx context.Context, actor *rbac.Subject, equipmentID string, performedAt time.Time, nextDueAt *time.Time, notes string) (*MaintenanceRecord, error) {
	if performedAt.IsZero() {
		return nil, fmt.Errorf("%w: performed_at required", httpx.ErrValidation)
	}
	if _, err := s.Get(ctx, actor, equipmentID); err != nil {
		return nil, err
	}
	rec, err := s.repo.AddMaintenance(ctx, MaintenanceRecord{
		EquipmentID:  equipmentID,
		PerformedAt:  performedAt,
		NextDueAt:    nextDueAt,
		TechnicianID: actor.UserID,
		Notes:        strings.TrimSpace(notes),
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, "maintenance.logged", equipmentID, nil)
	return rec, nil
}

// Calibrations returns the calibration history.
func (s *Service) Calibrations(ctx context.Context, actor *rbac.Subject, equipmentID string) ([]CalibrationRecord, error) {
	if _, err := s.Get(ctx, actor, equipmentID); err != nil {
		return nil, err
	}
	return s.repo.ListCalibrations(ctx, equipmentID)
}

// LogCalibration appends a calibration certificate.
func (s *Service) LogCalibration(ctx context.Context, actor *rbac.Subject, equipmentID, certificateNo string, calibratedAt, expiresAt time.Time) (*CalibrationRecord, error) {
	if certificateNo == "" || calibratedAt.IsZero() || expiresAt.IsZero() {
		return nil, fmt.Errorf("%w: certificate_no, calibrated_at and expires_at required", httpx.ErrValidation)
	}
	if !expiresAt.After(calibratedAt) {
		return nil, fmt.Errorf("%w: expires_at must follow calibrated_at", httpx.ErrValidation)
	}
	if _, err := s.Get(ctx, actor, equipmentID); err != nil {
		return nil, err
	}
	rec, err := s.repo.AddCalibration(ctx, CalibrationRecord{
		EquipmentID:   equipmentID,
		CalibratedAt:  calibratedAt,
		ExpiresAt:     expiresAt,
		CertificateNo: certificateNo,
		TechnicianID:  actor.UserID,
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, "calibration.logged", equipmentID, map[string]any{"certificate_no": certificateNo})
	return rec, nil
}

// FlagDueForUpkeep marks equipment with upkeep falling due inside the
// window as under maintenance. Returns how many were flagged.
func (s *Service) FlagDueForUpkeep(ctx context.Context, window time.Duration) (int, error) {
	ids, err := s.repo.DueForUpkeep(ctx, window)
	if err != nil {
		return 0, err
	}
	flagged := 0
	for _, id := range ids {
		if err := s.repo.UpdateStatus(ctx, id, StatusMaintenance); err != nil {
			s.logger.Warn("flag upkeep", slog.String("equipment_id", id), slog.Any("error", err))
			continue
		}
		flagged++
	}
	return flagged, nil
}

func (s *Service) visible(actor *rbac.Subject, eq *Equipment) error {
	if actor == nil {
		return httpx.ErrForbidden
	}
	if actor.Role == rbac.RoleSuperAdmin {
		return nil
	}
	if actor.TenantID == "" || actor.TenantID != eq.TenantID {
		// Hidden rather than forbidden: don't leak other tenants' inventory.
		return shared.ErrNotFound
	}
	return nil
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
		Entity:   "equipment",
		EntityID: entityID,
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
