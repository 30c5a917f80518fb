package equipment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alkesia/alkesia/internal/platform/httpx"
	"github.com/alkesia/alkesia/internal/shared"
)

// Repository provides PostgreSQL backed persistence for equipment and its
// maintenance/calibration history.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const equipmentColumns = `id, tenant_id, name, serial_number, COALESCE(category, ''), status, purchased_at, created_at, updated_at`

// List returns equipment, optionally restricted to one tenant.
func (r *Repository) List(ctx context.Context, tenantID string) ([]Equipment, error) {
	query := `SELECT ` + equipmentColumns + ` FROM equipment`
	args := []any{}
	if tenantID != "" {
		query += ` WHERE tenant_id = $1`
		args = append(args, tenantID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Equipment
	for rows.Next() {
		eq, err := scanEquipment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *eq)
	}
	return out, rows.Err()
}

// Get fetches one piece of equipment.
func (r *Repository) Get(ctx context.Context, id string) (*Equipment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+equipmentColumns+` FROM equipment WHERE id = $1`, id)
	eq, err := scanEquipment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return eq, nil
}

// Create registers equipment. Serial numbers are unique per tenant.
func (r *Repository) Create(ctx context.Context, ne NewEquipment) (*Equipment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO equipment (id, tenant_id, name, serial_number, category, status, purchased_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), 'active', $6, NOW(), NOW())
		RETURNING `+equipmentColumns,
		uuid.NewString(), ne.TenantID, ne.Name, ne.SerialNumber, ne.Category, ne.PurchasedAt)
	eq, err := scanEquipment(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("%w: serial number already registered for this tenant", httpx.ErrDuplicate)
		}
		return nil, err
	}
	return eq, nil
}

// UpdateStatus moves equipment through its lifecycle.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE equipment SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListMaintenance returns maintenance history for one piece of equipment.
func (r *Repository) ListMaintenance(ctx context.Context, equipmentID string) ([]MaintenanceRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, equipment_id, performed_at, next_due_at, technician_id, COALESCE(notes, ''), created_at
		FROM maintenance_records WHERE equipment_id = $1 ORDER BY performed_at DESC`, equipmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MaintenanceRecord
	for rows.Next() {
		var m MaintenanceRecord
		if err := rows.Scan(&m.ID, &m.EquipmentID, &m.PerformedAt, &m.NextDueAt, &m.TechnicianID, &m.Notes, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// AddMaintenance appends a maintenance record.
func (r *Repository) AddMaintenance(ctx context.Context, m MaintenanceRecord) (*MaintenanceRecord, error) {
	m.ID = uuid.NewString()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO maintenance_records (id, equipment_id, performed_at, next_due_at, technician_id, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NOW())
		RETURNING created_at`,
		m.ID, m.EquipmentID, m.PerformedAt, m.NextDueAt, m.TechnicianID, m.Notes).Scan(&m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListCalibrations returns calibration history for one piece of equipment.
func (r *Repository) ListCalibrations(ctx context.Context, equipmentID string) ([]CalibrationRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, equipment_id, calibrated_at, expires_at, certificate_no, technician_id, created_at
		FROM calibration_records WHERE equipment_id = $1 ORDER BY calibrated_at DESC`, equipmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CalibrationRecord
	for rows.Next() {
		var c CalibrationRecord
		if err := rows.Scan(&c.ID, &c.EquipmentID, &c.CalibratedAt, &c.ExpiresAt, &c.CertificateNo, &c.TechnicianID, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AddCalibration appends a calibration record.
func (r *Repository) AddCalibration(ctx context.Context, c CalibrationRecord) (*CalibrationRecord, error) {
	c.ID = uuid.NewString()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO calibration_records (id, equipment_id, calibrated_at, expires_at, certificate_no, technician_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING created_at`,
		c.ID, c.EquipmentID, c.CalibratedAt, c.ExpiresAt, c.CertificateNo, c.TechnicianID).Scan(&c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// DueForUpkeep lists equipment ids whose latest maintenance or calibration
// falls due within the window. Used by the background scan.
func (r *Repository) DueForUpkeep(ctx context.Context, window time.Duration) ([]string, error) {
	cutoff := time.Now().Add(window)
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT e.id FROM equipment e
		WHERE e.status = 'active' AND (
			EXISTS (
				SELECT 1 FROM maintenance_records m
				WHERE m.equipment_id = e.id AND m.next_due_at IS NOT NULL AND m.next_due_at <= $1
			) OR EXISTS (
				SELECT 1 FROM calibration_records c
				WHERE c.equipment_id = e.id AND c.expires_at <= $1
			)
		)`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanEquipment(row pgx.Row) (*Equipment, error) {
	var eq Equipment
	err := row.Scan(&eq.ID, &eq.TenantID, &eq.Name, &eq.SerialNumber, &eq.Category, &eq.Status, &eq.PurchasedAt, &eq.CreatedAt, &eq.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &eq, nil
}
