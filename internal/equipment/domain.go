package equipment

import "time"

// Status tracks the lifecycle of a piece of equipment.
type Status string

const (
	StatusActive      Status = "active"
	StatusMaintenance Status = "maintenance"
	StatusRetired     Status = "retired"
)

// Valid reports whether the status is enumerated.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusMaintenance || s == StatusRetired
}

// Equipment is a registered medical device owned by a tenant.
type Equipment struct {
	ID           string     `json:"id"`
	TenantID     string     `json:"tenant_id"`
	Name         string     `json:"name"`
	SerialNumber string     `json:"serial_number"`
	Category     string     `json:"category,omitempty"`
	Status       Status     `json:"status"`
	PurchasedAt  *time.Time `json:"purchased_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// MaintenanceRecord logs a completed maintenance visit. The next due date
// is supplied by the technician; no scheduling is computed here.
type MaintenanceRecord struct {
	ID           string     `json:"id"`
	EquipmentID  string     `json:"equipment_id"`
	PerformedAt  time.Time  `json:"performed_at"`
	NextDueAt    *time.Time `json:"next_due_at,omitempty"`
	TechnicianID string     `json:"technician_id"`
	Notes        string     `json:"notes,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// CalibrationRecord logs a calibration certificate.
type CalibrationRecord struct {
	ID            string    `json:"id"`
	EquipmentID   string    `json:"equipment_id"`
	CalibratedAt  time.Time `json:"calibrated_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	CertificateNo string    `json:"certificate_no"`
	TechnicianID  string    `json:"technician_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewEquipment carries the fields accepted on registration.
type NewEquipment struct {
	TenantID     string
	Name         string
	SerialNumber string
	Category     string
	PurchasedAt  *time.Time
}
