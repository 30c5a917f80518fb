package profiles

import (
	"time"

	"github.com/alkesia/alkesia/internal/rbac"
)

// Profile is the identity-linked account record managed by administrators.
// Profiles are never deleted in normal flow; they are deactivated.
type Profile struct {
	UserID      string     `json:"user_id"`
	FullName    string     `json:"full_name"`
	Phone       string     `json:"phone,omitempty"`
	Role        string     `json:"role"`
	TenantID    *string    `json:"tenant_id,omitempty"`
	TenantName  string     `json:"tenant_name,omitempty"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// Subject adapts the profile to the guard's view. The stored role string is
// passed through untouched: anything outside the enumerated set fails every
// permission check downstream.
func (p Profile) Subject() *rbac.Subject {
	subj := &rbac.Subject{
		UserID:   p.UserID,
		FullName: p.FullName,
		Role:     rbac.Role(p.Role),
		Active:   p.IsActive,
	}
	if p.TenantID != nil {
		subj.TenantID = *p.TenantID
	}
	return subj
}

// NewProfile carries the fields needed to provision a profile row.
type NewProfile struct {
	UserID   string
	FullName string
	Phone    string
	Role     string
	TenantID *string
}
