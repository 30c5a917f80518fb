package auth

import "time"

// Identity represents an account record in the identity store. It is the
// server-side counterpart of a hosted-auth user: profiles reference it by id.
type Identity struct {
	ID               string
	Email            string
	PasswordHash     string
	EmailConfirmedAt *time.Time
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Confirmed reports whether the identity's email has been confirmed.
func (i Identity) Confirmed() bool {
	return i.EmailConfirmedAt != nil
}
