package tenants

import "time"

// Kind distinguishes service-provider companies from client facilities.
type Kind string

const (
	KindMitra Kind = "mitra"
	KindKlien Kind = "klien"
)

// Valid reports whether the kind is one of the enumerated values.
func (k Kind) Valid() bool {
	return k == KindMitra || k == KindKlien
}

// Tenant is a company record. Profiles and equipment reference it.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Kind      Kind      `json:"kind"`
	Address   string    `json:"address,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
