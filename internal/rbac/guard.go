package rbac

// Subject is the guard's read-only view of a profile. Repositories in other
// packages adapt their records to this shape.
type Subject struct {
	UserID   string `json:"user_id"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role"`
	TenantID string `json:"tenant_id,omitempty"`
	Active   bool   `json:"active"`
}

// State is the guard input: session/profile resolution status plus the
// requirements configured for the route.
type State struct {
	// Loading is true while session or profile resolution is still in
	// flight. It short-circuits every other field.
	Loading bool
	// Principal is the authenticated identity id, empty when anonymous.
	Principal string
	// Subject is the resolved profile, nil when the principal has none.
	Subject *Subject
	// RequiredRole, when set, must equal the subject role exactly. No
	// hierarchy: super_admin does not satisfy a required admin_mitra.
	RequiredRole Role
	// RequiredPermission, when set, must be granted by the matrix.
	RequiredPermission Permission
}

// Decision is a terminal guard outcome, except DecisionLoading which is the
// sole non-terminal state.
type Decision int

const (
	DecisionLoading Decision = iota
	DecisionUnauthenticated
	DecisionProfileMissing
	DecisionForbiddenRole
	DecisionForbiddenPermission
	DecisionAuthorized
)

// String implements fmt.Stringer for log output.
func (d Decision) String() string {
	switch d {
	case DecisionLoading:
		return "loading"
	case DecisionUnauthenticated:
		return "unauthenticated"
	case DecisionProfileMissing:
		return "profile_missing"
	case DecisionForbiddenRole:
		return "forbidden_role"
	case DecisionForbiddenPermission:
		return "forbidden_permission"
	case DecisionAuthorized:
		return "authorized"
	default:
		return "unknown"
	}
}

// Evaluate runs the guard state machine. Rules apply in fixed order once
// loading completes; role and permission requirements are independent and
// both must pass when both are set. Unknown roles fail closed through
// HasPermission.
func Evaluate(s State) Decision {
	if s.Loading {
		return DecisionLoading
	}
	if s.Principal == "" {
		return DecisionUnauthenticated
	}
	// Deactivated accounts are treated as having no usable profile.
	if s.Subject == nil || !s.Subject.Active {
		return DecisionProfileMissing
	}
	if s.RequiredRole != "" && s.Subject.Role != s.RequiredRole {
		return DecisionForbiddenRole
	}
	if s.RequiredPermission != "" && !HasPermission(s.Subject.Role, s.RequiredPermission) {
		return DecisionForbiddenPermission
	}
	return DecisionAuthorized
}
