// Package rbac holds the role/permission model and the route guard built on it.
//
// Every authorization decision in the application funnels through this
// package. Handlers must not compare role strings directly; policy changes
// happen here and nowhere else.
package rbac

import "strings"

// Role is an enumerated privilege grouping. Checks are set-membership
// against the permission matrix, never numeric comparison.
type Role string

const (
	RoleSuperAdmin    Role = "super_admin"
	RoleAdminMitra    Role = "admin_mitra"
	RoleTeknisiMitra  Role = "teknisi_mitra"
	RoleAdminKlien    Role = "admin_klien"
	RoleOperatorKlien Role = "operator_klien"
)

// Permission is an atomic capability gated by the matrix below.
type Permission string

const (
	PermUsersManage       Permission = "users.manage"
	PermCompaniesManage   Permission = "companies.manage"
	PermReportsView       Permission = "reports.view"
	PermEquipmentView     Permission = "equipment.view"
	PermEquipmentManage   Permission = "equipment.manage"
	PermMaintenanceView   Permission = "maintenance.view"
	PermMaintenanceManage Permission = "maintenance.manage"
	PermCalibrationView   Permission = "calibration.view"
	PermCalibrationManage Permission = "calibration.manage"
	PermAuditView         Permission = "audit.view"
)

// allRoles enumerates every recognised role.
var allRoles = []Role{
	RoleSuperAdmin,
	RoleAdminMitra,
	RoleTeknisiMitra,
	RoleAdminKlien,
	RoleOperatorKlien,
}

// matrix is the static role→permission table. It is built once at package
// init and must never be mutated afterwards; concurrent guard evaluations
// read it without locking.
var matrix map[Permission]map[Role]struct{}

func init() {
	grants := map[Permission][]Role{
		PermUsersManage:       {RoleSuperAdmin},
		PermCompaniesManage:   {RoleSuperAdmin},
		PermAuditView:         {RoleSuperAdmin},
		PermReportsView:       {RoleSuperAdmin, RoleAdminMitra, RoleAdminKlien},
		PermEquipmentView:     allRoles,
		PermEquipmentManage:   {RoleSuperAdmin, RoleAdminMitra, RoleAdminKlien},
		PermMaintenanceView:   allRoles,
		PermMaintenanceManage: {RoleSuperAdmin, RoleAdminMitra, RoleTeknisiMitra},
		PermCalibrationView:   allRoles,
		PermCalibrationManage: {RoleSuperAdmin, RoleTeknisiMitra},
	}
	matrix = make(map[Permission]map[Role]struct{}, len(grants))
	for perm, roles := range grants {
		set := make(map[Role]struct{}, len(roles))
		for _, role := range roles {
			set[role] = struct{}{}
		}
		matrix[perm] = set
	}
}

// HasPermission reports whether the role holds the permission. Unknown
// roles and unknown permissions fail closed. It never panics.
func HasPermission(role Role, perm Permission) bool {
	set, ok := matrix[perm]
	if !ok {
		return false
	}
	_, ok = set[role]
	return ok
}

// ParseRole normalizes a stored role string. Anything outside the
// enumerated set is rejected; callers treat that as "no role".
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.TrimSpace(strings.ToLower(raw)))
	for _, known := range allRoles {
		if role == known {
			return role, true
		}
	}
	return "", false
}

// Roles returns the enumerated roles in display order.
func Roles() []Role {
	out := make([]Role, len(allRoles))
	copy(out, allRoles)
	return out
}

// Permissions lists every capability a role holds, in matrix order.
func Permissions(role Role) []Permission {
	var out []Permission
	for perm, set := range matrix {
		if _, ok := set[role]; ok {
			out = append(out, perm)
		}
	}
	return out
}
