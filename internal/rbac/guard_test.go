package rbac

import "testing"

func subj(role Role) *Subject {
	return &Subject{UserID: "u1", Role: role, Active: true}
}

func TestEvaluateLoadingShortCircuits(t *testing.T) {
	states := []State{
		{Loading: true},
		{Loading: true, Principal: "u1", Subject: subj(RoleSuperAdmin)},
		{Loading: true, RequiredRole: RoleSuperAdmin},
		{Loading: true, RequiredPermission: PermUsersManage},
	}
	for _, s := range states {
		if got := Evaluate(s); got != DecisionLoading {
			t.Fatalf("Evaluate(%+v) = %s, want loading", s, got)
		}
	}
}

func TestEvaluateUnauthenticatedRegardlessOfRequirements(t *testing.T) {
	states := []State{
		{},
		{RequiredRole: RoleAdminMitra},
		{RequiredPermission: PermEquipmentView},
		{Subject: subj(RoleSuperAdmin)}, // subject without principal still redirects
	}
	for _, s := range states {
		if got := Evaluate(s); got != DecisionUnauthenticated {
			t.Fatalf("Evaluate(%+v) = %s, want unauthenticated", s, got)
		}
	}
}

func TestEvaluateProfileMissingIsNotARedirect(t *testing.T) {
	if got := Evaluate(State{Principal: "u1"}); got != DecisionProfileMissing {
		t.Fatalf("nil subject: got %s", got)
	}
	inactive := subj(RoleAdminMitra)
	inactive.Active = false
	if got := Evaluate(State{Principal: "u1", Subject: inactive}); got != DecisionProfileMissing {
		t.Fatalf("inactive subject: got %s", got)
	}
}

func TestEvaluateExactRoleNoHierarchy(t *testing.T) {
	// super_admin does not satisfy a required admin_mitra, and vice versa.
	s := State{Principal: "u1", Subject: subj(RoleSuperAdmin), RequiredRole: RoleAdminMitra}
	if got := Evaluate(s); got != DecisionForbiddenRole {
		t.Fatalf("super_admin vs required admin_mitra: got %s", got)
	}
	s = State{Principal: "u1", Subject: subj(RoleAdminMitra), RequiredRole: RoleSuperAdmin}
	if got := Evaluate(s); got != DecisionForbiddenRole {
		t.Fatalf("admin_mitra vs required super_admin: got %s", got)
	}
	s = State{Principal: "u1", Subject: subj(RoleAdminMitra), RequiredRole: RoleAdminMitra}
	if got := Evaluate(s); got != DecisionAuthorized {
		t.Fatalf("exact match: got %s", got)
	}
}

func TestEvaluatePermissionRequirement(t *testing.T) {
	s := State{Principal: "u1", Subject: subj(RoleOperatorKlien), RequiredPermission: PermUsersManage}
	if got := Evaluate(s); got != DecisionForbiddenPermission {
		t.Fatalf("got %s", got)
	}
	s.RequiredPermission = PermEquipmentView
	if got := Evaluate(s); got != DecisionAuthorized {
		t.Fatalf("got %s", got)
	}
}

func TestEvaluateRoleAndPermissionAreIndependent(t *testing.T) {
	// Both configured: both must pass, role first.
	s := State{
		Principal:          "u1",
		Subject:            subj(RoleTeknisiMitra),
		RequiredRole:       RoleTeknisiMitra,
		RequiredPermission: PermUsersManage,
	}
	if got := Evaluate(s); got != DecisionForbiddenPermission {
		t.Fatalf("role ok perm denied: got %s", got)
	}
	s.RequiredRole = RoleSuperAdmin
	if got := Evaluate(s); got != DecisionForbiddenRole {
		t.Fatalf("role denied evaluated before permission: got %s", got)
	}
	s.RequiredRole = RoleTeknisiMitra
	s.RequiredPermission = PermCalibrationManage
	if got := Evaluate(s); got != DecisionAuthorized {
		t.Fatalf("both pass: got %s", got)
	}
}

func TestEvaluateUnknownStoredRoleDeniesPermissions(t *testing.T) {
	rogue := &Subject{UserID: "u1", Role: "director", Active: true}
	s := State{Principal: "u1", Subject: rogue, RequiredPermission: PermEquipmentView}
	if got := Evaluate(s); got != DecisionForbiddenPermission {
		t.Fatalf("unknown role must fail closed: got %s", got)
	}
}
