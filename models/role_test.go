package models

import "testing"

func TestValidateRolePermissions(t *testing.T) {
	if err := ValidateRolePermissions(); err != nil {
		t.Fatalf("permission table invalid: %v", err)
	}
}

func TestRoleIsValid(t *testing.T) {
	tests := []struct {
		role UserRole
		want bool
	}{
		{RoleSuperAdmin, true},
		{RolePlatformAdmin, true},
		{RoleTenantAdmin, true},
		{RoleEndUser, true},
		{RoleCollaborator, true},
		{UserRole("ROOT"), false},
		{UserRole(""), false},
	}
	for _, tt := range tests {
		if got := tt.role.IsValid(); got != tt.want {
			t.Errorf("IsValid(%q) = %v, want %v", tt.role, got, tt.want)
		}
	}
}

func TestAdminTiersAreSupersets(t *testing.T) {
	contains := func(set []string, perm string) bool {
		for _, p := range set {
			if p == perm {
				return true
			}
		}
		return false
	}

	for _, perm := range RolePermissions[RoleEndUser] {
		if !contains(RolePermissions[RoleTenantAdmin], perm) {
			t.Errorf("tenant admin missing end-user permission %q", perm)
		}
	}
	for _, perm := range RolePermissions[RoleTenantAdmin] {
		if !contains(RolePermissions[RolePlatformAdmin], perm) {
			t.Errorf("platform admin missing tenant-admin permission %q", perm)
		}
	}
}

func TestHasPermission(t *testing.T) {
	tests := []struct {
		name string
		role UserRole
		perm string
		want bool
	}{
		{"platform admin manages tenants", RolePlatformAdmin, PermManageAllTenants, true},
		{"super admin matches platform admin", RoleSuperAdmin, PermManageAllTenants, true},
		{"tenant admin cannot manage all tenants", RoleTenantAdmin, PermManageAllTenants, false},
		{"tenant admin manages own users", RoleTenantAdmin, PermManageTenantUsers, true},
		{"end user views dashboard", RoleEndUser, PermViewDashboard, true},
		{"end user cannot manage tenant", RoleEndUser, PermManageTenant, false},
		{"collaborator sees shared projects", RoleCollaborator, PermViewSharedProjects, true},
		{"collaborator cannot create projects", RoleCollaborator, PermCreateProject, false},
		{"unknown role has nothing", UserRole("ROOT"), PermViewDashboard, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasPermission(tt.role, tt.perm); got != tt.want {
				t.Errorf("HasPermission(%q, %q) = %v, want %v", tt.role, tt.perm, got, tt.want)
			}
		})
	}
}

func TestPermissionsForRoleReturnsCopy(t *testing.T) {
	perms := PermissionsForRole(RoleEndUser)
	if len(perms) == 0 {
		t.Fatal("expected permissions for END_USER")
	}
	perms[0] = "tampered"
	if RolePermissions[RoleEndUser][0] == "tampered" {
		t.Error("PermissionsForRole leaked the internal slice")
	}
}
