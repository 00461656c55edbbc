package models

import "fmt"

// UserRole is the closed set of actor categories. Authorization is
// role-intrinsic: every capability a user has comes from this table, not
// from per-user grants.
type UserRole string

const (
	RoleSuperAdmin    UserRole = "SUPER_ADMIN"
	RolePlatformAdmin UserRole = "PLATFORM_ADMIN"
	RoleTenantAdmin   UserRole = "TENANT_ADMIN"
	RoleEndUser       UserRole = "END_USER"
	RoleCollaborator  UserRole = "COLLABORATOR"
)

// AllRoles enumerates every role the platform recognizes
var AllRoles = []UserRole{
	RoleSuperAdmin,
	RolePlatformAdmin,
	RoleTenantAdmin,
	RoleEndUser,
	RoleCollaborator,
}

// IsValid reports whether r is one of the declared roles
func (r UserRole) IsValid() bool {
	for _, role := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// IsPlatformLevel reports whether the role bypasses tenant scoping
func (r UserRole) IsPlatformLevel() bool {
	return r == RoleSuperAdmin || r == RolePlatformAdmin
}

// Permission tags, grouped by the role tier that introduces them
const (
	PermManageAllTenants       = "manage:all:tenants"
	PermManageAllUsers         = "manage:all:users"
	PermViewAllAnalytics       = "view:all:analytics"
	PermManagePlatformSettings = "manage:platform:settings"
	PermViewSystemHealth       = "view:system:health"

	PermManageTenant         = "manage:tenant"
	PermManageTenantUsers    = "manage:tenant:users"
	PermViewTenantAnalytics  = "view:tenant:analytics"
	PermManageTenantSettings = "manage:tenant:settings"
	PermConfigureSSO         = "configure:sso"

	PermViewDashboard     = "view:dashboard"
	PermViewProjects      = "view:projects"
	PermViewReports       = "view:reports"
	PermCreateProject     = "create:project"
	PermUpdateOwnProject  = "update:own:project"
	PermManageProfile     = "manage:profile"
	PermViewNotifications = "view:notifications"

	PermViewSharedProjects = "view:shared:projects"
	PermCommentOnShared    = "comment:shared"
)

var endUserPermissions = []string{
	PermViewDashboard,
	PermViewProjects,
	PermViewReports,
	PermCreateProject,
	PermUpdateOwnProject,
	PermManageProfile,
	PermViewNotifications,
}

var tenantAdminPermissions = append([]string{
	PermManageTenant,
	PermManageTenantUsers,
	PermViewTenantAnalytics,
	PermManageTenantSettings,
	PermConfigureSSO,
}, endUserPermissions...)

var platformAdminPermissions = append([]string{
	PermManageAllTenants,
	PermManageAllUsers,
	PermViewAllAnalytics,
	PermManagePlatformSettings,
	PermViewSystemHealth,
}, tenantAdminPermissions...)

// RolePermissions is the single static role -> capability-set mapping.
// Admin tiers are strict supersets of the tiers below them.
var RolePermissions = map[UserRole][]string{
	RoleSuperAdmin:    platformAdminPermissions,
	RolePlatformAdmin: platformAdminPermissions,
	RoleTenantAdmin:   tenantAdminPermissions,
	RoleEndUser:       endUserPermissions,
	RoleCollaborator: {
		PermViewDashboard,
		PermViewSharedProjects,
		PermCommentOnShared,
		PermManageProfile,
		PermViewNotifications,
	},
}

// PermissionsForRole returns the capability set for a role. Unknown roles
// get an empty set.
func PermissionsForRole(role UserRole) []string {
	perms, ok := RolePermissions[role]
	if !ok {
		return nil
	}
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}

// HasPermission reports whether the role carries the given permission tag
func HasPermission(role UserRole, permission string) bool {
	for _, p := range RolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}

// ValidateRolePermissions checks the permission table covers every declared
// role. Called once at startup; a gap here is a programming error.
func ValidateRolePermissions() error {
	for _, role := range AllRoles {
		perms, ok := RolePermissions[role]
		if !ok {
			return fmt.Errorf("role %s has no permission entry", role)
		}
		if len(perms) == 0 {
			return fmt.Errorf("role %s has an empty permission set", role)
		}
	}
	return nil
}
