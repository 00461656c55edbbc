package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"blicktrack/models"
)

func newDashboardFixture(t *testing.T) (*DashboardService, *EntitlementService, *testWorld) {
	t.Helper()
	db := newTestDB(t)
	logger := newTestLogger()
	ent := NewEntitlementService(db, logger)
	dash := NewDashboardService(db, ent, logger)

	plan := seedPlan(t, db, "PROFESSIONAL")
	acme := seedTenant(t, db, "Acme Corp", "acme", &plan.ID)
	globex := seedTenant(t, db, "Globex", "globex", &plan.ID)

	for _, key := range []string{"sbom-management", "product-threat-modeling", "secure-code-review", "compliance-reporting", "risk-assessment"} {
		f := seedFeatureRow(t, db, key, nil, false)
		seedPlanFeature(t, db, plan.ID, f.ID, true)
	}

	recent := time.Now().Add(-5 * 24 * time.Hour)
	stale := time.Now().Add(-40 * 24 * time.Hour)

	w := &testWorld{
		acme:          acme,
		globex:        globex,
		platformAdmin: seedUser(t, db, "ops@platform.test", models.RolePlatformAdmin, nil, &recent),
		acmeAdmin:     seedUser(t, db, "admin@acme.test", models.RoleTenantAdmin, &acme.ID, &recent),
		acmeDev:       seedUser(t, db, "dev@acme.test", models.RoleEndUser, &acme.ID, &stale),
		globexDev:     seedUser(t, db, "dev@globex.test", models.RoleEndUser, &globex.ID, &recent),
	}

	seedProject(t, db, acme.ID, w.acmeDev.ID, "acme-threat-model", models.ProjectStatusActive)
	seedProject(t, db, acme.ID, w.acmeDev.ID, "acme-sbom-review", models.ProjectStatusCompleted)
	seedProject(t, db, acme.ID, w.acmeAdmin.ID, "acme-compliance", models.ProjectStatusPlanning)
	seedProject(t, db, globex.ID, w.globexDev.ID, "globex-audit", models.ProjectStatusActive)

	return dash, ent, w
}

type testWorld struct {
	acme          *models.Tenant
	globex        *models.Tenant
	platformAdmin *models.User
	acmeAdmin     *models.User
	acmeDev       *models.User
	globexDev     *models.User
}

func TestStatsScopedByRole(t *testing.T) {
	dash, _, w := newDashboardFixture(t)
	ctx := context.Background()

	t.Run("platform admin sees the whole platform", func(t *testing.T) {
		stats, err := dash.GetStats(ctx, w.platformAdmin)
		if err != nil {
			t.Fatalf("GetStats: %v", err)
		}
		if stats.Scope != "platform" {
			t.Errorf("scope = %s, want platform", stats.Scope)
		}
		if stats.TotalTenants == nil || *stats.TotalTenants != 2 {
			t.Errorf("total tenants = %v, want 2", stats.TotalTenants)
		}
		if stats.TotalUsers != 4 {
			t.Errorf("total users = %d, want 4", stats.TotalUsers)
		}
		if stats.TotalProjects != 4 {
			t.Errorf("total projects = %d, want 4", stats.TotalProjects)
		}
		// The stale login (40 days) falls outside the active window
		if stats.ActiveUsers != 3 {
			t.Errorf("active users = %d, want 3", stats.ActiveUsers)
		}
	})

	t.Run("tenant admin sees only their tenant", func(t *testing.T) {
		stats, err := dash.GetStats(ctx, w.acmeAdmin)
		if err != nil {
			t.Fatalf("GetStats: %v", err)
		}
		if stats.Scope != "tenant" {
			t.Errorf("scope = %s, want tenant", stats.Scope)
		}
		if stats.TotalTenants != nil {
			t.Error("tenant admin must not see platform-wide tenant counts")
		}
		if stats.TotalUsers != 2 {
			t.Errorf("total users = %d, want 2", stats.TotalUsers)
		}
		if stats.TotalProjects != 3 {
			t.Errorf("total projects = %d, want 3", stats.TotalProjects)
		}
		if stats.ActiveUsers != 1 {
			t.Errorf("active users = %d, want 1", stats.ActiveUsers)
		}
		if stats.EnabledFeatures != 5 {
			t.Errorf("enabled features = %d, want 5", stats.EnabledFeatures)
		}
	})

	t.Run("end user sees own projects only", func(t *testing.T) {
		stats, err := dash.GetStats(ctx, w.acmeDev)
		if err != nil {
			t.Fatalf("GetStats: %v", err)
		}
		if stats.Scope != "user" {
			t.Errorf("scope = %s, want user", stats.Scope)
		}
		if stats.TotalProjects != 2 {
			t.Errorf("total projects = %d, want 2", stats.TotalProjects)
		}
		if stats.CompletedProjects != 1 {
			t.Errorf("completed projects = %d, want 1", stats.CompletedProjects)
		}
	})
}

func TestProjectsScopedByRole(t *testing.T) {
	dash, _, w := newDashboardFixture(t)

	tests := []struct {
		name string
		user *models.User
		want int
	}{
		{"platform admin sees all", w.platformAdmin, 4},
		{"tenant admin sees tenant projects", w.acmeAdmin, 3},
		{"end user sees own projects", w.acmeDev, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			projects, err := dash.GetProjects(tt.user, 50)
			if err != nil {
				t.Fatalf("GetProjects: %v", err)
			}
			if len(projects) != tt.want {
				t.Errorf("got %d projects, want %d", len(projects), tt.want)
			}
		})
	}
}

func navLabels(items []NavItem) map[string]bool {
	labels := make(map[string]bool)
	for _, item := range items {
		labels[item.Label] = true
	}
	return labels
}

func TestNavigationTiersAreSupersets(t *testing.T) {
	dash, _, w := newDashboardFixture(t)

	endUserNav, err := dash.GetNavigation(w.acmeDev)
	if err != nil {
		t.Fatalf("GetNavigation(end user): %v", err)
	}
	adminNav, err := dash.GetNavigation(w.acmeAdmin)
	if err != nil {
		t.Fatalf("GetNavigation(tenant admin): %v", err)
	}
	platformNav, err := dash.GetNavigation(w.platformAdmin)
	if err != nil {
		t.Fatalf("GetNavigation(platform admin): %v", err)
	}

	adminLabels := navLabels(adminNav)
	for _, item := range endUserNav {
		if !adminLabels[item.Label] {
			t.Errorf("tenant admin missing end-user item %q", item.Label)
		}
	}

	platformLabels := navLabels(platformNav)
	for _, item := range adminNav {
		if !platformLabels[item.Label] {
			t.Errorf("platform admin missing tenant-admin item %q", item.Label)
		}
	}

	if !platformLabels["Tenant Administration"] {
		t.Error("platform admin should see Tenant Administration")
	}
	if adminLabels["Tenant Administration"] {
		t.Error("tenant admin must not see platform items")
	}
}

func TestNavigationFilteredByEntitlements(t *testing.T) {
	dash, ent, w := newDashboardFixture(t)

	// Revoke SBOM for acme; the nav item should disappear for tenant users
	// but never for platform admins
	if _, err := ent.SetTenantFeatureOverride(w.acme.ID, "sbom-management", false, nil); err != nil {
		t.Fatalf("SetTenantFeatureOverride: %v", err)
	}

	endUserNav, err := dash.GetNavigation(w.acmeDev)
	if err != nil {
		t.Fatalf("GetNavigation: %v", err)
	}
	if navLabels(endUserNav)["SBOM"] {
		t.Error("SBOM item should be filtered out after the override")
	}
	if !navLabels(endUserNav)["Dashboard"] {
		t.Error("ungated items must survive filtering")
	}

	platformNav, err := dash.GetNavigation(w.platformAdmin)
	if err != nil {
		t.Fatalf("GetNavigation: %v", err)
	}
	if !navLabels(platformNav)["SBOM"] {
		t.Error("platform admin navigation is never entitlement-filtered")
	}
}

func TestRecentActivityScopedByRole(t *testing.T) {
	dash, _, w := newDashboardFixture(t)
	db := dash.DB

	logs := []models.AuditLog{
		{TenantID: &w.acme.ID, UserID: &w.acmeDev.ID, EventType: models.EventProjectCreated, Action: "project created", Severity: models.SeverityLow},
		{TenantID: &w.acme.ID, UserID: &w.acmeAdmin.ID, EventType: models.EventUserCreated, Action: "user created", Severity: models.SeverityMedium},
		{TenantID: &w.globex.ID, UserID: &w.globexDev.ID, EventType: models.EventLoginFailed, Action: "login failed", Severity: models.SeverityHigh},
	}
	for i := range logs {
		if err := db.Create(&logs[i]).Error; err != nil {
			t.Fatalf("failed to seed audit log: %v", err)
		}
	}

	platformItems, err := dash.GetRecentActivity(w.platformAdmin, 10)
	if err != nil {
		t.Fatalf("GetRecentActivity: %v", err)
	}
	if len(platformItems) != 3 {
		t.Errorf("platform admin sees %d items, want 3", len(platformItems))
	}

	adminItems, err := dash.GetRecentActivity(w.acmeAdmin, 10)
	if err != nil {
		t.Fatalf("GetRecentActivity: %v", err)
	}
	if len(adminItems) != 2 {
		t.Errorf("tenant admin sees %d items, want 2", len(adminItems))
	}

	devItems, err := dash.GetRecentActivity(w.acmeDev, 10)
	if err != nil {
		t.Fatalf("GetRecentActivity: %v", err)
	}
	if len(devItems) != 1 {
		t.Errorf("end user sees %d items, want 1", len(devItems))
	}
	if devItems[0].Category != "project" {
		t.Errorf("category = %s, want project", devItems[0].Category)
	}
}

func TestRecentActivityLimitClamped(t *testing.T) {
	dash, _, w := newDashboardFixture(t)
	db := dash.DB

	for i := 0; i < 12; i++ {
		l := models.AuditLog{
			TenantID:  &w.acme.ID,
			UserID:    &w.acmeAdmin.ID,
			EventType: models.EventUserCreated,
			Action:    fmt.Sprintf("user %d created", i),
			Severity:  models.SeverityLow,
		}
		if err := db.Create(&l).Error; err != nil {
			t.Fatalf("failed to seed audit log: %v", err)
		}
	}

	// An oversized limit clamps to the cap rather than resetting to the
	// default page size
	items, err := dash.GetRecentActivity(w.acmeAdmin, 60)
	if err != nil {
		t.Fatalf("GetRecentActivity: %v", err)
	}
	if len(items) != 12 {
		t.Errorf("got %d items, want all 12", len(items))
	}

	items, err = dash.GetRecentActivity(w.acmeAdmin, 5)
	if err != nil {
		t.Fatalf("GetRecentActivity: %v", err)
	}
	if len(items) != 5 {
		t.Errorf("got %d items, want 5", len(items))
	}
}

func TestActivityCategoryMapping(t *testing.T) {
	tests := []struct {
		eventType string
		want      string
	}{
		{models.EventProjectCreated, "project"},
		{models.EventProjectUpdated, "project"},
		{models.EventLogin, "security"},
		{models.EventLoginFailed, "security"},
		{models.EventSecurityAlert, "security"},
		{models.EventUserRoleChanged, "user"},
		{models.EventTenantSuspended, "system"},
	}
	for _, tt := range tests {
		if got := activityCategory(tt.eventType); got != tt.want {
			t.Errorf("activityCategory(%s) = %s, want %s", tt.eventType, got, tt.want)
		}
	}
}

func TestSystemHealth(t *testing.T) {
	dash, _, _ := newDashboardFixture(t)

	health := dash.GetSystemHealth(context.Background())
	if health.Status != "healthy" {
		t.Errorf("status = %s, want healthy", health.Status)
	}
	if health.Database.Status != "healthy" {
		t.Errorf("database status = %s, want healthy", health.Database.Status)
	}
}

func TestPermissionsMatchRoleTable(t *testing.T) {
	dash, _, w := newDashboardFixture(t)

	perms := dash.GetPermissions(w.acmeAdmin)
	if len(perms) != len(models.RolePermissions[models.RoleTenantAdmin]) {
		t.Errorf("got %d permissions, want %d", len(perms), len(models.RolePermissions[models.RoleTenantAdmin]))
	}
}
