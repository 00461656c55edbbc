package controller

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/sirupsen/logrus"

	"blicktrack/models"
	"blicktrack/services"
)

func setupDashboardTest(t *testing.T) (*DashboardController, *services.EntitlementService) {
	t.Helper()
	db := newTestDB(t)

	l := logrus.New()
	l.SetOutput(io.Discard)
	ent := services.NewEntitlementService(db, l)
	dash := services.NewDashboardService(db, ent, l)

	return NewDashboardController(db, newTestLogger(), dash, ent), ent
}

func TestCheckFeatureAccessStatusMapping(t *testing.T) {
	dc, ent := setupDashboardTest(t)

	plan := models.SubscriptionPlan{Name: "PROFESSIONAL", DisplayName: "Professional", IsActive: true}
	if err := dc.DB.Create(&plan).Error; err != nil {
		t.Fatalf("failed to seed plan: %v", err)
	}
	tenant := seedTenant(t, dc.DB, "Acme Corp", "acme")
	dc.DB.Model(tenant).Update("plan_id", plan.ID)
	noPlan := seedTenant(t, dc.DB, "No Plan Inc", "no-plan")

	feature := models.Feature{Key: "sbom-management", Name: "SBOM", IsActive: true, IsVisible: true}
	if err := dc.DB.Create(&feature).Error; err != nil {
		t.Fatalf("failed to seed feature: %v", err)
	}
	if err := dc.DB.Create(&models.PlanFeature{PlanID: plan.ID, FeatureID: feature.ID, Enabled: true}).Error; err != nil {
		t.Fatalf("failed to seed plan feature: %v", err)
	}

	endUser := seedUser(t, dc.DB, "dev@acme.test", models.RoleEndUser, &tenant.ID)
	noPlanUser := seedUser(t, dc.DB, "dev@noplan.test", models.RoleEndUser, &noPlan.ID)

	check := func(t *testing.T, user *models.User, key string) (*http.Response, envelope) {
		app := newTestApp(user)
		app.Get("/features/:slug/access", dc.CheckFeatureAccess)
		req, _ := http.NewRequest(http.MethodGet, "/features/"+key+"/access", nil)
		return doRequest(t, app, req)
	}

	t.Run("entitled", func(t *testing.T) {
		resp, env := check(t, endUser, "sbom-management")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		var payload struct {
			CanAccess bool `json:"canAccess"`
		}
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if !payload.CanAccess {
			t.Error("expected canAccess = true")
		}
	})

	t.Run("revoked by override", func(t *testing.T) {
		if _, err := ent.SetTenantFeatureOverride(tenant.ID, "sbom-management", false, nil); err != nil {
			t.Fatalf("SetTenantFeatureOverride: %v", err)
		}
		resp, env := check(t, endUser, "sbom-management")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		var payload struct {
			CanAccess bool `json:"canAccess"`
		}
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if payload.CanAccess {
			t.Error("expected canAccess = false after override")
		}
	})

	t.Run("unknown feature is 404", func(t *testing.T) {
		resp, _ := check(t, endUser, "no-such-feature")
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})

	t.Run("missing plan is 409", func(t *testing.T) {
		resp, _ := check(t, noPlanUser, "sbom-management")
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("status = %d, want 409", resp.StatusCode)
		}
	})
}

func TestGetFeaturesForPlatformAdmin(t *testing.T) {
	dc, _ := setupDashboardTest(t)
	admin := seedUser(t, dc.DB, "ops@platform.test", models.RolePlatformAdmin, nil)

	// Platform admins have no tenant, so they see the default-enabled
	// catalog instead of a tenant resolution
	seed := []models.Feature{
		{Key: "sbom-management", Name: "SBOM", DefaultEnabled: true, IsActive: true, IsVisible: true},
		{Key: "compliance-reporting", Name: "Compliance", DefaultEnabled: true, IsActive: true, IsVisible: true},
		{Key: "sso-integration", Name: "SSO", DefaultEnabled: false, IsActive: true, IsVisible: true},
	}
	for i := range seed {
		if err := dc.DB.Create(&seed[i]).Error; err != nil {
			t.Fatalf("failed to seed feature: %v", err)
		}
	}

	app := newTestApp(admin)
	app.Get("/features", dc.GetFeatures)

	req, _ := http.NewRequest(http.MethodGet, "/features", nil)
	resp, env := doRequest(t, app, req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var features []services.EffectiveFeature
	if err := json.Unmarshal(env.Data, &features); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(features) != 2 {
		t.Fatalf("expected the 2 default-enabled features, got %d", len(features))
	}
	if features[0].Key != "compliance-reporting" || features[1].Key != "sbom-management" {
		t.Errorf("unexpected catalog order: %s, %s", features[0].Key, features[1].Key)
	}
	for _, f := range features {
		if !f.Enabled || f.Source != services.SourceDefault {
			t.Errorf("%s: got enabled=%v source=%s, want enabled catalog entry", f.Key, f.Enabled, f.Source)
		}
	}
}
