package controller

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"

	"blicktrack/config"
	"blicktrack/models"
	"blicktrack/utils"
)

func setupAuthTest(t *testing.T) *AuthController {
	t.Helper()
	config.AppConfig.JWTSecret = "test-secret"
	config.AppConfig.BcryptRounds = 4

	db := newTestDB(t)
	return NewAuthController(db, newTestLogger(), newTestAudit(db))
}

func TestLoginRecordsSignInAttempts(t *testing.T) {
	ac := setupAuthTest(t)

	tenant := seedTenant(t, ac.DB, "Acme Corp", "acme")
	hash, err := utils.HashPassword("correct-horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	user := seedUser(t, ac.DB, "dev@acme.test", models.RoleEndUser, &tenant.ID)
	ac.DB.Model(user).Update("password_hash", hash)

	app := fiber.New()
	app.Post("/login", ac.Login)

	login := func(password string) *http.Response {
		body, _ := json.Marshal(LoginRequest{Email: "dev@acme.test", Password: password})
		req, _ := http.NewRequest(http.MethodPost, "/login", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := doRequest(t, app, req)
		return resp
	}

	if resp := login("wrong-password"); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad password status = %d, want 401", resp.StatusCode)
	}
	if resp := login("correct-horse"); resp.StatusCode != http.StatusOK {
		t.Errorf("good password status = %d, want 200", resp.StatusCode)
	}

	var logs []models.SignInLog
	if err := ac.DB.Order("created_at ASC").Find(&logs).Error; err != nil {
		t.Fatalf("failed to load sign-in logs: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("sign-in log rows = %d, want 2", len(logs))
	}
	if logs[0].Success || !logs[1].Success {
		t.Errorf("expected failure then success, got %v then %v", logs[0].Success, logs[1].Success)
	}

	var fresh models.User
	ac.DB.First(&fresh, "id = ?", user.ID)
	if fresh.LastLoginAt == nil {
		t.Error("successful login must stamp last_login_at")
	}
}

func TestLoginRejectsSuspendedTenant(t *testing.T) {
	ac := setupAuthTest(t)

	tenant := seedTenant(t, ac.DB, "Acme Corp", "acme")
	ac.DB.Model(tenant).Update("status", models.TenantStatusSuspended)

	hash, _ := utils.HashPassword("correct-horse")
	user := seedUser(t, ac.DB, "dev@acme.test", models.RoleEndUser, &tenant.ID)
	ac.DB.Model(user).Update("password_hash", hash)

	app := fiber.New()
	app.Post("/login", ac.Login)

	body, _ := json.Marshal(LoginRequest{Email: "dev@acme.test", Password: "correct-horse"})
	req, _ := http.NewRequest(http.MethodPost, "/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, _ := doRequest(t, app, req)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
}

func TestSignupCreatesTenantAndAdmin(t *testing.T) {
	ac := setupAuthTest(t)

	app := fiber.New()
	app.Post("/signup", ac.Signup)

	body, _ := json.Marshal(SignupRequest{
		Email:      "founder@acme.test",
		Password:   "supersecret",
		FirstName:  "Ada",
		LastName:   "Lovelace",
		TenantName: "Acme Corp",
		TenantSlug: "acme",
	})
	req, _ := http.NewRequest(http.MethodPost, "/signup", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, _ := doRequest(t, app, req)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	var user models.User
	if err := ac.DB.First(&user, "email = ?", "founder@acme.test").Error; err != nil {
		t.Fatalf("user not created: %v", err)
	}
	if user.Role != models.RoleTenantAdmin {
		t.Errorf("role = %s, want TENANT_ADMIN", user.Role)
	}
	if user.TenantID == nil {
		t.Fatal("user not attached to the new tenant")
	}

	var tenant models.Tenant
	if err := ac.DB.First(&tenant, "id = ?", *user.TenantID).Error; err != nil {
		t.Fatalf("tenant not created: %v", err)
	}
	if tenant.Slug != "acme" {
		t.Errorf("slug = %s, want acme", tenant.Slug)
	}

	// Reusing the slug must fail without leaving partial state
	body, _ = json.Marshal(SignupRequest{
		Email:      "other@corp.test",
		Password:   "supersecret",
		FirstName:  "Grace",
		LastName:   "Hopper",
		TenantName: "Other Corp",
		TenantSlug: "acme",
	})
	req, _ = http.NewRequest(http.MethodPost, "/signup", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ = doRequest(t, app, req)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate slug status = %d, want 409", resp.StatusCode)
	}
}
