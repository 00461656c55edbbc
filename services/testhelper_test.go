package services

import (
	"io"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"blicktrack/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// A single connection keeps the in-memory database alive and serializes
	// the parallel count queries
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := models.Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func newTestLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func seedPlan(t *testing.T, db *gorm.DB, name string) *models.SubscriptionPlan {
	t.Helper()
	plan := &models.SubscriptionPlan{
		Name:        name,
		DisplayName: name,
		Price:       9900,
		Currency:    "USD",
		MaxUsers:    50,
		IsActive:    true,
		IsPublic:    true,
	}
	if err := db.Create(plan).Error; err != nil {
		t.Fatalf("failed to seed plan: %v", err)
	}
	return plan
}

func seedTenant(t *testing.T, db *gorm.DB, name, slug string, planID *uuid.UUID) *models.Tenant {
	t.Helper()
	tenant := &models.Tenant{
		Name:   name,
		Slug:   slug,
		Status: models.TenantStatusActive,
		PlanID: planID,
	}
	if err := db.Create(tenant).Error; err != nil {
		t.Fatalf("failed to seed tenant: %v", err)
	}
	return tenant
}

func seedFeatureRow(t *testing.T, db *gorm.DB, key string, parentID *uuid.UUID, defaultEnabled bool) *models.Feature {
	t.Helper()
	feature := &models.Feature{
		Key:            key,
		Name:           key,
		DisplayName:    key,
		ParentID:       parentID,
		DefaultEnabled: defaultEnabled,
		IsActive:       true,
		IsVisible:      true,
	}
	if err := db.Create(feature).Error; err != nil {
		t.Fatalf("failed to seed feature %s: %v", key, err)
	}
	return feature
}

func seedPlanFeature(t *testing.T, db *gorm.DB, planID, featureID uuid.UUID, enabled bool) {
	t.Helper()
	pf := &models.PlanFeature{PlanID: planID, FeatureID: featureID, Enabled: enabled}
	if err := db.Create(pf).Error; err != nil {
		t.Fatalf("failed to seed plan feature: %v", err)
	}
}

func seedUser(t *testing.T, db *gorm.DB, email string, role models.UserRole, tenantID *uuid.UUID, lastLogin *time.Time) *models.User {
	t.Helper()
	user := &models.User{
		Email:        email,
		PasswordHash: "x",
		FirstName:    "Test",
		LastName:     "User",
		TenantID:     tenantID,
		Role:         role,
		Status:       models.UserStatusActive,
		IsActive:     true,
		LastLoginAt:  lastLogin,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to seed user %s: %v", email, err)
	}
	return user
}

func seedProject(t *testing.T, db *gorm.DB, tenantID, ownerID uuid.UUID, name string, status models.ProjectStatus) *models.Project {
	t.Helper()
	project := &models.Project{
		TenantID: tenantID,
		OwnerID:  ownerID,
		Name:     name,
		Status:   status,
	}
	if err := db.Create(project).Error; err != nil {
		t.Fatalf("failed to seed project %s: %v", name, err)
	}
	return project
}
