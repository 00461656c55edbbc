package controller

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"blicktrack/models"
	"blicktrack/services"
	"blicktrack/utils"
	"blicktrack/worker"
)

// TenantFeaturesController exposes effective entitlements per tenant and the
// platform-admin override surface
type TenantFeaturesController struct {
	DB           *gorm.DB
	Logger       *log.Logger
	Audit        *worker.AuditWorker
	Entitlements *services.EntitlementService
}

func NewTenantFeaturesController(db *gorm.DB, logger *log.Logger, audit *worker.AuditWorker, entitlements *services.EntitlementService) *TenantFeaturesController {
	return &TenantFeaturesController{
		DB:           db,
		Logger:       logger,
		Audit:        audit,
		Entitlements: entitlements,
	}
}

type OverrideRequest struct {
	FeatureKey string     `json:"feature_key" validate:"required"`
	Enabled    bool       `json:"enabled"`
	ExpiresAt  *time.Time `json:"expires_at"`
}

// GetByID returns a tenant's effective features by tenant ID
func (fc *TenantFeaturesController) GetByID(c *fiber.Ctx) error {
	tenantID, err := utils.ParseUUID(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid tenant ID", err)
	}
	return fc.respondFeatures(c, tenantID)
}

// GetBySlug returns a tenant's effective features by slug
func (fc *TenantFeaturesController) GetBySlug(c *fiber.Ctx) error {
	var tenant models.Tenant
	if err := fc.DB.First(&tenant, "slug = ?", c.Params("slug")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Tenant not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}
	return fc.respondFeatures(c, tenant.ID)
}

func (fc *TenantFeaturesController) respondFeatures(c *fiber.Ctx, id uuid.UUID) error {
	// Tenant-scoped callers may only read their own tenant
	actor := c.Locals("user").(*models.User)
	if !actor.Role.IsPlatformLevel() {
		if actor.TenantID == nil || *actor.TenantID != id {
			return utils.ErrorResponse(c, fiber.StatusForbidden, "Access denied", nil)
		}
	}

	features, err := fc.Entitlements.ResolveTenantFeatures(id)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Tenant not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to resolve features", err)
	}

	return c.JSON(utils.SuccessResponse(features))
}

// SetOverride upserts a per-tenant feature override. Platform admins only;
// the last write wins.
func (fc *TenantFeaturesController) SetOverride(c *fiber.Ctx) error {
	actor := c.Locals("user").(*models.User)

	tenantID, err := utils.ParseUUID(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid tenant ID", err)
	}

	var req OverrideRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var tenant models.Tenant
	if err := fc.DB.First(&tenant, "id = ?", tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Tenant not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}

	override, err := fc.Entitlements.SetTenantFeatureOverride(tenantID, req.FeatureKey, req.Enabled, req.ExpiresAt)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Unknown feature", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to set override", err)
	}

	state := "disabled"
	if req.Enabled {
		state = "enabled"
	}
	fc.Audit.Record(models.AuditLog{
		TenantID:  &tenant.ID,
		UserID:    &actor.ID,
		EventType: models.EventFeatureOverride,
		Action:    "Feature " + req.FeatureKey + " " + state + " for " + tenant.Name + " by " + actor.Email,
		Resource:  "tenant/" + tenant.Slug + "/features/" + req.FeatureKey,
		Severity:  models.SeverityMedium,
		IPAddress: c.IP(),
		UserAgent: c.Get("User-Agent"),
	})

	return c.JSON(utils.SuccessResponse(override))
}
