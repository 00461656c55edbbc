package controller

import (
	"errors"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"blicktrack/models"
	"blicktrack/services"
	"blicktrack/utils"
)

// DashboardController composes the role-aware dashboard surface. All
// scoping decisions live in the service layer; handlers only translate
// between HTTP and the services.
type DashboardController struct {
	DB           *gorm.DB
	Logger       *log.Logger
	Dashboard    *services.DashboardService
	Entitlements *services.EntitlementService
}

func NewDashboardController(db *gorm.DB, logger *log.Logger, dashboard *services.DashboardService, entitlements *services.EntitlementService) *DashboardController {
	return &DashboardController{
		DB:           db,
		Logger:       logger,
		Dashboard:    dashboard,
		Entitlements: entitlements,
	}
}

// GetStats returns counts scoped to the caller's role
func (dc *DashboardController) GetStats(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	stats, err := dc.Dashboard.GetStats(c.Context(), user)
	if err != nil {
		if errors.Is(err, utils.ErrForbidden) {
			return utils.ErrorResponse(c, fiber.StatusForbidden, "Access denied", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load stats", err)
	}

	return c.JSON(utils.SuccessResponse(stats))
}

// GetActivity returns the recent-activity feed visible to the caller
func (dc *DashboardController) GetActivity(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	limit, _ := strconv.Atoi(c.Query("limit", "10"))

	items, err := dc.Dashboard.GetRecentActivity(user, limit)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load activity", err)
	}

	return c.JSON(utils.SuccessResponse(items))
}

// GetProjects returns the caller's visible projects with progress
func (dc *DashboardController) GetProjects(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	limit, _ := strconv.Atoi(c.Query("limit", "20"))

	projects, err := dc.Dashboard.GetProjects(user, limit)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load projects", err)
	}

	return c.JSON(utils.SuccessResponse(projects))
}

// GetHealth reports platform health. Always 200; degradation lives in the
// payload.
func (dc *DashboardController) GetHealth(c *fiber.Ctx) error {
	health := dc.Dashboard.GetSystemHealth(c.Context())
	return c.JSON(utils.SuccessResponse(health))
}

// GetNavigation returns the role-composed, entitlement-filtered nav tree
func (dc *DashboardController) GetNavigation(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	nav, err := dc.Dashboard.GetNavigation(user)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load navigation", err)
	}

	return c.JSON(utils.SuccessResponse(nav))
}

// GetPermissions returns the caller's capability set
func (dc *DashboardController) GetPermissions(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"role":        user.Role,
		"permissions": dc.Dashboard.GetPermissions(user),
	}))
}

// GetFeatures returns the caller's tenant's effective feature set.
// Platform-level roles have no tenant scope and see the whole catalog.
func (dc *DashboardController) GetFeatures(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	if user.Role.IsPlatformLevel() {
		features, err := dc.Entitlements.CatalogFeatures()
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load feature catalog", err)
		}
		return c.JSON(utils.SuccessResponse(features))
	}
	if user.TenantID == nil {
		return c.JSON(utils.SuccessResponse([]services.EffectiveFeature{}))
	}

	features, err := dc.Entitlements.ResolveTenantFeatures(*user.TenantID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to resolve features", err)
	}

	return c.JSON(utils.SuccessResponse(features))
}

// GetTenantFeatureOverrides returns the raw override rows for the caller's
// tenant, with the feature catalog entry attached
func (dc *DashboardController) GetTenantFeatureOverrides(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	if user.TenantID == nil {
		return c.JSON(utils.SuccessResponse([]models.TenantFeature{}))
	}

	var overrides []models.TenantFeature
	if err := dc.DB.Preload("Feature").Where("tenant_id = ?", *user.TenantID).
		Order("updated_at DESC").Find(&overrides).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load tenant features", err)
	}

	return c.JSON(utils.SuccessResponse(overrides))
}

// CheckFeatureAccess answers whether the caller may use one feature
func (dc *DashboardController) CheckFeatureAccess(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	featureKey := c.Params("slug")

	allowed, err := dc.Entitlements.CheckFeatureAccess(user, featureKey)
	switch {
	case errors.Is(err, utils.ErrNotFound):
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Unknown feature", nil)
	case errors.Is(err, utils.ErrTenantPlanNotConfigured):
		return utils.ErrorResponse(c, fiber.StatusConflict, "Tenant has no subscription plan configured", nil)
	case errors.Is(err, utils.ErrForbidden):
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Access denied", nil)
	case err != nil:
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check access", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"featureSlug": featureKey,
		"canAccess":   allowed,
	}))
}
