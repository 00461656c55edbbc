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

// PlatformAdminController serves the cross-tenant administration surface.
// Every route behind it requires a platform-level role.
type PlatformAdminController struct {
	DB        *gorm.DB
	Logger    *log.Logger
	Audit     *worker.AuditWorker
	Dashboard *services.DashboardService
}

func NewPlatformAdminController(db *gorm.DB, logger *log.Logger, audit *worker.AuditWorker, dashboard *services.DashboardService) *PlatformAdminController {
	return &PlatformAdminController{
		DB:        db,
		Logger:    logger,
		Audit:     audit,
		Dashboard: dashboard,
	}
}

type CreateTenantRequest struct {
	Name   string `json:"name" validate:"required,min=2,max=200"`
	Slug   string `json:"slug" validate:"required,min=2,max=100"`
	Domain string `json:"domain" validate:"omitempty,max=255"`
	PlanID string `json:"plan_id" validate:"omitempty,uuid"`
}

type ChangeRoleRequest struct {
	Role models.UserRole `json:"role" validate:"required"`
}

type tenantRow struct {
	models.Tenant
	UserCount    int64 `json:"user_count"`
	ProjectCount int64 `json:"project_count"`
}

// ListTenants returns all tenants with user and project counts, paginated
func (pc *PlatformAdminController) ListTenants(c *fiber.Ctx) error {
	page, limit, offset := utils.ParsePagination(c)

	query := pc.DB.Model(&models.Tenant{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if search := c.Query("search"); search != "" {
		query = query.Where("name ILIKE ? OR slug ILIKE ?", "%"+search+"%", "%"+search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}

	var tenants []models.Tenant
	if err := query.Preload("Plan").Order("created_at DESC").Offset(offset).Limit(limit).Find(&tenants).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}

	ids := make([]uuid.UUID, 0, len(tenants))
	for _, t := range tenants {
		ids = append(ids, t.ID)
	}
	userCounts, err := pc.countByTenant(&models.User{}, ids)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}
	projectCounts, err := pc.countByTenant(&models.Project{}, ids)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}

	rows := make([]tenantRow, 0, len(tenants))
	for _, t := range tenants {
		rows = append(rows, tenantRow{
			Tenant:       t,
			UserCount:    userCounts[t.ID],
			ProjectCount: projectCounts[t.ID],
		})
	}

	return c.JSON(utils.SuccessResponse(utils.NewPaginatedResponse(rows, total, page, limit)))
}

// countByTenant runs one grouped count over the given model for a page of
// tenant IDs
func (pc *PlatformAdminController) countByTenant(model interface{}, ids []uuid.UUID) (map[uuid.UUID]int64, error) {
	counts := make(map[uuid.UUID]int64, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}

	var rows []struct {
		TenantID uuid.UUID
		Count    int64
	}
	if err := pc.DB.Model(model).
		Select("tenant_id, COUNT(*) as count").
		Where("tenant_id IN ?", ids).
		Group("tenant_id").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		counts[r.TenantID] = r.Count
	}
	return counts, nil
}

// GetTenant returns one tenant with its plan and counts
func (pc *PlatformAdminController) GetTenant(c *fiber.Ctx) error {
	tenantID, err := utils.ParseUUID(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid tenant ID", err)
	}

	var tenant models.Tenant
	if err := pc.DB.Preload("Plan").First(&tenant, "id = ?", tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Tenant not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}

	row := tenantRow{Tenant: tenant}
	if err := pc.DB.Model(&models.User{}).Where("tenant_id = ?", tenant.ID).Count(&row.UserCount).Error; err != nil {
		pc.Logger.Printf("tenant %s: user count failed: %v", tenant.Slug, err)
	}
	if err := pc.DB.Model(&models.Project{}).Where("tenant_id = ?", tenant.ID).Count(&row.ProjectCount).Error; err != nil {
		pc.Logger.Printf("tenant %s: project count failed: %v", tenant.Slug, err)
	}

	return c.JSON(utils.SuccessResponse(row))
}

// CreateTenant provisions a new tenant, optionally on a plan
func (pc *PlatformAdminController) CreateTenant(c *fiber.Ctx) error {
	actor := c.Locals("user").(*models.User)

	var req CreateTenantRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var count int64
	if err := pc.DB.Model(&models.Tenant{}).Where("slug = ?", req.Slug).Count(&count).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}
	if count > 0 {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Tenant slug is already taken", nil)
	}

	tenant := models.Tenant{
		Name:   req.Name,
		Slug:   req.Slug,
		Domain: req.Domain,
		Status: models.TenantStatusActive,
	}
	if req.PlanID != "" {
		planID, err := utils.ParseUUID(req.PlanID)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid plan ID", err)
		}
		var plan models.SubscriptionPlan
		if err := pc.DB.First(&plan, "id = ? AND is_active = ?", planID, true).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Unknown subscription plan", nil)
		}
		tenant.PlanID = &plan.ID
	}

	if err := pc.DB.Create(&tenant).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create tenant", err)
	}

	pc.Audit.Record(models.AuditLog{
		TenantID:  &tenant.ID,
		UserID:    &actor.ID,
		EventType: models.EventTenantCreated,
		Action:    "Tenant " + tenant.Name + " created by " + actor.Email,
		Resource:  "tenant/" + tenant.Slug,
		Severity:  models.SeverityMedium,
		IPAddress: c.IP(),
		UserAgent: c.Get("User-Agent"),
	})

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(tenant))
}

// SuspendTenant moves a tenant to SUSPENDED; its users lose access on their
// next request
func (pc *PlatformAdminController) SuspendTenant(c *fiber.Ctx) error {
	return pc.setTenantStatus(c, models.TenantStatusSuspended, models.EventTenantSuspended, models.SeverityHigh)
}

// ActivateTenant moves a tenant back to ACTIVE
func (pc *PlatformAdminController) ActivateTenant(c *fiber.Ctx) error {
	return pc.setTenantStatus(c, models.TenantStatusActive, models.EventTenantActivated, models.SeverityMedium)
}

func (pc *PlatformAdminController) setTenantStatus(c *fiber.Ctx, status models.TenantStatus, eventType string, severity models.AuditSeverity) error {
	actor := c.Locals("user").(*models.User)

	tenantID, err := utils.ParseUUID(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid tenant ID", err)
	}

	var tenant models.Tenant
	if err := pc.DB.First(&tenant, "id = ?", tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Tenant not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}

	if tenant.Status == status {
		return c.JSON(utils.SuccessResponse(tenant))
	}

	if err := pc.DB.Model(&tenant).Update("status", status).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update tenant", err)
	}
	tenant.Status = status

	pc.Audit.Record(models.AuditLog{
		TenantID:  &tenant.ID,
		UserID:    &actor.ID,
		EventType: eventType,
		Action:    "Tenant " + tenant.Name + " set to " + string(status) + " by " + actor.Email,
		Resource:  "tenant/" + tenant.Slug,
		Severity:  severity,
		IPAddress: c.IP(),
		UserAgent: c.Get("User-Agent"),
	})

	return c.JSON(utils.SuccessResponse(tenant))
}

// ListUsers returns users across all tenants, paginated and filterable
func (pc *PlatformAdminController) ListUsers(c *fiber.Ctx) error {
	page, limit, offset := utils.ParsePagination(c)

	query := pc.DB.Model(&models.User{})
	if role := c.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}
	if tenantID := c.Query("tenant_id"); tenantID != "" {
		id, err := utils.ParseUUID(tenantID)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid tenant ID", err)
		}
		query = query.Where("tenant_id = ?", id)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}

	var users []models.User
	if err := query.Preload("Tenant").Order("created_at DESC").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}

	return c.JSON(utils.SuccessResponse(utils.NewPaginatedResponse(users, total, page, limit)))
}

// ChangeUserRole assigns any role, including platform-level ones
func (pc *PlatformAdminController) ChangeUserRole(c *fiber.Ctx) error {
	actor := c.Locals("user").(*models.User)

	userID, err := utils.ParseUUID(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid user ID", err)
	}

	var req ChangeRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if !req.Role.IsValid() {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Unknown role", nil)
	}

	var user models.User
	if err := pc.DB.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "User not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}

	oldRole := user.Role
	updates := map[string]interface{}{
		"role": req.Role,
		// Revoke sessions so the new role takes effect immediately
		"token_version": gorm.Expr("token_version + 1"),
	}
	if err := pc.DB.Model(&user).Updates(updates).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update user", err)
	}
	user.Role = req.Role

	pc.Audit.Record(models.AuditLog{
		TenantID:  user.TenantID,
		UserID:    &actor.ID,
		EventType: models.EventUserRoleChanged,
		Action:    user.Email + " role changed from " + string(oldRole) + " to " + string(req.Role) + " by " + actor.Email,
		Resource:  "user/" + user.ID.String(),
		Severity:  models.SeverityHigh,
		IPAddress: c.IP(),
		UserAgent: c.Get("User-Agent"),
	})

	return c.JSON(utils.SuccessResponse(user))
}

// SystemHealth reports component status plus platform-wide counts.
// Degradation shows up in the payload with a 200 so status pages always
// render.
func (pc *PlatformAdminController) SystemHealth(c *fiber.Ctx) error {
	health := pc.Dashboard.GetSystemHealth(c.Context())

	stats := &services.PlatformStats{}
	if err := pc.DB.Model(&models.Tenant{}).Count(&stats.Tenants).Error; err != nil {
		pc.Logger.Printf("health: tenant count failed: %v", err)
	}
	if err := pc.DB.Model(&models.User{}).Count(&stats.Users).Error; err != nil {
		pc.Logger.Printf("health: user count failed: %v", err)
	}
	if err := pc.DB.Model(&models.Project{}).Count(&stats.Projects).Error; err != nil {
		pc.Logger.Printf("health: project count failed: %v", err)
	}
	health.Stats = stats

	return c.JSON(utils.SuccessResponse(health))
}

// SystemMetrics returns platform aggregates grouped by role and plan
func (pc *PlatformAdminController) SystemMetrics(c *fiber.Ctx) error {
	type roleCount struct {
		Role  models.UserRole `json:"role"`
		Count int64           `json:"count"`
	}
	type planCount struct {
		Name  string `json:"name"`
		Count int64  `json:"count"`
	}

	var usersByRole []roleCount
	if err := pc.DB.Model(&models.User{}).
		Select("role, COUNT(*) as count").Group("role").Scan(&usersByRole).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}

	var tenantsByPlan []planCount
	if err := pc.DB.Model(&models.Tenant{}).
		Select("COALESCE(subscription_plans.name, 'NONE') as name, COUNT(*) as count").
		Joins("LEFT JOIN subscription_plans ON subscription_plans.id = tenants.plan_id").
		Group("subscription_plans.name").Scan(&tenantsByPlan).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}

	var signInsLastDay int64
	if err := pc.DB.Model(&models.SignInLog{}).
		Where("created_at >= ?", time.Now().Add(-24*time.Hour)).Count(&signInsLastDay).Error; err != nil {
		pc.Logger.Printf("metrics: sign-in count failed: %v", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"users_by_role":     usersByRole,
		"tenants_by_plan":   tenantsByPlan,
		"sign_ins_last_day": signInsLastDay,
	}))
}
