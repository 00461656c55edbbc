package controller

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"blicktrack/models"
	"blicktrack/utils"
	"blicktrack/worker"
)

// TenantAdminController serves tenant-scoped administration. Every operation
// is confined to the caller's own tenant, and platform-level roles are out of
// reach: a tenant admin can neither grant them nor touch users holding them.
type TenantAdminController struct {
	DB     *gorm.DB
	Logger *log.Logger
	Audit  *worker.AuditWorker
}

func NewTenantAdminController(db *gorm.DB, logger *log.Logger, audit *worker.AuditWorker) *TenantAdminController {
	return &TenantAdminController{
		DB:     db,
		Logger: logger,
		Audit:  audit,
	}
}

type CreateUserRequest struct {
	Email     string          `json:"email" validate:"required,email"`
	Password  string          `json:"password" validate:"required,min=8"`
	FirstName string          `json:"first_name" validate:"required,min=1,max=100"`
	LastName  string          `json:"last_name" validate:"required,min=1,max=100"`
	Role      models.UserRole `json:"role" validate:"required"`
}

type ChangeStatusRequest struct {
	Status models.UserStatus `json:"status" validate:"required,oneof=ACTIVE SUSPENDED"`
}

type UpdateSettingsRequest struct {
	Name        string         `json:"name" validate:"omitempty,min=2,max=200"`
	MFARequired *bool          `json:"mfa_required"`
	Settings    datatypes.JSON `json:"settings"`
}

// requireTenantScope rejects callers without a tenant, such as platform
// admins hitting tenant-scoped routes directly
func requireTenantScope(c *fiber.Ctx) (*models.User, error) {
	actor := c.Locals("user").(*models.User)
	if actor.TenantID == nil {
		return nil, utils.ErrorResponse(c, fiber.StatusForbidden, "No tenant scope for this account", nil)
	}
	return actor, nil
}

// ListUsers returns the tenant's users, paginated
func (tc *TenantAdminController) ListUsers(c *fiber.Ctx) error {
	actor, errResp := requireTenantScope(c)
	if actor == nil {
		return errResp
	}
	page, limit, offset := utils.ParsePagination(c)

	query := tc.DB.Model(&models.User{}).Where("tenant_id = ?", *actor.TenantID)
	if role := c.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}

	var users []models.User
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}

	return c.JSON(utils.SuccessResponse(utils.NewPaginatedResponse(users, total, page, limit)))
}

// CreateUser adds a user to the tenant. Platform-level roles cannot be
// assigned from here.
func (tc *TenantAdminController) CreateUser(c *fiber.Ctx) error {
	actor, errResp := requireTenantScope(c)
	if actor == nil {
		return errResp
	}

	var req CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}
	if err := utils.ValidateEmailAddress(req.Email); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid email address", err)
	}
	if !req.Role.IsValid() {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Unknown role", nil)
	}
	if req.Role.IsPlatformLevel() {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Cannot assign platform-level roles", nil)
	}

	var count int64
	if err := tc.DB.Model(&models.User{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}
	if count > 0 {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Email is already registered", nil)
	}

	// Enforce the plan's seat limit
	var tenant models.Tenant
	if err := tc.DB.Preload("Plan").First(&tenant, "id = ?", *actor.TenantID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}
	if tenant.Plan != nil && tenant.Plan.MaxUsers > 0 {
		var seats int64
		tc.DB.Model(&models.User{}).Where("tenant_id = ?", tenant.ID).Count(&seats)
		if seats >= int64(tenant.Plan.MaxUsers) {
			return utils.ErrorResponse(c, fiber.StatusConflict, "Plan user limit reached", nil)
		}
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to process password", err)
	}

	user := models.User{
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		TenantID:     actor.TenantID,
		Role:         req.Role,
		Status:       models.UserStatusActive,
		IsActive:     true,
	}
	if err := tc.DB.Create(&user).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create user", err)
	}

	tc.Audit.Record(models.AuditLog{
		TenantID:  actor.TenantID,
		UserID:    &actor.ID,
		EventType: models.EventUserCreated,
		Action:    user.Email + " created with role " + string(user.Role) + " by " + actor.Email,
		Resource:  "user/" + user.ID.String(),
		Severity:  models.SeverityMedium,
		IPAddress: c.IP(),
		UserAgent: c.Get("User-Agent"),
	})

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(user))
}

// ChangeUserRole reassigns a tenant user's role within the tenant-level set
func (tc *TenantAdminController) ChangeUserRole(c *fiber.Ctx) error {
	actor, errResp := requireTenantScope(c)
	if actor == nil {
		return errResp
	}

	var req ChangeRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if !req.Role.IsValid() {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Unknown role", nil)
	}
	if req.Role.IsPlatformLevel() {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Cannot assign platform-level roles", nil)
	}

	user, errResp := tc.loadTenantUser(c, actor)
	if user == nil {
		return errResp
	}

	oldRole := user.Role
	updates := map[string]interface{}{
		"role":          req.Role,
		"token_version": gorm.Expr("token_version + 1"),
	}
	if err := tc.DB.Model(user).Updates(updates).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update user", err)
	}
	user.Role = req.Role

	tc.Audit.Record(models.AuditLog{
		TenantID:  actor.TenantID,
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

// ChangeUserStatus suspends or reactivates a tenant user
func (tc *TenantAdminController) ChangeUserStatus(c *fiber.Ctx) error {
	actor, errResp := requireTenantScope(c)
	if actor == nil {
		return errResp
	}

	var req ChangeStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	user, errResp := tc.loadTenantUser(c, actor)
	if user == nil {
		return errResp
	}
	if user.ID == actor.ID {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Cannot change your own status", nil)
	}

	updates := map[string]interface{}{
		"status":    req.Status,
		"is_active": req.Status == models.UserStatusActive,
	}
	if req.Status == models.UserStatusSuspended {
		// Revoke sessions immediately
		updates["token_version"] = gorm.Expr("token_version + 1")
	}
	if err := tc.DB.Model(user).Updates(updates).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update user", err)
	}
	user.Status = req.Status
	user.IsActive = req.Status == models.UserStatusActive

	tc.Audit.Record(models.AuditLog{
		TenantID:  actor.TenantID,
		UserID:    &actor.ID,
		EventType: models.EventUserStatusChanged,
		Action:    user.Email + " status set to " + string(req.Status) + " by " + actor.Email,
		Resource:  "user/" + user.ID.String(),
		Severity:  models.SeverityHigh,
		IPAddress: c.IP(),
		UserAgent: c.Get("User-Agent"),
	})

	return c.JSON(utils.SuccessResponse(user))
}

// GetSettings returns the tenant profile and settings blob
func (tc *TenantAdminController) GetSettings(c *fiber.Ctx) error {
	actor, errResp := requireTenantScope(c)
	if actor == nil {
		return errResp
	}

	var tenant models.Tenant
	if err := tc.DB.Preload("Plan").First(&tenant, "id = ?", *actor.TenantID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}

	return c.JSON(utils.SuccessResponse(tenant))
}

// UpdateSettings updates the tenant's name, MFA policy and settings blob
func (tc *TenantAdminController) UpdateSettings(c *fiber.Ctx) error {
	actor, errResp := requireTenantScope(c)
	if actor == nil {
		return errResp
	}

	var req UpdateSettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var tenant models.Tenant
	if err := tc.DB.First(&tenant, "id = ?", *actor.TenantID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}

	updates := map[string]interface{}{}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.MFARequired != nil {
		updates["mfa_required"] = *req.MFARequired
	}
	if len(req.Settings) > 0 {
		updates["settings"] = req.Settings
	}
	if len(updates) == 0 {
		return c.JSON(utils.SuccessResponse(tenant))
	}

	if err := tc.DB.Model(&tenant).Updates(updates).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update tenant", err)
	}

	tc.Audit.Record(models.AuditLog{
		TenantID:  &tenant.ID,
		UserID:    &actor.ID,
		EventType: models.EventTenantUpdated,
		Action:    "Tenant settings updated by " + actor.Email,
		Resource:  "tenant/" + tenant.Slug,
		Severity:  models.SeverityLow,
		IPAddress: c.IP(),
		UserAgent: c.Get("User-Agent"),
	})

	tc.DB.First(&tenant, "id = ?", tenant.ID)
	return c.JSON(utils.SuccessResponse(tenant))
}

// loadTenantUser fetches the :id user, enforcing tenant scope and the
// platform-role guard. Returns (nil, response) on failure.
func (tc *TenantAdminController) loadTenantUser(c *fiber.Ctx, actor *models.User) (*models.User, error) {
	userID, err := utils.ParseUUID(c.Params("id"))
	if err != nil {
		return nil, utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid user ID", err)
	}

	var user models.User
	if err := tc.DB.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorResponse(c, fiber.StatusNotFound, "User not found", nil)
		}
		return nil, utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}

	// Cross-tenant access looks identical to a missing user
	if user.TenantID == nil || *user.TenantID != *actor.TenantID {
		return nil, utils.ErrorResponse(c, fiber.StatusNotFound, "User not found", nil)
	}
	if user.Role.IsPlatformLevel() {
		return nil, utils.ErrorResponse(c, fiber.StatusForbidden, "Cannot modify platform-level users", nil)
	}

	return &user, nil
}
