package controller

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"blicktrack/middleware"
	"blicktrack/models"
	"blicktrack/utils"
	"blicktrack/worker"
)

type AuthController struct {
	DB     *gorm.DB
	Logger *log.Logger
	Audit  *worker.AuditWorker
}

func NewAuthController(db *gorm.DB, logger *log.Logger, audit *worker.AuditWorker) *AuthController {
	return &AuthController{
		DB:     db,
		Logger: logger,
		Audit:  audit,
	}
}

type SignupRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=8"`
	FirstName  string `json:"first_name" validate:"required,min=1,max=100"`
	LastName   string `json:"last_name" validate:"required,min=1,max=100"`
	TenantName string `json:"tenant_name" validate:"required,min=2,max=200"`
	TenantSlug string `json:"tenant_slug" validate:"required,min=2,max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required,len=6"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// Signup registers a new organization and its first tenant admin
func (ac *AuthController) Signup(c *fiber.Ctx) error {
	var req SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}
	if err := utils.ValidateEmailAddress(req.Email); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid email address", err)
	}

	var count int64
	if err := ac.DB.Model(&models.User{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}
	if count > 0 {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Email is already registered", nil)
	}
	if err := ac.DB.Model(&models.Tenant{}).Where("slug = ?", req.TenantSlug).Count(&count).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}
	if count > 0 {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Tenant slug is already taken", nil)
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to process password", err)
	}

	tenant := models.Tenant{
		Name:   req.TenantName,
		Slug:   req.TenantSlug,
		Status: models.TenantStatusActive,
	}
	user := models.User{
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         models.RoleTenantAdmin,
		Status:       models.UserStatusActive,
		IsActive:     true,
	}

	err = ac.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&tenant).Error; err != nil {
			return err
		}
		user.TenantID = &tenant.ID
		return tx.Create(&user).Error
	})
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create account", err)
	}

	ac.Audit.Record(models.AuditLog{
		TenantID:  &tenant.ID,
		UserID:    &user.ID,
		EventType: models.EventTenantCreated,
		Action:    "Tenant " + tenant.Name + " registered",
		Resource:  "tenant/" + tenant.Slug,
		Severity:  models.SeverityMedium,
		IPAddress: c.IP(),
		UserAgent: c.Get("User-Agent"),
	})

	accessToken, refreshToken, err := utils.GenerateJWTToken(&user)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate tokens", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(fiber.Map{
		"user":          user,
		"tenant":        tenant,
		"access_token":  accessToken,
		"refresh_token": refreshToken,
	}))
}

// Login authenticates a user and records the attempt in the sign-in log
func (ac *AuthController) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var user models.User
	err := ac.DB.Preload("Tenant").Where("email = ?", req.Email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !utils.CheckPassword(req.Password, user.PasswordHash)) {
		ac.recordSignIn(c, nil, req.Email, false, "invalid credentials")
		middleware.RecordLoginAttempt(false)
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid email or password", nil)
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}

	if !user.IsActive || user.Status == models.UserStatusSuspended {
		ac.recordSignIn(c, &user, req.Email, false, "account suspended")
		middleware.RecordLoginAttempt(false)
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Account is suspended", nil)
	}
	if user.Tenant != nil && user.Tenant.Status == models.TenantStatusSuspended && !user.Role.IsPlatformLevel() {
		ac.recordSignIn(c, &user, req.Email, false, "tenant suspended")
		middleware.RecordLoginAttempt(false)
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Tenant is suspended", nil)
	}

	now := time.Now()
	if err := ac.DB.Model(&user).Update("last_login_at", now).Error; err != nil {
		ac.Logger.Printf("failed to update last login for %s: %v", user.Email, err)
	}
	user.LastLoginAt = &now

	ac.recordSignIn(c, &user, req.Email, true, "")
	middleware.RecordLoginAttempt(true)
	ac.Audit.Record(models.AuditLog{
		TenantID:  user.TenantID,
		UserID:    &user.ID,
		EventType: models.EventLogin,
		Action:    user.Email + " signed in",
		Resource:  "user/" + user.ID.String(),
		Severity:  models.SeverityLow,
		IPAddress: c.IP(),
		UserAgent: c.Get("User-Agent"),
	})

	accessToken, refreshToken, err := utils.GenerateJWTToken(&user)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate tokens", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"user":          user,
		"access_token":  accessToken,
		"refresh_token": refreshToken,
	}))
}

// Refresh exchanges a refresh token for a new token pair
func (ac *AuthController) Refresh(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	accessToken, refreshToken, err := utils.RefreshTokens(ac.DB, req.RefreshToken)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid refresh token", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
	}))
}

// Session returns the authenticated user with their tenant
func (ac *AuthController) Session(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"user":        user,
		"permissions": models.PermissionsForRole(user.Role),
	}))
}

// Logout bumps the token version, revoking every outstanding token
func (ac *AuthController) Logout(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	if err := ac.DB.Model(user).Update("token_version", gorm.Expr("token_version + 1")).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to log out", err)
	}

	ac.Audit.Record(models.AuditLog{
		TenantID:  user.TenantID,
		UserID:    &user.ID,
		EventType: models.EventLogout,
		Action:    user.Email + " signed out",
		Resource:  "user/" + user.ID.String(),
		Severity:  models.SeverityLow,
		IPAddress: c.IP(),
		UserAgent: c.Get("User-Agent"),
	})

	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Logged out"}))
}

// ChangePassword verifies the current password, sets the new one and revokes
// existing sessions
func (ac *AuthController) ChangePassword(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	if !utils.CheckPassword(req.CurrentPassword, user.PasswordHash) {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Current password is incorrect", nil)
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to process password", err)
	}

	updates := map[string]interface{}{
		"password_hash": hash,
		"token_version": gorm.Expr("token_version + 1"),
	}
	if err := ac.DB.Model(user).Updates(updates).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to change password", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Password changed"}))
}

// ForgotPassword emails a reset code. The response is identical whether or
// not the email exists so the endpoint cannot be used for enumeration.
func (ac *AuthController) ForgotPassword(c *fiber.Ctx) error {
	var req ForgotPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	neutral := utils.SuccessResponse(fiber.Map{
		"message": "If the email is registered, a reset code has been sent",
	})

	var user models.User
	if err := ac.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		return c.JSON(neutral)
	}

	otp, err := utils.GenerateOTP()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate reset code", err)
	}

	expires := time.Now().Add(15 * time.Minute)
	updates := map[string]interface{}{"otp": otp, "otp_expires_at": expires}
	if err := ac.DB.Model(&user).Updates(updates).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to store reset code", err)
	}

	if err := utils.SendPasswordResetOTPEmail(user.Email, otp); err != nil {
		ac.Logger.Printf("failed to send reset email to %s: %v", user.Email, err)
	}

	return c.JSON(neutral)
}

// ResetPassword consumes a valid OTP and sets a new password
func (ac *AuthController) ResetPassword(c *fiber.Ctx) error {
	var req ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var user models.User
	if err := ac.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid or expired reset code", nil)
	}

	if user.OTP == "" || user.OTP != req.OTP || user.OTPExpiresAt == nil || user.OTPExpiresAt.Before(time.Now()) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid or expired reset code", nil)
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to process password", err)
	}

	updates := map[string]interface{}{
		"password_hash":  hash,
		"otp":            "",
		"otp_expires_at": nil,
		"token_version":  gorm.Expr("token_version + 1"),
	}
	if err := ac.DB.Model(&user).Updates(updates).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to reset password", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Password reset"}))
}

func (ac *AuthController) recordSignIn(c *fiber.Ctx, user *models.User, email string, success bool, reason string) {
	entry := models.SignInLog{
		Email:     email,
		Success:   success,
		Reason:    reason,
		IPAddress: c.IP(),
		UserAgent: c.Get("User-Agent"),
	}
	if user != nil {
		entry.UserID = &user.ID
	}
	if err := ac.DB.Create(&entry).Error; err != nil {
		ac.Logger.Printf("failed to write sign-in log for %s: %v", email, err)
	}
}
