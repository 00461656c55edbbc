package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"gorm.io/gorm"

	controller "blicktrack/controllers"
	"blicktrack/middleware"
	"blicktrack/models"
	"blicktrack/services"
	"blicktrack/worker"
)

// Setup wires every route group. The audit worker is shared so all mutating
// handlers feed the same queue.
func Setup(app *fiber.App, db *gorm.DB, audit *worker.AuditWorker, entitlements *services.EntitlementService, dashboard *services.DashboardService) {
	requestLog := logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	})

	authController := controller.NewAuthController(db, log.New(os.Stdout, "AUTH: ", log.LstdFlags), audit)
	dashboardController := controller.NewDashboardController(db, log.New(os.Stdout, "DASHBOARD: ", log.LstdFlags), dashboard, entitlements)
	platformController := controller.NewPlatformAdminController(db, log.New(os.Stdout, "PLATFORM: ", log.LstdFlags), audit, dashboard)
	tenantAdminController := controller.NewTenantAdminController(db, log.New(os.Stdout, "TENANT: ", log.LstdFlags), audit)
	featuresController := controller.NewTenantFeaturesController(db, log.New(os.Stdout, "FEATURES: ", log.LstdFlags), audit, entitlements)
	billingController := controller.NewBillingController(db, log.New(os.Stdout, "BILLING: ", log.LstdFlags), audit)

	// Public auth endpoints
	auth := app.Group("/api/auth", requestLog)
	auth.Post("/signup", authController.Signup)
	auth.Post("/login", middleware.LoginRateLimiter(), authController.Login)
	auth.Post("/refresh", authController.Refresh)
	auth.Post("/forgot-password", authController.ForgotPassword)
	auth.Post("/reset-password", authController.ResetPassword)

	// Protected auth endpoints
	protectedAuth := auth.Group("", middleware.Protected())
	protectedAuth.Get("/session", authController.Session)
	protectedAuth.Post("/logout", authController.Logout)
	protectedAuth.Post("/change-password", authController.ChangePassword)

	// Stripe webhook is authenticated by signature, not JWT
	app.Post("/api/billing/webhook", billingController.HandleWebhook)

	api := app.Group("/api/v1", middleware.Protected(), requestLog)

	// Role-aware dashboard
	dash := api.Group("/dashboard")
	dash.Get("/stats", dashboardController.GetStats)
	dash.Get("/activity", dashboardController.GetActivity)
	dash.Get("/projects", dashboardController.GetProjects)
	dash.Get("/health", dashboardController.GetHealth)
	dash.Get("/navigation", dashboardController.GetNavigation)
	dash.Get("/permissions", dashboardController.GetPermissions)
	dash.Get("/features", dashboardController.GetFeatures)
	dash.Get("/features/:slug/access", dashboardController.CheckFeatureAccess)
	dash.Get("/tenant-features", dashboardController.GetTenantFeatureOverrides)

	// Tenant entitlements
	tenants := api.Group("/tenants")
	tenants.Get("/:id/features", featuresController.GetByID)
	tenants.Get("/slug/:slug/features", featuresController.GetBySlug)
	tenants.Patch("/:id/features", middleware.RequirePlatformAdmin(), featuresController.SetOverride)

	// Tenant administration (own tenant)
	tenantAdmin := api.Group("/tenant-admin", middleware.RequireRoles(models.RoleTenantAdmin, models.RoleSuperAdmin, models.RolePlatformAdmin))
	tenantAdmin.Get("/users", tenantAdminController.ListUsers)
	tenantAdmin.Post("/users", tenantAdminController.CreateUser)
	tenantAdmin.Put("/users/:id/role", tenantAdminController.ChangeUserRole)
	tenantAdmin.Put("/users/:id/status", tenantAdminController.ChangeUserStatus)
	tenantAdmin.Get("/settings", tenantAdminController.GetSettings)
	tenantAdmin.Put("/settings", tenantAdminController.UpdateSettings)

	// Platform administration (cross-tenant)
	platform := api.Group("/platform-admin", middleware.RequirePlatformAdmin())
	platform.Get("/tenants", platformController.ListTenants)
	platform.Post("/tenants", platformController.CreateTenant)
	platform.Get("/tenants/:id", platformController.GetTenant)
	platform.Put("/tenants/:id/suspend", platformController.SuspendTenant)
	platform.Put("/tenants/:id/activate", platformController.ActivateTenant)
	platform.Get("/users", platformController.ListUsers)
	platform.Put("/users/:id/role", platformController.ChangeUserRole)
	platform.Get("/system/health", platformController.SystemHealth)
	platform.Get("/system/metrics", platformController.SystemMetrics)

	// Billing
	billing := api.Group("/billing")
	billing.Get("/plans", billingController.ListPlans)
	billing.Post("/create-intent", middleware.RequireRoles(models.RoleTenantAdmin, models.RoleSuperAdmin, models.RolePlatformAdmin), billingController.CreatePaymentIntent)
}
