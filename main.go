package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"blicktrack/config"
	"blicktrack/middleware"
	"blicktrack/models"
	"blicktrack/routes"
	"blicktrack/services"
	"blicktrack/utils"
	"blicktrack/worker"
)

func main() {
	logger := log.New(os.Stdout, "BLICKTRACK: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// The permission table must cover every role before serving traffic
	if err := models.ValidateRolePermissions(); err != nil {
		logger.Fatalf("Invalid role permission table: %v", err)
	}

	if config.AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.Printf("Sentry initialization failed: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	// Initialize database connection (runs migrations and seeding)
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	utils.InitStripe()

	appLogger := logrus.New()
	appLogger.SetFormatter(&logrus.JSONFormatter{})

	// Services
	entitlements := services.NewEntitlementService(config.DB, appLogger)
	dashboard := services.NewDashboardService(config.DB, entitlements, appLogger)

	// Audit worker persists events off the request path
	auditWorker := worker.NewAuditWorker(config.DB, appLogger, 256)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go auditWorker.Start(ctx)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if fe, ok := err.(*fiber.Error); ok {
				code = fe.Code
			}
			if code >= 500 {
				sentry.CaptureException(err)
			}
			return utils.ErrorResponse(c, code, "Request failed", err)
		},
	})

	app.Use(recover.New())
	app.Use(middleware.CORS())
	app.Use(middleware.Metrics())

	// Prometheus scrape endpoint
	app.Get("/metrics", middleware.MetricsHandler())

	// Liveness probe
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(dashboard.GetSystemHealth(c.Context()))
	})

	routes.Setup(app, config.DB, auditWorker, entitlements, dashboard)

	logger.Printf("Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
