package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"blicktrack/config"
)

// CORS builds the fiber CORS middleware from the configured origins
func CORS() fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins:     strings.Join(config.AppConfig.CORSOrigins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Requested-With",
		AllowCredentials: true,
		MaxAge:           3600,
	})
}
