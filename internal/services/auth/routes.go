package auth

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rehome-app/rehome-api/internal/middleware"
)

// SetupRoutes registers the auth endpoints.
func (s *AuthService) SetupRoutes(app *fiber.App) {
	app.Post("/api/auth/telegram", s.TelegramAuthHandler)

	protected := app.Group("/api/profile")
	protected.Use(middleware.AuthMiddleware(s.jwtService))
	protected.Get("/", s.GetProfile)
}
