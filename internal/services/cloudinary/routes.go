package cloudinary

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rehome-app/rehome-api/internal/middleware"
)

// SetupRoutes registers the upload signing endpoint.
func (s *CloudinaryService) SetupRoutes(app *fiber.App) {
	api := app.Group("/api/upload")
	api.Use(middleware.AuthMiddleware(s.jwtService))

	api.Get("/params", s.GenerateUploadParams)
}
