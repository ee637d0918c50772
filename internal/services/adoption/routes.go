package adoption

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rehome-app/rehome-api/internal/middleware"
)

// SetupRoutes registers the adoption endpoints.
func (s *AdoptionService) SetupRoutes(app *fiber.App) {
	api := app.Group("/api/adoptions")
	api.Use(middleware.AuthMiddleware(s.jwtService))

	api.Post("/", s.CreateRequest)
	api.Get("/my", s.GetMyAdoptions)
	api.Post("/:petID/confirm", s.Confirm)
	api.Post("/:petID/deny", s.Deny)
	api.Post("/:petID/cancel", s.Cancel)
	api.Post("/:petID/reset", s.Reset, middleware.RequireRole("admin"))
	api.Get("/archive/:petID", s.GetArchive)
}
