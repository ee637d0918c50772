package stats

import "github.com/gofiber/fiber/v3"

// SetupRoutes registers the public stats endpoint.
func (s *StatsService) SetupRoutes(app *fiber.App) {
	app.Get("/api/stats", s.GetStats)
}
