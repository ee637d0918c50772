package pet

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rehome-app/rehome-api/internal/middleware"
)

// SetupRoutes registers the pet catalog endpoints. The catalog reads are
// public; mutations and the personal listing view require auth.
func (s *PetService) SetupRoutes(app *fiber.App) {
	auth := middleware.AuthMiddleware(s.jwtService)

	api := app.Group("/api/pets")
	api.Get("/", s.GetPets)
	api.Post("/", s.CreatePet, auth)
	api.Get("/my", s.GetMyPets, auth)
	api.Get("/:id", s.GetPet)
	api.Put("/:id", s.UpdatePet, auth)
	api.Delete("/:id", s.DeletePet, auth)
}
