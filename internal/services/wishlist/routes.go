package wishlist

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rehome-app/rehome-api/internal/middleware"
)

// SetupRoutes registers the wishlist endpoints.
func (s *WishlistService) SetupRoutes(app *fiber.App) {
	api := app.Group("/api/wishlist")
	api.Use(middleware.AuthMiddleware(s.jwtService))

	api.Get("/", s.GetWishlist)
	api.Post("/", s.AddToWishlist)
	api.Delete("/:id", s.RemoveFromWishlist)
	api.Get("/:id/check", s.CheckWishlist)
}
