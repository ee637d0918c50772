package stats

import (
	"log"

	"github.com/gofiber/fiber/v3"

	"github.com/rehome-app/rehome-api/internal/config"
	"github.com/rehome-app/rehome-api/internal/db"
	"github.com/rehome-app/rehome-api/internal/models"
	"github.com/rehome-app/rehome-api/internal/websocket"
)

// StatsService exposes aggregate counters for the landing page.
type StatsService struct {
	cfg     *config.Config
	manager *websocket.Manager
}

// NewStatsService creates a new StatsService.
func NewStatsService(cfg *config.Config, manager *websocket.Manager) *StatsService {
	return &StatsService{cfg: cfg, manager: manager}
}

// GetStats returns catalog, adoption and presence counters.
func (s *StatsService) GetStats(c fiber.Ctx) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	var available, inProgress, completed, users int

	err := db.Pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = $1),
			COUNT(*) FILTER (WHERE adoption IS NOT NULL)
		FROM pets
	`, models.PetStatusAvailable).Scan(&available, &inProgress)
	if err != nil {
		log.Printf("stats: counting pets: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load stats"})
	}

	err = db.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM adoption_archive WHERE outcome = 'adopted'
	`).Scan(&completed)
	if err != nil {
		log.Printf("stats: counting completed adoptions: %v", err)
	}

	err = db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&users)
	if err != nil {
		log.Printf("stats: counting users: %v", err)
	}

	online, err := s.manager.Online(ctx)
	if err != nil {
		log.Printf("stats: counting online users: %v", err)
	}

	return c.JSON(fiber.Map{
		"pets_available":      available,
		"adoptions_in_flight": inProgress,
		"adoptions_completed": completed,
		"registered_users":    users,
		"online_users":        len(online),
	})
}
