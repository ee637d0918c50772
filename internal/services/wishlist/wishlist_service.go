package wishlist

import (
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rehome-app/rehome-api/internal/config"
	"github.com/rehome-app/rehome-api/internal/db"
	"github.com/rehome-app/rehome-api/internal/models"
	"github.com/rehome-app/rehome-api/internal/utils"
)

// WishlistService lets users bookmark pets they are considering adopting.
type WishlistService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
}

// NewWishlistService creates a new WishlistService.
func NewWishlistService(cfg *config.Config) *WishlistService {
	return &WishlistService{
		cfg:        cfg,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
	}
}

// AddToWishlist bookmarks a pet for the caller.
func (s *WishlistService) AddToWishlist(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	var requestData struct {
		PetID string `json:"pet_id"`
	}
	if err := c.Bind().Body(&requestData); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	petUUID, err := uuid.Parse(requestData.PetID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid pet ID"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	var exists bool
	err = db.Pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM pets WHERE id = $1 AND status = $2)
	`, petUUID, models.PetStatusAvailable).Scan(&exists)
	if err != nil {
		log.Printf("wishlist: checking pet: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to check pet"})
	}
	if !exists {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Pet not found or not available"})
	}

	entryID := uuid.New()
	tag, err := db.Pool.Exec(ctx, `
		INSERT INTO wishlist (id, user_id, pet_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, pet_id) DO NOTHING
	`, entryID, userUUID, petUUID)
	if err != nil {
		log.Printf("wishlist: inserting entry: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save wishlist entry"})
	}
	if tag.RowsAffected() == 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Pet is already in your wishlist"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"id":      entryID,
	})
}

// RemoveFromWishlist removes a pet from the caller's wishlist.
func (s *WishlistService) RemoveFromWishlist(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	petUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid pet ID"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	tag, err := db.Pool.Exec(ctx, `
		DELETE FROM wishlist WHERE user_id = $1 AND pet_id = $2
	`, userUUID, petUUID)
	if err != nil {
		log.Printf("wishlist: deleting entry: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to remove wishlist entry"})
	}
	if tag.RowsAffected() == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Pet is not in your wishlist"})
	}

	return c.JSON(fiber.Map{"success": true})
}

// GetWishlist returns the caller's bookmarked pets that are still listed.
func (s *WishlistService) GetWishlist(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	limit := 20
	offset, _ := strconv.Atoi(c.Query("offset", "0"))

	ctx, cancel := db.GetContext()
	defer cancel()

	rows, err := db.Pool.Query(ctx, `
		SELECT w.id, w.created_at,
		       p.id, p.owner_id, p.name, p.breed, p.age, p.gender, p.size, p.color,
		       p.location, p.description, p.vaccinated, p.neutered, p.photos, p.status,
		       p.created_at, p.updated_at
		FROM wishlist w
		JOIN pets p ON p.id = w.pet_id
		WHERE w.user_id = $1
		ORDER BY w.created_at DESC
		LIMIT $2 OFFSET $3
	`, userUUID, limit, offset)
	if err != nil {
		log.Printf("wishlist: querying entries: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load wishlist"})
	}
	defer rows.Close()

	type entry struct {
		ID        uuid.UUID  `json:"id"`
		CreatedAt string     `json:"created_at"`
		Pet       models.Pet `json:"pet"`
	}

	var entries []entry
	for rows.Next() {
		var e entry
		var createdAt time.Time
		var photosData []byte
		if err := rows.Scan(
			&e.ID, &createdAt,
			&e.Pet.ID, &e.Pet.OwnerID, &e.Pet.Name, &e.Pet.Breed, &e.Pet.Age,
			&e.Pet.Gender, &e.Pet.Size, &e.Pet.Color, &e.Pet.Location,
			&e.Pet.Description, &e.Pet.Vaccinated, &e.Pet.Neutered, &photosData,
			&e.Pet.Status, &e.Pet.CreatedAt, &e.Pet.UpdatedAt,
		); err != nil {
			log.Printf("wishlist: scanning entry: %v", err)
			continue
		}
		e.CreatedAt = createdAt.Format(time.RFC3339)
		if len(photosData) > 0 {
			if err := json.Unmarshal(photosData, &e.Pet.Photos); err != nil {
				log.Printf("wishlist: decoding photos: %v", err)
			}
		}
		entries = append(entries, e)
	}

	var total int
	err = db.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM wishlist WHERE user_id = $1
	`, userUUID).Scan(&total)
	if err != nil {
		log.Printf("wishlist: counting entries: %v", err)
	}

	return c.JSON(fiber.Map{
		"wishlist": entries,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

// CheckWishlist reports whether a pet is in the caller's wishlist.
func (s *WishlistService) CheckWishlist(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	petUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid pet ID"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	var entryID uuid.UUID
	err = db.Pool.QueryRow(ctx, `
		SELECT id FROM wishlist WHERE user_id = $1 AND pet_id = $2
	`, userUUID, petUUID).Scan(&entryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.JSON(fiber.Map{"in_wishlist": false})
		}
		log.Printf("wishlist: checking entry: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to check wishlist"})
	}

	return c.JSON(fiber.Map{
		"in_wishlist": true,
		"entry_id":    entryID,
	})
}
