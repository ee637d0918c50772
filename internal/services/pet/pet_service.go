package pet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rehome-app/rehome-api/internal/adoption"
	"github.com/rehome-app/rehome-api/internal/config"
	"github.com/rehome-app/rehome-api/internal/db"
	"github.com/rehome-app/rehome-api/internal/models"
	"github.com/rehome-app/rehome-api/internal/utils"
)

// PhotoCleaner removes an uploaded asset from media storage. Cleanup is
// best-effort; a failure never blocks the pet mutation that triggered it.
type PhotoCleaner interface {
	Destroy(ctx context.Context, publicID string) error
}

// PetService handles pet listing CRUD.
type PetService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
	store      adoption.PetStore
	cleaner    PhotoCleaner
}

// NewPetService creates a new PetService. cleaner may be nil when media
// cleanup is not configured.
func NewPetService(cfg *config.Config, store adoption.PetStore, cleaner PhotoCleaner) *PetService {
	return &PetService{
		cfg:        cfg,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
		store:      store,
		cleaner:    cleaner,
	}
}

type petRequest struct {
	Name        string            `json:"name"`
	Breed       string            `json:"breed"`
	Age         int               `json:"age"`
	Gender      string            `json:"gender"`
	Size        string            `json:"size"`
	Color       string            `json:"color"`
	Location    string            `json:"location"`
	Description string            `json:"description"`
	Vaccinated  bool              `json:"vaccinated"`
	Neutered    bool              `json:"neutered"`
	Photos      []models.PetPhoto `json:"photos"`
}

// CreatePet creates a new pet listing owned by the caller.
func (s *PetService) CreatePet(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	ownerID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	var requestData petRequest
	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("pet: decoding request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if requestData.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Name is required"})
	}

	validGenders := map[string]bool{"male": true, "female": true, "unknown": true}
	if !validGenders[requestData.Gender] {
		requestData.Gender = "unknown"
	}

	validSizes := map[string]bool{"small": true, "medium": true, "large": true}
	if !validSizes[requestData.Size] {
		requestData.Size = "medium"
	}

	// First photo becomes the card thumbnail.
	for i := range requestData.Photos {
		requestData.Photos[i].IsMain = i == 0
	}

	petID := uuid.New()
	photosData, err := json.Marshal(requestData.Photos)
	if err != nil {
		log.Printf("pet: encoding photos: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save pet"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	_, err = db.Pool.Exec(ctx, `
		INSERT INTO pets (id, owner_id, name, breed, age, gender, size, color, location,
		                  description, vaccinated, neutered, photos, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, petID, ownerID, requestData.Name, requestData.Breed, requestData.Age,
		requestData.Gender, requestData.Size, requestData.Color, requestData.Location,
		requestData.Description, requestData.Vaccinated, requestData.Neutered,
		photosData, models.PetStatusAvailable)
	if err != nil {
		log.Printf("pet: inserting pet: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save pet"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"pet_id":  petID,
	})
}

// GetPets returns the public pet catalog with filters and pagination.
func (s *PetService) GetPets(c fiber.Ctx) error {
	limit := 20
	offset, _ := strconv.Atoi(c.Query("offset", "0"))

	where := "status = $1"
	args := []any{c.Query("status", string(models.PetStatusAvailable))}

	for _, f := range []struct{ name, value string }{
		{"breed", c.Query("breed")},
		{"gender", c.Query("gender")},
		{"size", c.Query("size")},
		{"location", c.Query("location")},
	} {
		if f.value != "" {
			args = append(args, f.value)
			where += fmt.Sprintf(" AND %s = $%d", f.name, len(args))
		}
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	query := fmt.Sprintf(`
		SELECT id, owner_id, name, breed, age, gender, size, color, location,
		       description, vaccinated, neutered, photos, status, created_at, updated_at
		FROM pets
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)

	rows, err := db.Pool.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		log.Printf("pet: querying pets: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load pets"})
	}
	defer rows.Close()

	pets := scanPets(rows)

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM pets WHERE %s", where)
	if err := db.Pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		log.Printf("pet: counting pets: %v", err)
	}

	return c.JSON(fiber.Map{
		"pets":   pets,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GetPet returns one pet with its owner's public profile.
func (s *PetService) GetPet(c fiber.Ctx) error {
	petID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid pet ID"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	var pet models.Pet
	var owner models.User
	var photosData, adoptionData []byte
	err = db.Pool.QueryRow(ctx, `
		SELECT p.id, p.owner_id, p.name, p.breed, p.age, p.gender, p.size, p.color,
		       p.location, p.description, p.vaccinated, p.neutered, p.photos, p.status,
		       p.adoption, p.created_at, p.updated_at,
		       u.id, COALESCE(u.username, ''), COALESCE(u.first_name, ''),
		       COALESCE(u.last_name, ''), COALESCE(u.avatar_url, '')
		FROM pets p
		JOIN users u ON u.id = p.owner_id
		WHERE p.id = $1
	`, petID).Scan(
		&pet.ID, &pet.OwnerID, &pet.Name, &pet.Breed, &pet.Age, &pet.Gender,
		&pet.Size, &pet.Color, &pet.Location, &pet.Description,
		&pet.Vaccinated, &pet.Neutered, &photosData, &pet.Status,
		&adoptionData, &pet.CreatedAt, &pet.UpdatedAt,
		&owner.ID, &owner.Username, &owner.FirstName, &owner.LastName, &owner.AvatarURL,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Pet not found"})
		}
		log.Printf("pet: loading pet: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load pet"})
	}

	if len(photosData) > 0 {
		if err := json.Unmarshal(photosData, &pet.Photos); err != nil {
			log.Printf("pet: decoding photos: %v", err)
		}
	}
	if len(adoptionData) > 0 {
		if err := json.Unmarshal(adoptionData, &pet.Adoption); err != nil {
			log.Printf("pet: decoding adoption state: %v", err)
		}
	}
	pet.Owner = &owner

	return c.JSON(fiber.Map{"pet": pet})
}

// GetMyPets returns the caller's own listings, any status.
func (s *PetService) GetMyPets(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	ownerID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	rows, err := db.Pool.Query(ctx, `
		SELECT id, owner_id, name, breed, age, gender, size, color, location,
		       description, vaccinated, neutered, photos, status, created_at, updated_at
		FROM pets
		WHERE owner_id = $1
		ORDER BY updated_at DESC
	`, ownerID)
	if err != nil {
		log.Printf("pet: querying own pets: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load pets"})
	}
	defer rows.Close()

	pets := scanPets(rows)

	return c.JSON(fiber.Map{
		"pets":  pets,
		"count": len(pets),
	})
}

// UpdatePet edits a listing. Only the owner may edit, and not while an
// adoption is in flight.
func (s *PetService) UpdatePet(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	callerID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	petID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid pet ID"})
	}

	var requestData petRequest
	if err := c.Bind().Body(&requestData); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if requestData.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Name is required"})
	}
	for i := range requestData.Photos {
		requestData.Photos[i].IsMain = i == 0
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	var removed []string
	updated, err := s.store.AtomicUpdate(ctx, petID, func(p *models.Pet) (*models.Pet, error) {
		if p.OwnerID != callerID {
			return nil, adoption.ErrNotAuthorized
		}
		if p.Adoption != nil && p.Adoption.Phase.Active() {
			return nil, adoption.ErrAlreadyInProgress
		}
		removed = staleAssets(p.Photos, requestData.Photos)
		p.Name = requestData.Name
		p.Breed = requestData.Breed
		p.Age = requestData.Age
		p.Gender = requestData.Gender
		p.Size = requestData.Size
		p.Color = requestData.Color
		p.Location = requestData.Location
		p.Description = requestData.Description
		p.Vaccinated = requestData.Vaccinated
		p.Neutered = requestData.Neutered
		p.Photos = requestData.Photos
		return p, nil
	})
	if err != nil {
		return mutationError(c, err)
	}

	s.destroyAssets(removed)

	return c.JSON(fiber.Map{
		"success": true,
		"pet":     updated,
	})
}

// DeletePet removes a listing. Only the owner may delete, and a pet with an
// adoption in flight cannot be deleted until the adoption is resolved.
func (s *PetService) DeletePet(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	callerID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	petID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid pet ID"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	var removed []string
	_, err = s.store.AtomicUpdate(ctx, petID, func(p *models.Pet) (*models.Pet, error) {
		if p.OwnerID != callerID {
			return nil, adoption.ErrNotAuthorized
		}
		if p.Adoption != nil && p.Adoption.Phase.Active() {
			return nil, adoption.ErrAlreadyInProgress
		}
		removed = staleAssets(p.Photos, nil)
		return nil, nil
	})
	if err != nil {
		return mutationError(c, err)
	}

	s.destroyAssets(removed)

	return c.JSON(fiber.Map{"success": true})
}

func (s *PetService) destroyAssets(publicIDs []string) {
	if s.cleaner == nil || len(publicIDs) == 0 {
		return
	}
	ctx, cancel := db.GetContext()
	defer cancel()
	for _, id := range publicIDs {
		if err := s.cleaner.Destroy(ctx, id); err != nil {
			log.Printf("pet: destroying asset %s: %v", id, err)
		}
	}
}

// staleAssets returns the public IDs present in old but absent from next.
func staleAssets(old, next []models.PetPhoto) []string {
	kept := make(map[string]bool, len(next))
	for _, p := range next {
		kept[p.PublicID] = true
	}
	var stale []string
	for _, p := range old {
		if p.PublicID != "" && !kept[p.PublicID] {
			stale = append(stale, p.PublicID)
		}
	}
	return stale
}

func mutationError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, adoption.ErrPetNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Pet not found"})
	case errors.Is(err, adoption.ErrNotAuthorized):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "You do not own this pet"})
	case errors.Is(err, adoption.ErrAlreadyInProgress):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "An adoption is in progress for this pet"})
	default:
		log.Printf("pet: updating pet: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update pet"})
	}
}

func scanPets(rows pgx.Rows) []models.Pet {
	var pets []models.Pet
	for rows.Next() {
		var pet models.Pet
		var photosData []byte
		if err := rows.Scan(
			&pet.ID, &pet.OwnerID, &pet.Name, &pet.Breed, &pet.Age, &pet.Gender,
			&pet.Size, &pet.Color, &pet.Location, &pet.Description,
			&pet.Vaccinated, &pet.Neutered, &photosData, &pet.Status,
			&pet.CreatedAt, &pet.UpdatedAt,
		); err != nil {
			log.Printf("pet: scanning pet row: %v", err)
			continue
		}
		if len(photosData) > 0 {
			if err := json.Unmarshal(photosData, &pet.Photos); err != nil {
				log.Printf("pet: decoding photos: %v", err)
			}
		}
		pets = append(pets, pet)
	}
	return pets
}
