package adoption

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	workflow "github.com/rehome-app/rehome-api/internal/adoption"
	"github.com/rehome-app/rehome-api/internal/config"
	"github.com/rehome-app/rehome-api/internal/db"
	"github.com/rehome-app/rehome-api/internal/models"
	"github.com/rehome-app/rehome-api/internal/storage"
	"github.com/rehome-app/rehome-api/internal/utils"
)

// AdoptionService exposes the adoption workflow over HTTP.
type AdoptionService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
	workflow   *workflow.Workflow
}

// NewAdoptionService creates a new AdoptionService.
func NewAdoptionService(cfg *config.Config, wf *workflow.Workflow) *AdoptionService {
	return &AdoptionService{
		cfg:        cfg,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
		workflow:   wf,
	}
}

// CreateRequest starts an adoption for a pet.
func (s *AdoptionService) CreateRequest(c fiber.Ctx) error {
	callerID, err := callerUUID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	var requestData struct {
		PetID   string `json:"pet_id"`
		Message string `json:"message"`
	}
	if err := c.Bind().Body(&requestData); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	petID, err := uuid.Parse(requestData.PetID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid pet ID"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	pet, err := s.workflow.Request(ctx, petID, callerID, requestData.Message)
	if err != nil {
		return workflowError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"pet":     pet,
	})
}

// Confirm records the caller's confirmation; when it is the second one the
// adoption completes and the pet disappears from the listings.
func (s *AdoptionService) Confirm(c fiber.Ctx) error {
	callerID, err := callerUUID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	petID, err := uuid.Parse(c.Params("petID"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid pet ID"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	result, err := s.workflow.Confirm(ctx, petID, callerID)
	if err != nil {
		return workflowError(c, err)
	}

	return c.JSON(fiber.Map{
		"completed": result.Completed,
		"pet":       result.Pet,
	})
}

// Deny lets the owner reject the in-flight adoption.
func (s *AdoptionService) Deny(c fiber.Ctx) error {
	return s.closeAdoption(c, s.workflow.Deny)
}

// Cancel lets the adopter withdraw the in-flight adoption.
func (s *AdoptionService) Cancel(c fiber.Ctx) error {
	return s.closeAdoption(c, s.workflow.Cancel)
}

// Reset clears any adoption state on a pet, whatever its phase. Admin only;
// used to recover stuck transfers.
func (s *AdoptionService) Reset(c fiber.Ctx) error {
	return s.closeAdoption(c, s.workflow.Reset)
}

// GetMyAdoptions lists the pets with an adoption in flight involving the
// caller, on either side.
func (s *AdoptionService) GetMyAdoptions(c fiber.Ctx) error {
	callerID, err := callerUUID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	rows, err := db.Pool.Query(ctx, `
		SELECT id, owner_id, name, breed, age, gender, size, color, location,
		       description, vaccinated, neutered, photos, status, adoption, created_at, updated_at
		FROM pets
		WHERE adoption IS NOT NULL
		  AND (owner_id = $1 OR adoption->>'adopter_id' = $2)
		ORDER BY updated_at DESC
	`, callerID, callerID.String())
	if err != nil {
		log.Printf("adoption: querying adoptions: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load adoptions"})
	}
	defer rows.Close()

	var pets []models.Pet
	for rows.Next() {
		var pet models.Pet
		var photosData, adoptionData []byte
		if err := rows.Scan(
			&pet.ID, &pet.OwnerID, &pet.Name, &pet.Breed, &pet.Age, &pet.Gender,
			&pet.Size, &pet.Color, &pet.Location, &pet.Description,
			&pet.Vaccinated, &pet.Neutered, &photosData, &pet.Status,
			&adoptionData, &pet.CreatedAt, &pet.UpdatedAt,
		); err != nil {
			log.Printf("adoption: scanning pet: %v", err)
			continue
		}
		if len(photosData) > 0 {
			if err := json.Unmarshal(photosData, &pet.Photos); err != nil {
				log.Printf("adoption: decoding photos: %v", err)
			}
		}
		if len(adoptionData) > 0 {
			if err := json.Unmarshal(adoptionData, &pet.Adoption); err != nil {
				log.Printf("adoption: decoding adoption state: %v", err)
			}
		}
		pets = append(pets, pet)
	}

	return c.JSON(fiber.Map{
		"adoptions": pets,
		"count":     len(pets),
	})
}

// GetArchive returns the audit trail of finished adoption attempts for one
// pet. Parties see their own attempts; admins see everything.
func (s *AdoptionService) GetArchive(c fiber.Ctx) error {
	callerID, err := callerUUID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	petID, err := uuid.Parse(c.Params("petID"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid pet ID"})
	}

	isAdmin := c.Locals("userRole") == "admin"

	ctx, cancel := db.GetContext()
	defer cancel()

	rows, err := db.Pool.Query(ctx, `
		SELECT id, pet_id, pet_name, owner_id, adopter_id, outcome, history, archived_at
		FROM adoption_archive
		WHERE pet_id = $1 AND ($2 OR owner_id = $3 OR adopter_id = $3)
		ORDER BY archived_at ASC
	`, petID, isAdmin, callerID)
	if err != nil {
		log.Printf("adoption: querying archive: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load archive"})
	}
	defer rows.Close()

	var entries []storage.ArchiveEntry
	for rows.Next() {
		var entry storage.ArchiveEntry
		var historyData []byte
		if err := rows.Scan(
			&entry.ID, &entry.PetID, &entry.PetName, &entry.OwnerID,
			&entry.AdopterID, &entry.Outcome, &historyData, &entry.ArchivedAt,
		); err != nil {
			log.Printf("adoption: scanning archive entry: %v", err)
			continue
		}
		if len(historyData) > 0 {
			if err := json.Unmarshal(historyData, &entry.History); err != nil {
				log.Printf("adoption: decoding history: %v", err)
			}
		}
		entries = append(entries, entry)
	}

	return c.JSON(fiber.Map{
		"archive": entries,
		"count":   len(entries),
	})
}

func (s *AdoptionService) closeAdoption(c fiber.Ctx, op func(ctx context.Context, petID, callerID uuid.UUID) (*models.Pet, error)) error {
	callerID, err := callerUUID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	petID, err := uuid.Parse(c.Params("petID"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid pet ID"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	pet, err := op(ctx, petID, callerID)
	if err != nil {
		return workflowError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"pet":     pet,
	})
}

func callerUUID(c fiber.Ctx) (uuid.UUID, error) {
	userID, _ := c.Locals("userID").(string)
	return uuid.Parse(userID)
}

// workflowError maps workflow outcomes to HTTP responses.
func workflowError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, workflow.ErrPetNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Pet not found"})
	case errors.Is(err, workflow.ErrAlreadyInProgress):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "An adoption is already in progress for this pet"})
	case errors.Is(err, workflow.ErrSelfAdoption):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "You cannot adopt your own pet"})
	case errors.Is(err, workflow.ErrNotAuthorized):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "You are not a party to this adoption"})
	case errors.Is(err, workflow.ErrNoActiveAdoption):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No adoption in progress for this pet"})
	case errors.Is(err, workflow.ErrInvalidTransition):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid adoption state transition"})
	case errors.Is(err, workflow.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Concurrent update, please retry"})
	default:
		log.Printf("adoption: unexpected error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal error"})
	}
}
