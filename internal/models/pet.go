package models

import (
	"time"

	"github.com/google/uuid"
)

// Pet statuses shown in listings. "adopted" only ever appears in the
// adoption archive; a pet whose adoption completes is deleted.
const (
	PetStatusAvailable = "available"
	PetStatusPending   = "pending"
	PetStatusAdopted   = "adopted"
)

// Pet is a rehoming listing.
type Pet struct {
	ID          uuid.UUID      `json:"id"`
	OwnerID     uuid.UUID      `json:"owner_id"`
	Name        string         `json:"name"`
	Breed       string         `json:"breed,omitempty"`
	Age         int            `json:"age,omitempty"`
	Gender      string         `json:"gender,omitempty"` // male, female
	Size        string         `json:"size,omitempty"`   // small, medium, large
	Color       string         `json:"color,omitempty"`
	Location    string         `json:"location,omitempty"`
	Description string         `json:"description,omitempty"`
	Vaccinated  bool           `json:"vaccinated"`
	Neutered    bool           `json:"neutered"`
	Photos      []PetPhoto     `json:"photos,omitempty"`
	Status      string         `json:"status"`
	Adoption    *AdoptionState `json:"adoption,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`

	// Populated for API responses only.
	Owner *User `json:"owner,omitempty"`
}

// PetPhoto is one uploaded photo of a pet.
type PetPhoto struct {
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	PublicID     string `json:"public_id,omitempty"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	IsMain       bool   `json:"is_main"`
}
