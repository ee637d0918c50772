package storage

import (
	"time"

	"github.com/google/uuid"

	"github.com/rehome-app/rehome-api/internal/models"
)

// ArchiveEntry is the durable record of a finished adoption attempt. The
// archive is an append-only projection of the embedded state machine: every
// time an adoption state reaches a terminal outcome (adopted, denied,
// cancelled, reset) the full history is archived in the same commit that
// clears or deletes the pet.
type ArchiveEntry struct {
	ID         uuid.UUID            `json:"id"`
	PetID      uuid.UUID            `json:"pet_id"`
	PetName    string               `json:"pet_name"`
	OwnerID    uuid.UUID            `json:"owner_id"`
	AdopterID  uuid.UUID            `json:"adopter_id"`
	Outcome    models.Phase         `json:"outcome"`
	History    []models.PhaseChange `json:"history"`
	ArchivedAt time.Time            `json:"archived_at"`
}

// outcomeOf reads the final outcome from an adoption state: the last history
// entry when present, the phase otherwise.
func outcomeOf(st *models.AdoptionState) models.Phase {
	if n := len(st.History); n > 0 {
		return st.History[n-1].Phase
	}
	return st.Phase
}

func clonePet(p *models.Pet) *models.Pet {
	cp := *p
	cp.Photos = append([]models.PetPhoto(nil), p.Photos...)
	cp.Adoption = p.Adoption.Clone()
	return &cp
}
