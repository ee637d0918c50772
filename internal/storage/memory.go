package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rehome-app/rehome-api/internal/adoption"
	"github.com/rehome-app/rehome-api/internal/models"
)

// MemoryStore is an in-memory PetStore for tests and single-process
// deployments. A single mutex linearizes all updates, which is the same
// guarantee the postgres store gets from row locking.
type MemoryStore struct {
	mu      sync.Mutex
	pets    map[uuid.UUID]*models.Pet
	archive map[uuid.UUID][]ArchiveEntry
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pets:    make(map[uuid.UUID]*models.Pet),
		archive: make(map[uuid.UUID][]ArchiveEntry),
	}
}

// Put inserts or replaces a pet.
func (m *MemoryStore) Put(p *models.Pet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pets[p.ID] = clonePet(p)
}

// Get returns a copy of the pet or adoption.ErrPetNotFound.
func (m *MemoryStore) Get(ctx context.Context, petID uuid.UUID) (*models.Pet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pets[petID]
	if !ok {
		return nil, adoption.ErrPetNotFound
	}
	return clonePet(p), nil
}

// AtomicUpdate applies fn under the store lock. fn returning a nil pet
// deletes the record; a terminal adoption state left on the pet is archived
// and cleared in the same step, so a terminal phase is never persisted.
func (m *MemoryStore) AtomicUpdate(ctx context.Context, petID uuid.UUID, fn func(*models.Pet) (*models.Pet, error)) (*models.Pet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.pets[petID]
	if !ok {
		return nil, adoption.ErrPetNotFound
	}

	work := clonePet(cur)
	next, err := fn(work)
	if err != nil {
		return nil, err
	}

	if next == nil {
		m.archiveLocked(work)
		delete(m.pets, petID)
		return nil, nil
	}

	if next.Adoption != nil && !next.Adoption.Phase.Active() {
		m.archiveLocked(next)
		next.Adoption = nil
	}
	next.UpdatedAt = time.Now()
	m.pets[petID] = clonePet(next)
	return clonePet(next), nil
}

// Archive returns the archived adoption attempts for a pet, oldest first.
func (m *MemoryStore) Archive(petID uuid.UUID) []ArchiveEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ArchiveEntry(nil), m.archive[petID]...)
}

// Len returns the number of stored pets.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pets)
}

func (m *MemoryStore) archiveLocked(p *models.Pet) {
	if p.Adoption == nil {
		return
	}
	st := p.Adoption
	m.archive[p.ID] = append(m.archive[p.ID], ArchiveEntry{
		ID:         uuid.New(),
		PetID:      p.ID,
		PetName:    p.Name,
		OwnerID:    p.OwnerID,
		AdopterID:  st.AdopterID,
		Outcome:    outcomeOf(st),
		History:    append([]models.PhaseChange(nil), st.History...),
		ArchivedAt: time.Now(),
	})
}
