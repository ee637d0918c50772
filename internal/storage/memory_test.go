package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rehome-app/rehome-api/internal/adoption"
	"github.com/rehome-app/rehome-api/internal/models"
)

func testPet() *models.Pet {
	return &models.Pet{
		ID:      uuid.New(),
		OwnerID: uuid.New(),
		Name:    "Milo",
		Status:  models.PetStatusAvailable,
	}
}

func TestMemoryStoreGet(t *testing.T) {
	store := NewMemoryStore()
	pet := testPet()
	store.Put(pet)

	got, err := store.Get(context.Background(), pet.ID)
	require.NoError(t, err)
	assert.Equal(t, pet.ID, got.ID)

	// Mutating the returned copy must not leak into the store.
	got.Name = "changed"
	again, err := store.Get(context.Background(), pet.ID)
	require.NoError(t, err)
	assert.Equal(t, "Milo", again.Name)

	_, err = store.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, adoption.ErrPetNotFound)
}

func TestMemoryStoreAtomicUpdate(t *testing.T) {
	t.Run("applies the mutation", func(t *testing.T) {
		store := NewMemoryStore()
		pet := testPet()
		store.Put(pet)

		updated, err := store.AtomicUpdate(context.Background(), pet.ID, func(p *models.Pet) (*models.Pet, error) {
			p.Name = "Max"
			return p, nil
		})
		require.NoError(t, err)
		assert.Equal(t, "Max", updated.Name)
	})

	t.Run("an error from fn leaves the record untouched", func(t *testing.T) {
		store := NewMemoryStore()
		pet := testPet()
		store.Put(pet)

		boom := errors.New("boom")
		_, err := store.AtomicUpdate(context.Background(), pet.ID, func(p *models.Pet) (*models.Pet, error) {
			p.Name = "mutated"
			return nil, boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := store.Get(context.Background(), pet.ID)
		require.NoError(t, err)
		assert.Equal(t, "Milo", got.Name)
	})

	t.Run("nil pet deletes and archives", func(t *testing.T) {
		store := NewMemoryStore()
		pet := testPet()
		store.Put(pet)
		adopterID := uuid.New()

		_, err := store.AtomicUpdate(context.Background(), pet.ID, func(p *models.Pet) (*models.Pet, error) {
			p.Adoption = &models.AdoptionState{Phase: models.PhaseOwnerConfirmed, AdopterID: adopterID}
			p.Adoption.Record(models.PhaseAdopted, p.OwnerID, time.Now())
			return nil, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 0, store.Len())

		entries := store.Archive(pet.ID)
		require.Len(t, entries, 1)
		assert.Equal(t, models.PhaseAdopted, entries[0].Outcome)
		assert.Equal(t, adopterID, entries[0].AdopterID)
	})

	t.Run("terminal state is archived and cleared", func(t *testing.T) {
		store := NewMemoryStore()
		pet := testPet()
		store.Put(pet)

		updated, err := store.AtomicUpdate(context.Background(), pet.ID, func(p *models.Pet) (*models.Pet, error) {
			p.Adoption = &models.AdoptionState{Phase: models.PhaseDenied, AdopterID: uuid.New()}
			return p, nil
		})
		require.NoError(t, err)
		assert.Nil(t, updated.Adoption, "terminal phases are never persisted on the pet")

		entries := store.Archive(pet.ID)
		require.Len(t, entries, 1)
		assert.Equal(t, models.PhaseDenied, entries[0].Outcome)
	})

	t.Run("active state stays on the pet", func(t *testing.T) {
		store := NewMemoryStore()
		pet := testPet()
		store.Put(pet)

		updated, err := store.AtomicUpdate(context.Background(), pet.ID, func(p *models.Pet) (*models.Pet, error) {
			p.Adoption = &models.AdoptionState{Phase: models.PhaseRequested, AdopterID: uuid.New()}
			return p, nil
		})
		require.NoError(t, err)
		require.NotNil(t, updated.Adoption)
		assert.Empty(t, store.Archive(pet.ID))
	})

	t.Run("unknown pet", func(t *testing.T) {
		store := NewMemoryStore()
		_, err := store.AtomicUpdate(context.Background(), uuid.New(), func(p *models.Pet) (*models.Pet, error) {
			return p, nil
		})
		assert.ErrorIs(t, err, adoption.ErrPetNotFound)
	})
}

func TestMemoryStoreConcurrentUpdates(t *testing.T) {
	store := NewMemoryStore()
	pet := testPet()
	pet.Age = 0
	store.Put(pet)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.AtomicUpdate(context.Background(), pet.ID, func(p *models.Pet) (*models.Pet, error) {
				p.Age++
				return p, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := store.Get(context.Background(), pet.ID)
	require.NoError(t, err)
	assert.Equal(t, n, got.Age)
}

func TestOutcomeOf(t *testing.T) {
	st := &models.AdoptionState{Phase: models.PhaseCancelled}
	assert.Equal(t, models.PhaseCancelled, outcomeOf(st))

	st.Record(models.PhaseRequested, uuid.New(), time.Now())
	st.Record(models.PhaseReset, uuid.New(), time.Now())
	assert.Equal(t, models.PhaseReset, outcomeOf(st))
}
