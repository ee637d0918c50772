package adoption_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rehome-app/rehome-api/internal/adoption"
	"github.com/rehome-app/rehome-api/internal/models"
	"github.com/rehome-app/rehome-api/internal/storage"
)

type chatLog struct {
	mu        sync.Mutex
	convID    uuid.UUID
	messages  []adoption.OutgoingMessage
	appendErr error
}

func newChatLog() *chatLog {
	return &chatLog{convID: uuid.New()}
}

func (c *chatLog) FindOrCreate(ctx context.Context, userA, userB uuid.UUID) (uuid.UUID, error) {
	return c.convID, nil
}

func (c *chatLog) Append(ctx context.Context, msg adoption.OutgoingMessage) error {
	if c.appendErr != nil {
		return c.appendErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
	return nil
}

func (c *chatLog) byKind(kind string) []adoption.OutgoingMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []adoption.OutgoingMessage
	for _, m := range c.messages {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

type eventSink struct {
	mu     sync.Mutex
	events []adoption.Event
}

func (e *eventSink) Push(userID uuid.UUID, eventType string, payload map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, adoption.Event{UserID: userID, Type: eventType, Payload: payload})
}

func (e *eventSink) byType(eventType string) []adoption.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []adoption.Event
	for _, ev := range e.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	store    *storage.MemoryStore
	chats    *chatLog
	events   *eventSink
	workflow *adoption.Workflow
	owner    uuid.UUID
	adopter  uuid.UUID
	pet      *models.Pet
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   storage.NewMemoryStore(),
		chats:   newChatLog(),
		events:  &eventSink{},
		owner:   uuid.New(),
		adopter: uuid.New(),
	}
	f.workflow = adoption.NewWorkflow(f.store, f.chats, f.events)
	f.pet = &models.Pet{
		ID:      uuid.New(),
		OwnerID: f.owner,
		Name:    "Rex",
		Status:  models.PetStatusAvailable,
	}
	f.store.Put(f.pet)
	return f
}

func (f *fixture) request(t *testing.T) *models.Pet {
	t.Helper()
	pet, err := f.workflow.Request(context.Background(), f.pet.ID, f.adopter, "")
	require.NoError(t, err)
	return pet
}

func TestRequest(t *testing.T) {
	t.Run("starts an adoption", func(t *testing.T) {
		f := newFixture(t)

		pet, err := f.workflow.Request(context.Background(), f.pet.ID, f.adopter, "He looks lovely")
		require.NoError(t, err)
		require.NotNil(t, pet.Adoption)

		assert.Equal(t, models.PhaseRequested, pet.Adoption.Phase)
		assert.Equal(t, f.adopter, pet.Adoption.AdopterID)
		assert.Equal(t, f.chats.convID, pet.Adoption.ConversationID)
		assert.Equal(t, models.PetStatusPending, pet.Status)
		assert.False(t, pet.Adoption.OwnerConfirmed)
		assert.False(t, pet.Adoption.AdopterConfirmed)

		msgs := f.chats.byKind(models.MessageKindAdoptionRequest)
		require.Len(t, msgs, 1)
		assert.Equal(t, f.owner, msgs[0].RecipientID)
		require.NotNil(t, msgs[0].SenderID)
		assert.Equal(t, f.adopter, *msgs[0].SenderID)
		assert.Contains(t, msgs[0].Text, "He looks lovely")

		assert.Len(t, f.events.byType(adoption.EventAdoptionRequested), 2)
	})

	t.Run("rejects the owner adopting their own pet", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.workflow.Request(context.Background(), f.pet.ID, f.owner, "")
		assert.ErrorIs(t, err, adoption.ErrSelfAdoption)
	})

	t.Run("rejects a second request while one is in flight", func(t *testing.T) {
		f := newFixture(t)
		f.request(t)

		_, err := f.workflow.Request(context.Background(), f.pet.ID, uuid.New(), "")
		assert.ErrorIs(t, err, adoption.ErrAlreadyInProgress)
	})

	t.Run("unknown pet", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.workflow.Request(context.Background(), uuid.New(), f.adopter, "")
		assert.ErrorIs(t, err, adoption.ErrPetNotFound)
	})
}

func TestConfirm(t *testing.T) {
	t.Run("owner first, then adopter finalizes", func(t *testing.T) {
		f := newFixture(t)
		f.request(t)

		res, err := f.workflow.Confirm(context.Background(), f.pet.ID, f.owner)
		require.NoError(t, err)
		assert.False(t, res.Completed)
		require.NotNil(t, res.Pet)
		assert.Equal(t, models.PhaseOwnerConfirmed, res.Pet.Adoption.Phase)

		res, err = f.workflow.Confirm(context.Background(), f.pet.ID, f.adopter)
		require.NoError(t, err)
		assert.True(t, res.Completed)
		assert.Nil(t, res.Pet)

		assertFinalized(t, f)
	})

	t.Run("adopter first, then owner finalizes", func(t *testing.T) {
		f := newFixture(t)
		f.request(t)

		res, err := f.workflow.Confirm(context.Background(), f.pet.ID, f.adopter)
		require.NoError(t, err)
		assert.False(t, res.Completed)
		assert.Equal(t, models.PhaseAdopterConfirmed, res.Pet.Adoption.Phase)

		res, err = f.workflow.Confirm(context.Background(), f.pet.ID, f.owner)
		require.NoError(t, err)
		assert.True(t, res.Completed)

		assertFinalized(t, f)
	})

	t.Run("re-confirming is a no-op", func(t *testing.T) {
		f := newFixture(t)
		f.request(t)

		_, err := f.workflow.Confirm(context.Background(), f.pet.ID, f.owner)
		require.NoError(t, err)
		before := len(f.chats.byKind(models.MessageKindAdoptionConfirmed))

		res, err := f.workflow.Confirm(context.Background(), f.pet.ID, f.owner)
		require.NoError(t, err)
		assert.False(t, res.Completed)
		assert.Equal(t, models.PhaseOwnerConfirmed, res.Pet.Adoption.Phase)
		assert.True(t, res.Pet.Adoption.OwnerConfirmed)
		assert.Len(t, f.chats.byKind(models.MessageKindAdoptionConfirmed), before)
	})

	t.Run("outsiders cannot confirm", func(t *testing.T) {
		f := newFixture(t)
		f.request(t)

		_, err := f.workflow.Confirm(context.Background(), f.pet.ID, uuid.New())
		assert.ErrorIs(t, err, adoption.ErrNotAuthorized)
	})

	t.Run("no adoption in flight", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.workflow.Confirm(context.Background(), f.pet.ID, f.owner)
		assert.ErrorIs(t, err, adoption.ErrNoActiveAdoption)
	})

	t.Run("confirm after finalization sees a missing pet", func(t *testing.T) {
		f := newFixture(t)
		f.request(t)

		_, err := f.workflow.Confirm(context.Background(), f.pet.ID, f.owner)
		require.NoError(t, err)
		_, err = f.workflow.Confirm(context.Background(), f.pet.ID, f.adopter)
		require.NoError(t, err)

		_, err = f.workflow.Confirm(context.Background(), f.pet.ID, f.owner)
		assert.ErrorIs(t, err, adoption.ErrPetNotFound)
	})

	t.Run("concurrent confirmations finalize exactly once", func(t *testing.T) {
		f := newFixture(t)
		f.request(t)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, caller := range []uuid.UUID{f.owner, f.adopter} {
			wg.Add(1)
			go func(i int, caller uuid.UUID) {
				defer wg.Done()
				_, errs[i] = f.workflow.Confirm(context.Background(), f.pet.ID, caller)
			}(i, caller)
		}
		wg.Wait()

		require.NoError(t, errs[0])
		require.NoError(t, errs[1])
		assertFinalized(t, f)
	})
}

// assertFinalized checks the exactly-once completion effects: the pet is
// gone, one archive entry records the adopted outcome, and each party got
// one terminal message and one completed event.
func assertFinalized(t *testing.T, f *fixture) {
	t.Helper()

	assert.Equal(t, 0, f.store.Len())

	entries := f.store.Archive(f.pet.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, models.PhaseAdopted, entries[0].Outcome)
	assert.Equal(t, f.owner, entries[0].OwnerID)
	assert.Equal(t, f.adopter, entries[0].AdopterID)

	msgs := f.chats.byKind(models.MessageKindAdoptionCompleted)
	require.Len(t, msgs, 2)
	recipients := map[uuid.UUID]bool{msgs[0].RecipientID: true, msgs[1].RecipientID: true}
	assert.True(t, recipients[f.owner])
	assert.True(t, recipients[f.adopter])
	for _, m := range msgs {
		assert.Nil(t, m.SenderID, "terminal messages are system messages")
	}

	assert.Len(t, f.events.byType(adoption.EventAdoptionCompleted), 2)
}

func TestDeny(t *testing.T) {
	t.Run("owner denies and the pet becomes requestable again", func(t *testing.T) {
		f := newFixture(t)
		f.request(t)

		pet, err := f.workflow.Deny(context.Background(), f.pet.ID, f.owner)
		require.NoError(t, err)
		assert.Nil(t, pet.Adoption)
		assert.Equal(t, models.PetStatusAvailable, pet.Status)

		entries := f.store.Archive(f.pet.ID)
		require.Len(t, entries, 1)
		assert.Equal(t, models.PhaseDenied, entries[0].Outcome)

		msgs := f.chats.byKind(models.MessageKindAdoptionDenied)
		require.Len(t, msgs, 1)
		assert.Equal(t, f.adopter, msgs[0].RecipientID)
		assert.Len(t, f.events.byType(adoption.EventAdoptionDenied), 1)

		// A new request may start immediately.
		_, err = f.workflow.Request(context.Background(), f.pet.ID, uuid.New(), "")
		assert.NoError(t, err)
	})

	t.Run("only the owner may deny", func(t *testing.T) {
		f := newFixture(t)
		f.request(t)

		_, err := f.workflow.Deny(context.Background(), f.pet.ID, f.adopter)
		assert.ErrorIs(t, err, adoption.ErrNotAuthorized)
	})
}

func TestCancel(t *testing.T) {
	t.Run("adopter cancels and only the owner is notified", func(t *testing.T) {
		f := newFixture(t)
		f.request(t)

		pet, err := f.workflow.Cancel(context.Background(), f.pet.ID, f.adopter)
		require.NoError(t, err)
		assert.Nil(t, pet.Adoption)
		assert.Equal(t, models.PetStatusAvailable, pet.Status)

		entries := f.store.Archive(f.pet.ID)
		require.Len(t, entries, 1)
		assert.Equal(t, models.PhaseCancelled, entries[0].Outcome)

		msgs := f.chats.byKind(models.MessageKindAdoptionCancelled)
		require.Len(t, msgs, 1)
		assert.Equal(t, f.owner, msgs[0].RecipientID)
		assert.Len(t, f.events.byType(adoption.EventAdoptionCancelled), 1)
	})

	t.Run("only the adopter may cancel", func(t *testing.T) {
		f := newFixture(t)
		f.request(t)

		_, err := f.workflow.Cancel(context.Background(), f.pet.ID, f.owner)
		assert.ErrorIs(t, err, adoption.ErrNotAuthorized)
	})

	t.Run("cancel after a confirmation still works", func(t *testing.T) {
		f := newFixture(t)
		f.request(t)

		_, err := f.workflow.Confirm(context.Background(), f.pet.ID, f.owner)
		require.NoError(t, err)

		pet, err := f.workflow.Cancel(context.Background(), f.pet.ID, f.adopter)
		require.NoError(t, err)
		assert.Nil(t, pet.Adoption)
	})
}

func TestReset(t *testing.T) {
	admin := uuid.New()

	t.Run("clears any phase", func(t *testing.T) {
		f := newFixture(t)
		f.request(t)
		_, err := f.workflow.Confirm(context.Background(), f.pet.ID, f.owner)
		require.NoError(t, err)

		pet, err := f.workflow.Reset(context.Background(), f.pet.ID, admin)
		require.NoError(t, err)
		assert.Nil(t, pet.Adoption)
		assert.Equal(t, models.PetStatusAvailable, pet.Status)

		entries := f.store.Archive(f.pet.ID)
		require.Len(t, entries, 1)
		assert.Equal(t, models.PhaseReset, entries[0].Outcome)

		// Administrative recovery is silent in chat but pushes events.
		assert.Empty(t, f.chats.byKind(models.MessageKindAdoptionDenied))
		assert.Len(t, f.events.byType(adoption.EventAdoptionReset), 2)
	})

	t.Run("succeeds with nothing to clear", func(t *testing.T) {
		f := newFixture(t)

		pet, err := f.workflow.Reset(context.Background(), f.pet.ID, admin)
		require.NoError(t, err)
		assert.Nil(t, pet.Adoption)
		assert.Empty(t, f.events.byType(adoption.EventAdoptionReset))
	})
}

func TestNotificationFailureDoesNotBlock(t *testing.T) {
	f := newFixture(t)
	f.chats.appendErr = errors.New("chat backend down")

	pet, err := f.workflow.Request(context.Background(), f.pet.ID, f.adopter, "")
	require.NoError(t, err)
	require.NotNil(t, pet.Adoption)

	// State committed despite the failed message; events still delivered.
	stored, err := f.store.Get(context.Background(), f.pet.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseRequested, stored.Adoption.Phase)
	assert.Len(t, f.events.byType(adoption.EventAdoptionRequested), 2)
}
