package adoption

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rehome-app/rehome-api/internal/models"
)

func composeFixture() (*models.Pet, *models.AdoptionState) {
	pet := &models.Pet{ID: uuid.New(), OwnerID: uuid.New(), Name: "Luna"}
	st := &models.AdoptionState{
		Phase:          models.PhaseRequested,
		AdopterID:      uuid.New(),
		ConversationID: uuid.New(),
		RequestedAt:    time.Now(),
	}
	return pet, st
}

func TestComposeRequest(t *testing.T) {
	pet, st := composeFixture()

	n := Compose(Action{Kind: ActionRequest, Actor: st.AdopterID, Message: "We have a garden"}, pet, nil, st)

	require.Len(t, n.Messages, 1)
	msg := n.Messages[0]
	assert.Equal(t, st.ConversationID, msg.ConversationID)
	assert.Equal(t, pet.OwnerID, msg.RecipientID)
	assert.Equal(t, models.MessageKindAdoptionRequest, msg.Kind)
	assert.Contains(t, msg.Text, "Luna")
	assert.Contains(t, msg.Text, "We have a garden")

	require.Len(t, n.Events, 2)
	for _, ev := range n.Events {
		assert.Equal(t, EventAdoptionRequested, ev.Type)
		assert.Equal(t, pet.ID.String(), ev.Payload["pet_id"])
	}
}

func TestComposeConfirm(t *testing.T) {
	t.Run("owner confirmation notifies the adopter", func(t *testing.T) {
		pet, prev := composeFixture()
		next := prev.Clone()
		next.Phase = models.PhaseOwnerConfirmed
		next.OwnerConfirmed = true

		n := Compose(Action{Kind: ActionConfirm, Actor: pet.OwnerID}, pet, prev, next)

		require.Len(t, n.Messages, 1)
		assert.Equal(t, next.AdopterID, n.Messages[0].RecipientID)
		assert.Equal(t, models.MessageKindAdoptionConfirmed, n.Messages[0].Kind)
		assert.Len(t, n.Events, 2)
	})

	t.Run("adopter confirmation notifies the owner", func(t *testing.T) {
		pet, prev := composeFixture()
		next := prev.Clone()
		next.Phase = models.PhaseAdopterConfirmed
		next.AdopterConfirmed = true

		n := Compose(Action{Kind: ActionConfirm, Actor: next.AdopterID}, pet, prev, next)

		require.Len(t, n.Messages, 1)
		assert.Equal(t, pet.OwnerID, n.Messages[0].RecipientID)
	})

	t.Run("unchanged confirmations compose nothing", func(t *testing.T) {
		pet, prev := composeFixture()
		prev.OwnerConfirmed = true
		next := prev.Clone()

		n := Compose(Action{Kind: ActionConfirm, Actor: pet.OwnerID}, pet, prev, next)

		assert.Empty(t, n.Messages)
		assert.Empty(t, n.Events)
	})

	t.Run("finalization emits terminal messages for both parties", func(t *testing.T) {
		pet, prev := composeFixture()
		prev.OwnerConfirmed = true

		n := Compose(Action{Kind: ActionConfirm, Actor: prev.AdopterID}, pet, prev, nil)

		require.Len(t, n.Messages, 2)
		for _, msg := range n.Messages {
			assert.Nil(t, msg.SenderID)
			assert.Equal(t, models.MessageKindAdoptionCompleted, msg.Kind)
			assert.Equal(t, prev.ConversationID, msg.ConversationID)
		}
		require.Len(t, n.Events, 2)
		for _, ev := range n.Events {
			assert.Equal(t, EventAdoptionCompleted, ev.Type)
		}
	})
}

func TestComposeDeny(t *testing.T) {
	pet, prev := composeFixture()

	n := Compose(Action{Kind: ActionDeny, Actor: pet.OwnerID}, pet, prev, nil)

	require.Len(t, n.Messages, 1)
	assert.Equal(t, prev.AdopterID, n.Messages[0].RecipientID)
	require.Len(t, n.Events, 1)
	assert.Equal(t, prev.AdopterID, n.Events[0].UserID)
}

func TestComposeCancel(t *testing.T) {
	pet, prev := composeFixture()

	n := Compose(Action{Kind: ActionCancel, Actor: prev.AdopterID}, pet, prev, nil)

	require.Len(t, n.Messages, 1)
	assert.Equal(t, pet.OwnerID, n.Messages[0].RecipientID)
	require.Len(t, n.Events, 1)
	assert.Equal(t, pet.OwnerID, n.Events[0].UserID)
}

func TestComposeReset(t *testing.T) {
	t.Run("events only, both parties", func(t *testing.T) {
		pet, prev := composeFixture()

		n := Compose(Action{Kind: ActionReset, Actor: uuid.New()}, pet, prev, nil)

		assert.Empty(t, n.Messages)
		require.Len(t, n.Events, 2)
	})

	t.Run("nothing to announce without a prior state", func(t *testing.T) {
		pet, _ := composeFixture()

		n := Compose(Action{Kind: ActionReset, Actor: uuid.New()}, pet, nil, nil)

		assert.Empty(t, n.Messages)
		assert.Empty(t, n.Events)
	})
}
