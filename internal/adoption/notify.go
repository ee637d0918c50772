package adoption

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/rehome-app/rehome-api/internal/models"
)

// Event types pushed to clients on adoption transitions.
const (
	EventAdoptionRequested = "adoption_requested"
	EventAdoptionConfirmed = "adoption_confirmed"
	EventAdoptionDenied    = "adoption_denied"
	EventAdoptionCancelled = "adoption_cancelled"
	EventAdoptionCompleted = "adoption_completed"
	EventAdoptionReset     = "adoption_reset"
)

// Action kinds, used by the notification composer.
const (
	ActionRequest = "request"
	ActionConfirm = "confirm"
	ActionDeny    = "deny"
	ActionCancel  = "cancel"
	ActionReset   = "reset"
)

// Action describes the caller operation that produced a transition.
type Action struct {
	Kind    string
	Actor   uuid.UUID
	Message string // free-text note attached to a request
}

// OutgoingMessage is a chat message produced by a transition. A nil SenderID
// marks a system message.
type OutgoingMessage struct {
	ConversationID uuid.UUID
	SenderID       *uuid.UUID
	RecipientID    uuid.UUID
	Kind           string
	Text           string
	PetID          uuid.UUID
}

// Event is a push notification produced by a transition.
type Event struct {
	UserID  uuid.UUID
	Type    string
	Payload map[string]any
}

// Notifications is everything a committed transition owes the outside world.
type Notifications struct {
	Messages []OutgoingMessage
	Events   []Event
}

// Compose derives chat messages and push events from a committed transition.
// It is a pure function of (previous state, next state, action) so it can be
// tested without the chat or push collaborators. next is nil when the
// transition finalized the adoption and deleted the pet.
func Compose(action Action, pet *models.Pet, prev, next *models.AdoptionState) Notifications {
	var n Notifications

	switch action.Kind {
	case ActionRequest:
		text := fmt.Sprintf("Adoption request: I am interested in adopting %s.", pet.Name)
		if action.Message != "" {
			text += " " + action.Message
		}
		actor := action.Actor
		n.Messages = append(n.Messages, OutgoingMessage{
			ConversationID: next.ConversationID,
			SenderID:       &actor,
			RecipientID:    pet.OwnerID,
			Kind:           models.MessageKindAdoptionRequest,
			Text:           text,
			PetID:          pet.ID,
		})
		n.Events = append(n.Events,
			event(pet.OwnerID, EventAdoptionRequested, pet, string(next.Phase)),
			event(next.AdopterID, EventAdoptionRequested, pet, string(next.Phase)),
		)

	case ActionConfirm:
		if next == nil {
			// Finalization: both parties confirmed, the pet is gone. One
			// terminal system message per party, in the shared conversation.
			text := fmt.Sprintf("Adoption completed! Both parties confirmed. %s has been adopted and removed from the listings.", pet.Name)
			for _, recipient := range []uuid.UUID{pet.OwnerID, prev.AdopterID} {
				n.Messages = append(n.Messages, OutgoingMessage{
					ConversationID: prev.ConversationID,
					RecipientID:    recipient,
					Kind:           models.MessageKindAdoptionCompleted,
					Text:           text,
					PetID:          pet.ID,
				})
				n.Events = append(n.Events, event(recipient, EventAdoptionCompleted, pet, "completed"))
			}
			return n
		}
		if sameConfirmations(prev, next) {
			// Idempotent re-confirmation, nothing happened.
			return n
		}
		var text string
		var recipient uuid.UUID
		if action.Actor == pet.OwnerID {
			text = fmt.Sprintf("Owner confirmed the adoption request for %s. Please confirm to proceed.", pet.Name)
			recipient = next.AdopterID
		} else {
			text = fmt.Sprintf("Adopter confirmed the adoption request for %s. Waiting for the owner to confirm.", pet.Name)
			recipient = pet.OwnerID
		}
		actor := action.Actor
		n.Messages = append(n.Messages, OutgoingMessage{
			ConversationID: next.ConversationID,
			SenderID:       &actor,
			RecipientID:    recipient,
			Kind:           models.MessageKindAdoptionConfirmed,
			Text:           text,
			PetID:          pet.ID,
		})
		n.Events = append(n.Events,
			event(pet.OwnerID, EventAdoptionConfirmed, pet, string(next.Phase)),
			event(next.AdopterID, EventAdoptionConfirmed, pet, string(next.Phase)),
		)

	case ActionDeny:
		// The owner already knows; only the adopter is notified.
		actor := action.Actor
		n.Messages = append(n.Messages, OutgoingMessage{
			ConversationID: prev.ConversationID,
			SenderID:       &actor,
			RecipientID:    prev.AdopterID,
			Kind:           models.MessageKindAdoptionDenied,
			Text:           fmt.Sprintf("Owner denied the adoption request for %s.", pet.Name),
			PetID:          pet.ID,
		})
		n.Events = append(n.Events, event(prev.AdopterID, EventAdoptionDenied, pet, string(models.PhaseDenied)))

	case ActionCancel:
		// Symmetric to deny: only the owner is notified.
		actor := action.Actor
		n.Messages = append(n.Messages, OutgoingMessage{
			ConversationID: prev.ConversationID,
			SenderID:       &actor,
			RecipientID:    pet.OwnerID,
			Kind:           models.MessageKindAdoptionCancelled,
			Text:           fmt.Sprintf("Adopter cancelled the adoption request for %s.", pet.Name),
			PetID:          pet.ID,
		})
		n.Events = append(n.Events, event(pet.OwnerID, EventAdoptionCancelled, pet, string(models.PhaseCancelled)))

	case ActionReset:
		// Administrative recovery: no chat message, both parties get an event.
		if prev == nil {
			return n
		}
		n.Events = append(n.Events,
			event(pet.OwnerID, EventAdoptionReset, pet, string(models.PhaseNone)),
			event(prev.AdopterID, EventAdoptionReset, pet, string(models.PhaseNone)),
		)
	}

	return n
}

func event(userID uuid.UUID, eventType string, pet *models.Pet, phase string) Event {
	return Event{
		UserID: userID,
		Type:   eventType,
		Payload: map[string]any{
			"pet_id":   pet.ID.String(),
			"pet_name": pet.Name,
			"phase":    phase,
		},
	}
}

func sameConfirmations(prev, next *models.AdoptionState) bool {
	return prev != nil && next != nil &&
		prev.OwnerConfirmed == next.OwnerConfirmed &&
		prev.AdopterConfirmed == next.AdopterConfirmed
}
