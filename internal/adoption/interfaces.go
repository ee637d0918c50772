package adoption

import (
	"context"

	"github.com/google/uuid"

	"github.com/rehome-app/rehome-api/internal/models"
)

// PetStore is the storage collaborator. The workflow owns the shape of the
// embedded adoption state; the store owns atomicity.
type PetStore interface {
	// Get returns the pet or ErrPetNotFound.
	Get(ctx context.Context, petID uuid.UUID) (*models.Pet, error)

	// AtomicUpdate linearizes all mutations of one pet: it reads the current
	// record, applies fn, and commits the result so that no concurrent update
	// interleaves. fn returning an error aborts with no state change.
	// fn returning a nil pet deletes the record in the same commit.
	// Returns ErrPetNotFound if the pet is absent and ErrConflict if the
	// commit lost a race and the caller should retry.
	AtomicUpdate(ctx context.Context, petID uuid.UUID, fn func(*models.Pet) (*models.Pet, error)) (*models.Pet, error)
}

// ConversationLog is the chat collaborator the workflow writes transition
// messages through. It never participates in the state commit.
type ConversationLog interface {
	// FindOrCreate returns the conversation between two users, creating it on
	// first use. The same pair always maps to the same conversation, so
	// repeated requests between the same owner and adopter share one thread.
	FindOrCreate(ctx context.Context, userA, userB uuid.UUID) (uuid.UUID, error)

	// Append adds one message to a conversation.
	Append(ctx context.Context, msg OutgoingMessage) error
}

// EventBus pushes a typed event to all of a user's connected sessions.
// Delivery is best-effort with no return value; the state machine remains
// the source of truth and clients can always re-fetch it.
type EventBus interface {
	Push(userID uuid.UUID, eventType string, payload map[string]any)
}
