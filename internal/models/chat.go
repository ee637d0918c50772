package models

import (
	"time"

	"github.com/google/uuid"
)

// Message kinds. The adoption_* kinds are system messages the workflow
// appends into the conversation on every transition.
const (
	MessageKindText              = "text"
	MessageKindAdoptionRequest   = "adoption_request"
	MessageKindAdoptionConfirmed = "adoption_confirmed"
	MessageKindAdoptionDenied    = "adoption_denied"
	MessageKindAdoptionCancelled = "adoption_cancelled"
	MessageKindAdoptionCompleted = "adoption_completed"
)

// Conversation is a persisted message thread between exactly two users.
type Conversation struct {
	ID              uuid.UUID  `json:"id"`
	UserA           uuid.UUID  `json:"user_a"`
	UserB           uuid.UUID  `json:"user_b"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	LastMessageText string     `json:"last_message_text,omitempty"`
	LastMessageTime *time.Time `json:"last_message_time,omitempty"`

	// Populated for API responses only.
	Peer        *User `json:"peer,omitempty"`
	UnreadCount int   `json:"unread_count,omitempty"`
}

// Message is a single chat message. SenderID is nil for system messages
// produced by the adoption workflow.
type Message struct {
	ID             uuid.UUID  `json:"id"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	SenderID       *uuid.UUID `json:"sender_id,omitempty"`
	RecipientID    *uuid.UUID `json:"recipient_id,omitempty"`
	Kind           string     `json:"kind"`
	Text           string     `json:"text"`
	PetID          *uuid.UUID `json:"pet_id,omitempty"`
	IsRead         bool       `json:"is_read"`
	CreatedAt      time.Time  `json:"created_at"`

	// Populated for API responses only.
	Sender *User `json:"sender,omitempty"`
}
