package chat

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rehome-app/rehome-api/internal/adoption"
	"github.com/rehome-app/rehome-api/internal/db"
)

// Store is the persistence half of the chat service. It also serves as the
// adoption workflow's ConversationLog collaborator.
type Store struct{}

// NewStore returns a Store backed by the shared connection pool.
func NewStore() *Store {
	return &Store{}
}

// FindOrCreate returns the conversation between two users, creating it on
// first contact. The pair is stored in canonical order so the same two users
// always resolve to the same conversation, whichever side initiates.
func (s *Store) FindOrCreate(ctx context.Context, userA, userB uuid.UUID) (uuid.UUID, error) {
	a, b := orderPair(userA, userB)

	var id uuid.UUID
	err := db.Pool.QueryRow(ctx, `
		SELECT id FROM conversations WHERE user_a = $1 AND user_b = $2
	`, a, b).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != pgx.ErrNoRows {
		return uuid.Nil, fmt.Errorf("looking up conversation: %w", err)
	}

	// The unique (user_a, user_b) constraint resolves creation races: losers
	// of the insert re-read the winner's row.
	_, err = db.Pool.Exec(ctx, `
		INSERT INTO conversations (id, user_a, user_b)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_a, user_b) DO NOTHING
	`, uuid.New(), a, b)
	if err != nil {
		return uuid.Nil, fmt.Errorf("creating conversation: %w", err)
	}

	err = db.Pool.QueryRow(ctx, `
		SELECT id FROM conversations WHERE user_a = $1 AND user_b = $2
	`, a, b).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("loading conversation: %w", err)
	}
	return id, nil
}

// Append persists one message and bumps the conversation's last-message
// metadata in the same transaction.
func (s *Store) Append(ctx context.Context, msg adoption.OutgoingMessage) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var petID *uuid.UUID
	if msg.PetID != uuid.Nil {
		petID = &msg.PetID
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, recipient_id, kind, text, pet_id, is_read)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false)
	`, uuid.New(), msg.ConversationID, msg.SenderID, msg.RecipientID, msg.Kind, msg.Text, petID)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE conversations
		SET last_message_text = $1, last_message_time = NOW(), updated_at = NOW()
		WHERE id = $2
	`, msg.Text, msg.ConversationID)
	if err != nil {
		return fmt.Errorf("updating conversation: %w", err)
	}

	return tx.Commit(ctx)
}

// orderPair returns the two ids in canonical storage order.
func orderPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() < b.String() {
		return a, b
	}
	return b, a
}
