package chat

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rehome-app/rehome-api/internal/config"
	"github.com/rehome-app/rehome-api/internal/db"
	"github.com/rehome-app/rehome-api/internal/models"
	"github.com/rehome-app/rehome-api/internal/utils"
	"github.com/rehome-app/rehome-api/internal/websocket"
)

// ChatService exposes the conversation and message API.
type ChatService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
	store      *Store
	manager    *websocket.Manager
}

// NewChatService creates a new ChatService.
func NewChatService(cfg *config.Config, store *Store, manager *websocket.Manager) *ChatService {
	return &ChatService{
		cfg:        cfg,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
		store:      store,
		manager:    manager,
	}
}

// GetConversations returns the caller's conversations, most recent first.
func (s *ChatService) GetConversations(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	rows, err := db.Pool.Query(ctx, `
		SELECT c.id, c.user_a, c.user_b, c.created_at, c.updated_at,
		       COALESCE(c.last_message_text, ''), c.last_message_time,
		       COUNT(m.id) FILTER (WHERE m.recipient_id = $1 AND m.is_read = false) AS unread_count
		FROM conversations c
		LEFT JOIN messages m ON c.id = m.conversation_id
		WHERE c.user_a = $1 OR c.user_b = $1
		GROUP BY c.id
		ORDER BY c.last_message_time DESC NULLS LAST, c.created_at DESC
	`, userUUID)
	if err != nil {
		log.Printf("chat: querying conversations: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load conversations"})
	}
	defer rows.Close()

	var conversations []models.Conversation
	for rows.Next() {
		var convo models.Conversation
		if err := rows.Scan(
			&convo.ID, &convo.UserA, &convo.UserB, &convo.CreatedAt, &convo.UpdatedAt,
			&convo.LastMessageText, &convo.LastMessageTime, &convo.UnreadCount,
		); err != nil {
			log.Printf("chat: scanning conversation: %v", err)
			continue
		}

		peerID := convo.UserA
		if peerID == userUUID {
			peerID = convo.UserB
		}
		convo.Peer = getUserInfo(ctx, peerID)

		conversations = append(conversations, convo)
	}

	return c.JSON(fiber.Map{
		"conversations": conversations,
		"count":         len(conversations),
	})
}

// CreateConversation finds or creates the conversation with another user.
func (s *ChatService) CreateConversation(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	var requestData struct {
		UserID string `json:"user_id"`
	}
	if err := c.Bind().Body(&requestData); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	peerUUID, err := uuid.Parse(requestData.UserID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid peer user ID"})
	}
	if peerUUID == userUUID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot start a conversation with yourself"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	convoID, err := s.store.FindOrCreate(ctx, userUUID, peerUUID)
	if err != nil {
		log.Printf("chat: find-or-create conversation: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create conversation"})
	}

	return c.JSON(fiber.Map{"conversation_id": convoID})
}

// GetMessages returns a page of messages for one conversation and marks the
// caller's unread messages as read.
func (s *ChatService) GetMessages(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	convoID := c.Params("id")

	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID"})
	}
	convoUUID, err := uuid.Parse(convoID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation ID"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	if !s.isParticipant(ctx, convoUUID, userUUID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "You don't have access to this conversation"})
	}

	limit := 50
	before := c.Query("before")

	var rows pgx.Rows
	if before != "" {
		beforeTime, err := time.Parse(time.RFC3339, before)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid before timestamp"})
		}
		rows, err = db.Pool.Query(ctx, `
			SELECT id, conversation_id, sender_id, recipient_id, kind, text, pet_id, is_read, created_at
			FROM messages
			WHERE conversation_id = $1 AND created_at < $2
			ORDER BY created_at DESC
			LIMIT $3
		`, convoUUID, beforeTime, limit)
		if err != nil {
			log.Printf("chat: querying messages: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load messages"})
		}
	} else {
		rows, err = db.Pool.Query(ctx, `
			SELECT id, conversation_id, sender_id, recipient_id, kind, text, pet_id, is_read, created_at
			FROM messages
			WHERE conversation_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		`, convoUUID, limit)
		if err != nil {
			log.Printf("chat: querying messages: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load messages"})
		}
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(
			&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.RecipientID,
			&msg.Kind, &msg.Text, &msg.PetID, &msg.IsRead, &msg.CreatedAt,
		); err != nil {
			log.Printf("chat: scanning message: %v", err)
			continue
		}
		if msg.SenderID != nil {
			msg.Sender = getUserInfo(ctx, *msg.SenderID)
		}
		messages = append(messages, msg)
	}

	_, err = db.Pool.Exec(ctx, `
		UPDATE messages
		SET is_read = true
		WHERE conversation_id = $1 AND recipient_id = $2 AND is_read = false
	`, convoUUID, userUUID)
	if err != nil {
		log.Printf("chat: marking messages read: %v", err)
	}

	return c.JSON(fiber.Map{
		"messages": messages,
		"has_more": len(messages) == limit,
	})
}

// SendMessage appends a text message and pushes it to the recipient.
func (s *ChatService) SendMessage(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	convoID := c.Params("id")

	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID"})
	}
	convoUUID, err := uuid.Parse(convoID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation ID"})
	}

	var requestData struct {
		Text string `json:"text"`
	}
	if err := c.Bind().Body(&requestData); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if requestData.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Message text cannot be empty"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	var userA, userB uuid.UUID
	err = db.Pool.QueryRow(ctx, `
		SELECT user_a, user_b FROM conversations
		WHERE id = $1 AND (user_a = $2 OR user_b = $2)
	`, convoUUID, userUUID).Scan(&userA, &userB)
	if err != nil {
		if err == pgx.ErrNoRows {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "You don't have access to this conversation"})
		}
		log.Printf("chat: checking conversation access: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to check conversation access"})
	}

	recipient := userA
	if recipient == userUUID {
		recipient = userB
	}

	messageID := uuid.New()
	now := time.Now()

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		log.Printf("chat: beginning transaction: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, recipient_id, kind, text, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, $7)
	`, messageID, convoUUID, userUUID, recipient, models.MessageKindText, requestData.Text, now)
	if err != nil {
		log.Printf("chat: inserting message: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save message"})
	}

	_, err = tx.Exec(ctx, `
		UPDATE conversations
		SET last_message_text = $1, last_message_time = $2, updated_at = $2
		WHERE id = $3
	`, requestData.Text, now, convoUUID)
	if err != nil {
		log.Printf("chat: updating conversation: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update conversation"})
	}

	if err = tx.Commit(ctx); err != nil {
		log.Printf("chat: committing transaction: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}

	message := models.Message{
		ID:             messageID,
		ConversationID: convoUUID,
		SenderID:       &userUUID,
		RecipientID:    &recipient,
		Kind:           models.MessageKindText,
		Text:           requestData.Text,
		CreatedAt:      now,
	}

	if payload, err := json.Marshal(message); err == nil {
		s.manager.SendToUser(recipient.String(), websocket.Event{
			Type:           websocket.EventNewMessage,
			ConversationID: convoUUID.String(),
			UserID:         userID,
			Timestamp:      now,
			Payload:        payload,
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": message})
}

func (s *ChatService) isParticipant(ctx context.Context, convoID, userID uuid.UUID) bool {
	var count int
	err := db.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM conversations
		WHERE id = $1 AND (user_a = $2 OR user_b = $2)
	`, convoID, userID).Scan(&count)
	if err != nil {
		log.Printf("chat: checking participant: %v", err)
		return false
	}
	return count > 0
}

// getUserInfo loads the minimal user view for API responses.
func getUserInfo(ctx context.Context, userID uuid.UUID) *models.User {
	var user models.User
	err := db.Pool.QueryRow(ctx, `
		SELECT id, COALESCE(username, ''), COALESCE(first_name, ''),
		       COALESCE(last_name, ''), COALESCE(avatar_url, '')
		FROM users
		WHERE id = $1
	`, userID).Scan(&user.ID, &user.Username, &user.FirstName, &user.LastName, &user.AvatarURL)
	if err != nil {
		log.Printf("chat: loading user %s: %v", userID, err)
		return nil
	}
	return &user
}
