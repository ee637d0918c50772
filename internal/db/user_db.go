package db

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// User is a registered user as stored in the users table.
type User struct {
	ID          uuid.UUID
	Username    string
	FirstName   string
	LastName    string
	AvatarURL   string
	Role        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt time.Time
}

// CreateOrUpdateTelegramUser creates a user on first Telegram login or
// refreshes profile fields on subsequent ones. Returns the linked user row.
func CreateOrUpdateTelegramUser(telegramID int64, username, firstName, lastName, photoURL string, rawData []byte) (*User, error) {
	ctx, cancel := GetContext()
	defer cancel()

	tx, err := Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var userID uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT user_id FROM telegram_users WHERE telegram_id = $1
	`, telegramID).Scan(&userID)

	if err != nil && err != pgx.ErrNoRows {
		return nil, fmt.Errorf("looking up telegram user: %w", err)
	}

	if err == pgx.ErrNoRows {
		err = tx.QueryRow(ctx, `
			INSERT INTO users (first_name, last_name, username, avatar_url, role, last_login_at)
			VALUES ($1, $2, $3, $4, 'user', CURRENT_TIMESTAMP)
			RETURNING id
		`, firstName, lastName, username, photoURL).Scan(&userID)
		if err != nil {
			return nil, fmt.Errorf("creating user: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO telegram_users (user_id, telegram_id, username, first_name, last_name, photo_url, raw_data)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, userID, telegramID, username, firstName, lastName, photoURL, rawData)
		if err != nil {
			return nil, fmt.Errorf("creating telegram user: %w", err)
		}
	} else {
		_, err = tx.Exec(ctx, `
			UPDATE users
			SET first_name = $1, last_name = $2, username = $3, avatar_url = $4,
			    last_login_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
			WHERE id = $5
		`, firstName, lastName, username, photoURL, userID)
		if err != nil {
			return nil, fmt.Errorf("updating user: %w", err)
		}

		_, err = tx.Exec(ctx, `
			UPDATE telegram_users
			SET username = $1, first_name = $2, last_name = $3, photo_url = $4,
			    raw_data = $5, updated_at = CURRENT_TIMESTAMP
			WHERE telegram_id = $6
		`, username, firstName, lastName, photoURL, rawData, telegramID)
		if err != nil {
			return nil, fmt.Errorf("updating telegram user: %w", err)
		}
	}

	var user User
	err = tx.QueryRow(ctx, `
		SELECT id, username, first_name, last_name, avatar_url, role, created_at, updated_at, last_login_at
		FROM users WHERE id = $1
	`, userID).Scan(
		&user.ID, &user.Username, &user.FirstName, &user.LastName,
		&user.AvatarURL, &user.Role, &user.CreatedAt, &user.UpdatedAt, &user.LastLoginAt,
	)
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	return &user, nil
}

// GetUserByID loads one user row by its UUID string.
func GetUserByID(id string) (*User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parsing user ID: %w", err)
	}

	ctx, cancel := GetContext()
	defer cancel()

	var user User
	err = Pool.QueryRow(ctx, `
		SELECT id, COALESCE(username, ''), COALESCE(first_name, ''), COALESCE(last_name, ''),
		       COALESCE(avatar_url, ''), role, created_at, updated_at, last_login_at
		FROM users WHERE id = $1
	`, userID).Scan(
		&user.ID, &user.Username, &user.FirstName, &user.LastName,
		&user.AvatarURL, &user.Role, &user.CreatedAt, &user.UpdatedAt, &user.LastLoginAt,
	)
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}

	return &user, nil
}
