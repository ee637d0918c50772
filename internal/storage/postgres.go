package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rehome-app/rehome-api/internal/adoption"
	"github.com/rehome-app/rehome-api/internal/models"
)

const petColumns = `id, owner_id, name, breed, age, gender, size, color, location,
	description, vaccinated, neutered, photos, status, adoption, created_at, updated_at`

// PostgresStore backs the adoption workflow with the pets table. Atomicity
// comes from a row lock: the update transaction selects the pet FOR UPDATE,
// applies the mutation, and commits, so concurrent transitions on the same
// pet serialize at the database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps a connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Get loads a pet by id.
func (s *PostgresStore) Get(ctx context.Context, petID uuid.UUID) (*models.Pet, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+petColumns+` FROM pets WHERE id = $1`, petID)
	pet, err := scanPet(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, adoption.ErrPetNotFound
		}
		return nil, fmt.Errorf("loading pet: %w", err)
	}
	return pet, nil
}

// AtomicUpdate runs fn against the current row inside a transaction holding
// the row lock, then persists the mutated record. A terminal adoption state
// left on the pet by fn is archived and cleared in the same transaction, as
// is the final state of a deleted pet.
func (s *PostgresStore) AtomicUpdate(ctx context.Context, petID uuid.UUID, fn func(*models.Pet) (*models.Pet, error)) (*models.Pet, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+petColumns+` FROM pets WHERE id = $1 FOR UPDATE`, petID)
	pet, err := scanPet(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, adoption.ErrPetNotFound
		}
		return nil, fmt.Errorf("locking pet: %w", err)
	}

	next, err := fn(pet)
	if err != nil {
		return nil, err
	}

	if next == nil {
		if err := s.archiveTx(ctx, tx, pet); err != nil {
			return nil, err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM pets WHERE id = $1`, petID); err != nil {
			return nil, fmt.Errorf("deleting pet: %w", translatePgError(err))
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("committing deletion: %w", translatePgError(err))
		}
		return nil, nil
	}

	if next.Adoption != nil && !next.Adoption.Phase.Active() {
		if err := s.archiveTx(ctx, tx, next); err != nil {
			return nil, err
		}
		next.Adoption = nil
	}

	var adoptionData []byte
	if next.Adoption != nil {
		adoptionData, err = json.Marshal(next.Adoption)
		if err != nil {
			return nil, fmt.Errorf("encoding adoption state: %w", err)
		}
	}
	photosData, err := json.Marshal(next.Photos)
	if err != nil {
		return nil, fmt.Errorf("encoding photos: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE pets
		SET name = $1, breed = $2, age = $3, gender = $4, size = $5, color = $6,
		    location = $7, description = $8, vaccinated = $9, neutered = $10,
		    photos = $11, status = $12, adoption = $13, updated_at = NOW()
		WHERE id = $14
	`, next.Name, next.Breed, next.Age, next.Gender, next.Size, next.Color,
		next.Location, next.Description, next.Vaccinated, next.Neutered,
		photosData, next.Status, adoptionData, petID)
	if err != nil {
		return nil, fmt.Errorf("updating pet: %w", translatePgError(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing update: %w", translatePgError(err))
	}
	return next, nil
}

func (s *PostgresStore) archiveTx(ctx context.Context, tx pgx.Tx, p *models.Pet) error {
	if p.Adoption == nil {
		return nil
	}
	st := p.Adoption
	historyData, err := json.Marshal(st.History)
	if err != nil {
		return fmt.Errorf("encoding adoption history: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO adoption_archive (id, pet_id, pet_name, owner_id, adopter_id, outcome, history)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.New(), p.ID, p.Name, p.OwnerID, st.AdopterID, string(outcomeOf(st)), historyData)
	if err != nil {
		return fmt.Errorf("archiving adoption: %w", translatePgError(err))
	}
	return nil
}

// scanPet reads one pets row, decoding the photos and adoption JSONB columns.
func scanPet(row pgx.Row) (*models.Pet, error) {
	var pet models.Pet
	var photosData, adoptionData []byte

	err := row.Scan(
		&pet.ID, &pet.OwnerID, &pet.Name, &pet.Breed, &pet.Age, &pet.Gender,
		&pet.Size, &pet.Color, &pet.Location, &pet.Description,
		&pet.Vaccinated, &pet.Neutered, &photosData, &pet.Status,
		&adoptionData, &pet.CreatedAt, &pet.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(photosData) > 0 {
		if err := json.Unmarshal(photosData, &pet.Photos); err != nil {
			return nil, fmt.Errorf("decoding photos: %w", err)
		}
	}
	if len(adoptionData) > 0 {
		if err := json.Unmarshal(adoptionData, &pet.Adoption); err != nil {
			return nil, fmt.Errorf("decoding adoption state: %w", err)
		}
	}
	return &pet, nil
}

// translatePgError maps serialization failures and deadlocks to ErrConflict
// so the workflow retries them.
func translatePgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "40001" || pgErr.Code == "40P01" {
			return adoption.ErrConflict
		}
	}
	return err
}
