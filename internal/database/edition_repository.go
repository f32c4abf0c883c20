package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/racesync/internal/domain"
)

// editionColumns is the column list shared by edition SELECT queries.
const editionColumns = `id, event_id, year, race_date, registration_status,
	registration_url, registration_opens, registration_closes, provenance,
	created_at, updated_at`

// EditionRepository handles database operations for canonical editions.
type EditionRepository struct {
	db *sqlx.DB
}

// NewEditionRepository creates a new edition repository.
func NewEditionRepository(db *sqlx.DB) *EditionRepository {
	return &EditionRepository{db: db}
}

// GetOrCreate fetches the edition for an event-year, creating an empty one
// if it does not exist yet.
func (r *EditionRepository) GetOrCreate(ctx context.Context, eventID string, year int) (*domain.Edition, error) {
	var edition domain.Edition
	query := `SELECT ` + editionColumns + ` FROM editions WHERE event_id = $1 AND year = $2`

	err := r.db.GetContext(ctx, &edition, query, eventID, year)
	if err == nil {
		return &edition, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get edition: %w", err)
	}

	edition = domain.Edition{
		ID:         uuid.New().String(),
		EventID:    eventID,
		Year:       year,
		Provenance: domain.ProvenanceMap{},
	}

	insert := `
		INSERT INTO editions (id, event_id, year, provenance)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id, year) DO NOTHING
		RETURNING created_at, updated_at
	`

	insertErr := r.db.QueryRowContext(ctx, insert, edition.ID, eventID, year, edition.Provenance).
		Scan(&edition.CreatedAt, &edition.UpdatedAt)
	if insertErr == nil {
		return &edition, nil
	}
	if !errors.Is(insertErr, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to create edition: %w", insertErr)
	}

	// Lost a create race; the row exists now.
	if getErr := r.db.GetContext(ctx, &edition, query, eventID, year); getErr != nil {
		return nil, fmt.Errorf("failed to get edition after conflict: %w", getErr)
	}

	return &edition, nil
}

// GetByID retrieves an edition by its ID.
func (r *EditionRepository) GetByID(ctx context.Context, id string) (*domain.Edition, error) {
	var edition domain.Edition
	query := `SELECT ` + editionColumns + ` FROM editions WHERE id = $1`

	err := r.db.GetContext(ctx, &edition, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEditionNotFound
		}
		return nil, fmt.Errorf("failed to get edition: %w", err)
	}

	return &edition, nil
}

// Update persists the edition's field values and provenance.
func (r *EditionRepository) Update(ctx context.Context, edition *domain.Edition) error {
	query := `
		UPDATE editions
		SET race_date = $1, registration_status = $2, registration_url = $3,
		    registration_opens = $4, registration_closes = $5, provenance = $6,
		    updated_at = NOW()
		WHERE id = $7
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		edition.RaceDate,
		edition.RegistrationStatus,
		edition.RegistrationURL,
		edition.RegistrationOpens,
		edition.RegistrationCloses,
		edition.Provenance,
		edition.ID,
	)

	if execErr := execRequireRows(result, err, ErrEditionNotFound); execErr != nil {
		if errors.Is(execErr, ErrEditionNotFound) {
			return execErr
		}
		return fmt.Errorf("failed to update edition: %w", execErr)
	}

	return nil
}
