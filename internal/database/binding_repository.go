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

// bindingColumns is the column list shared by binding SELECT queries.
const bindingColumns = `id, event_id, source_id, url, is_primary, last_hash,
	last_http_status, last_error, last_checked_at, next_check_at,
	created_at, updated_at`

// BindingRepository handles database operations for event-source bindings.
type BindingRepository struct {
	db *sqlx.DB
}

// NewBindingRepository creates a new binding repository.
func NewBindingRepository(db *sqlx.DB) *BindingRepository {
	return &BindingRepository{db: db}
}

// Create inserts a new binding.
func (r *BindingRepository) Create(ctx context.Context, binding *domain.Binding) error {
	if binding.ID == "" {
		binding.ID = uuid.New().String()
	}

	query := `
		INSERT INTO bindings (id, event_id, source_id, url, is_primary)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		binding.ID,
		binding.EventID,
		binding.SourceID,
		binding.URL,
		binding.IsPrimary,
	).Scan(&binding.CreatedAt, &binding.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create binding: %w", err)
	}

	return nil
}

// GetByID retrieves a binding by its ID.
func (r *BindingRepository) GetByID(ctx context.Context, id string) (*domain.Binding, error) {
	var binding domain.Binding
	query := `SELECT ` + bindingColumns + ` FROM bindings WHERE id = $1`

	err := r.db.GetContext(ctx, &binding, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBindingNotFound
		}
		return nil, fmt.Errorf("failed to get binding: %w", err)
	}

	return &binding, nil
}

// List retrieves all bindings.
func (r *BindingRepository) List(ctx context.Context) ([]*domain.Binding, error) {
	var bindings []*domain.Binding
	query := `SELECT ` + bindingColumns + ` FROM bindings ORDER BY created_at ASC`

	err := r.db.SelectContext(ctx, &bindings, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list bindings: %w", err)
	}

	if bindings == nil {
		bindings = []*domain.Binding{}
	}

	return bindings, nil
}

// Update persists the binding's mutable sync state.
func (r *BindingRepository) Update(ctx context.Context, binding *domain.Binding) error {
	query := `
		UPDATE bindings
		SET url = $1, is_primary = $2, last_hash = $3, last_http_status = $4,
		    last_error = $5, last_checked_at = $6, next_check_at = $7,
		    updated_at = NOW()
		WHERE id = $8
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		binding.URL,
		binding.IsPrimary,
		binding.LastHash,
		binding.LastHTTPStatus,
		binding.LastError,
		binding.LastCheckedAt,
		binding.NextCheckAt,
		binding.ID,
	)

	if execErr := execRequireRows(result, err, ErrBindingNotFound); execErr != nil {
		if errors.Is(execErr, ErrBindingNotFound) {
			return execErr
		}
		return fmt.Errorf("failed to update binding: %w", execErr)
	}

	return nil
}
