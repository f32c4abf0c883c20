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

// SourceRepository handles database operations for sources.
type SourceRepository struct {
	db *sqlx.DB
}

// NewSourceRepository creates a new source repository.
func NewSourceRepository(db *sqlx.DB) *SourceRepository {
	return &SourceRepository{db: db}
}

// Create inserts a new source.
func (r *SourceRepository) Create(ctx context.Context, source *domain.Source) error {
	if source.ID == "" {
		source.ID = uuid.New().String()
	}
	source.SetDefaults()

	query := `
		INSERT INTO sources (id, name, active, priority, strategy, retry_max,
		                     backoff_base_seconds, request_timeout_ms,
		                     min_interval_seconds, strategy_config)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		source.ID,
		source.Name,
		source.Active,
		source.Priority,
		source.Strategy,
		source.RetryMax,
		source.BackoffBaseSeconds,
		source.RequestTimeoutMs,
		source.MinIntervalSeconds,
		source.StrategyConfig,
	).Scan(&source.CreatedAt, &source.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create source: %w", err)
	}

	return nil
}

// GetByID retrieves a source by its ID.
func (r *SourceRepository) GetByID(ctx context.Context, id string) (*domain.Source, error) {
	var source domain.Source
	query := `
		SELECT id, name, active, priority, strategy, retry_max,
		       backoff_base_seconds, request_timeout_ms, min_interval_seconds,
		       strategy_config, created_at, updated_at
		FROM sources
		WHERE id = $1
	`

	err := r.db.GetContext(ctx, &source, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSourceNotFound
		}
		return nil, fmt.Errorf("failed to get source: %w", err)
	}

	return &source, nil
}

// List retrieves all sources ordered by priority.
func (r *SourceRepository) List(ctx context.Context) ([]*domain.Source, error) {
	var sources []*domain.Source
	query := `
		SELECT id, name, active, priority, strategy, retry_max,
		       backoff_base_seconds, request_timeout_ms, min_interval_seconds,
		       strategy_config, created_at, updated_at
		FROM sources
		ORDER BY priority DESC, name ASC
	`

	err := r.db.SelectContext(ctx, &sources, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}

	if sources == nil {
		sources = []*domain.Source{}
	}

	return sources, nil
}

// Update updates an existing source's operator-editable settings.
func (r *SourceRepository) Update(ctx context.Context, source *domain.Source) error {
	query := `
		UPDATE sources
		SET name = $1, active = $2, priority = $3, strategy = $4,
		    retry_max = $5, backoff_base_seconds = $6, request_timeout_ms = $7,
		    min_interval_seconds = $8, strategy_config = $9, updated_at = NOW()
		WHERE id = $10
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		source.Name,
		source.Active,
		source.Priority,
		source.Strategy,
		source.RetryMax,
		source.BackoffBaseSeconds,
		source.RequestTimeoutMs,
		source.MinIntervalSeconds,
		source.StrategyConfig,
		source.ID,
	)

	if execErr := execRequireRows(result, err, ErrSourceNotFound); execErr != nil {
		if errors.Is(execErr, ErrSourceNotFound) {
			return execErr
		}
		return fmt.Errorf("failed to update source: %w", execErr)
	}

	return nil
}
