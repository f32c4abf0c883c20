package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/racesync/internal/domain"
)

// RunRepository handles database operations for sync runs.
// Runs are append-only: Create starts one, Finish writes the outcome once.
type RunRepository struct {
	db *sqlx.DB
}

// NewRunRepository creates a new sync run repository.
func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new run in running state.
func (r *RunRepository) Create(ctx context.Context, run *domain.SyncRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	query := `
		INSERT INTO sync_runs (id, binding_id, status, strategy, attempts, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		run.ID,
		run.BindingID,
		run.Status,
		run.Strategy,
		run.Attempts,
		run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create sync run: %w", err)
	}

	return nil
}

// Finish records the run's final status and counts. Only running runs can
// finish; re-finishing is rejected.
func (r *RunRepository) Finish(ctx context.Context, run *domain.SyncRun) error {
	query := `
		UPDATE sync_runs
		SET status = $1, attempts = $2, new_count = $3, updated_count = $4,
		    unchanged_count = $5, finished_at = $6, error_message = $7
		WHERE id = $8 AND status = 'running'
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		run.Status,
		run.Attempts,
		run.NewCount,
		run.UpdatedCount,
		run.UnchangedCount,
		run.FinishedAt,
		run.ErrorMessage,
		run.ID,
	)

	if execErr := execRequireRows(result, err, ErrRunNotFound); execErr != nil {
		if errors.Is(execErr, ErrRunNotFound) {
			return execErr
		}
		return fmt.Errorf("failed to finish sync run: %w", execErr)
	}

	return nil
}

// FailAbandoned marks every run still in running state as failed. A run
// only stays running across process start when a previous process died
// mid-sync, so this runs once at startup, before any new run begins.
func (r *RunRepository) FailAbandoned(ctx context.Context) (int64, error) {
	query := `
		UPDATE sync_runs
		SET status = 'failed', finished_at = NOW(),
		    error_message = 'interrupted by restart'
		WHERE status = 'running'
	`

	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep abandoned runs: %w", err)
	}

	swept, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	return swept, nil
}

// ListByBinding retrieves the most recent runs for a binding.
func (r *RunRepository) ListByBinding(ctx context.Context, bindingID string, limit int) ([]*domain.SyncRun, error) {
	var runs []*domain.SyncRun
	query := `
		SELECT id, binding_id, status, strategy, attempts, new_count,
		       updated_count, unchanged_count, started_at, finished_at, error_message
		FROM sync_runs
		WHERE binding_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	err := r.db.SelectContext(ctx, &runs, query, bindingID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}

	if runs == nil {
		runs = []*domain.SyncRun{}
	}

	return runs, nil
}
