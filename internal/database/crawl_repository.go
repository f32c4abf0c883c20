package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/racesync/internal/domain"
)

// crawlColumns is the column list shared by raw crawl entry SELECT queries.
const crawlColumns = `id, binding_id, source_id, url, content, content_hash,
	http_status, content_type, extraction, status, fetched_at, processed_at`

// CrawlRepository handles database operations for raw crawl entries.
type CrawlRepository struct {
	db *sqlx.DB
}

// NewCrawlRepository creates a new raw crawl entry repository.
func NewCrawlRepository(db *sqlx.DB) *CrawlRepository {
	return &CrawlRepository{db: db}
}

// Create inserts a new raw crawl entry.
func (r *CrawlRepository) Create(ctx context.Context, entry *domain.RawCrawlEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Status == "" {
		entry.Status = domain.EntryStatusPending
	}

	query := `
		INSERT INTO raw_crawl_entries (id, binding_id, source_id, url, content,
		                               content_hash, http_status, content_type,
		                               extraction, status, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		entry.ID,
		entry.BindingID,
		entry.SourceID,
		entry.URL,
		entry.Content,
		entry.ContentHash,
		entry.HTTPStatus,
		entry.ContentType,
		entry.Extraction,
		entry.Status,
		entry.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create raw crawl entry: %w", err)
	}

	return nil
}

// GetByID retrieves a raw crawl entry by its ID.
func (r *CrawlRepository) GetByID(ctx context.Context, id string) (*domain.RawCrawlEntry, error) {
	var entry domain.RawCrawlEntry
	query := `SELECT ` + crawlColumns + ` FROM raw_crawl_entries WHERE id = $1`

	err := r.db.GetContext(ctx, &entry, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to get raw crawl entry: %w", err)
	}

	return &entry, nil
}

// ListByStatus retrieves entries in a given lifecycle status, newest first.
func (r *CrawlRepository) ListByStatus(ctx context.Context, status string, limit, offset int) ([]*domain.RawCrawlEntry, error) {
	var entries []*domain.RawCrawlEntry
	query := `
		SELECT ` + crawlColumns + `
		FROM raw_crawl_entries
		WHERE status = $1
		ORDER BY fetched_at DESC
		LIMIT $2 OFFSET $3
	`

	err := r.db.SelectContext(ctx, &entries, query, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list raw crawl entries: %w", err)
	}

	if entries == nil {
		entries = []*domain.RawCrawlEntry{}
	}

	return entries, nil
}

// UpdateExtraction records the extraction metadata produced for an entry.
// Content itself stays immutable.
func (r *CrawlRepository) UpdateExtraction(ctx context.Context, id string, meta domain.ExtractionMeta) error {
	query := `
		UPDATE raw_crawl_entries
		SET extraction = $1
		WHERE id = $2
	`

	result, err := r.db.ExecContext(ctx, query, meta, id)
	if execErr := execRequireRows(result, err, ErrEntryNotFound); execErr != nil {
		if errors.Is(execErr, ErrEntryNotFound) {
			return execErr
		}
		return fmt.Errorf("failed to update raw crawl entry extraction: %w", execErr)
	}

	return nil
}

// UpdateStatus advances an entry's review lifecycle status. Content is
// immutable; only status and processed_at ever change.
func (r *CrawlRepository) UpdateStatus(ctx context.Context, id, status string, processedAt *time.Time) error {
	query := `
		UPDATE raw_crawl_entries
		SET status = $1, processed_at = $2
		WHERE id = $3
	`

	result, err := r.db.ExecContext(ctx, query, status, processedAt, id)
	if execErr := execRequireRows(result, err, ErrEntryNotFound); execErr != nil {
		if errors.Is(execErr, ErrEntryNotFound) {
			return execErr
		}
		return fmt.Errorf("failed to update raw crawl entry status: %w", execErr)
	}

	return nil
}
