package database

import (
	"context"
	"time"

	"github.com/jonesrussell/racesync/internal/domain"
)

// SourceRepositoryInterface defines the contract for source data access.
type SourceRepositoryInterface interface {
	Create(ctx context.Context, source *domain.Source) error
	GetByID(ctx context.Context, id string) (*domain.Source, error)
	List(ctx context.Context) ([]*domain.Source, error)
	Update(ctx context.Context, source *domain.Source) error
}

// BindingRepositoryInterface defines the contract for binding data access.
type BindingRepositoryInterface interface {
	Create(ctx context.Context, binding *domain.Binding) error
	GetByID(ctx context.Context, id string) (*domain.Binding, error)
	List(ctx context.Context) ([]*domain.Binding, error)
	Update(ctx context.Context, binding *domain.Binding) error
}

// RunRepositoryInterface defines the contract for sync run data access.
type RunRepositoryInterface interface {
	Create(ctx context.Context, run *domain.SyncRun) error
	Finish(ctx context.Context, run *domain.SyncRun) error
	ListByBinding(ctx context.Context, bindingID string, limit int) ([]*domain.SyncRun, error)
}

// CrawlRepositoryInterface defines the contract for raw crawl entry access.
type CrawlRepositoryInterface interface {
	Create(ctx context.Context, entry *domain.RawCrawlEntry) error
	GetByID(ctx context.Context, id string) (*domain.RawCrawlEntry, error)
	ListByStatus(ctx context.Context, status string, limit, offset int) ([]*domain.RawCrawlEntry, error)
	UpdateExtraction(ctx context.Context, id string, meta domain.ExtractionMeta) error
	UpdateStatus(ctx context.Context, id, status string, processedAt *time.Time) error
}

// EditionRepositoryInterface defines the contract for edition data access.
type EditionRepositoryInterface interface {
	GetOrCreate(ctx context.Context, eventID string, year int) (*domain.Edition, error)
	GetByID(ctx context.Context, id string) (*domain.Edition, error)
	Update(ctx context.Context, edition *domain.Edition) error
}
