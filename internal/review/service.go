// Package review surfaces raw crawl entries that extraction could not
// resolve confidently and applies an operator's manual resolutions.
package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/racesync/internal/database"
	"github.com/jonesrussell/racesync/internal/domain"
	"github.com/jonesrussell/racesync/internal/extractor"
	"github.com/jonesrussell/racesync/internal/logger"
	"github.com/jonesrussell/racesync/internal/reconcile"
)

// Validation errors returned to the operator without mutating state.
var (
	// ErrNoTemporalAnchor is returned when a resolution carries neither a
	// year nor a parseable race date.
	ErrNoTemporalAnchor = errors.New("resolution requires a year or a parseable race date")
	// ErrUnknownField is returned when a resolution names a field that is
	// not part of the canonical edition.
	ErrUnknownField = errors.New("unknown edition field")
	// ErrNoValues is returned when a resolution carries no field values.
	ErrNoValues = errors.New("resolution requires at least one field value")
)

// Resolution is the operator's manually supplied values for one entry.
type Resolution struct {
	// Year pins the target edition. Optional if Values carries a parseable
	// race date.
	Year int `json:"year,omitempty"`
	// Values maps edition field names to resolved values.
	Values map[string]string `json:"values"`
}

// Service drives the review queue state machine.
type Service struct {
	crawls     database.CrawlRepositoryInterface
	bindings   database.BindingRepositoryInterface
	reconciler *reconcile.Engine
	logger     logger.Interface

	now func() time.Time
}

// NewService creates a review service.
func NewService(
	crawls database.CrawlRepositoryInterface,
	bindings database.BindingRepositoryInterface,
	reconciler *reconcile.Engine,
	log logger.Interface,
) *Service {
	return &Service{
		crawls:     crawls,
		bindings:   bindings,
		reconciler: reconciler,
		logger:     log,
		now:        time.Now,
	}
}

// List returns entries in the given lifecycle status.
func (s *Service) List(ctx context.Context, status string, limit, offset int) ([]*domain.RawCrawlEntry, error) {
	return s.crawls.ListByStatus(ctx, status, limit, offset)
}

// Get returns one entry with its full content and extraction metadata.
func (s *Service) Get(ctx context.Context, id string) (*domain.RawCrawlEntry, error) {
	return s.crawls.GetByID(ctx, id)
}

// Resolve applies an operator's values to the entry's edition with manual
// provenance and marks the entry processed. Validation failures reject the
// request before any state changes.
func (s *Service) Resolve(ctx context.Context, entryID string, res Resolution) error {
	year, err := s.validate(res)
	if err != nil {
		return err
	}

	entry, err := s.crawls.GetByID(ctx, entryID)
	if err != nil {
		return err
	}
	// Pending entries belong to the automated pipeline; only entries parked
	// for review take manual resolutions.
	if entry.Status != domain.EntryStatusNeedsReview {
		return fmt.Errorf("entry %s is not awaiting review (status %s)", entry.ID, entry.Status)
	}
	if transErr := domain.ValidateEntryTransition(entry.Status, domain.EntryStatusProcessed); transErr != nil {
		return transErr
	}

	binding, err := s.bindings.GetByID(ctx, entry.BindingID)
	if err != nil {
		return err
	}

	prov := domain.ManualProvenance(s.now())
	for field, value := range res.Values {
		value = normalizeValue(field, value)
		if _, applyErr := s.reconciler.ApplyField(ctx, binding.EventID, year, field, value, prov); applyErr != nil {
			return fmt.Errorf("apply resolved field %s: %w", field, applyErr)
		}
	}

	processedAt := s.now()
	if statusErr := s.crawls.UpdateStatus(ctx, entry.ID, domain.EntryStatusProcessed, &processedAt); statusErr != nil {
		return fmt.Errorf("mark entry processed: %w", statusErr)
	}

	s.logger.Info("entry manually resolved",
		"entry_id", entry.ID,
		"event_id", binding.EventID,
		"year", year,
		"fields", len(res.Values),
	)

	return nil
}

// Ignore dismisses an entry as not actionable. Terminal.
func (s *Service) Ignore(ctx context.Context, entryID string) error {
	entry, err := s.crawls.GetByID(ctx, entryID)
	if err != nil {
		return err
	}
	if transErr := domain.ValidateEntryTransition(entry.Status, domain.EntryStatusIgnored); transErr != nil {
		return transErr
	}

	processedAt := s.now()
	if statusErr := s.crawls.UpdateStatus(ctx, entry.ID, domain.EntryStatusIgnored, &processedAt); statusErr != nil {
		return fmt.Errorf("mark entry ignored: %w", statusErr)
	}

	s.logger.Info("entry ignored", "entry_id", entry.ID)

	return nil
}

// normalizeValue canonicalises date-valued fields when the operator typed a
// recognisable but non-canonical form.
func normalizeValue(field, value string) string {
	switch field {
	case domain.FieldRaceDate, domain.FieldRegistrationOpens, domain.FieldRegistrationCloses:
		if date, ok := extractor.ParseDate(value); ok {
			return date
		}
	}
	return value
}

// validate checks the resolution and returns the target edition year.
func (s *Service) validate(res Resolution) (int, error) {
	if len(res.Values) == 0 {
		return 0, ErrNoValues
	}

	for field := range res.Values {
		if !domain.IsEditionField(field) {
			return 0, fmt.Errorf("%w: %s", ErrUnknownField, field)
		}
	}

	if res.Year > 0 {
		return res.Year, nil
	}

	if raw, exists := res.Values[domain.FieldRaceDate]; exists {
		if date, ok := extractor.ParseDate(raw); ok {
			t, _ := time.Parse(domain.DateLayout, date)
			return t.Year(), nil
		}
	}

	return 0, ErrNoTemporalAnchor
}
