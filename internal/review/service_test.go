package review_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonesrussell/racesync/internal/domain"
	"github.com/jonesrussell/racesync/internal/logger"
	"github.com/jonesrussell/racesync/internal/reconcile"
	"github.com/jonesrussell/racesync/internal/review"
)

const (
	reviewEntryID   = "entry-1"
	reviewBindingID = "binding-1"
	reviewEventID   = "chicago-marathon"
)

// --- Fakes ---

type fakeCrawls struct {
	mu      sync.Mutex
	entries map[string]*domain.RawCrawlEntry
}

func newFakeCrawls(entries ...*domain.RawCrawlEntry) *fakeCrawls {
	f := &fakeCrawls{entries: make(map[string]*domain.RawCrawlEntry)}
	for _, e := range entries {
		cp := *e
		f.entries[e.ID] = &cp
	}
	return f
}

func (f *fakeCrawls) Create(_ context.Context, entry *domain.RawCrawlEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *entry
	f.entries[entry.ID] = &cp
	return nil
}

func (f *fakeCrawls) GetByID(_ context.Context, id string) (*domain.RawCrawlEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok {
		return nil, fmt.Errorf("entry %s not found", id)
	}
	cp := *e
	return &cp, nil
}

func (f *fakeCrawls) ListByStatus(_ context.Context, status string, _, _ int) ([]*domain.RawCrawlEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.RawCrawlEntry
	for _, e := range f.entries {
		if e.Status == status {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeCrawls) UpdateExtraction(_ context.Context, id string, meta domain.ExtractionMeta) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok {
		return fmt.Errorf("entry %s not found", id)
	}
	e.Extraction = meta
	return nil
}

func (f *fakeCrawls) UpdateStatus(_ context.Context, id, status string, processedAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok {
		return fmt.Errorf("entry %s not found", id)
	}
	e.Status = status
	e.ProcessedAt = processedAt
	return nil
}

func (f *fakeCrawls) status(t *testing.T, id string) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok {
		t.Fatalf("entry %s not found", id)
	}
	return e.Status
}

type fakeBindings struct {
	binding *domain.Binding
}

func (f *fakeBindings) Create(context.Context, *domain.Binding) error { return nil }
func (f *fakeBindings) Update(context.Context, *domain.Binding) error { return nil }
func (f *fakeBindings) List(context.Context) ([]*domain.Binding, error) {
	return []*domain.Binding{f.binding}, nil
}

func (f *fakeBindings) GetByID(_ context.Context, id string) (*domain.Binding, error) {
	if f.binding != nil && f.binding.ID == id {
		cp := *f.binding
		return &cp, nil
	}
	return nil, fmt.Errorf("binding %s not found", id)
}

type memEditions struct {
	mu       sync.Mutex
	editions map[string]*domain.Edition
}

func newMemEditions() *memEditions {
	return &memEditions{editions: make(map[string]*domain.Edition)}
}

func (m *memEditions) GetOrCreate(_ context.Context, eventID string, year int) (*domain.Edition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := fmt.Sprintf("%s/%d", eventID, year)
	if e, ok := m.editions[k]; ok {
		cp := *e
		return &cp, nil
	}
	e := &domain.Edition{ID: k, EventID: eventID, Year: year, Provenance: domain.ProvenanceMap{}}
	m.editions[k] = e
	cp := *e
	return &cp, nil
}

func (m *memEditions) GetByID(_ context.Context, id string) (*domain.Edition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.editions[id]
	if !ok {
		return nil, errors.New("edition not found")
	}
	cp := *e
	return &cp, nil
}

func (m *memEditions) Update(_ context.Context, edition *domain.Edition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *edition
	m.editions[edition.ID] = &cp
	return nil
}

// --- Harness ---

func needsReviewEntry() *domain.RawCrawlEntry {
	return &domain.RawCrawlEntry{
		ID:        reviewEntryID,
		BindingID: reviewBindingID,
		SourceID:  "source-aggregator",
		URL:       "https://example.com/race",
		Status:    domain.EntryStatusNeedsReview,
		Extraction: domain.ExtractionMeta{
			Candidates: []domain.FieldCandidate{
				{Field: domain.FieldRaceDate, Value: "Fall 2026", Confidence: 0.4},
			},
		},
		FetchedAt: time.Date(2026, 2, 1, 6, 0, 0, 0, time.UTC),
	}
}

func newService(crawls *fakeCrawls, editions *memEditions) *review.Service {
	bindings := &fakeBindings{binding: &domain.Binding{
		ID:       reviewBindingID,
		EventID:  reviewEventID,
		SourceID: "source-aggregator",
	}}
	engine := reconcile.NewEngine(editions, logger.NewNoOp())
	return review.NewService(crawls, bindings, engine, logger.NewNoOp())
}

// --- Tests ---

func TestResolve_AppliesManualValues(t *testing.T) {
	t.Parallel()

	crawls := newFakeCrawls(needsReviewEntry())
	editions := newMemEditions()
	svc := newService(crawls, editions)

	err := svc.Resolve(context.Background(), reviewEntryID, review.Resolution{
		Values: map[string]string{
			domain.FieldRaceDate:           "October 11, 2026",
			domain.FieldRegistrationStatus: "open",
		},
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if got := crawls.status(t, reviewEntryID); got != domain.EntryStatusProcessed {
		t.Errorf("expected processed, got %s", got)
	}

	// Year derived from the resolved race date; date canonicalised.
	edition, err := editions.GetByID(context.Background(), reviewEventID+"/2026")
	if err != nil {
		t.Fatalf("edition not created: %v", err)
	}
	if edition.RaceDate == nil || *edition.RaceDate != "2026-10-11" {
		t.Errorf("race date not canonicalised: %v", edition.RaceDate)
	}

	prov := edition.Provenance[domain.FieldRaceDate]
	if !prov.Manual || prov.SourceID != domain.ManualSourceID {
		t.Errorf("expected manual provenance, got %+v", prov)
	}
}

// A manual resolution must survive later automated candidates at any priority.
func TestResolve_ManualValueOutranksAutomation(t *testing.T) {
	t.Parallel()

	crawls := newFakeCrawls(needsReviewEntry())
	editions := newMemEditions()
	svc := newService(crawls, editions)

	err := svc.Resolve(context.Background(), reviewEntryID, review.Resolution{
		Year:   2026,
		Values: map[string]string{domain.FieldRaceDate: "2026-10-11"},
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	engine := reconcile.NewEngine(editions, logger.NewNoOp())
	outcome, err := engine.ApplyField(context.Background(), reviewEventID, 2026,
		domain.FieldRaceDate, "2026-10-12", domain.Provenance{
			SourceID:  "official-site",
			Priority:  10,
			AppliedAt: time.Now(),
		})
	if err != nil {
		t.Fatalf("ApplyField() error = %v", err)
	}
	if outcome != reconcile.OutcomeRejected {
		t.Errorf("automated candidate should lose to manual value, got %s", outcome)
	}
}

func TestResolve_ExplicitYearWins(t *testing.T) {
	t.Parallel()

	crawls := newFakeCrawls(needsReviewEntry())
	editions := newMemEditions()
	svc := newService(crawls, editions)

	// Registration status alone has no date; the explicit year anchors it.
	err := svc.Resolve(context.Background(), reviewEntryID, review.Resolution{
		Year:   2027,
		Values: map[string]string{domain.FieldRegistrationStatus: "open"},
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if _, err := editions.GetByID(context.Background(), reviewEventID+"/2027"); err != nil {
		t.Errorf("edition for explicit year not created: %v", err)
	}
}

func TestResolve_ValidationErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		res     review.Resolution
		wantErr error
	}{
		{
			name:    "no values",
			res:     review.Resolution{Year: 2026},
			wantErr: review.ErrNoValues,
		},
		{
			name: "unknown field",
			res: review.Resolution{
				Year:   2026,
				Values: map[string]string{"weather": "sunny"},
			},
			wantErr: review.ErrUnknownField,
		},
		{
			name: "no temporal anchor",
			res: review.Resolution{
				Values: map[string]string{domain.FieldRegistrationStatus: "open"},
			},
			wantErr: review.ErrNoTemporalAnchor,
		},
		{
			name: "unparseable race date and no year",
			res: review.Resolution{
				Values: map[string]string{domain.FieldRaceDate: "sometime in fall"},
			},
			wantErr: review.ErrNoTemporalAnchor,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			crawls := newFakeCrawls(needsReviewEntry())
			svc := newService(crawls, newMemEditions())

			err := svc.Resolve(context.Background(), reviewEntryID, tt.res)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}

			// Validation failures change nothing.
			if got := crawls.status(t, reviewEntryID); got != domain.EntryStatusNeedsReview {
				t.Errorf("entry status should be untouched, got %s", got)
			}
		})
	}
}

func TestResolve_TerminalEntryRejected(t *testing.T) {
	t.Parallel()

	entry := needsReviewEntry()
	entry.Status = domain.EntryStatusIgnored
	crawls := newFakeCrawls(entry)
	svc := newService(crawls, newMemEditions())

	err := svc.Resolve(context.Background(), reviewEntryID, review.Resolution{
		Year:   2026,
		Values: map[string]string{domain.FieldRaceDate: "2026-10-11"},
	})
	if err == nil {
		t.Fatal("expected error resolving a terminal entry")
	}
}

func TestResolve_PendingEntryRejected(t *testing.T) {
	t.Parallel()

	entry := needsReviewEntry()
	entry.Status = domain.EntryStatusPending
	crawls := newFakeCrawls(entry)
	svc := newService(crawls, newMemEditions())

	// An entry the pipeline has not routed to review yet is not the
	// operator's to resolve.
	err := svc.Resolve(context.Background(), reviewEntryID, review.Resolution{
		Year:   2026,
		Values: map[string]string{domain.FieldRaceDate: "2026-10-11"},
	})
	if err == nil {
		t.Fatal("expected error resolving a pending entry")
	}
	if got := crawls.status(t, reviewEntryID); got != domain.EntryStatusPending {
		t.Errorf("entry status should be untouched, got %s", got)
	}
}

func TestIgnore(t *testing.T) {
	t.Parallel()

	crawls := newFakeCrawls(needsReviewEntry())
	svc := newService(crawls, newMemEditions())

	if err := svc.Ignore(context.Background(), reviewEntryID); err != nil {
		t.Fatalf("Ignore() error = %v", err)
	}
	if got := crawls.status(t, reviewEntryID); got != domain.EntryStatusIgnored {
		t.Errorf("expected ignored, got %s", got)
	}

	// Ignored is terminal; a second ignore fails.
	if err := svc.Ignore(context.Background(), reviewEntryID); err == nil {
		t.Error("expected error ignoring a terminal entry")
	}
}

func TestIgnore_PendingEntryRejected(t *testing.T) {
	t.Parallel()

	entry := needsReviewEntry()
	entry.Status = domain.EntryStatusPending
	crawls := newFakeCrawls(entry)
	svc := newService(crawls, newMemEditions())

	// pending can only move to needs_review or processed, never straight
	// to ignored.
	if err := svc.Ignore(context.Background(), reviewEntryID); err == nil {
		t.Error("expected error ignoring a pending entry")
	}
}
