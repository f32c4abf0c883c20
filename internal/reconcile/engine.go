// Package reconcile merges field candidates from multiple sources into one
// canonical value per edition field, under a deterministic priority rule.
package reconcile

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonesrussell/racesync/internal/database"
	"github.com/jonesrussell/racesync/internal/domain"
	"github.com/jonesrussell/racesync/internal/logger"
)

// Outcome classifies what ApplyField did.
type Outcome int

const (
	// OutcomeRejected means the candidate lost to the current provenance.
	OutcomeRejected Outcome = iota
	// OutcomeNew means the field had no value and now has one.
	OutcomeNew
	// OutcomeUpdated means the field's value changed.
	OutcomeUpdated
	// OutcomeUnchanged means the candidate won but carried the same value.
	OutcomeUnchanged
)

// String returns the string representation of an outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeRejected:
		return "rejected"
	case OutcomeNew:
		return "new"
	case OutcomeUpdated:
		return "updated"
	case OutcomeUnchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// Engine applies field candidates to canonical editions. Writes to one
// edition are serialized through a per-edition mutex so two sources
// finishing near-simultaneously cannot interleave provenance updates.
type Engine struct {
	editions database.EditionRepositoryInterface
	logger   logger.Interface

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewEngine creates a reconciliation engine.
func NewEngine(editions database.EditionRepositoryInterface, log logger.Interface) *Engine {
	return &Engine{
		editions: editions,
		logger:   log,
		locks:    make(map[string]*sync.Mutex),
	}
}

// editionLock returns the mutex guarding one event-year.
func (e *Engine) editionLock(eventID string, year int) *sync.Mutex {
	key := fmt.Sprintf("%s/%d", eventID, year)

	e.mu.Lock()
	defer e.mu.Unlock()

	lock, exists := e.locks[key]
	if !exists {
		lock = &sync.Mutex{}
		e.locks[key] = lock
	}
	return lock
}

// ApplyField offers a candidate value for one edition field. The candidate
// wins iff the field has no provenance, the candidate's priority is strictly
// higher, priorities tie and its rank is lower, or ranks tie and it is
// newer. Manual provenance always wins. Losing candidates are a no-op, not
// an error: conflict resolution is the expected steady state.
func (e *Engine) ApplyField(
	ctx context.Context,
	eventID string,
	year int,
	field string,
	value string,
	prov domain.Provenance,
) (Outcome, error) {
	if !domain.IsEditionField(field) {
		return OutcomeRejected, fmt.Errorf("unknown edition field: %s", field)
	}

	lock := e.editionLock(eventID, year)
	lock.Lock()
	defer lock.Unlock()

	edition, err := e.editions.GetOrCreate(ctx, eventID, year)
	if err != nil {
		return OutcomeRejected, fmt.Errorf("load edition: %w", err)
	}

	current, hasProv := edition.Provenance[field]
	if hasProv && !wins(prov, current) {
		e.logger.Debug("candidate rejected",
			"event_id", eventID,
			"year", year,
			"field", field,
			"candidate_source", prov.SourceID,
			"candidate_priority", prov.Priority,
			"current_source", current.SourceID,
			"current_priority", current.Priority,
		)
		return OutcomeRejected, nil
	}

	previous := edition.FieldValue(field)
	if setErr := edition.SetFieldValue(field, value); setErr != nil {
		return OutcomeRejected, setErr
	}
	if edition.Provenance == nil {
		edition.Provenance = domain.ProvenanceMap{}
	}
	edition.Provenance[field] = prov

	if updateErr := e.editions.Update(ctx, edition); updateErr != nil {
		return OutcomeRejected, fmt.Errorf("save edition: %w", updateErr)
	}

	outcome := OutcomeUpdated
	switch {
	case previous == nil:
		outcome = OutcomeNew
	case *previous == value:
		outcome = OutcomeUnchanged
	}

	e.logger.Info("field applied",
		"event_id", eventID,
		"year", year,
		"field", field,
		"source_id", prov.SourceID,
		"priority", prov.Priority,
		"outcome", outcome.String(),
	)

	return outcome, nil
}

// wins decides whether the candidate provenance beats the current one.
// Total and deterministic: every comparison has a defined winner. Manual
// provenance beats any automated candidate regardless of its priority;
// only another manual resolution can replace it.
func wins(candidate, current domain.Provenance) bool {
	if candidate.Manual {
		return true
	}
	if current.Manual {
		return false
	}
	if candidate.Priority != current.Priority {
		return candidate.Priority > current.Priority
	}
	if candidate.Rank != current.Rank {
		return candidate.Rank < current.Rank
	}
	return !candidate.AppliedAt.Before(current.AppliedAt)
}
