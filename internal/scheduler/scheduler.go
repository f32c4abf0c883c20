// Package scheduler selects due bindings and dispatches their syncs to a
// bounded worker pool on a fixed cadence or on demand.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/racesync/internal/database"
	"github.com/jonesrussell/racesync/internal/domain"
	"github.com/jonesrussell/racesync/internal/logger"
	"github.com/jonesrussell/racesync/internal/worker"
)

// DefaultCheckInterval is the default cadence between scheduler ticks.
const DefaultCheckInterval = time.Minute

// Config tunes the scheduler.
type Config struct {
	// CheckInterval is the cadence between ticks.
	CheckInterval time.Duration
}

// Scheduler drives periodic and on-demand sync dispatch. Both the cron tick
// and a manual sync-all flow through the same dispatch path, so the
// single-run-per-binding invariant holds for either trigger.
type Scheduler struct {
	sources  database.SourceRepositoryInterface
	bindings database.BindingRepositoryInterface
	pool     *worker.Pool
	logger   logger.Interface

	cron    *cron.Cron
	entryID cron.EntryID
	started bool

	// inFlight tracks binding ids with a running sync.
	inFlight   map[string]struct{}
	inFlightMu sync.Mutex

	checkInterval time.Duration
	now           func() time.Time
}

// New creates a scheduler.
func New(
	sources database.SourceRepositoryInterface,
	bindings database.BindingRepositoryInterface,
	pool *worker.Pool,
	log logger.Interface,
	cfg Config,
) *Scheduler {
	interval := cfg.CheckInterval
	if interval <= 0 {
		interval = DefaultCheckInterval
	}

	return &Scheduler{
		sources:       sources,
		bindings:      bindings,
		pool:          pool,
		logger:        log,
		cron:          cron.New(),
		inFlight:      make(map[string]struct{}),
		checkInterval: interval,
		now:           time.Now,
	}
}

// Start begins periodic ticking. The pool must already be running.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.started {
		return errors.New("scheduler is already started")
	}
	if !s.pool.IsRunning() {
		return errors.New("worker pool is not running")
	}

	spec := fmt.Sprintf("@every %s", s.checkInterval)
	entryID, err := s.cron.AddFunc(spec, func() {
		if tickErr := s.Tick(ctx); tickErr != nil {
			s.logger.Error("scheduler tick failed", "error", tickErr)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule tick: %w", err)
	}

	s.entryID = entryID
	s.started = true
	s.cron.Start()

	s.logger.Info("scheduler started", "check_interval", s.checkInterval.String())

	return nil
}

// Stop halts the periodic tick. In-flight syncs drain through the pool.
func (s *Scheduler) Stop() {
	if !s.started {
		return
	}
	s.cron.Remove(s.entryID)
	s.cron.Stop()
	s.started = false
	s.logger.Info("scheduler stopped")
}

// DueBindings returns the bindings due for a check at the given instant:
// source active AND next_check_at unset or ≤ now. Ordered by source
// priority descending, then by staleness (never-checked first, then oldest
// last_checked_at).
func (s *Scheduler) DueBindings(ctx context.Context, now time.Time) ([]*domain.Binding, error) {
	bindings, err := s.activeBindings(ctx)
	if err != nil {
		return nil, err
	}

	due := make([]*domain.Binding, 0, len(bindings))
	for _, b := range bindings {
		if b.Due(now) {
			due = append(due, b)
		}
	}

	return due, nil
}

// Tick dispatches every due binding. A failure to list bindings fails the
// tick; individual sync failures never do — partial completion is the
// expected steady state under flaky sources.
func (s *Scheduler) Tick(ctx context.Context) error {
	due, err := s.DueBindings(ctx, s.now())
	if err != nil {
		return fmt.Errorf("select due bindings: %w", err)
	}

	dispatched := s.dispatch(ctx, due)

	s.logger.Debug("tick complete",
		"due", len(due),
		"dispatched", dispatched,
	)

	return nil
}

// SyncAll dispatches every active binding immediately, bypassing the due
// check. Bindings it skips (already running) keep their next_check_at.
func (s *Scheduler) SyncAll(ctx context.Context) (int, error) {
	bindings, err := s.activeBindings(ctx)
	if err != nil {
		return 0, fmt.Errorf("select active bindings: %w", err)
	}

	dispatched := s.dispatch(ctx, bindings)

	s.logger.Info("manual sync-all dispatched",
		"active", len(bindings),
		"dispatched", dispatched,
	)

	return dispatched, nil
}

// SyncBinding dispatches one binding immediately. Returns false if a sync
// for it is already in flight.
func (s *Scheduler) SyncBinding(ctx context.Context, binding *domain.Binding) (bool, error) {
	if !s.acquire(binding.ID) {
		return false, nil
	}

	id := binding.ID
	if err := s.pool.Submit(ctx, binding, func(error) { s.release(id) }); err != nil {
		s.release(id)
		return false, fmt.Errorf("submit sync: %w", err)
	}

	return true, nil
}

// activeBindings loads bindings whose source is active, in dispatch order.
func (s *Scheduler) activeBindings(ctx context.Context) ([]*domain.Binding, error) {
	sources, err := s.sources.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	priorities := make(map[string]int, len(sources))
	for _, src := range sources {
		if src.Active {
			priorities[src.ID] = src.Priority
		}
	}

	all, err := s.bindings.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list bindings: %w", err)
	}

	active := make([]*domain.Binding, 0, len(all))
	for _, b := range all {
		if _, ok := priorities[b.SourceID]; ok {
			active = append(active, b)
		}
	}

	sort.SliceStable(active, func(i, j int) bool {
		pi, pj := priorities[active[i].SourceID], priorities[active[j].SourceID]
		if pi != pj {
			return pi > pj
		}
		return stalerThan(active[i], active[j])
	})

	return active, nil
}

// stalerThan orders bindings by staleness: never-checked before checked,
// then oldest last_checked_at first.
func stalerThan(a, b *domain.Binding) bool {
	switch {
	case a.LastCheckedAt == nil && b.LastCheckedAt == nil:
		return false
	case a.LastCheckedAt == nil:
		return true
	case b.LastCheckedAt == nil:
		return false
	default:
		return a.LastCheckedAt.Before(*b.LastCheckedAt)
	}
}

// dispatch submits each binding to the pool, skipping any with a sync
// already in flight. Returns the number actually submitted.
func (s *Scheduler) dispatch(ctx context.Context, bindings []*domain.Binding) int {
	dispatched := 0
	for _, binding := range bindings {
		if !s.acquire(binding.ID) {
			s.logger.Debug("binding sync already in flight, skipping",
				"binding_id", binding.ID,
			)
			continue
		}

		id := binding.ID
		err := s.pool.Submit(ctx, binding, func(error) {
			s.release(id)
		})
		if err != nil {
			s.release(id)
			s.logger.Warn("failed to submit sync",
				"binding_id", id,
				"error", err,
			)
			continue
		}
		dispatched++
	}
	return dispatched
}

// acquire marks a binding as in flight. Returns false if it already is.
func (s *Scheduler) acquire(bindingID string) bool {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()

	if _, running := s.inFlight[bindingID]; running {
		return false
	}
	s.inFlight[bindingID] = struct{}{}
	return true
}

// release clears a binding's in-flight mark.
func (s *Scheduler) release(bindingID string) {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	delete(s.inFlight, bindingID)
}

// InFlight returns the number of bindings with a running sync.
func (s *Scheduler) InFlight() int {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	return len(s.inFlight)
}
