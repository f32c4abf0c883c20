package scheduler_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonesrussell/racesync/internal/domain"
	"github.com/jonesrussell/racesync/internal/logger"
	"github.com/jonesrussell/racesync/internal/scheduler"
	"github.com/jonesrussell/racesync/internal/worker"
)

var schedNow = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

// --- Fakes ---

type fakeSources struct {
	sources []*domain.Source
}

func (f *fakeSources) Create(context.Context, *domain.Source) error { return nil }
func (f *fakeSources) Update(context.Context, *domain.Source) error { return nil }
func (f *fakeSources) GetByID(_ context.Context, id string) (*domain.Source, error) {
	for _, s := range f.sources {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, fmt.Errorf("source %s not found", id)
}
func (f *fakeSources) List(context.Context) ([]*domain.Source, error) {
	return f.sources, nil
}

type fakeBindings struct {
	bindings []*domain.Binding
}

func (f *fakeBindings) Create(context.Context, *domain.Binding) error { return nil }
func (f *fakeBindings) Update(context.Context, *domain.Binding) error { return nil }
func (f *fakeBindings) GetByID(_ context.Context, id string) (*domain.Binding, error) {
	for _, b := range f.bindings {
		if b.ID == id {
			return b, nil
		}
	}
	return nil, fmt.Errorf("binding %s not found", id)
}
func (f *fakeBindings) List(context.Context) ([]*domain.Binding, error) {
	return f.bindings, nil
}

// syncRecorder is a pool handler that records which bindings it ran.
type syncRecorder struct {
	mu  sync.Mutex
	ids []string
}

func (r *syncRecorder) handle(_ context.Context, binding *domain.Binding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, binding.ID)
	return nil
}

func (r *syncRecorder) ran() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

// --- Helpers ---

func source(id string, priority int, active bool) *domain.Source {
	return &domain.Source{ID: id, Name: id, Priority: priority, Active: active}
}

func binding(id, sourceID string, lastChecked, nextCheck *time.Time) *domain.Binding {
	return &domain.Binding{
		ID:            id,
		EventID:       "event-" + id,
		SourceID:      sourceID,
		URL:           "https://example.com/" + id,
		LastCheckedAt: lastChecked,
		NextCheckAt:   nextCheck,
	}
}

func newScheduler(t *testing.T, sources *fakeSources, bindings *fakeBindings,
	handler worker.SyncHandler) (*scheduler.Scheduler, *worker.Pool) {
	t.Helper()

	pool, err := worker.NewPool(worker.Config{PoolSize: 4}, handler, logger.NewNoOp())
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	if startErr := pool.Start(); startErr != nil {
		t.Fatalf("pool.Start() error = %v", startErr)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = pool.Stop(ctx)
	})

	return scheduler.New(sources, bindings, pool, logger.NewNoOp(), scheduler.Config{}), pool
}

func waitForRuns(t *testing.T, rec *syncRecorder, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(rec.ran()) >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d runs, got %d", want, len(rec.ran()))
}

// --- Tests ---

func TestDueBindings_FiltersAndOrders(t *testing.T) {
	t.Parallel()

	past := schedNow.Add(-time.Hour)
	future := schedNow.Add(time.Hour)
	oldCheck := schedNow.Add(-48 * time.Hour)
	recentCheck := schedNow.Add(-time.Hour)

	sources := &fakeSources{sources: []*domain.Source{
		source("high", 9, true),
		source("low", 3, true),
		source("inactive", 10, false),
	}}
	bindings := &fakeBindings{bindings: []*domain.Binding{
		binding("low-never", "low", nil, nil),
		binding("high-recent", "high", &recentCheck, &past),
		binding("high-stale", "high", &oldCheck, &past),
		binding("high-not-due", "high", &recentCheck, &future),
		binding("inactive-src", "inactive", nil, nil),
		binding("low-due", "low", &oldCheck, &past),
	}}

	sched, _ := newScheduler(t, sources, bindings, func(context.Context, *domain.Binding) error { return nil })

	due, err := sched.DueBindings(context.Background(), schedNow)
	if err != nil {
		t.Fatalf("DueBindings() error = %v", err)
	}

	got := make([]string, len(due))
	for i, b := range due {
		got[i] = b.ID
	}

	// Priority desc; within a priority, never-checked first, then stalest.
	want := []string{"high-stale", "high-recent", "low-never", "low-due"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestDueBindings_BoundaryIsDue(t *testing.T) {
	t.Parallel()

	exactly := schedNow
	sources := &fakeSources{sources: []*domain.Source{source("s", 5, true)}}
	bindings := &fakeBindings{bindings: []*domain.Binding{
		binding("at-boundary", "s", nil, &exactly),
	}}

	sched, _ := newScheduler(t, sources, bindings, func(context.Context, *domain.Binding) error { return nil })

	due, err := sched.DueBindings(context.Background(), schedNow)
	if err != nil {
		t.Fatalf("DueBindings() error = %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("next_check_at == now should be due, got %d bindings", len(due))
	}
}

func TestTick_DispatchesDueOnly(t *testing.T) {
	t.Parallel()

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	sources := &fakeSources{sources: []*domain.Source{source("s", 5, true)}}
	bindings := &fakeBindings{bindings: []*domain.Binding{
		binding("due-1", "s", nil, &past),
		binding("not-due", "s", &past, &future),
	}}

	rec := &syncRecorder{}
	sched, _ := newScheduler(t, sources, bindings, rec.handle)

	if err := sched.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	waitForRuns(t, rec, 1)
	for _, id := range rec.ran() {
		if id == "not-due" {
			t.Error("not-due binding was dispatched by tick")
		}
	}
}

func TestSyncAll_BypassesDueCheck(t *testing.T) {
	t.Parallel()

	future := time.Now().Add(time.Hour)
	sources := &fakeSources{sources: []*domain.Source{
		source("s", 5, true),
		source("off", 5, false),
	}}
	bindings := &fakeBindings{bindings: []*domain.Binding{
		binding("b1", "s", nil, &future),
		binding("b2", "s", nil, &future),
		binding("b-off", "off", nil, nil),
	}}

	rec := &syncRecorder{}
	sched, _ := newScheduler(t, sources, bindings, rec.handle)

	dispatched, err := sched.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("SyncAll() error = %v", err)
	}
	if dispatched != 2 {
		t.Fatalf("expected 2 dispatched, got %d", dispatched)
	}

	waitForRuns(t, rec, 2)
	for _, id := range rec.ran() {
		if id == "b-off" {
			t.Error("binding of inactive source must never sync")
		}
	}
}

// At most one sync per binding may be in flight at once.
func TestSyncBinding_SingleRunPerBinding(t *testing.T) {
	t.Parallel()

	blocker := make(chan struct{})
	started := make(chan struct{}, 1)
	handler := func(_ context.Context, _ *domain.Binding) error {
		started <- struct{}{}
		<-blocker
		return nil
	}

	sources := &fakeSources{sources: []*domain.Source{source("s", 5, true)}}
	b := binding("b1", "s", nil, nil)
	bindings := &fakeBindings{bindings: []*domain.Binding{b}}

	sched, _ := newScheduler(t, sources, bindings, handler)
	ctx := context.Background()

	ok, err := sched.SyncBinding(ctx, b)
	if err != nil {
		t.Fatalf("SyncBinding() error = %v", err)
	}
	if !ok {
		t.Fatal("first dispatch should succeed")
	}
	<-started

	// Second dispatch while the first still runs is refused.
	ok, err = sched.SyncBinding(ctx, b)
	if err != nil {
		t.Fatalf("SyncBinding() error = %v", err)
	}
	if ok {
		t.Error("second dispatch for the same binding should be refused")
	}
	if got := sched.InFlight(); got != 1 {
		t.Errorf("expected 1 in flight, got %d", got)
	}

	close(blocker)

	// After completion the binding can sync again.
	deadline := time.Now().Add(5 * time.Second)
	for sched.InFlight() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if sched.InFlight() != 0 {
		t.Fatal("in-flight token not released")
	}

	ok, err = sched.SyncBinding(ctx, b)
	if err != nil {
		t.Fatalf("SyncBinding() error = %v", err)
	}
	if !ok {
		t.Error("binding should be dispatchable after the previous run finished")
	}
	<-started
}

func TestTick_SkipsInFlightBinding(t *testing.T) {
	t.Parallel()

	blocker := make(chan struct{})
	defer close(blocker)
	started := make(chan struct{}, 4)
	handler := func(_ context.Context, _ *domain.Binding) error {
		started <- struct{}{}
		<-blocker
		return nil
	}

	past := time.Now().Add(-time.Hour)
	sources := &fakeSources{sources: []*domain.Source{source("s", 5, true)}}
	bindings := &fakeBindings{bindings: []*domain.Binding{
		binding("b1", "s", nil, &past),
	}}

	sched, _ := newScheduler(t, sources, bindings, handler)
	ctx := context.Background()

	if err := sched.Tick(ctx); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	<-started

	// A second tick while b1 is still running must not double-dispatch.
	if err := sched.Tick(ctx); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	select {
	case <-started:
		t.Fatal("binding dispatched twice while in flight")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()

	sources := &fakeSources{}
	bindings := &fakeBindings{}
	sched, _ := newScheduler(t, sources, bindings, func(context.Context, *domain.Binding) error { return nil })

	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := sched.Start(context.Background()); err == nil {
		t.Error("second Start() should fail")
	}
	sched.Stop()
}
