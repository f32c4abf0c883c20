package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonesrussell/racesync/internal/domain"
	"github.com/jonesrussell/racesync/internal/logger"
)

// PoolState represents the current state of the pool.
type PoolState int32

const (
	// PoolStateStopped means the pool is not running.
	PoolStateStopped PoolState = iota

	// PoolStateRunning means the pool is actively processing syncs.
	PoolStateRunning

	// PoolStateDraining means the pool is shutting down gracefully.
	PoolStateDraining
)

// String returns the string representation of a pool state.
func (s PoolState) String() string {
	switch s {
	case PoolStateStopped:
		return "stopped"
	case PoolStateRunning:
		return "running"
	case PoolStateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// SyncHandler processes one binding's sync.
type SyncHandler func(ctx context.Context, binding *domain.Binding) error

// Pool manages a bounded set of workers executing binding syncs.
type Pool struct {
	config  Config
	handler SyncHandler
	logger  logger.Interface
	state   atomic.Int32
	sem     chan struct{} // Semaphore for bounded concurrency
	wg      sync.WaitGroup
	stopCh  chan struct{}

	// Stats
	totalSyncsProcessed atomic.Int64
	totalSyncsSucceeded atomic.Int64
	totalSyncsFailed    atomic.Int64
}

// NewPool creates a new worker pool.
func NewPool(cfg Config, handler SyncHandler, log logger.Interface) (*Pool, error) {
	if cfg.PoolSize == 0 {
		cfg.PoolSize = DefaultPoolSize
	}
	if cfg.DrainTimeout == 0 {
		cfg.DrainTimeout = DefaultDrainTimeout
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if handler == nil {
		return nil, errors.New("handler cannot be nil")
	}

	p := &Pool{
		config:  cfg,
		handler: handler,
		logger:  log,
		sem:     make(chan struct{}, cfg.PoolSize),
		stopCh:  make(chan struct{}),
	}

	p.state.Store(int32(PoolStateStopped))

	return p, nil
}

// Start starts the worker pool.
func (p *Pool) Start() error {
	if !p.state.CompareAndSwap(int32(PoolStateStopped), int32(PoolStateRunning)) {
		return errors.New("pool is already running")
	}

	p.logger.Info("worker pool started", "pool_size", p.config.PoolSize)

	return nil
}

// Stop gracefully stops the worker pool.
func (p *Pool) Stop(ctx context.Context) error {
	if !p.state.CompareAndSwap(int32(PoolStateRunning), int32(PoolStateDraining)) {
		return errors.New("pool is not running")
	}

	p.logger.Info("worker pool draining")

	close(p.stopCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("worker pool stop timed out")
	case <-time.After(p.config.DrainTimeout):
		p.logger.Warn("worker pool drain timeout exceeded")
	}

	p.state.Store(int32(PoolStateStopped))
	return nil
}

// Submit dispatches a binding sync. Blocks while all workers are busy.
// The done callback runs after the handler finishes, on the worker
// goroutine, whether the sync succeeded or failed.
func (p *Pool) Submit(ctx context.Context, binding *domain.Binding, done func(err error)) error {
	if p.State() != PoolStateRunning {
		return errors.New("pool is not running")
	}

	// Acquire semaphore (blocks if pool is full)
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stopCh:
		return errors.New("pool is stopping")
	}

	p.wg.Add(1)

	// The submit context bounds only the wait for a free worker. The sync
	// itself must survive the caller (an API request returns before its
	// dispatched sync finishes).
	runCtx := context.WithoutCancel(ctx)

	go func() {
		defer func() {
			<-p.sem
			p.wg.Done()
		}()

		err := p.handler(runCtx, binding)

		p.totalSyncsProcessed.Add(1)
		if err != nil {
			p.totalSyncsFailed.Add(1)
		} else {
			p.totalSyncsSucceeded.Add(1)
		}

		if done != nil {
			done(err)
		}
	}()

	return nil
}

// State returns the current pool state.
func (p *Pool) State() PoolState {
	return PoolState(p.state.Load())
}

// IsRunning returns true if the pool is running.
func (p *Pool) IsRunning() bool {
	return p.State() == PoolStateRunning
}

// Size returns the pool size.
func (p *Pool) Size() int {
	return p.config.PoolSize
}

// Stats returns pool statistics.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		State:          p.State(),
		PoolSize:       p.config.PoolSize,
		SyncsProcessed: p.totalSyncsProcessed.Load(),
		SyncsSucceeded: p.totalSyncsSucceeded.Load(),
		SyncsFailed:    p.totalSyncsFailed.Load(),
	}
}

// PoolStats holds statistics for the pool.
type PoolStats struct {
	State          PoolState
	PoolSize       int
	SyncsProcessed int64
	SyncsSucceeded int64
	SyncsFailed    int64
}
