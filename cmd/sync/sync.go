// Package sync implements the one-shot sync-all command.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/racesync/cmd/common"
	"github.com/jonesrussell/racesync/internal/domain"
	"github.com/jonesrussell/racesync/internal/extractor"
	"github.com/jonesrussell/racesync/internal/fetcher"
	"github.com/jonesrussell/racesync/internal/reconcile"
	"github.com/jonesrussell/racesync/internal/scheduler"
	"github.com/jonesrussell/racesync/internal/syncer"
	"github.com/jonesrussell/racesync/internal/worker"
)

const pollInterval = 200 * time.Millisecond

// Command returns the sync command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Sync all active bindings once and exit",
		Long:  `Dispatch a sync for every active binding, regardless of schedule, and wait for all of them to finish.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
}

func run(ctx context.Context) error {
	deps, err := common.NewCommandDeps()
	if err != nil {
		return err
	}
	log := deps.Logger

	db, err := deps.OpenDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	repos := common.NewRepositories(db)
	reconciler := reconcile.NewEngine(repos.Editions, log)

	orch := syncer.NewOrchestrator(
		repos.Sources,
		repos.Bindings,
		repos.Runs,
		repos.Crawls,
		fetcher.NewHTTPFetcher(),
		extractor.NewSelectorExtractor(),
		reconciler,
		log,
		syncer.Config{ConfidenceThreshold: deps.Config.Sync.ConfidenceThreshold},
	)

	pool, err := worker.NewPool(
		worker.Config{PoolSize: deps.Config.Sync.PoolSize},
		func(ctx context.Context, binding *domain.Binding) error {
			_, runErr := orch.RunSync(ctx, binding)
			return runErr
		},
		log,
	)
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}
	if startErr := pool.Start(); startErr != nil {
		return fmt.Errorf("start worker pool: %w", startErr)
	}

	sched := scheduler.New(repos.Sources, repos.Bindings, pool, log, scheduler.Config{})

	dispatched, err := sched.SyncAll(ctx)
	if err != nil {
		return fmt.Errorf("dispatch syncs: %w", err)
	}
	log.Info("Syncs dispatched", "count", dispatched)

	if waitErr := waitForCompletion(ctx, sched); waitErr != nil {
		return waitErr
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), worker.DefaultDrainTimeout)
	defer cancel()
	if stopErr := pool.Stop(stopCtx); stopErr != nil {
		return fmt.Errorf("drain worker pool: %w", stopErr)
	}

	stats := pool.Stats()
	fmt.Printf("Synced %d bindings: %d succeeded, %d failed\n",
		stats.SyncsProcessed, stats.SyncsSucceeded, stats.SyncsFailed)

	return nil
}

// waitForCompletion blocks until every dispatched sync has released its
// in-flight token.
func waitForCompletion(ctx context.Context, sched *scheduler.Scheduler) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if sched.InFlight() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
