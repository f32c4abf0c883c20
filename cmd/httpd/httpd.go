// Package httpd implements the long-running sync service: the HTTP API,
// the worker pool, and the periodic scheduler.
package httpd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/racesync/cmd/common"
	"github.com/jonesrussell/racesync/internal/api"
	"github.com/jonesrussell/racesync/internal/database"
	"github.com/jonesrussell/racesync/internal/domain"
	"github.com/jonesrussell/racesync/internal/extractor"
	"github.com/jonesrussell/racesync/internal/fetcher"
	"github.com/jonesrussell/racesync/internal/reconcile"
	"github.com/jonesrussell/racesync/internal/review"
	"github.com/jonesrussell/racesync/internal/scheduler"
	"github.com/jonesrussell/racesync/internal/syncer"
	"github.com/jonesrussell/racesync/internal/worker"
)

const (
	signalChannelBufferSize = 1
	errorChannelBufferSize  = 1
	startupTimeout          = 30 * time.Second
	readHeaderTimeout       = 10 * time.Second
)

// Command returns the httpd command for use in the root command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "httpd",
		Short: "Run the sync service",
		Long:  `Run the HTTP API, the sync worker pool, and the periodic scheduler until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Start(cmd.Context())
		},
	}
}

// service holds everything the running process owns.
type service struct {
	deps      *common.CommandDeps
	scheduler *scheduler.Scheduler
	pool      *worker.Pool
	server    *http.Server
}

// Start runs the service until SIGINT or SIGTERM.
func Start(ctx context.Context) error {
	deps, err := common.NewCommandDeps()
	if err != nil {
		return err
	}

	db, err := deps.OpenDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	startupCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()
	if migrateErr := database.Migrate(startupCtx, db); migrateErr != nil {
		return fmt.Errorf("migrate database: %w", migrateErr)
	}

	repos := common.NewRepositories(db)

	// Runs left running by a crashed process would sit open forever.
	swept, err := repos.Runs.FailAbandoned(startupCtx)
	if err != nil {
		return fmt.Errorf("sweep abandoned runs: %w", err)
	}
	if swept > 0 {
		deps.Logger.Warn("Marked abandoned sync runs failed", "count", swept)
	}

	svc, err := buildService(deps, repos)
	if err != nil {
		return err
	}

	return svc.run(ctx)
}

// buildService wires repositories into the sync engine and the HTTP API.
func buildService(deps *common.CommandDeps, repos *common.Repositories) (*service, error) {
	log := deps.Logger
	cfg := deps.Config

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
		syncer.Config{ConfidenceThreshold: cfg.Sync.ConfidenceThreshold},
	)

	pool, err := worker.NewPool(
		worker.Config{PoolSize: cfg.Sync.PoolSize},
		func(ctx context.Context, binding *domain.Binding) error {
			_, runErr := orch.RunSync(ctx, binding)
			return runErr
		},
		log,
	)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	sched := scheduler.New(repos.Sources, repos.Bindings, pool, log,
		scheduler.Config{CheckInterval: cfg.Sync.CheckInterval})

	reviews := review.NewService(repos.Crawls, repos.Bindings, reconciler, log)

	router := api.NewRouter(api.Deps{
		Sources:   api.NewSourceHandler(repos.Sources, log),
		Bindings:  api.NewBindingHandler(repos.Bindings, repos.Sources, repos.Runs, log),
		Entries:   api.NewEntryHandler(reviews, log),
		Sync:      api.NewSyncHandler(sched, repos.Bindings, log),
		CORSAllow: cfg.Server.CORSOrigins,
	}, log)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return &service{deps: deps, scheduler: sched, pool: pool, server: server}, nil
}

// run starts the pool, scheduler, and HTTP server, then blocks until
// shutdown is requested.
func (s *service) run(ctx context.Context) error {
	log := s.deps.Logger

	if err := s.pool.Start(); err != nil {
		return fmt.Errorf("start worker pool: %w", err)
	}

	if err := s.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	errChan := make(chan error, errorChannelBufferSize)
	go func() {
		log.Info("HTTP server starting", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, signalChannelBufferSize)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("Shutdown signal received", "signal", sig.String())
	case err := <-errChan:
		log.Error("HTTP server failed", "error", err)
		s.shutdown()
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		log.Info("Context cancelled")
	}

	return s.shutdown()
}

// shutdown stops intake first, then drains in-flight syncs.
func (s *service) shutdown() error {
	log := s.deps.Logger
	timeout := s.deps.Config.Server.ShutdownTimeout

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.scheduler.Stop()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", "error", err)
	}

	if err := s.pool.Stop(shutdownCtx); err != nil {
		log.Error("Worker pool drain failed", "error", err)
		return fmt.Errorf("drain worker pool: %w", err)
	}

	log.Info("Shutdown complete")
	return nil
}
