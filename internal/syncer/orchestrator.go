// Package syncer runs the fetch→dedup→extract→reconcile pipeline for one
// binding at a time and records every attempt as a sync run.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jonesrussell/racesync/internal/database"
	"github.com/jonesrussell/racesync/internal/domain"
	"github.com/jonesrussell/racesync/internal/extractor"
	"github.com/jonesrussell/racesync/internal/fetcher"
	"github.com/jonesrussell/racesync/internal/logger"
	"github.com/jonesrussell/racesync/internal/reconcile"
	"github.com/jonesrussell/racesync/internal/retry"
)

// DefaultConfidenceThreshold is the minimum extraction confidence for
// auto-apply. Candidates below it route the whole entry to review.
const DefaultConfidenceThreshold = 0.8

// fetchGrace pads the orchestrator's own deadline past the source timeout
// so a well-behaved fetcher times out first.
const fetchGrace = 5 * time.Second

// ErrSourceInactive is returned when a sync is requested for a binding
// whose source has been deactivated.
var ErrSourceInactive = errors.New("source is not active")

// Config tunes the orchestrator.
type Config struct {
	ConfidenceThreshold float64
}

// Orchestrator coordinates one binding's sync.
type Orchestrator struct {
	sources    database.SourceRepositoryInterface
	bindings   database.BindingRepositoryInterface
	runs       database.RunRepositoryInterface
	crawls     database.CrawlRepositoryInterface
	fetcher    fetcher.Interface
	extractor  extractor.Interface
	reconciler *reconcile.Engine
	logger     logger.Interface
	threshold  float64

	// Injection points for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator creates a sync orchestrator.
func NewOrchestrator(
	sources database.SourceRepositoryInterface,
	bindings database.BindingRepositoryInterface,
	runs database.RunRepositoryInterface,
	crawls database.CrawlRepositoryInterface,
	fetch fetcher.Interface,
	extract extractor.Interface,
	reconciler *reconcile.Engine,
	log logger.Interface,
	cfg Config,
) *Orchestrator {
	threshold := cfg.ConfidenceThreshold
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}

	return &Orchestrator{
		sources:    sources,
		bindings:   bindings,
		runs:       runs,
		crawls:     crawls,
		fetcher:    fetch,
		extractor:  extract,
		reconciler: reconciler,
		logger:     log,
		threshold:  threshold,
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

// sleepCtx waits for the duration or until the context is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunSync performs one full sync of a binding and returns the finished run.
// Fetch failures are recorded on the run and the binding, not returned as
// errors; the error return is reserved for persistence failures.
func (o *Orchestrator) RunSync(ctx context.Context, binding *domain.Binding) (*domain.SyncRun, error) {
	source, err := o.sources.GetByID(ctx, binding.SourceID)
	if err != nil {
		return nil, fmt.Errorf("load source: %w", err)
	}
	if !source.Active {
		return nil, ErrSourceInactive
	}

	run := &domain.SyncRun{
		BindingID: binding.ID,
		Status:    domain.RunStatusRunning,
		Strategy:  source.Strategy,
		Attempts:  1,
		StartedAt: o.now(),
	}
	if createErr := o.runs.Create(ctx, run); createErr != nil {
		return nil, fmt.Errorf("create sync run: %w", createErr)
	}

	result, fetchErr := o.fetchWithRetry(ctx, source, binding, run)
	if fetchErr != nil {
		if finishErr := o.finishFailed(ctx, source, binding, run, fetchErr); finishErr != nil {
			return nil, finishErr
		}
		return run, nil
	}

	if err := o.processResult(ctx, source, binding, run, result); err != nil {
		return nil, err
	}

	return run, nil
}

// fetchWithRetry invokes the fetcher up to the source's retry limit, with
// exponential backoff between attempts. Permanent errors fail immediately.
func (o *Orchestrator) fetchWithRetry(
	ctx context.Context,
	source *domain.Source,
	binding *domain.Binding,
	run *domain.SyncRun,
) (*fetcher.Result, error) {
	req := fetcher.Request{
		URL:      binding.URL,
		Strategy: source.Strategy,
		Config:   source.StrategyConfig,
		Timeout:  source.RequestTimeout(),
	}

	for attempt := 1; ; attempt++ {
		run.Attempts = attempt

		result, err := o.guardedFetch(ctx, req)
		if err == nil {
			return result, nil
		}

		o.logger.Warn("fetch attempt failed",
			"binding_id", binding.ID,
			"url", binding.URL,
			"attempt", attempt,
			"transient", fetcher.IsTransient(err),
			"error", err,
		)

		if !fetcher.IsTransient(err) || attempt >= source.RetryMax {
			return nil, err
		}

		if sleepErr := o.sleep(ctx, retry.Backoff(attempt, source.BackoffBase())); sleepErr != nil {
			return nil, err
		}
	}
}

// guardedFetch bounds the fetcher call with the orchestrator's own deadline
// so a misbehaving implementation cannot stall the worker.
func (o *Orchestrator) guardedFetch(ctx context.Context, req fetcher.Request) (*fetcher.Result, error) {
	type fetchOutcome struct {
		result *fetcher.Result
		err    error
	}

	fetchCtx, cancel := context.WithTimeout(ctx, req.Timeout+fetchGrace)
	defer cancel()

	done := make(chan fetchOutcome, 1)
	go func() {
		result, err := o.fetcher.Fetch(fetchCtx, req)
		done <- fetchOutcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-fetchCtx.Done():
		return nil, &fetcher.Error{Transient: true, Message: "fetch deadline exceeded"}
	}
}

// finishFailed records a failed run and reschedules the binding at its
// normal interval. Failed bindings are never abandoned.
func (o *Orchestrator) finishFailed(
	ctx context.Context,
	source *domain.Source,
	binding *domain.Binding,
	run *domain.SyncRun,
	fetchErr error,
) error {
	now := o.now()
	msg := fetchErr.Error()
	next := now.Add(source.MinInterval())

	run.Status = domain.RunStatusFailed
	run.ErrorMessage = &msg
	run.FinishedAt = &now

	binding.LastError = &msg
	if status := fetcher.StatusOf(fetchErr); status > 0 {
		binding.LastHTTPStatus = &status
	}
	binding.LastCheckedAt = &now
	binding.NextCheckAt = &next

	if err := o.bindings.Update(ctx, binding); err != nil {
		return fmt.Errorf("update binding after failure: %w", err)
	}
	if err := o.runs.Finish(ctx, run); err != nil {
		return fmt.Errorf("finish failed run: %w", err)
	}

	o.logger.Error("sync run failed",
		"binding_id", binding.ID,
		"attempts", run.Attempts,
		"error", msg,
	)

	return nil
}

// processResult handles a successful fetch: dedup short-circuit, raw entry
// persistence, extraction, and routing to reconciliation or review.
func (o *Orchestrator) processResult(
	ctx context.Context,
	source *domain.Source,
	binding *domain.Binding,
	run *domain.SyncRun,
	result *fetcher.Result,
) error {
	now := o.now()
	next := now.Add(source.MinInterval())
	hash := domain.HashContent(result.Body)

	binding.LastHTTPStatus = &result.Status
	binding.LastError = nil
	binding.LastCheckedAt = &now
	binding.NextCheckAt = &next

	// Unchanged upstream content: no new entry, no extraction. This is the
	// idempotence guarantee for repeat fetches.
	if binding.LastHash != nil && *binding.LastHash == hash {
		run.UnchangedCount++
		if err := o.bindings.Update(ctx, binding); err != nil {
			return fmt.Errorf("update binding: %w", err)
		}
		return o.finishSuccess(ctx, run)
	}

	binding.LastHash = &hash

	entry := &domain.RawCrawlEntry{
		BindingID:   binding.ID,
		SourceID:    source.ID,
		URL:         binding.URL,
		Content:     string(result.Body),
		ContentHash: hash,
		HTTPStatus:  result.Status,
		ContentType: result.ContentType,
		Status:      domain.EntryStatusPending,
		FetchedAt:   now,
	}
	if err := o.crawls.Create(ctx, entry); err != nil {
		return fmt.Errorf("create raw crawl entry: %w", err)
	}
	if err := o.bindings.Update(ctx, binding); err != nil {
		return fmt.Errorf("update binding: %w", err)
	}

	if err := o.extractAndRoute(ctx, source, binding, run, entry, result); err != nil {
		return err
	}

	return o.finishSuccess(ctx, run)
}

// extractAndRoute runs extraction and either auto-applies confident
// candidates or parks the entry for human review.
func (o *Orchestrator) extractAndRoute(
	ctx context.Context,
	source *domain.Source,
	binding *domain.Binding,
	run *domain.SyncRun,
	entry *domain.RawCrawlEntry,
	result *fetcher.Result,
) error {
	candidates, extractErr := o.extractor.Extract(ctx, result.Body, result.ContentType, source.StrategyConfig)
	if extractErr != nil {
		// Unparseable content is ambiguity, not an error: a human decides.
		o.logger.Warn("extraction failed, routing to review",
			"entry_id", entry.ID,
			"error", extractErr,
		)
		return o.markEntry(ctx, entry, domain.EntryStatusNeedsReview, nil)
	}

	confident := make([]domain.FieldCandidate, 0, len(candidates))
	var topConfidence float64
	for _, c := range candidates {
		if c.Confidence > topConfidence {
			topConfidence = c.Confidence
		}
		if c.Confidence >= o.threshold {
			confident = append(confident, c)
		}
	}

	entry.Extraction = domain.ExtractionMeta{
		Method:     extractionMethod(candidates),
		Confidence: topConfidence,
		Candidates: candidates,
	}
	if err := o.crawls.UpdateExtraction(ctx, entry.ID, entry.Extraction); err != nil {
		return fmt.Errorf("save extraction metadata: %w", err)
	}

	if len(confident) == 0 {
		return o.markEntry(ctx, entry, domain.EntryStatusNeedsReview, nil)
	}

	year := editionYear(confident, o.now())
	appliedAt := o.now()
	for _, c := range confident {
		prov := domain.Provenance{
			SourceID:  source.ID,
			Priority:  source.Priority,
			Rank:      c.Rank,
			AppliedAt: appliedAt,
		}

		outcome, applyErr := o.reconciler.ApplyField(ctx, binding.EventID, year, c.Field, c.Value, prov)
		if applyErr != nil {
			return fmt.Errorf("apply field %s: %w", c.Field, applyErr)
		}

		switch outcome {
		case reconcile.OutcomeNew:
			run.NewCount++
		case reconcile.OutcomeUpdated:
			run.UpdatedCount++
		case reconcile.OutcomeUnchanged, reconcile.OutcomeRejected:
			// No count change; rejection is normal conflict resolution.
		}
	}

	processedAt := o.now()
	return o.markEntry(ctx, entry, domain.EntryStatusProcessed, &processedAt)
}

// markEntry advances the entry's lifecycle, validating the transition and
// persisting the extraction metadata gathered so far.
func (o *Orchestrator) markEntry(ctx context.Context, entry *domain.RawCrawlEntry, status string, processedAt *time.Time) error {
	if err := domain.ValidateEntryTransition(entry.Status, status); err != nil {
		return err
	}
	entry.Status = status
	entry.ProcessedAt = processedAt
	if err := o.crawls.UpdateStatus(ctx, entry.ID, status, processedAt); err != nil {
		return fmt.Errorf("update entry status: %w", err)
	}
	return nil
}

// finishSuccess closes out a successful run.
func (o *Orchestrator) finishSuccess(ctx context.Context, run *domain.SyncRun) error {
	now := o.now()
	run.Status = domain.RunStatusSuccess
	run.FinishedAt = &now

	if err := o.runs.Finish(ctx, run); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}

	o.logger.Info("sync run finished",
		"run_id", run.ID,
		"binding_id", run.BindingID,
		"new", run.NewCount,
		"updated", run.UpdatedCount,
		"unchanged", run.UnchangedCount,
	)

	return nil
}

// extractionMethod returns the method tag shared by the candidates.
func extractionMethod(candidates []domain.FieldCandidate) string {
	if len(candidates) == 0 {
		return ""
	}
	return candidates[0].Method
}

// editionYear derives the target edition year from the race date candidate
// when one is present, falling back to the current year.
func editionYear(candidates []domain.FieldCandidate, now time.Time) int {
	for _, c := range candidates {
		if c.Field != domain.FieldRaceDate {
			continue
		}
		if t, err := time.Parse(domain.DateLayout, c.Value); err == nil {
			return t.Year()
		}
		if len(c.Value) >= 4 {
			if y, err := strconv.Atoi(c.Value[:4]); err == nil && y > 1900 {
				return y
			}
		}
	}
	return now.Year()
}
