// Package orchestrator coordinates scraping job lifecycle: single-flight
// admission, persisted state transitions, and fire-and-forget execution of
// the catalog crawler.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bookscrape/catalog-crawler/internal/catalog"
	"github.com/bookscrape/catalog-crawler/internal/progress"
)

// Job status messages written to the store on each transition.
const (
	msgPending = "Scraping queued for execution."
	msgRunning = "Scraping in progress."
)

// Orchestrator is the sole writer of job records. Triggering returns before
// the crawl completes; pollers observe progress through the job store.
type Orchestrator struct {
	store   catalog.JobStore
	crawler catalog.Crawler
	sink    catalog.Sink
	lock    *Lock
	idGen   catalog.IDGenerator
	clock   catalog.Clock
	logger  *zap.Logger
	emitter progress.Emitter

	running sync.WaitGroup
}

// New constructs an Orchestrator. The emitter may be nil.
func New(
	store catalog.JobStore,
	crawler catalog.Crawler,
	sink catalog.Sink,
	idGen catalog.IDGenerator,
	clock catalog.Clock,
	logger *zap.Logger,
	emitter progress.Emitter,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		store:   store,
		crawler: crawler,
		sink:    sink,
		lock:    NewLock(),
		idGen:   idGen,
		clock:   clock,
		logger:  logger,
		emitter: emitter,
	}
}

// Trigger starts a new scraping job. It fails with catalog.ErrAlreadyRunning
// while another crawl holds the lock, creating no job record in that case.
// On success the returned job is in pending state and the crawl runs in the
// background; the lock is released when that run terminates, success or
// failure.
func (o *Orchestrator) Trigger(ctx context.Context, requester string) (catalog.Job, error) {
	if !o.lock.TryAcquire() {
		return catalog.Job{}, catalog.ErrAlreadyRunning
	}

	jobID, err := o.idGen.NewID()
	if err != nil {
		o.lock.Release()
		return catalog.Job{}, fmt.Errorf("generate job id: %w", err)
	}
	now := o.clock.Now().UTC()
	job := catalog.Job{
		ID:          jobID,
		Status:      catalog.JobStatusPending,
		Message:     msgPending,
		CreatedAt:   now,
		UpdatedAt:   now,
		TriggeredBy: requester,
	}
	if err := o.store.CreateJob(ctx, job); err != nil {
		o.lock.Release()
		return catalog.Job{}, fmt.Errorf("create job: %w", err)
	}

	o.running.Add(1)
	go o.run(jobID)

	o.logger.Info("scraping job triggered",
		zap.String("job_id", jobID),
		zap.String("triggered_by", requester),
	)
	return job, nil
}

// Status returns the persisted snapshot for the given job id.
func (o *Orchestrator) Status(ctx context.Context, jobID string) (catalog.Job, error) {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return catalog.Job{}, err
	}
	return job, nil
}

// Wait blocks until all in-flight background runs have terminated. Intended
// for shutdown and tests.
func (o *Orchestrator) Wait() {
	o.running.Wait()
}

// run executes the crawl detached from the triggering request. There is no
// caller-initiated cancellation: a triggered crawl runs to completion or
// failure. Errors become the job's terminal state and never escape.
func (o *Orchestrator) run(jobID string) {
	defer o.running.Done()
	defer o.lock.Release()

	ctx := context.Background()
	start := o.clock.Now()

	o.setStatus(ctx, jobID, catalog.JobStatusRunning, msgRunning)
	o.emit(progress.Event{Stage: progress.StageJobStart, JobID: jobID})

	result, err := o.crawler.Crawl(ctx)
	if err == nil {
		if persistErr := o.sink.Persist(ctx, result.Items); persistErr != nil {
			err = fmt.Errorf("persist items: %w", persistErr)
		}
	}

	elapsed := o.clock.Now().Sub(start)
	if err != nil {
		o.setStatus(ctx, jobID, catalog.JobStatusError, err.Error())
		o.emit(progress.Event{
			Stage: progress.StageJobError,
			JobID: jobID,
			Dur:   elapsed,
			Note:  err.Error(),
		})
		o.logger.Error("scraping job failed",
			zap.String("job_id", jobID),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return
	}

	message := fmt.Sprintf("Scraping finished successfully. Books collected: %d", len(result.Items))
	if result.Skipped > 0 {
		message = fmt.Sprintf("%s Skipped: %d.", message, result.Skipped)
	}
	o.setStatus(ctx, jobID, catalog.JobStatusDone, message)
	o.emit(progress.Event{
		Stage: progress.StageJobDone,
		JobID: jobID,
		Items: int64(len(result.Items)),
		Dur:   elapsed,
	})
	o.logger.Info("scraping job finished",
		zap.String("job_id", jobID),
		zap.Int("items", len(result.Items)),
		zap.Int("skipped", result.Skipped),
		zap.Int("pages", result.Pages),
		zap.Duration("elapsed", elapsed),
	)
}

func (o *Orchestrator) setStatus(ctx context.Context, jobID string, status catalog.JobStatus, message string) {
	if err := o.store.UpdateJobStatus(ctx, jobID, status, message); err != nil {
		o.logger.Error("job status update failed",
			zap.String("job_id", jobID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}
}

func (o *Orchestrator) emit(evt progress.Event) {
	if o.emitter == nil {
		return
	}
	evt.TS = time.Now().UTC()
	o.emitter.Emit(evt)
}
