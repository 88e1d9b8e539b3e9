package books

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	bqtypes "github.com/dvloznov/bookkeeper/internal/bigquery"
	"github.com/dvloznov/bookkeeper/internal/domain"
	"github.com/dvloznov/bookkeeper/internal/jobs"
	"github.com/dvloznov/bookkeeper/internal/jobs/inmemory"
	"github.com/dvloznov/bookkeeper/internal/ledger"
	"github.com/dvloznov/bookkeeper/internal/storage"
	"github.com/rs/zerolog"
)

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithBackupStore sets where backup jobs copy the book to.
func WithBackupStore(s storage.Store) RunnerOption {
	return func(r *Runner) {
		r.backup = s
	}
}

// WithExporter sets the exporter used by export jobs.
func WithExporter(e bqtypes.TransactionExporter) RunnerOption {
	return func(r *Runner) {
		r.exporter = e
	}
}

// WithRunnerLogger sets the logger for job reports.
func WithRunnerLogger(log zerolog.Logger) RunnerOption {
	return func(r *Runner) {
		r.log = log
	}
}

// Runner executes book jobs one at a time on a background worker, so at
// most one job writes to a store at any moment.
type Runner struct {
	book     *Book
	queue    *inmemory.Queue
	jobStore jobs.JobStore
	backup   storage.Store
	exporter bqtypes.TransactionExporter
	log      zerolog.Logger

	savePending atomic.Bool
}

// NewRunner returns a stopped Runner for book. Job states are recorded in
// jobStore.
func NewRunner(book *Book, jobStore jobs.JobStore, opts ...RunnerOption) *Runner {
	r := &Runner{
		book:     book,
		queue:    inmemory.NewQueue(8, 1, jobStore),
		jobStore: jobStore,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start starts the worker. It runs until Stop or until ctx is done.
func (r *Runner) Start(ctx context.Context) error {
	return r.queue.Start(ctx, r.handle)
}

// Stop waits for the running job and discards queued ones.
func (r *Runner) Stop(ctx context.Context) error {
	return r.queue.Stop(ctx)
}

// Jobs lists the recorded jobs, oldest first.
func (r *Runner) Jobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.BookJob, error) {
	return r.jobStore.ListJobs(ctx, filter)
}

// Submit queues a job of type t. Save jobs are coalesced: while one is
// waiting another is not queued and Submit returns nil, nil. Submit blocks
// while the queue is full, until ctx is done.
func (r *Runner) Submit(ctx context.Context, t jobs.JobType) (*jobs.BookJob, error) {
	if t == jobs.JobTypeSave && !r.savePending.CompareAndSwap(false, true) {
		return nil, nil
	}

	job := jobs.NewBookJob(t)
	job.Location = r.locationFor(t)
	if err := r.queue.Publish(ctx, job); err != nil {
		if t == jobs.JobTypeSave {
			r.savePending.Store(false)
		}
		// Publish records the job before it waits for room in the queue.
		if job.JobID != "" {
			r.jobStore.UpdateJobStatus(context.WithoutCancel(ctx), job.JobID, jobs.JobStatusFailed, err.Error())
		}
		return nil, fmt.Errorf("Submit %s: %w", t, err)
	}

	r.log.Debug().Str("job_id", job.JobID).Str("type", string(t)).Msg("Job queued")
	return job, nil
}

// Wait polls the job store until the job completed or failed for good.
func (r *Runner) Wait(ctx context.Context, jobID string) (*jobs.BookJob, error) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		job, err := r.jobStore.GetJob(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("Wait: %w", err)
		}
		if job.Status == jobs.JobStatusCompleted || job.Status == jobs.JobStatusFailed {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return job, fmt.Errorf("Wait: %s: %w", jobID, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (r *Runner) locationFor(t jobs.JobType) string {
	switch t {
	case jobs.JobTypeBackup:
		if r.backup != nil {
			return r.backup.Location()
		}
	case jobs.JobTypeExport:
		return "bigquery"
	}
	return r.book.Store().Location()
}

func (r *Runner) handle(ctx context.Context, job jobs.Job) error {
	log := r.log.With().Str("job_id", job.GetID()).Str("type", string(job.GetType())).Logger()

	var err error
	switch job.GetType() {
	case jobs.JobTypeSave:
		r.savePending.Store(false)
		err = r.book.Save(ctx)
	case jobs.JobTypeBackup:
		err = r.runBackup(ctx)
	case jobs.JobTypeExport:
		err = r.runExport(ctx)
	default:
		err = fmt.Errorf("unknown job type %q", job.GetType())
	}

	if err != nil {
		log.Error().Err(err).Msg("Job failed")
		return err
	}
	log.Info().Msg("Job completed")
	return nil
}

func (r *Runner) runBackup(ctx context.Context) error {
	if r.backup == nil {
		return fmt.Errorf("backup: no backup store configured")
	}
	if err := r.book.Save(ctx); err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	if err := storage.Copy(ctx, r.backup, r.book.Store()); err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	return nil
}

func (r *Runner) runExport(ctx context.Context) error {
	if r.exporter == nil {
		return fmt.Errorf("export: no exporter configured")
	}
	if err := r.exporter.EnsureTable(ctx); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	var snapshot []*domain.Transaction
	err := r.book.Do(func(c *ledger.Collection) error {
		for _, t := range c.All() {
			snapshot = append(snapshot, t.Copy(t.ID()))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := r.exporter.Export(ctx, snapshot); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return nil
}
