// Package ingest merges fetched market data into the persisted price history.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/dense-analysis/pricetracker/internal/config"
	"github.com/dense-analysis/pricetracker/internal/model"
	"github.com/dense-analysis/pricetracker/internal/store"
	"github.com/dense-analysis/pricetracker/internal/validate"
)

// ErrRunInProgress is reported when an exclusive job is already running.
var ErrRunInProgress = errors.New("an ingestion run is already in progress")

// Outcome says how an ingestion run ended.
type Outcome int

const (
	// OutcomeCompleted means every page was read until the data or MaxPage ran out.
	OutcomeCompleted Outcome = iota
	// OutcomeCancelled means the context ended before the run finished.
	OutcomeCancelled
	// OutcomeFailed means a page could not be merged or persisted.
	OutcomeFailed
	// OutcomeBusy means the job is exclusive and another run holds it.
	OutcomeBusy
)

func (outcome Outcome) String() string {
	switch outcome {
	case OutcomeCompleted:
		return "completed"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeFailed:
		return "failed"
	case OutcomeBusy:
		return "busy"
	default:
		return fmt.Sprintf("Outcome(%d)", int(outcome))
	}
}

// Summary is the result of one ingestion run.
//
// Pages committed before a failure or cancellation stay committed, and the
// totals include them.
type Summary struct {
	Outcome      Outcome
	Pages        int
	Processed    int
	NewAssets    int
	PriceUpdates int
	// Err is the cause for OutcomeFailed and OutcomeBusy.
	Err error
}

// Fetcher reads one page of market records.
//
// A nil slice with a nil error means there is no data for the page.
type Fetcher interface {
	FetchPage(ctx context.Context, page int) ([]*model.MarketRecord, error)
}

// Mirror receives the history entries of every committed page.
type Mirror interface {
	Write(ctx context.Context, entries []store.PendingEntry) error
}

// Job runs the fetch, merge and persist loop.
type Job struct {
	fetcher Fetcher
	store   store.Store
	mirror  Mirror
	maxPage int
	merger  Merger
	logger  *slog.Logger
	now     func() time.Time
	guard   *semaphore.Weighted
}

// Option configures a new Job.
type Option func(*Job)

// WithLogger injects a logger, slog.Default() is used otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(job *Job) {
		if logger != nil {
			job.logger = logger
		}
	}
}

// WithMirror copies committed history entries to a secondary sink.
func WithMirror(mirror Mirror) Option {
	return func(job *Job) {
		job.mirror = mirror
	}
}

// WithClock replaces time.Now for the run start time.
func WithClock(now func() time.Time) Option {
	return func(job *Job) {
		if now != nil {
			job.now = now
		}
	}
}

// Exclusive makes Run refuse to start while another run of the same Job is active.
//
// Without it, concurrent runs each take their own cache snapshot and may both
// write an entry for the same timestamp.
func Exclusive() Option {
	return func(job *Job) {
		job.guard = semaphore.NewWeighted(1)
	}
}

// NewJob validates the fetch options and builds a Job.
func NewJob(fetcher Fetcher, s store.Store, cfg config.Fetch, opts ...Option) (*Job, error) {
	if err := validate.ValidateFetchConfig(&cfg); err != nil {
		return nil, err
	}

	job := &Job{
		fetcher: fetcher,
		store:   s,
		maxPage: cfg.MaxPage,
		merger:  Merger{Currency: cfg.VsCurrency},
		logger:  slog.Default(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(job)
	}

	job.merger.Logger = job.logger

	return job, nil
}

func (job *Job) fail(ctx context.Context, summary *Summary, err error) {
	if ctx.Err() != nil {
		summary.Outcome = OutcomeCancelled
	} else {
		summary.Outcome = OutcomeFailed
		summary.Err = err
	}
}

// Run performs one ingestion run.
//
// Pages are fetched from 1 up to MaxPage and processed strictly in order,
// stopping early at the first page with no data. A summary is always logged.
func (job *Job) Run(ctx context.Context) (summary Summary) {
	if job.guard != nil {
		if !job.guard.TryAcquire(1) {
			job.logger.Warn("ingestion run skipped, another run is in progress")

			return Summary{Outcome: OutcomeBusy, Err: ErrRunInProgress}
		}

		defer job.guard.Release(1)
	}

	job.logger.Info("starting price update", "start", time.Now().UTC())

	page := 1

	defer func() {
		if recovered := recover(); recovered != nil {
			summary.Outcome = OutcomeFailed
			summary.Err = fmt.Errorf("panic during price update: %v", recovered)
		}

		attributes := []any{
			"outcome", summary.Outcome.String(),
			"pages", summary.Pages,
			"processed", summary.Processed,
			"new_assets", summary.NewAssets,
			"price_updates", summary.PriceUpdates,
		}

		switch summary.Outcome {
		case OutcomeFailed:
			job.logger.Error("price update failed", append(attributes, "page", page, "error", summary.Err)...)
		case OutcomeCancelled:
			job.logger.Info("price update was cancelled", attributes...)
		default:
			job.logger.Info("price update finished", attributes...)
		}
	}()

	cache, err := BuildCache(ctx, job.store)

	if err != nil {
		job.fail(ctx, &summary, fmt.Errorf("build asset cache: %w", err))

		return summary
	}

	job.logger.Info("loaded existing assets", "count", len(cache))
	runStart := job.now().UTC()

	for ; page <= job.maxPage; page++ {
		if ctx.Err() != nil {
			summary.Outcome = OutcomeCancelled

			return summary
		}

		records, err := job.fetcher.FetchPage(ctx, page)

		if err != nil {
			job.fail(ctx, &summary, fmt.Errorf("fetch page %d: %w", page, err))

			return summary
		}

		if !validate.HasRetrievedRecords(records) {
			job.logger.Info("no market data returned, stopping", "page", page)

			break
		}

		job.logger.Info("processing market data page", "page", page, "count", len(records))

		changes := store.NewChanges()
		counts, err := job.merger.Merge(ctx, records, cache, runStart, changes)

		if err != nil {
			job.fail(ctx, &summary, fmt.Errorf("merge page %d: %w", page, err))

			return summary
		}

		if err := job.store.CommitPage(ctx, changes); err != nil {
			job.fail(ctx, &summary, fmt.Errorf("commit page %d: %w", page, err))

			return summary
		}

		summary.Pages++
		summary.Processed += len(records)
		summary.NewAssets += counts.NewAssets
		summary.PriceUpdates += counts.PriceUpdates

		job.logger.Info(
			"saved market data page",
			"page", page,
			"new_assets", len(changes.NewAssets),
			"updated_assets", len(changes.UpdatedAssets),
			"history", len(changes.History),
		)

		if job.mirror != nil && len(changes.History) > 0 {
			if err := job.mirror.Write(ctx, changes.History); err != nil {
				job.logger.Warn("could not mirror price history", "page", page, "error", err)
			}
		}

		if page == job.maxPage {
			job.logger.Info("reached the configured max page", "max_page", job.maxPage)
		}
	}

	summary.Outcome = OutcomeCompleted

	return summary
}
