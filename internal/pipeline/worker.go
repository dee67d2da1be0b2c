package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgallion1/taxindex/internal/catalog"
	"github.com/dgallion1/taxindex/internal/metrics"
	"github.com/dgallion1/taxindex/internal/source"
	"github.com/dgallion1/taxindex/internal/taxonomy"
)

// DocumentFetcher loads a document from a source location.
type DocumentFetcher interface {
	Fetch(ctx context.Context, location string) (source.Document, error)
}

// WorkerOptions configures how a worker turns documents into trees.
type WorkerOptions struct {
	LastCodeWins bool
	Source       source.Options
}

// Worker processes a single load job.
type Worker struct {
	fetcher DocumentFetcher
	catalog *catalog.Catalog
	metrics *metrics.Metrics
	log     *slog.Logger
	opts    WorkerOptions

	backoff func(attempt int) time.Duration
}

func NewWorker(fetcher DocumentFetcher, cat *catalog.Catalog, m *metrics.Metrics, log *slog.Logger, opts WorkerOptions) *Worker {
	return &Worker{
		fetcher: fetcher,
		catalog: cat,
		metrics: m,
		log:     log,
		opts:    opts,
		backoff: Backoff,
	}
}

// Process runs the full load pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "dialect", job.Dialect)
	defer func() {
		if w.metrics != nil {
			w.metrics.JobFinished(string(job.Snapshot().Status))
		}
	}()

	dialect, err := taxonomy.ParseDialect(job.Dialect)
	if err != nil {
		w.fail(log, job, "queued", err)
		return
	}

	// Phase 1: Fetch
	doc := source.Document{Name: job.Filename, Location: job.Source, Data: job.FileData()}
	if doc.Data == nil {
		job.SetStatus(StatusFetching, "fetching")
		fetched, err := w.fetch(ctx, log, job)
		if err != nil {
			w.fail(log, job, "fetching", fmt.Errorf("fetch: %w", err))
			return
		}
		doc.Data = fetched.Data
		if doc.Name == "" {
			doc.Name = fetched.Name
		}
	}

	// Phase 2: Extract
	job.SetStatus(StatusExtracting, "extracting")
	lines, err := source.Extract(doc, w.opts.Source)
	if err != nil {
		w.fail(log, job, "extracting", fmt.Errorf("extract: %w", err))
		return
	}
	job.SetLines(len(lines))

	hash := ContentHashHex([]byte(strings.Join(lines, "\n")))
	job.SetContentHash(hash)
	if w.catalog.Has(dialect, hash) {
		log.Info("taxonomy unchanged, skipping", "content_hash", hash)
		job.SetStatus(StatusUnchanged, "done")
		return
	}

	// Phase 3: Parse
	job.SetStatus(StatusParsing, "parsing")
	tree, err := taxonomy.Parse(lines, taxonomy.Options{Dialect: dialect, LastCodeWins: w.opts.LastCodeWins})
	if err != nil {
		w.fail(log, job, "parsing", fmt.Errorf("parse: %w", err))
		return
	}

	entry := catalog.NewEntry(tree, sourceLabel(job), hash)
	job.SetTreeSize(entry.Nodes, entry.Organisms)
	if !w.catalog.Put(entry) {
		log.Info("taxonomy unchanged, skipping", "content_hash", hash)
		job.SetStatus(StatusUnchanged, "done")
		return
	}
	if w.metrics != nil {
		w.metrics.SetLoaded(entry.Dialect, entry.Nodes, entry.Organisms)
	}

	log.Info("taxonomy loaded", "nodes", entry.Nodes, "organisms", entry.Organisms, "lines", len(lines))
	job.SetStatus(StatusCompleted, "done")
}

// fetch retries retryable fetch errors with jittered backoff.
func (w *Worker) fetch(ctx context.Context, log *slog.Logger, job *Job) (source.Document, error) {
	var lastErr error
	for attempt := range MaxRetries {
		job.IncrAttempts()
		doc, err := w.fetcher.Fetch(ctx, job.Source)
		if err == nil {
			return doc, nil
		}
		lastErr = err
		if !IsRetryable(err) || attempt == MaxRetries-1 {
			break
		}
		log.Warn("retryable fetch error", "attempt", attempt, "error", err)
		select {
		case <-time.After(w.backoff(attempt)):
		case <-ctx.Done():
			return source.Document{}, errors.Join(lastErr, ctx.Err())
		}
	}
	return source.Document{}, lastErr
}

func (w *Worker) fail(log *slog.Logger, job *Job, phase string, err error) {
	log.Error("load failed", "phase", phase, "error", err)
	job.AddError(err.Error())
	job.SetStatus(StatusFailed, phase)
}

func sourceLabel(job *Job) string {
	if job.Source != "" {
		return job.Source
	}
	return "upload:" + job.Filename
}
