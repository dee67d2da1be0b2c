package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/dgallion1/taxindex/internal/catalog"
	"github.com/dgallion1/taxindex/internal/config"
	"github.com/dgallion1/taxindex/internal/metrics"
	"github.com/dgallion1/taxindex/internal/source"
)

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("pipeline stopped")

// Orchestrator manages the taxonomy load pipeline.
type Orchestrator struct {
	jobs    *JobStore
	queue   chan *Job
	fetcher DocumentFetcher
	catalog *catalog.Catalog
	metrics *metrics.Metrics
	log     *slog.Logger
	cfg     config.Config

	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Call Start to run it.
func NewOrchestrator(cfg config.Config, fetcher DocumentFetcher, cat *catalog.Catalog, m *metrics.Metrics, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:    NewJobStore(cfg.JobTTL),
		queue:   make(chan *Job, cfg.MaxQueueSize),
		fetcher: fetcher,
		catalog: cat,
		metrics: m,
		log:     log,
		cfg:     cfg,
	}
}

// Start launches worker goroutines, job cleanup and, when configured, the
// periodic reload of configured sources.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	opts := WorkerOptions{
		LastCodeWins: o.cfg.LastCodeWins,
		Source:       source.Options{PDFFallbackPdftotext: o.cfg.PDFFallbackPdftotext},
	}
	for range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.fetcher, o.catalog, o.metrics, o.log, opts)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job := <-o.queue:
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.every(workerCtx, 5*time.Minute, o.jobs.Cleanup)

	if o.cfg.ReloadInterval > 0 {
		o.every(workerCtx, o.cfg.ReloadInterval, func() {
			if _, err := o.LoadConfigured(); err != nil {
				o.log.Warn("scheduled reload not queued", "error", err)
			}
		})
	}
}

func (o *Orchestrator) every(ctx context.Context, d time.Duration, fn func()) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline. Queued jobs that were not picked
// up are left as they are.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	o.stopped = true
	o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return ErrStopped
	}

	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.AddError("queue full")
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// LoadConfigured queues one job per configured source, in dialect order.
func (o *Orchestrator) LoadConfigured() ([]*Job, error) {
	sources := o.cfg.Sources()
	dialects := make([]string, 0, len(sources))
	for d := range sources {
		dialects = append(dialects, d)
	}
	sort.Strings(dialects)

	var jobs []*Job
	var errs []error
	for _, d := range dialects {
		loc := sources[d]
		job := NewJob(d, loc, path.Base(loc), nil)
		if err := o.Submit(job); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d, err))
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, errors.Join(errs...)
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Catalog returns the catalog jobs install into.
func (o *Orchestrator) Catalog() *catalog.Catalog {
	return o.catalog
}
