package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/taxindex/internal/catalog"
	"github.com/dgallion1/taxindex/internal/config"
	"github.com/dgallion1/taxindex/internal/metrics"
	"github.com/dgallion1/taxindex/internal/source"
	"github.com/dgallion1/taxindex/internal/taxonomy"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var errTest = errors.New("boom")

func retryable(msg string) error {
	return fmt.Errorf("wrapped: %w", &source.RetryableError{Err: errors.New(msg)})
}

const keggOutline = "A  Bacteria\nB  Gammaproteobacteria\nC  eco  Escherichia coli K-12 MG1655\nC  pae  Pseudomonas aeruginosa PAO1\n"

type fakeFetcher struct {
	mu    sync.Mutex
	docs  map[string]string
	errs  []error // returned in order before succeeding
	calls int
}

func (f *fakeFetcher) Fetch(ctx context.Context, location string) (source.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return source.Document{}, err
	}
	data, ok := f.docs[location]
	if !ok {
		return source.Document{}, fmt.Errorf("open source: %s not found", location)
	}
	return source.Document{Name: location[strings.LastIndex(location, "/")+1:], Location: location, Data: []byte(data)}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestWorker(f DocumentFetcher) (*Worker, *catalog.Catalog, *metrics.Metrics) {
	cat := catalog.New()
	m := metrics.New()
	w := NewWorker(f, cat, m, discardLogger(), WorkerOptions{})
	w.backoff = func(int) time.Duration { return time.Millisecond }
	return w, cat, m
}

func TestWorker_ProcessUpload(t *testing.T) {
	w, cat, m := newTestWorker(&fakeFetcher{})
	job := NewJob("kegg", "", "br08601.keg", []byte(keggOutline))

	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected completed, got %q (errors %v)", snap.Status, snap.Progress.Errors)
	}
	if snap.Progress.Lines != 4 || snap.Progress.Nodes != 5 || snap.Progress.Organisms != 2 {
		t.Errorf("unexpected progress: %+v", snap.Progress)
	}
	entry, ok := cat.Get(taxonomy.DialectKEGG)
	if !ok {
		t.Fatal("expected tree in catalog")
	}
	if entry.Source != "upload:br08601.keg" || entry.ContentHash != snap.ContentHash {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if _, ok := entry.Tree.FindByCode("pae"); !ok {
		t.Error("expected pae in loaded tree")
	}
	if got := testutil.ToFloat64(m.LoadJobs.WithLabelValues("completed")); got != 1 {
		t.Errorf("expected 1 completed job metric, got %v", got)
	}
	if got := testutil.ToFloat64(m.LoadedOrgs.WithLabelValues("kegg")); got != 2 {
		t.Errorf("expected loaded organisms gauge 2, got %v", got)
	}
}

func TestWorker_UnchangedContentSkips(t *testing.T) {
	w, cat, _ := newTestWorker(&fakeFetcher{})
	first := NewJob("kegg", "", "a.keg", []byte(keggOutline))
	w.Process(context.Background(), first)
	tree, _ := cat.Tree(taxonomy.DialectKEGG)

	// CRLF line endings extract to the same lines.
	second := NewJob("kegg", "", "b.txt", []byte(strings.ReplaceAll(keggOutline, "\n", "\r\n")))
	w.Process(context.Background(), second)

	if got := second.Snapshot().Status; got != StatusUnchanged {
		t.Fatalf("expected unchanged, got %q", got)
	}
	if again, _ := cat.Tree(taxonomy.DialectKEGG); again != tree {
		t.Error("expected catalog tree to be kept")
	}
}

func TestWorker_FetchRetriesRetryableErrors(t *testing.T) {
	f := &fakeFetcher{
		docs: map[string]string{"s3://taxa/br08601.keg": keggOutline},
		errs: []error{retryable("throttled"), retryable("reset")},
	}
	w, cat, _ := newTestWorker(f)
	job := NewJob("kegg", "s3://taxa/br08601.keg", "br08601.keg", nil)

	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected completed, got %q (%v)", snap.Status, snap.Progress.Errors)
	}
	if snap.Progress.Attempts != 3 || f.calls != 3 {
		t.Errorf("expected 3 attempts, got %d (calls %d)", snap.Progress.Attempts, f.calls)
	}
	if entry, _ := cat.Get(taxonomy.DialectKEGG); entry.Source != "s3://taxa/br08601.keg" {
		t.Errorf("unexpected source %q", entry.Source)
	}
}

func TestWorker_FetchGivesUp(t *testing.T) {
	f := &fakeFetcher{errs: []error{retryable("a"), retryable("b"), retryable("c"), retryable("d")}}
	w, _, _ := newTestWorker(f)
	job := NewJob("ncbi", "s3://taxa/x.keg", "x.keg", nil)

	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed || snap.Phase != "fetching" {
		t.Fatalf("expected failed in fetching, got %q/%q", snap.Status, snap.Phase)
	}
	if f.calls != MaxRetries {
		t.Errorf("expected %d calls, got %d", MaxRetries, f.calls)
	}
}

func TestWorker_FetchNonRetryableFailsFast(t *testing.T) {
	f := &fakeFetcher{errs: []error{errTest}}
	w, _, _ := newTestWorker(f)
	job := NewJob("kegg", "/missing.keg", "missing.keg", nil)

	w.Process(context.Background(), job)

	if f.calls != 1 {
		t.Errorf("expected a single attempt, got %d", f.calls)
	}
	if got := job.Snapshot().Status; got != StatusFailed {
		t.Errorf("expected failed, got %q", got)
	}
}

func TestWorker_MalformedOutlineFails(t *testing.T) {
	w, cat, m := newTestWorker(&fakeFetcher{})
	job := NewJob("kegg", "", "bad.keg", []byte("A  Bacteria\nD  too deep\n"))

	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed || snap.Phase != "parsing" {
		t.Fatalf("expected failed in parsing, got %q/%q", snap.Status, snap.Phase)
	}
	if len(snap.Progress.Errors) != 1 || !strings.Contains(snap.Progress.Errors[0], "line 2") {
		t.Errorf("expected line number in error, got %v", snap.Progress.Errors)
	}
	if _, ok := cat.Get(taxonomy.DialectKEGG); ok {
		t.Error("expected nothing installed after a failed parse")
	}
	if got := testutil.ToFloat64(m.LoadJobs.WithLabelValues("failed")); got != 1 {
		t.Errorf("expected 1 failed job metric, got %v", got)
	}
}

func TestWorker_UnknownDialectAndFormat(t *testing.T) {
	w, _, _ := newTestWorker(&fakeFetcher{})

	job := NewJob("gtdb", "", "a.keg", []byte(keggOutline))
	w.Process(context.Background(), job)
	if got := job.Snapshot().Status; got != StatusFailed {
		t.Errorf("expected unknown dialect to fail, got %q", got)
	}

	job = NewJob("kegg", "", "a.xlsx", []byte(keggOutline))
	w.Process(context.Background(), job)
	snap := job.Snapshot()
	if snap.Status != StatusFailed || snap.Phase != "extracting" {
		t.Errorf("expected unsupported format to fail extracting, got %q/%q", snap.Status, snap.Phase)
	}
}

func TestWorker_LastCodeWins(t *testing.T) {
	dup := "A  Bacteria\nB  eco  first\nB  eco  second\n"
	cat := catalog.New()
	w := NewWorker(&fakeFetcher{}, cat, nil, discardLogger(), WorkerOptions{LastCodeWins: true})

	job := NewJob("kegg", "", "dup.keg", []byte(dup))
	w.Process(context.Background(), job)
	if got := job.Snapshot().Status; got != StatusCompleted {
		t.Fatalf("expected completed, got %q", got)
	}
	tree, _ := cat.Tree(taxonomy.DialectKEGG)
	if eco, _ := tree.FindByCode("eco"); eco.Name != "second" {
		t.Errorf("expected later organism, got %q", eco.Name)
	}
}

func TestOrchestrator_LoadConfigured(t *testing.T) {
	f := &fakeFetcher{docs: map[string]string{
		"/data/kegg.keg": keggOutline,
		"/data/ncbi.keg": "A  Bacteria\nB  Escherichia coli [TAX:562]\nC  eco  Escherichia coli K-12\n",
	}}
	cfg := config.Config{
		KEGGSource:   "/data/kegg.keg",
		NCBISource:   "/data/ncbi.keg",
		WorkerCount:  2,
		MaxQueueSize: 4,
		JobTTL:       time.Hour,
	}
	cat := catalog.New()
	o := NewOrchestrator(cfg, f, cat, metrics.New(), discardLogger())
	o.Start(context.Background())
	defer o.Stop()

	jobs, err := o.LoadConfigured()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 2 || jobs[0].Dialect != "kegg" || jobs[1].Dialect != "ncbi" {
		t.Fatalf("unexpected jobs: %+v", jobs)
	}

	deadline := time.Now().Add(2 * time.Second)
	for _, job := range jobs {
		for job.Snapshot().Status != StatusCompleted {
			if time.Now().After(deadline) {
				t.Fatalf("job %s stuck in %q", job.Dialect, job.Snapshot().Status)
			}
			time.Sleep(5 * time.Millisecond)
		}
		if o.GetJob(job.ID) != job {
			t.Errorf("expected job %s in store", job.ID)
		}
	}

	tree, ok := cat.Tree(taxonomy.DialectNCBI)
	if !ok {
		t.Fatal("expected ncbi tree")
	}
	eco, _ := tree.FindByCode("eco")
	if tree.Parent(eco).Kind != taxonomy.KindSpecies {
		t.Error("expected ncbi dialect parsing with species parent")
	}
}

func TestOrchestrator_QueueFullAndStopped(t *testing.T) {
	cfg := config.Config{WorkerCount: 1, MaxQueueSize: 1, JobTTL: time.Hour}
	o := NewOrchestrator(cfg, &fakeFetcher{}, catalog.New(), nil, discardLogger())
	// Not started: nothing drains the queue.

	if err := o.Submit(NewJob("kegg", "", "a.keg", []byte(keggOutline))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	full := NewJob("kegg", "", "b.keg", []byte(keggOutline))
	if err := o.Submit(full); err == nil {
		t.Fatal("expected queue full error")
	}
	if snap := full.Snapshot(); snap.Status != StatusFailed || snap.Phase != "queue_full" {
		t.Errorf("unexpected state for rejected job: %q/%q", snap.Status, snap.Phase)
	}
	if o.QueueDepth() != 1 {
		t.Errorf("expected queue depth 1, got %d", o.QueueDepth())
	}

	o.Stop()
	if err := o.Submit(NewJob("kegg", "", "c.keg", nil)); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
}
