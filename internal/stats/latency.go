// Package stats keeps rolling latency windows for query operations.
package stats

import (
	"sort"
	"sync"
	"time"
)

type sample struct {
	timestamp  time.Time
	durationMs float64
}

// Snapshot is a point-in-time aggregate of latency samples.
type Snapshot struct {
	Count int     `json:"count"`
	MinMs float64 `json:"min_ms"`
	MaxMs float64 `json:"max_ms"`
	AvgMs float64 `json:"avg_ms"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
	P99Ms float64 `json:"p99_ms"`
}

// Latency tracks recent durations within a rolling window.
type Latency struct {
	mu      sync.Mutex
	samples []sample
	maxAge  time.Duration
}

func NewLatency(maxAge time.Duration) *Latency {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Latency{
		samples: make([]sample, 0, 256),
		maxAge:  maxAge,
	}
}

func (s *Latency) Record(durationMs float64) {
	if durationMs < 0 {
		durationMs = 0
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	s.samples = append(s.samples, sample{
		timestamp:  now,
		durationMs: durationMs,
	})
}

func (s *Latency) Snapshot() Snapshot {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	if len(s.samples) == 0 {
		return Snapshot{}
	}

	values := make([]float64, 0, len(s.samples))
	var sum float64
	for _, sm := range s.samples {
		values = append(values, sm.durationMs)
		sum += sm.durationMs
	}
	sort.Float64s(values)

	return Snapshot{
		Count: len(values),
		MinMs: values[0],
		MaxMs: values[len(values)-1],
		AvgMs: sum / float64(len(values)),
		P50Ms: percentile(values, 50),
		P95Ms: percentile(values, 95),
		P99Ms: percentile(values, 99),
	}
}

func (s *Latency) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.maxAge)
	writeIdx := 0
	for _, sm := range s.samples {
		if !sm.timestamp.Before(cutoff) {
			s.samples[writeIdx] = sm
			writeIdx++
		}
	}
	s.samples = s.samples[:writeIdx]
}

func percentile(sorted []float64, pct float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if pct <= 0 {
		return sorted[0]
	}
	if pct >= 100 {
		return sorted[len(sorted)-1]
	}

	index := (float64(len(sorted)-1) * pct) / 100.0
	lower := int(index)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[lower]
	}
	weight := index - float64(lower)
	return sorted[lower] + ((sorted[upper] - sorted[lower]) * weight)
}

// Queries holds one Latency window per operation name.
type Queries struct {
	mu     sync.Mutex
	maxAge time.Duration
	ops    map[string]*Latency
}

func NewQueries(maxAge time.Duration) *Queries {
	return &Queries{maxAge: maxAge, ops: make(map[string]*Latency)}
}

// Observe records the time elapsed since start under op.
func (q *Queries) Observe(op string, start time.Time) {
	q.window(op).Record(float64(time.Since(start).Microseconds()) / 1000)
}

func (q *Queries) window(op string) *Latency {
	q.mu.Lock()
	defer q.mu.Unlock()
	l, ok := q.ops[op]
	if !ok {
		l = NewLatency(q.maxAge)
		q.ops[op] = l
	}
	return l
}

// Snapshot returns a snapshot per operation seen so far.
func (q *Queries) Snapshot() map[string]Snapshot {
	q.mu.Lock()
	ops := make(map[string]*Latency, len(q.ops))
	for k, v := range q.ops {
		ops[k] = v
	}
	q.mu.Unlock()

	out := make(map[string]Snapshot, len(ops))
	for k, l := range ops {
		out[k] = l.Snapshot()
	}
	return out
}
