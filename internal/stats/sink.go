// Package stats aggregates request outcomes into per-protocol latency
// percentiles, byte totals, and an error-class breakdown.
package stats

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/obulab/obu-bench/internal/client"
)

// DefaultReservoirSize bounds the latency samples kept per protocol.
// Beyond it, reservoir sampling keeps a uniform subset so percentiles
// stay meaningful on arbitrarily long runs without unbounded memory.
const DefaultReservoirSize = 10000

// Snapshot is a consistent read-only view of one protocol's aggregate.
type Snapshot struct {
	Protocol  string
	Count     int64
	Successes int64
	Failures  int64
	Bytes     int64
	P50       time.Duration
	P90       time.Duration
	P95       time.Duration
	P99       time.Duration
	Errors    map[client.Class]int64
}

// ErrorRate is failures over count, 0 for an empty aggregate.
func (s Snapshot) ErrorRate() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.Failures) / float64(s.Count)
}

type aggregate struct {
	mu        sync.Mutex
	count     int64
	successes int64
	bytes     int64
	errors    map[client.Class]int64
	samples   []float64 // latency in milliseconds
	rng       *rand.Rand
}

// Sink collects outcomes. Each protocol label has its own lock, so
// recording for one protocol never contends with another; the label
// registry itself is read-mostly under an RWMutex.
type Sink struct {
	mu        sync.RWMutex
	labels    map[string]*aggregate
	reservoir int
}

func New() *Sink {
	return NewWithReservoir(DefaultReservoirSize)
}

func NewWithReservoir(n int) *Sink {
	if n <= 0 {
		n = DefaultReservoirSize
	}
	return &Sink{labels: make(map[string]*aggregate), reservoir: n}
}

func (s *Sink) agg(label string) *aggregate {
	s.mu.RLock()
	a, ok := s.labels[label]
	s.mu.RUnlock()
	if ok {
		return a
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok = s.labels[label]; ok {
		return a
	}
	a = &aggregate{
		errors:  make(map[client.Class]int64),
		samples: make([]float64, 0, min(s.reservoir, 1024)),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	s.labels[label] = a
	return a
}

// Record folds one outcome into its protocol's aggregate. Atomic with
// respect to Snapshot: readers see either all of an outcome or none.
func (s *Sink) Record(out client.Outcome) {
	a := s.agg(out.Protocol)
	ms := float64(out.Elapsed) / float64(time.Millisecond)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.count++
	a.bytes += int64(out.Bytes)
	if out.OK {
		a.successes++
	} else {
		a.errors[out.Class]++
	}
	if len(a.samples) < s.reservoir {
		a.samples = append(a.samples, ms)
		return
	}
	// Reservoir replacement keeps each of the count samples equally
	// likely to be retained.
	if idx := a.rng.Int63n(a.count); idx < int64(len(a.samples)) {
		a.samples[idx] = ms
	}
}

// Snapshot returns the aggregate for one protocol label. Safe to call
// while Record is running.
func (s *Sink) Snapshot(label string) (Snapshot, bool) {
	s.mu.RLock()
	a, ok := s.labels[label]
	s.mu.RUnlock()
	if !ok {
		return Snapshot{}, false
	}

	a.mu.Lock()
	snap := Snapshot{
		Protocol:  label,
		Count:     a.count,
		Successes: a.successes,
		Failures:  a.count - a.successes,
		Bytes:     a.bytes,
		Errors:    make(map[client.Class]int64, len(a.errors)),
	}
	for c, n := range a.errors {
		snap.Errors[c] = n
	}
	sorted := append([]float64(nil), a.samples...)
	a.mu.Unlock()

	if len(sorted) > 0 {
		sort.Float64s(sorted)
		snap.P50 = quantile(0.50, sorted)
		snap.P90 = quantile(0.90, sorted)
		snap.P95 = quantile(0.95, sorted)
		snap.P99 = quantile(0.99, sorted)
	}
	return snap, true
}

// Labels returns the known protocol labels, sorted.
func (s *Sink) Labels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.labels))
	for l := range s.labels {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// SnapshotAll snapshots every label in sorted order.
func (s *Sink) SnapshotAll() []Snapshot {
	labels := s.Labels()
	out := make([]Snapshot, 0, len(labels))
	for _, l := range labels {
		if snap, ok := s.Snapshot(l); ok {
			out = append(out, snap)
		}
	}
	return out
}

func quantile(p float64, sorted []float64) time.Duration {
	ms := stat.Quantile(p, stat.Empirical, sorted, nil)
	return time.Duration(ms * float64(time.Millisecond))
}
